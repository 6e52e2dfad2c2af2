package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/snekbfs/selfplay"
)

// model is the live progress view. Games arrive as selfplay.GameUpdate
// messages forwarded by the main loop; moves are sampled on every tick.
type model struct {
	gamesPlayed int
	totalRows   int
	moves       int64
	wins        map[string]int
	draws       int
	startTime   time.Time
	recentGames []string
	updates     <-chan selfplay.GameUpdate
	onUpdate    func(selfplay.GameUpdate)
}

func initialModel(updates <-chan selfplay.GameUpdate, onUpdate func(selfplay.GameUpdate)) model {
	return model{
		startTime: time.Now(),
		wins:      make(map[string]int),
		updates:   updates,
		onUpdate:  onUpdate,
	}
}

type TickMsg time.Time

// doneMsg is sent once the update channel is closed.
type doneMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tickCmd())
}

func waitForUpdate(updates <-chan selfplay.GameUpdate) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return doneMsg{}
		}
		return u
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case TickMsg:
		m.moves = totalMoves.Load()
		return m, tickCmd()
	case doneMsg:
		return m, tea.Quit
	case selfplay.GameUpdate:
		if m.onUpdate != nil {
			m.onUpdate(msg)
		}
		m.gamesPlayed++
		m.totalRows += len(msg.Rows)
		if w := msg.Result.WinnerId; w != "" {
			m.wins[msg.Result.Agents[w]]++
		} else {
			m.draws++
		}
		m.recentGames = append([]string{describeGame(msg)}, m.recentGames...)
		if len(m.recentGames) > 10 {
			m.recentGames = m.recentGames[:10]
		}
		return m, waitForUpdate(m.updates)
	}
	return m, nil
}

func (m model) View() string {
	duration := time.Since(m.startTime)
	gamesPerSec := float64(m.gamesPlayed) / duration.Seconds()
	movesPerSec := float64(m.moves) / duration.Seconds()
	if duration.Seconds() < 1 {
		gamesPerSec = 0
		movesPerSec = 0
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Games Played:   %d\n", m.gamesPlayed)
	fmt.Fprintf(&sb, "Rows Recorded:  %d\n", m.totalRows)
	fmt.Fprintf(&sb, "Total Moves:    %d\n", m.moves)
	fmt.Fprintf(&sb, "Duration:       %s\n", duration.Round(time.Second))
	fmt.Fprintf(&sb, "Games/Sec:      %.2f\n", gamesPerSec)
	fmt.Fprintf(&sb, "Moves/Sec:      %.2f\n\n", movesPerSec)

	sb.WriteString("Wins:\n")
	agents := make([]string, 0, len(m.wins))
	for a := range m.wins {
		agents = append(agents, a)
	}
	sort.Strings(agents)
	for _, a := range agents {
		fmt.Fprintf(&sb, "  %-12s %d\n", a, m.wins[a])
	}
	fmt.Fprintf(&sb, "  %-12s %d\n\n", "draws", m.draws)

	sb.WriteString("Recent Games:\n")
	for _, g := range m.recentGames {
		sb.WriteString(g + "\n")
	}
	sb.WriteString("\nPress q to quit.\n")
	return sb.String()
}

func describeGame(u selfplay.GameUpdate) string {
	winner := "draw"
	if w := u.Result.WinnerId; w != "" {
		winner = fmt.Sprintf("%s (%s)", w, u.Result.Agents[w])
	}
	var deaths []string
	for _, id := range selfplay.SortedIDs(u.Result.Causes) {
		deaths = append(deaths, id+":"+u.Result.Causes[id])
	}
	return fmt.Sprintf("Worker %d: Winner %s, Steps %d, Rows %d %s", u.WorkerID, winner, u.Result.Steps, len(u.Rows), strings.Join(deaths, " "))
}
