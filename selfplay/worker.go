// Package selfplay plays complete games between agents on the local rules
// engine and records every turn for the archive.
package selfplay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/brensch/snekbfs/game"
	"github.com/brensch/snekbfs/rules"
	"github.com/brensch/snekbfs/store"
)

type Config struct {
	Width  int32
	Height int32
	// MaxTurns ends the game as a draw once reached. 0 means no limit.
	MaxTurns int32
	Food     rules.FoodSettings
	// Seed fixes the game's randomness. 0 seeds from the clock.
	Seed   int64
	Source string

	// Verbose writes every board and decision to Trace.
	Verbose bool
	Trace   io.Writer
	Logger  *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		Width:    rules.StandardSize,
		Height:   rules.StandardSize,
		MaxTurns: 1000,
		Food:     rules.DefaultFoodSettings,
		Source:   "selfplay",
	}
}

type GameResult struct {
	GameID   string
	WinnerId string
	Steps    int
	// Agents maps snake id to agent name.
	Agents map[string]string
	// Causes maps eliminated snake ids to how they died.
	Causes map[string]string
}

type PlayGameOutcome struct {
	Completed bool
	Rows      []store.ArchiveTurnRow
	Result    GameResult
}

// PlayGame plays one game with one snake per agent. Snake ids are snake1,
// snake2, ... in agent order; spawn points are shuffled.
//
// It records one archive row per turn before moves are applied plus the
// terminal position. A cancelled ctx stops the game between turns and returns
// the rows so far with ctx's error.
func PlayGame(ctx context.Context, cfg Config, agents []Agent, onStep func()) (PlayGameOutcome, error) {
	if len(agents) == 0 {
		return PlayGameOutcome{}, fmt.Errorf("no agents")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Source == "" {
		cfg.Source = "selfplay"
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	ids := make([]string, len(agents))
	byID := make(map[string]Agent, len(agents))
	names := make(map[string]string, len(agents))
	for i, a := range agents {
		ids[i] = fmt.Sprintf("snake%d", i+1)
		byID[ids[i]] = a
		names[ids[i]] = a.Name
	}

	state, err := rules.InitialState(rng, cfg.Width, cfg.Height, ids)
	if err != nil {
		return PlayGameOutcome{}, fmt.Errorf("initial state: %w", err)
	}
	rules.ApplyFoodSettings(state, rng, rules.FoodSettings{MinimumFood: cfg.Food.MinimumFood})

	gameID := uuid.NewString()
	logger = logger.With("game_id", gameID)
	rows := make([]store.ArchiveTurnRow, 0, 256)
	allCauses := make(map[string]string)
	var lastCauses map[string]string

	result := func() GameResult {
		return GameResult{
			GameID:   gameID,
			WinnerId: rules.Winner(state),
			Steps:    int(state.Turn),
			Agents:   names,
			Causes:   allCauses,
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return PlayGameOutcome{Rows: rows, Result: result()}, err
		}

		if cfg.Verbose && cfg.Trace != nil {
			PrintBoard(cfg.Trace, state)
		}

		row := store.NewTurnRow(gameID, cfg.Source, state)
		for i := range row.Snakes {
			row.Snakes[i].Agent = names[row.Snakes[i].ID]
			row.Snakes[i].Cause = lastCauses[row.Snakes[i].ID]
		}

		if rules.IsGameOver(state) || (cfg.MaxTurns > 0 && state.Turn >= cfg.MaxTurns) {
			rows = append(rows, row)
			break
		}

		choices := decideAll(state, byID)

		moves := make(map[string]game.Direction, len(choices))
		for id, c := range choices {
			moves[id] = c.Move
			sr := row.Snake(id)
			if sr == nil {
				continue
			}
			sr.Move = int32(c.Move)
			if d := c.Decision; d != nil {
				sr.Planned = int32(d.Planned)
				sr.FoundFood = d.FoundFood
				sr.Fallback = d.Fallback
				sr.Avoided = d.Avoided
			}
			if cfg.Verbose {
				logChoice(logger, state.Turn, id, names[id], c)
			}
		}
		rows = append(rows, row)

		if onStep != nil {
			onStep()
		}

		state, lastCauses = rules.Step(state, moves, rng, cfg.Food)
		for id, cause := range lastCauses {
			allCauses[id] = cause
		}
	}

	res := result()
	for i := range rows {
		rows[i].Winner = res.WinnerId
	}
	logger.Debug("game finished", "winner", res.WinnerId, "turns", res.Steps, "rows", len(rows))

	return PlayGameOutcome{Completed: true, Rows: rows, Result: res}, nil
}

// decideAll asks every live snake's agent for a move concurrently. Each agent
// sees its own copy of the state with YouId set to its snake.
func decideAll(state *game.GameState, agents map[string]Agent) map[string]Choice {
	choices := make(map[string]Choice)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, snake := range state.Snakes {
		if !snake.Alive() {
			continue
		}
		agent, ok := agents[snake.Id]
		if !ok {
			continue
		}

		wg.Add(1)
		go func(you game.Snake) {
			defer wg.Done()
			local := state.Clone()
			local.YouId = you.Id
			c := agent.Move(local, you)

			mu.Lock()
			choices[you.Id] = c
			mu.Unlock()
		}(snake)
	}
	wg.Wait()
	return choices
}

func logChoice(logger *slog.Logger, turn int32, id, agent string, c Choice) {
	attrs := []any{"turn", turn, "snake", id, "agent", agent, "move", c.Move.String()}
	if d := c.Decision; d != nil {
		attrs = append(attrs,
			"planned", d.Planned.String(),
			"target", fmt.Sprintf("(%d,%d)", d.Target.X, d.Target.Y),
			"found_food", d.FoundFood,
			"distance", d.Distance,
			"visited", d.Visited,
			"fallback", d.Fallback,
			"avoided", d.Avoided,
		)
	}
	logger.Info("move", attrs...)
}

type GameUpdate struct {
	WorkerID int
	Result   GameResult
	Rows     []store.ArchiveTurnRow
}

// RunWorkers plays games on n goroutines until ctx is done or maxGames games
// have been started (0 for no limit). Finished games arrive on the returned
// channel, which is closed once every worker has exited. Games interrupted by
// cancellation, or finished after it while nobody is receiving, are dropped.
func RunWorkers(ctx context.Context, n int, maxGames int64, cfg Config, agents []Agent, onStep func()) <-chan GameUpdate {
	if n <= 0 {
		n = 1
	}
	updates := make(chan GameUpdate, n)
	var started atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			logger := cfg.Logger
			if logger == nil {
				logger = slog.Default()
			}
			logger = logger.With("worker", workerID)

			for ctx.Err() == nil {
				num := started.Add(1)
				if maxGames > 0 && num > maxGames {
					return
				}

				gameCfg := cfg
				gameCfg.Logger = logger
				// Only worker 0 traces, otherwise boards interleave.
				gameCfg.Verbose = cfg.Verbose && workerID == 0
				if cfg.Seed != 0 {
					gameCfg.Seed = cfg.Seed + num*1000003
				} else {
					gameCfg.Seed = time.Now().UnixNano() + int64(workerID)*1000003
				}

				out, err := PlayGame(ctx, gameCfg, seatOrder(agents, num), onStep)
				if err != nil {
					if ctx.Err() == nil {
						logger.Error("game failed", "error", err)
					}
					return
				}
				select {
				case updates <- GameUpdate{WorkerID: workerID, Result: out.Result, Rows: out.Rows}:
				case <-ctx.Done():
					return
				}
			}
		}(i)
	}

	go func() {
		wg.Wait()
		close(updates)
	}()
	return updates
}

// seatOrder rotates the agents so each one plays every snake id over a run.
func seatOrder(agents []Agent, gameNum int64) []Agent {
	if len(agents) < 2 {
		return agents
	}
	k := int(gameNum % int64(len(agents)))
	out := make([]Agent, 0, len(agents))
	out = append(out, agents[k:]...)
	return append(out, agents[:k]...)
}

// SortedIDs returns the keys of m in order, for stable log output.
func SortedIDs(m map[string]string) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
