// Command debuggame plays a single game with every board and decision
// printed, then archives it for inspection.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/brensch/snekbfs/game"
	"github.com/brensch/snekbfs/logging"
	"github.com/brensch/snekbfs/selfplay"
	"github.com/brensch/snekbfs/store"
)

func main() {
	outDir := flag.String("out-dir", "debug_games", "Output directory for the archived game")
	agentList := flag.String("agents", "bfs,bfs", "Comma separated agents, one snake each")
	size := flag.Int("size", 11, "Board width and height")
	maxTurns := flag.Int("max-turns", 500, "Declare a draw after this many turns")
	seed := flag.Int64("seed", 0, "Fix game randomness (0 = clock)")
	flag.Parse()

	logger, err := logging.New(os.Stderr, logging.FormatText, "info")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var agents []selfplay.Agent
	for _, name := range strings.Split(*agentList, ",") {
		a, ok := selfplay.AgentByName(strings.TrimSpace(name))
		if !ok {
			logger.Error("unknown agent", "name", name)
			os.Exit(2)
		}
		agents = append(agents, a)
	}

	cfg := selfplay.DefaultConfig()
	cfg.Width, cfg.Height = int32(*size), int32(*size)
	cfg.MaxTurns = int32(*maxTurns)
	cfg.Seed = *seed
	cfg.Source = "debug"
	cfg.Verbose = true
	cfg.Trace = os.Stdout
	cfg.Logger = logger

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	out, err := selfplay.PlayGame(ctx, cfg, agents, nil)
	if err != nil {
		logger.Error("game failed", "error", err)
		os.Exit(1)
	}

	printSummary(out)

	path, err := store.WriteArchiveBatchParquetAtomic(*outDir, out.Rows)
	if err != nil {
		logger.Error("write archive", "error", err)
		os.Exit(1)
	}
	logger.Info("debug game written", "game_id", out.Result.GameID, "path", path)
}

// printSummary lists each snake's moves as a compact string, with * marking
// turns where the collision check overrode the plan.
func printSummary(out selfplay.PlayGameOutcome) {
	letters := map[game.Direction]string{game.North: "U", game.East: "R", game.South: "D", game.West: "L"}
	moves := make(map[string]*strings.Builder)
	var ids []string
	for _, row := range out.Rows {
		for _, s := range row.Snakes {
			if s.Move < 0 {
				continue
			}
			sb, ok := moves[s.ID]
			if !ok {
				sb = &strings.Builder{}
				moves[s.ID] = sb
				ids = append(ids, s.ID)
			}
			sb.WriteString(letters[game.Direction(s.Move)])
			if s.Avoided {
				sb.WriteByte('*')
			}
		}
	}

	winner := out.Result.WinnerId
	if winner == "" {
		winner = "draw"
	}
	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Printf("  Game %s: %d turns, winner %s\n", out.Result.GameID, out.Result.Steps, winner)
	for _, id := range ids {
		cause := out.Result.Causes[id]
		if cause == "" {
			cause = "survived"
		}
		fmt.Printf("  %s (%s, %s): %s\n", id, out.Result.Agents[id], cause, moves[id].String())
	}
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println()
}
