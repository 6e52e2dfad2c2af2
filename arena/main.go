// Command arena plays self-play games between agents, archives every turn to
// Parquet and summarises the archive with DuckDB when it stops.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/snekbfs/logging"
	"github.com/brensch/snekbfs/rules"
	"github.com/brensch/snekbfs/selfplay"
	"github.com/brensch/snekbfs/stats"
	"github.com/brensch/snekbfs/store"
)

var totalMoves atomic.Int64

func main() {
	outDir := flag.String("out-dir", getEnvOrDefault("OUT_DIR", "data/arena"), "Output directory for archived games")
	workers := flag.Int("workers", getEnvIntOrDefault("WORKERS", 8), "Number of self-play workers")
	gamesPerFlush := flag.Int("games-per-flush", getEnvIntOrDefault("GAMES_PER_FLUSH", 50), "Games to buffer per parquet flush")
	maxGames := flag.Int64("max-games", int64(getEnvIntOrDefault("MAX_GAMES", 0)), "Stop after this many games (0 = until interrupted)")
	maxTurns := flag.Int("max-turns", getEnvIntOrDefault("MAX_TURNS", 1000), "Declare a draw after this many turns")
	size := flag.Int("size", getEnvIntOrDefault("BOARD_SIZE", rules.StandardSize), "Board width and height")
	agentList := flag.String("agents", getEnvOrDefault("AGENTS", "bfs,first-legal"), "Comma separated agents, one snake each: bfs, first-legal")
	minFood := flag.Int("min-food", getEnvIntOrDefault("MIN_FOOD", rules.DefaultFoodSettings.MinimumFood), "Minimum food on the board")
	foodChance := flag.Int("food-chance", getEnvIntOrDefault("FOOD_CHANCE", rules.DefaultFoodSettings.FoodSpawnChance), "Percent chance of extra food each turn")
	seed := flag.Int64("seed", 0, "Fix game randomness (0 = clock)")
	noTUI := flag.Bool("no-tui", getEnvBoolOrDefault("NO_TUI", false), "Log progress instead of showing the terminal UI")
	report := flag.Bool("report", getEnvBoolOrDefault("REPORT", true), "Print a DuckDB summary of out-dir on exit")
	trace := flag.Bool("trace", false, "Print every board of worker 0's games")
	logFormat := flag.String("log-format", getEnvOrDefault("LOG_FORMAT", logging.FormatText), "pretty, json or text")
	logLevel := flag.String("log-level", getEnvOrDefault("LOG_LEVEL", "info"), "debug, info, warn or error")
	flag.Parse()

	// The TUI owns the terminal, so logs go to a file while it runs.
	logOut := os.Stderr
	if !*noTUI {
		f, err := os.OpenFile("arena.log", os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open arena.log: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	logger, err := logging.New(logOut, *logFormat, *logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	agents, err := parseAgents(*agentList)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg := selfplay.DefaultConfig()
	cfg.Width, cfg.Height = int32(*size), int32(*size)
	cfg.MaxTurns = int32(*maxTurns)
	cfg.Food = rules.FoodSettings{MinimumFood: *minFood, FoodSpawnChance: *foodChance}
	cfg.Seed = *seed
	cfg.Source = "arena"
	cfg.Logger = logger
	cfg.Verbose = *trace
	cfg.Trace = os.Stdout

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.Info("starting arena", "workers", *workers, "agents", *agentList, "size", *size, "out_dir", *outDir)

	writeReqs := make(chan []store.ArchiveTurnRow, (*workers)*4)
	writerDone := make(chan struct{})
	go func() {
		parquetWriterLoop(logger, *outDir, *gamesPerFlush, writeReqs)
		close(writerDone)
	}()

	updates := selfplay.RunWorkers(ctx, *workers, *maxGames, cfg, agents, func() { totalMoves.Add(1) })
	archive := func(u selfplay.GameUpdate) { writeReqs <- u.Rows }

	if *noTUI {
		runPlain(ctx, logger, updates, archive)
	} else {
		p := tea.NewProgram(initialModel(updates, archive), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			logger.Error("tui failed", "error", err)
		}
		// Quitting the UI stops the run; finish draining so no game is lost.
		cancel()
		for u := range updates {
			archive(u)
		}
	}

	close(writeReqs)
	<-writerDone
	logger.Info("shutdown complete")

	if *report {
		if err := printReport(*outDir); err != nil {
			fmt.Fprintf(os.Stderr, "report: %v\n", err)
		}
	}
}

func runPlain(ctx context.Context, logger *slog.Logger, updates <-chan selfplay.GameUpdate, archive func(selfplay.GameUpdate)) {
	start := time.Now()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	games := 0
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return
			}
			archive(u)
			games++
			logger.Info(describeGame(u))
		case <-ticker.C:
			secs := time.Since(start).Seconds()
			logger.Info("stats", "games", games, "moves_per_sec", fmt.Sprintf("%.1f", float64(totalMoves.Load())/secs))
		case <-ctx.Done():
			// Workers finish their current game; keep draining until they exit.
			for u := range updates {
				archive(u)
			}
			return
		}
	}
}

func parseAgents(list string) ([]selfplay.Agent, error) {
	var agents []selfplay.Agent
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		a, ok := selfplay.AgentByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown agent %q", name)
		}
		agents = append(agents, a)
	}
	if len(agents) == 0 {
		return nil, fmt.Errorf("no agents")
	}
	return agents, nil
}

func parquetWriterLoop(logger *slog.Logger, outDir string, gamesPerFlush int, in <-chan []store.ArchiveTurnRow) {
	if gamesPerFlush <= 0 {
		gamesPerFlush = 50
	}
	pending := make([]store.ArchiveTurnRow, 0, 256*gamesPerFlush)
	pendingGames := 0

	flush := func(reason string) {
		if pendingGames == 0 {
			return
		}
		path, err := store.WriteArchiveBatchParquetAtomic(outDir, pending)
		if err != nil {
			logger.Error("parquet flush failed", "reason", reason, "games", pendingGames, "rows", len(pending), "error", err)
		} else {
			logger.Info("parquet flush ok", "reason", reason, "path", path, "games", pendingGames, "rows", len(pending))
		}
		pending = pending[:0]
		pendingGames = 0
	}

	for rows := range in {
		if len(rows) == 0 {
			continue
		}
		pending = append(pending, rows...)
		pendingGames++
		if pendingGames >= gamesPerFlush {
			flush("count")
		}
	}
	flush("final")
}

func printReport(outDir string) error {
	db, err := stats.Open([]string{outDir})
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return db.Report(ctx, os.Stdout)
}

// Environment variable helpers
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		var i int
		if _, err := fmt.Sscanf(val, "%d", &i); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}
