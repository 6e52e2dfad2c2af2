// Command replay collects public Battlesnake games and scores the search
// against the moves real snakes made in them.
//
// The pipeline is: crawl the leaderboards for game ids, download each game's
// frames into SQLite, then replay every unscored game through the search.
// With -export-dir set, scored games are also written to the Parquet archive
// so the arena report covers them.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/brensch/snekbfs/logging"
	"github.com/brensch/snekbfs/replay/db"
	"github.com/brensch/snekbfs/replay/discovery"
	"github.com/brensch/snekbfs/replay/downloader"
	"github.com/brensch/snekbfs/replay/exporter"
	"github.com/brensch/snekbfs/replay/score"
	"github.com/brensch/snekbfs/store"
)

func main() {
	dbPath := flag.String("db", getEnvOrDefault("REPLAY_DB", "replay-data/replays.db"), "SQLite database for downloaded games")
	baseURL := flag.String("base-url", getEnvOrDefault("BASE_URL", "https://play.battlesnake.com"), "Site hosting the leaderboards")
	leaderboards := flag.String("leaderboards", getEnvOrDefault("LEADERBOARDS", "/leaderboard/standard,/leaderboard/standard-duels"), "Comma separated leaderboard paths")
	engineURL := flag.String("engine-url", getEnvOrDefault("ENGINE_URL", downloader.DefaultConfig().EngineURL), "Websocket URL template for game events")
	maxPlayers := flag.Int("max-players", getEnvIntOrDefault("MAX_PLAYERS", 50), "Players to check per leaderboard")
	requestDelay := flag.Duration("delay", getEnvDurationOrDefault("DELAY", 500*time.Millisecond), "Delay between HTTP requests")
	workers := flag.Int("workers", getEnvIntOrDefault("WORKERS", 4), "Concurrent downloads")
	scoreOnly := flag.Bool("score-only", getEnvBoolOrDefault("SCORE_ONLY", false), "Skip crawling and only score stored games")
	scoreBatch := flag.Int("score-batch", getEnvIntOrDefault("SCORE_BATCH", 500), "Games to score per pass")
	exportDir := flag.String("export-dir", getEnvOrDefault("EXPORT_DIR", ""), "Write scored games as Parquet archives here (empty disables)")
	logFormat := flag.String("log-format", getEnvOrDefault("LOG_FORMAT", logging.FormatPretty), "pretty, json or text")
	logLevel := flag.String("log-level", getEnvOrDefault("LOG_LEVEL", "info"), "debug, info, warn or error")
	flag.Parse()

	logger, err := logging.New(os.Stderr, *logFormat, *logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if dir := filepath.Dir(*dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("create db dir", "error", err)
			os.Exit(1)
		}
	}
	database, err := db.New(*dbPath)
	if err != nil {
		logger.Error("open db", "path", *dbPath, "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if !*scoreOnly {
		known, err := database.GetAllGameIDs()
		if err != nil {
			logger.Error("load known games", "error", err)
			os.Exit(1)
		}
		logger.Info("starting crawl", "known_games", len(known), "max_players", *maxPlayers)

		discCfg := discovery.DefaultConfig()
		discCfg.BaseURL = *baseURL
		discCfg.Leaderboards = splitList(*leaderboards)
		discCfg.RequestDelay = *requestDelay
		discCfg.MaxPlayers = *maxPlayers

		dlCfg := downloader.DefaultConfig()
		dlCfg.EngineURL = *engineURL
		dlCfg.NumWorkers = *workers

		crawl(ctx, logger, database, discCfg, dlCfg, known)
	}

	if ctx.Err() != nil {
		logger.Info("interrupted; skipping scoring")
		return
	}
	if err := scoreAll(ctx, logger, database, *scoreBatch, *exportDir); err != nil {
		logger.Error("scoring failed", "error", err)
		os.Exit(1)
	}
}

func crawl(ctx context.Context, logger *slog.Logger, database *db.DB, discCfg discovery.Config, dlCfg downloader.Config, known map[string]bool) {
	ids := make(chan string, 1000)
	disc := discovery.NewWorker(discCfg, known, logger)
	go func() {
		defer close(ids)
		if err := disc.Discover(ctx, ids); err != nil && ctx.Err() == nil {
			logger.Error("discovery failed", "error", err)
		}
	}()

	dl := downloader.NewWorker(dlCfg, database, logger)
	done := make(chan struct{})
	go func() {
		dl.Run(ctx, ids)
		close(done)
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			st := dl.GetStats()
			logger.Info("crawl complete", "downloaded", st.GamesDownloaded, "skipped", st.GamesSkipped, "failed", st.GamesFailed, "frames", st.FramesTotal)
			return
		case <-ticker.C:
			st := dl.GetStats()
			logger.Info("progress", "downloaded", st.GamesDownloaded, "skipped", st.GamesSkipped, "failed", st.GamesFailed)
		}
	}
}

// scoreAll replays every unprocessed game in batches. Each batch is exported
// as one archive file when exportDir is set.
func scoreAll(ctx context.Context, logger *slog.Logger, database *db.DB, batch int, exportDir string) error {
	if batch <= 0 {
		batch = 500
	}
	scored := 0
	for ctx.Err() == nil {
		games, err := database.GetUnprocessedGames(batch)
		if err != nil {
			return fmt.Errorf("load unprocessed games: %w", err)
		}
		if len(games) == 0 {
			break
		}
		var rows []store.ArchiveTurnRow
		for _, g := range games {
			gameRows, err := scoreGame(database, g)
			if err != nil {
				return err
			}
			if exportDir != "" {
				rows = append(rows, gameRows...)
			}
			scored++
		}
		if len(rows) > 0 {
			path, err := store.WriteArchiveBatchParquetAtomic(exportDir, rows)
			if err != nil {
				return fmt.Errorf("export batch: %w", err)
			}
			logger.Info("exported batch", "path", path, "rows", len(rows))
		}
		logger.Info("scored batch", "games", len(games), "total", scored)
	}

	total, err := database.ScoreTotals()
	if err != nil {
		return fmt.Errorf("score totals: %w", err)
	}
	agreement := 0.0
	if total.Turns > 0 {
		agreement = float64(total.Agreed) / float64(total.Turns)
	}
	games, processed, frames, err := database.Stats()
	if err != nil {
		return fmt.Errorf("db stats: %w", err)
	}
	logger.Info("scoring complete",
		"games", games,
		"processed", processed,
		"frames", frames,
		"turns_compared", total.Turns,
		"agreement", fmt.Sprintf("%.3f", agreement),
		"lethal", total.Lethal,
	)
	return nil
}

// scoreGame saves the scores of one game and returns its archive rows.
func scoreGame(database *db.DB, g db.Game) ([]store.ArchiveTurnRow, error) {
	stored, err := database.GetGameFrames(g.ID)
	if err != nil {
		return nil, fmt.Errorf("frames of %s: %w", g.ID, err)
	}
	frames, err := downloader.ParseFrames(stored)
	if err != nil {
		// Unreadable games are marked processed so they are not retried.
		slog.Warn("skipping unreadable game", "game_id", g.ID, "error", err)
		return nil, database.SaveScores(g.ID, nil)
	}

	results := score.Game(frames, g.Width, g.Height)
	scores := make([]db.Score, 0, len(results))
	for _, r := range results {
		scores = append(scores, db.Score{
			GameID:  g.ID,
			SnakeID: r.SnakeID,
			Name:    r.Name,
			Turns:   r.Turns,
			Agreed:  r.Agreed,
			Lethal:  r.Lethal,
		})
	}
	if err := database.SaveScores(g.ID, scores); err != nil {
		return nil, fmt.Errorf("save scores of %s: %w", g.ID, err)
	}
	return exporter.Rows(g.ID, g.Width, g.Height, frames), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
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

func getEnvDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
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
