// Package downloader fetches complete games from the Battlesnake engine's
// websocket event stream.
package downloader

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brensch/snekbfs/replay/db"
)

type Config struct {
	NumWorkers int
	// EngineURL is a websocket URL template with one %s for the game id.
	EngineURL      string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		NumWorkers:     4,
		EngineURL:      "wss://engine.battlesnake.com/games/%s/events",
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    30 * time.Second,
	}
}

type Stats struct {
	GamesDownloaded int64
	GamesSkipped    int64
	GamesFailed     int64
	FramesTotal     int64
}

// Worker downloads games into the replay database.
type Worker struct {
	config Config
	db     *db.DB
	logger *slog.Logger
	stats  Stats
}

func NewWorker(config Config, database *db.DB, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{config: config, db: database, logger: logger.With("component", "downloader")}
}

// Run downloads every id received on ids with NumWorkers goroutines and
// returns once ids is closed and drained, or ctx is done.
func (w *Worker) Run(ctx context.Context, ids <-chan string) {
	n := w.config.NumWorkers
	if n <= 0 {
		n = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.worker(ctx, workerID, ids)
		}(i)
	}
	wg.Wait()
}

func (w *Worker) worker(ctx context.Context, id int, ids <-chan string) {
	logger := w.logger.With("worker", id)
	for {
		var gameID string
		select {
		case <-ctx.Done():
			return
		case next, ok := <-ids:
			if !ok {
				return
			}
			gameID = next
		}

		exists, err := w.db.GameExists(gameID)
		if err != nil {
			logger.Error("lookup failed", "game_id", gameID, "error", err)
			continue
		}
		if exists {
			atomic.AddInt64(&w.stats.GamesSkipped, 1)
			continue
		}

		g, frames, err := Download(ctx, w.config, gameID)
		if err != nil {
			logger.Warn("download failed", "game_id", gameID, "error", err)
			atomic.AddInt64(&w.stats.GamesFailed, 1)
			continue
		}
		if err := w.db.InsertGame(g, frames); err != nil {
			logger.Error("store failed", "game_id", gameID, "error", err)
			atomic.AddInt64(&w.stats.GamesFailed, 1)
			continue
		}

		atomic.AddInt64(&w.stats.GamesDownloaded, 1)
		atomic.AddInt64(&w.stats.FramesTotal, int64(len(frames)))
		logger.Info("downloaded", "game_id", gameID, "frames", len(frames), "winner", g.Winner)
	}
}

func (w *Worker) GetStats() Stats {
	return Stats{
		GamesDownloaded: atomic.LoadInt64(&w.stats.GamesDownloaded),
		GamesSkipped:    atomic.LoadInt64(&w.stats.GamesSkipped),
		GamesFailed:     atomic.LoadInt64(&w.stats.GamesFailed),
		FramesTotal:     atomic.LoadInt64(&w.stats.FramesTotal),
	}
}

// GameEvent is one message of the engine event stream.
type GameEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type GameInfo struct {
	Game    GameDetails `json:"game"`
	Ruleset RulesetInfo `json:"ruleset"`
}

type GameDetails struct {
	ID      string `json:"id"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Timeout int    `json:"timeout"`
}

type RulesetInfo struct {
	Name     string          `json:"name"`
	Version  string          `json:"version"`
	Settings json.RawMessage `json:"settings"`
}

// FrameData is the payload of a "frame" event. The engine capitalises keys;
// encoding/json matches them case-insensitively.
type FrameData struct {
	Turn    int         `json:"turn"`
	Snakes  []SnakeData `json:"snakes"`
	Food    []Coord     `json:"food"`
	Hazards []Coord     `json:"hazards"`
}

type SnakeData struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Health int     `json:"health"`
	Body   []Coord `json:"body"`
	Author string  `json:"author,omitempty"`
	Death  *Death  `json:"death,omitempty"`
}

func (s SnakeData) Alive() bool {
	return s.Death == nil && s.Health > 0 && len(s.Body) > 0
}

type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Death struct {
	Cause string `json:"cause"`
	Turn  int    `json:"turn"`
}

// Download reads the event stream of one game until the engine ends it.
func Download(ctx context.Context, config Config, gameID string) (db.Game, []db.Frame, error) {
	url := fmt.Sprintf(config.EngineURL, gameID)
	dialer := websocket.Dialer{HandshakeTimeout: config.ConnectTimeout}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return db.Game{}, nil, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	var (
		frames    []db.Frame
		info      GameInfo
		lastFrame *FrameData
	)

read:
	for {
		if err := ctx.Err(); err != nil {
			return db.Game{}, nil, err
		}
		if config.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(config.ReadTimeout))
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				break
			}
			// Keep what arrived before a timeout or abrupt close.
			if len(frames) > 0 {
				break
			}
			return db.Game{}, nil, fmt.Errorf("read: %w", err)
		}

		var event GameEvent
		if err := json.Unmarshal(message, &event); err != nil {
			continue
		}

		switch event.Type {
		case "game_info":
			_ = json.Unmarshal(event.Data, &info)
		case "frame":
			var fd FrameData
			if err := json.Unmarshal(event.Data, &fd); err != nil {
				continue
			}
			frames = append(frames, db.Frame{GameID: gameID, Turn: fd.Turn, RawJSON: string(event.Data)})
			lastFrame = &fd
		case "game_end":
			break read
		}
	}

	if len(frames) == 0 {
		return db.Game{}, nil, fmt.Errorf("game %s: no frames", gameID)
	}

	return db.Game{
		ID:      gameID,
		Winner:  determineWinner(lastFrame),
		Ruleset: info.Ruleset.Name,
		Width:   info.Game.Width,
		Height:  info.Game.Height,
	}, frames, nil
}

// determineWinner names the only live snake of the final frame, "draw"
// otherwise.
func determineWinner(frame *FrameData) string {
	if frame == nil {
		return "unknown"
	}
	var alive []SnakeData
	for _, s := range frame.Snakes {
		if s.Alive() {
			alive = append(alive, s)
		}
	}
	if len(alive) == 1 {
		return alive[0].Name
	}
	return "draw"
}

// ParseFrames decodes stored frames in turn order.
func ParseFrames(frames []db.Frame) ([]FrameData, error) {
	out := make([]FrameData, 0, len(frames))
	for _, f := range frames {
		var fd FrameData
		if err := json.Unmarshal([]byte(f.RawJSON), &fd); err != nil {
			return nil, fmt.Errorf("frame %d of %s: %w", f.Turn, f.GameID, err)
		}
		out = append(out, fd)
	}
	return out, nil
}
