package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/brensch/snekbfs/brain"
	"github.com/brensch/snekbfs/game"
	"github.com/brensch/snekbfs/store"
)

// Server answers the Battlesnake API with the breadth-first search. When
// archiveDir is set every game it plays is written to the archive at /end.
type Server struct {
	logger     *slog.Logger
	archiveDir string

	mu    sync.Mutex
	games map[string]*liveGame
	// Games without a turn for idleTimeout are dropped unarchived; the engine
	// does not always send /end.
	idleTimeout time.Duration
	now         func() time.Time
}

type liveGame struct {
	rows     []store.ArchiveTurnRow
	lastSeen time.Time
}

const defaultIdleTimeout = 10 * time.Minute

func NewServer(logger *slog.Logger, archiveDir string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger:     logger,
		archiveDir: archiveDir,
		games:       make(map[string]*liveGame),
		idleTimeout: defaultIdleTimeout,
		now:         time.Now,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/start", s.handleStart)
	mux.HandleFunc("/move", s.handleMove)
	mux.HandleFunc("/end", s.handleEnd)
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, BattlesnakeInfoResponse{
		APIVersion: "1",
		Author:     "snekbfs",
		Color:      "#3e8e41",
		Head:       "default",
		Tail:       "default",
		Version:    "1.0.0",
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req GameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.logger.Info("game started", "game_id", req.Game.ID, "ruleset", req.Game.Ruleset.Name, "you", req.You.Name)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req GameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	state := convertToGameState(&req)
	var you game.Snake
	if p := state.You(); p != nil {
		you = *p
	} else {
		you = convertSnake(req.You)
	}

	d := brain.Explain(you, state)
	s.record(req.Game.ID, state, d)

	s.logger.Info("move",
		"game_id", req.Game.ID,
		"turn", req.Turn,
		"move", d.Move.String(),
		"planned", d.Planned.String(),
		"target", fmt.Sprintf("(%d,%d)", d.Target.X, d.Target.Y),
		"found_food", d.FoundFood,
		"distance", d.Distance,
		"visited", d.Visited,
		"fallback", d.Fallback,
		"avoided", d.Avoided,
		"elapsed", time.Since(start),
	)

	writeJSON(w, MoveResponse{Move: d.Move.String(), Shout: shout(d)})
}

func shout(d brain.Decision) string {
	switch {
	case d.Avoided:
		return "not today"
	case d.Fallback:
		return "uh oh"
	case d.FoundFood:
		return fmt.Sprintf("food in %d", d.Distance)
	}
	return ""
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	var req GameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	youAlive := false
	for _, snake := range req.Board.Snakes {
		if snake.ID == req.You.ID {
			youAlive = true
			break
		}
	}
	result := "lost"
	switch {
	case youAlive:
		result = "won"
	case len(req.Board.Snakes) == 0:
		result = "draw"
	}
	s.logger.Info("game ended", "game_id", req.Game.ID, "turn", req.Turn, "result", result)

	if err := s.finish(&req); err != nil {
		s.logger.Error("archive failed", "game_id", req.Game.ID, "error", err)
	}
	w.WriteHeader(http.StatusOK)
}

// record keeps the turn for the archive. The engine only sends live snakes, so
// every recorded snake is alive.
func (s *Server) record(gameID string, state *game.GameState, d brain.Decision) {
	if s.archiveDir == "" || gameID == "" {
		return
	}
	row := store.NewTurnRow(gameID, "live", state)
	if sr := row.Snake(state.YouId); sr != nil {
		sr.Agent = "bfs"
		sr.Move = int32(d.Move)
		sr.Planned = int32(d.Planned)
		sr.FoundFood = d.FoundFood
		sr.Fallback = d.Fallback
		sr.Avoided = d.Avoided
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.evictIdle(now)
	g, ok := s.games[gameID]
	if !ok {
		g = &liveGame{}
		s.games[gameID] = g
	}
	g.rows = append(g.rows, row)
	g.lastSeen = now
}

// evictIdle drops games that have not seen a turn within idleTimeout.
// Callers hold s.mu.
func (s *Server) evictIdle(now time.Time) {
	for id, g := range s.games {
		if now.Sub(g.lastSeen) > s.idleTimeout {
			delete(s.games, id)
			s.logger.Warn("dropping idle game", "game_id", id, "rows", len(g.rows), "idle", now.Sub(g.lastSeen))
		}
	}
}

// finish adds the final position and writes the game out.
func (s *Server) finish(req *GameRequest) error {
	if s.archiveDir == "" {
		return nil
	}
	s.mu.Lock()
	var rows []store.ArchiveTurnRow
	if g, ok := s.games[req.Game.ID]; ok {
		rows = g.rows
	}
	delete(s.games, req.Game.ID)
	s.mu.Unlock()
	if len(rows) == 0 {
		return nil
	}

	final := convertToGameState(req)
	rows = append(rows, store.NewTurnRow(req.Game.ID, "live", final))

	winner := ""
	if len(req.Board.Snakes) == 1 {
		winner = req.Board.Snakes[0].ID
	}
	for i := range rows {
		rows[i].Winner = winner
	}

	path, err := store.WriteArchiveBatchParquetAtomic(s.archiveDir, rows)
	if err != nil {
		return err
	}
	s.logger.Info("game archived", "game_id", req.Game.ID, "rows", len(rows), "path", path)
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
