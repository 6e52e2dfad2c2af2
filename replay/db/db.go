// Package db keeps downloaded replays in SQLite: one row per game, the raw
// frame JSON per turn, and the per-snake scores computed from them.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection. SQLite has a single writer, so every
// operation is serialised.
type DB struct {
	conn *sql.DB
	mu   sync.Mutex
}

type Game struct {
	ID          string
	Winner      string
	Ruleset     string
	Width       int
	Height      int
	CrawledAt   time.Time
	IsProcessed bool
}

// Frame is one turn of a game as received from the engine.
type Frame struct {
	GameID  string
	Turn    int
	RawJSON string
}

// Score is how closely the search matched one real snake over one game.
type Score struct {
	GameID  string
	SnakeID string
	Name    string
	// Turns counts the moves compared.
	Turns  int
	Agreed int
	// Lethal counts turns where the search's move would have died on the
	// spot while the real snake survived.
	Lethal int
}

func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS games (
		id TEXT PRIMARY KEY,
		winner TEXT,
		ruleset TEXT,
		width INTEGER,
		height INTEGER,
		crawled_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		is_processed BOOLEAN DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS frames (
		game_id TEXT,
		turn INTEGER,
		raw_json TEXT,
		PRIMARY KEY (game_id, turn),
		FOREIGN KEY(game_id) REFERENCES games(id)
	);

	CREATE TABLE IF NOT EXISTS scores (
		game_id TEXT,
		snake_id TEXT,
		name TEXT,
		turns INTEGER,
		agreed INTEGER,
		lethal INTEGER,
		PRIMARY KEY (game_id, snake_id),
		FOREIGN KEY(game_id) REFERENCES games(id)
	);

	CREATE INDEX IF NOT EXISTS idx_games_is_processed ON games(is_processed);
	CREATE INDEX IF NOT EXISTS idx_frames_game_id ON frames(game_id);
	`

	db.mu.Lock()
	defer db.mu.Unlock()
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (db *DB) GameExists(gameID string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var one int
	err := db.conn.QueryRow("SELECT 1 FROM games WHERE id = ?", gameID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// InsertGame stores a game and its frames in one transaction. Games already
// present are left untouched.
func (db *DB) InsertGame(game Game, frames []Frame) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT OR IGNORE INTO games (id, winner, ruleset, width, height) VALUES (?, ?, ?, ?, ?)",
		game.ID, game.Winner, game.Ruleset, game.Width, game.Height,
	); err != nil {
		return fmt.Errorf("insert game: %w", err)
	}

	stmt, err := tx.Prepare("INSERT OR IGNORE INTO frames (game_id, turn, raw_json) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare frame insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range frames {
		if _, err := stmt.Exec(f.GameID, f.Turn, f.RawJSON); err != nil {
			return fmt.Errorf("insert frame %d: %w", f.Turn, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (db *DB) GetUnprocessedGames(limit int) ([]Game, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query(
		"SELECT id, winner, ruleset, width, height, crawled_at, is_processed FROM games WHERE is_processed = 0 ORDER BY id LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []Game
	for rows.Next() {
		var g Game
		if err := rows.Scan(&g.ID, &g.Winner, &g.Ruleset, &g.Width, &g.Height, &g.CrawledAt, &g.IsProcessed); err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

func (db *DB) GetGameFrames(gameID string) ([]Frame, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query(
		"SELECT game_id, turn, raw_json FROM frames WHERE game_id = ? ORDER BY turn",
		gameID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []Frame
	for rows.Next() {
		var f Frame
		if err := rows.Scan(&f.GameID, &f.Turn, &f.RawJSON); err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// SaveScores replaces the scores of a game and marks it processed.
func (db *DB) SaveScores(gameID string, scores []Score) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM scores WHERE game_id = ?", gameID); err != nil {
		return fmt.Errorf("clear scores: %w", err)
	}
	for _, s := range scores {
		if _, err := tx.Exec(
			"INSERT INTO scores (game_id, snake_id, name, turns, agreed, lethal) VALUES (?, ?, ?, ?, ?, ?)",
			gameID, s.SnakeID, s.Name, s.Turns, s.Agreed, s.Lethal,
		); err != nil {
			return fmt.Errorf("insert score %s: %w", s.SnakeID, err)
		}
	}
	if _, err := tx.Exec("UPDATE games SET is_processed = 1 WHERE id = ?", gameID); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return tx.Commit()
}

// ScoreTotals sums every stored score.
func (db *DB) ScoreTotals() (Score, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var s Score
	err := db.conn.QueryRow(
		"SELECT COALESCE(SUM(turns), 0), COALESCE(SUM(agreed), 0), COALESCE(SUM(lethal), 0) FROM scores",
	).Scan(&s.Turns, &s.Agreed, &s.Lethal)
	return s, err
}

func (db *DB) Stats() (totalGames, processedGames, totalFrames int64, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err = db.conn.QueryRow("SELECT COUNT(*) FROM games").Scan(&totalGames); err != nil {
		return
	}
	if err = db.conn.QueryRow("SELECT COUNT(*) FROM games WHERE is_processed = 1").Scan(&processedGames); err != nil {
		return
	}
	err = db.conn.QueryRow("SELECT COUNT(*) FROM frames").Scan(&totalFrames)
	return
}

func (db *DB) GetAllGameIDs() (map[string]bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query("SELECT id FROM games")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

func (db *DB) Close() error {
	return db.conn.Close()
}
