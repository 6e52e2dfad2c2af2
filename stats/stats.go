// Package stats queries archived games with DuckDB.
//
// The archive directories are exposed as a single "turns" view over every
// Parquet file below them, so new batches show up without any import step.
package stats

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

type DB struct {
	db    *sql.DB
	roots []string
}

// Open creates an in-memory DuckDB with a "turns" view over roots. At least
// one root must contain an archive file.
func Open(roots []string) (*DB, error) {
	globs := make([]string, 0, len(roots))
	staging := make([]string, 0, len(roots))
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		root = filepath.Clean(root)
		glob := filepath.Join(root, "**", "*.parquet")
		globs = append(globs, "'"+escapeSQLString(glob)+"'")
		tmp := filepath.Join(root, "tmp") + string(filepath.Separator)
		staging = append(staging, "starts_with(filename, '"+escapeSQLString(tmp)+"')")
	}
	if len(globs) == 0 {
		return nil, fmt.Errorf("no archive roots")
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	_, _ = db.Exec("PRAGMA threads=4")

	// Files still being written live under each root's tmp/ and are skipped.
	sqlText := `CREATE OR REPLACE VIEW turns AS
		SELECT * FROM read_parquet([` + strings.Join(globs, ",") + `], filename=true, union_by_name=true)
		WHERE NOT (` + strings.Join(staging, " OR ") + `)`
	if _, err := db.Exec(sqlText); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create turns view: %w", err)
	}
	return &DB{db: db, roots: roots}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func (d *DB) GamesTotal(ctx context.Context) (int64, error) {
	var total int64
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT game_id) FROM turns`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count games: %w", err)
	}
	return total, nil
}

// AgentStats summarises how one agent fared. Games counts snakes the agent
// controlled, so a game between two copies of an agent counts twice.
type AgentStats struct {
	Agent string
	Games int64
	Wins  int64
	// AvgSurvival is the mean last turn on which the agent's snake was alive.
	AvgSurvival float64
}

func (d *DB) AgentSummary(ctx context.Context) ([]AgentStats, error) {
	const query = `WITH per_snake AS (
		SELECT game_id, winner, turn, s.id AS snake_id, s.agent AS agent, s.alive AS alive
		FROM (SELECT game_id, winner, turn, unnest(snakes) AS s FROM turns)
	),
	per_game AS (
		SELECT agent, game_id, snake_id,
			MAX(CASE WHEN alive THEN turn END) AS last_alive,
			bool_or(snake_id = winner) AS won
		FROM per_snake
		GROUP BY agent, game_id, snake_id
	)
	SELECT agent,
		COUNT(*)::BIGINT AS games,
		SUM(CASE WHEN won THEN 1 ELSE 0 END)::BIGINT AS wins,
		AVG(COALESCE(last_alive, 0))::DOUBLE AS avg_survival
	FROM per_game
	GROUP BY agent
	ORDER BY agent`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("agent summary: %w", err)
	}
	defer rows.Close()

	var out []AgentStats
	for rows.Next() {
		var s AgentStats
		if err := rows.Scan(&s.Agent, &s.Games, &s.Wins, &s.AvgSurvival); err != nil {
			return nil, fmt.Errorf("scan agent summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DecisionStats counts how an agent's moves were reached, over every turn it
// made a move.
type DecisionStats struct {
	Agent     string
	Decisions int64
	FoodFound int64
	Fallbacks int64
	Avoided   int64
}

func (s DecisionStats) AvoidanceRate() float64 {
	if s.Decisions == 0 {
		return 0
	}
	return float64(s.Avoided) / float64(s.Decisions)
}

func (d *DB) AvoidanceRate(ctx context.Context) ([]DecisionStats, error) {
	const query = `SELECT s.agent,
			COUNT(*)::BIGINT,
			SUM(CASE WHEN s.found_food THEN 1 ELSE 0 END)::BIGINT,
			SUM(CASE WHEN s.fallback THEN 1 ELSE 0 END)::BIGINT,
			SUM(CASE WHEN s.avoided THEN 1 ELSE 0 END)::BIGINT
		FROM (SELECT unnest(snakes) AS s FROM turns)
		WHERE s.move >= 0
		GROUP BY s.agent
		ORDER BY s.agent`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("decision stats: %w", err)
	}
	defer rows.Close()

	var out []DecisionStats
	for rows.Next() {
		var s DecisionStats
		if err := rows.Scan(&s.Agent, &s.Decisions, &s.FoodFound, &s.Fallbacks, &s.Avoided); err != nil {
			return nil, fmt.Errorf("scan decision stats: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Report writes a plain-text summary of the archive.
func (d *DB) Report(ctx context.Context, w io.Writer) error {
	total, err := d.GamesTotal(ctx)
	if err != nil {
		return err
	}
	agents, err := d.AgentSummary(ctx)
	if err != nil {
		return err
	}
	decisions, err := d.AvoidanceRate(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Games: %d\n\n", total)
	fmt.Fprintf(w, "%-14s %8s %8s %8s %10s\n", "agent", "snakes", "wins", "win%", "survival")
	for _, a := range agents {
		winPct := 0.0
		if a.Games > 0 {
			winPct = 100 * float64(a.Wins) / float64(a.Games)
		}
		fmt.Fprintf(w, "%-14s %8d %8d %7.1f%% %10.1f\n", a.Agent, a.Games, a.Wins, winPct, a.AvgSurvival)
	}
	fmt.Fprintf(w, "\n%-14s %10s %8s %9s %8s\n", "agent", "decisions", "food", "fallback", "avoided")
	for _, s := range decisions {
		fmt.Fprintf(w, "%-14s %10d %8d %9d %7.2f%%\n", s.Agent, s.Decisions, s.FoodFound, s.Fallbacks, 100*s.AvoidanceRate())
	}
	return nil
}
