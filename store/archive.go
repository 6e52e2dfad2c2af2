// Package store persists played games as Parquet archives.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/brensch/snekbfs/game"
)

const ArchiveSchema = "archive_turn_v2"

// ArchiveTurnRow is a single (game, turn) snapshot.
//
// One row per turn, nested snake data. The snake entries carry the move each
// snake made from this position and, for search-driven agents, how the move
// was chosen. The final row of a game is the terminal position and has Move -1
// for every snake.
type ArchiveTurnRow struct {
	GameID string `parquet:"game_id,dict"`
	Turn   int32  `parquet:"turn"`
	Width  int32  `parquet:"width"`
	Height int32  `parquet:"height"`

	FoodX []int32 `parquet:"food_x"`
	FoodY []int32 `parquet:"food_y"`

	Snakes []ArchiveSnake `parquet:"snakes"`

	Source string `parquet:"source,dict"`
	// Winner is the id of the surviving snake, "" for draws. Filled in on
	// every row once the game has finished.
	Winner string `parquet:"winner,dict"`
}

type ArchiveSnake struct {
	ID     string `parquet:"id,dict"`
	Agent  string `parquet:"agent,dict"`
	Alive  bool   `parquet:"alive"`
	Health int32  `parquet:"health"`

	BodyX []int32 `parquet:"body_x"`
	BodyY []int32 `parquet:"body_y"`

	// Move is the direction taken (game.Direction), -1 when unknown.
	Move int32 `parquet:"move"`
	// Planned is the search result before collision avoidance, -1 when the
	// agent does not search.
	Planned   int32 `parquet:"planned"`
	FoundFood bool  `parquet:"found_food"`
	Fallback  bool  `parquet:"fallback"`
	Avoided   bool  `parquet:"avoided"`

	// Cause is set on the row where the snake was eliminated.
	Cause string `parquet:"cause,dict"`
}

// NewTurnRow snapshots state. Snakes are ordered by id so rows are stable.
func NewTurnRow(gameID, source string, state *game.GameState) ArchiveTurnRow {
	row := ArchiveTurnRow{
		GameID: gameID,
		Turn:   state.Turn,
		Width:  state.Width,
		Height: state.Height,
		Source: source,
	}
	if len(state.Food) > 0 {
		row.FoodX = make([]int32, 0, len(state.Food))
		row.FoodY = make([]int32, 0, len(state.Food))
		for _, p := range state.Food {
			row.FoodX = append(row.FoodX, p.X)
			row.FoodY = append(row.FoodY, p.Y)
		}
	}

	snakes := make([]game.Snake, len(state.Snakes))
	copy(snakes, state.Snakes)
	sort.Slice(snakes, func(i, j int) bool { return snakes[i].Id < snakes[j].Id })

	row.Snakes = make([]ArchiveSnake, 0, len(snakes))
	for _, s := range snakes {
		sr := ArchiveSnake{
			ID:      s.Id,
			Alive:   s.Alive(),
			Health:  s.Health,
			Move:    -1,
			Planned: -1,
		}
		if len(s.Body) > 0 {
			sr.BodyX = make([]int32, 0, len(s.Body))
			sr.BodyY = make([]int32, 0, len(s.Body))
			for _, bp := range s.Body {
				sr.BodyX = append(sr.BodyX, bp.X)
				sr.BodyY = append(sr.BodyY, bp.Y)
			}
		}
		row.Snakes = append(row.Snakes, sr)
	}
	return row
}

// State rebuilds the game state recorded in the row.
func (r ArchiveTurnRow) State() *game.GameState {
	state := &game.GameState{
		Width:  r.Width,
		Height: r.Height,
		Turn:   r.Turn,
	}
	for i := range r.FoodX {
		if i < len(r.FoodY) {
			state.Food = append(state.Food, game.Point{X: r.FoodX[i], Y: r.FoodY[i]})
		}
	}
	for _, s := range r.Snakes {
		sn := game.Snake{Id: s.ID, Health: s.Health}
		if !s.Alive {
			sn.Health = 0
		}
		for i := range s.BodyX {
			if i < len(s.BodyY) {
				sn.Body = append(sn.Body, game.Point{X: s.BodyX[i], Y: s.BodyY[i]})
			}
		}
		state.Snakes = append(state.Snakes, sn)
	}
	return state
}

// Snake returns the entry for id.
func (r *ArchiveTurnRow) Snake(id string) *ArchiveSnake {
	for i := range r.Snakes {
		if r.Snakes[i].ID == id {
			return &r.Snakes[i]
		}
	}
	return nil
}

// WriteArchiveBatchParquetAtomic writes a Parquet file into outDir/tmp and then
// atomically moves it into outDir, so readers never observe partial files.
func WriteArchiveBatchParquetAtomic(outDir string, rows []ArchiveTurnRow) (string, error) {
	if len(rows) == 0 {
		return "", fmt.Errorf("no rows to write")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("batch_%d.parquet", time.Now().UnixNano())
	finalPath := filepath.Join(outDir, name)
	tmpPath := filepath.Join(tmpDir, name+".tmp")
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", ArchiveSchema),
	); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}

	return finalPath, nil
}

// ReadArchive loads every row of an archive file.
func ReadArchive(path string) ([]ArchiveTurnRow, error) {
	rows, err := parquet.ReadFile[ArchiveTurnRow](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	return rows, nil
}
