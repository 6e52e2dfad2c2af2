// Package exporter turns downloaded games into archive rows so real games can
// be queried alongside self-play.
package exporter

import (
	"github.com/brensch/snekbfs/game"
	"github.com/brensch/snekbfs/replay/downloader"
	"github.com/brensch/snekbfs/replay/score"
	"github.com/brensch/snekbfs/store"
)

const Source = "replay"

// Rows converts a game's frames to one archive row per frame. Each snake's
// Move is the direction its head took to the next frame; Agent is the
// snake's display name. Planned is left at -1: these moves were not searched.
func Rows(gameID string, width, height int, frames []downloader.FrameData) []store.ArchiveTurnRow {
	if len(frames) == 0 {
		return nil
	}

	names := make(map[string]string)
	for _, f := range frames {
		for _, s := range f.Snakes {
			names[s.ID] = s.Name
		}
	}
	winner := ""
	if last := frames[len(frames)-1]; len(last.Snakes) > 1 {
		var alive []string
		for _, s := range last.Snakes {
			if s.Alive() {
				alive = append(alive, s.ID)
			}
		}
		if len(alive) == 1 {
			winner = alive[0]
		}
	}

	rows := make([]store.ArchiveTurnRow, 0, len(frames))
	for i, f := range frames {
		row := store.NewTurnRow(gameID, Source, score.FrameState(f, width, height))
		row.Winner = winner

		var next map[string]downloader.SnakeData
		if i+1 < len(frames) {
			next = make(map[string]downloader.SnakeData, len(frames[i+1].Snakes))
			for _, s := range frames[i+1].Snakes {
				next[s.ID] = s
			}
		}

		for _, s := range f.Snakes {
			sr := row.Snake(s.ID)
			if sr == nil {
				continue
			}
			sr.Agent = names[s.ID]
			if s.Death != nil && s.Death.Turn == f.Turn {
				sr.Cause = s.Death.Cause
			}
			after, ok := next[s.ID]
			if !s.Alive() || !ok || len(after.Body) == 0 || len(s.Body) == 0 {
				continue
			}
			from := game.Point{X: int32(s.Body[0].X), Y: int32(s.Body[0].Y)}
			to := game.Point{X: int32(after.Body[0].X), Y: int32(after.Body[0].Y)}
			if d, ok := game.DirectionBetween(from, to); ok {
				sr.Move = int32(d)
			}
		}
		rows = append(rows, row)
	}
	return rows
}
