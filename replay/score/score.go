// Package score replays recorded games through the search and measures how
// often it picks the move the real snake made.
package score

import (
	"github.com/brensch/snekbfs/brain"
	"github.com/brensch/snekbfs/game"
	"github.com/brensch/snekbfs/replay/downloader"
)

// DefaultSize is assumed when the game's board size was not recorded.
const DefaultSize = 11

type Result struct {
	SnakeID string
	Name    string
	Turns   int
	Agreed  int
	// Lethal counts turns where the search's move was immediately lethal
	// although the real snake survived the turn.
	Lethal int
}

func (r Result) Agreement() float64 {
	if r.Turns == 0 {
		return 0
	}
	return float64(r.Agreed) / float64(r.Turns)
}

// FrameState converts an engine frame into a game state. Snakes the engine
// has marked dead keep their body but get Health 0.
func FrameState(f downloader.FrameData, width, height int) *game.GameState {
	if width <= 0 {
		width = DefaultSize
	}
	if height <= 0 {
		height = DefaultSize
	}
	state := &game.GameState{
		Width:  int32(width),
		Height: int32(height),
		Turn:   int32(f.Turn),
	}
	for _, c := range f.Food {
		state.Food = append(state.Food, point(c))
	}
	for _, c := range f.Hazards {
		state.Hazards = append(state.Hazards, point(c))
	}
	for _, s := range f.Snakes {
		sn := game.Snake{Id: s.ID, Health: int32(s.Health)}
		if !s.Alive() {
			sn.Health = 0
		}
		for _, c := range s.Body {
			sn.Body = append(sn.Body, point(c))
		}
		state.Snakes = append(state.Snakes, sn)
	}
	return state
}

func point(c downloader.Coord) game.Point {
	return game.Point{X: int32(c.X), Y: int32(c.Y)}
}

// Game scores every snake over consecutive frame pairs. A pair counts for a
// snake only when it is alive in both frames and its head moved one cell.
// Snakes never scored are left out; the rest keep frame order.
func Game(frames []downloader.FrameData, width, height int) []Result {
	var order []string
	results := make(map[string]*Result)

	for i := 0; i+1 < len(frames); i++ {
		state := FrameState(frames[i], width, height)
		next := make(map[string]downloader.SnakeData, len(frames[i+1].Snakes))
		for _, s := range frames[i+1].Snakes {
			next[s.ID] = s
		}

		var board game.Board
		for j, s := range frames[i].Snakes {
			after, ok := next[s.ID]
			if !s.Alive() || !ok || !after.Alive() {
				continue
			}
			you := state.Snakes[j]
			actual, ok := game.DirectionBetween(you.Head(), point(after.Body[0]))
			if !ok {
				continue
			}

			r := results[s.ID]
			if r == nil {
				r = &Result{SnakeID: s.ID, Name: s.Name}
				results[s.ID] = r
				order = append(order, s.ID)
			}

			state.YouId = s.ID
			move := brain.Decide(you, state)
			r.Turns++
			if move == actual {
				r.Agreed++
			}
			if board == nil {
				board = state.Board()
			}
			if board.IsLethal(move.Step(you.Head())) {
				r.Lethal++
			}
		}
	}

	out := make([]Result, 0, len(order))
	for _, id := range order {
		out = append(out, *results[id])
	}
	return out
}
