package score

import (
	"testing"

	"github.com/brensch/snekbfs/game"
	"github.com/brensch/snekbfs/replay/downloader"
)

func body(cells ...[2]int) []downloader.Coord {
	out := make([]downloader.Coord, len(cells))
	for i, c := range cells {
		out[i] = downloader.Coord{X: c[0], Y: c[1]}
	}
	return out
}

// alice is pinned in the bottom-left corner with bob's tail as her only exit.
// The tail moves away, so the real snake survives, but the search treats it as
// a wall and falls back to a lethal move.
func cornerFrames() []downloader.FrameData {
	return []downloader.FrameData{
		{Turn: 0, Snakes: []downloader.SnakeData{
			{ID: "a", Name: "alice", Health: 90, Body: body([2]int{0, 0}, [2]int{0, 1}, [2]int{0, 2})},
			{ID: "b", Name: "bob", Health: 90, Body: body([2]int{2, 1}, [2]int{2, 0}, [2]int{1, 0})},
			{ID: "c", Name: "carl", Health: 90, Body: body([2]int{4, 4}, [2]int{4, 3}, [2]int{4, 2})},
		}},
		{Turn: 1, Snakes: []downloader.SnakeData{
			{ID: "a", Name: "alice", Health: 89, Body: body([2]int{1, 0}, [2]int{0, 0}, [2]int{0, 1})},
			{ID: "b", Name: "bob", Health: 89, Body: body([2]int{2, 2}, [2]int{2, 1}, [2]int{2, 0})},
			{ID: "c", Name: "carl", Health: 0, Body: body([2]int{4, 5}, [2]int{4, 4}, [2]int{4, 3}),
				Death: &downloader.Death{Cause: "wall-collision", Turn: 1}},
		}},
	}
}

func TestFrameState(t *testing.T) {
	frames := cornerFrames()
	frames[0].Food = body([2]int{3, 3})
	frames[0].Hazards = body([2]int{0, 4})

	state := FrameState(frames[0], 5, 5)
	if state.Width != 5 || state.Height != 5 || len(state.Food) != 1 || len(state.Hazards) != 1 {
		t.Fatalf("state=%+v", state)
	}
	if got := state.Snakes[1].Heading(); got != game.North {
		t.Fatalf("bob heading=%v want up", got)
	}

	dead := FrameState(frames[1], 0, 0)
	if dead.Width != DefaultSize || dead.Snakes[2].Alive() {
		t.Fatalf("width=%d carl alive=%v", dead.Width, dead.Snakes[2].Alive())
	}
}

func TestGame(t *testing.T) {
	results := Game(cornerFrames(), 5, 5)
	if len(results) != 2 {
		t.Fatalf("results=%+v want alice and bob only", results)
	}

	alice, bob := results[0], results[1]
	if alice.SnakeID != "a" || alice.Name != "alice" {
		t.Fatalf("first result %+v", alice)
	}
	if alice.Turns != 1 || alice.Agreed != 0 || alice.Lethal != 1 {
		t.Fatalf("alice=%+v want 1 turn, no agreement, 1 lethal", alice)
	}
	if bob.Turns != 1 || bob.Lethal != 0 {
		t.Fatalf("bob=%+v want 1 turn, 0 lethal", bob)
	}
	if alice.Agreement() != 0 {
		t.Fatalf("agreement=%v", alice.Agreement())
	}
}

func TestGame_ForcedMoveAgrees(t *testing.T) {
	// Same corner without bob: east is open and is alice's only move.
	frames := cornerFrames()
	frames[0].Snakes = frames[0].Snakes[:1]
	frames[1].Snakes = frames[1].Snakes[:1]

	results := Game(frames, 5, 5)
	if len(results) != 1 || results[0].Agreed != 1 || results[0].Lethal != 0 {
		t.Fatalf("results=%+v", results)
	}
	if results[0].Agreement() != 1 {
		t.Fatalf("agreement=%v want 1", results[0].Agreement())
	}
}
