package rules

import (
	"fmt"
	"math/rand"

	"github.com/brensch/snekbfs/game"
)

const (
	StandardSize = 11
	StartLength  = 3
)

// InitialState lays out a standard board: snakes stacked on spawn points near
// the corners and edge midpoints, one food diagonal to each snake and one in
// the centre. Spawn order is shuffled by rng.
func InitialState(rng *rand.Rand, width, height int32, ids []string) (*game.GameState, error) {
	if width < 7 || height < 7 {
		return nil, fmt.Errorf("board %dx%d is too small", width, height)
	}
	spawns := []game.Point{
		{X: 1, Y: 1},
		{X: width - 2, Y: height - 2},
		{X: 1, Y: height - 2},
		{X: width - 2, Y: 1},
		{X: width / 2, Y: 1},
		{X: width / 2, Y: height - 2},
		{X: 1, Y: height / 2},
		{X: width - 2, Y: height / 2},
	}
	if len(ids) == 0 || len(ids) > len(spawns) {
		return nil, fmt.Errorf("need 1-%d snakes, got %d", len(spawns), len(ids))
	}
	if rng != nil {
		rng.Shuffle(len(spawns), func(i, j int) { spawns[i], spawns[j] = spawns[j], spawns[i] })
	}

	state := &game.GameState{
		Width:  width,
		Height: height,
		YouId:  ids[0],
	}
	centre := game.Point{X: width / 2, Y: height / 2}
	taken := map[game.Point]bool{centre: true}

	for i, id := range ids {
		at := spawns[i]
		body := make([]game.Point, StartLength)
		for j := range body {
			body[j] = at
		}
		state.Snakes = append(state.Snakes, game.Snake{Id: id, Health: MaxHealth, Body: body})
		taken[at] = true
	}

	// Food one diagonal step toward the centre from each snake.
	for _, s := range state.Snakes {
		at := s.Body[0]
		f := game.Point{X: at.X + sign(centre.X-at.X), Y: at.Y + sign(centre.Y-at.Y)}
		if taken[f] {
			continue
		}
		taken[f] = true
		state.Food = append(state.Food, f)
	}
	state.Food = append(state.Food, centre)

	return state, nil
}

func sign(v int32) int32 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
