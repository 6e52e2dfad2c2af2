package rules

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand"

	"github.com/brensch/snekbfs/game"
)

// FoodSettings matches the Battlesnake server knobs:
// - MinimumFood: at least this many food items exist after each turn
// - FoodSpawnChance: percentage chance (0-100) to spawn one extra food each turn
//
// With a nil rng the spawn is derived from a hash of the state, so replaying
// the same moves reproduces the same board.
type FoodSettings struct {
	MinimumFood     int
	FoodSpawnChance int
}

var DefaultFoodSettings = FoodSettings{MinimumFood: 1, FoodSpawnChance: 15}

func (s FoodSettings) clamped() FoodSettings {
	s.MinimumFood = max(s.MinimumFood, 0)
	s.FoodSpawnChance = min(max(s.FoodSpawnChance, 0), 100)
	return s
}

func applyFoodRules(state *game.GameState, rng *rand.Rand, settings FoodSettings, salt uint64) {
	if state == nil || state.Width <= 0 || state.Height <= 0 {
		return
	}
	settings = settings.clamped()

	toSpawn := max(settings.MinimumFood-len(state.Food), 0)
	if settings.FoodSpawnChance > 0 {
		var roll int
		if rng != nil {
			roll = rng.Intn(100)
		} else {
			roll = int(stateHash(state, salt^0xF00D) % 100)
		}
		if roll < settings.FoodSpawnChance {
			toSpawn++
		}
	}
	if toSpawn == 0 {
		return
	}

	if rng == nil {
		seed := int64(stateHash(state, salt))
		if seed == 0 {
			seed = 1
		}
		rng = rand.New(rand.NewSource(seed))
	}

	// Free cells: not food and not under a live snake.
	grid := game.NewGrid(state)
	available := make([]game.Point, 0, int(state.Width*state.Height))
	for y := int32(0); y < state.Height; y++ {
		for x := int32(0); x < state.Width; x++ {
			p := game.Point{X: x, Y: y}
			if grid.IsLethal(p) || grid.HasFood(p) {
				continue
			}
			available = append(available, p)
		}
	}

	for ; toSpawn > 0 && len(available) > 0; toSpawn-- {
		i := rng.Intn(len(available))
		state.Food = append(state.Food, available[i])
		available[i] = available[len(available)-1]
		available = available[:len(available)-1]
	}
}

// ApplyFoodSettings spawns food on an existing state, e.g. to enforce
// MinimumFood on the opening board.
func ApplyFoodSettings(state *game.GameState, rng *rand.Rand, settings FoodSettings) {
	applyFoodRules(state, rng, settings, 0x464F4F445F494E49)
}

// stateHash mixes board size, turn, salt, food count and live heads.
func stateHash(state *game.GameState, salt uint64) uint64 {
	h := fnv.New64a()
	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], uint64(uint32(state.Width))|(uint64(uint32(state.Height))<<32))
	_, _ = h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(uint32(state.Turn)))
	_, _ = h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], salt)
	_, _ = h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(len(state.Food)))
	_, _ = h.Write(buf[:])

	for _, s := range state.Snakes {
		if !s.Alive() {
			continue
		}
		_, _ = h.Write([]byte(s.Id))
		head := s.Head()
		binary.LittleEndian.PutUint64(buf[:], (uint64(uint32(head.X))<<32)|uint64(uint32(head.Y)))
		_, _ = h.Write(buf[:])
	}

	return h.Sum64()
}
