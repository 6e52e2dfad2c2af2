// Package rules advances a game.GameState by one simultaneous turn.
//
// It is the local stand-in for the Battlesnake engine: movement, feeding,
// starvation, eliminations and food spawning. Decisions are made elsewhere;
// this package only applies them.
package rules

import (
	"math/rand"

	"github.com/brensch/snekbfs/game"
)

const MaxHealth = 100

// Elimination causes, recorded on the turn a snake dies.
const (
	CauseWall       = "wall-collision"
	CauseBody       = "snake-collision"
	CauseHeadToHead = "head-collision"
	CauseStarved    = "out-of-health"
	CauseNoMove     = "no-move"
)

// LegalMoves returns the moves for snake id that do not immediately leave the
// board or enter a body segment, in game.Directions order.
func LegalMoves(state *game.GameState, id string) []game.Direction {
	var you *game.Snake
	for i := range state.Snakes {
		if state.Snakes[i].Id == id {
			you = &state.Snakes[i]
			break
		}
	}

	if you == nil || !you.Alive() {
		return nil
	}

	board := state.Board()
	head := you.Head()
	moves := make([]game.Direction, 0, 4)
	for _, d := range game.Directions {
		if !board.IsLethal(d.Step(head)) {
			moves = append(moves, d)
		}
	}
	return moves
}

// Step applies one simultaneous move per live snake and returns the next state.
// A live snake without an entry in moves is eliminated. The returned causes map
// holds the snakes eliminated this turn.
func Step(state *game.GameState, moves map[string]game.Direction, rng *rand.Rand, settings FoodSettings) (*game.GameState, map[string]string) {
	newState := state.Clone()
	newState.Turn++
	causes := make(map[string]string)

	// 1. Move heads
	newHeads := make(map[string]game.Point)
	for i := range newState.Snakes {
		s := &newState.Snakes[i]
		if !s.Alive() {
			continue
		}
		move, ok := moves[s.Id]
		if !ok {
			causes[s.Id] = CauseNoMove
			continue
		}
		newHeads[s.Id] = move.Step(s.Body[0])
	}

	// 2. Feed
	eatenFood := make(map[int]bool)
	snakeAte := make(map[string]bool)
	for id, head := range newHeads {
		for i, f := range newState.Food {
			if f == head {
				eatenFood[i] = true
				snakeAte[id] = true
			}
		}
	}

	remainingFood := make([]game.Point, 0, len(newState.Food))
	for i, f := range newState.Food {
		if !eatenFood[i] {
			remainingFood = append(remainingFood, f)
		}
	}
	newState.Food = remainingFood

	// 3. Update bodies: the tail always advances, eating duplicates the new tail.
	for i := range newState.Snakes {
		s := &newState.Snakes[i]
		if !s.Alive() {
			continue
		}
		newHead, ok := newHeads[s.Id]
		if !ok {
			s.Health = 0
			continue
		}

		newBody := make([]game.Point, 0, len(s.Body)+1)
		newBody = append(newBody, newHead)
		newBody = append(newBody, s.Body[:len(s.Body)-1]...)

		if snakeAte[s.Id] {
			s.Health = MaxHealth
			newBody = append(newBody, newBody[len(newBody)-1])
		} else {
			s.Health--
			if s.Health <= 0 {
				causes[s.Id] = CauseStarved
			}
		}
		s.Body = newBody
	}

	// 4. Eliminations are judged against the post-move bodies of every snake
	// that moved this turn.
	moved := func(s game.Snake) bool {
		_, ok := newHeads[s.Id]
		return ok && s.Health > 0
	}

	for _, s := range newState.Snakes {
		if !moved(s) {
			continue
		}
		head := s.Body[0]

		if !newState.InBounds(head) {
			causes[s.Id] = CauseWall
			continue
		}

		for _, other := range newState.Snakes {
			if !moved(other) {
				continue
			}
			for j, p := range other.Body {
				if j == 0 {
					continue
				}
				if p == head {
					causes[s.Id] = CauseBody
				}
			}
		}
	}

	// Head-to-head: the shorter snake dies, equal lengths both die.
	for i := 0; i < len(newState.Snakes); i++ {
		s1 := newState.Snakes[i]
		if !moved(s1) || causes[s1.Id] == CauseWall {
			continue
		}
		for j := i + 1; j < len(newState.Snakes); j++ {
			s2 := newState.Snakes[j]
			if !moved(s2) || causes[s2.Id] == CauseWall {
				continue
			}
			if s1.Body[0] != s2.Body[0] {
				continue
			}
			switch {
			case len(s1.Body) > len(s2.Body):
				setCause(causes, s2.Id, CauseHeadToHead)
			case len(s2.Body) > len(s1.Body):
				setCause(causes, s1.Id, CauseHeadToHead)
			default:
				setCause(causes, s1.Id, CauseHeadToHead)
				setCause(causes, s2.Id, CauseHeadToHead)
			}
		}
	}

	// Eliminated snakes stay in the list with zero health.
	for i := range newState.Snakes {
		if _, dead := causes[newState.Snakes[i].Id]; dead {
			newState.Snakes[i].Health = 0
		}
	}

	applyFoodRules(newState, rng, settings, 0x5354455046)

	return newState, causes
}

func setCause(causes map[string]string, id, cause string) {
	if _, ok := causes[id]; !ok {
		causes[id] = cause
	}
}

// IsGameOver is true when at most one snake is left in a multi-snake game, or
// when the only snake of a solo game has died.
func IsGameOver(state *game.GameState) bool {
	living := state.AliveCount()
	if len(state.Snakes) <= 1 {
		return living == 0
	}
	return living <= 1
}

// Winner returns the id of the last snake standing in a multi-snake game, or
// "" for a draw, a solo game or an unfinished game.
func Winner(state *game.GameState) string {
	if len(state.Snakes) <= 1 || state.AliveCount() != 1 {
		return ""
	}
	for _, s := range state.Snakes {
		if s.Alive() {
			return s.Id
		}
	}
	return ""
}
