// Package brain picks one move per turn with a breadth-first search.
//
// The search heads for the nearest food it can approach without being forced
// to double back after eating, and otherwise toward the deepest reachable cell,
// which tends to be the most open part of the board. A final one-step check
// steers away from likely head-to-head collisions.
//
// Every call is independent: nothing is cached between turns and the state is
// only read. Decide is safe to call from multiple goroutines.
package brain

import "github.com/brensch/snekbfs/game"

// Decision is the chosen move plus how it was reached.
type Decision struct {
	Move game.Direction
	// Planned is the search result before collision avoidance.
	Planned game.Direction
	// Target is the cell the plan leads to: food when FoundFood, else the
	// deepest reachable cell.
	Target    game.Point
	FoundFood bool
	// Distance is the path length in moves to Target.
	Distance int
	// Visited counts every cell the primary search recorded, seeds included.
	Visited int
	// Fallback is set when the search found nowhere to go.
	Fallback bool
	// Avoided is set when the collision check replaced Planned.
	Avoided bool
}

// Decide returns the move for you in state.
func Decide(you game.Entity, state game.State) game.Direction {
	return Explain(you, state).Move
}

// Explain runs the full decision and reports the intermediate results.
func Explain(you game.Entity, state game.State) Decision {
	board := state.Board()
	head := you.Head()
	heading := you.Heading()

	t := primarySearch(board, head, heading)

	d := Decision{
		Target:    t.terminal(),
		FoundFood: t.found,
		Visited:   len(t.visited.order),
	}

	planned, ok := t.firstStep()
	if ok {
		d.Distance = t.pathLength()
	} else {
		planned = fallbackMove(board, head, heading)
		d.Fallback = true
		d.Target = planned.Step(head)
		d.FoundFood = false
		d.Distance = 1
	}
	d.Planned = planned

	d.Move, d.Avoided = resolveCollision(board, you, state.Entities(), planned)
	return d
}

// fallbackMove is used when the search recorded nothing past its seeds: the
// first non-reversing move that is not immediately lethal, or straight ahead
// when every option is lethal.
func fallbackMove(board game.Board, head game.Point, heading game.Direction) game.Direction {
	reverse := heading.Opposite()
	for _, dir := range game.Directions {
		if dir == reverse {
			continue
		}
		if !board.IsLethal(dir.Step(head)) {
			return dir
		}
	}
	return heading
}
