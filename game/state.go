// Package game defines the core game state types for Battlesnake.
//
// These types are the read-only snapshot the decision core works from. A
// GameState is assembled fresh every turn (from an API request, a replay frame
// or the local rules engine) and is never mutated by the search.
package game

// Point is a board coordinate.
// Coordinates follow Battlesnake conventions: (0,0) is bottom-left.
type Point struct {
	X int32
	Y int32
}

// Neighbors returns the four adjacent points in Directions order.
func (p Point) Neighbors() [4]Point {
	var out [4]Point
	for i, d := range Directions {
		out[i] = d.Step(p)
	}
	return out
}

// Adjacent reports whether q is one orthogonal step away from p.
func (p Point) Adjacent(q Point) bool {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return (dx == 0 && (dy == 1 || dy == -1)) || (dy == 0 && (dx == 1 || dx == -1))
}

type Snake struct {
	Id     string
	Health int32
	Body   []Point
}

func (s Snake) ID() string { return s.Id }

// Alive is false once the rules engine has eliminated the snake (Health 0).
func (s Snake) Alive() bool { return s.Health > 0 && len(s.Body) > 0 }

func (s Snake) Head() Point {
	if len(s.Body) == 0 {
		return Point{}
	}
	return s.Body[0]
}

// Heading is the direction the snake last moved, derived from the head and the
// first body segment that differs from it. Freshly spawned snakes have all
// segments stacked on one cell and report North.
func (s Snake) Heading() Direction {
	if len(s.Body) == 0 {
		return North
	}
	head := s.Body[0]
	for _, p := range s.Body[1:] {
		if p == head {
			continue
		}
		if d, ok := DirectionBetween(p, head); ok {
			return d
		}
		break
	}
	return North
}

// GameState is the complete state needed for rules + decisions.
// YouId selects the ego snake.
type GameState struct {
	Width   int32
	Height  int32
	Snakes  []Snake
	Food    []Point
	Hazards []Point
	YouId   string
	Turn    int32
}

// You returns the ego snake, or nil when YouId is not on the board.
func (s *GameState) You() *Snake {
	for i := range s.Snakes {
		if s.Snakes[i].Id == s.YouId {
			return &s.Snakes[i]
		}
	}
	return nil
}

// Entities exposes every snake, alive or not, through the query contract.
func (s *GameState) Entities() []Entity {
	out := make([]Entity, len(s.Snakes))
	for i := range s.Snakes {
		out[i] = s.Snakes[i]
	}
	return out
}

// Board builds the lethal/food lookup for this snapshot.
func (s *GameState) Board() Board {
	return NewGrid(s)
}

// InBounds reports whether p lies on the board.
func (s *GameState) InBounds(p Point) bool {
	return p.X >= 0 && p.X < s.Width && p.Y >= 0 && p.Y < s.Height
}

// AliveCount returns the number of snakes still in the game.
func (s *GameState) AliveCount() int {
	n := 0
	for _, sn := range s.Snakes {
		if sn.Alive() {
			n++
		}
	}
	return n
}

// Clone performs a deep copy of the game state.
func (s *GameState) Clone() *GameState {
	if s == nil {
		return nil
	}

	out := &GameState{
		Width:  s.Width,
		Height: s.Height,
		YouId:  s.YouId,
		Turn:   s.Turn,
	}

	if len(s.Food) > 0 {
		out.Food = make([]Point, len(s.Food))
		copy(out.Food, s.Food)
	}
	if len(s.Hazards) > 0 {
		out.Hazards = make([]Point, len(s.Hazards))
		copy(out.Hazards, s.Hazards)
	}

	if len(s.Snakes) > 0 {
		out.Snakes = make([]Snake, len(s.Snakes))
		for i := range s.Snakes {
			out.Snakes[i] = Snake{Id: s.Snakes[i].Id, Health: s.Snakes[i].Health}
			if len(s.Snakes[i].Body) > 0 {
				out.Snakes[i].Body = make([]Point, len(s.Snakes[i].Body))
				copy(out.Snakes[i].Body, s.Snakes[i].Body)
			}
		}
	}

	return out
}
