package game

import "fmt"

// Direction is one of the four cardinal moves.
type Direction uint8

const (
	North Direction = iota
	East
	South
	West
)

// Directions is the fixed iteration order used everywhere a search has to
// break ties. Changing it changes which of several equal paths is chosen.
var Directions = [4]Direction{North, East, South, West}

var opposites = [4]Direction{
	North: South,
	East:  West,
	South: North,
	West:  East,
}

var deltas = [4]Point{
	North: {X: 0, Y: 1},
	East:  {X: 1, Y: 0},
	South: {X: 0, Y: -1},
	West:  {X: -1, Y: 0},
}

// Battlesnake API move names. North is "up" because (0,0) is bottom-left.
var moveNames = [4]string{
	North: "up",
	East:  "right",
	South: "down",
	West:  "left",
}

func (d Direction) Opposite() Direction {
	return opposites[d&3]
}

// Step returns the neighbour of p in direction d.
func (d Direction) Step(p Point) Point {
	delta := deltas[d&3]
	return Point{X: p.X + delta.X, Y: p.Y + delta.Y}
}

func (d Direction) String() string {
	if int(d) < len(moveNames) {
		return moveNames[d]
	}
	return fmt.Sprintf("Direction(%d)", uint8(d))
}

// ParseDirection accepts the Battlesnake move names.
func ParseDirection(s string) (Direction, error) {
	for i, name := range moveNames {
		if name == s {
			return Direction(i), nil
		}
	}
	return North, fmt.Errorf("unknown move %q", s)
}

// DirectionBetween returns the direction that takes from to its neighbour to.
// ok is false when the points are not adjacent.
func DirectionBetween(from, to Point) (Direction, bool) {
	for _, d := range Directions {
		if d.Step(from) == to {
			return d, true
		}
	}
	return North, false
}
