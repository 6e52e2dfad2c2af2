package game

// Board answers the two cell questions the decision core asks.
type Board interface {
	// IsLethal is true for out-of-bounds cells and cells holding any live
	// snake segment.
	IsLethal(p Point) bool
	HasFood(p Point) bool
}

// Entity is the read-only view of a snake.
type Entity interface {
	ID() string
	Head() Point
	Heading() Direction
	Alive() bool
}

// State is a single observed snapshot: every snake plus the board.
type State interface {
	Entities() []Entity
	Board() Board
}

var (
	_ State  = (*GameState)(nil)
	_ Entity = Snake{}
	_ Board  = (*Grid)(nil)
)

// Grid is a dense Board built once per snapshot.
type Grid struct {
	width    int32
	height   int32
	occupied []bool
	food     []bool
}

// NewGrid indexes the live snake bodies and food of state. Eliminated snakes
// do not occupy cells.
func NewGrid(state *GameState) *Grid {
	g := &Grid{width: state.Width, height: state.Height}
	if g.width <= 0 || g.height <= 0 {
		g.width, g.height = 0, 0
		return g
	}
	n := int(g.width * g.height)
	g.occupied = make([]bool, n)
	g.food = make([]bool, n)

	for _, s := range state.Snakes {
		if !s.Alive() {
			continue
		}
		for _, p := range s.Body {
			if i, ok := g.index(p); ok {
				g.occupied[i] = true
			}
		}
	}
	for _, f := range state.Food {
		if i, ok := g.index(f); ok {
			g.food[i] = true
		}
	}
	return g
}

func (g *Grid) index(p Point) (int, bool) {
	if p.X < 0 || p.X >= g.width || p.Y < 0 || p.Y >= g.height {
		return 0, false
	}
	return int(p.Y*g.width + p.X), true
}

func (g *Grid) IsLethal(p Point) bool {
	i, ok := g.index(p)
	return !ok || g.occupied[i]
}

func (g *Grid) HasFood(p Point) bool {
	i, ok := g.index(p)
	return ok && g.food[i]
}

func (g *Grid) Width() int32  { return g.width }
func (g *Grid) Height() int32 { return g.height }
