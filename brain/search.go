package brain

import (
	"github.com/zyedidia/generic/queue"

	"github.com/brensch/snekbfs/game"
)

// visitMap records each discovered point with the point it was reached from.
// Seeds have no predecessor. Iteration order is insertion order so that goal
// selection never depends on map hashing.
type visitMap struct {
	from  map[game.Point]link
	order []game.Point
}

type link struct {
	prev game.Point
	seed bool
}

func newVisitMap(sizeHint int) *visitMap {
	return &visitMap{
		from:  make(map[game.Point]link, sizeHint),
		order: make([]game.Point, 0, sizeHint),
	}
}

func (v *visitMap) has(p game.Point) bool {
	_, ok := v.from[p]
	return ok
}

func (v *visitMap) seed(p game.Point) {
	if v.has(p) {
		return
	}
	v.from[p] = link{seed: true}
	v.order = append(v.order, p)
}

func (v *visitMap) record(p, prev game.Point) {
	v.from[p] = link{prev: prev}
	v.order = append(v.order, p)
}

// admitFunc can refuse a non-lethal, unvisited neighbour. A refused point is
// not marked visited and may be admitted later from another cell.
type admitFunc func(from, next game.Point, dir game.Direction) bool

// traversal is the outcome of one breadth-first pass.
type traversal struct {
	start   game.Point
	visited *visitMap

	// goal is the first recorded food cell, valid when found is set.
	goal  game.Point
	found bool

	// last is the final point taken off the frontier.
	last game.Point

	// expanded lists points in dequeue order.
	expanded []game.Point
}

// traverse runs a breadth-first search from start. start and every extra seed
// are marked visited before expansion; only start is expanded. The search stops
// once the expansion that recorded the first food cell completes, or when the
// reachable region is exhausted.
func traverse(board game.Board, start game.Point, seeds []game.Point, admit admitFunc) *traversal {
	t := &traversal{
		start:   start,
		visited: newVisitMap(64),
		last:    start,
	}
	t.visited.seed(start)
	for _, s := range seeds {
		t.visited.seed(s)
	}

	frontier := queue.New[game.Point]()
	frontier.Enqueue(start)

	for !frontier.Empty() && !t.found {
		current := frontier.Dequeue()
		t.last = current
		t.expanded = append(t.expanded, current)

		for _, dir := range game.Directions {
			next := dir.Step(current)
			if t.visited.has(next) || board.IsLethal(next) {
				continue
			}
			if admit != nil && !admit(current, next, dir) {
				continue
			}
			t.visited.record(next, current)
			frontier.Enqueue(next)
			if !t.found && board.HasFood(next) {
				t.goal = next
				t.found = true
			}
		}
	}
	return t
}

// terminal is the cell the path is reconstructed from: the first food found,
// otherwise the deepest cell reached.
func (t *traversal) terminal() game.Point {
	if t.found {
		return t.goal
	}
	return t.last
}

// firstStep walks predecessors back from the terminal cell and returns the
// direction of the first move out of start. ok is false when nothing beyond
// the seeds was recorded.
func (t *traversal) firstStep() (game.Direction, bool) {
	cur := t.terminal()
	if cur == t.start {
		return game.North, false
	}
	for {
		l, ok := t.visited.from[cur]
		if !ok || l.seed {
			return game.North, false
		}
		if l.prev == t.start {
			return game.DirectionBetween(t.start, cur)
		}
		cur = l.prev
	}
}

// pathLength counts the moves from start to the terminal cell.
func (t *traversal) pathLength() int {
	cur := t.terminal()
	n := 0
	for cur != t.start {
		l, ok := t.visited.from[cur]
		if !ok || l.seed {
			return 0
		}
		cur = l.prev
		n++
	}
	return n
}

// continuation is the result of a lookahead from a food cell.
type continuation struct {
	dir game.Direction
	ok  bool
}

// secondarySearch answers "having eaten the food at goal, which way next?".
// It is seeded with goal only and applies no veto.
func secondarySearch(board game.Board, goal game.Point) continuation {
	t := traverse(board, goal, nil, nil)
	dir, ok := t.firstStep()
	return continuation{dir: dir, ok: ok}
}

// primarySearch is the main breadth-first pass from the head. The cell behind
// the head is seeded so the search never proposes a reversal. A food cell is
// only admitted when the lookahead from it does not require doubling back
// along the approach direction; a food cell with no way out is refused too.
func primarySearch(board game.Board, head game.Point, heading game.Direction) *traversal {
	lookahead := make(map[game.Point]continuation)
	admit := func(_, next game.Point, dir game.Direction) bool {
		if !board.HasFood(next) {
			return true
		}
		c, seen := lookahead[next]
		if !seen {
			c = secondarySearch(board, next)
			lookahead[next] = c
		}
		return c.ok && c.dir != dir.Opposite()
	}
	behind := heading.Opposite().Step(head)
	return traverse(board, head, []game.Point{behind}, admit)
}
