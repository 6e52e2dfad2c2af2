package brain

import (
	"strings"
	"testing"

	"github.com/brensch/snekbfs/game"
)

// fakeBoard is a Board parsed from ASCII rows. The first row is the top of the
// board (highest Y), matching how dumpBoard prints.
//
//	#  wall
//	F  food
//	H  the ego head (lethal, like any body segment)
//	.  empty
type fakeBoard struct {
	width, height int32
	lethal        map[game.Point]bool
	food          map[game.Point]bool
}

func parseBoard(t *testing.T, rows ...string) (*fakeBoard, game.Point) {
	t.Helper()
	b := &fakeBoard{
		width:  int32(len(rows[0])),
		height: int32(len(rows)),
		lethal: map[game.Point]bool{},
		food:   map[game.Point]bool{},
	}
	var head game.Point
	foundHead := false
	for i, row := range rows {
		if int32(len(row)) != b.width {
			t.Fatalf("row %d has width %d want %d", i, len(row), b.width)
		}
		y := b.height - 1 - int32(i)
		for x, c := range row {
			p := game.Point{X: int32(x), Y: y}
			switch c {
			case '#':
				b.lethal[p] = true
			case 'F':
				b.food[p] = true
			case 'H':
				b.lethal[p] = true
				head = p
				foundHead = true
			case '.':
			default:
				t.Fatalf("unexpected cell %q at %v", c, p)
			}
		}
	}
	if !foundHead {
		t.Fatalf("board has no head")
	}
	return b, head
}

func (b *fakeBoard) IsLethal(p game.Point) bool {
	if p.X < 0 || p.X >= b.width || p.Y < 0 || p.Y >= b.height {
		return true
	}
	return b.lethal[p]
}

func (b *fakeBoard) HasFood(p game.Point) bool {
	return b.food[p]
}

type fakeSnake struct {
	id      string
	head    game.Point
	heading game.Direction
	dead    bool
}

func (s fakeSnake) ID() string              { return s.id }
func (s fakeSnake) Head() game.Point        { return s.head }
func (s fakeSnake) Heading() game.Direction { return s.heading }
func (s fakeSnake) Alive() bool             { return !s.dead }

type fakeState struct {
	board    game.Board
	entities []game.Entity
}

func (s fakeState) Entities() []game.Entity { return s.entities }
func (s fakeState) Board() game.Board       { return s.board }

func dumpBoard(b *fakeBoard, marks map[game.Point]byte) string {
	var sb strings.Builder
	for y := b.height - 1; y >= 0; y-- {
		for x := int32(0); x < b.width; x++ {
			p := game.Point{X: x, Y: y}
			switch {
			case marks[p] != 0:
				sb.WriteByte(marks[p])
			case b.lethal[p]:
				sb.WriteByte('#')
			case b.food[p]:
				sb.WriteByte('F')
			default:
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func logDecision(t *testing.T, name string, b *fakeBoard, head game.Point, d Decision) {
	t.Helper()
	marks := map[game.Point]byte{head: 'H', d.Target: 'T'}
	t.Logf("=== %s ===\n%smove=%s planned=%s target=%v food=%v dist=%d fallback=%v avoided=%v",
		name, dumpBoard(b, marks), d.Move, d.Planned, d.Target, d.FoundFood, d.Distance, d.Fallback, d.Avoided)
}

// distances is an independent BFS over non-lethal cells from start with the
// given cells blocked. Food cells are reachable but not passed through, which
// mirrors the search stopping as soon as food is recorded.
func distances(b game.Board, start game.Point, blocked ...game.Point) map[game.Point]int {
	dist := map[game.Point]int{start: 0}
	for _, p := range blocked {
		dist[p] = -1
	}
	queue := []game.Point{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur != start && b.HasFood(cur) {
			continue
		}
		for _, n := range cur.Neighbors() {
			if _, seen := dist[n]; seen || b.IsLethal(n) {
				continue
			}
			dist[n] = dist[cur] + 1
			queue = append(queue, n)
		}
	}
	for _, p := range blocked {
		delete(dist, p)
	}
	return dist
}
