package brain

import (
	"math/rand"
	"testing"

	"github.com/brensch/snekbfs/game"
)

// randomBoard scatters walls and food over a w×h board and places the head on
// a free cell.
func randomBoard(rng *rand.Rand, w, h int32, wallPct, food int) (*fakeBoard, game.Point) {
	b := &fakeBoard{
		width:  w,
		height: h,
		lethal: map[game.Point]bool{},
		food:   map[game.Point]bool{},
	}
	var free []game.Point
	for y := int32(0); y < h; y++ {
		for x := int32(0); x < w; x++ {
			p := game.Point{X: x, Y: y}
			if rng.Intn(100) < wallPct {
				b.lethal[p] = true
				continue
			}
			free = append(free, p)
		}
	}
	if len(free) == 0 {
		centre := game.Point{X: w / 2, Y: h / 2}
		delete(b.lethal, centre)
		free = append(free, centre)
	}
	rng.Shuffle(len(free), func(i, j int) { free[i], free[j] = free[j], free[i] })
	head := free[0]
	b.lethal[head] = true
	for i := 1; i <= food && i < len(free); i++ {
		b.food[free[i]] = true
	}
	return b, head
}

func TestTraverse_RecordsEachPointOnce(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 300; i++ {
		board, head := randomBoard(rng, 9, 9, 25, rng.Intn(4))
		heading := game.Directions[rng.Intn(4)]

		tr := primarySearch(board, head, heading)
		if len(tr.visited.order) != len(tr.visited.from) {
			t.Fatalf("case %d: %d insertions for %d distinct points\n%s",
				i, len(tr.visited.order), len(tr.visited.from), dumpBoard(board, map[game.Point]byte{head: 'H'}))
		}
		seen := map[game.Point]bool{}
		for _, p := range tr.expanded {
			if seen[p] {
				t.Fatalf("case %d: %v expanded twice", i, p)
			}
			seen[p] = true
		}
	}
}

func TestTraverse_DequeueDistanceNonDecreasing(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 300; i++ {
		board, head := randomBoard(rng, 9, 9, 25, rng.Intn(4))
		heading := game.Directions[rng.Intn(4)]
		behind := heading.Opposite().Step(head)

		tr := primarySearch(board, head, heading)
		ref := distances(board, head, behind)

		prev := 0
		for _, p := range tr.expanded {
			d, ok := ref[p]
			if !ok {
				t.Fatalf("case %d: expanded %v which is unreachable", i, p)
			}
			if d < prev {
				t.Fatalf("case %d: expanded %v at distance %d after distance %d\n%s",
					i, p, d, prev, dumpBoard(board, map[game.Point]byte{head: 'H', p: '*'}))
			}
			prev = d
		}
	}
}

func TestTraverse_ShortestPathToNearestFood(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	checked := 0
	for i := 0; i < 300; i++ {
		board, head := randomBoard(rng, 9, 9, 20, 1+rng.Intn(3))
		heading := game.Directions[rng.Intn(4)]
		behind := heading.Opposite().Step(head)

		// No veto: the traversal alone must land on the nearest food.
		tr := traverse(board, head, []game.Point{behind}, nil)
		ref := distances(board, head, behind)

		nearest := -1
		for p := range board.food {
			if d, ok := ref[p]; ok && (nearest < 0 || d < nearest) {
				nearest = d
			}
		}
		if nearest < 0 {
			if tr.found {
				t.Fatalf("case %d: found food %v that is unreachable", i, tr.goal)
			}
			continue
		}
		if !tr.found {
			t.Fatalf("case %d: missed reachable food at distance %d", i, nearest)
		}
		if got := tr.pathLength(); got != nearest {
			t.Fatalf("case %d: path to %v has length %d want %d\n%s",
				i, tr.goal, got, nearest, dumpBoard(board, map[game.Point]byte{head: 'H', tr.goal: '*'}))
		}
		checked++
	}
	if checked == 0 {
		t.Fatalf("no case had reachable food")
	}
}

func TestTraverse_NoFoodEndsAtDeepestCell(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	for i := 0; i < 300; i++ {
		board, head := randomBoard(rng, 9, 9, 30, 0)
		heading := game.Directions[rng.Intn(4)]
		behind := heading.Opposite().Step(head)

		tr := primarySearch(board, head, heading)
		ref := distances(board, head, behind)

		deepest := 0
		for _, d := range ref {
			if d > deepest {
				deepest = d
			}
		}
		if got := ref[tr.terminal()]; got != deepest {
			t.Fatalf("case %d: terminal %v at distance %d want %d", i, tr.terminal(), got, deepest)
		}
		if deepest > 0 && tr.pathLength() != deepest {
			t.Fatalf("case %d: path length %d want %d", i, tr.pathLength(), deepest)
		}
	}
}

func TestFirstStep_FollowsRecordedPath(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 200; i++ {
		board, head := randomBoard(rng, 8, 8, 20, rng.Intn(3))
		heading := game.Directions[rng.Intn(4)]

		tr := primarySearch(board, head, heading)
		dir, ok := tr.firstStep()
		if !ok {
			if len(tr.visited.order) > 2 {
				t.Fatalf("case %d: no first step despite %d recorded points", i, len(tr.visited.order))
			}
			continue
		}

		// Walk back from the terminal and check every hop is a single step.
		cur := tr.terminal()
		var first game.Point
		for cur != head {
			l := tr.visited.from[cur]
			if l.seed {
				t.Fatalf("case %d: path runs through a seed at %v", i, cur)
			}
			if !l.prev.Adjacent(cur) {
				t.Fatalf("case %d: %v recorded from non-adjacent %v", i, cur, l.prev)
			}
			first = cur
			cur = l.prev
		}
		if dir.Step(head) != first {
			t.Fatalf("case %d: first step %s lands on %v want %v", i, dir, dir.Step(head), first)
		}
	}
}

func TestPrimarySearch_NeverReverses(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	for i := 0; i < 500; i++ {
		board, head := randomBoard(rng, 7, 7, 30, rng.Intn(3))
		heading := game.Directions[rng.Intn(4)]
		me := fakeSnake{id: "me", head: head, heading: heading}
		state := fakeState{board: board, entities: []game.Entity{me}}

		d := Explain(me, state)
		if d.Planned == heading.Opposite() || d.Move == heading.Opposite() {
			t.Fatalf("case %d: heading %s planned=%s move=%s", i, heading, d.Planned, d.Move)
		}
	}
}

func TestExplain_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		board, head := randomBoard(rng, 11, 11, 15, 1+rng.Intn(4))
		heading := game.Directions[rng.Intn(4)]
		me := fakeSnake{id: "me", head: head, heading: heading}
		state := fakeState{board: board, entities: []game.Entity{me}}

		first := Explain(me, state)
		for j := 0; j < 3; j++ {
			if again := Explain(me, state); again != first {
				t.Fatalf("case %d: run %d got %+v want %+v", i, j, again, first)
			}
		}
	}
}

func TestSecondarySearch_RecommendsWayOut(t *testing.T) {
	board, _ := parseBoard(t,
		"#####",
		"#F..#",
		"#H###",
	)
	c := secondarySearch(board, game.Point{X: 1, Y: 1})
	if !c.ok || c.dir != game.East {
		t.Fatalf("continuation=%+v want right", c)
	}

	sealed, _ := parseBoard(t,
		"###",
		"#F#",
		"#H#",
	)
	if c := secondarySearch(sealed, game.Point{X: 1, Y: 1}); c.ok {
		t.Fatalf("sealed food reported a continuation %s", c.dir)
	}
}
