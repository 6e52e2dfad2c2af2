package rules

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/brensch/snekbfs/game"
)

func dumpState(state *game.GameState) string {
	if state == nil {
		return "<nil state>"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Turn=%d Size=%dx%d You=%s\n", state.Turn, state.Width, state.Height, state.YouId)

	// Food
	fmt.Fprintf(&b, "Food(%d):", len(state.Food))
	for _, f := range state.Food {
		fmt.Fprintf(&b, " (%d,%d)", f.X, f.Y)
	}
	b.WriteString("\n")

	// Snakes (stable order)
	snakes := make([]game.Snake, len(state.Snakes))
	copy(snakes, state.Snakes)
	sort.Slice(snakes, func(i, j int) bool { return snakes[i].Id < snakes[j].Id })
	for _, s := range snakes {
		fmt.Fprintf(&b, "Snake %s Health=%d Len=%d Body:", s.Id, s.Health, len(s.Body))
		for _, p := range s.Body {
			fmt.Fprintf(&b, " (%d,%d)", p.X, p.Y)
		}
		b.WriteString("\n")
	}

	// Simple board view (top-to-bottom)
	w, h := int(state.Width), int(state.Height)
	if w > 0 && h > 0 && w <= 40 && h <= 40 {
		food := make(map[[2]int]bool, len(state.Food))
		for _, f := range state.Food {
			food[[2]int{int(f.X), int(f.Y)}] = true
		}
		occ := make(map[[2]int]int, 64)
		head := make(map[[2]int]bool, 8)
		for _, s := range state.Snakes {
			for i, p := range s.Body {
				k := [2]int{int(p.X), int(p.Y)}
				occ[k]++
				if i == 0 {
					head[k] = true
				}
			}
		}

		b.WriteString("Board:\n")
		for y := h - 1; y >= 0; y-- {
			for x := 0; x < w; x++ {
				k := [2]int{x, y}
				switch {
				case head[k]:
					b.WriteByte('H')
				case food[k] && occ[k] > 0:
					b.WriteByte('*')
				case food[k]:
					b.WriteByte('F')
				case occ[k] > 0:
					c := occ[k]
					if c > 9 {
						c = 9
					}
					b.WriteByte(byte('0' + c))
				default:
					b.WriteByte('.')
				}
			}
			b.WriteByte('\n')
		}
	}

	return b.String()
}

func logStep(t *testing.T, name string, before *game.GameState, moves map[string]game.Direction, after *game.GameState) {
	t.Helper()
	ids := make([]string, 0, len(moves))
	for id := range moves {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var mv strings.Builder
	mv.WriteString("Moves:")
	for _, id := range ids {
		fmt.Fprintf(&mv, " %s=%s", id, moves[id])
	}
	mv.WriteByte('\n')
	t.Logf("=== %s ===\nBefore:\n%s%sAfter:\n%s", name, dumpState(before), mv.String(), dumpState(after))
}

var noFood = FoodSettings{MinimumFood: 0, FoodSpawnChance: 0}

func findSnake(t *testing.T, state *game.GameState, id string) game.Snake {
	t.Helper()
	for _, s := range state.Snakes {
		if s.Id == id {
			return s
		}
	}
	t.Fatalf("snake %s missing", id)
	return game.Snake{}
}

func assertBody(t *testing.T, id string, got, want []game.Point) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("snake %s body len=%d want=%d", id, len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("snake %s body[%d]=%v want=%v", id, i, got[i], want[i])
		}
	}
}

func TestStep_NormalMove_NoFood(t *testing.T) {
	before := &game.GameState{
		Width:  7,
		Height: 7,
		YouId:  "me",
		Snakes: []game.Snake{{
			Id:     "me",
			Health: 10,
			Body:   []game.Point{{X: 3, Y: 3}, {X: 3, Y: 2}, {X: 3, Y: 1}},
		}},
	}

	moves := map[string]game.Direction{"me": game.North}
	after, causes := Step(before, moves, nil, noFood)
	logStep(t, "normal move", before, moves, after)

	assertBody(t, "me", after.Snakes[0].Body, []game.Point{{X: 3, Y: 4}, {X: 3, Y: 3}, {X: 3, Y: 2}})
	if after.Snakes[0].Health != 9 {
		t.Fatalf("health=%d want=9", after.Snakes[0].Health)
	}
	if len(causes) != 0 {
		t.Fatalf("unexpected eliminations %v", causes)
	}
	if after.Turn != 1 {
		t.Fatalf("turn=%d want=1", after.Turn)
	}
	if before.Snakes[0].Body[0] != (game.Point{X: 3, Y: 3}) {
		t.Fatalf("input state was mutated")
	}
}

func TestStep_EatFood_GrowsByDuplicatingTail(t *testing.T) {
	before := &game.GameState{
		Width:  7,
		Height: 7,
		YouId:  "me",
		Snakes: []game.Snake{{
			Id:     "me",
			Health: 10,
			Body:   []game.Point{{X: 3, Y: 3}, {X: 3, Y: 2}, {X: 3, Y: 1}},
		}},
		Food: []game.Point{{X: 3, Y: 4}},
	}

	moves := map[string]game.Direction{"me": game.North}
	after, _ := Step(before, moves, nil, noFood)
	logStep(t, "eat food", before, moves, after)

	assertBody(t, "me", after.Snakes[0].Body, []game.Point{{X: 3, Y: 4}, {X: 3, Y: 3}, {X: 3, Y: 2}, {X: 3, Y: 2}})
	if after.Snakes[0].Health != MaxHealth {
		t.Fatalf("health=%d want=%d", after.Snakes[0].Health, MaxHealth)
	}
	if len(after.Food) != 0 {
		t.Fatalf("food len=%d want=0", len(after.Food))
	}
}

func TestStep_StackedSpawn_EatFood(t *testing.T) {
	before := &game.GameState{
		Width:  7,
		Height: 7,
		YouId:  "a",
		Snakes: []game.Snake{
			{Id: "a", Health: 10, Body: []game.Point{{X: 1, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 1}}},
			{Id: "b", Health: 10, Body: []game.Point{{X: 5, Y: 5}, {X: 5, Y: 5}, {X: 5, Y: 5}}},
		},
		Food: []game.Point{{X: 1, Y: 2}},
	}

	moves := map[string]game.Direction{"a": game.North, "b": game.West}
	after, causes := Step(before, moves, nil, noFood)
	logStep(t, "one eats", before, moves, after)

	if len(causes) != 0 {
		t.Fatalf("unexpected eliminations %v", causes)
	}
	a := findSnake(t, after, "a")
	b := findSnake(t, after, "b")
	assertBody(t, "a", a.Body, []game.Point{{X: 1, Y: 2}, {X: 1, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 1}})
	assertBody(t, "b", b.Body, []game.Point{{X: 4, Y: 5}, {X: 5, Y: 5}, {X: 5, Y: 5}})
	if a.Health != MaxHealth || b.Health != 9 {
		t.Fatalf("health a=%d b=%d want %d and 9", a.Health, b.Health, MaxHealth)
	}
}

func TestStep_WallCollision(t *testing.T) {
	before := &game.GameState{
		Width:  5,
		Height: 5,
		Snakes: []game.Snake{
			{Id: "a", Health: 50, Body: []game.Point{{X: 0, Y: 2}, {X: 1, Y: 2}, {X: 2, Y: 2}}},
			{Id: "b", Health: 50, Body: []game.Point{{X: 4, Y: 4}, {X: 4, Y: 3}, {X: 4, Y: 2}}},
		},
	}

	moves := map[string]game.Direction{"a": game.West, "b": game.West}
	after, causes := Step(before, moves, nil, noFood)
	logStep(t, "wall", before, moves, after)

	if causes["a"] != CauseWall {
		t.Fatalf("cause a=%q want %q", causes["a"], CauseWall)
	}
	if findSnake(t, after, "a").Alive() {
		t.Fatalf("snake a should be eliminated")
	}
	if !IsGameOver(after) || Winner(after) != "b" {
		t.Fatalf("game over=%v winner=%q want b", IsGameOver(after), Winner(after))
	}
}

func TestStep_BodyCollision(t *testing.T) {
	before := &game.GameState{
		Width:  7,
		Height: 7,
		Snakes: []game.Snake{
			{Id: "a", Health: 50, Body: []game.Point{{X: 2, Y: 3}, {X: 1, Y: 3}, {X: 0, Y: 3}}},
			{Id: "b", Health: 50, Body: []game.Point{{X: 3, Y: 4}, {X: 3, Y: 3}, {X: 3, Y: 2}, {X: 3, Y: 1}}},
		},
	}

	moves := map[string]game.Direction{"a": game.East, "b": game.North}
	after, causes := Step(before, moves, nil, noFood)
	logStep(t, "body", before, moves, after)

	if causes["a"] != CauseBody {
		t.Fatalf("cause a=%q want %q", causes["a"], CauseBody)
	}
	if _, dead := causes["b"]; dead {
		t.Fatalf("snake b should survive, got %q", causes["b"])
	}
}

func TestStep_HeadToHead(t *testing.T) {
	tests := []struct {
		name  string
		lenA  int
		lenB  int
		deadA bool
		deadB bool
	}{
		{name: "longer wins", lenA: 4, lenB: 3, deadA: false, deadB: true},
		{name: "equal both die", lenA: 3, lenB: 3, deadA: true, deadB: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body := func(x int32, n int) []game.Point {
				out := make([]game.Point, n)
				for i := range out {
					out[i] = game.Point{X: x, Y: 2 - int32(i)}
					if out[i].Y < 0 {
						out[i].Y = 0
					}
				}
				return out
			}
			before := &game.GameState{
				Width:  7,
				Height: 7,
				Snakes: []game.Snake{
					{Id: "a", Health: 50, Body: body(2, tc.lenA)},
					{Id: "b", Health: 50, Body: body(4, tc.lenB)},
				},
			}
			// Both heads step onto (3,2).
			moves := map[string]game.Direction{"a": game.East, "b": game.West}
			after, causes := Step(before, moves, nil, noFood)
			logStep(t, tc.name, before, moves, after)

			if got := causes["a"] == CauseHeadToHead; got != tc.deadA {
				t.Fatalf("a eliminated=%v want %v (causes %v)", got, tc.deadA, causes)
			}
			if got := causes["b"] == CauseHeadToHead; got != tc.deadB {
				t.Fatalf("b eliminated=%v want %v (causes %v)", got, tc.deadB, causes)
			}
		})
	}
}

func TestStep_StarvationAndMissingMove(t *testing.T) {
	before := &game.GameState{
		Width:  7,
		Height: 7,
		Snakes: []game.Snake{
			{Id: "hungry", Health: 1, Body: []game.Point{{X: 1, Y: 1}, {X: 1, Y: 0}}},
			{Id: "silent", Health: 50, Body: []game.Point{{X: 5, Y: 5}, {X: 5, Y: 4}}},
			{Id: "fine", Health: 50, Body: []game.Point{{X: 3, Y: 3}, {X: 3, Y: 2}}},
		},
	}

	moves := map[string]game.Direction{"hungry": game.North, "fine": game.North}
	after, causes := Step(before, moves, nil, noFood)
	logStep(t, "starve", before, moves, after)

	if causes["hungry"] != CauseStarved {
		t.Fatalf("hungry cause=%q want %q", causes["hungry"], CauseStarved)
	}
	if causes["silent"] != CauseNoMove {
		t.Fatalf("silent cause=%q want %q", causes["silent"], CauseNoMove)
	}
	if Winner(after) != "fine" {
		t.Fatalf("winner=%q want fine", Winner(after))
	}
	// Dead snakes stay listed but no longer occupy the board.
	if len(after.Snakes) != 3 {
		t.Fatalf("snakes=%d want=3", len(after.Snakes))
	}
	if after.Board().IsLethal(game.Point{X: 5, Y: 5}) {
		t.Fatalf("eliminated snake still blocks its cells")
	}
}

func TestLegalMoves(t *testing.T) {
	state := &game.GameState{
		Width:  5,
		Height: 5,
		Snakes: []game.Snake{
			{Id: "me", Health: 50, Body: []game.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}}},
		},
	}
	got := LegalMoves(state, "me")
	if len(got) != 1 || got[0] != game.North {
		t.Fatalf("legal=%v want [up]", got)
	}
	if moves := LegalMoves(state, "nobody"); moves != nil {
		t.Fatalf("legal for unknown snake=%v want nil", moves)
	}
}

func TestFood_MinimumFoodIsEnforced(t *testing.T) {
	before := &game.GameState{
		Width:  5,
		Height: 5,
		Snakes: []game.Snake{{Id: "me", Health: 100, Body: []game.Point{{X: 2, Y: 2}, {X: 2, Y: 2}, {X: 2, Y: 2}}}},
	}

	moves := map[string]game.Direction{"me": game.North}
	after, _ := Step(before, moves, nil, FoodSettings{MinimumFood: 1, FoodSpawnChance: 0})
	logStep(t, "minimum food", before, moves, after)

	if len(after.Food) < 1 {
		t.Fatalf("food len=%d want>=1", len(after.Food))
	}
	occ := map[game.Point]bool{}
	for _, p := range after.Snakes[0].Body {
		occ[p] = true
	}
	for _, f := range after.Food {
		if occ[f] {
			t.Fatalf("food spawned on snake at (%d,%d)", f.X, f.Y)
		}
	}

	// Same inputs, same board.
	again, _ := Step(before, moves, nil, FoodSettings{MinimumFood: 1, FoodSpawnChance: 0})
	if len(again.Food) != len(after.Food) || again.Food[0] != after.Food[0] {
		t.Fatalf("deterministic spawn differs: %v vs %v", again.Food, after.Food)
	}
}

func TestFood_SpawnChanceCanAddExtra(t *testing.T) {
	before := &game.GameState{
		Width:  5,
		Height: 5,
		Snakes: []game.Snake{{Id: "me", Health: 100, Body: []game.Point{{X: 2, Y: 2}, {X: 2, Y: 2}, {X: 2, Y: 2}}}},
		Food:   []game.Point{{X: 0, Y: 0}},
	}

	after, _ := Step(before, map[string]game.Direction{"me": game.North}, nil, FoodSettings{MinimumFood: 0, FoodSpawnChance: 100})
	if len(after.Food) != 2 {
		t.Fatalf("food len=%d want=2", len(after.Food))
	}
}

func TestInitialState(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	state, err := InitialState(rand.New(rand.NewSource(1)), StandardSize, StandardSize, ids)
	if err != nil {
		t.Fatalf("InitialState: %v", err)
	}
	t.Logf("\n%s", dumpState(state))

	if len(state.Snakes) != len(ids) {
		t.Fatalf("snakes=%d want=%d", len(state.Snakes), len(ids))
	}
	heads := map[game.Point]bool{}
	for _, s := range state.Snakes {
		if len(s.Body) != StartLength || s.Health != MaxHealth {
			t.Fatalf("snake %s len=%d health=%d", s.Id, len(s.Body), s.Health)
		}
		if heads[s.Head()] {
			t.Fatalf("two snakes spawned on %v", s.Head())
		}
		heads[s.Head()] = true
	}
	for _, f := range state.Food {
		if heads[f] {
			t.Fatalf("food on a snake at %v", f)
		}
	}
	if len(state.Food) != len(ids)+1 {
		t.Fatalf("food=%d want=%d", len(state.Food), len(ids)+1)
	}

	if _, err := InitialState(nil, 5, 5, ids); err == nil {
		t.Fatalf("expected error for tiny board")
	}
}
