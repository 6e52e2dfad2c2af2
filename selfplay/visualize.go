// visualize.go - Console rendering for debugging self-play games.
package selfplay

import (
	"fmt"
	"io"
	"strings"

	"github.com/brensch/snekbfs/game"
)

// RenderBoard draws state with the top row first. The snake named by YouId is
// drawn as O/o, other live snakes as S/s, food as F. Eliminated snakes are
// not drawn.
func RenderBoard(state *game.GameState) string {
	grid := make([][]byte, state.Height)
	for y := range grid {
		grid[y] = []byte(strings.Repeat(".", int(state.Width)))
	}

	for _, f := range state.Food {
		if state.InBounds(f) {
			grid[f.Y][f.X] = 'F'
		}
	}

	for _, s := range state.Snakes {
		if !s.Alive() {
			continue
		}
		body, head := byte('s'), byte('S')
		if s.Id == state.YouId {
			body, head = 'o', 'O'
		}
		// Tail first so the head wins on stacked segments.
		for i := len(s.Body) - 1; i >= 0; i-- {
			p := s.Body[i]
			if !state.InBounds(p) {
				continue
			}
			if i == 0 {
				grid[p.Y][p.X] = head
			} else {
				grid[p.Y][p.X] = body
			}
		}
	}

	var sb strings.Builder
	for y := state.Height - 1; y >= 0; y-- {
		for x := int32(0); x < state.Width; x++ {
			sb.WriteByte(grid[y][x])
			sb.WriteByte(' ')
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func PrintBoard(w io.Writer, state *game.GameState) {
	fmt.Fprintf(w, "\n=== Turn %d (you_id=%s) ===\n", state.Turn, state.YouId)
	for _, s := range state.Snakes {
		fmt.Fprintf(w, "%s health=%d len=%d alive=%v\n", s.Id, s.Health, len(s.Body), s.Alive())
	}
	fmt.Fprint(w, RenderBoard(state))
}
