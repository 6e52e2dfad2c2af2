package brain

import "github.com/brensch/snekbfs/game"

// headToHeadRisk reports whether another live snake is expected to move its
// head onto target next turn: its head is adjacent to target and its current
// heading points straight at it.
func headToHeadRisk(you game.Entity, others []game.Entity, target game.Point) bool {
	for _, other := range others {
		if !other.Alive() || other.ID() == you.ID() {
			continue
		}
		head := other.Head()
		if head.Adjacent(target) && other.Heading().Step(head) == target {
			return true
		}
	}
	return false
}

// resolveCollision keeps planned unless it walks into a probable head-to-head.
// In that case the two directions that are neither planned nor a reversal are
// tried in order and the first safe one wins. With no safe alternative the
// planned direction stands.
func resolveCollision(board game.Board, you game.Entity, others []game.Entity, planned game.Direction) (game.Direction, bool) {
	head := you.Head()
	if !headToHeadRisk(you, others, planned.Step(head)) {
		return planned, false
	}
	reverse := you.Heading().Opposite()
	for _, dir := range game.Directions {
		if dir == planned || dir == reverse {
			continue
		}
		next := dir.Step(head)
		if board.IsLethal(next) || headToHeadRisk(you, others, next) {
			continue
		}
		return dir, true
	}
	return planned, false
}
