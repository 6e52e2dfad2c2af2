package selfplay

import (
	"github.com/brensch/snekbfs/brain"
	"github.com/brensch/snekbfs/game"
	"github.com/brensch/snekbfs/rules"
)

// Choice is an agent's move for one turn. Decision is nil for agents that do
// not search.
type Choice struct {
	Move     game.Direction
	Decision *brain.Decision
}

// MoveFunc picks a move for you. It must not modify state.
type MoveFunc func(state *game.GameState, you game.Snake) Choice

// Agent is a named move policy. Names end up in the archive so games between
// different agents can be compared afterwards.
type Agent struct {
	Name string
	Move MoveFunc
}

func BFSAgent() Agent {
	return Agent{
		Name: "bfs",
		Move: func(state *game.GameState, you game.Snake) Choice {
			d := brain.Explain(you, state)
			return Choice{Move: d.Move, Decision: &d}
		},
	}
}

// FirstLegalAgent takes the first move that neither reverses nor dies on the
// spot, and keeps going straight when there is none. It is the baseline the
// search is measured against.
func FirstLegalAgent() Agent {
	return Agent{
		Name: "first-legal",
		Move: func(state *game.GameState, you game.Snake) Choice {
			heading := you.Heading()
			for _, d := range rules.LegalMoves(state, you.Id) {
				if d != heading.Opposite() {
					return Choice{Move: d}
				}
			}
			return Choice{Move: heading}
		},
	}
}

// AgentByName resolves the names accepted on the command line.
func AgentByName(name string) (Agent, bool) {
	switch name {
	case "bfs":
		return BFSAgent(), true
	case "first-legal":
		return FirstLegalAgent(), true
	}
	return Agent{}, false
}
