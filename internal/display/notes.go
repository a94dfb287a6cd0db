package display

import (
	"slices"

	"github.com/lox/chukrum/internal/deck"
	"github.com/lox/chukrum/internal/game"
)

// Notes is what the player at the keyboard has seen. Faces are keyed by
// card ID, so a known card stays known when it moves between positions or
// hands. A scramble reorders a hand without telling anyone where each card
// went; Observe spots that and forgets the faces in the scrambled hand.
type Notes struct {
	known map[string]deck.Card
	own   []string
	opp   []string
	round string
}

// NewNotes creates empty notes
func NewNotes() *Notes {
	return &Notes{known: make(map[string]deck.Card)}
}

// Learn remembers a face
func (n *Notes) Learn(c deck.Card) {
	if c.ID == "" {
		return
	}
	n.known[c.ID] = c
}

// Known returns the face of the card with the given ID, if it was seen
func (n *Notes) Known(id string) (deck.Card, bool) {
	c, ok := n.known[id]
	return c, ok
}

// Count returns how many faces are remembered
func (n *Notes) Count() int {
	return len(n.known)
}

// Reset forgets everything
func (n *Notes) Reset() {
	clear(n.known)
	n.own, n.opp, n.round = nil, nil, ""
}

// Observe brings the notes up to date with a fresh view. A new round
// clears them.
func (n *Notes) Observe(v game.TableView) {
	if v.RoundID != n.round {
		n.Reset()
		n.round = v.RoundID
	}
	if reordered(n.own, v.OwnIDs) {
		n.forget(v.OwnIDs)
	}
	if reordered(n.opp, v.OpponentIDs) {
		n.forget(v.OpponentIDs)
	}
	n.own = slices.Clone(v.OwnIDs)
	n.opp = slices.Clone(v.OpponentIDs)
}

// Record learns from the player's own action. before is the view the
// action was chosen from.
func (n *Notes) Record(a game.Action, res game.Result, before game.TableView) {
	if res.Peeked != nil {
		n.Learn(*res.Peeked)
	}
	if a.Kind == game.SwapOwn && before.Held != nil {
		n.Learn(*before.Held)
	}
}

func (n *Notes) forget(ids []string) {
	for _, id := range ids {
		delete(n.known, id)
	}
}

// reordered reports whether the cards present in both lists appear in a
// different relative order. Matches and swaps add or remove cards but
// never reorder the survivors.
func reordered(prev, cur []string) bool {
	if len(prev) == 0 {
		return false
	}
	keep := func(ids, in []string) []string {
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			if slices.Contains(in, id) {
				out = append(out, id)
			}
		}
		return out
	}
	return !slices.Equal(keep(prev, cur), keep(cur, prev))
}
