package game

import (
	"fmt"
	"slices"
	"strings"

	"github.com/lox/chukrum/internal/deck"
)

// Hand is an ordered, position-indexed set of cards. Positions matter:
// peeks and swaps address positions, not card identities.
type Hand struct {
	cards []deck.Card
}

// NewHand creates a hand holding cards in order
func NewHand(cards ...deck.Card) *Hand {
	return &Hand{cards: slices.Clone(cards)}
}

// Len returns the number of cards in the hand
func (h *Hand) Len() int {
	return len(h.cards)
}

// Valid reports whether pos addresses a card in the hand
func (h *Hand) Valid(pos int) bool {
	return pos >= 0 && pos < len(h.cards)
}

// At returns the card at pos
func (h *Hand) At(pos int) (deck.Card, bool) {
	if !h.Valid(pos) {
		return deck.Card{}, false
	}
	return h.cards[pos], true
}

// Replace puts c at pos and returns the card it replaced
func (h *Hand) Replace(pos int, c deck.Card) deck.Card {
	old := h.cards[pos]
	h.cards[pos] = c
	return old
}

// Remove takes the card at pos out of the hand; later positions shift down
func (h *Hand) Remove(pos int) deck.Card {
	c := h.cards[pos]
	h.cards = slices.Delete(h.cards, pos, pos+1)
	return c
}

// Append adds a card at the end of the hand
func (h *Hand) Append(c deck.Card) {
	h.cards = append(h.cards, c)
}

// IndexOf returns the position of the card with the given identity, or -1
func (h *Hand) IndexOf(id string) int {
	return slices.IndexFunc(h.cards, func(c deck.Card) bool { return c.ID == id })
}

// Cards returns a copy of the hand
func (h *Hand) Cards() []deck.Card {
	return slices.Clone(h.cards)
}

// Score returns the total value of the hand
func (h *Hand) Score() int {
	return Score(h.cards)
}

func (h *Hand) String() string {
	parts := make([]string, len(h.cards))
	for i, c := range h.cards {
		parts[i] = c.String()
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, " "))
}

// Score sums card values. Lower is better.
func Score(cards []deck.Card) int {
	total := 0
	for _, c := range cards {
		total += c.Value()
	}
	return total
}
