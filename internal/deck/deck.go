package deck

import (
	"fmt"
	"math/rand/v2"
	"slices"
)

// Size is the number of cards in a full deck
const Size = 52

// Deck is a LIFO draw pile. The top of the deck is the end of the slice.
type Deck struct {
	cards []Card
}

// NewDeck creates a new standard 52-card deck in suit/rank order. Every card
// receives a fresh identity.
func NewDeck() *Deck {
	deck := &Deck{cards: make([]Card, 0, Size)}
	for suit := Spades; suit <= Clubs; suit++ {
		for rank := Ace; rank <= King; rank++ {
			deck.cards = append(deck.cards, NewCard(suit, rank))
		}
	}
	return deck
}

// FromCards builds a deck whose last element is the top card
func FromCards(cards []Card) *Deck {
	return &Deck{cards: slices.Clone(cards)}
}

// Shuffle applies a uniform Fisher-Yates permutation using rng
func (d *Deck) Shuffle(rng *rand.Rand) {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Draw removes and returns the top card
func (d *Deck) Draw() (Card, bool) {
	if len(d.cards) == 0 {
		return Card{}, false
	}
	top := len(d.cards) - 1
	card := d.cards[top]
	d.cards = d.cards[:top]
	return card, true
}

// Deal removes the top n cards, top card first
func (d *Deck) Deal(n int) ([]Card, error) {
	if n < 0 || n > len(d.cards) {
		return nil, fmt.Errorf("cannot deal %d cards from a deck of %d", n, len(d.cards))
	}
	dealt := make([]Card, 0, n)
	for range n {
		card, _ := d.Draw()
		dealt = append(dealt, card)
	}
	return dealt, nil
}

// Push places a card on top of the deck
func (d *Deck) Push(c Card) {
	d.cards = append(d.cards, c)
}

// Len returns the number of cards left in the deck
func (d *Deck) Len() int {
	return len(d.cards)
}

// IsEmpty returns true if the deck has no cards left
func (d *Deck) IsEmpty() bool {
	return len(d.cards) == 0
}

// Cards returns a copy of the remaining cards, bottom first
func (d *Deck) Cards() []Card {
	return slices.Clone(d.cards)
}

// DiscardPile is a face-up stack; only the top card is public.
type DiscardPile struct {
	cards []Card
}

// NewDiscardPile builds a pile from cards, bottom first
func NewDiscardPile(cards ...Card) *DiscardPile {
	return &DiscardPile{cards: slices.Clone(cards)}
}

// Push places a card on top of the pile
func (p *DiscardPile) Push(c Card) {
	p.cards = append(p.cards, c)
}

// Top returns the visible card
func (p *DiscardPile) Top() (Card, bool) {
	if len(p.cards) == 0 {
		return Card{}, false
	}
	return p.cards[len(p.cards)-1], true
}

// Len returns the number of cards in the pile
func (p *DiscardPile) Len() int {
	return len(p.cards)
}

// Cards returns a copy of the pile, bottom first
func (p *DiscardPile) Cards() []Card {
	return slices.Clone(p.cards)
}
