package deck

import (
	"testing"

	"github.com/lox/chukrum/internal/randutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type faceKey struct {
	rank Rank
	suit Suit
}

func multiset(cards []Card) map[faceKey]int {
	m := make(map[faceKey]int)
	for _, c := range cards {
		m[faceKey{c.Rank, c.Suit}]++
	}
	return m
}

func TestNewDeck(t *testing.T) {
	t.Parallel()

	d := NewDeck()
	require.Equal(t, Size, d.Len())

	counts := multiset(d.Cards())
	assert.Len(t, counts, Size)
	for k, n := range counts {
		assert.Equal(t, 1, n, "duplicate %v", k)
	}

	ids := make(map[string]bool)
	for _, c := range d.Cards() {
		assert.False(t, ids[c.ID])
		ids[c.ID] = true
	}
}

func TestShufflePreservesCards(t *testing.T) {
	t.Parallel()

	for seed := int64(0); seed < 20; seed++ {
		d := NewDeck()
		before := multiset(d.Cards())
		d.Shuffle(randutil.New(seed))
		assert.Equal(t, before, multiset(d.Cards()))
		assert.Equal(t, Size, d.Len())
	}
}

func TestShuffleDeterministicPerSeed(t *testing.T) {
	t.Parallel()

	a := NewDeck()
	b := FromCards(a.Cards())
	a.Shuffle(randutil.New(7))
	b.Shuffle(randutil.New(7))
	assert.Equal(t, a.Cards(), b.Cards())
}

func TestShuffleIsRoughlyUniform(t *testing.T) {
	t.Parallel()

	// Track where the original top card lands over many shuffles of a small deck.
	rng := randutil.New(42)
	const n, trials = 4, 40000
	counts := make([]int, n)
	for range trials {
		d := FromCards(MustParseCards("As 2s 3s 4s"))
		top := d.cards[n-1].ID
		d.Shuffle(rng)
		for i, c := range d.cards {
			if c.ID == top {
				counts[i]++
			}
		}
	}
	for _, c := range counts {
		assert.InDelta(t, trials/n, c, trials/n*0.1)
	}
}

func TestDrawAndDeal(t *testing.T) {
	t.Parallel()

	d := FromCards(MustParseCards("As 2s 3s 4s 5s"))

	top, ok := d.Draw()
	require.True(t, ok)
	assert.Equal(t, Five, top.Rank)

	dealt, err := d.Deal(2)
	require.NoError(t, err)
	assert.Equal(t, Four, dealt[0].Rank)
	assert.Equal(t, Three, dealt[1].Rank)
	assert.Equal(t, 2, d.Len())

	_, err = d.Deal(3)
	require.Error(t, err)
	assert.Equal(t, 2, d.Len())

	d.Draw()
	d.Draw()
	_, ok = d.Draw()
	assert.False(t, ok)
	assert.True(t, d.IsEmpty())
}

func TestDiscardPile(t *testing.T) {
	t.Parallel()

	p := NewDiscardPile()
	_, ok := p.Top()
	assert.False(t, ok)

	cards := MustParseCards("7d 7c")
	p.Push(cards[0])
	p.Push(cards[1])
	top, ok := p.Top()
	require.True(t, ok)
	assert.True(t, top.Same(cards[1]))
	assert.Equal(t, 2, p.Len())
}
