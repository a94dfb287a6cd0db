package deck

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rank Rank
		want int
	}{
		{Seven, -1},
		{Ace, 1},
		{Five, 5},
		{Ten, 10},
		{Jack, 11},
		{Queen, 12},
		{King, 13},
	}
	for _, tt := range tests {
		t.Run(tt.rank.String(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Value(tt.rank))
		})
	}
}

func TestParseCards(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    []Card
		wantErr bool
	}{
		{
			name:  "ascii",
			input: "7c Ah Kd",
			want:  []Card{{Suit: Clubs, Rank: Seven}, {Suit: Hearts, Rank: Ace}, {Suit: Diamonds, Rank: King}},
		},
		{
			name:  "tens and symbols",
			input: "10♠,Td,Q♦",
			want:  []Card{{Suit: Spades, Rank: Ten}, {Suit: Diamonds, Rank: Ten}, {Suit: Diamonds, Rank: Queen}},
		},
		{name: "empty", input: "", want: []Card{}},
		{name: "invalid rank", input: "Xs", wantErr: true},
		{name: "invalid suit", input: "Ax", wantErr: true},
		{name: "too short", input: "A", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseCards(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i := range got {
				assert.Equal(t, tt.want[i].Rank, got[i].Rank)
				assert.Equal(t, tt.want[i].Suit, got[i].Suit)
				assert.NotEmpty(t, got[i].ID)
			}
		})
	}
}

func TestMustParseCardsPanics(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { MustParseCards("invalid") })
}

func TestCardIdentity(t *testing.T) {
	t.Parallel()

	a := NewCard(Clubs, Seven)
	b := NewCard(Clubs, Seven)
	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, a.Same(a))
	assert.False(t, a.Same(b))
	assert.False(t, Card{}.Same(Card{}))
	assert.Equal(t, "7♣", a.String())
}

func TestCardJSON(t *testing.T) {
	t.Parallel()

	c := NewCard(Diamonds, Ten)
	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+c.ID+`","rank":"10","suit":"diamonds"}`, string(data))

	var back Card
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, c, back)
}
