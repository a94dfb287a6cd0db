package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldCallChukrum(t *testing.T) {
	t.Parallel()

	easy, normal, hard := ProfileFor(Easy), ProfileFor(Normal), ProfileFor(Hard)
	tests := []struct {
		name    string
		profile Profile
		in      ChukrumInputs
		want    bool
	}{
		{"easy never calls", easy, ChukrumInputs{Known: 4, KnownSum: -4, DeckLeft: 30}, false},
		{"normal all known and low", normal, ChukrumInputs{Known: 4, KnownSum: 6, DeckLeft: 30}, true},
		{"normal all known too high", normal, ChukrumInputs{Known: 4, KnownSum: 7, DeckLeft: 30}, false},
		{"normal needs every card", normal, ChukrumInputs{Known: 3, Unknown: 1, KnownSum: 0, Turns: 20, DeckLeft: 3}, false},
		{"normal ignores pairs", normal, ChukrumInputs{Known: 4, KnownSum: 6, DeckLeft: 30, ImprovablePair: true}, true},
		{"hard very low", hard, ChukrumInputs{Known: 4, KnownSum: 5, DeckLeft: 30, OpponentSwaps: 9}, true},
		{"hard low with calm opponent", hard, ChukrumInputs{Known: 4, KnownSum: 8, DeckLeft: 30, OpponentSwaps: 3}, true},
		{"hard low with improving opponent", hard, ChukrumInputs{Known: 4, KnownSum: 8, DeckLeft: 30, OpponentSwaps: 4}, false},
		{"hard one unknown after six turns", hard, ChukrumInputs{Known: 3, Unknown: 1, KnownSum: 3, Turns: 6, DeckLeft: 30}, true},
		{"hard one unknown too early", hard, ChukrumInputs{Known: 3, Unknown: 1, KnownSum: 3, Turns: 5, DeckLeft: 30}, false},
		{"hard uncertainty tightens with time", hard, ChukrumInputs{Known: 3, Unknown: 1, KnownSum: 3, Turns: 12, DeckLeft: 30}, false},
		{"hard short deck", hard, ChukrumInputs{Known: 3, Unknown: 1, KnownSum: 6, Turns: 2, DeckLeft: 7}, true},
		{"hard short deck improving opponent", hard, ChukrumInputs{Known: 3, Unknown: 1, KnownSum: 6, Turns: 2, DeckLeft: 7, OpponentSwaps: 5}, false},
		{"hard deck not short enough", hard, ChukrumInputs{Known: 3, Unknown: 1, KnownSum: 6, Turns: 2, DeckLeft: 8}, false},
		{"hard two unknown", hard, ChukrumInputs{Known: 2, Unknown: 2, KnownSum: -2, Turns: 8, DeckLeft: 3}, false},
		{"hard defers on improvable pair", hard, ChukrumInputs{Known: 4, KnownSum: 4, DeckLeft: 30, ImprovablePair: true}, false},
		{"empty hand", hard, ChukrumInputs{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ShouldCallChukrum(tt.profile, tt.in))
		})
	}
}

func TestParseDifficulty(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Difficulty{"easy": Easy, "Normal": Normal, "hard": Hard, "extreme": Hard, "": Normal} {
		got, err := ParseDifficulty(in)
		assert.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseDifficulty("impossible")
	assert.Error(t, err)
}

func TestProfilesShareOneShape(t *testing.T) {
	t.Parallel()

	assert.False(t, ProfileFor(Easy).CallsChukrum())
	assert.True(t, ProfileFor(Normal).CallsChukrum())
	assert.True(t, ProfileFor(Hard).CallsChukrum())
	assert.True(t, ProfileFor(Hard).OmniscientTargeting)
	assert.False(t, ProfileFor(Normal).OmniscientTargeting)
	assert.True(t, ProfileFor(Hard).Scramble)
	assert.Equal(t, 8, ProfileFor(Hard).exploreThreshold(4))
	assert.Equal(t, 5, ProfileFor(Hard).exploreThreshold(5))
}
