package bot

// ChukrumInputs is everything the Chukrum decision looks at
type ChukrumInputs struct {
	Known          int
	KnownSum       int
	Unknown        int
	Turns          int
	DeckLeft       int
	OpponentSwaps  int
	ImprovablePair bool
}

// ShouldCallChukrum is the deterministic part of the Chukrum decision: it
// passes if any of the profile's rules accept the inputs. Rules that
// tolerate unknown cards lose one point of MaxSum per unknown card for every
// MaturityTurns turns past their MinTurns.
func ShouldCallChukrum(p Profile, in ChukrumInputs) bool {
	if !p.CallsChukrum() || in.Known+in.Unknown == 0 {
		return false
	}
	if p.DeferOnPair && in.ImprovablePair {
		return false
	}
	calm := in.OpponentSwaps < p.CalmSwaps
	for _, rule := range p.ChukrumRules {
		if in.Unknown > rule.MaxUnknown || in.Known < rule.MinKnown || in.Turns < rule.MinTurns {
			continue
		}
		if rule.MaxDeck > 0 && in.DeckLeft > rule.MaxDeck {
			continue
		}
		if rule.RequireCalm && !calm {
			continue
		}
		maxSum := rule.MaxSum
		if in.Unknown > 0 && p.MaturityTurns > 0 {
			maxSum -= in.Unknown * ((in.Turns - rule.MinTurns) / p.MaturityTurns)
		}
		if in.KnownSum <= maxSum {
			return true
		}
	}
	return false
}
