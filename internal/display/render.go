package display

import (
	"fmt"
	"strings"

	"github.com/lox/chukrum/internal/deck"
	"github.com/lox/chukrum/internal/game"
)

const hiddenCard = "??"

// Renderer formats tables, cards and outcomes
type Renderer struct {
	styles *Styles
}

// NewRenderer creates a renderer. A nil styles uses DefaultStyles.
func NewRenderer(styles *Styles) *Renderer {
	if styles == nil {
		styles = DefaultStyles()
	}
	return &Renderer{styles: styles}
}

// Styles returns the renderer's styles, for status lines
func (r *Renderer) Styles() *Styles {
	return r.styles
}

// Card formats a face-up card in its suit colour
func (r *Renderer) Card(c deck.Card) string {
	if c.Suit.IsRed() {
		return r.styles.RedCard.Render(c.String())
	}
	return r.styles.BlackCard.Render(c.String())
}

// Cards formats face-up cards
func (r *Renderer) Cards(cards []deck.Card) string {
	if len(cards) == 0 {
		return "[]"
	}
	formatted := make([]string, len(cards))
	for i, c := range cards {
		formatted[i] = r.Card(c)
	}
	return "[" + strings.Join(formatted, " ") + "]"
}

// Hand formats a face-down hand by position, showing only faces in notes
func (r *Renderer) Hand(ids []string, notes *Notes) string {
	if len(ids) == 0 {
		return r.styles.Info.Render("(empty)")
	}
	slots := make([]string, len(ids))
	for i, id := range ids {
		face := r.styles.Hidden.Render(hiddenCard)
		if notes != nil {
			if c, ok := notes.Known(id); ok {
				face = r.Card(c)
			}
		}
		slots[i] = r.styles.Position.Render(fmt.Sprintf("%d:", i+1)) + face
	}
	return strings.Join(slots, "  ")
}

// Table renders the whole table from the viewer's seat
func (r *Renderer) Table(v game.TableView, notes *Notes) string {
	var b strings.Builder

	header := fmt.Sprintf("Turn %d  Deck %d", v.TurnNumber, v.DeckLeft)
	if v.Phase == game.FinalRound {
		who := "Opponent"
		if v.ChukrumCaller == v.Seat {
			who = "You"
		}
		header += fmt.Sprintf("  %s called Chukrum, %d turn(s) left", who, v.FinalTurnsLeft)
	}
	b.WriteString(r.styles.Header.Render(header))
	b.WriteString("\n")

	b.WriteString(r.styles.Label.Render("Opponent"))
	b.WriteString(r.Hand(v.OpponentIDs, notes))
	b.WriteString("\n")

	b.WriteString(r.styles.Label.Render("Discard"))
	if v.DiscardTop != nil {
		b.WriteString(r.Card(*v.DiscardTop))
	} else {
		b.WriteString(r.styles.Info.Render("(empty)"))
	}
	b.WriteString("\n")

	b.WriteString(r.styles.Label.Render("You"))
	b.WriteString(r.Hand(v.OwnIDs, notes))
	b.WriteString("\n")

	if v.Held != nil {
		b.WriteString(r.styles.Label.Render("Drawn"))
		b.WriteString(r.styles.Held.Render(r.Card(*v.Held)))
		b.WriteString("\n")
	}

	b.WriteString(r.styles.Info.Render(Hint(v)))
	return b.String()
}

// Outcome renders an ended round with both hands revealed
func (r *Renderer) Outcome(o game.Outcome, hands [2][]deck.Card, seat game.Seat) string {
	var b strings.Builder
	b.WriteString(r.styles.Header.Render("Round over: " + reasonText(o.Reason)))
	b.WriteString("\n")
	b.WriteString(r.styles.Label.Render("You"))
	fmt.Fprintf(&b, "%s = %d\n", r.Cards(hands[seat]), o.Scores[seat])
	b.WriteString(r.styles.Label.Render("Opponent"))
	fmt.Fprintf(&b, "%s = %d\n", r.Cards(hands[seat.Other()]), o.Scores[seat.Other()])

	switch {
	case o.Tie:
		b.WriteString(r.styles.Warning.Render("It's a tie"))
	case o.Winner == seat:
		b.WriteString(r.styles.Success.Render("You win"))
	default:
		b.WriteString(r.styles.Error.Render("You lose"))
	}
	return b.String()
}

func reasonText(reason game.EndReason) string {
	switch reason {
	case game.DeckExhausted:
		return "the deck ran out"
	case game.HandEmptied:
		return "a hand was emptied"
	case game.ChukrumResolved:
		return "chukrum"
	default:
		return reason.String()
	}
}

// Hint says what the viewer can do next
func Hint(v game.TableView) string {
	switch {
	case v.Phase == game.Ended:
		return "Round over"
	case !v.MyTurn():
		return "Waiting for opponent"
	case v.Held == nil:
		if v.Phase == game.Playing {
			return "Your turn: draw, match N or chukrum"
		}
		return "Your turn: draw or match N"
	}

	scramble := ""
	if v.CanScramble && v.Special.Stage != game.StageAwaitSecondPeek && v.Special.Stage != game.StageReady {
		scramble = ", or scramble"
	}
	switch v.Special.Stage {
	case game.StageAwaitFirstPeek:
		switch v.Special.Power {
		case deck.Jack:
			return "Jack: peek N at one of your cards" + scramble
		case deck.Queen:
			if v.Rules.QueenPeek == game.QueenPeekEither {
				return "Queen: peek N or peekopp N" + scramble
			}
			return "Queen: peek N at one of your cards" + scramble
		default:
			return "King: peek N and peekopp N, in either order" + scramble
		}
	case game.StageAwaitSecondPeek:
		if len(v.Special.Peeks) == 1 && v.Special.Peeks[0].Side == game.OwnSide {
			return "King: now peekopp N"
		}
		return "King: now peek N"
	case game.StageReady:
		if v.Special.Power == deck.Jack {
			return "Jack: discard"
		}
		return "cross A B to swap the peeked cards, or discard"
	}
	return "swap N or discard" + scramble
}
