// Package multiplayer keeps a two-player game in a shared record. Each
// client runs a Session that restores a game.Round from the latest record,
// applies its own action and writes the result back with a
// version-checked patch. The store only stores and relays; every rule is
// enforced by the Round on the acting client.
package multiplayer

import (
	"slices"
	"time"

	"github.com/lox/chukrum/internal/deck"
	"github.com/lox/chukrum/internal/game"
)

// Status is the lifecycle state of a shared game
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusPlaying    Status = "playing"
	StatusFinalRound Status = "final_round"
	StatusEnded      Status = "ended"
	StatusAbandoned  Status = "abandoned"
)

// Active reports whether turns are being played
func (s Status) Active() bool {
	return s == StatusPlaying || s == StatusFinalRound
}

func statusFor(p game.Phase) Status {
	switch p {
	case game.FinalRound:
		return StatusFinalRound
	case game.Ended:
		return StatusEnded
	default:
		return StatusPlaying
	}
}

func (s Status) phase() game.Phase {
	switch s {
	case StatusFinalRound:
		return game.FinalRound
	case StatusEnded, StatusAbandoned:
		return game.Ended
	default:
		return game.Playing
	}
}

// ChatMessage is one line of the append-only chat log
type ChatMessage struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Seq       int       `json:"seq"`
}

// Record is the shared game document. It always holds all 52 cards: both
// hands, the draw pile, the discard pile and the drawn card while one is
// held.
type Record struct {
	ID        string     `json:"id"`
	Version   int64      `json:"version"`
	HostID    string     `json:"hostId"`
	GuestID   string     `json:"guestId,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	Rules     game.Rules `json:"rules"`

	HostHand    []deck.Card `json:"hostHand"`
	GuestHand   []deck.Card `json:"guestHand"`
	Deck        []deck.Card `json:"deck"`
	DiscardPile []deck.Card `json:"discardPile"`
	Held        *deck.Card  `json:"held"`

	Status         Status         `json:"status"`
	CurrentTurn    game.Seat      `json:"currentTurn"`
	FirstTurn      game.Seat      `json:"firstTurn"`
	ChukrumCaller  game.Seat      `json:"chukrumCaller"`
	FinalTurnsLeft int            `json:"finalTurnsLeft"`
	TurnNumber     int            `json:"turnNumber"`
	MatchNumber    int            `json:"matchNumber"`
	ScrambleUsed   [2]bool        `json:"scrambleUsed"`
	EndReason      game.EndReason `json:"endReason,omitempty"`

	HostCumulativeScore  int  `json:"hostCumulativeScore"`
	GuestCumulativeScore int  `json:"guestCumulativeScore"`
	CumulativeApplied    bool `json:"cumulativeApplied"`
	TargetScore          int  `json:"targetScore,omitempty"`

	HostHeartbeat  time.Time     `json:"hostHeartbeat,omitzero"`
	GuestHeartbeat time.Time     `json:"guestHeartbeat,omitzero"`
	Chat           []ChatMessage `json:"chat,omitempty"`

	RematchRequestedBy string `json:"rematchRequestedBy,omitempty"`
	RematchID          string `json:"rematchId,omitempty"`
	RematchAccepted    bool   `json:"rematchAccepted,omitempty"`
	PreviousID         string `json:"previousId,omitempty"`
	AbandonedBy        string `json:"abandonedBy,omitempty"`
	LastAction         string `json:"lastAction,omitempty"`
}

// Clone returns a deep copy
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.HostHand = slices.Clone(r.HostHand)
	c.GuestHand = slices.Clone(r.GuestHand)
	c.Deck = slices.Clone(r.Deck)
	c.DiscardPile = slices.Clone(r.DiscardPile)
	c.Chat = slices.Clone(r.Chat)
	if r.Held != nil {
		held := *r.Held
		c.Held = &held
	}
	return &c
}

// PlayerID returns the player sitting at seat
func (r *Record) PlayerID(s game.Seat) string {
	if s == game.Guest {
		return r.GuestID
	}
	return r.HostID
}

// SeatOf returns the seat player sits at, or NoSeat
func (r *Record) SeatOf(player string) game.Seat {
	switch {
	case player == "":
		return game.NoSeat
	case player == r.HostID:
		return game.Host
	case player == r.GuestID:
		return game.Guest
	default:
		return game.NoSeat
	}
}

// Heartbeat returns the last heartbeat written by seat
func (r *Record) Heartbeat(s game.Seat) time.Time {
	if s == game.Guest {
		return r.GuestHeartbeat
	}
	return r.HostHeartbeat
}

// CumulativeScores returns the series totals by seat
func (r *Record) CumulativeScores() [2]int {
	return [2]int{r.HostCumulativeScore, r.GuestCumulativeScore}
}

// CardCount totals every card in the record
func (r *Record) CardCount() int {
	n := len(r.HostHand) + len(r.GuestHand) + len(r.Deck) + len(r.DiscardPile)
	if r.Held != nil {
		n++
	}
	return n
}

// State converts the record into a round state. The special sub-state is
// never shared and comes back empty.
func (r *Record) State() game.State {
	st := game.State{
		Hands:          [2][]deck.Card{slices.Clone(r.HostHand), slices.Clone(r.GuestHand)},
		Deck:           slices.Clone(r.Deck),
		Discard:        slices.Clone(r.DiscardPile),
		Phase:          r.Status.phase(),
		First:          r.FirstTurn,
		Current:        r.CurrentTurn,
		ChukrumCaller:  r.ChukrumCaller,
		FinalTurnsLeft: r.FinalTurnsLeft,
		TurnNumber:     r.TurnNumber,
		PendingEnd:     r.Held != nil && len(r.Deck) == 0,
		ScrambleUsed:   r.ScrambleUsed,
		Reason:         r.EndReason,
	}
	if r.Held != nil {
		held := *r.Held
		st.Held = &held
	}
	return st
}

// SetState copies a round state into the record
func (r *Record) SetState(st game.State) {
	r.HostHand = slices.Clone(st.Hands[game.Host])
	r.GuestHand = slices.Clone(st.Hands[game.Guest])
	r.Deck = slices.Clone(st.Deck)
	r.DiscardPile = slices.Clone(st.Discard)
	r.Held = nil
	if st.Held != nil {
		held := *st.Held
		r.Held = &held
	}
	if r.Status != StatusAbandoned && r.Status != StatusWaiting {
		r.Status = statusFor(st.Phase)
	}
	r.CurrentTurn = st.Current
	r.FirstTurn = st.First
	r.ChukrumCaller = st.ChukrumCaller
	r.FinalTurnsLeft = st.FinalTurnsLeft
	r.TurnNumber = st.TurnNumber
	r.ScrambleUsed = st.ScrambleUsed
	r.EndReason = 0
	if st.Phase == game.Ended {
		r.EndReason = st.Reason
	}
}

// Outcome scores the round once it has ended. Scores always come from the
// hands, never from stored totals.
func (r *Record) Outcome() (game.Outcome, bool) {
	if r.Status != StatusEnded {
		return game.Outcome{}, false
	}
	scores := [2]int{game.Score(r.HostHand), game.Score(r.GuestHand)}
	reason := r.EndReason
	if reason == 0 {
		reason = game.DeckExhausted
	}
	return game.NewOutcome(scores, reason, r.ChukrumCaller), true
}

// SeriesOver reports whether a cumulative total has reached the target
func (r *Record) SeriesOver() bool {
	if r.TargetScore <= 0 {
		return false
	}
	return r.HostCumulativeScore >= r.TargetScore || r.GuestCumulativeScore >= r.TargetScore
}

// SeriesWinner returns the seat with the lower cumulative total once the
// series is over. Reaching the target loses.
func (r *Record) SeriesWinner() game.Seat {
	if !r.SeriesOver() {
		return game.NoSeat
	}
	switch {
	case r.HostCumulativeScore < r.GuestCumulativeScore:
		return game.Host
	case r.GuestCumulativeScore < r.HostCumulativeScore:
		return game.Guest
	default:
		return game.NoSeat
	}
}

func (r *Record) nextChatSeq(sender string) int {
	seq := 0
	for _, m := range r.Chat {
		if m.Sender == sender && m.Seq > seq {
			seq = m.Seq
		}
	}
	return seq + 1
}
