package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/lox/chukrum/internal/display"
	"github.com/lox/chukrum/internal/game"
)

// readLines reads r on its own goroutine so a REPL can wait for input and
// for game updates in the same select. The channel closes at EOF.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// poke is a non-blocking wake-up signal
type poke chan struct{}

func newPoke() poke { return make(poke, 1) }

func (p poke) signal() {
	select {
	case p <- struct{}{}:
	default:
	}
}

// OnEvent lets a poke subscribe to a round's event bus
func (p poke) OnEvent(game.GameEvent) { p.signal() }

// console writes REPL output
type console struct {
	out      io.Writer
	renderer *display.Renderer
}

func (c *console) println(s string) {
	fmt.Fprintln(c.out, s)
}

func (c *console) info(format string, args ...any) {
	c.println(c.renderer.Styles().Info.Render(fmt.Sprintf(format, args...)))
}

func (c *console) success(format string, args ...any) {
	c.println(c.renderer.Styles().Success.Render(fmt.Sprintf(format, args...)))
}

func (c *console) warn(format string, args ...any) {
	c.println(c.renderer.Styles().Warning.Render(fmt.Sprintf(format, args...)))
}

// rejected prints a refused command. Invalid moves are expected while
// playing, so they are shown without the sentinel prefix.
func (c *console) rejected(err error) {
	msg := err.Error()
	if errors.Is(err, game.ErrInvalidAction) {
		msg = strings.TrimPrefix(msg, game.ErrInvalidAction.Error()+": ")
	}
	c.println(c.renderer.Styles().Error.Render(msg))
}

func (c *console) prompt() {
	fmt.Fprint(c.out, "> ")
}

// describeResult is the private account of the player's own move
func describeResult(r *display.Renderer, res game.Result) string {
	var parts []string
	if res.Drawn != nil {
		parts = append(parts, "You drew "+r.Card(*res.Drawn))
	}
	if res.Peeked != nil {
		parts = append(parts, "You peeked at "+r.Card(*res.Peeked))
	}
	if res.Matched {
		parts = append(parts, "Matched!")
	}
	if res.Penalty != nil {
		parts = append(parts, "No match, a penalty card was added to your hand")
	}
	if res.PenaltySkipped {
		parts = append(parts, "No match, but the deck is empty so there is no penalty")
	}
	return strings.Join(parts, ". ")
}
