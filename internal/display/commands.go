package display

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lox/chukrum/internal/game"
)

// ErrUnknownCommand is returned for input no command matches
var ErrUnknownCommand = errors.New("unknown command")

// Command is one parsed line of REPL input. Game moves carry an Action;
// everything else is identified by Name alone, with chat text in Arg.
type Command struct {
	Name   string
	Action *game.Action
	Arg    string
}

// IsMove reports whether the command is a game action
func (c Command) IsMove() bool {
	return c.Action != nil
}

// ParseCommand parses a REPL line. Hand positions are typed 1-based and
// returned 0-based in the Action.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, nil
	}
	name := strings.ToLower(fields[0])
	args := fields[1:]

	move := func(kind game.ActionKind, positions ...*int) (Command, error) {
		if len(args) != len(positions) {
			return Command{}, fmt.Errorf("%s takes %d position(s)", name, len(positions))
		}
		for i, p := range positions {
			n, err := strconv.Atoi(args[i])
			if err != nil || n < 1 {
				return Command{}, fmt.Errorf("invalid position %q", args[i])
			}
			*p = n - 1
		}
		return Command{Name: kind.String(), Action: &game.Action{Kind: kind}}, nil
	}

	var a game.Action
	var cmd Command
	var err error
	switch name {
	case "draw", "d":
		cmd, err = move(game.Draw)
	case "discard", "x":
		cmd, err = move(game.Discard)
	case "swap", "s":
		cmd, err = move(game.SwapOwn, &a.Own)
	case "peek", "p":
		cmd, err = move(game.PeekOwn, &a.Own)
	case "peekopp", "po":
		cmd, err = move(game.PeekOpponent, &a.Opponent)
	case "cross", "c":
		cmd, err = move(game.CrossSwap, &a.Own, &a.Opponent)
	case "match", "m":
		cmd, err = move(game.MatchDiscard, &a.Own)
	case "chukrum":
		cmd, err = move(game.CallChukrum)
	case "scramble":
		cmd, err = move(game.Scramble)
	case "chat", "say":
		text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
		if text == "" {
			return Command{}, errors.New("chat needs a message")
		}
		return Command{Name: "chat", Arg: text}, nil
	case "quit", "q", "exit":
		return Command{Name: "quit"}, nil
	case "help", "?":
		return Command{Name: "help"}, nil
	case "show", "new", "next", "rematch", "accept", "follow", "leave":
		return Command{Name: name}, nil
	default:
		return Command{}, fmt.Errorf("%w: %s", ErrUnknownCommand, fields[0])
	}
	if err != nil {
		return Command{}, err
	}
	a.Kind = cmd.Action.Kind
	cmd.Action = &a
	return cmd, nil
}

// Help lists the commands. Multiplayer commands are only listed when
// multiplayer is true.
func Help(multiplayer bool) string {
	var b strings.Builder
	b.WriteString("Moves:\n")
	b.WriteString("  draw            draw from the deck\n")
	b.WriteString("  swap N          swap the drawn card into position N\n")
	b.WriteString("  discard         discard the drawn card\n")
	b.WriteString("  peek N          peek at your card N (jack, queen, king)\n")
	b.WriteString("  peekopp N       peek at opponent card N (queen variant, king)\n")
	b.WriteString("  cross A B       swap your card A with opponent card B\n")
	b.WriteString("  match N         discard card N if it matches the discard pile\n")
	b.WriteString("  chukrum         call chukrum instead of drawing\n")
	b.WriteString("  scramble        forfeit the drawn card to shuffle the opponent's hand\n")
	b.WriteString("Other:\n")
	b.WriteString("  show            redraw the table\n")
	if multiplayer {
		b.WriteString("  chat TEXT       send a chat message\n")
		b.WriteString("  next            start the next round of the series\n")
		b.WriteString("  rematch         ask for a rematch once the series is over\n")
		b.WriteString("  accept          accept the opponent's rematch\n")
		b.WriteString("  follow          move to the accepted rematch\n")
		b.WriteString("  leave           abandon the game\n")
	} else {
		b.WriteString("  new             deal a new round\n")
	}
	b.WriteString("  help            show this help\n")
	b.WriteString("  quit            quit\n")
	return b.String()
}
