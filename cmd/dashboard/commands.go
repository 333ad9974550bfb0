package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tradezone-dashboard/internal/models"
)

// command is one parsed line from the ":" prompt.
type command struct {
	name   string
	symbol string
	n      int64
}

var errUnknownCommand = errors.New("unknown command")

const commandHelp = "buy SYM N | sell SYM N | add SYM | rm SYM | wl N | new N | del N | show SYM | guest | signout | upgrade | welcome"

// parseCommand validates the shape of a prompt line. Business rules such as
// watchlist limits are left to the engine.
func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, errUnknownCommand
	}
	cmd := command{name: strings.ToLower(fields[0])}
	args := fields[1:]

	switch cmd.name {
	case "buy", "sell":
		if len(args) != 2 {
			return cmd, fmt.Errorf("usage: %s SYM N", cmd.name)
		}
		qty, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return cmd, fmt.Errorf("invalid quantity %q", args[1])
		}
		cmd.symbol = models.NormalizeSymbol(args[0])
		cmd.n = qty
	case "add", "rm", "show":
		if len(args) != 1 {
			return cmd, fmt.Errorf("usage: %s SYM", cmd.name)
		}
		cmd.symbol = models.NormalizeSymbol(args[0])
	case "wl", "new", "del":
		if len(args) != 1 {
			return cmd, fmt.Errorf("usage: %s N", cmd.name)
		}
		id, err := strconv.Atoi(args[0])
		if err != nil || !models.ValidWatchlistID(id) {
			return cmd, fmt.Errorf("watchlist must be 1-%d", models.MaxWatchlists)
		}
		cmd.n = int64(id)
	case "guest", "signout", "upgrade", "welcome":
		if len(args) != 0 {
			return cmd, fmt.Errorf("usage: %s", cmd.name)
		}
	default:
		return cmd, fmt.Errorf("%w %q", errUnknownCommand, cmd.name)
	}
	return cmd, nil
}
