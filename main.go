// Package main implements depot, a peer-to-peer inventory exchange node.
//
// Usage: depot <name> [<good> <qty>]...
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"golang.org/x/sync/errgroup"
)

const (
	exitUsage           = 1
	exitInvalidName     = 2
	exitInvalidQuantity = 3
)

// depot is the process-wide state shared by every session: its fixed
// identity, its registry, and a logger. name and port never change after
// construction.
type depot struct {
	name     string
	port     int
	registry *registry
	log      *slog.Logger
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: depot name {goods qty}")
		os.Exit(exitUsage)
	}
	name := os.Args[1]
	if !validName(name) {
		fmt.Fprintln(os.Stderr, "Invalid name(s)")
		os.Exit(exitInvalidName)
	}

	initial, err := parseInitialInventory(os.Args[2:])
	if err != nil {
		var badName *invalidGoodNameError
		switch {
		case errors.As(err, &badName):
			if badName.name == "" {
				fmt.Fprintln(os.Stderr, "Usage: depot name {goods qty}")
				os.Exit(exitUsage)
			}
			fmt.Fprintln(os.Stderr, "Invalid name(s)")
			os.Exit(exitInvalidName)
		default:
			fmt.Fprintln(os.Stderr, "Invalid quantity")
			os.Exit(exitInvalidQuantity)
		}
	}

	ln, port, err := listen()
	if err != nil {
		log.Error("failed to bind listener", "err", err)
		os.Exit(1)
	}

	d := &depot{name: name, port: port, registry: newRegistry(), log: log}
	for good, qty := range initial {
		d.registry.deliver(good, qty)
	}

	fmt.Printf("%d\n", port)

	log.Info("depot started", "name", name, "port", port)

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error { return d.acceptLoop(ln) })
	g.Go(func() error { return runReporter(ctx, d.registry) })

	if err := g.Wait(); err != nil {
		log.Error("depot stopped", "err", err)
	}
}

// invalidGoodNameError reports a startup good name that failed the same
// forbidden-character check applied to the depot's own name. An empty
// name and a name containing a forbidden character are both reported
// this way; main distinguishes the two by inspecting name.
type invalidGoodNameError struct {
	name string
}

func (e *invalidGoodNameError) Error() string {
	return fmt.Sprintf("invalid good name %q", e.name)
}

// parseInitialInventory validates and parses the alternating good/qty
// argv pairs. Each good name must pass the forbidden-character check
// shared with the depot's own name; each quantity must be a
// non-negative integer (zero is allowed at startup, unlike the
// strictly-positive qty required by the wire Deliver verb).
func parseInitialInventory(args []string) (map[string]int, error) {
	inventory := make(map[string]int)
	for i := 0; i+1 < len(args); i += 2 {
		good := args[i]
		if !validName(good) {
			return nil, &invalidGoodNameError{name: good}
		}
		qty, err := strconv.Atoi(args[i+1])
		if err != nil || qty < 0 {
			return nil, fmt.Errorf("invalid quantity %q", args[i+1])
		}
		inventory[good] += qty
	}
	return inventory, nil
}
