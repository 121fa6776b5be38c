package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	hasWallet() bool
	Wallet(ctx context.Context) error
	Creators(ctx context.Context) error
	Mine(ctx context.Context) error
	Contents(ctx context.Context, creatorID string) error
	Subscriptions(ctx context.Context) error
	Subscribe(ctx context.Context, creatorID string) error
	Register(ctx context.Context) error
	Publish(ctx context.Context, path string) error
	Play(ctx context.Context, creatorID, blobID, out string) error
	History(ctx context.Context) error
}

const (
	helpNoWallet = "Available commands: wallet, creators, contents <creator>, help, exit"
	helpWallet   = "Available commands: creators, mine, contents <creator>, subscriptions, subscribe <creator>, " +
		"register, publish <file>, play <creator> <blob> [out], history, help, exit"
)

// runREPL reads one command per line from reader and dispatches it to a.
//
// Commands:
//
//	wallet                          unlock or create the local wallet
//	creators                        list all registered creators
//	mine                            list creators owned by this wallet
//	contents <creator>              list a creator's published content
//	subscriptions                   list this wallet's subscriptions
//	subscribe <creator>             buy a subscription at the creator's price
//	register                        register this wallet as a creator
//	publish <file>                  encrypt and publish a file
//	play <creator> <blob> [out]     decrypt subscribed content
//	history                         show the local publish history
//	exit | quit                     leave the program
//
// Handlers report their own errors, so the loop ignores them.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, w io.Writer) {
	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprintf(w, "suifan %s> ", statusFn())
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.hasWallet() {
				fmt.Fprintln(w, helpWallet)
			} else {
				fmt.Fprintln(w, helpNoWallet)
			}

		case "wallet":
			_ = a.Wallet(ctx)

		case "creators":
			_ = a.Creators(ctx)

		case "mine":
			_ = a.Mine(ctx)

		case "contents":
			if len(args) != 1 {
				fmt.Fprintln(w, "Usage: contents <creator>")
				continue
			}
			_ = a.Contents(ctx, args[0])

		case "subscriptions", "subs":
			_ = a.Subscriptions(ctx)

		case "subscribe":
			if len(args) != 1 {
				fmt.Fprintln(w, "Usage: subscribe <creator>")
				continue
			}
			_ = a.Subscribe(ctx, args[0])

		case "register":
			_ = a.Register(ctx)

		case "publish":
			if len(args) != 1 {
				fmt.Fprintln(w, "Usage: publish <file>")
				continue
			}
			_ = a.Publish(ctx, args[0])

		case "play":
			if len(args) < 2 || len(args) > 3 {
				fmt.Fprintln(w, "Usage: play <creator> <blob> [out]")
				continue
			}
			out := ""
			if len(args) == 3 {
				out = args[2]
			}
			_ = a.Play(ctx, args[0], args[1], out)

		case "history":
			_ = a.History(ctx)

		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return

		default:
			fmt.Fprintln(w, "Unknown command:", cmd)
		}
	}
}
