package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for REPL output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to.
type execIface interface {
	isLoggedIn() bool
	SignUp(ctx context.Context) error
	SignIn(ctx context.Context) error
	SignOut(ctx context.Context) error
	ShowProfile(ctx context.Context) error
	UpdateProfile(ctx context.Context) error
	ListCards(ctx context.Context) error
	CreateCard(ctx context.Context) error
	FreezeCard(ctx context.Context, args []string) error
	UnfreezeCard(ctx context.Context, args []string) error
	CancelCard(ctx context.Context, args []string) error
	ShowWallet(ctx context.Context) error
	Deposit(ctx context.Context, args []string) error
	Withdraw(ctx context.Context, args []string) error
}

const (
	helpSignedOut = "Available commands: signup, signin, help, exit"
	helpSignedIn  = "Available commands: profile, update-profile, cards, create-card, freeze <id>, unfreeze <id>, cancel <id>, wallet, deposit [amount], withdraw [amount] [address], signout, help, exit"
)

// runREPL reads one command per line from reader and dispatches it to a until
// EOF, "exit" or "quit". Handlers report their own failures.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		fmt.Printf("vcard %s> ", statusFn())
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if ctx.Err() != nil {
			return
		}

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpSignedIn)
			} else {
				printlnFn(helpSignedOut)
			}

		case "signup":
			_ = a.SignUp(ctx)
		case "signin", "login":
			_ = a.SignIn(ctx)
		case "signout", "logout":
			_ = a.SignOut(ctx)
		case "profile":
			_ = a.ShowProfile(ctx)
		case "update-profile":
			_ = a.UpdateProfile(ctx)
		case "cards":
			_ = a.ListCards(ctx)
		case "create-card":
			_ = a.CreateCard(ctx)
		case "freeze":
			_ = a.FreezeCard(ctx, args)
		case "unfreeze":
			_ = a.UnfreezeCard(ctx, args)
		case "cancel":
			_ = a.CancelCard(ctx, args)
		case "wallet":
			_ = a.ShowWallet(ctx)
		case "deposit":
			_ = a.Deposit(ctx, args)
		case "withdraw":
			_ = a.Withdraw(ctx, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
