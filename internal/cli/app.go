package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"vcard-wallet-go/internal/api"
	"vcard-wallet-go/internal/common"
	"vcard-wallet-go/internal/models"

	"github.com/shopspring/decimal"
)

type App struct {
	auth   *api.AuthService
	cards  *api.CardService
	wallet *api.WalletService
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(s *common.Services) *App {
	return newApp(s.Auth, s.Cards, s.Wallet, os.Stdin, os.Stdout)
}

func newApp(auth *api.AuthService, cards *api.CardService, wallet *api.WalletService, in io.Reader, out io.Writer) *App {
	return &App{auth: auth, cards: cards, wallet: wallet, reader: bufio.NewReader(in), out: out}
}

// Run restores any existing session and starts the REPL.
func (a *App) Run(ctx context.Context) {
	if err := a.auth.LoadUser(ctx); err != nil {
		a.fail(a.auth.State().Error)
	}
	fmt.Fprintln(a.out, "Virtual card wallet (type 'help' for commands)")
	runREPL(ctx, a, a.status, a.reader)
}

func (a *App) isLoggedIn() bool {
	return a.auth.State().User != nil
}

func (a *App) status() string {
	if u := a.auth.State().User; u != nil {
		return "(" + u.Email + ") "
	}
	return ""
}

func (a *App) fail(message string) {
	fmt.Fprintln(a.out, "Error:", message)
}

func (a *App) requireUser() error {
	if !a.isLoggedIn() {
		a.fail(api.MsgNotLoggedIn)
		return errors.New(api.MsgNotLoggedIn)
	}
	return nil
}

func (a *App) credentials() (string, string, error) {
	email, err := GetSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return "", "", err
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return "", "", err
	}
	return email, password, nil
}

func (a *App) SignUp(ctx context.Context) error {
	email, password, err := a.credentials()
	if err != nil {
		return err
	}
	session, err := a.auth.SignUp(ctx, email, password)
	if err != nil {
		a.fail(a.auth.State().Error)
		return err
	}
	if session == nil {
		fmt.Fprintln(a.out, "Check your email to confirm the account, then sign in.")
		return nil
	}
	if err := a.auth.LoadUser(ctx); err != nil {
		a.fail(a.auth.State().Error)
		return err
	}
	fmt.Fprintln(a.out, "Signed up as", email)
	return nil
}

func (a *App) SignIn(ctx context.Context) error {
	email, password, err := a.credentials()
	if err != nil {
		return err
	}
	if _, err := a.auth.SignIn(ctx, email, password); err != nil {
		a.fail(a.auth.State().Error)
		return err
	}
	// The session can be dropped between sign-in and the user reload.
	user := a.auth.State().User
	if user == nil {
		return a.requireUser()
	}
	fmt.Fprintln(a.out, "Signed in as", user.Email)
	return nil
}

func (a *App) SignOut(ctx context.Context) error {
	if err := a.auth.SignOut(ctx); err != nil {
		a.fail(a.auth.State().Error)
		return err
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

func (a *App) ShowProfile(ctx context.Context) error {
	if err := a.requireUser(); err != nil {
		return err
	}
	state := a.auth.State()
	if state.Profile == nil {
		fmt.Fprintln(a.out, "No profile found for", state.User.Email)
		return nil
	}
	p := state.Profile
	fmt.Fprintln(a.out, "Profile")
	fmt.Fprintln(a.out, strings.Repeat("=", 40))
	fmt.Fprintf(a.out, "Email:      %s\n", state.User.Email)
	fmt.Fprintf(a.out, "Full name:  %s\n", valueOr(p.FullName, "-"))
	fmt.Fprintf(a.out, "Phone:      %s\n", valueOr(p.PhoneNumber, "-"))
	fmt.Fprintf(a.out, "KYC status: %s\n", p.KycStatus)
	return nil
}

func (a *App) UpdateProfile(ctx context.Context) error {
	if err := a.requireUser(); err != nil {
		return err
	}
	var patch models.ProfilePatch
	name, err := GetSimpleText(a.reader, "Full name (empty to keep)", a.out)
	if err != nil {
		return err
	}
	if name != "" {
		patch.FullName = &name
	}
	phone, err := GetSimpleText(a.reader, "Phone number (empty to keep)", a.out)
	if err != nil {
		return err
	}
	if phone != "" {
		patch.PhoneNumber = &phone
	}

	if err := a.auth.UpdateProfile(ctx, patch); err != nil {
		a.fail(a.auth.State().Error)
		return err
	}
	fmt.Fprintln(a.out, "Profile updated")
	return nil
}

func (a *App) ListCards(ctx context.Context) error {
	if err := a.requireUser(); err != nil {
		return err
	}
	if err := a.cards.FetchCards(ctx); err != nil {
		a.fail(a.cards.State().Error)
		return err
	}
	cards := a.cards.State().Cards
	if len(cards) == 0 {
		fmt.Fprintln(a.out, "No cards yet. Use create-card to issue one.")
		return nil
	}
	fmt.Fprintf(a.out, "Cards (%d)\n", len(cards))
	for i, c := range cards {
		fmt.Fprintln(a.out, common.BoxPrefix(i == len(cards)-1)+common.CardLine(c))
	}
	return nil
}

func (a *App) CreateCard(ctx context.Context) error {
	card, err := a.cards.CreateCard(ctx)
	if err != nil {
		a.fail(a.cards.State().Error)
		return err
	}
	fmt.Fprintf(a.out, "Card issued: %s  exp %s\n", card.CardNumber, card.ExpiryDate)
	return nil
}

func (a *App) FreezeCard(ctx context.Context, args []string) error {
	return a.changeCard(ctx, args, "frozen", a.cards.FreezeCard)
}

func (a *App) UnfreezeCard(ctx context.Context, args []string) error {
	return a.changeCard(ctx, args, "unfrozen", a.cards.UnfreezeCard)
}

func (a *App) CancelCard(ctx context.Context, args []string) error {
	return a.changeCard(ctx, args, "cancelled", func(ctx context.Context, cardId string) error {
		if !Confirm(a.reader, "Cancelling is permanent. Continue?", a.out) {
			return errAborted
		}
		return a.cards.CancelCard(ctx, cardId)
	})
}

var errAborted = errors.New("aborted")

func (a *App) changeCard(ctx context.Context, args []string, done string, op func(context.Context, string) error) error {
	if err := a.requireUser(); err != nil {
		return err
	}
	cardId, err := argOrPrompt(args, 0, a.reader, "Card id", a.out)
	if err != nil {
		return err
	}
	if err := op(ctx, cardId); err != nil {
		if errors.Is(err, errAborted) {
			fmt.Fprintln(a.out, "Aborted")
			return err
		}
		a.fail(a.cards.State().Error)
		return err
	}
	fmt.Fprintf(a.out, "Card %s %s\n", cardId, done)
	return nil
}

func (a *App) loadWallet(ctx context.Context) (*models.CryptoWallet, error) {
	if err := a.wallet.FetchWallet(ctx); err != nil {
		a.fail(a.wallet.State().Error)
		return nil, err
	}
	w := a.wallet.State().Wallet
	if w == nil {
		fmt.Fprintln(a.out, "No wallet has been provisioned for this account yet.")
	}
	return w, nil
}

func (a *App) ShowWallet(ctx context.Context) error {
	w, err := a.loadWallet(ctx)
	if err != nil || w == nil {
		return err
	}
	if err := a.wallet.FetchTransactions(ctx); err != nil {
		a.fail(a.wallet.State().Error)
		return err
	}

	fmt.Fprintf(a.out, "TRON address: %s\n", w.TronAddress)
	fmt.Fprintf(a.out, "Balance:      %s\n", common.FormatUsdt(w.UsdtBalance))
	txs := a.wallet.State().Transactions
	if len(txs) == 0 {
		fmt.Fprintln(a.out, "No transactions")
		return nil
	}
	fmt.Fprintf(a.out, "Transactions (%d)\n", len(txs))
	for i, tx := range txs {
		fmt.Fprintln(a.out, common.BoxPrefix(i == len(txs)-1)+common.TransactionLine(tx))
	}
	return nil
}

func (a *App) Deposit(ctx context.Context, args []string) error {
	w, err := a.loadWallet(ctx)
	if err != nil || w == nil {
		return err
	}
	amount, err := a.amount(args, 0)
	if err != nil {
		return err
	}
	tx, err := a.wallet.InitiateDeposit(ctx, amount)
	if err != nil {
		a.fail(a.wallet.State().Error)
		return err
	}
	fmt.Fprintf(a.out, "Deposit of %s requested. Send the funds to %s\n", common.FormatUsdt(tx.Amount), w.TronAddress)
	return nil
}

func (a *App) Withdraw(ctx context.Context, args []string) error {
	w, err := a.loadWallet(ctx)
	if err != nil || w == nil {
		return err
	}
	amount, err := a.amount(args, 0)
	if err != nil {
		return err
	}
	to, err := argOrPrompt(args, 1, a.reader, "Destination TRON address", a.out)
	if err != nil {
		return err
	}
	tx, err := a.wallet.InitiateWithdrawal(ctx, amount, to)
	if err != nil {
		a.fail(a.wallet.State().Error)
		return err
	}
	fmt.Fprintf(a.out, "Withdrawal of %s to %s is pending\n", common.FormatUsdt(tx.Amount), to)
	return nil
}

func (a *App) amount(args []string, i int) (decimal.Decimal, error) {
	raw, err := argOrPrompt(args, i, a.reader, "Amount (USDT)", a.out)
	if err != nil {
		return decimal.Zero, err
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		a.fail("Invalid amount")
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	return amount, nil
}

func valueOr(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}
