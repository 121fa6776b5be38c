package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/suifan/internal/client/ledger"
	"github.com/dmitrijs2005/suifan/internal/client/media"
	"github.com/dmitrijs2005/suifan/internal/client/models"
	"github.com/dmitrijs2005/suifan/internal/client/services"
	"github.com/dmitrijs2005/suifan/internal/common"
	"github.com/dmitrijs2005/suifan/internal/logging"
)

var errDeclined = errors.New("declined by user")

// Player decrypts content into a playable URL and keeps only the latest one.
type Player interface {
	Play(ctx context.Context, wallet ledger.Wallet, req services.DecryptRequest) (string, error)
	Close() error
}

// MediaReader resolves URLs handed out by the Player.
type MediaReader interface {
	Get(url string) (media.Resource, error)
}

// HistoryReader lists the local publish history.
type HistoryReader interface {
	List(ctx context.Context) ([]models.Upload, error)
}

// Deps are the services the REPL drives. History may be nil.
type Deps struct {
	Catalog     services.CatalogService
	Marketplace services.MarketplaceService
	Publication services.PublicationService
	Player      Player
	Media       MediaReader
	History     HistoryReader
}

// Options carry the non-service settings of the App.
type Options struct {
	KeystorePath string
	// AutoApprove signs without asking for each transaction.
	AutoApprove bool
	// UsePublisher stores published files through the publisher instead of
	// writing slivers to storage nodes from this wallet.
	UsePublisher bool
}

type App struct {
	deps   Deps
	opts   Options
	logger logging.Logger

	wallet ledger.Wallet
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(deps Deps, opts Options, in io.Reader, out io.Writer, logger logging.Logger) *App {
	return &App{
		deps:   deps,
		opts:   opts,
		logger: logger.With("module", "cli"),
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run blocks in the REPL until the user exits or input ends.
func (a *App) Run(ctx context.Context) {
	defer func() {
		if err := a.deps.Player.Close(); err != nil {
			a.logger.Warn(ctx, "close player", "error", err)
		}
	}()

	a.printf("Welcome to suifan (type 'help' for commands)\n")
	runREPL(ctx, a, a.getStatus, a.reader, a.out)
}

func (a *App) hasWallet() bool {
	return a.wallet != nil
}

func (a *App) getStatus() string {
	if a.wallet == nil {
		return "(no wallet)"
	}
	return fmt.Sprintf("(%s)", shortID(a.wallet.Address()))
}

// approve is consulted by the wallet before every signature.
func (a *App) approve(ctx context.Context, what string) error {
	if a.opts.AutoApprove {
		return nil
	}
	ok, err := Confirm(a.reader, fmt.Sprintf("Sign %s?", what), true, a.out)
	if err != nil {
		return err
	}
	if !ok {
		return errDeclined
	}
	return nil
}

func (a *App) requireWallet() error {
	if a.wallet == nil {
		a.printf("No wallet unlocked, run 'wallet' first\n")
		return common.ErrWalletNotConnected
	}
	return nil
}

// report prints the user-facing text of err and logs its cause.
func (a *App) report(ctx context.Context, op string, err error) error {
	err = services.Classify(op, err)
	if common.KindOf(err) == common.KindCanceled {
		a.printf("Canceled\n")
		a.logger.Debug(ctx, op+" canceled", "error", err)
		return err
	}
	msg := common.UserMessage(err)
	if common.IsRetryable(err) {
		msg += " (retryable)"
	}
	a.printf("Error: %s\n", msg)
	a.logger.Error(ctx, op+" failed", "kind", common.KindOf(err).String(), "error", err)
	return err
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// shortID abbreviates a 0x-prefixed id for display.
func shortID(id string) string {
	if len(id) <= 14 {
		return id
	}
	return id[:8] + "…" + id[len(id)-4:]
}
