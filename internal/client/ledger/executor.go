package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/suifan/internal/logging"
	"github.com/sethvargo/go-retry"
)

// Client is the subset of RPCClient the executor needs.
type Client interface {
	GasSource
	ExecuteTransaction(ctx context.Context, txBytes []byte, signatures []string, opts TxOptions) (*TransactionResponse, error)
	GetTransaction(ctx context.Context, digest string, opts TxOptions) (*TransactionResponse, error)
}

type ExecutorConfig struct {
	GasBudget    uint64
	PollInterval time.Duration
	Timeout      time.Duration
}

// Executor builds, signs, submits and awaits transactions.
type Executor struct {
	client Client
	cfg    ExecutorConfig
	logger logging.Logger
}

func NewExecutor(client Client, cfg ExecutorConfig, logger logging.Logger) *Executor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.GasBudget == 0 {
		cfg.GasBudget = 50_000_000
	}
	return &Executor{client: client, cfg: cfg, logger: logger.With("module", "ledger")}
}

var finalOptions = TxOptions{ShowEffects: true, ShowEvents: true}

var errNoEffects = errors.New("effects not available yet")

// pending reports whether err means the transaction is not queryable yet.
func pending(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr) || errors.Is(err, ErrUnavailable) || errors.Is(err, errNoEffects)
}

// SignAndExecute signs tx with wallet, submits it and waits for finality.
// The returned response carries effects and events.
func (e *Executor) SignAndExecute(ctx context.Context, wallet Wallet, tx *Transaction) (*TransactionResponse, error) {
	tx.SetSender(wallet.Address())
	if tx.gasBudget == 0 {
		tx.SetGasBudget(e.cfg.GasBudget)
	}

	txBytes, err := tx.Build(ctx, e.client)
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}

	sig, err := wallet.SignTransaction(ctx, txBytes)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}

	submitted, err := e.client.ExecuteTransaction(ctx, txBytes, []string{sig}, finalOptions)
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	e.logger.Debug(ctx, "transaction submitted", "digest", submitted.Digest)

	final, err := e.WaitForTransaction(ctx, submitted.Digest)
	if err != nil {
		return nil, err
	}
	if !final.Succeeded() {
		status := "missing effects"
		if final.Effects != nil {
			status = final.Effects.Status.Status + ": " + final.Effects.Status.Error
		}
		e.logger.Error(ctx, "transaction failed", "digest", final.Digest, "status", status)
		return final, fmt.Errorf("%w: %s (%s)", ErrTransactionFailed, final.Digest, status)
	}
	return final, nil
}

// WaitForTransaction polls until the transaction is queryable with effects,
// or ErrFinalityTimeout after the configured bound.
func (e *Executor) WaitForTransaction(ctx context.Context, digest string) (*TransactionResponse, error) {
	b := retry.WithMaxDuration(e.cfg.Timeout, retry.NewConstant(e.cfg.PollInterval))

	var res *TransactionResponse
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		r, err := e.client.GetTransaction(ctx, digest, finalOptions)
		if err != nil {
			if pending(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		if r.Effects == nil {
			return retry.RetryableError(fmt.Errorf("%w: %s", errNoEffects, digest))
		}
		res = r
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if pending(err) {
			e.logger.Warn(ctx, "finality wait gave up", "digest", digest, "error", err)
			return nil, fmt.Errorf("%w: %s: %w", ErrFinalityTimeout, digest, err)
		}
		return nil, err
	}
	return res, nil
}
