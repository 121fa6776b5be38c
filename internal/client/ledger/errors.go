package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable       = errors.New("ledger rpc unavailable")
	ErrObjectNotFound    = errors.New("object not found")
	ErrFinalityTimeout   = errors.New("transaction not final before timeout")
	ErrTransactionFailed = errors.New("transaction failed")
	ErrWalletRejected    = errors.New("wallet rejected the request")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrInvalidAddress    = errors.New("invalid address")
	ErrInsufficientGas   = errors.New("not enough gas coins")
	ErrMalformedTx       = errors.New("malformed transaction bytes")
	ErrMissingSender     = errors.New("transaction sender is not set")
)

// RPCError is an error object returned by the JSON-RPC endpoint.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}
