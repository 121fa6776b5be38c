package ledger

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// DecodedInput is one input of a decoded programmable transaction.
type DecodedInput struct {
	Pure []byte

	IsObject bool
	ObjectID string
	Shared   bool
	Mutable  bool
	Version  uint64
	Digest   string
}

// DecodedCommand is a MoveCall or SplitCoins command.
type DecodedCommand struct {
	Kind uint8

	Package  string
	Module   string
	Function string
	Args     []Argument

	Coin    Argument
	Amounts []Argument
}

// Target is "package::module::function" for move calls.
func (c DecodedCommand) Target() string {
	return c.Package + "::" + c.Module + "::" + c.Function
}

type DecodedKind struct {
	Inputs   []DecodedInput
	Commands []DecodedCommand
}

// DecodeTransactionKind parses bytes produced by BuildKind.
func DecodeTransactionKind(b []byte) (*DecodedKind, error) {
	var w wireTransactionKind
	if err := unmarshal(b, &w); err != nil {
		return nil, err
	}
	if w.Programmable == nil {
		return nil, fmt.Errorf("%w: unsupported transaction kind", ErrMalformedTx)
	}

	k := &DecodedKind{}
	for _, in := range w.Programmable.Inputs {
		d, err := decodeInput(in)
		if err != nil {
			return nil, err
		}
		k.Inputs = append(k.Inputs, d)
	}
	for _, c := range w.Programmable.Commands {
		d, err := decodeCommand(c)
		if err != nil {
			return nil, err
		}
		k.Commands = append(k.Commands, d)
	}
	return k, nil
}

func decodeInput(in wireCallArg) (DecodedInput, error) {
	switch {
	case in.Pure != nil:
		return DecodedInput{Pure: *in.Pure}, nil
	case in.Object != nil && in.Object.ImmOrOwned != nil:
		ref := in.Object.ImmOrOwned
		return DecodedInput{
			IsObject: true,
			ObjectID: FormatAddress(ref.ObjectID),
			Version:  ref.Version,
			Digest:   base58.Encode(ref.Digest),
		}, nil
	case in.Object != nil && in.Object.Shared != nil:
		sh := in.Object.Shared
		return DecodedInput{
			IsObject: true,
			Shared:   true,
			ObjectID: FormatAddress(sh.ObjectID),
			Version:  sh.InitialSharedVersion,
			Mutable:  sh.Mutable,
		}, nil
	}
	return DecodedInput{}, fmt.Errorf("%w: empty call arg", ErrMalformedTx)
}

func decodeCommand(c wireCommand) (DecodedCommand, error) {
	switch {
	case c.MoveCall != nil:
		args, err := fromWireArgs(c.MoveCall.Arguments)
		if err != nil {
			return DecodedCommand{}, err
		}
		return DecodedCommand{
			Kind:     commandMoveCall,
			Package:  FormatAddress(c.MoveCall.Package),
			Module:   c.MoveCall.Module,
			Function: c.MoveCall.Function,
			Args:     args,
		}, nil
	case c.SplitCoins != nil:
		coin, err := fromWireArg(c.SplitCoins.Coin)
		if err != nil {
			return DecodedCommand{}, err
		}
		amounts, err := fromWireArgs(c.SplitCoins.Amounts)
		if err != nil {
			return DecodedCommand{}, err
		}
		return DecodedCommand{Kind: commandSplitCoins, Coin: coin, Amounts: amounts}, nil
	}
	return DecodedCommand{}, fmt.Errorf("%w: unsupported command", ErrMalformedTx)
}
