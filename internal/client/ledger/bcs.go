package ledger

import (
	"fmt"
	"io"

	"github.com/fardream/go-bcs/bcs"
)

// Wire shapes of the transaction structures. Enum variants are the field
// positions, so placeholder fields hold the tags of variants never emitted.

type wireAddress = [AddressLength]byte

type wireObjectRef struct {
	ObjectID wireAddress
	Version  uint64
	Digest   []byte
}

type wireSharedObject struct {
	ObjectID             wireAddress
	InitialSharedVersion uint64
	Mutable              bool
}

type wireObjectArg struct {
	ImmOrOwned *wireObjectRef
	Shared     *wireSharedObject
}

func (wireObjectArg) IsBcsEnum() {}

type wireCallArg struct {
	Pure   *[]byte
	Object *wireObjectArg
}

func (wireCallArg) IsBcsEnum() {}

type wireNestedResult struct {
	Result uint16
	Index  uint16
}

type wireArgument struct {
	GasCoin      *struct{}
	Input        *uint16
	Result       *uint16
	NestedResult *wireNestedResult
}

func (wireArgument) IsBcsEnum() {}

// noTypeArgs is an always-empty vector of type tags.
type noTypeArgs struct{}

func (noTypeArgs) MarshalBCS() ([]byte, error) { return []byte{0}, nil }

func (*noTypeArgs) UnmarshalBCS(r io.Reader) (int, error) {
	n, read, err := bcs.ULEB128Decode[int](r)
	if err != nil {
		return read, err
	}
	if n != 0 {
		return read, fmt.Errorf("%w: type arguments are not supported", ErrMalformedTx)
	}
	return read, nil
}

type wireMoveCall struct {
	Package       wireAddress
	Module        string
	Function      string
	TypeArguments noTypeArgs
	Arguments     []wireArgument
}

type wireSplitCoins struct {
	Coin    wireArgument
	Amounts []wireArgument
}

type wireCommand struct {
	MoveCall        *wireMoveCall
	TransferObjects *struct{} `bcs:"-"`
	SplitCoins      *wireSplitCoins
}

func (wireCommand) IsBcsEnum() {}

type wireProgrammable struct {
	Inputs   []wireCallArg
	Commands []wireCommand
}

type wireTransactionKind struct {
	Programmable *wireProgrammable
}

func (wireTransactionKind) IsBcsEnum() {}

type wireGasData struct {
	Payment []wireObjectRef
	Owner   wireAddress
	Price   uint64
	Budget  uint64
}

type wireExpiration struct {
	None  *struct{}
	Epoch *uint64
}

func (wireExpiration) IsBcsEnum() {}

type wireTransactionDataV1 struct {
	Kind       wireTransactionKind
	Sender     wireAddress
	GasData    wireGasData
	Expiration wireExpiration
}

type wireTransactionData struct {
	V1 *wireTransactionDataV1
}

func (wireTransactionData) IsBcsEnum() {}

func toWireArg(a Argument) wireArgument {
	switch a.Kind {
	case ArgInput:
		return wireArgument{Input: &a.Index}
	case ArgResult:
		return wireArgument{Result: &a.Index}
	case ArgNestedResult:
		return wireArgument{NestedResult: &wireNestedResult{Result: a.Index, Index: a.Nested}}
	default:
		return wireArgument{GasCoin: &struct{}{}}
	}
}

func toWireArgs(args []Argument) []wireArgument {
	out := make([]wireArgument, len(args))
	for i, a := range args {
		out[i] = toWireArg(a)
	}
	return out
}

func fromWireArg(w wireArgument) (Argument, error) {
	switch {
	case w.GasCoin != nil:
		return Argument{Kind: ArgGasCoin}, nil
	case w.Input != nil:
		return Argument{Kind: ArgInput, Index: *w.Input}, nil
	case w.Result != nil:
		return Argument{Kind: ArgResult, Index: *w.Result}, nil
	case w.NestedResult != nil:
		return Argument{Kind: ArgNestedResult, Index: w.NestedResult.Result, Nested: w.NestedResult.Index}, nil
	}
	return Argument{}, fmt.Errorf("%w: empty argument", ErrMalformedTx)
}

func fromWireArgs(ws []wireArgument) ([]Argument, error) {
	var out []Argument
	for _, w := range ws {
		a, err := fromWireArg(w)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func marshal(v any) ([]byte, error) {
	b, err := bcs.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("bcs: %w", err)
	}
	return b, nil
}

func unmarshal(b []byte, v any) error {
	if err := bcs.UnmarshalAll(b, v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedTx, err)
	}
	return nil
}

// EncodeU64 returns the BCS encoding of v, for use as a pure argument.
func EncodeU64(v uint64) []byte { return bcs.MustMarshal(v) }

// EncodeBytes returns the BCS encoding of a vector<u8>.
func EncodeBytes(b []byte) []byte { return bcs.MustMarshal(b) }

// EncodeBytesList returns the BCS encoding of a vector<vector<u8>>.
func EncodeBytesList(list [][]byte) []byte { return bcs.MustMarshal(list) }

// DecodeBytes parses a BCS vector<u8>.
func DecodeBytes(b []byte) ([]byte, error) {
	var out []byte
	if err := unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func DecodeU64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: u64 needs 8 bytes, got %d", ErrMalformedTx, len(b))
	}
	var v uint64
	if err := unmarshal(b, &v); err != nil {
		return 0, err
	}
	return v, nil
}
