package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fardream/go-bcs/bcs"
	"github.com/mr-tron/base58"
)

// ArgKind tags a command argument.
type ArgKind uint8

const (
	ArgGasCoin ArgKind = iota
	ArgInput
	ArgResult
	ArgNestedResult
)

// Argument refers to the gas coin, an input, or the result of an earlier
// command.
type Argument struct {
	Kind   ArgKind
	Index  uint16
	Nested uint16
}

func (a Argument) String() string {
	switch a.Kind {
	case ArgGasCoin:
		return "Gas"
	case ArgInput:
		return fmt.Sprintf("Input(%d)", a.Index)
	case ArgResult:
		return fmt.Sprintf("Result(%d)", a.Index)
	default:
		return fmt.Sprintf("NestedResult(%d,%d)", a.Index, a.Nested)
	}
}

const (
	commandMoveCall   = 0
	commandSplitCoins = 2
)

type input struct {
	pure     []byte
	objectID string
	mutable  bool
	isObject bool
}

type command struct {
	kind    uint8
	target  moveTarget
	args    []Argument
	coin    Argument
	amounts []Argument
}

type moveTarget struct {
	Package  string
	Module   string
	Function string
}

func parseTarget(s string) (moveTarget, error) {
	parts := strings.Split(s, "::")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return moveTarget{}, fmt.Errorf("invalid move target %q", s)
	}
	return moveTarget{Package: parts[0], Module: parts[1], Function: parts[2]}, nil
}

// ObjectResolver looks up object versions and ownership at build time.
type ObjectResolver interface {
	MultiGetObjects(ctx context.Context, ids []string, opts ObjectOptions) ([]ObjectResponse, error)
}

// GasSource supplies what a full transaction needs beyond its kind.
type GasSource interface {
	ObjectResolver
	GetReferenceGasPrice(ctx context.Context) (uint64, error)
	GetCoins(ctx context.Context, owner, coinType string, cursor *string, limit int) (*CoinsPage, error)
}

// Transaction builds a programmable transaction. Builder methods record the
// first error, which Build and BuildKind return.
type Transaction struct {
	inputs   []input
	commands []command
	objects  map[string]uint16

	sender    string
	gasBudget uint64
	gasPrice  uint64
	gasCoins  []ObjectRef

	err error
}

func NewTransaction() *Transaction {
	return &Transaction{objects: map[string]uint16{}}
}

func (t *Transaction) SetSender(addr string) { t.sender = addr }

func (t *Transaction) SetGasBudget(b uint64) { t.gasBudget = b }

func (t *Transaction) SetGasPrice(p uint64) { t.gasPrice = p }

// SetGasPayment pins the gas coins instead of selecting them at build time.
func (t *Transaction) SetGasPayment(coins []ObjectRef) { t.gasCoins = coins }

func (t *Transaction) Gas() Argument { return Argument{Kind: ArgGasCoin} }

// Pure adds an already BCS-encoded pure input.
func (t *Transaction) Pure(encoded []byte) Argument {
	t.inputs = append(t.inputs, input{pure: encoded})
	return Argument{Kind: ArgInput, Index: uint16(len(t.inputs) - 1)}
}

func (t *Transaction) PureU8(v uint8) Argument { return t.Pure([]byte{v}) }

func (t *Transaction) PureU32(v uint32) Argument { return t.Pure(bcs.MustMarshal(v)) }

func (t *Transaction) PureU64(v uint64) Argument { return t.Pure(EncodeU64(v)) }

func (t *Transaction) PureBool(v bool) Argument { return t.Pure(bcs.MustMarshal(v)) }

func (t *Transaction) PureBytes(b []byte) Argument { return t.Pure(EncodeBytes(b)) }

func (t *Transaction) PureBytesList(list [][]byte) Argument { return t.Pure(EncodeBytesList(list)) }

func (t *Transaction) PureString(s string) Argument { return t.Pure(EncodeBytes([]byte(s))) }

func (t *Transaction) PureAddress(addr string) Argument {
	a, err := ParseAddress(addr)
	if err != nil {
		t.fail(err)
	}
	return t.Pure(a[:])
}

// Object adds an object input used mutably. The same object added twice
// shares one input; mutability is sticky.
func (t *Transaction) Object(id string) Argument { return t.object(id, true) }

// ReadObject adds an object input used by immutable reference.
func (t *Transaction) ReadObject(id string) Argument { return t.object(id, false) }

func (t *Transaction) object(id string, mutable bool) Argument {
	norm, err := NormalizeAddress(id)
	if err != nil {
		t.fail(err)
		norm = id
	}
	if idx, ok := t.objects[norm]; ok {
		t.inputs[idx].mutable = t.inputs[idx].mutable || mutable
		return Argument{Kind: ArgInput, Index: idx}
	}
	t.inputs = append(t.inputs, input{objectID: norm, mutable: mutable, isObject: true})
	idx := uint16(len(t.inputs) - 1)
	t.objects[norm] = idx
	return Argument{Kind: ArgInput, Index: idx}
}

// SplitCoins splits amounts off coin and returns one argument per new coin.
func (t *Transaction) SplitCoins(coin Argument, amounts ...Argument) []Argument {
	t.commands = append(t.commands, command{kind: commandSplitCoins, coin: coin, amounts: amounts})
	idx := uint16(len(t.commands) - 1)
	out := make([]Argument, len(amounts))
	for i := range amounts {
		out[i] = Argument{Kind: ArgNestedResult, Index: idx, Nested: uint16(i)}
	}
	return out
}

// MoveCall calls target ("package::module::function") with args.
func (t *Transaction) MoveCall(target string, args ...Argument) Argument {
	mt, err := parseTarget(target)
	if err != nil {
		t.fail(err)
	}
	t.commands = append(t.commands, command{kind: commandMoveCall, target: mt, args: args})
	return Argument{Kind: ArgResult, Index: uint16(len(t.commands) - 1)}
}

func (t *Transaction) fail(err error) {
	if t.err == nil {
		t.err = err
	}
}

// BuildKind serializes only the TransactionKind. Such bytes are evaluated by
// key servers or simulated; they are never signed.
func (t *Transaction) BuildKind(ctx context.Context, r ObjectResolver) ([]byte, error) {
	kind, err := t.wireKind(ctx, r)
	if err != nil {
		return nil, err
	}
	return marshal(kind)
}

// Build serializes full TransactionData, selecting gas price and coins from
// src when they were not set explicitly.
func (t *Transaction) Build(ctx context.Context, src GasSource) ([]byte, error) {
	if t.sender == "" {
		return nil, ErrMissingSender
	}
	sender, err := ParseAddress(t.sender)
	if err != nil {
		return nil, err
	}

	if t.gasPrice == 0 {
		if t.gasPrice, err = src.GetReferenceGasPrice(ctx); err != nil {
			return nil, fmt.Errorf("gas price: %w", err)
		}
	}
	if len(t.gasCoins) == 0 {
		if t.gasCoins, err = selectGasCoins(ctx, src, t.sender, t.gasBudget); err != nil {
			return nil, err
		}
	}

	kind, err := t.wireKind(ctx, src)
	if err != nil {
		return nil, err
	}
	payment := make([]wireObjectRef, len(t.gasCoins))
	for i, c := range t.gasCoins {
		if payment[i], err = toWireObjectRef(c); err != nil {
			return nil, err
		}
	}

	return marshal(wireTransactionData{V1: &wireTransactionDataV1{
		Kind:   kind,
		Sender: sender,
		GasData: wireGasData{
			Payment: payment,
			Owner:   sender,
			Price:   t.gasPrice,
			Budget:  t.gasBudget,
		},
		Expiration: wireExpiration{None: &struct{}{}},
	}})
}

const suiCoinType = "0x2::sui::SUI"

func selectGasCoins(ctx context.Context, src GasSource, owner string, budget uint64) ([]ObjectRef, error) {
	var (
		refs   []ObjectRef
		total  uint64
		cursor *string
	)
	for {
		page, err := src.GetCoins(ctx, owner, suiCoinType, cursor, 50)
		if err != nil {
			return nil, fmt.Errorf("gas coins: %w", err)
		}
		for _, c := range page.Data {
			refs = append(refs, c.Ref())
			total += uint64(c.Balance)
			if total >= budget && len(refs) > 0 {
				return refs, nil
			}
		}
		if !page.HasNextPage || page.NextCursor == nil {
			break
		}
		cursor = page.NextCursor
	}
	return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientGas, total, budget)
}

func (t *Transaction) wireKind(ctx context.Context, r ObjectResolver) (wireTransactionKind, error) {
	if t.err != nil {
		return wireTransactionKind{}, t.err
	}

	resolved, err := t.resolveObjects(ctx, r)
	if err != nil {
		return wireTransactionKind{}, err
	}

	p := &wireProgrammable{}
	for _, in := range t.inputs {
		if !in.isObject {
			p.Inputs = append(p.Inputs, wireCallArg{Pure: &in.pure})
			continue
		}
		obj := resolved[in.objectID]
		if obj.Owner != nil && obj.Owner.Shared {
			id, _ := ParseAddress(in.objectID)
			p.Inputs = append(p.Inputs, wireCallArg{Object: &wireObjectArg{Shared: &wireSharedObject{
				ObjectID:             id,
				InitialSharedVersion: obj.Owner.SharedVersion,
				Mutable:              in.mutable,
			}}})
			continue
		}
		ref, err := toWireObjectRef(obj.Ref())
		if err != nil {
			return wireTransactionKind{}, err
		}
		p.Inputs = append(p.Inputs, wireCallArg{Object: &wireObjectArg{ImmOrOwned: &ref}})
	}

	for _, c := range t.commands {
		switch c.kind {
		case commandMoveCall:
			pkg, err := ParseAddress(c.target.Package)
			if err != nil {
				return wireTransactionKind{}, err
			}
			p.Commands = append(p.Commands, wireCommand{MoveCall: &wireMoveCall{
				Package:   pkg,
				Module:    c.target.Module,
				Function:  c.target.Function,
				Arguments: toWireArgs(c.args),
			}})
		case commandSplitCoins:
			p.Commands = append(p.Commands, wireCommand{SplitCoins: &wireSplitCoins{
				Coin:    toWireArg(c.coin),
				Amounts: toWireArgs(c.amounts),
			}})
		}
	}
	return wireTransactionKind{Programmable: p}, nil
}

// resolveObjects fetches ownership and versions for every object input.
// The clock is shared at version 1 and is never fetched.
func (t *Transaction) resolveObjects(ctx context.Context, r ObjectResolver) (map[string]ObjectData, error) {
	out := make(map[string]ObjectData, len(t.objects))
	clock, _ := NormalizeAddress(ClockObjectID)

	var ids []string
	for id := range t.objects {
		if id == clock {
			out[id] = ObjectData{ObjectID: id, Owner: &Owner{Shared: true, SharedVersion: 1}}
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return out, nil
	}
	if r == nil {
		return nil, errors.New("object inputs need a resolver")
	}

	res, err := r.MultiGetObjects(ctx, ids, ObjectOptions{ShowOwner: true})
	if err != nil {
		return nil, fmt.Errorf("resolve objects: %w", err)
	}
	for i, o := range res {
		if o.Data == nil {
			if i < len(ids) {
				return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, ids[i])
			}
			continue
		}
		id, err := NormalizeAddress(o.Data.ObjectID)
		if err != nil {
			return nil, err
		}
		out[id] = *o.Data
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, id)
		}
	}
	return out, nil
}

func toWireObjectRef(ref ObjectRef) (wireObjectRef, error) {
	id, err := ParseAddress(ref.ObjectID)
	if err != nil {
		return wireObjectRef{}, err
	}
	digest, err := base58.Decode(ref.Digest)
	if err != nil {
		return wireObjectRef{}, fmt.Errorf("object %s digest: %w", ref.ObjectID, err)
	}
	return wireObjectRef{ObjectID: id, Version: ref.Version, Digest: digest}, nil
}
