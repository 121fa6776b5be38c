// Package ledgertest is an in-memory ledger for tests: it stores objects,
// answers the read RPCs, and executes transactions by handing each decoded
// move call to a registered handler.
package ledgertest

import (
	"context"
	"crypto/sha256"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/dmitrijs2005/suifan/internal/client/ledger"
	"github.com/mr-tron/base58"
)

// Call is one executed move call.
type Call struct {
	Digest  string
	Sender  string
	Command ledger.DecodedCommand
	Kind    *ledger.DecodedKind
}

// PureArg returns the raw BCS bytes of the i-th argument when it is a pure
// input.
func (c Call) PureArg(i int) []byte {
	a := c.Command.Args[i]
	if a.Kind != ledger.ArgInput {
		return nil
	}
	return c.Kind.Inputs[a.Index].Pure
}

// ObjectArg returns the object id of the i-th argument when it is an
// object input.
func (c Call) ObjectArg(i int) string {
	a := c.Command.Args[i]
	if a.Kind != ledger.ArgInput || !c.Kind.Inputs[a.Index].IsObject {
		return ""
	}
	return c.Kind.Inputs[a.Index].ObjectID
}

// Handler plays a move call. Returned events are attached to the
// transaction; an error aborts it as a failed execution.
type Handler func(call Call) ([]ledger.Event, error)

type dynamicField struct {
	info  ledger.DynamicFieldInfo
	value ledger.ObjectData
}

type Chain struct {
	mu       sync.Mutex
	objects  map[string]ledger.ObjectData
	order    []string
	fields   map[string][]dynamicField
	handlers map[string]Handler
	calls    []Call
	seq      int
	// PageSize bounds paged reads so tests exercise cursors.
	PageSize int
}

func New() *Chain {
	return &Chain{
		objects:  map[string]ledger.ObjectData{},
		fields:   map[string][]dynamicField{},
		handlers: map[string]Handler{},
		PageSize: 2,
	}
}

func norm(id string) string {
	n, err := ledger.NormalizeAddress(id)
	if err != nil {
		return id
	}
	return n
}

func fakeDigest(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return base58.Encode(sum[:])
}

// AddObject stores o, filling in version and digest when unset.
func (c *Chain) AddObject(o ledger.ObjectData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o.ObjectID = norm(o.ObjectID)
	if o.Version == 0 {
		o.Version = 1
	}
	if o.Digest == "" {
		o.Digest = fakeDigest(o.ObjectID)
	}
	if o.Content != nil && o.Type == "" {
		o.Type = o.Content.Type
	}
	if _, ok := c.objects[o.ObjectID]; !ok {
		c.order = append(c.order, o.ObjectID)
	}
	c.objects[o.ObjectID] = o
}

// AddDynamicField attaches value under parent, as a table entry does.
func (c *Chain) AddDynamicField(parent string, value ledger.ObjectData) {
	c.AddObject(value)
	c.mu.Lock()
	defer c.mu.Unlock()
	parent = norm(parent)
	id := norm(value.ObjectID)
	c.fields[parent] = append(c.fields[parent], dynamicField{
		info:  ledger.DynamicFieldInfo{ObjectID: id, ObjectType: value.Type},
		value: c.objects[id],
	})
}

// Handle registers h for "module::function" calls into any package.
func (c *Chain) Handle(function string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[function] = h
}

func (c *Chain) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.calls)
}

// Functions lists executed calls as "module::function".
func (c *Chain) Functions() []string {
	var out []string
	for _, call := range c.Calls() {
		out = append(out, call.Command.Module+"::"+call.Command.Function)
	}
	return out
}

func (c *Chain) GetObject(_ context.Context, id string, _ ledger.ObjectOptions) (*ledger.ObjectData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.objects[norm(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ledger.ErrObjectNotFound, id)
	}
	return &o, nil
}

func (c *Chain) MultiGetObjects(_ context.Context, ids []string, _ ledger.ObjectOptions) ([]ledger.ObjectResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ledger.ObjectResponse, len(ids))
	for i, id := range ids {
		if o, ok := c.objects[norm(id)]; ok {
			out[i].Data = &o
		}
	}
	return out, nil
}

func page[T any](all []T, cursor *string, size int) ([]T, *string, bool, error) {
	start := 0
	if cursor != nil {
		n, err := strconv.Atoi(*cursor)
		if err != nil {
			return nil, nil, false, fmt.Errorf("bad cursor %q", *cursor)
		}
		start = n
	}
	end := min(start+size, len(all))
	if start > end {
		start = end
	}
	next := strconv.Itoa(end)
	return all[start:end], &next, end < len(all), nil
}

func (c *Chain) GetOwnedObjects(_ context.Context, owner, structType string, cursor *string, limit int) (*ledger.ObjectsPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var owned []ledger.ObjectResponse
	for _, id := range c.order {
		o := c.objects[id]
		if o.Owner == nil || !ledger.SameAddress(o.Owner.AddressOwner, owner) {
			continue
		}
		if structType != "" && o.Type != structType && !strings.HasPrefix(o.Type, structType+"<") {
			continue
		}
		owned = append(owned, ledger.ObjectResponse{Data: &o})
	}

	data, next, more, err := page(owned, cursor, min(limit, c.PageSize))
	if err != nil {
		return nil, err
	}
	return &ledger.ObjectsPage{Data: data, NextCursor: next, HasNextPage: more}, nil
}

func (c *Chain) AllOwnedObjects(ctx context.Context, owner, structType string) ([]ledger.ObjectData, error) {
	var (
		out    []ledger.ObjectData
		cursor *string
	)
	for {
		p, err := c.GetOwnedObjects(ctx, owner, structType, cursor, 50)
		if err != nil {
			return nil, err
		}
		for _, o := range p.Data {
			out = append(out, *o.Data)
		}
		if !p.HasNextPage {
			return out, nil
		}
		cursor = p.NextCursor
	}
}

func (c *Chain) GetDynamicFields(_ context.Context, parent string, cursor *string, limit int) (*ledger.DynamicFieldsPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var infos []ledger.DynamicFieldInfo
	for _, f := range c.fields[norm(parent)] {
		infos = append(infos, f.info)
	}
	data, next, more, err := page(infos, cursor, min(limit, c.PageSize))
	if err != nil {
		return nil, err
	}
	return &ledger.DynamicFieldsPage{Data: data, NextCursor: next, HasNextPage: more}, nil
}

// SignAndExecute builds tx against the stored objects, has wallet sign it
// and plays every move call through its handler.
func (c *Chain) SignAndExecute(ctx context.Context, wallet ledger.Wallet, tx *ledger.Transaction) (*ledger.TransactionResponse, error) {
	tx.SetSender(wallet.Address())
	kind, err := tx.BuildKind(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	if _, err := wallet.SignTransaction(ctx, kind); err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	decoded, err := ledger.DecodeTransactionKind(kind)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.seq++
	digest := fakeDigest("tx" + strconv.Itoa(c.seq))
	c.mu.Unlock()

	res := &ledger.TransactionResponse{Digest: digest, Effects: &ledger.Effects{Status: ledger.ExecutionStatus{Status: "success"}}}
	for _, cmd := range decoded.Commands {
		if cmd.Function == "" {
			continue
		}
		call := Call{Digest: digest, Sender: wallet.Address(), Command: cmd, Kind: decoded}

		c.mu.Lock()
		h := c.handlers[cmd.Module+"::"+cmd.Function]
		c.calls = append(c.calls, call)
		c.mu.Unlock()

		if h == nil {
			continue
		}
		events, err := h(call)
		if err != nil {
			res.Effects.Status = ledger.ExecutionStatus{Status: "failure", Error: err.Error()}
			return res, fmt.Errorf("%w: %s: %w", ledger.ErrTransactionFailed, cmd.Target(), err)
		}
		res.Events = append(res.Events, events...)
	}
	return res, nil
}
