package ledger

import (
	"context"
	"sync"
)

// fakeClient is an in-memory ledger: objects by id, coins by owner and
// transaction responses by digest.
type fakeClient struct {
	mu sync.Mutex

	objects  map[string]ObjectData
	coins    []Coin
	gasPrice uint64

	executed   [][]byte
	signatures [][]string
	response   *TransactionResponse
	// notFinalFor is how many GetTransaction calls miss before the response
	// becomes visible.
	notFinalFor int
	getCalls    int
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: map[string]ObjectData{}, gasPrice: 1000}
}

func (f *fakeClient) addObject(o ObjectData) {
	id, _ := NormalizeAddress(o.ObjectID)
	o.ObjectID = id
	f.objects[id] = o
}

func (f *fakeClient) MultiGetObjects(_ context.Context, ids []string, _ ObjectOptions) ([]ObjectResponse, error) {
	out := make([]ObjectResponse, len(ids))
	for i, id := range ids {
		norm, _ := NormalizeAddress(id)
		if o, ok := f.objects[norm]; ok {
			o := o
			out[i].Data = &o
		}
	}
	return out, nil
}

func (f *fakeClient) GetReferenceGasPrice(context.Context) (uint64, error) {
	return f.gasPrice, nil
}

func (f *fakeClient) GetCoins(context.Context, string, string, *string, int) (*CoinsPage, error) {
	return &CoinsPage{Data: f.coins}, nil
}

func (f *fakeClient) ExecuteTransaction(_ context.Context, txBytes []byte, sigs []string, _ TxOptions) (*TransactionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, txBytes)
	f.signatures = append(f.signatures, sigs)
	return &TransactionResponse{Digest: f.response.Digest}, nil
}

func (f *fakeClient) GetTransaction(_ context.Context, digest string, _ TxOptions) (*TransactionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getCalls <= f.notFinalFor {
		return nil, &RPCError{Code: -32602, Message: "Could not find the referenced transaction " + digest}
	}
	return f.response, nil
}
