package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/suifan/internal/client/ledger"
)

// Player holds at most one playable URL and releases the previous one when
// it is replaced or closed.
type Player struct {
	retrieval RetrievalService
	media     MediaStore

	mu      sync.Mutex
	current string
	seq     uint64
	closed  bool
}

// ErrSuperseded is returned to a Play call overtaken by a newer one. It
// matches context.Canceled.
var ErrSuperseded = fmt.Errorf("%w: superseded by a newer play request", context.Canceled)

func NewPlayer(retrieval RetrievalService, media MediaStore) *Player {
	return &Player{retrieval: retrieval, media: media}
}

// Play decrypts req and makes it current. A result that arrives after ctx
// ended, after the player closed or after a newer Play started is released
// and not kept.
func (p *Player) Play(ctx context.Context, wallet ledger.Wallet, req DecryptRequest) (string, error) {
	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	url, err := p.retrieval.DecryptContent(ctx, wallet, req)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		p.media.Revoke(url)
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.media.Revoke(url)
		return "", context.Canceled
	}
	if seq != p.seq {
		p.media.Revoke(url)
		return "", ErrSuperseded
	}
	if p.current != "" {
		p.media.Revoke(p.current)
	}
	p.current = url
	return url, nil
}

func (p *Player) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != "" {
		p.media.Revoke(p.current)
		p.current = ""
	}
	p.closed = true
	return nil
}
