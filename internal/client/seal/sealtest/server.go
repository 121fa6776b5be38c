// Package sealtest runs real key servers in-process over bufconn for tests.
package sealtest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/suifan/internal/client/ledger"
	"github.com/dmitrijs2005/suifan/internal/client/seal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// Policy decides whether a verified access proof releases keys. A non-nil
// error denies.
type Policy func(ctx context.Context, req *seal.FetchKeyRequest, proof *ledger.DecodedKind) error

func AllowAll(context.Context, *seal.FetchKeyRequest, *ledger.DecodedKind) error { return nil }

func DenyAll(context.Context, *seal.FetchKeyRequest, *ledger.DecodedKind) error {
	return errors.New("access denied")
}

// Server is one key server with its own master secret.
type Server struct {
	ObjectID string
	Weight   int

	master *seal.MasterKey
	mu     sync.RWMutex
	policy Policy
	delay  time.Duration
	calls  atomic.Int32
	now    func() time.Time
}

func NewServer(objectID string, policy Policy) *Server {
	return &Server{ObjectID: objectID, Weight: 1, master: seal.GenerateMasterKey(), policy: policy, now: time.Now}
}

func (s *Server) PublicKey() []byte { return s.master.PublicKey() }

// Calls is the number of FetchKey requests received.
func (s *Server) Calls() int { return int(s.calls.Load()) }

func (s *Server) SetPolicy(p Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = p
}

// SetDelay makes every response wait d (or until the caller gives up).
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

func (s *Server) FetchKey(ctx context.Context, req *seal.FetchKeyRequest) (*seal.FetchKeyResponse, error) {
	s.calls.Add(1)

	s.mu.RLock()
	policy, delay := s.policy, s.delay
	s.mu.RUnlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, status.Error(codes.DeadlineExceeded, ctx.Err().Error())
		}
	}

	if err := seal.VerifyRequest(req, s.now()); err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}

	proof, err := ledger.DecodeTransactionKind(req.PTB)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := checkApprovals(req, proof); err != nil {
		return nil, status.Error(codes.PermissionDenied, err.Error())
	}
	if policy != nil {
		if err := policy(ctx, req, proof); err != nil {
			return nil, status.Error(codes.PermissionDenied, err.Error())
		}
	}

	pkg, err := ledger.ParseAddress(req.PackageID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res := &seal.FetchKeyResponse{}
	for _, id := range req.IDs {
		res.Keys = append(res.Keys, seal.DerivedKey{ID: id, Key: s.master.Extract(pkg, id)})
	}
	return res, nil
}

// checkApprovals requires every requested id to be the first argument of a
// seal_approve* call into the certified package.
func checkApprovals(req *seal.FetchKeyRequest, proof *ledger.DecodedKind) error {
	approved := map[string]bool{}
	for _, c := range proof.Commands {
		if !ledger.SameAddress(c.Package, req.PackageID) || !strings.HasPrefix(c.Function, "seal_approve") {
			return fmt.Errorf("command %s is not an access check", c.Target())
		}
		if len(c.Args) == 0 || c.Args[0].Kind != ledger.ArgInput || int(c.Args[0].Index) >= len(proof.Inputs) {
			return errors.New("access check without id argument")
		}
		id, err := ledger.DecodeBytes(proof.Inputs[c.Args[0].Index].Pure)
		if err != nil {
			return err
		}
		approved[string(id)] = true
	}
	for _, id := range req.IDs {
		if !approved[string(id)] {
			return fmt.Errorf("id %x is not covered by the proof", id)
		}
	}
	return nil
}

// Cluster serves a set of key servers on in-memory listeners.
type Cluster struct {
	Servers []*Server

	listeners map[string]*bufconn.Listener
	grpcs     []*grpc.Server
}

// Start serves each server until Close is called or ctx is done.
func Start(ctx context.Context, servers ...*Server) *Cluster {
	c := &Cluster{Servers: servers, listeners: map[string]*bufconn.Listener{}}

	for i, s := range servers {
		lis := bufconn.Listen(1 << 20)
		c.listeners[addr(i)] = lis

		srv := grpc.NewServer()
		seal.RegisterKeyServer(srv, s)
		c.grpcs = append(c.grpcs, srv)

		go func() { _ = srv.Serve(lis) }()
	}

	go func() {
		<-ctx.Done()
		c.Close()
	}()
	return c
}

func addr(i int) string { return fmt.Sprintf("keyserver-%d", i) }

// Infos describes the cluster for seal.NewClient.
func (c *Cluster) Infos() []seal.KeyServerInfo {
	out := make([]seal.KeyServerInfo, len(c.Servers))
	for i, s := range c.Servers {
		out[i] = seal.KeyServerInfo{ObjectID: s.ObjectID, URL: "passthrough:///" + addr(i), PublicKey: s.PublicKey(), Weight: s.Weight}
	}
	return out
}

// DialOption routes client connections to the in-memory listeners.
func (c *Cluster) DialOption() grpc.DialOption {
	return grpc.WithContextDialer(func(ctx context.Context, target string) (net.Conn, error) {
		lis, ok := c.listeners[target]
		if !ok {
			return nil, fmt.Errorf("unknown key server %q", target)
		}
		return lis.DialContext(ctx)
	})
}

func (c *Cluster) Close() {
	for _, s := range c.grpcs {
		s.GracefulStop()
	}
}
