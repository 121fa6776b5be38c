package seal

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/suifan/internal/client/ledger"
	"github.com/dmitrijs2005/suifan/internal/cryptox"
	"github.com/dmitrijs2005/suifan/internal/logging"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/share"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// NonceSize is the number of random bytes appended to the policy object to
// form an identity.
const NonceSize = 5

// KeyServerInfo identifies a key server and how to reach it. URL is a gRPC
// target; an https:// prefix selects TLS.
type KeyServerInfo struct {
	ObjectID  string
	URL       string
	PublicKey []byte
	Weight    int
}

type keyServer struct {
	info     KeyServerInfo
	objectID [32]byte
	rpc      KeyServer
}

// Client encrypts for and fetches keys from a fixed, ordered set of key
// servers. It is safe for concurrent use.
type Client struct {
	servers []*keyServer
	byID    map[[32]byte]*keyServer
	total   int
	cache   *keyCache
	conns   []*grpc.ClientConn
	logger  logging.Logger
}

type ClientOption func(*clientOptions)

type clientOptions struct {
	dialOpts []grpc.DialOption
}

// WithDialOptions adds gRPC dial options, e.g. a custom context dialer.
func WithDialOptions(opts ...grpc.DialOption) ClientOption {
	return func(o *clientOptions) { o.dialOpts = append(o.dialOpts, opts...) }
}

func dialTarget(url string) (string, credentials.TransportCredentials) {
	if rest, ok := strings.CutPrefix(url, "https://"); ok {
		return rest, credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return strings.TrimPrefix(url, "http://"), insecure.NewCredentials()
}

func NewClient(servers []KeyServerInfo, logger logging.Logger, opts ...ClientOption) (*Client, error) {
	var o clientOptions
	for _, fn := range opts {
		fn(&o)
	}

	c := &Client{
		byID:   map[[32]byte]*keyServer{},
		cache:  newKeyCache(),
		logger: logger.With("module", "seal"),
	}

	for _, info := range servers {
		id, err := ledger.ParseAddress(info.ObjectID)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("key server %q: %w", info.ObjectID, err)
		}
		if info.Weight < 1 {
			c.Close()
			return nil, fmt.Errorf("key server %s: weight must be positive", info.ObjectID)
		}
		if _, dup := c.byID[id]; dup {
			c.Close()
			return nil, fmt.Errorf("key server %s listed twice", info.ObjectID)
		}

		target, creds := dialTarget(info.URL)
		conn, err := grpc.NewClient(target, append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, o.dialOpts...)...)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("key server %s: %w", info.ObjectID, err)
		}
		c.conns = append(c.conns, conn)

		ks := &keyServer{info: info, objectID: id, rpc: &keyServerClient{conn: conn}}
		c.servers = append(c.servers, ks)
		c.byID[id] = ks
		c.total += info.Weight
	}
	return c, nil
}

func (c *Client) Close() error {
	var errs []error
	for _, conn := range c.conns {
		errs = append(errs, conn.Close())
	}
	return errors.Join(errs...)
}

// TotalWeight is the number of shares each object carries.
func (c *Client) TotalWeight() int {
	return c.total
}

type EncryptRequest struct {
	PackageID string
	// PolicyObject is the hex id of the object whose state gates access.
	PolicyObject string
	Threshold    int
	Data         []byte
}

type EncryptResult struct {
	Object []byte
	ID     string
	// DataKey is the recombined symmetric secret; callers may keep it as a
	// backup that bypasses the key servers.
	DataKey []byte
}

// NewIdentity returns policy||nonce.
func NewIdentity(policyObject string) ([]byte, error) {
	h := strings.TrimPrefix(strings.ToLower(policyObject), "0x")
	if len(h)%2 == 1 {
		h = "0" + h
	}
	policy, err := hex.DecodeString(h)
	if err != nil || len(policy) == 0 {
		return nil, fmt.Errorf("invalid policy object %q", policyObject)
	}
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return append(policy, nonce...), nil
}

func (c *Client) Encrypt(ctx context.Context, req EncryptRequest) (*EncryptResult, error) {
	if req.Threshold < 1 || req.Threshold > c.total {
		return nil, fmt.Errorf("%w: %d not in 1..%d", ErrInvalidThreshold, req.Threshold, c.total)
	}
	pkg, err := ledger.ParseAddress(req.PackageID)
	if err != nil {
		return nil, err
	}
	id, err := NewIdentity(req.PolicyObject)
	if err != nil {
		return nil, err
	}

	secret := suite.G1().Scalar().Pick(suite.RandomStream())
	secretBytes, err := secret.MarshalBinary()
	if err != nil {
		return nil, err
	}
	shares := share.NewPriPoly(suite.G1(), req.Threshold, secret, suite.RandomStream()).Shares(c.total)

	enc, err := newEncapsulation()
	if err != nil {
		return nil, err
	}
	q := identityPoint(pkg, id)

	obj := &EncryptedObject{
		Version:   ObjectVersion,
		PackageID: pkg,
		ID:        id,
		Threshold: uint32(req.Threshold),
		U:         enc.u,
	}

	next := 0
	for _, ks := range c.servers {
		if len(ks.info.PublicKey) == 0 {
			return nil, fmt.Errorf("key server %s has no public key", ks.info.ObjectID)
		}
		gt, err := enc.pairing(ks.info.PublicKey, q)
		if err != nil {
			return nil, fmt.Errorf("key server %s: %w", ks.info.ObjectID, err)
		}
		for w := 0; w < ks.info.Weight; w++ {
			sh := shares[next]
			next++

			v, err := sh.V.MarshalBinary()
			if err != nil {
				return nil, err
			}
			pad, err := shareKey(gt, enc.u, ks.info.PublicKey, uint32(sh.I))
			if err != nil {
				return nil, err
			}
			obj.Services = append(obj.Services, ServiceRef{ObjectID: ks.objectID, Index: uint32(sh.I)})
			obj.Shares = append(obj.Shares, xor(v, pad))
		}
	}

	demKey, err := cryptox.DeriveSubkey(secretBytes, nil, []byte(demInfo))
	if err != nil {
		return nil, err
	}
	obj.Ciphertext, err = cryptox.Seal(demKey, req.Data, id)
	if err != nil {
		return nil, err
	}

	c.logger.Debug(ctx, "encrypted", "id", obj.IDHex(), "size", len(req.Data), "threshold", req.Threshold, "shares", len(obj.Shares))
	return &EncryptResult{Object: obj.Marshal(), ID: obj.IDHex(), DataKey: secretBytes}, nil
}

type FetchKeysRequest struct {
	IDs       []string
	ProofTx   []byte
	Session   *SessionCredential
	Threshold int
	// Services, when set, limits the fan-out to the configured servers that
	// hold shares of the object, each weighted by its share count.
	Services []ServiceRef
}

type fetchOutcome struct {
	mu       sync.Mutex
	approved int
	denied   int
	errs     []error
}

// eligible returns the servers to ask and their weights. Without refs every
// configured server counts with its configured weight.
func (c *Client) eligible(refs []ServiceRef) ([]*keyServer, map[*keyServer]int, int) {
	weights := map[*keyServer]int{}
	if len(refs) == 0 {
		for _, ks := range c.servers {
			weights[ks] = ks.info.Weight
		}
		return c.servers, weights, c.total
	}

	held := map[[32]byte]int{}
	for _, r := range refs {
		held[r.ObjectID]++
	}
	var servers []*keyServer
	total := 0
	for _, ks := range c.servers {
		if n := held[ks.objectID]; n > 0 {
			servers = append(servers, ks)
			weights[ks] = n
			total += n
		}
	}
	return servers, weights, total
}

// FetchKeys collects user secret keys for IDs from enough key servers to
// reach Threshold weight. Servers whose keys are already cached are not
// asked again. Keys are verified against the server's public key before
// they are cached.
func (c *Client) FetchKeys(ctx context.Context, req FetchKeysRequest) error {
	if req.Session == nil || req.Session.Expired(time.Now()) {
		return ErrSessionExpired
	}
	servers, weights, total := c.eligible(req.Services)
	if req.Threshold < 1 || (len(req.Services) == 0 && req.Threshold > total) {
		return fmt.Errorf("%w: %d not in 1..%d", ErrInvalidThreshold, req.Threshold, total)
	}
	if req.Threshold > total {
		return fmt.Errorf("%w: configured servers hold %d of %d required shares", ErrKeyServerUnavailable, total, req.Threshold)
	}
	pkg, err := ledger.ParseAddress(req.Session.PackageID)
	if err != nil {
		return err
	}
	ids := make([][]byte, len(req.IDs))
	for i, s := range req.IDs {
		if ids[i], err = hex.DecodeString(strings.TrimPrefix(s, "0x")); err != nil {
			return fmt.Errorf("id %q: %w", s, err)
		}
	}

	out := &fetchOutcome{}
	var pending []*keyServer
	for _, ks := range servers {
		if c.hasAll(ks, pkg, ids) {
			out.approved += weights[ks]
		} else {
			pending = append(pending, ks)
		}
	}
	if out.approved >= req.Threshold {
		return nil
	}

	reqSig, err := req.Session.SignRequest(req.ProofTx, ids)
	if err != nil {
		return err
	}
	fkr := &FetchKeyRequest{
		PackageID:        req.Session.PackageID,
		PTB:              req.ProofTx,
		IDs:              ids,
		Certificate:      req.Session.Certificate(),
		RequestSignature: reqSig,
	}

	fanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g errgroup.Group
	for _, ks := range pending {
		g.Go(func() error {
			err := c.fetchFrom(fanCtx, ks, pkg, fkr)

			out.mu.Lock()
			defer out.mu.Unlock()
			switch {
			case err == nil:
				out.approved += weights[ks]
				if out.approved >= req.Threshold {
					cancel()
				}
			case errors.Is(err, ErrNoAccess):
				out.denied += weights[ks]
				c.logger.Warn(ctx, "key server denied access", "server", ks.info.ObjectID, "error", err)
			case fanCtx.Err() != nil && out.approved >= req.Threshold:
			default:
				out.errs = append(out.errs, fmt.Errorf("%s: %w", ks.info.ObjectID, err))
				c.logger.Warn(ctx, "key server failed", "server", ks.info.ObjectID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	switch {
	case out.approved >= req.Threshold:
		return nil
	case out.denied > total-req.Threshold:
		return fmt.Errorf("%w: %d of %d weight denied", ErrNoAccess, out.denied, total)
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return fmt.Errorf("%w: %d of %d weight approved: %w", ErrKeyServerUnavailable, out.approved, req.Threshold, errors.Join(out.errs...))
	}
}

func (c *Client) hasAll(ks *keyServer, pkg [32]byte, ids [][]byte) bool {
	for _, id := range ids {
		if _, ok := c.cache.get(ks.objectID, pkg, id); !ok {
			return false
		}
	}
	return true
}

func (c *Client) fetchFrom(ctx context.Context, ks *keyServer, pkg [32]byte, req *FetchKeyRequest) error {
	res, err := ks.rpc.FetchKey(ctx, req)
	if err != nil {
		return err
	}

	got := map[string][]byte{}
	for _, k := range res.Keys {
		got[hex.EncodeToString(k.ID)] = k.Key
	}
	for _, id := range req.IDs {
		usk, ok := got[hex.EncodeToString(id)]
		if !ok {
			return fmt.Errorf("%w: no key for %x", ErrInvalidKey, id)
		}
		if err := VerifyUserKey(ks.info.PublicKey, pkg, id, usk); err != nil {
			return err
		}
		c.cache.put(ks.objectID, pkg, id, usk)
	}
	return nil
}

type DecryptRequest struct {
	Data    []byte
	Session *SessionCredential
	ProofTx []byte
}

// Decrypt opens an encrypted object, fetching missing keys with the access
// proof when the cache does not already hold a threshold of them.
func (c *Client) Decrypt(ctx context.Context, req DecryptRequest) ([]byte, error) {
	obj, err := ParseEncryptedObject(req.Data)
	if err != nil {
		return nil, err
	}
	if req.Session != nil {
		pkg, err := ledger.ParseAddress(req.Session.PackageID)
		if err != nil {
			return nil, err
		}
		if pkg != obj.PackageID {
			return nil, ErrPackageMismatch
		}
	}

	t := int(obj.Threshold)
	shares := c.recoverShares(ctx, obj)
	if len(shares) < t {
		if err := c.FetchKeys(ctx, FetchKeysRequest{
			IDs:       []string{obj.IDHex()},
			ProofTx:   req.ProofTx,
			Session:   req.Session,
			Threshold: t,
			Services:  obj.Services,
		}); err != nil {
			return nil, err
		}
		shares = c.recoverShares(ctx, obj)
		if len(shares) < t {
			return nil, fmt.Errorf("%w: %d of %d shares", ErrDecryptFailed, len(shares), t)
		}
	}

	secret, err := share.RecoverSecret(suite.G1(), shares, t, len(obj.Services))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptFailed, err)
	}
	secretBytes, err := secret.MarshalBinary()
	if err != nil {
		return nil, err
	}
	demKey, err := cryptox.DeriveSubkey(secretBytes, nil, []byte(demInfo))
	if err != nil {
		return nil, err
	}
	plain, err := cryptox.Open(demKey, obj.Ciphertext, obj.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptFailed, err)
	}
	return plain, nil
}

// recoverShares unwraps every share whose server key is cached.
func (c *Client) recoverShares(ctx context.Context, obj *EncryptedObject) []*share.PriShare {
	pairings := map[[32]byte]kyber.Point{}
	var out []*share.PriShare

	for j, svc := range obj.Services {
		ks, ok := c.byID[svc.ObjectID]
		if !ok {
			continue
		}
		gt, ok := pairings[svc.ObjectID]
		if !ok {
			usk, cached := c.cache.get(svc.ObjectID, obj.PackageID, obj.ID)
			if !cached {
				continue
			}
			var err error
			if gt, err = decapsulate(usk, obj.U); err != nil {
				c.logger.Error(ctx, "cached key unusable", "server", ks.info.ObjectID, "error", err)
				continue
			}
			pairings[svc.ObjectID] = gt
		}

		pad, err := shareKey(gt, obj.U, ks.info.PublicKey, svc.Index)
		if err != nil {
			continue
		}
		v := suite.G1().Scalar()
		if err := v.UnmarshalBinary(xor(obj.Shares[j], pad)); err != nil {
			c.logger.Warn(ctx, "share does not decode", "server", ks.info.ObjectID, "index", svc.Index)
			continue
		}
		out = append(out, &share.PriShare{I: int(svc.Index), V: v})
	}
	return out
}
