package seal

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
)

const (
	codecName      = "cbor"
	fetchKeyMethod = "/seal.KeyServer/FetchKey"
)

type cborCodec struct{}

func (cborCodec) Marshal(v any) ([]byte, error)      { return cbor.Marshal(v) }
func (cborCodec) Unmarshal(data []byte, v any) error { return cbor.Unmarshal(data, v) }
func (cborCodec) Name() string                       { return codecName }

func init() {
	encoding.RegisterCodec(cborCodec{})
}

// Certificate is the wallet-signed part of a session credential.
type Certificate struct {
	User         string `cbor:"user"`
	SessionVK    []byte `cbor:"session_vk"`
	CreationTime int64  `cbor:"creation_time"`
	TTLMin       int    `cbor:"ttl_min"`
	Signature    string `cbor:"signature"`
}

// FetchKeyRequest asks a key server for the user secret keys of IDs. PTB is
// the access-proof transaction kind the server evaluates.
type FetchKeyRequest struct {
	PackageID        string      `cbor:"package_id"`
	PTB              []byte      `cbor:"ptb"`
	IDs              [][]byte    `cbor:"ids"`
	Certificate      Certificate `cbor:"certificate"`
	RequestSignature string      `cbor:"request_signature"`
}

type DerivedKey struct {
	ID  []byte `cbor:"id"`
	Key []byte `cbor:"key"`
}

type FetchKeyResponse struct {
	Keys []DerivedKey `cbor:"keys"`
}

// KeyServer is the server side of the key-release RPC.
type KeyServer interface {
	FetchKey(ctx context.Context, req *FetchKeyRequest) (*FetchKeyResponse, error)
}

func RegisterKeyServer(s grpc.ServiceRegistrar, srv KeyServer) {
	s.RegisterService(&keyServerServiceDesc, srv)
}

var keyServerServiceDesc = grpc.ServiceDesc{
	ServiceName: "seal.KeyServer",
	HandlerType: (*KeyServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "FetchKey", Handler: fetchKeyHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "seal/keyserver",
}

func fetchKeyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(FetchKeyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KeyServer).FetchKey(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fetchKeyMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(KeyServer).FetchKey(ctx, req.(*FetchKeyRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// keyServerClient calls one key server over an established connection.
type keyServerClient struct {
	conn grpc.ClientConnInterface
}

func (c *keyServerClient) FetchKey(ctx context.Context, req *FetchKeyRequest) (*FetchKeyResponse, error) {
	out := new(FetchKeyResponse)
	if err := c.conn.Invoke(ctx, fetchKeyMethod, req, out, grpc.CallContentSubtype(codecName)); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// mapError turns gRPC statuses into package errors. Denials are the key
// server's verdict on the access proof; everything else is transient.
func mapError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %w", ErrKeyServerUnavailable, err)
	}
	switch st.Code() {
	case codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrNoAccess, st.Message())
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", ErrInvalidCertificate, st.Message())
	default:
		return fmt.Errorf("%w: %s: %s", ErrKeyServerUnavailable, st.Code(), st.Message())
	}
}
