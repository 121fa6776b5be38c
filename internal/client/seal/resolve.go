package seal

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/suifan/internal/client/ledger"
)

// ObjectGetter reads a single ledger object.
type ObjectGetter interface {
	GetObject(ctx context.Context, id string, opts ledger.ObjectOptions) (*ledger.ObjectData, error)
}

// ResolveKeyServers fills in the URL and public key of servers that lack
// them from their on-chain KeyServer objects (fields "url" and "pk").
func ResolveKeyServers(ctx context.Context, getter ObjectGetter, servers []KeyServerInfo) ([]KeyServerInfo, error) {
	out := make([]KeyServerInfo, len(servers))
	copy(out, servers)

	for i, s := range out {
		if s.URL != "" && len(s.PublicKey) > 0 {
			continue
		}
		obj, err := getter.GetObject(ctx, s.ObjectID, ledger.ObjectOptions{ShowContent: true})
		if err != nil {
			return nil, fmt.Errorf("key server %s: %w", s.ObjectID, err)
		}
		f := obj.Fields()

		if s.URL == "" {
			s.URL = f.String("url")
		}
		if len(s.PublicKey) == 0 {
			pk, err := bytesField(f["pk"])
			if err != nil {
				return nil, fmt.Errorf("key server %s public key: %w", s.ObjectID, err)
			}
			s.PublicKey = pk
		}
		if s.URL == "" || len(s.PublicKey) == 0 {
			return nil, fmt.Errorf("key server %s: object has no url or public key", s.ObjectID)
		}
		out[i] = s
	}
	return out, nil
}

// bytesField decodes a vector<u8> rendered as a number array, hex or base64.
func bytesField(v any) ([]byte, error) {
	switch t := v.(type) {
	case []any:
		out := make([]byte, len(t))
		for i, e := range t {
			n, ok := e.(float64)
			if !ok || n < 0 || n > 255 {
				return nil, fmt.Errorf("byte %d is not a u8", i)
			}
			out[i] = byte(n)
		}
		return out, nil
	case string:
		if strings.HasPrefix(t, "0x") {
			return hex.DecodeString(t[2:])
		}
		return base64.StdEncoding.DecodeString(t)
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported encoding %T", v)
}

// ParsePublicKey decodes a configured key server public key given as
// 0x-prefixed hex or base64.
func ParsePublicKey(s string) ([]byte, error) {
	return bytesField(s)
}
