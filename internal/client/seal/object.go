package seal

import (
	"encoding/hex"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ObjectVersion is the only layout version this package reads and writes.
const ObjectVersion = 1

const (
	fieldVersion    protowire.Number = 1
	fieldPackageID  protowire.Number = 2
	fieldID         protowire.Number = 3
	fieldService    protowire.Number = 4
	fieldThreshold  protowire.Number = 5
	fieldShares     protowire.Number = 6
	fieldCiphertext protowire.Number = 7

	fieldServiceObject protowire.Number = 1
	fieldServiceIndex  protowire.Number = 2

	fieldSharesU     protowire.Number = 1
	fieldSharesValue protowire.Number = 2
)

// ServiceRef assigns one encrypted share to a key server. A server with
// weight w appears w times with distinct share indices.
type ServiceRef struct {
	ObjectID [32]byte
	Index    uint32
}

// EncryptedObject is the self-describing ciphertext. Its header (everything
// but Ciphertext) can be read without any key.
type EncryptedObject struct {
	Version   uint32
	PackageID [32]byte
	ID        []byte
	Services  []ServiceRef
	Threshold uint32

	// U is the IBE encapsulation r·G2, shared by every share.
	U []byte
	// Shares holds one wrapped Shamir share per entry of Services.
	Shares [][]byte

	Ciphertext []byte
}

// IDHex is the identity as it is passed to key servers and access checks.
func (o *EncryptedObject) IDHex() string {
	return hex.EncodeToString(o.ID)
}

func (o *EncryptedObject) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(o.Version))
	b = protowire.AppendTag(b, fieldPackageID, protowire.BytesType)
	b = protowire.AppendBytes(b, o.PackageID[:])
	b = protowire.AppendTag(b, fieldID, protowire.BytesType)
	b = protowire.AppendBytes(b, o.ID)

	for _, s := range o.Services {
		var sb []byte
		sb = protowire.AppendTag(sb, fieldServiceObject, protowire.BytesType)
		sb = protowire.AppendBytes(sb, s.ObjectID[:])
		sb = protowire.AppendTag(sb, fieldServiceIndex, protowire.VarintType)
		sb = protowire.AppendVarint(sb, uint64(s.Index))

		b = protowire.AppendTag(b, fieldService, protowire.BytesType)
		b = protowire.AppendBytes(b, sb)
	}

	b = protowire.AppendTag(b, fieldThreshold, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(o.Threshold))

	var sh []byte
	sh = protowire.AppendTag(sh, fieldSharesU, protowire.BytesType)
	sh = protowire.AppendBytes(sh, o.U)
	for _, v := range o.Shares {
		sh = protowire.AppendTag(sh, fieldSharesValue, protowire.BytesType)
		sh = protowire.AppendBytes(sh, v)
	}
	b = protowire.AppendTag(b, fieldShares, protowire.BytesType)
	b = protowire.AppendBytes(b, sh)

	b = protowire.AppendTag(b, fieldCiphertext, protowire.BytesType)
	b = protowire.AppendBytes(b, o.Ciphertext)
	return b
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedObject, fmt.Sprintf(format, args...))
}

// ParseEncryptedObject decodes and validates the layout produced by Marshal.
func ParseEncryptedObject(b []byte) (*EncryptedObject, error) {
	o := &EncryptedObject{}
	var seenPkg, seenID, seenShares, seenCT bool

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, malformed("tag: %v", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, malformed("version")
			}
			o.Version = uint32(v)
			b = b[n:]
		case num == fieldThreshold && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, malformed("threshold")
			}
			o.Threshold = uint32(v)
			b = b[n:]
		case typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, malformed("field %d", num)
			}
			b = b[n:]
			switch num {
			case fieldPackageID:
				if len(v) != 32 {
					return nil, malformed("package id length %d", len(v))
				}
				copy(o.PackageID[:], v)
				seenPkg = true
			case fieldID:
				o.ID = append([]byte(nil), v...)
				seenID = true
			case fieldService:
				s, err := parseService(v)
				if err != nil {
					return nil, err
				}
				o.Services = append(o.Services, s)
			case fieldShares:
				if err := o.parseShares(v); err != nil {
					return nil, err
				}
				seenShares = true
			case fieldCiphertext:
				o.Ciphertext = append([]byte(nil), v...)
				seenCT = true
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, malformed("field %d", num)
			}
			b = b[n:]
		}
	}

	switch {
	case o.Version != ObjectVersion:
		return nil, malformed("unsupported version %d", o.Version)
	case !seenPkg || !seenID || !seenShares || !seenCT:
		return nil, malformed("missing header fields")
	case len(o.ID) == 0:
		return nil, malformed("empty id")
	case len(o.Services) == 0:
		return nil, malformed("no key servers")
	case len(o.Shares) != len(o.Services):
		return nil, malformed("%d shares for %d services", len(o.Shares), len(o.Services))
	case o.Threshold == 0 || int(o.Threshold) > len(o.Services):
		return nil, malformed("threshold %d of %d", o.Threshold, len(o.Services))
	}
	for _, s := range o.Shares {
		if len(s) != scalarLen {
			return nil, malformed("share length %d", len(s))
		}
	}
	return o, nil
}

func parseService(b []byte) (ServiceRef, error) {
	var (
		s       ServiceRef
		seenObj bool
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return s, malformed("service tag")
		}
		b = b[n:]
		switch {
		case num == fieldServiceObject && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 || len(v) != 32 {
				return s, malformed("service object id")
			}
			copy(s.ObjectID[:], v)
			seenObj = true
			b = b[n:]
		case num == fieldServiceIndex && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return s, malformed("service index")
			}
			s.Index = uint32(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return s, malformed("service field %d", num)
			}
			b = b[n:]
		}
	}
	if !seenObj {
		return s, malformed("service without object id")
	}
	return s, nil
}

func (o *EncryptedObject) parseShares(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 || typ != protowire.BytesType {
			return malformed("shares tag")
		}
		b = b[n:]
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return malformed("shares field %d", num)
		}
		b = b[n:]
		switch num {
		case fieldSharesU:
			o.U = append([]byte(nil), v...)
		case fieldSharesValue:
			o.Shares = append(o.Shares, append([]byte(nil), v...))
		}
	}
	if len(o.U) == 0 {
		return malformed("missing encapsulation")
	}
	return nil
}
