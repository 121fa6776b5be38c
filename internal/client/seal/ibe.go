package seal

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing/bn256"
	"golang.org/x/crypto/hkdf"
)

var suite = bn256.NewSuite()

const (
	ibeInfo   = "suifan-ibe"
	demInfo   = "suifan-dem"
	scalarLen = 32
)

type hashablePoint interface {
	Hash([]byte) kyber.Point
}

// identityPoint maps package||id onto G1.
func identityPoint(pkg [32]byte, id []byte) kyber.Point {
	msg := make([]byte, 0, len(pkg)+len(id))
	msg = append(msg, pkg[:]...)
	msg = append(msg, id...)
	return suite.G1().Point().(hashablePoint).Hash(msg)
}

// MasterKey is a key server's IBE master secret.
type MasterKey struct {
	s kyber.Scalar
}

func GenerateMasterKey() *MasterKey {
	return &MasterKey{s: suite.G2().Scalar().Pick(suite.RandomStream())}
}

// PublicKey returns s·G2, serialized.
func (m *MasterKey) PublicKey() []byte {
	b, _ := suite.G2().Point().Mul(m.s, nil).MarshalBinary()
	return b
}

// Extract derives the user secret key s·H(package||id).
func (m *MasterKey) Extract(pkg [32]byte, id []byte) []byte {
	b, _ := suite.G1().Point().Mul(m.s, identityPoint(pkg, id)).MarshalBinary()
	return b
}

func parseG2(b []byte) (kyber.Point, error) {
	p := suite.G2().Point()
	if err := p.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return p, nil
}

func parseG1(b []byte) (kyber.Point, error) {
	p := suite.G1().Point()
	if err := p.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return p, nil
}

// VerifyUserKey checks e(usk, G2) == e(H(id), P).
func VerifyUserKey(publicKey []byte, pkg [32]byte, id []byte, usk []byte) error {
	pk, err := parseG2(publicKey)
	if err != nil {
		return fmt.Errorf("%w: public key: %w", ErrInvalidKey, err)
	}
	k, err := parseG1(usk)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	left := suite.Pair(k, suite.G2().Point().Base())
	right := suite.Pair(identityPoint(pkg, id), pk)
	if !left.Equal(right) {
		return ErrInvalidKey
	}
	return nil
}

// shareKey derives the one-time pad for share index from a pairing value.
func shareKey(gt kyber.Point, u, pk []byte, index uint32) ([]byte, error) {
	secret, err := gt.MarshalBinary()
	if err != nil {
		return nil, err
	}
	info := bytes.NewBufferString(ibeInfo)
	info.Write(u)
	info.Write(pk)
	_ = binary.Write(info, binary.BigEndian, index)

	out := make([]byte, scalarLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, info.Bytes()), out); err != nil {
		return nil, err
	}
	return out, nil
}

// encapsulation is the sender side: U = r·G2 and the per-server pairing
// values e(H(id), r·P_i).
type encapsulation struct {
	u []byte
	r kyber.Scalar
}

func newEncapsulation() (*encapsulation, error) {
	r := suite.G2().Scalar().Pick(suite.RandomStream())
	u, err := suite.G2().Point().Mul(r, nil).MarshalBinary()
	if err != nil {
		return nil, err
	}
	return &encapsulation{u: u, r: r}, nil
}

func (e *encapsulation) pairing(publicKey []byte, q kyber.Point) (kyber.Point, error) {
	pk, err := parseG2(publicKey)
	if err != nil {
		return nil, fmt.Errorf("key server public key: %w", err)
	}
	return suite.Pair(q, suite.G2().Point().Mul(e.r, pk)), nil
}

// decapsulate is the receiver side: e(usk, U).
func decapsulate(usk []byte, u []byte) (kyber.Point, error) {
	k, err := parseG1(usk)
	if err != nil {
		return nil, err
	}
	up, err := parseG2(u)
	if err != nil {
		return nil, err
	}
	return suite.Pair(k, up), nil
}

func xor(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}
