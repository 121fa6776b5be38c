package ledger

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Signature scheme flag for ed25519.
const FlagEd25519 byte = 0x00

// Intent scopes.
const (
	intentTransaction     byte = 0
	intentPersonalMessage byte = 3
)

// Wallet signs on behalf of one account. Implementations may prompt a user;
// a refusal is reported as ErrWalletRejected.
type Wallet interface {
	Address() string
	SignTransaction(ctx context.Context, txBytes []byte) (string, error)
	SignPersonalMessage(ctx context.Context, msg []byte) (string, error)
}

// ApproveFunc is asked before each signature. Returning an error refuses it.
type ApproveFunc func(ctx context.Context, what string) error

// KeyWallet holds an ed25519 key in memory.
type KeyWallet struct {
	priv    ed25519.PrivateKey
	address string
	approve ApproveFunc
}

func NewKeyWallet(priv ed25519.PrivateKey) *KeyWallet {
	pub := priv.Public().(ed25519.PublicKey)
	return &KeyWallet{priv: priv, address: AddressFromPublicKey(FlagEd25519, pub)}
}

func GenerateKeyWallet() (*KeyWallet, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return NewKeyWallet(priv), nil
}

// WithApproval returns a copy of w that consults fn before signing.
func (w *KeyWallet) WithApproval(fn ApproveFunc) *KeyWallet {
	cp := *w
	cp.approve = fn
	return &cp
}

func (w *KeyWallet) Address() string { return w.address }

func (w *KeyWallet) PublicKey() ed25519.PublicKey {
	return w.priv.Public().(ed25519.PublicKey)
}

// PrivateKey exposes the seed for the keystore.
func (w *KeyWallet) PrivateKey() ed25519.PrivateKey { return w.priv }

func (w *KeyWallet) SignTransaction(ctx context.Context, txBytes []byte) (string, error) {
	if err := w.ask(ctx, "transaction"); err != nil {
		return "", err
	}
	return w.sign(intentTransaction, txBytes), nil
}

func (w *KeyWallet) SignPersonalMessage(ctx context.Context, msg []byte) (string, error) {
	if err := w.ask(ctx, "personal message"); err != nil {
		return "", err
	}
	return w.sign(intentPersonalMessage, EncodeBytes(msg)), nil
}

func (w *KeyWallet) ask(ctx context.Context, what string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.approve == nil {
		return nil
	}
	if err := w.approve(ctx, what); err != nil {
		return fmt.Errorf("%w: %w", ErrWalletRejected, err)
	}
	return nil
}

func (w *KeyWallet) sign(scope byte, payload []byte) string {
	digest := intentDigest(scope, payload)
	sig := ed25519.Sign(w.priv, digest[:])

	out := make([]byte, 0, 1+ed25519.SignatureSize+ed25519.PublicKeySize)
	out = append(out, FlagEd25519)
	out = append(out, sig...)
	out = append(out, w.PublicKey()...)
	return base64.StdEncoding.EncodeToString(out)
}

func intentDigest(scope byte, payload []byte) [32]byte {
	msg := make([]byte, 0, 3+len(payload))
	msg = append(msg, scope, 0, 0)
	msg = append(msg, payload...)
	return blake2b.Sum256(msg)
}

// VerifyPersonalMessage checks a serialized personal-message signature and
// that its key belongs to address.
func VerifyPersonalMessage(msg []byte, signature, address string) error {
	return verify(intentPersonalMessage, EncodeBytes(msg), signature, address)
}

// VerifyTransaction checks a serialized transaction signature.
func VerifyTransaction(txBytes []byte, signature, address string) error {
	return verify(intentTransaction, txBytes, signature, address)
}

func verify(scope byte, payload []byte, signature, address string) error {
	raw, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if len(raw) != 1+ed25519.SignatureSize+ed25519.PublicKeySize || raw[0] != FlagEd25519 {
		return fmt.Errorf("%w: unsupported encoding", ErrInvalidSignature)
	}
	sig := raw[1 : 1+ed25519.SignatureSize]
	pub := ed25519.PublicKey(raw[1+ed25519.SignatureSize:])

	if !SameAddress(AddressFromPublicKey(FlagEd25519, pub), address) {
		return fmt.Errorf("%w: key does not match %s", ErrInvalidSignature, address)
	}
	digest := intentDigest(scope, payload)
	if !ed25519.Verify(pub, digest[:], sig) {
		return ErrInvalidSignature
	}
	return nil
}
