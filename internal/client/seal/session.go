package seal

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/suifan/internal/client/ledger"
	"github.com/golang-jwt/jwt/v5"
)

// Signer is the wallet capability a session credential needs.
type Signer interface {
	Address() string
	SignPersonalMessage(ctx context.Context, msg []byte) (string, error)
}

// SessionCredential authorizes key requests for one package on behalf of a
// wallet for a limited time. The wallet signs once; individual requests are
// signed with the ephemeral session key.
type SessionCredential struct {
	Address   string
	PackageID string
	CreatedAt time.Time
	TTL       time.Duration
	Signature string

	sessionKey ed25519.PrivateKey
}

// PersonalMessage is the text the wallet signs to certify a session key.
func PersonalMessage(packageID string, ttlMin int, created time.Time, vk ed25519.PublicKey) []byte {
	return []byte(fmt.Sprintf("Accessing keys of package %s for %d mins from %s UTC, session key %s",
		packageID, ttlMin, created.UTC().Format(time.DateTime), base64.StdEncoding.EncodeToString(vk)))
}

func ttlMinutes(ttl time.Duration) int {
	m := int((ttl + time.Minute - 1) / time.Minute)
	if m < 1 {
		m = 1
	}
	return m
}

// NewSessionCredential creates a session key and asks signer to certify it.
// The creation time is truncated to seconds, as it appears in the message.
func NewSessionCredential(ctx context.Context, signer Signer, packageID string, ttl time.Duration, now time.Time) (*SessionCredential, error) {
	pkg, err := ledger.NormalizeAddress(packageID)
	if err != nil {
		return nil, err
	}

	vk, sk, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	created := now.UTC().Truncate(time.Second)
	sig, err := signer.SignPersonalMessage(ctx, PersonalMessage(pkg, ttlMinutes(ttl), created, vk))
	if err != nil {
		return nil, err
	}

	return &SessionCredential{
		Address:    signer.Address(),
		PackageID:  pkg,
		CreatedAt:  created,
		TTL:        ttl,
		Signature:  sig,
		sessionKey: sk,
	}, nil
}

func (s *SessionCredential) ExpiresAt() time.Time {
	return s.CreatedAt.Add(s.TTL)
}

func (s *SessionCredential) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt())
}

// Verify checks the wallet signature over the certified session key.
func (s *SessionCredential) Verify() error {
	return verifyCertificate(s.PackageID, s.Certificate())
}

func (s *SessionCredential) Certificate() Certificate {
	return Certificate{
		User:         s.Address,
		SessionVK:    s.sessionKey.Public().(ed25519.PublicKey),
		CreationTime: s.CreatedAt.UnixMilli(),
		TTLMin:       ttlMinutes(s.TTL),
		Signature:    s.Signature,
	}
}

type requestClaims struct {
	jwt.RegisteredClaims
	PTB string   `json:"ptb"`
	IDs []string `json:"ids"`
}

func requestDigest(ptb []byte, ids [][]byte) (string, []string) {
	sum := sha256.Sum256(ptb)
	hexIDs := make([]string, len(ids))
	for i, id := range ids {
		hexIDs[i] = hex.EncodeToString(id)
	}
	return hex.EncodeToString(sum[:]), hexIDs
}

// SignRequest binds a key request to this session with an EdDSA JWT over
// the proof transaction digest and the requested ids.
func (s *SessionCredential) SignRequest(ptb []byte, ids [][]byte) (string, error) {
	digest, hexIDs := requestDigest(ptb, ids)
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, requestClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  s.Address,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
		PTB: digest,
		IDs: hexIDs,
	})
	return token.SignedString(s.sessionKey)
}

func verifyCertificate(packageID string, cert Certificate) error {
	if len(cert.SessionVK) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: session key size", ErrInvalidCertificate)
	}
	created := time.UnixMilli(cert.CreationTime)
	msg := PersonalMessage(packageID, cert.TTLMin, created, cert.SessionVK)
	if err := ledger.VerifyPersonalMessage(msg, cert.Signature, cert.User); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCertificate, err)
	}
	return nil
}

// VerifyRequest is the key-server side check of a FetchKeyRequest: the
// certificate is signed by its user, unexpired at now, and the request is
// signed by the certified session key over exactly this ptb and these ids.
func VerifyRequest(req *FetchKeyRequest, now time.Time) error {
	if err := verifyCertificate(req.PackageID, req.Certificate); err != nil {
		return err
	}
	created := time.UnixMilli(req.Certificate.CreationTime)
	if !now.Before(created.Add(time.Duration(req.Certificate.TTLMin) * time.Minute)) {
		return ErrSessionExpired
	}

	claims := &requestClaims{}
	_, err := jwt.ParseWithClaims(req.RequestSignature, claims, func(*jwt.Token) (any, error) {
		return ed25519.PublicKey(req.Certificate.SessionVK), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}))
	if err != nil {
		return fmt.Errorf("%w: request signature: %w", ErrInvalidCertificate, err)
	}

	digest, hexIDs := requestDigest(req.PTB, req.IDs)
	if claims.PTB != digest || !slices.Equal(claims.IDs, hexIDs) {
		return fmt.Errorf("%w: request signature does not cover this request", ErrInvalidCertificate)
	}
	if claims.Subject != req.Certificate.User {
		return fmt.Errorf("%w: subject does not match certificate user", ErrInvalidCertificate)
	}
	return nil
}
