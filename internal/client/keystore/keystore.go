// Package keystore keeps the wallet's ed25519 key on disk, sealed with a
// passphrase-derived key.
package keystore

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/suifan/internal/client/ledger"
	"github.com/dmitrijs2005/suifan/internal/common"
	"github.com/dmitrijs2005/suifan/internal/cryptox"
	"github.com/dmitrijs2005/suifan/internal/filex"
)

const (
	fileVersion = 1
	saltSize    = 16
)

var (
	ErrNotFound        = errors.New("keystore not found")
	ErrExists          = errors.New("keystore already exists")
	ErrWrongPassphrase = errors.New("wrong passphrase")
	ErrCorrupt         = errors.New("keystore is corrupt")
	ErrEmptyPassphrase = errors.New("passphrase must not be empty")
)

// file is the JSON layout on disk. Seed is the sealed ed25519 seed; the
// address is authenticated as associated data.
type file struct {
	Version int    `json:"version"`
	Address string `json:"address"`
	Salt    []byte `json:"salt"`
	Seed    []byte `json:"seed"`
}

func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Create generates a new wallet and stores it at path.
func Create(path string, passphrase []byte) (*ledger.KeyWallet, error) {
	if Exists(path) {
		return nil, fmt.Errorf("%w: %s", ErrExists, path)
	}
	w, err := ledger.GenerateKeyWallet()
	if err != nil {
		return nil, err
	}
	if err := Save(path, w, passphrase); err != nil {
		return nil, err
	}
	return w, nil
}

// Save seals w's seed under passphrase and writes it to path.
func Save(path string, w *ledger.KeyWallet, passphrase []byte) error {
	if len(passphrase) == 0 {
		return ErrEmptyPassphrase
	}
	salt := common.GenerateRandByteArray(saltSize)
	key := cryptox.DeriveMasterKey(passphrase, salt)
	defer common.WipeByteArray(key)

	seed := w.PrivateKey().Seed()
	defer common.WipeByteArray(seed)

	sealed, err := cryptox.Seal(key, seed, []byte(w.Address()))
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(file{Version: fileVersion, Address: w.Address(), Salt: salt, Seed: sealed}, "", "  ")
	if err != nil {
		return err
	}
	return filex.WriteFileAtomic(path, b, 0o600)
}

// Load opens the keystore at path.
func Load(path string, passphrase []byte) (*ledger.KeyWallet, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, err
	}

	var f file
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if f.Version != fileVersion || len(f.Salt) == 0 || f.Address == "" {
		return nil, fmt.Errorf("%w: unsupported layout", ErrCorrupt)
	}

	key := cryptox.DeriveMasterKey(passphrase, f.Salt)
	defer common.WipeByteArray(key)

	seed, err := cryptox.Open(key, f.Seed, []byte(f.Address))
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	defer common.WipeByteArray(seed)
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed size %d", ErrCorrupt, len(seed))
	}

	w := ledger.NewKeyWallet(ed25519.NewKeyFromSeed(seed))
	if w.Address() != f.Address {
		return nil, fmt.Errorf("%w: address mismatch", ErrCorrupt)
	}
	return w, nil
}
