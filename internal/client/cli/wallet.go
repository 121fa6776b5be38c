package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/suifan/internal/client/keystore"
	"github.com/dmitrijs2005/suifan/internal/client/ledger"
	"github.com/dmitrijs2005/suifan/internal/common"
	"github.com/dmitrijs2005/suifan/internal/filex"
)

var errPassphraseMismatch = errors.New("passphrases do not match")

// Wallet unlocks the keystore, creating it first when it does not exist.
// The unlocked wallet asks for confirmation before every signature unless
// AutoApprove is set.
func (a *App) Wallet(ctx context.Context) error {
	if a.wallet != nil {
		a.printf("Wallet %s is already unlocked\n", a.wallet.Address())
		return nil
	}

	path, err := filex.ExpandHome(a.opts.KeystorePath)
	if err != nil {
		return a.report(ctx, "wallet", err)
	}

	var w *ledger.KeyWallet
	if keystore.Exists(path) {
		w, err = a.unlock(path)
	} else {
		w, err = a.create(path)
	}
	if err != nil {
		if errors.Is(err, errDeclined) {
			return err
		}
		return a.report(ctx, "wallet", err)
	}

	a.wallet = w.WithApproval(a.approve)
	a.logger.Info(ctx, "wallet unlocked", "address", w.Address())
	a.printf("Wallet %s unlocked\n", w.Address())
	return nil
}

func (a *App) unlock(path string) (*ledger.KeyWallet, error) {
	pw, err := getPassword(a.out, "Passphrase")
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(pw)
	return keystore.Load(path, pw)
}

func (a *App) create(path string) (*ledger.KeyWallet, error) {
	ok, err := Confirm(a.reader, fmt.Sprintf("No wallet at %s. Create one?", path), true, a.out)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errDeclined
	}

	pw, err := getPassword(a.out, "New passphrase")
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(pw)

	again, err := getPassword(a.out, "Repeat passphrase")
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(again)

	if !bytes.Equal(pw, again) {
		return nil, errPassphraseMismatch
	}
	w, err := keystore.Create(path, pw)
	if err != nil {
		return nil, err
	}
	a.printf("Created wallet %s, fund it before sending transactions\n", w.Address())
	return w, nil
}
