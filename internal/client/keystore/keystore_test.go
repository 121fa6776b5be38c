package keystore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.json")
	require.False(t, Exists(path))

	w, err := Create(path, []byte("hunter2"))
	require.NoError(t, err)
	require.True(t, Exists(path))

	got, err := Load(path, []byte("hunter2"))
	require.NoError(t, err)
	require.Equal(t, w.Address(), got.Address())
	require.Equal(t, w.PrivateKey(), got.PrivateKey())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), string(w.PrivateKey().Seed()))
}

func TestCreate_RefusesToOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.json")
	_, err := Create(path, []byte("a"))
	require.NoError(t, err)

	_, err = Create(path, []byte("b"))
	require.ErrorIs(t, err, ErrExists)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wallet.json")
	_, err := Create(path, []byte("right"))
	require.NoError(t, err)

	_, err = Load(path, []byte("wrong"))
	require.ErrorIs(t, err, ErrWrongPassphrase)

	_, err = Load(filepath.Join(dir, "missing.json"), []byte("right"))
	require.ErrorIs(t, err, ErrNotFound)

	junk := filepath.Join(dir, "junk.json")
	require.NoError(t, os.WriteFile(junk, []byte("{"), 0o600))
	_, err = Load(junk, []byte("right"))
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestLoad_AddressIsAuthenticated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.json")
	_, err := Create(path, []byte("pw"))
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var f file
	require.NoError(t, json.Unmarshal(raw, &f))
	f.Address = "0x" + "ab"
	raw, err = json.Marshal(f)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	_, err = Load(path, []byte("pw"))
	require.ErrorIs(t, err, ErrWrongPassphrase)
}

func TestSave_EmptyPassphrase(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "w.json"), nil)
	require.ErrorIs(t, err, ErrEmptyPassphrase)
}
