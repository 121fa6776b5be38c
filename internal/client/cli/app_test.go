package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/suifan/internal/client/keystore"
	"github.com/dmitrijs2005/suifan/internal/client/ledger"
	"github.com/dmitrijs2005/suifan/internal/client/models"
	"github.com/dmitrijs2005/suifan/internal/client/services"
	"github.com/dmitrijs2005/suifan/internal/common"
	"github.com/stretchr/testify/require"
)

func TestGetStatus(t *testing.T) {
	ta := newTestApp(t)
	require.Equal(t, "(no wallet)", ta.getStatus())

	w := ta.withWallet(t)
	require.Equal(t, "("+shortID(w.Address())+")", ta.getStatus())
}

func TestShortID(t *testing.T) {
	require.Equal(t, "0x1", shortID("0x1"))
	require.Equal(t, "0xabcdef…6789", shortID("0xabcdef0000000000000000000000000000000000000000000000000000006789"))
}

func TestFormatAndParsePrice(t *testing.T) {
	require.Equal(t, "0 SUI", formatPrice(0))
	require.Equal(t, "1 SUI", formatPrice(1_000_000_000))
	require.Equal(t, "1.5 SUI", formatPrice(1_500_000_000))
	require.Equal(t, "0.000001 SUI", formatPrice(1000))

	for in, want := range map[string]uint64{
		"1":           1_000_000_000,
		"1.5":         1_500_000_000,
		".25":         250_000_000,
		"0.000000001": 1,
		" 2 ":         2_000_000_000,
	} {
		got, err := parsePrice(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", ".", "abc", "1.0000000001", "-1", "18446744074"} {
		_, err := parsePrice(bad)
		require.ErrorIs(t, err, errBadPrice, bad)
	}
}

func TestCommandsRequireWallet(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()

	for name, run := range map[string]func() error{
		"mine":          func() error { return ta.Mine(ctx) },
		"subscriptions": func() error { return ta.Subscriptions(ctx) },
		"subscribe":     func() error { return ta.Subscribe(ctx, "0xc1") },
		"register":      func() error { return ta.Register(ctx) },
		"publish":       func() error { return ta.Publish(ctx, "x") },
		"play":          func() error { return ta.Play(ctx, "0xc1", "b", "") },
	} {
		require.ErrorIs(t, run(), common.ErrWalletNotConnected, name)
	}
	require.Contains(t, ta.out.String(), "run 'wallet' first")
}

func TestCreators_ListsAndReportsErrors(t *testing.T) {
	ta := newTestApp(t)
	ta.catalog.creators = []models.Creator{{ID: "0xc1", Name: "alice", Price: 1_000_000_000, Description: "cats"}}

	require.NoError(t, ta.Creators(context.Background()))
	require.Contains(t, ta.out.String(), "alice")
	require.Contains(t, ta.out.String(), "1 SUI")

	ta.catalog.err = ledger.ErrUnavailable
	err := ta.Creators(context.Background())
	require.True(t, common.IsRetryable(err))
	require.Contains(t, ta.out.String(), "ledger unavailable, please retry (retryable)")
}

func TestCreators_CancellationIsQuiet(t *testing.T) {
	ta := newTestApp(t)
	ta.catalog.err = context.Canceled

	err := ta.Creators(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, common.KindCanceled, common.KindOf(err))
	require.Contains(t, ta.out.String(), "Canceled")
	require.NotContains(t, ta.out.String(), "Error:")
}

func TestMine_FiltersByWallet(t *testing.T) {
	ta := newTestApp(t)
	w := ta.withWallet(t)
	ta.catalog.creators = []models.Creator{
		{ID: "0xc1", Name: "alice", Owner: w.Address()},
		{ID: "0xc2", Name: "bob", Owner: "0xother"},
	}

	require.NoError(t, ta.Mine(context.Background()))
	require.Equal(t, w.Address(), ta.catalog.ownerAsked)
	require.Contains(t, ta.out.String(), "alice")
	require.NotContains(t, ta.out.String(), "bob")
}

func TestContentsAndSubscriptions(t *testing.T) {
	ta := newTestApp(t)
	ta.withWallet(t)

	require.NoError(t, ta.Contents(context.Background(), "0xc1"))
	require.Contains(t, ta.out.String(), "No content published yet")

	ta.catalog.contents = []models.Content{{Title: "episode 1", BlobID: "blob-1"}}
	ta.catalog.entitlements = []models.Entitlement{{ID: "0xs1", CreatorID: "0xc1", CreatedAt: uint64(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC).UnixMilli())}}

	require.NoError(t, ta.Contents(context.Background(), "0xc1"))
	require.NoError(t, ta.Subscriptions(context.Background()))
	out := ta.out.String()
	require.Contains(t, out, "episode 1")
	require.Contains(t, out, "blob-1")
	require.Contains(t, out, "0xs1")
	require.Contains(t, out, "2025-01-02 03:04:05")
}

func TestSubscribe_ConfirmsPrice(t *testing.T) {
	ta := newTestApp(t, "n", "")
	ta.withWallet(t)
	ta.catalog.creators = []models.Creator{{ID: "0xc1", Name: "alice", Price: 2_500_000_000}}

	require.ErrorIs(t, ta.Subscribe(context.Background(), "0xc1"), errDeclined)
	require.Empty(t, ta.market.subscribed)
	require.Contains(t, ta.out.String(), "Subscribe to alice for 2.5 SUI?")

	require.NoError(t, ta.Subscribe(context.Background(), "0xc1"))
	require.Equal(t, []string{"0xc1"}, ta.market.subscribed)
	require.Contains(t, ta.out.String(), "digest-sub")
}

func TestSubscribe_UnknownCreator(t *testing.T) {
	ta := newTestApp(t)
	ta.withWallet(t)

	err := ta.Subscribe(context.Background(), "0xmissing")
	require.ErrorIs(t, err, ledger.ErrObjectNotFound)
	require.Empty(t, ta.market.subscribed)
}

func TestRegister_CollectsProfile(t *testing.T) {
	avatar := filepath.Join(t.TempDir(), "me.png")
	require.NoError(t, os.WriteFile(avatar, []byte("png"), 0o600))

	ta := newTestApp(t, "alice", "line one", "line two", "", "1.25", avatar)
	ta.withWallet(t)

	require.NoError(t, ta.Register(context.Background()))
	require.Len(t, ta.market.created, 1)
	got := ta.market.created[0]
	require.Equal(t, "alice", got.Name)
	require.Equal(t, "line one\nline two", got.Description)
	require.Equal(t, uint64(1_250_000_000), got.Price)
	require.Equal(t, []byte("png"), got.Image)
}

func TestRegister_BadPrice(t *testing.T) {
	ta := newTestApp(t, "alice", "", "cheap")
	ta.withWallet(t)

	require.ErrorIs(t, ta.Register(context.Background()), errBadPrice)
	require.Empty(t, ta.market.created)
}

func TestPublish_PassesFileAndChoices(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0o600))

	ta := newTestApp(t, "", "about", "", "")
	ta.opts.UsePublisher = true
	ta.withWallet(t)
	ta.pub.res = &services.PublishResult{BlobID: "blob-9", EncryptionID: "0xid", Size: 5, Degraded: true}

	require.NoError(t, ta.Publish(context.Background(), path))
	got := ta.pub.got
	require.NotNil(t, got)
	require.Equal(t, "clip.mp4", got.Title)
	require.Equal(t, "clip.mp4", got.Filename)
	require.Equal(t, "about", got.Description)
	require.Equal(t, "video/mp4", got.ContentType)
	require.Equal(t, []byte("video"), got.Data)
	require.True(t, got.Encrypt)
	require.True(t, got.ViaPublisher)

	out := ta.out.String()
	require.Contains(t, out, "blob-9")
	require.Contains(t, out, "0xid")
	require.Contains(t, out, "blob id is used instead")
}

func TestPublish_MissingFileAndFailure(t *testing.T) {
	ta := newTestApp(t, "title", "", "y")
	ta.withWallet(t)

	err := ta.Publish(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.Equal(t, common.KindInput, common.KindOf(err))
	require.Nil(t, ta.pub.got)

	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	ta.pub.err = common.NewFailure(common.KindDenied, "publish", "this wallet is not registered as a creator", services.ErrNoCreatorCap)
	err = ta.Publish(context.Background(), path)
	require.ErrorIs(t, err, services.ErrNoCreatorCap)
	require.Contains(t, ta.out.String(), "Error: this wallet is not registered as a creator")
}

func TestPlay_SavesOutput(t *testing.T) {
	ta := newTestApp(t)
	ta.withWallet(t)
	ta.player.data = []byte("decrypted")
	dst := filepath.Join(t.TempDir(), "sub", "out.mp4")

	require.NoError(t, ta.Play(context.Background(), "0xc1", "blob-1", dst))
	require.Equal(t, services.DecryptRequest{BlobID: "blob-1", CreatorID: "0xc1"}, ta.player.got)

	b, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, []byte("decrypted"), b)
	require.Contains(t, ta.out.String(), "video/mp4, 9 bytes")
}

func TestPlay_ReportsDenied(t *testing.T) {
	ta := newTestApp(t)
	ta.withWallet(t)
	ta.player.err = common.NewFailure(common.KindDenied, "decrypt", "no valid subscription found for this creator", common.ErrEntitlementNotFound)

	err := ta.Play(context.Background(), "0xc1", "blob-1", "")
	require.Equal(t, common.KindDenied, common.KindOf(err))
	require.Contains(t, ta.out.String(), "Error: no valid subscription found for this creator")
	require.NotContains(t, ta.out.String(), "retryable")
}

func TestHistory(t *testing.T) {
	ta := newTestApp(t)
	require.NoError(t, ta.History(context.Background()))
	require.Contains(t, ta.out.String(), "Nothing published yet")

	ta.history.rows = []models.Upload{{Filename: "clip.mp4", Size: 42, Encrypted: true, BlobID: "blob-1", CreatedAt: time.Now()}}
	require.NoError(t, ta.History(context.Background()))
	require.Contains(t, ta.out.String(), "clip.mp4")

	ta.deps.History = nil
	require.NoError(t, ta.History(context.Background()))
	require.Contains(t, ta.out.String(), "disabled")
}

func TestApprove(t *testing.T) {
	ta := newTestApp(t, "n", "")
	ta.opts.AutoApprove = false

	require.ErrorIs(t, ta.approve(context.Background(), "transaction"), errDeclined)
	require.NoError(t, ta.approve(context.Background(), "transaction"))
	require.Contains(t, ta.out.String(), "Sign transaction? [Y/n]")
}

func TestWallet_CreateThenUnlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "wallet.json")

	ta := newTestApp(t, "y")
	ta.opts.KeystorePath = path
	stubPasswords(t, "pw", "pw")
	require.NoError(t, ta.Wallet(context.Background()))
	require.True(t, ta.hasWallet())
	created := ta.wallet.Address()
	require.True(t, keystore.Exists(path))

	ta2 := newTestApp(t)
	ta2.opts.KeystorePath = path
	stubPasswords(t, "pw")
	require.NoError(t, ta2.Wallet(context.Background()))
	require.Equal(t, created, ta2.wallet.Address())

	require.NoError(t, ta2.Wallet(context.Background()))
	require.Contains(t, ta2.out.String(), "already unlocked")
}

func TestWallet_Failures(t *testing.T) {
	dir := t.TempDir()

	ta := newTestApp(t, "n")
	ta.opts.KeystorePath = filepath.Join(dir, "declined.json")
	require.ErrorIs(t, ta.Wallet(context.Background()), errDeclined)
	require.False(t, ta.hasWallet())

	ta = newTestApp(t, "y")
	ta.opts.KeystorePath = filepath.Join(dir, "mismatch.json")
	stubPasswords(t, "one", "two")
	require.ErrorIs(t, ta.Wallet(context.Background()), errPassphraseMismatch)
	require.False(t, keystore.Exists(ta.opts.KeystorePath))

	path := filepath.Join(dir, "wallet.json")
	_, err := keystore.Create(path, []byte("right"))
	require.NoError(t, err)
	ta = newTestApp(t)
	ta.opts.KeystorePath = path
	stubPasswords(t, "wrong")
	err = ta.Wallet(context.Background())
	require.ErrorIs(t, err, keystore.ErrWrongPassphrase)
	require.False(t, ta.hasWallet())
}

func TestRun_ClosesPlayer(t *testing.T) {
	ta := newTestApp(t, "help", "exit")
	ta.Run(context.Background())
	require.True(t, ta.player.closed)
	require.Contains(t, ta.out.String(), "Welcome to suifan")
}
