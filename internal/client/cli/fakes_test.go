package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/dmitrijs2005/suifan/internal/client/ledger"
	"github.com/dmitrijs2005/suifan/internal/client/media"
	"github.com/dmitrijs2005/suifan/internal/client/models"
	"github.com/dmitrijs2005/suifan/internal/client/services"
	"github.com/dmitrijs2005/suifan/internal/logging"
)

type fakeCatalog struct {
	creators     []models.Creator
	contents     []models.Content
	entitlements []models.Entitlement
	err          error

	ownerAsked string
}

func (f *fakeCatalog) GetCreator(_ context.Context, id string) (*models.Creator, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, c := range f.creators {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, ledger.ErrObjectNotFound
}
func (f *fakeCatalog) ListAllCreators(context.Context) ([]models.Creator, error) {
	return f.creators, f.err
}
func (f *fakeCatalog) ListCreatorsOwnedBy(_ context.Context, owner string) ([]models.Creator, error) {
	f.ownerAsked = owner
	var out []models.Creator
	for _, c := range f.creators {
		if c.Owner == owner {
			out = append(out, c)
		}
	}
	return out, f.err
}
func (f *fakeCatalog) ListCreatorContent(context.Context, string) ([]models.Content, error) {
	return f.contents, f.err
}
func (f *fakeCatalog) ListEntitlements(_ context.Context, owner, _ string) ([]models.Entitlement, error) {
	f.ownerAsked = owner
	return f.entitlements, f.err
}
func (f *fakeCatalog) SelectEntitlement(context.Context, string, string) (*models.Entitlement, error) {
	return nil, errors.New("not used")
}
func (f *fakeCatalog) GetPrice(context.Context, string) (uint64, error) {
	return 0, errors.New("not used")
}
func (f *fakeCatalog) FindCreatorCap(context.Context, string) (*models.CreatorCap, error) {
	return nil, errors.New("not used")
}

type fakeMarketplace struct {
	subscribed []string
	created    []services.CreateCreatorRequest
	err        error
}

func (f *fakeMarketplace) Subscribe(_ context.Context, _ ledger.Wallet, creatorID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.subscribed = append(f.subscribed, creatorID)
	return "digest-sub", nil
}
func (f *fakeMarketplace) CreateCreator(_ context.Context, _ ledger.Wallet, req services.CreateCreatorRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.created = append(f.created, req)
	return "digest-create", nil
}
func (f *fakeMarketplace) UploadContent(context.Context, ledger.Wallet, services.UploadContentRequest) (string, error) {
	return "", errors.New("not used")
}

type fakePublication struct {
	got *services.PublishRequest
	res *services.PublishResult
	err error
}

func (f *fakePublication) Publish(_ context.Context, _ ledger.Wallet, req services.PublishRequest) (*services.PublishResult, error) {
	f.got = &req
	return f.res, f.err
}

type fakePlayer struct {
	registry *media.Registry
	data     []byte
	err      error
	got      services.DecryptRequest
	closed   bool
}

func (f *fakePlayer) Play(_ context.Context, _ ledger.Wallet, req services.DecryptRequest) (string, error) {
	f.got = req
	if f.err != nil {
		return "", f.err
	}
	return f.registry.Create(f.data, "video/mp4"), nil
}
func (f *fakePlayer) Close() error { f.closed = true; return nil }

type fakeHistory struct {
	rows []models.Upload
	err  error
}

func (f *fakeHistory) List(context.Context) ([]models.Upload, error) { return f.rows, f.err }

type testApp struct {
	*App
	catalog *fakeCatalog
	market  *fakeMarketplace
	pub     *fakePublication
	player  *fakePlayer
	history *fakeHistory
	out     *bytes.Buffer
}

// newTestApp builds an App whose prompts read the given lines.
func newTestApp(t *testing.T, lines ...string) *testApp {
	t.Helper()
	registry := media.NewRegistry()
	ta := &testApp{
		catalog: &fakeCatalog{},
		market:  &fakeMarketplace{},
		pub:     &fakePublication{res: &services.PublishResult{}},
		player:  &fakePlayer{registry: registry},
		history: &fakeHistory{},
		out:     &bytes.Buffer{},
	}
	deps := Deps{
		Catalog:     ta.catalog,
		Marketplace: ta.market,
		Publication: ta.pub,
		Player:      ta.player,
		Media:       registry,
		History:     ta.history,
	}
	in := strings.Join(lines, "\n")
	if len(lines) > 0 {
		in += "\n"
	}
	ta.App = NewApp(deps, Options{AutoApprove: true}, strings.NewReader(in), ta.out, logging.Nop())
	return ta
}

// withWallet unlocks a fresh in-memory wallet.
func (ta *testApp) withWallet(t *testing.T) *ledger.KeyWallet {
	t.Helper()
	w, err := ledger.GenerateKeyWallet()
	if err != nil {
		t.Fatal(err)
	}
	ta.wallet = w.WithApproval(ta.approve)
	return w
}

func stubPasswords(t *testing.T, pws ...string) {
	t.Helper()
	orig := getPassword
	t.Cleanup(func() { getPassword = orig })
	getPassword = func(_ io.Writer, _ string) ([]byte, error) {
		if len(pws) == 0 {
			return nil, errors.New("no more passwords")
		}
		pw := pws[0]
		pws = pws[1:]
		return []byte(pw), nil
	}
}
