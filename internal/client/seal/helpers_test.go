package seal_test

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/dmitrijs2005/suifan/internal/client/ledger"
	"github.com/dmitrijs2005/suifan/internal/client/seal"
	"github.com/dmitrijs2005/suifan/internal/client/seal/sealtest"
	"github.com/dmitrijs2005/suifan/internal/logging"
	"github.com/stretchr/testify/require"
)

const testPackage = "0xaa"

func startCluster(t *testing.T, servers ...*sealtest.Server) (*sealtest.Cluster, *seal.Client) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cluster := sealtest.Start(ctx, servers...)
	c, err := seal.NewClient(cluster.Infos(), logging.Nop(), seal.WithDialOptions(cluster.DialOption()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return cluster, c
}

func newSession(t *testing.T) (*ledger.KeyWallet, *seal.SessionCredential) {
	t.Helper()
	w, err := ledger.GenerateKeyWallet()
	require.NoError(t, err)
	s, err := seal.NewSessionCredential(context.Background(), w, testPackage, 10*time.Minute, time.Now())
	require.NoError(t, err)
	return w, s
}

// approveProof builds the access-proof transaction kind calling
// seal_approve once per id.
func approveProof(t *testing.T, pkg string, ids ...string) []byte {
	t.Helper()
	tx := ledger.NewTransaction()
	for _, id := range ids {
		b, err := hex.DecodeString(id)
		require.NoError(t, err)
		tx.MoveCall(pkg+"::content_creator::seal_approve", tx.PureBytes(b), tx.ReadObject(ledger.ClockObjectID))
	}
	kind, err := tx.BuildKind(context.Background(), nil)
	require.NoError(t, err)
	return kind
}
