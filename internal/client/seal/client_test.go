package seal_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/suifan/internal/client/seal"
	"github.com/dmitrijs2005/suifan/internal/client/seal/sealtest"
	"github.com/dmitrijs2005/suifan/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encrypt(t *testing.T, c *seal.Client, threshold int, data []byte) *seal.EncryptResult {
	t.Helper()
	res, err := c.Encrypt(context.Background(), seal.EncryptRequest{
		PackageID:    testPackage,
		PolicyObject: "0xABCD",
		Threshold:    threshold,
		Data:         data,
	})
	require.NoError(t, err)
	return res
}

func TestClient_RoundTripThresholdTwo(t *testing.T) {
	_, c := startCluster(t, sealtest.NewServer("0x1", sealtest.AllowAll), sealtest.NewServer("0x2", sealtest.AllowAll))
	_, session := newSession(t)

	data := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	res := encrypt(t, c, 2, data)

	obj, err := seal.ParseEncryptedObject(res.Object)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), obj.Threshold)
	assert.Len(t, obj.Services, 2)
	assert.Len(t, obj.ID, 2+seal.NonceSize)
	assert.True(t, strings.HasPrefix(res.ID, "abcd"))
	assert.Equal(t, res.ID, obj.IDHex())

	plain, err := c.Decrypt(context.Background(), seal.DecryptRequest{
		Data:    res.Object,
		Session: session,
		ProofTx: approveProof(t, testPackage, res.ID),
	})
	require.NoError(t, err)
	assert.Equal(t, data, plain)
}

func TestClient_RoundTripEmpty(t *testing.T) {
	_, c := startCluster(t, sealtest.NewServer("0x1", sealtest.AllowAll), sealtest.NewServer("0x2", sealtest.AllowAll))
	_, session := newSession(t)

	res := encrypt(t, c, 2, nil)
	plain, err := c.Decrypt(context.Background(), seal.DecryptRequest{Data: res.Object, Session: session, ProofTx: approveProof(t, testPackage, res.ID)})
	require.NoError(t, err)
	assert.Empty(t, plain)
}

func TestClient_IdentitiesAreUnique(t *testing.T) {
	_, c := startCluster(t, sealtest.NewServer("0x1", sealtest.AllowAll))

	a := encrypt(t, c, 1, []byte("x"))
	b := encrypt(t, c, 1, []byte("x"))
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.Object, b.Object)
}

func TestClient_OneDenialBelowThresholdStillDecrypts(t *testing.T) {
	_, c := startCluster(t,
		sealtest.NewServer("0x1", sealtest.AllowAll),
		sealtest.NewServer("0x2", sealtest.DenyAll),
		sealtest.NewServer("0x3", sealtest.AllowAll),
	)
	_, session := newSession(t)

	res := encrypt(t, c, 2, []byte("secret"))
	plain, err := c.Decrypt(context.Background(), seal.DecryptRequest{Data: res.Object, Session: session, ProofTx: approveProof(t, testPackage, res.ID)})
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), plain)
}

func TestClient_AllDeniedIsNoAccess(t *testing.T) {
	_, c := startCluster(t, sealtest.NewServer("0x1", sealtest.DenyAll), sealtest.NewServer("0x2", sealtest.DenyAll))
	_, session := newSession(t)

	res := encrypt(t, c, 2, []byte("secret"))
	_, err := c.Decrypt(context.Background(), seal.DecryptRequest{Data: res.Object, Session: session, ProofTx: approveProof(t, testPackage, res.ID)})
	require.ErrorIs(t, err, seal.ErrNoAccess)
}

func TestClient_ProofMustCoverIdentity(t *testing.T) {
	_, c := startCluster(t, sealtest.NewServer("0x1", sealtest.AllowAll), sealtest.NewServer("0x2", sealtest.AllowAll))
	_, session := newSession(t)

	res := encrypt(t, c, 2, []byte("secret"))
	_, err := c.Decrypt(context.Background(), seal.DecryptRequest{Data: res.Object, Session: session, ProofTx: approveProof(t, testPackage, "abcd0000000000")})
	require.ErrorIs(t, err, seal.ErrNoAccess)

	_, err = c.Decrypt(context.Background(), seal.DecryptRequest{Data: res.Object, Session: session, ProofTx: approveProof(t, "0xbb", res.ID)})
	require.ErrorIs(t, err, seal.ErrNoAccess)
}

func TestClient_ServerDownIsUnavailable(t *testing.T) {
	cluster, c := startCluster(t, sealtest.NewServer("0x1", sealtest.AllowAll), sealtest.NewServer("0x2", sealtest.AllowAll))
	_, session := newSession(t)

	res := encrypt(t, c, 2, []byte("secret"))
	cluster.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := c.Decrypt(ctx, seal.DecryptRequest{Data: res.Object, Session: session, ProofTx: approveProof(t, testPackage, res.ID)})
	require.ErrorIs(t, err, seal.ErrKeyServerUnavailable)
}

func TestClient_SlowServerNotAwaitedOnceThresholdMet(t *testing.T) {
	slow := sealtest.NewServer("0x3", sealtest.AllowAll)
	slow.SetDelay(time.Minute)
	_, c := startCluster(t, sealtest.NewServer("0x1", sealtest.AllowAll), sealtest.NewServer("0x2", sealtest.AllowAll), slow)
	_, session := newSession(t)

	res := encrypt(t, c, 2, []byte("secret"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	plain, err := c.Decrypt(ctx, seal.DecryptRequest{Data: res.Object, Session: session, ProofTx: approveProof(t, testPackage, res.ID)})
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), plain)
}

func TestClient_WeightedServer(t *testing.T) {
	heavy := sealtest.NewServer("0x1", sealtest.AllowAll)
	heavy.Weight = 2
	_, c := startCluster(t, heavy, sealtest.NewServer("0x2", sealtest.DenyAll))
	_, session := newSession(t)
	require.Equal(t, 3, c.TotalWeight())

	res := encrypt(t, c, 2, []byte("weighted"))
	obj, err := seal.ParseEncryptedObject(res.Object)
	require.NoError(t, err)
	require.Len(t, obj.Services, 3)
	assert.Equal(t, obj.Services[0].ObjectID, obj.Services[1].ObjectID)
	assert.NotEqual(t, obj.Services[0].Index, obj.Services[1].Index)

	plain, err := c.Decrypt(context.Background(), seal.DecryptRequest{Data: res.Object, Session: session, ProofTx: approveProof(t, testPackage, res.ID)})
	require.NoError(t, err)
	assert.Equal(t, []byte("weighted"), plain)
}

func TestClient_CachedKeysSkipServers(t *testing.T) {
	s1, s2 := sealtest.NewServer("0x1", sealtest.AllowAll), sealtest.NewServer("0x2", sealtest.AllowAll)
	_, c := startCluster(t, s1, s2)
	_, session := newSession(t)

	res := encrypt(t, c, 2, []byte("cached"))
	req := seal.DecryptRequest{Data: res.Object, Session: session, ProofTx: approveProof(t, testPackage, res.ID)}

	_, err := c.Decrypt(context.Background(), req)
	require.NoError(t, err)
	calls := s1.Calls() + s2.Calls()

	s1.SetPolicy(sealtest.DenyAll)
	s2.SetPolicy(sealtest.DenyAll)
	plain, err := c.Decrypt(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []byte("cached"), plain)
	assert.Equal(t, calls, s1.Calls()+s2.Calls())
}

func TestClient_DecryptAfterServerRotation(t *testing.T) {
	s1, s2, s3 := sealtest.NewServer("0x1", sealtest.AllowAll), sealtest.NewServer("0x2", sealtest.AllowAll), sealtest.NewServer("0x3", sealtest.AllowAll)
	s2.SetDelay(300 * time.Millisecond)
	cluster, c := startCluster(t, s1, s2, s3)
	_, session := newSession(t)

	old, err := seal.NewClient(cluster.Infos()[:2], logging.Nop(), seal.WithDialOptions(cluster.DialOption()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = old.Close() })

	res := encrypt(t, old, 2, []byte("before rotation"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	plain, err := c.Decrypt(ctx, seal.DecryptRequest{Data: res.Object, Session: session, ProofTx: approveProof(t, testPackage, res.ID)})
	require.NoError(t, err)
	assert.Equal(t, []byte("before rotation"), plain)
	assert.Zero(t, s3.Calls())
}

func TestClient_ObjectSealedForRetiredServers(t *testing.T) {
	cluster, old := startCluster(t, sealtest.NewServer("0x1", sealtest.AllowAll), sealtest.NewServer("0x2", sealtest.AllowAll))
	_, session := newSession(t)
	res := encrypt(t, old, 2, []byte("retired"))

	current, err := seal.NewClient(cluster.Infos()[:1], logging.Nop(), seal.WithDialOptions(cluster.DialOption()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = current.Close() })

	_, err = current.Decrypt(context.Background(), seal.DecryptRequest{Data: res.Object, Session: session, ProofTx: approveProof(t, testPackage, res.ID)})
	require.ErrorIs(t, err, seal.ErrKeyServerUnavailable)
}

func TestClient_ExpiredSessionRejected(t *testing.T) {
	_, c := startCluster(t, sealtest.NewServer("0x1", sealtest.AllowAll))
	w, _ := newSession(t)

	old, err := seal.NewSessionCredential(context.Background(), w, testPackage, time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	res := encrypt(t, c, 1, []byte("late"))
	_, err = c.Decrypt(context.Background(), seal.DecryptRequest{Data: res.Object, Session: old, ProofTx: approveProof(t, testPackage, res.ID)})
	require.ErrorIs(t, err, seal.ErrSessionExpired)
}

func TestClient_WrongServerKeyRejected(t *testing.T) {
	cluster := sealtest.Start(t.Context(), sealtest.NewServer("0x1", sealtest.AllowAll))
	infos := cluster.Infos()
	infos[0].PublicKey = seal.GenerateMasterKey().PublicKey()

	c, err := seal.NewClient(infos, logging.Nop(), seal.WithDialOptions(cluster.DialOption()))
	require.NoError(t, err)
	defer c.Close()
	_, session := newSession(t)

	res := encrypt(t, c, 1, []byte("x"))
	_, err = c.Decrypt(context.Background(), seal.DecryptRequest{Data: res.Object, Session: session, ProofTx: approveProof(t, testPackage, res.ID)})
	require.ErrorIs(t, err, seal.ErrInvalidKey)
}

func TestClient_DecryptErrors(t *testing.T) {
	_, c := startCluster(t, sealtest.NewServer("0x1", sealtest.AllowAll))
	w, session := newSession(t)
	res := encrypt(t, c, 1, []byte("payload"))
	proof := approveProof(t, testPackage, res.ID)

	_, err := c.Decrypt(context.Background(), seal.DecryptRequest{Data: []byte("junk"), Session: session, ProofTx: proof})
	require.ErrorIs(t, err, seal.ErrMalformedObject)

	other, err := seal.NewSessionCredential(context.Background(), w, "0xbb", time.Minute, time.Now())
	require.NoError(t, err)
	_, err = c.Decrypt(context.Background(), seal.DecryptRequest{Data: res.Object, Session: other, ProofTx: proof})
	require.ErrorIs(t, err, seal.ErrPackageMismatch)

	obj, err := seal.ParseEncryptedObject(res.Object)
	require.NoError(t, err)
	obj.Ciphertext[len(obj.Ciphertext)-1] ^= 1
	_, err = c.Decrypt(context.Background(), seal.DecryptRequest{Data: obj.Marshal(), Session: session, ProofTx: proof})
	require.ErrorIs(t, err, seal.ErrDecryptFailed)
}

func TestClient_EncryptValidation(t *testing.T) {
	_, c := startCluster(t, sealtest.NewServer("0x1", sealtest.AllowAll), sealtest.NewServer("0x2", sealtest.AllowAll))

	for _, threshold := range []int{0, 3} {
		_, err := c.Encrypt(context.Background(), seal.EncryptRequest{PackageID: testPackage, PolicyObject: "0x1", Threshold: threshold})
		require.ErrorIs(t, err, seal.ErrInvalidThreshold)
	}

	_, err := c.Encrypt(context.Background(), seal.EncryptRequest{PackageID: testPackage, PolicyObject: "not hex", Threshold: 1})
	require.Error(t, err)
}

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name    string
		servers []seal.KeyServerInfo
	}{
		{"bad object id", []seal.KeyServerInfo{{ObjectID: "zz", URL: "localhost:1", Weight: 1}}},
		{"zero weight", []seal.KeyServerInfo{{ObjectID: "0x1", URL: "localhost:1"}}},
		{"duplicate", []seal.KeyServerInfo{{ObjectID: "0x1", URL: "localhost:1", Weight: 1}, {ObjectID: "0x01", URL: "localhost:2", Weight: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := seal.NewClient(tt.servers, logging.Nop())
			require.Error(t, err)
		})
	}
}

func TestNewIdentity(t *testing.T) {
	id, err := seal.NewIdentity("0xABCD")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xab, 0xcd}, id[:2])
	assert.Len(t, id, 2+seal.NonceSize)

	id, err = seal.NewIdentity("0xabc")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0xbc}, id[:2])

	_, err = seal.NewIdentity("")
	require.Error(t, err)
}
