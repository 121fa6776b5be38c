package services

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/suifan/internal/client/ledger"
	"github.com/dmitrijs2005/suifan/internal/client/ledger/ledgertest"
	"github.com/dmitrijs2005/suifan/internal/logging"
)

const testPackage = "0xaa"

var (
	creatorID      = "0x" + strings.Repeat("c1", 32)
	otherCreatorID = "0x" + strings.Repeat("c2", 32)
	registryID     = "0x" + strings.Repeat("a1", 32)
	tableID        = "0x" + strings.Repeat("7a", 32)
)

var nextID atomic.Uint64

func freshID() string {
	return fmt.Sprintf("0x%064x", 0x1000+nextID.Add(1))
}

func typeOf(name string) string {
	return testPackage + "::" + moduleName + "::" + name
}

// world is a small on-chain state: two creators in the registry, a
// creator wallet holding a CreatorCap and a fan wallet.
type world struct {
	chain   *ledgertest.Chain
	creator *ledger.KeyWallet
	fan     *ledger.KeyWallet
	catalog CatalogService
}

func newWorld(t *testing.T) *world {
	t.Helper()
	creator, err := ledger.GenerateKeyWallet()
	require.NoError(t, err)
	fan, err := ledger.GenerateKeyWallet()
	require.NoError(t, err)

	w := &world{chain: ledgertest.New(), creator: creator, fan: fan}

	w.chain.AddObject(creatorObject(creatorID, creator.Address(), "alice", 1_000))
	w.chain.AddObject(creatorObject(otherCreatorID, "0xbeef", "bob", 2_500))
	w.chain.AddObject(ledger.ObjectData{
		ObjectID: registryID,
		Owner:    &ledger.Owner{Shared: true, SharedVersion: 2},
		Content: &ledger.MoveContent{Type: typeOf("AllCreators"), Fields: ledger.Fields{
			"id":       map[string]any{"id": registryID},
			"creators": map[string]any{"fields": map[string]any{"id": map[string]any{"id": tableID}, "size": "2"}},
		}},
	})
	for _, id := range []string{creatorID, otherCreatorID} {
		w.chain.AddDynamicField(tableID, ledger.ObjectData{
			ObjectID: freshID(),
			Content:  &ledger.MoveContent{Type: "0x2::dynamic_field::Field<address, 0x2::object::ID>", Fields: ledger.Fields{"value": id}},
		})
	}
	w.addOwned(creator.Address(), "CreatorCap", ledger.Fields{"creator_id": creatorID})

	w.catalog = NewCatalogService(w.chain, testPackage, registryID, logging.Nop())
	return w
}

func creatorObject(id, owner, name string, price uint64) ledger.ObjectData {
	return ledger.ObjectData{
		ObjectID: id,
		Owner:    &ledger.Owner{Shared: true, SharedVersion: 4},
		Content: &ledger.MoveContent{Type: typeOf("ContentCreator"), Fields: ledger.Fields{
			"id":              map[string]any{"id": id},
			"pseudo":          name,
			"description":     name + " makes videos",
			"wallet":          owner,
			"image_url":       "img-" + name,
			"price_per_month": strconv.FormatUint(price, 10),
		}},
	}
}

func (w *world) addOwned(owner, typ string, fields ledger.Fields) string {
	id := freshID()
	fields["id"] = map[string]any{"id": id}
	w.chain.AddObject(ledger.ObjectData{
		ObjectID: id,
		Owner:    &ledger.Owner{AddressOwner: owner},
		Content:  &ledger.MoveContent{Type: typeOf(typ), Fields: fields},
	})
	return id
}

// subscribe records a subscription of owner to creator created at ms.
func (w *world) subscribe(owner, creator string, ms uint64) string {
	return w.addOwned(owner, "Subscription", ledger.Fields{
		"creator_id": creator,
		"created_at": strconv.FormatUint(ms, 10),
	})
}
