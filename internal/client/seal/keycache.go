package seal

import (
	"encoding/hex"
	"sync"
)

// keyCache holds verified user secret keys per (server, package, id).
type keyCache struct {
	mu   sync.RWMutex
	keys map[string][]byte
}

func newKeyCache() *keyCache {
	return &keyCache{keys: map[string][]byte{}}
}

func cacheKey(server, pkg [32]byte, id []byte) string {
	return hex.EncodeToString(server[:]) + "/" + hex.EncodeToString(pkg[:]) + "/" + hex.EncodeToString(id)
}

func (c *keyCache) get(server, pkg [32]byte, id []byte) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	k, ok := c.keys[cacheKey(server, pkg, id)]
	return k, ok
}

func (c *keyCache) put(server, pkg [32]byte, id []byte, usk []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[cacheKey(server, pkg, id)] = usk
}

func (c *keyCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}
