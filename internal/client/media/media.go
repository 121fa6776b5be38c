// Package media keeps decrypted content in memory behind opaque,
// locally-addressable URLs until they are revoked.
package media

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const scheme = "blob:suifan/"

var ErrNotFound = errors.New("media resource not found")

// Resource is one playable item.
type Resource struct {
	Data        []byte
	ContentType string
	CreatedAt   time.Time
}

// Registry maps resource URLs to their bytes. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	resources map[string]Resource
}

func NewRegistry() *Registry {
	return &Registry{resources: map[string]Resource{}}
}

// Create stores data and returns its URL.
func (r *Registry) Create(data []byte, contentType string) string {
	url := scheme + uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources[url] = Resource{Data: data, ContentType: contentType, CreatedAt: time.Now()}
	return url
}

func (r *Registry) Get(url string) (Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resources[url]
	if !ok {
		return Resource{}, ErrNotFound
	}
	return res, nil
}

// Revoke releases url. Revoking an unknown or foreign URL is a no-op.
func (r *Registry) Revoke(url string) {
	if !strings.HasPrefix(url, scheme) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.resources, url)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.resources)
}
