// Package models defines the client-side views of on-chain records and the
// locally persisted publish history.
package models

import "time"

// Creator is a content_creator::ContentCreator object.
type Creator struct {
	ID          string
	Name        string
	Description string
	Owner       string
	ImageBlobID string
	// Price is the monthly subscription price in MIST.
	Price uint64
}

// Content is a content_creator::Content object owned by a creator's wallet.
type Content struct {
	ID          string
	Owner       string
	Title       string
	Description string
	BlobID      string
}

// Entitlement is a content_creator::Subscription object owned by a subscriber.
type Entitlement struct {
	ID        string
	CreatorID string
	// CreatedAt is the on-chain clock timestamp in milliseconds.
	CreatedAt uint64
}

// Time converts CreatedAt to wall-clock time.
func (e Entitlement) Time() time.Time {
	return time.UnixMilli(int64(e.CreatedAt)).UTC()
}

// CreatorCap is the capability that authorizes publishing for a creator.
type CreatorCap struct {
	ID        string
	CreatorID string
}

// Upload is one row of the local publish history.
type Upload struct {
	ID             int64
	BlobID         string
	MetadataID     string
	Filename       string
	ContentType    string
	Size           int64
	Encrypted      bool
	RegisterDigest string
	CertifyDigest  string
	CreatedAt      time.Time
}
