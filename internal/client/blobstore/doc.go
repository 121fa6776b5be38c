// Package blobstore talks to the content-addressed storage network: the
// publisher that stores whole blobs, the aggregator mirrors that serve them
// back, S3-compatible mirrors, and the storage nodes that accept slivers
// during a registered upload.
package blobstore
