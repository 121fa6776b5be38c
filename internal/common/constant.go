// Package common contains shared constants, helpers and the outcome
// taxonomy used across suifan client components.
package common

// DefaultContentType is used when an uploaded file does not declare one.
const DefaultContentType = "application/octet-stream"

// VideoContentType is the media type of decrypted creator content.
const VideoContentType = "video/mp4"
