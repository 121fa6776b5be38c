package ledger

import "strings"

// FindRegisteredObjectID extracts the object id from the first
// "BlobRegistered" event. Both object_id and objectId keys are accepted.
func FindRegisteredObjectID(events []Event) (string, bool) {
	for _, e := range events {
		if !strings.Contains(e.Type, "BlobRegistered") {
			continue
		}
		for _, key := range []string{"object_id", "objectId"} {
			if id := idOf(e.ParsedJSON[key]); id != "" {
				return id, true
			}
		}
	}
	return "", false
}

// FindCertifiedBlobID extracts the blob id from the first "BlobCertified"
// event, accepting blob_id or blobId.
func FindCertifiedBlobID(events []Event) (string, bool) {
	for _, e := range events {
		if !strings.Contains(e.Type, "BlobCertified") {
			continue
		}
		f := Fields(e.ParsedJSON)
		for _, key := range []string{"blob_id", "blobId"} {
			if id := f.String(key); id != "" {
				return id, true
			}
		}
	}
	return "", false
}
