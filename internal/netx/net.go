// Package netx holds the HTTP upload helper shared by the storage clients.
package netx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody bounds how much of a failed response is kept for the error.
const maxErrorBody = 512

// StatusError is a non-200 answer.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s; body: %s", e.Status, e.Body)
}

// PutBytes PUTs body to url as application/octet-stream and returns the
// response body of a 200 answer. Other statuses yield *StatusError;
// transport failures are returned as is.
func PutBytes(ctx context.Context, client *http.Client, url string, body []byte, header http.Header) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status, Body: string(b)}
	}
	return io.ReadAll(resp.Body)
}
