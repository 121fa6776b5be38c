package blobstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmitrijs2005/suifan/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_Store(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		deletable bool
		want      *StoreResult
		wantErr   error
	}{
		{
			name:      "newly created",
			status:    http.StatusOK,
			body:      `{"newlyCreated":{"blobObject":{"id":"0xobj","blobId":"B1","size":5}}}`,
			deletable: true,
			want:      &StoreResult{BlobID: "B1", ObjectID: "0xobj", Size: 5},
		},
		{
			name:   "already certified",
			status: http.StatusOK,
			body:   `{"alreadyCertified":{"blobId":"B2","endEpoch":42}}`,
			want:   &StoreResult{BlobID: "B2", EndEpoch: 42, AlreadyCertified: true},
		},
		{name: "server error", status: http.StatusInternalServerError, body: "boom", wantErr: ErrStoreFailed},
		{name: "unknown shape", status: http.StatusOK, body: `{}`, wantErr: ErrBadResponse},
		{name: "empty blob id", status: http.StatusOK, body: `{"alreadyCertified":{"blobId":""}}`, wantErr: ErrBadResponse},
		{name: "not json", status: http.StatusOK, body: `<html>`, wantErr: ErrBadResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPut, r.Method)
				assert.Equal(t, "/v1/blobs", r.URL.Path)
				assert.Equal(t, "3", r.URL.Query().Get("epochs"))
				if tt.deletable {
					assert.Equal(t, "true", r.URL.Query().Get("deletable"))
				} else {
					assert.Empty(t, r.URL.Query().Get("deletable"))
				}
				b, _ := io.ReadAll(r.Body)
				assert.Equal(t, "hello", string(b))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := NewPublisher(srv.URL, nil, logging.Nop())
			got, err := p.Store(context.Background(), []byte("hello"), 3, tt.deletable)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
