package blobstore

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/suifan/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3Mirror_PresignedDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/blobs-bucket/blobs/B9", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("X-Amz-Signature"))
		_, _ = w.Write([]byte("from s3"))
	}))
	defer srv.Close()

	m, err := NewS3Mirror(context.Background(), S3Options{
		Endpoint:        srv.URL,
		Region:          "us-east-1",
		Bucket:          "blobs-bucket",
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
	})
	require.NoError(t, err)
	assert.Equal(t, "s3://blobs-bucket", m.Name())

	agg := NewAggregators([]Mirror{m}, logging.Nop())
	data, err := agg.Read(context.Background(), "B9")
	require.NoError(t, err)
	assert.Equal(t, []byte("from s3"), data)
}

func TestS3Mirror_PresignError(t *testing.T) {
	orig := presignGetObject
	t.Cleanup(func() { presignGetObject = orig })
	presignGetObject = func(*s3.PresignClient, context.Context, *s3.GetObjectInput, ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("no creds")
	}

	m, err := NewS3Mirror(context.Background(), S3Options{Region: "us-east-1", Bucket: "b"})
	require.NoError(t, err)

	_, err = NewAggregators([]Mirror{m}, logging.Nop()).Read(context.Background(), "B")
	require.ErrorIs(t, err, ErrDownloadFailed)
}
