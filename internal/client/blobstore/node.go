package blobstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/suifan/internal/netx"
)

const RegisterDigestHeader = "X-Register-Digest"

// Confirmation is a storage node's signed receipt for one sliver.
type Confirmation struct {
	Node      string
	Index     int
	Signature []byte
}

type confirmationResponse struct {
	Signature string `json:"signature"`
}

// NodeClient uploads slivers to storage nodes.
type NodeClient struct {
	client *http.Client
}

func NewNodeClient(client *http.Client) *NodeClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &NodeClient{client: client}
}

// StoreSliver uploads one sliver, proving registration with the digest of
// the register transaction.
func (c *NodeClient) StoreSliver(ctx context.Context, node, blobID string, index int, sliver []byte, registerDigest string) (*Confirmation, error) {
	if registerDigest == "" {
		return nil, ErrMissingDigest
	}

	u := strings.TrimRight(node, "/") + "/v1/blobs/" + blobID + "/slivers/" + strconv.Itoa(index)
	h := http.Header{}
	h.Set(RegisterDigestHeader, registerDigest)

	body, err := netx.PutBytes(ctx, c.client, u, sliver, h)
	if err != nil {
		var se *netx.StatusError
		if errors.As(err, &se) {
			return nil, fmt.Errorf("%w: %w", ErrNodeRejected, err)
		}
		return nil, err
	}

	var cr confirmationResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	sig, err := base64.StdEncoding.DecodeString(cr.Signature)
	if err != nil || len(sig) == 0 {
		return nil, fmt.Errorf("%w: bad confirmation signature", ErrBadResponse)
	}

	return &Confirmation{Node: node, Index: index, Signature: sig}, nil
}
