package upload

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/klauspost/reedsolomon"
	"golang.org/x/crypto/blake2b"
)

// EncodingRS is the on-chain tag of Reed–Solomon encoded blobs.
const EncodingRS uint8 = 1

// Encoded is a blob split into data and parity slivers.
type Encoded struct {
	BlobID       string
	RootHash     [32]byte
	Size         int
	DataShards   int
	ParityShards int
	Slivers      [][]byte
}

// Encode splits data into dataShards slivers plus parityShards parity
// slivers. Empty data encodes to single zero-byte slivers.
func Encode(data []byte, dataShards, parityShards int) (*Encoded, error) {
	if dataShards < 1 || parityShards < 0 {
		return nil, fmt.Errorf("%w: %d+%d", ErrEmptyEncoding, dataShards, parityShards)
	}
	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmptyEncoding, err)
	}

	var shards [][]byte
	if len(data) == 0 {
		shards = make([][]byte, dataShards+parityShards)
		for i := range shards {
			shards[i] = []byte{0}
		}
	} else {
		// Split may use spare capacity of its argument.
		if shards, err = enc.Split(bytes.Clone(data)); err != nil {
			return nil, err
		}
	}
	if err := enc.Encode(shards); err != nil {
		return nil, err
	}

	root := rootHash(len(data), dataShards, parityShards, shards)
	return &Encoded{
		BlobID:       base64.RawURLEncoding.EncodeToString(root[:]),
		RootHash:     root,
		Size:         len(data),
		DataShards:   dataShards,
		ParityShards: parityShards,
		Slivers:      shards,
	}, nil
}

// rootHash commits to the size, the coding shape and every sliver.
func rootHash(size, dataShards, parityShards int, slivers [][]byte) [32]byte {
	h, _ := blake2b.New256(nil)
	var hdr [16]byte
	binary.LittleEndian.PutUint64(hdr[:8], uint64(size))
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(dataShards))
	binary.LittleEndian.PutUint32(hdr[12:], uint32(parityShards))
	h.Write(hdr[:])
	for _, s := range slivers {
		sum := blake2b.Sum256(s)
		h.Write(sum[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
