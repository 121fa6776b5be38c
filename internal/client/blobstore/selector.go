package blobstore

import "math/rand/v2"

// Selector picks one of n equivalent endpoints.
type Selector interface {
	Pick(n int) int
}

// RandomSelector picks uniformly at random.
type RandomSelector struct{}

func (RandomSelector) Pick(n int) int {
	return rand.IntN(n)
}

// FixedSelector always returns Index (clamped to n-1).
type FixedSelector struct {
	Index int
}

func (f FixedSelector) Pick(n int) int {
	if f.Index >= n {
		return n - 1
	}
	if f.Index < 0 {
		return 0
	}
	return f.Index
}
