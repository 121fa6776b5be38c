package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEntitlementTime(t *testing.T) {
	e := Entitlement{CreatedAt: 1_700_000_000_123}
	assert.Equal(t, time.Date(2023, 11, 14, 22, 13, 20, 123_000_000, time.UTC), e.Time())
}
