package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCredentialIsActive(t *testing.T) {
	var nilCred *Credential
	assert.False(t, nilCred.IsActive())

	expired := &Credential{Marketplace: "ebay", ExpiresAt: time.Now().Add(-time.Minute)}
	assert.False(t, expired.IsActive())

	active := &Credential{Marketplace: "ebay", ExpiresAt: time.Now().Add(time.Minute)}
	assert.True(t, active.IsActive())
}
