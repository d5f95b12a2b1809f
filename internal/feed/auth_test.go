package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenAuthenticator(t *testing.T) {
	auth := TokenAuthenticator("s3cret")

	assert.True(t, auth(`{"token":"s3cret","signal":"buy"}`))
	assert.True(t, auth("s3cret"))
	assert.False(t, auth(`{"token":"wrong"}`))
	assert.False(t, auth(""))
}

func TestTokenAuthenticatorEmptyTokenRejects(t *testing.T) {
	auth := TokenAuthenticator("")

	assert.False(t, auth("anything"))
	assert.False(t, auth(""))
}

func TestAllowAll(t *testing.T) {
	auth := AllowAll()

	assert.True(t, auth(""))
	assert.True(t, auth("whatever"))
}
