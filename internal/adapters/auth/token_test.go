package auth

import (
	"context"
	"testing"

	"github.com/alejandrodnm/betledger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenAuthorizer_IssueAndAuthorize(t *testing.T) {
	a := NewTokenAuthorizer("s3cret")
	tok, err := a.IssueToken("keith")
	require.NoError(t, err)

	assert.NoError(t, a.Authorize(context.Background(), tok))
	assert.Equal(t, "keith", Subject(tok))
}

func TestTokenAuthorizer_RejectsForgedTokens(t *testing.T) {
	a := NewTokenAuthorizer("s3cret")
	other := NewTokenAuthorizer("another")

	forged, err := other.IssueToken("keith")
	require.NoError(t, err)

	for _, cred := range []string{"", "keith", "keith.", ".abc", forged, "keith"} {
		assert.ErrorIs(t, a.Authorize(context.Background(), cred), domain.ErrUnauthorized, cred)
	}
}

func TestTokenAuthorizer_PlaintextPasswordIsNotAToken(t *testing.T) {
	a := NewTokenAuthorizer("keith")
	assert.ErrorIs(t, a.Authorize(context.Background(), "keith"), domain.ErrUnauthorized)
}

func TestTokenAuthorizer_EmptySecretDeniesEverything(t *testing.T) {
	a := NewTokenAuthorizer("")
	_, err := a.IssueToken("keith")
	assert.Error(t, err)
	assert.ErrorIs(t, a.Authorize(context.Background(), "keith.abc"), domain.ErrUnauthorized)
}

func TestTokenAuthorizer_InvalidSubject(t *testing.T) {
	a := NewTokenAuthorizer("s3cret")
	_, err := a.IssueToken("  ")
	assert.Error(t, err)
	_, err = a.IssueToken("a.b")
	assert.Error(t, err)
}
