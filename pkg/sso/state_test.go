package sso

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-io/gatehouse/pkg/errs"
)

func TestStateSigner(t *testing.T) {
	newSigner := func(t *testing.T) *StateSigner {
		t.Helper()
		signer, err := NewStateSigner("state-secret", time.Minute)
		require.NoError(t, err)
		return signer
	}

	t.Run("round trip carries provider and redirect", func(t *testing.T) {
		signer := newSigner(t)
		token, err := signer.Issue(ProviderOkta, "/dashboard")
		require.NoError(t, err)

		claims, err := signer.Verify(token, ProviderOkta)
		require.NoError(t, err)
		assert.Equal(t, ProviderOkta, claims.Provider)
		assert.Equal(t, "/dashboard", claims.Redirect)
		assert.NotEmpty(t, claims.ID)
	})

	t.Run("provider mismatch is rejected", func(t *testing.T) {
		signer := newSigner(t)
		token, err := signer.Issue(ProviderOkta, "")
		require.NoError(t, err)

		_, err = signer.Verify(token, ProviderGoogle)
		assert.True(t, errs.IsAuthentication(err))
	})

	t.Run("expired state is rejected", func(t *testing.T) {
		signer := newSigner(t)
		token, err := signer.Issue(ProviderSAML, "")
		require.NoError(t, err)

		signer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		_, err = signer.Verify(token, ProviderSAML)
		assert.True(t, errs.IsAuthentication(err))
	})

	t.Run("tampered token is rejected", func(t *testing.T) {
		signer := newSigner(t)
		token, err := signer.Issue(ProviderOkta, "")
		require.NoError(t, err)

		_, err = signer.Verify(token+"x", ProviderOkta)
		assert.True(t, errs.IsAuthentication(err))
	})

	t.Run("token signed with another secret is rejected", func(t *testing.T) {
		other, err := NewStateSigner("another-secret-entirely", time.Minute)
		require.NoError(t, err)
		token, err := other.Issue(ProviderOkta, "")
		require.NoError(t, err)

		_, err = newSigner(t).Verify(token, ProviderOkta)
		assert.True(t, errs.IsAuthentication(err))
	})

	t.Run("empty secret is refused", func(t *testing.T) {
		_, err := NewStateSigner("", time.Minute)
		assert.True(t, errs.IsValidation(err))
	})
}
