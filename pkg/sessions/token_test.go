package sessions

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSessionToken(t *testing.T) {
	token, err := GenerateSessionToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(token, SessionTokenPrefix))
	assert.NoError(t, ValidateTokenFormat(token, SessionTokenPrefix))
}

func TestGenerateRefreshToken(t *testing.T) {
	token, err := GenerateRefreshToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(token, RefreshTokenPrefix))
	assert.NoError(t, ValidateTokenFormat(token, RefreshTokenPrefix))
}

func TestTokensAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := GenerateSessionToken()
		require.NoError(t, err)
		assert.False(t, seen[token], "token generated twice")
		seen[token] = true
	}
}

func TestValidateTokenFormat(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		prefix  string
		wantErr bool
	}{
		{name: "wrong prefix", token: "ghr_abc", prefix: SessionTokenPrefix, wantErr: true},
		{name: "empty payload", token: "ghs_", prefix: SessionTokenPrefix, wantErr: true},
		{name: "invalid base64url", token: "ghs_!!!", prefix: SessionTokenPrefix, wantErr: true},
		{name: "valid", token: "ghs_YWJjZGVm", prefix: SessionTokenPrefix, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTokenFormat(tt.token, tt.prefix)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
