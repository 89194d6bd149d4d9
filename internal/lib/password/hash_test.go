package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{"обычный пароль", "password123"},
		{"пароль со спецсимволами", "p@ssw0rd!#%&*"},
		{"пароль с юникодом", "motdepasseéù"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := Hash(tt.password)
			require.NoError(t, err)
			assert.NotEqual(t, tt.password, hash)

			assert.NoError(t, Compare(hash, tt.password))
			assert.Error(t, Compare(hash, tt.password+"x"))
		})
	}
}

func TestCompare_InvalidHash(t *testing.T) {
	assert.Error(t, Compare("not-a-bcrypt-hash", "password"))
	assert.Error(t, Compare("", "password"))
}
