package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"canonical", "254704503769", "254704503769"},
		{"plus prefix", "+254704503769", "254704503769"},
		{"spaces", "+254 704 503 769", "254704503769"},
		{"local with zero", "0704503769", "254704503769"},
		{"bare subscriber", "704503769", "254704503769"},
		{"foreign prefix keeps last nine", "+265991234567", "254991234567"},
		{"leading zeros", "000254704503769", "254704503769"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Rejects(t *testing.T) {
	for _, in := range []string{"", "+", "0000", "12345678", "25470450376x", "abcdefghijkl"} {
		got, err := Normalize(in)
		assert.ErrorIs(t, err, ErrInvalid, "input %q", in)
		assert.Empty(t, got)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, in := range []string{"0704503769", "+254 783 781 799", "712345678", "254700000001"} {
		once, err := Normalize(in)
		require.NoError(t, err)

		twice, err := Normalize(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
		assert.True(t, Valid(twice))
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("254704503769"))
	assert.False(t, Valid("0704503769"))
	assert.False(t, Valid("2547045037690"))
	assert.False(t, Valid(""))
}
