package gazetteer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Region(t *testing.T) {
	g := Default()

	tests := []struct {
		district string
		region   string
	}{
		{"Blantyre", "Southern Region"},
		{"blantyre", "Southern Region"},
		{"  LILONGWE ", "Central Region"},
		{"nkhata bay", "Northern Region"},
	}
	for _, tt := range tests {
		r, ok := g.Region(tt.district)
		require.True(t, ok, tt.district)
		assert.Equal(t, tt.region, r)
	}

	_, ok := g.Region("Nairobi")
	assert.False(t, ok)
	assert.Equal(t, DefaultRegion, g.RegionOrDefault("Nairobi"))
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, "Nkhata Bay", Canonical("nKHATA   bay"))
	assert.Equal(t, "", Canonical("   "))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "districts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("regions:\n  Coast:\n    - Mombasa\n"), 0o600))

	g, err := Load(path)
	require.NoError(t, err)

	r, ok := g.Region("mombasa")
	assert.True(t, ok)
	assert.Equal(t, "Coast", r)
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse([]byte("regions: {}\n"))
	assert.Error(t, err)
}
