package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_KnownPreset(t *testing.T) {
	preset, err := Lookup("floppy144")
	require.NoError(t, err)
	assert.Equal(t, uint(12), preset.FATBits)
	assert.EqualValues(t, 1474560, preset.TotalSizeBytes())
}

func TestLookup_UnknownPreset(t *testing.T) {
	_, err := Lookup("does-not-exist")
	assert.Error(t, err)
}

func TestSlugs_IncludesRegisteredPresets(t *testing.T) {
	slugs := Slugs()
	assert.Contains(t, slugs, "floppy144")
	assert.Contains(t, slugs, "cfcard1gb-fat32")
}

func TestSectorsPerFAT_Fat12Floppy(t *testing.T) {
	preset, err := Lookup("floppy144")
	require.NoError(t, err)
	// 2880 - 1 reserved - 14 root sectors = 2865 data sectors / 1 spc = 2865 clusters.
	// 2865 * 12 bits = 34380 bits = 4298 bytes -> 9 sectors (ceil 4298/512).
	assert.Equal(t, uint(9), preset.SectorsPerFAT())
}
