package fat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/corvusfs/fatstream/internal/blockio"
)

func newAllocTable(t *testing.T, maxCluster ClusterID) *Table {
	t.Helper()
	fatBytes := make([]byte, 1024)
	stream := blockio.New(bytesextra.NewReadWriteSeeker(fatBytes), 0, int64(len(fatBytes)))
	return &Table{
		Stream:        stream,
		Variant:       Variant16,
		ActiveFATOff:  0,
		FirstFATOff:   0,
		SizeBytes:     int64(len(fatBytes)),
		NumFATs:       1,
		MaxClusterNum: maxCluster,
	}
}

func TestAllocator_ScanFindsAllFree(t *testing.T) {
	table := newAllocTable(t, 20)
	require.NoError(t, table.SafeWrite(2, 0xFFFF)) // mark cluster 2 used

	alloc, err := NewAllocator(table)
	require.NoError(t, err)

	// Every cluster 0..20 except 2 reads zero, so num_free = 21 - 1.
	assert.Equal(t, uint(20), alloc.NumFree())
}

func TestAllocator_AllocateReturnsLowestFree(t *testing.T) {
	table := newAllocTable(t, 20)
	require.NoError(t, table.SafeWrite(2, 0xFFFF))
	require.NoError(t, table.SafeWrite(3, 0xFFFF))
	// Entries 0 and 1 occupy scan slots too; mark them used the way a
	// formatter does so the lowest free cluster is a data cluster.
	require.NoError(t, table.WriteReserved(0, 0xFFF8))
	require.NoError(t, table.WriteReserved(1, 0xFFFF))

	alloc, err := NewAllocator(table)
	require.NoError(t, err)

	cluster, err := alloc.Allocate()
	require.NoError(t, err)
	assert.Equal(t, ClusterID(4), cluster)
}

func TestAllocator_AllocateDoesNotLink(t *testing.T) {
	table := newAllocTable(t, 20)
	alloc, err := NewAllocator(table)
	require.NoError(t, err)

	cluster, err := alloc.Allocate()
	require.NoError(t, err)

	value, err := table.read(cluster)
	require.NoError(t, err)
	assert.EqualValues(t, 0, value)
}

func TestAllocator_FullDiskWhenExhausted(t *testing.T) {
	table := newAllocTable(t, 3)
	require.NoError(t, table.SafeWrite(2, 0xFFFF))
	require.NoError(t, table.SafeWrite(3, 0xFFFF))
	// Clusters 0 and 1 aren't valid entries for SafeWrite's cluster range
	// check but still occupy scan slots, so mark them used directly.
	require.NoError(t, table.WriteReserved(0, 0xFFFF))
	require.NoError(t, table.WriteReserved(1, 0xFFFF))

	alloc, err := NewAllocator(table)
	require.NoError(t, err)
	assert.Zero(t, alloc.NumFree())

	_, err = alloc.Allocate()
	assert.Error(t, err)
}

func TestAllocator_FreeMakesClusterAvailableAgain(t *testing.T) {
	table := newAllocTable(t, 20)
	// Mark the reserved entries 0 and 1 used so Allocate hands out a data
	// cluster that Link accepts.
	require.NoError(t, table.WriteReserved(0, 0xFFF8))
	require.NoError(t, table.WriteReserved(1, 0xFFFF))
	alloc, err := NewAllocator(table)
	require.NoError(t, err)

	c1, err := alloc.Allocate()
	require.NoError(t, err)
	require.NoError(t, table.Link(c1, table.EOF()))

	require.NoError(t, alloc.Free(c1))

	c2, err := alloc.Allocate()
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
}
