package fat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/corvusfs/fatstream/internal/blockio"
)

func newTable(t *testing.T, variant Variant, fatBytes []byte, numFATs uint8, maxCluster ClusterID) *Table {
	t.Helper()
	image := make([]byte, len(fatBytes)*int(numFATs))
	for i := 0; i < int(numFATs); i++ {
		copy(image[i*len(fatBytes):], fatBytes)
	}
	stream := blockio.New(bytesextra.NewReadWriteSeeker(image), 0, int64(len(image)))
	return &Table{
		Stream:        stream,
		Variant:       variant,
		ActiveFATOff:  0,
		FirstFATOff:   0,
		SizeBytes:     int64(len(fatBytes)),
		NumFATs:       numFATs,
		MaxClusterNum: maxCluster,
	}
}

func TestTable_FAT16_ReadWrite(t *testing.T) {
	fatBytes := make([]byte, 32)
	// SafeRead validates the value it reads, so MaxClusterNum must cover it.
	table := newTable(t, Variant16, fatBytes, 2, 0x2000)

	require.NoError(t, table.SafeWrite(5, 0x1234))
	value, err := table.SafeRead(5)
	require.NoError(t, err)
	assert.Equal(t, ClusterID(0x1234), value)

	// Both mirrors must agree.
	mirrorBuf := make([]byte, 2)
	_, err = table.Stream.ReadAt(mirrorBuf, table.SizeBytes+5*2)
	require.NoError(t, err)
	assert.Equal(t, byte(0x34), mirrorBuf[0])
	assert.Equal(t, byte(0x12), mirrorBuf[1])
}

func TestTable_FAT12_OddEvenPacking(t *testing.T) {
	fatBytes := make([]byte, 32)
	// SafeRead validates the values it reads, so MaxClusterNum must cover them.
	table := newTable(t, Variant12, fatBytes, 1, 0xFF4)

	require.NoError(t, table.SafeWrite(4, 0xABC)) // even cluster
	require.NoError(t, table.SafeWrite(5, 0xDEF)) // odd cluster, shares a byte pair with 4

	v4, err := table.SafeRead(4)
	require.NoError(t, err)
	v5, err := table.SafeRead(5)
	require.NoError(t, err)

	assert.Equal(t, ClusterID(0xABC), v4)
	assert.Equal(t, ClusterID(0xDEF), v5)
}

func TestTable_FAT32_PreservesHighBits(t *testing.T) {
	fatBytes := make([]byte, 32)
	// SafeRead validates the value it reads, so MaxClusterNum must cover it.
	table := newTable(t, Variant32, fatBytes, 1, 0x2000)

	// Seed the entry with reserved high bits set, as if written by another
	// tool, then confirm our write preserves them.
	require.NoError(t, table.write32At(0, 6, 0x0000ABCD))
	buf := make([]byte, 4)
	_, err := table.Stream.ReadAt(buf, 6*4)
	require.NoError(t, err)
	buf[3] |= 0xF0
	_, err = table.Stream.WriteAt(buf, 6*4)
	require.NoError(t, err)

	require.NoError(t, table.SafeWrite(6, 0x00001111))

	raw := make([]byte, 4)
	_, err = table.Stream.ReadAt(raw, 6*4)
	require.NoError(t, err)
	assert.Equal(t, byte(0xF0), raw[3]&0xF0)

	value, err := table.SafeRead(6)
	require.NoError(t, err)
	assert.Equal(t, ClusterID(0x00001111), value)
}

func TestTable_SafeRead_RejectsOutOfRangeCluster(t *testing.T) {
	fatBytes := make([]byte, 32)
	table := newTable(t, Variant16, fatBytes, 1, 10)

	_, err := table.SafeRead(1)
	assert.Error(t, err)

	_, err = table.SafeRead(11)
	assert.Error(t, err)
}

func TestTable_SafeRead_CollapsesEOFToInvalid(t *testing.T) {
	fatBytes := make([]byte, 32)
	table := newTable(t, Variant16, fatBytes, 1, 10)

	require.NoError(t, table.SafeWrite(5, table.EOF()))
	_, err := table.SafeRead(5)
	assert.Error(t, err)

	next, err := table.PeekNext(5)
	require.NoError(t, err)
	assert.True(t, table.IsEOF(next))
}

func TestTable_Link_RejectsArbitraryValue(t *testing.T) {
	fatBytes := make([]byte, 32)
	table := newTable(t, Variant16, fatBytes, 1, 10)

	err := table.Link(4, 9999)
	assert.Error(t, err)

	require.NoError(t, table.Link(4, table.EOF()))
}
