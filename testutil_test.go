package fatstream_test

import (
	"encoding/binary"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/require"

	"github.com/corvusfs/fatstream/geometry"
	"github.com/corvusfs/fatstream/internal/fatimage"
)

// testPreset is a small custom FAT12 geometry: 40 sectors of 512 bytes, one
// FAT, a 16-entry root directory. Big enough to host a handful of files and
// a one-level subdirectory, small enough to build in memory per test.
func testPreset() geometry.Preset {
	return geometry.Preset{
		Name:            "fatstream-test",
		Slug:            "fatstream-test",
		FATBits:         12,
		TotalSectors:    40,
		BytesPerSector:  512,
		SectorsPerClus:  1,
		ReservedSectors: 1,
		NumFATs:         1,
		MaxRootEntries:  16,
		MediaDescriptor: 0xF8,
	}
}

// fat1216LabelOffset is the byte offset of the Label field within the
// FAT12/16 extended BPB substructure: 36 bytes of common header, then
// DriveNum/Reserved/BootSig/VolSerial (7 bytes) ahead of Label.
const fat1216LabelOffset = 36 + 7

func setLabel(imageBytes []byte, label string) {
	var raw [11]byte
	for i := range raw {
		raw[i] = ' '
	}
	copy(raw[:], label)
	copy(imageBytes[fat1216LabelOffset:fat1216LabelOffset+11], raw[:])
}

// writeFAT12Entry packs value into cluster n's 12-bit slot, per the FAT12
// two-clusters-per-three-bytes layout.
func writeFAT12Entry(fatRegion []byte, n uint32, value uint16) {
	off := n + n/2
	if n%2 == 0 {
		fatRegion[off] = byte(value)
		fatRegion[off+1] = (fatRegion[off+1] & 0xF0) | byte((value>>8)&0x0F)
	} else {
		fatRegion[off] = (fatRegion[off] & 0x0F) | byte((value&0x0F)<<4)
		fatRegion[off+1] = byte(value >> 4)
	}
}

// writePrimaryEntry encodes a 32-byte non-long-name directory record at
// buf[off:off+32].
func writePrimaryEntry(buf []byte, off int, name8dot3 string, attr uint8, cluster uint32, size uint32) {
	rec := buf[off : off+32]
	for i := range rec {
		rec[i] = 0
	}
	var nameField [11]byte
	for i := range nameField {
		nameField[i] = ' '
	}
	copy(nameField[:], name8dot3)
	copy(rec[0:11], nameField[:])
	rec[11] = attr
	binary.LittleEndian.PutUint16(rec[20:22], uint16(cluster>>16))
	binary.LittleEndian.PutUint16(rec[26:28], uint16(cluster))
	binary.LittleEndian.PutUint32(rec[28:32], size)
}

// writeLFNEntry encodes a single-record VFAT long name (at most 13 UTF-16
// units) at buf[off:off+32], always marked as both ordinal 1 and the last
// (0x40) record.
func writeLFNEntry(buf []byte, off int, name string) {
	rec := buf[off : off+32]
	for i := range rec {
		rec[i] = 0
	}
	units := utf16.Encode([]rune(name))
	const capacity = 13
	if len(units) > capacity {
		panic("writeLFNEntry: name too long for a single continuation record")
	}
	padded := make([]uint16, capacity)
	copy(padded, units)
	if len(units) < capacity {
		padded[len(units)] = 0x0000
		for i := len(units) + 1; i < capacity; i++ {
			padded[i] = 0xFFFF
		}
	}

	rec[0] = 0x41 // ordinal 1, last-record bit set
	for i := 0; i < 5; i++ {
		binary.LittleEndian.PutUint16(rec[1+2*i:3+2*i], padded[i])
	}
	rec[11] = 0x0F // long-name attribute
	for i := 0; i < 6; i++ {
		binary.LittleEndian.PutUint16(rec[14+2*i:16+2*i], padded[5+i])
	}
	for i := 0; i < 2; i++ {
		binary.LittleEndian.PutUint16(rec[28+2*i:30+2*i], padded[11+i])
	}
}

// builtVolume bundles a freshly formatted image together with the raw byte
// slice tests poke directory entries and FAT links into directly; Bytes and
// Stream share the same backing array, so mutating Bytes before or after
// mount is visible through Stream.
type builtVolume struct {
	image *fatimage.Image
}

func newTestImage(t *testing.T) *builtVolume {
	t.Helper()
	img, err := fatimage.Build(testPreset())
	require.NoError(t, err)
	return &builtVolume{image: img}
}

func (b *builtVolume) fatRegion() []byte {
	boot := b.image.Boot
	return b.image.Bytes[boot.FATFirstOff : boot.FATFirstOff+boot.FATSizeBytes]
}

func (b *builtVolume) rootRegion() []byte {
	boot := b.image.Boot
	return b.image.Bytes[boot.RootDirOff:boot.RootDirEnd]
}

func (b *builtVolume) clusterRegion(cluster uint32) []byte {
	boot := b.image.Boot
	start := boot.DataStartOff + int64(cluster-2)*int64(boot.BytesPerCluster)
	return b.image.Bytes[start : start+int64(boot.BytesPerCluster)]
}

// layOutFixture seeds a standard small tree used by most tests:
//
//	/NOTES.TXT    (LFN "notes.txt", cluster 2, "hello")
//	/SUBDIR/      (cluster 3)
//	  INNER.TXT   (cluster 5, "hi")
//	/SHORT.TXT    (cluster 4, "abc")
func (b *builtVolume) layOutFixture() {
	fatRegion := b.fatRegion()
	for _, c := range []uint32{2, 3, 4, 5} {
		writeFAT12Entry(fatRegion, c, 0xFFF)
	}

	root := b.rootRegion()
	writeLFNEntry(root, 0, "notes.txt")
	writePrimaryEntry(root, 32, "NOTES   TXT", 0x20, 2, 5)
	writePrimaryEntry(root, 64, "SUBDIR     ", 0x10, 3, 0)
	writePrimaryEntry(root, 96, "SHORT   TXT", 0x20, 4, 3)

	copy(b.clusterRegion(2), "hello")
	copy(b.clusterRegion(4), "abc")

	sub := b.clusterRegion(3)
	writePrimaryEntry(sub, 0, "INNER   TXT", 0x20, 5, 2)
	copy(b.clusterRegion(5), "hi")
}
