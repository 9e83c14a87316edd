// Package fatimage builds synthetic, fully-formatted FAT volume images in
// memory for tests elsewhere in the module: a valid BPB, correctly sized and
// seeded FAT copies, and an empty root directory, all derived from a
// geometry.Preset. It plays the same role disko's testing/images.go plays
// for disko's own test suite.
package fatimage

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/xaionaro-go/bytesextra"

	"github.com/corvusfs/fatstream/geometry"
	"github.com/corvusfs/fatstream/internal/bpb"
)

// Image is a freshly formatted, empty FAT volume: the raw backing bytes plus
// its already-parsed BPB, ready to hand to bpb.Parse a second time (the way
// volume.Mount will) or to poke directory entries into directly via the
// internal/fat and internal/dirent packages.
type Image struct {
	Bytes  []byte
	Stream io.ReadWriteSeeker
	Boot   *bpb.BootSector
}

// rawCommon/rawFAT1216Ext/rawFAT32Ext mirror the unexported layouts in
// package bpb; Build needs to write the same bytes bpb.Parse reads back, and
// the two packages deliberately don't share types across the internal
// boundary.
type rawCommon struct {
	JumpBoot        [3]byte
	OEMName         [8]byte
	BytesPerSector  uint16
	SectorsPerClus  uint8
	ReservedSectors uint16
	NumFATs         uint8
	RootEntryCount  uint16
	TotalSectors16  uint16
	Media           uint8
	SectorsPerFAT16 uint16
	SectorsPerTrack uint16
	NumHeads        uint16
	HiddenSectors   uint32
	TotalSectors32  uint32
}

type rawFAT1216Ext struct {
	DriveNum  uint8
	Reserved  uint8
	BootSig   uint8
	VolSerial uint32
	Label     [11]byte
	FSType    [8]byte
}

type rawFAT32Ext struct {
	SectorsPerFAT32  uint32
	ExtendedFlags    uint16
	FSVersion        uint16
	RootCluster      uint32
	FSInfo           uint16
	BackupBootSector uint16
	Reserved         [12]byte
	PhysicalDrive    uint8
	Reserved1        uint8
	BootSig          uint8
	VolSerial        uint32
	Label            [11]byte
	FSType           [8]byte
}

func reservedSectorsPerFAT(preset geometry.Preset) uint {
	n := preset.SectorsPerFAT()
	if n == 0 {
		n = 1
	}
	return n
}

// Build formats a blank volume matching preset. Prefer a small custom
// geometry.Preset over one of the package's realistic catalog entries when
// calling this from a test — a cfcard1gb-fat32 preset allocates a
// one-gigabyte []byte, which is fine for a formatter but not for a test
// fixture. It writes NumFATs copies
// of a FAT with entries 0 and 1 seeded the way a real formatter seeds them,
// and a zeroed root directory and data region. The returned Image's Stream
// is ready to pass to volume.Mount.
func Build(preset geometry.Preset) (*Image, error) {
	sectorsPerFAT := reservedSectorsPerFAT(preset)
	fatBytes := sectorsPerFAT * preset.BytesPerSector

	common := rawCommon{
		OEMName:         [8]byte{'F', 'A', 'T', 'S', 'T', 'R', 'M', ' '},
		BytesPerSector:  uint16(preset.BytesPerSector),
		SectorsPerClus:  uint8(preset.SectorsPerClus),
		ReservedSectors: uint16(preset.ReservedSectors),
		NumFATs:         uint8(preset.NumFATs),
		RootEntryCount:  uint16(preset.MaxRootEntries),
		Media:           uint8(preset.MediaDescriptor),
	}
	if preset.TotalSectors <= 0xFFFF {
		common.TotalSectors16 = uint16(preset.TotalSectors)
	} else {
		common.TotalSectors32 = uint32(preset.TotalSectors)
	}

	var header bytes.Buffer
	if err := binary.Write(&header, binary.LittleEndian, common); err != nil {
		return nil, err
	}

	if preset.FATBits == 32 {
		common.SectorsPerFAT16 = 0 // discriminator: FAT32 keeps its size in the extended block
		header.Reset()
		if err := binary.Write(&header, binary.LittleEndian, common); err != nil {
			return nil, err
		}
		ext := rawFAT32Ext{
			SectorsPerFAT32: uint32(sectorsPerFAT),
			RootCluster:     2,
			BootSig:         0x29,
			FSType:          [8]byte{'F', 'A', 'T', '3', '2', ' ', ' ', ' '},
		}
		if err := binary.Write(&header, binary.LittleEndian, ext); err != nil {
			return nil, err
		}
	} else {
		common.SectorsPerFAT16 = uint16(sectorsPerFAT)
		header.Reset()
		if err := binary.Write(&header, binary.LittleEndian, common); err != nil {
			return nil, err
		}
		ext := rawFAT1216Ext{
			BootSig:  0x29,
			VolSerial: 0x12345678,
			FSType:   [8]byte{'F', 'A', 'T', ' ', ' ', ' ', ' ', ' '},
		}
		if preset.FATBits == 12 {
			copy(ext.FSType[:], "FAT12   ")
		} else {
			copy(ext.FSType[:], "FAT16   ")
		}
		if err := binary.Write(&header, binary.LittleEndian, ext); err != nil {
			return nil, err
		}
	}

	image := make([]byte, preset.TotalSizeBytes())
	copy(image, header.Bytes())

	fatFirstOff := int64(preset.ReservedSectors) * int64(preset.BytesPerSector)
	for i := uint(0); i < preset.NumFATs; i++ {
		off := fatFirstOff + int64(i)*int64(fatBytes)
		seedReservedEntries(image[off:off+int64(fatBytes)], preset)
	}

	stream := bytesextra.NewReadWriteSeeker(image)
	boot, err := bpb.Parse(bytes.NewReader(image))
	if err != nil {
		return nil, err
	}

	return &Image{Bytes: image, Stream: stream, Boot: boot}, nil
}

// seedReservedEntries marks FAT entries 0 and 1 the way mkfs does: entry 0
// echoes the media descriptor in its low byte (high bits all set), entry 1
// carries the end-of-chain marker.
func seedReservedEntries(fatRegion []byte, preset geometry.Preset) {
	media := byte(preset.MediaDescriptor)
	switch preset.FATBits {
	case 12:
		// Packed nibbles: entry 0 = 0xF00|media in the low 12 bits of the
		// first 1.5 bytes, entry 1 = 0xFFF in the next 12 bits.
		fatRegion[0] = media
		fatRegion[1] = 0xFF
		fatRegion[2] = 0xFF
	case 16:
		binary.LittleEndian.PutUint16(fatRegion[0:2], 0xFF00|uint16(media))
		binary.LittleEndian.PutUint16(fatRegion[2:4], 0xFFFF)
	default:
		binary.LittleEndian.PutUint32(fatRegion[0:4], 0xFFFFFF00|uint32(media))
		binary.LittleEndian.PutUint32(fatRegion[4:8], 0x0FFFFFFF)
	}
}
