// Package bpb parses the BIOS Parameter Block shared by FAT12, FAT16, and
// FAT32 volumes into the derived geometry the rest of fatstream needs:
// cluster size, FAT location(s), root directory location, and the volume's
// label.
package bpb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/corvusfs/fatstream/ferr"
	"github.com/corvusfs/fatstream/internal/fat"
)

// rawCommon is the 36-byte header shared by every FAT version, read directly
// off disk with encoding/binary. Two fields (TotalSectors16 and
// SectorsPerFAT16) double as discriminators: a zero TotalSectors16 means the
// 32-bit count applies, and a zero SectorsPerFAT16 means this is a FAT32
// volume whose FAT size lives in the extended substructure instead.
type rawCommon struct {
	JumpBoot         [3]byte
	OEMName          [8]byte
	BytesPerSector   uint16
	SectorsPerClus   uint8
	ReservedSectors  uint16
	NumFATs          uint8
	RootEntryCount   uint16
	TotalSectors16   uint16
	Media            uint8
	SectorsPerFAT16  uint16
	SectorsPerTrack  uint16
	NumHeads         uint16
	HiddenSectors    uint32
	TotalSectors32   uint32
}

// rawFAT1216Ext is the FAT12/FAT16 extended BPB substructure.
type rawFAT1216Ext struct {
	DriveNum    uint8
	Reserved    uint8
	BootSig     uint8
	VolSerial   uint32
	Label       [11]byte
	FSType      [8]byte
}

// rawFAT32Ext is the FAT32 extended BPB substructure.
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

// fat32MirrorDisabled is the extended_flags bit that means "only the FAT
// copy named by the low nibble is authoritative"; the rest are not kept in
// sync and must not be read.
const fat32MirrorDisabled = 0x80

// BootSector is the fully parsed, derived BPB: everything volume.go needs to
// build a fat.Table and locate the root directory.
type BootSector struct {
	BytesPerSector  uint
	SectorsPerClus  uint
	BytesPerCluster uint
	NumFATs         uint8

	VolumeSize int64

	FATFirstOff   int64
	FATActiveOff  int64
	FATSizeBytes  int64
	DataStartOff  int64
	MaxClusterNum fat.ClusterID

	Variant fat.Variant

	// RootCluster is only meaningful for FAT32; FAT12/16 locate the root
	// directory in a fixed region instead (RootDirOff, RootDirEnd).
	RootCluster fat.ClusterID
	RootDirOff  int64
	RootDirEnd  int64

	Label string
}

// headerSize is the number of bytes read off disk: the 36-byte common
// header plus the 54-byte FAT32 extended substructure, which is large
// enough to cover either branch (the FAT12/16 substructure is only 26
// bytes).
const headerSize = 90

// Parse reads the BPB from the start of r and derives a BootSector, or an
// error if any invariant in the on-disk format is violated.
func Parse(r io.Reader) (*BootSector, error) {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, ferr.Wrap(ferr.NotFATFS, err)
	}

	reader := bytes.NewReader(buf)
	var common rawCommon
	if err := binary.Read(reader, binary.LittleEndian, &common); err != nil {
		return nil, ferr.Wrap(ferr.NotFATFS, err)
	}

	switch common.BytesPerSector {
	case 512, 1024, 2048, 4096:
	default:
		return nil, ferr.Newf(ferr.NotFATFS, "bytes per sector must be 512/1024/2048/4096, got %d", common.BytesPerSector)
	}
	if common.SectorsPerClus == 0 || !isPowerOfTwoUpTo128(common.SectorsPerClus) {
		return nil, ferr.Newf(ferr.NotFATFS, "sectors per cluster must be a power of 2 in 1-128, got %d", common.SectorsPerClus)
	}
	if (uint(common.RootEntryCount)*32)%uint(common.BytesPerSector) != 0 {
		return nil, ferr.New(ferr.NotFATFS)
	}
	if common.NumFATs == 0 || common.NumFATs > 0xF {
		return nil, ferr.New(ferr.NotFATFS)
	}
	if common.TotalSectors16 == 0 && common.TotalSectors32 == 0 {
		return nil, ferr.New(ferr.NotFATFS)
	}

	bytesPerCluster := uint(common.BytesPerSector) * uint(common.SectorsPerClus)
	if bytesPerCluster > 32768 {
		return nil, ferr.Newf(ferr.NotFATFS, "bytes per cluster cannot exceed 32768, got %d", bytesPerCluster)
	}

	totalSectors := uint(common.TotalSectors16)
	if totalSectors == 0 {
		totalSectors = uint(common.TotalSectors32)
	}
	volumeSize := int64(totalSectors) * int64(common.BytesPerSector)

	fatFirstOff := int64(common.ReservedSectors) * int64(common.BytesPerSector)

	boot := &BootSector{
		BytesPerSector:  uint(common.BytesPerSector),
		SectorsPerClus:  uint(common.SectorsPerClus),
		BytesPerCluster: bytesPerCluster,
		NumFATs:         common.NumFATs,
		VolumeSize:      volumeSize,
		FATFirstOff:     fatFirstOff,
		FATActiveOff:    fatFirstOff,
	}

	if common.SectorsPerFAT16 == 0 {
		if err := boot.parseFAT32(reader, common); err != nil {
			return nil, err
		}
	} else {
		if err := boot.parseFAT1216(reader, common); err != nil {
			return nil, err
		}
	}

	return boot, nil
}

func isPowerOfTwoUpTo128(n uint8) bool {
	if n == 0 || n > 128 {
		return false
	}
	return n&(n-1) == 0
}

func (boot *BootSector) parseFAT32(reader *bytes.Reader, common rawCommon) error {
	var ext rawFAT32Ext
	if err := binary.Read(reader, binary.LittleEndian, &ext); err != nil {
		return ferr.Wrap(ferr.NotFATFS, err)
	}

	boot.Variant = fat.Variant32
	boot.FATSizeBytes = int64(ext.SectorsPerFAT32) * int64(common.BytesPerSector)
	boot.DataStartOff = boot.FATFirstOff + int64(boot.NumFATs)*boot.FATSizeBytes

	if ext.ExtendedFlags&fat32MirrorDisabled != 0 {
		activeIndex := ext.ExtendedFlags & 0xF
		if uint8(activeIndex) >= boot.NumFATs {
			return ferr.New(ferr.NotFATFS)
		}
		boot.FATActiveOff = boot.FATFirstOff + int64(activeIndex)*boot.FATSizeBytes
	}

	boot.MaxClusterNum = fat.ClusterID((boot.VolumeSize-boot.DataStartOff)/int64(boot.BytesPerCluster) + 1)

	rootCluster := fat.ClusterID(ext.RootCluster)
	if rootCluster < 2 || rootCluster > boot.MaxClusterNum {
		return ferr.New(ferr.NotFATFS)
	}
	boot.RootCluster = rootCluster

	boot.Label = decodeLabel(ext.Label)
	return nil
}

func (boot *BootSector) parseFAT1216(reader *bytes.Reader, common rawCommon) error {
	var ext rawFAT1216Ext
	if err := binary.Read(reader, binary.LittleEndian, &ext); err != nil {
		return ferr.Wrap(ferr.NotFATFS, err)
	}

	boot.FATSizeBytes = int64(common.SectorsPerFAT16) * int64(common.BytesPerSector)
	boot.RootDirOff = boot.FATFirstOff + int64(boot.NumFATs)*boot.FATSizeBytes
	boot.RootDirEnd = boot.RootDirOff + int64(common.RootEntryCount)*32
	boot.DataStartOff = boot.RootDirEnd

	if boot.RootDirOff > boot.VolumeSize || boot.RootDirEnd >= boot.VolumeSize {
		return ferr.New(ferr.NotFATFS)
	}

	boot.MaxClusterNum = fat.ClusterID((boot.VolumeSize-boot.DataStartOff)/int64(boot.BytesPerCluster) + 1)

	if boot.MaxClusterNum > 4085 {
		boot.Variant = fat.Variant16
	} else {
		boot.Variant = fat.Variant12
	}

	boot.Label = decodeLabel(ext.Label)
	return nil
}

// decodeLabel zero-extends each byte of an 11-byte FAT label field to a
// Unicode string and strips trailing spaces, matching the source's
// remove_trailing_spaces_char behavior.
func decodeLabel(raw [11]byte) string {
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return strings.TrimRight(string(runes), " ")
}

func (boot *BootSector) String() string {
	return fmt.Sprintf("FAT%d volume, %d bytes, label %q", boot.Variant, boot.VolumeSize, boot.Label)
}
