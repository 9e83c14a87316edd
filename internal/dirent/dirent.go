// Package dirent decodes FAT directory records: the 32-byte primary entry,
// its VFAT long-filename continuation records, and the filter loop that
// turns a raw cursor position into the next yieldable entry.
package dirent

import (
	"encoding/binary"
	"time"

	"github.com/noxer/bytewriter"

	"github.com/corvusfs/fatstream/internal/blockio"
	"github.com/corvusfs/fatstream/internal/cursor"
	"github.com/corvusfs/fatstream/internal/fat"
)

// Attribute bits, per the standard FAT directory entry layout.
const (
	AttrReadOnly  = 0x01
	AttrHidden    = 0x02
	AttrSystem    = 0x04
	AttrVolumeID  = 0x08
	AttrDirectory = 0x10
	AttrArchive   = 0x20

	// AttrLongName marks a VFAT long-filename continuation record; it's the
	// OR of four attribute bits that, together, no primary entry would ever
	// set at once.
	AttrLongName = AttrReadOnly | AttrHidden | AttrSystem | AttrVolumeID
)

// DirentSize is the size in bytes of one directory record, long-name
// continuations included.
const DirentSize = 32

// lfnName1Units, lfnName2Units and lfnName3Units are how many UTF-16 code
// units each name field of a long-name continuation record carries (5, 6
// and 2); lfnUnitsTotal is their sum, the units per record.
const (
	lfnName1Units = 5
	lfnName2Units = 6
	lfnName3Units = 2
	lfnUnitsTotal = lfnName1Units + lfnName2Units + lfnName3Units
)

// maxLFNRecords is FAT_MAX_NAME / 13: the most continuation records a single
// long name can require.
const maxLFNRecords = 260 / lfnUnitsTotal

// FATEpoch is the earliest representable FAT timestamp, 1980-01-01 local.
var FATEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.Local)

// rawPrimary is the on-disk layout of a non-long-name directory record.
type rawPrimary struct {
	Name8Dot3         [11]byte
	Attribute         uint8
	NTReserved        uint8
	CreatedTimeTenths uint8
	CreatedTime       uint16
	CreatedDate       uint16
	LastAccessedDate  uint16
	FirstClusterHigh  uint16
	ModifiedTime      uint16
	ModifiedDate      uint16
	FirstClusterLow   uint16
	FileSize          uint32
}

// rawLFN is the on-disk layout of a long-filename continuation record.
type rawLFN struct {
	Ordinal   uint8
	Name1     [lfnName1Units]uint16
	Attribute uint8
	Zero1     uint8
	Checksum  uint8
	Name2     [lfnName2Units]uint16
	Zero2     [2]uint8
	Name3     [lfnName3Units]uint16
}

// Entry is the decoded result of one directory record: a primary record plus
// its (possibly reconstructed) long name.
type Entry struct {
	Name         string
	Attribute    uint8
	FirstCluster fat.ClusterID
	Size         uint32
	CreatedAt    time.Time
	ModifiedAt   time.Time
	AccessedAt   time.Time

	// PrivOff is the byte offset of the primary record on disk — the
	// address opendir/fopen need to patch the entry's size or first
	// cluster back later.
	PrivOff int64
}

// IsDir reports whether this entry names a subdirectory.
func (e *Entry) IsDir() bool {
	return e.Attribute&AttrDirectory != 0
}

func decodeDate(value uint16) (year int, month time.Month, day int) {
	day = int(value & 0x1F)
	month = time.Month((value >> 5) & 0xF)
	year = 1980 + int(value>>9)
	return
}

func decodeTimestamp(date, clock uint16, tenths uint8) time.Time {
	year, month, day := decodeDate(date)
	seconds := int(clock&0x1F) * 2
	minutes := int((clock >> 5) & 0x3F)
	hours := int(clock >> 11)
	nanos := int(tenths) * 10 * 1000 * 1000
	return time.Date(year, month, day, hours, minutes, seconds, nanos, time.Local)
}

func decodeRawPrimary(buf []byte) rawPrimary {
	var r rawPrimary
	copy(r.Name8Dot3[:], buf[0:11])
	r.Attribute = buf[11]
	r.NTReserved = buf[12]
	r.CreatedTimeTenths = buf[13]
	r.CreatedTime = binary.LittleEndian.Uint16(buf[14:16])
	r.CreatedDate = binary.LittleEndian.Uint16(buf[16:18])
	r.LastAccessedDate = binary.LittleEndian.Uint16(buf[18:20])
	r.FirstClusterHigh = binary.LittleEndian.Uint16(buf[20:22])
	r.ModifiedTime = binary.LittleEndian.Uint16(buf[22:24])
	r.ModifiedDate = binary.LittleEndian.Uint16(buf[24:26])
	r.FirstClusterLow = binary.LittleEndian.Uint16(buf[26:28])
	r.FileSize = binary.LittleEndian.Uint32(buf[28:32])
	return r
}

func decodeRawLFN(buf []byte) rawLFN {
	var r rawLFN
	r.Ordinal = buf[0]
	for i := 0; i < lfnName1Units; i++ {
		r.Name1[i] = binary.LittleEndian.Uint16(buf[1+2*i : 3+2*i])
	}
	r.Attribute = buf[11]
	r.Zero1 = buf[12]
	r.Checksum = buf[13]
	for i := 0; i < lfnName2Units; i++ {
		r.Name2[i] = binary.LittleEndian.Uint16(buf[14+2*i : 16+2*i])
	}
	r.Zero2[0], r.Zero2[1] = buf[26], buf[27]
	for i := 0; i < lfnName3Units; i++ {
		r.Name3[i] = binary.LittleEndian.Uint16(buf[28+2*i : 30+2*i])
	}
	return r
}

// shortNameFromRaw reconstructs the dotted 8.3 display name ("README.TXT")
// from the fixed-width on-disk name and extension fields.
func shortNameFromRaw(r rawPrimary) string {
	name := trimTrailingSpaces(r.Name8Dot3[:8])
	ext := trimTrailingSpaces(r.Name8Dot3[8:11])
	if ext == "" {
		return name
	}
	return name + "." + ext
}

func trimTrailingSpaces(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == ' ' {
		end--
	}
	return string(b[:end])
}

// ReadEntry implements the directory decoder's read_entry operation:
// repeatedly consume 32-byte records from c until a yieldable primary entry
// is found, reconstructing its long name by walking backward through any
// preceding LFN continuation records. It returns (nil, nil) at a clean
// end-of-directory marker.
func ReadEntry(c *cursor.Cursor, maxClusterNum fat.ClusterID) (*Entry, error) {
	buf := make([]byte, DirentSize)

	for {
		n, err := c.Read(buf)
		if err != nil {
			return nil, err
		}
		if n < DirentSize {
			return nil, nil // cursor couldn't supply a full record: end of directory
		}

		if buf[0] == 0x00 {
			return nil, nil // canonical end-of-directory marker
		}
		if buf[0] == 0xE5 {
			continue // deleted entry
		}

		primary := decodeRawPrimary(buf)
		firstCluster := fat.ClusterID(uint32(primary.FirstClusterHigh)<<16 | uint32(primary.FirstClusterLow))

		validCluster := firstCluster >= 2 && firstCluster <= maxClusterNum
		if !validCluster {
			isEmptyFile := primary.Attribute&AttrArchive != 0 && primary.FileSize == 0
			if !isEmptyFile {
				continue
			}
		}

		if primary.Attribute&(AttrDirectory|AttrArchive) == 0 {
			continue // volume label, long-name record read out of sequence, etc.
		}

		entry := &Entry{
			Attribute:    primary.Attribute,
			FirstCluster: firstCluster,
			Size:         primary.FileSize,
			CreatedAt:    decodeTimestamp(primary.CreatedDate, primary.CreatedTime, primary.CreatedTimeTenths),
			ModifiedAt:   decodeTimestamp(primary.ModifiedDate, primary.ModifiedTime, 0),
			AccessedAt:   timeFromDateOnly(primary.LastAccessedDate),
		}

		shortName := shortNameFromRaw(primary)

		// The LFN walk starts from the position right after the primary
		// record (where the cursor sits now), backing up one full record
		// per continuation it consumes. PrivOff instead wants the
		// primary's own on-disk address, one record further back than
		// that — so it gets its own copy, decremented once up front.
		lfnWalker := *c

		backup := *c
		if err := backup.Dec(DirentSize); err != nil {
			return nil, err
		}
		entry.PrivOff = backup.CurOff

		if shortName == "." || shortName == ".." {
			entry.Name = shortName
		} else if longName, ok := loadLongName(&lfnWalker); ok {
			entry.Name = longName
		} else {
			entry.Name = shortName
		}

		return entry, nil
	}
}

func timeFromDateOnly(value uint16) time.Time {
	year, month, day := decodeDate(value)
	return time.Date(year, month, day, 0, 0, 0, 0, time.Local)
}

// UpdateSize patches a primary record's file-size field in place, the way
// fatfs_privdirent_update_size does, touching no other byte of the record.
func UpdateSize(stream *blockio.Stream, privOff int64, size uint32) error {
	buf := make([]byte, 4)
	if err := binary.Write(bytewriter.New(buf), binary.LittleEndian, size); err != nil {
		return err
	}
	_, err := stream.WriteAt(buf, privOff+28)
	return err
}

// UpdateFirstCluster patches a primary record's first-cluster field, split
// across the on-disk layout's high and low 16-bit halves, the way
// fatfs_privdirent_update_cluster does.
func UpdateFirstCluster(stream *blockio.Stream, privOff int64, cluster fat.ClusterID) error {
	high := make([]byte, 2)
	if err := binary.Write(bytewriter.New(high), binary.LittleEndian, uint16(cluster>>16)); err != nil {
		return err
	}
	if _, err := stream.WriteAt(high, privOff+20); err != nil {
		return err
	}

	low := make([]byte, 2)
	if err := binary.Write(bytewriter.New(low), binary.LittleEndian, uint16(cluster)); err != nil {
		return err
	}
	_, err := stream.WriteAt(low, privOff+26)
	return err
}
