package fat

import (
	"fmt"

	"github.com/corvusfs/fatstream/ferr"
	"github.com/corvusfs/fatstream/internal/blockio"
)

// Table is the tagged FAT accessor: a value that knows its own width and
// dispatches read/write through the matching 12/16/32-bit codec, instead of
// holding function pointers the way the source's fatfs_t does.
type Table struct {
	Stream *blockio.Stream

	Variant Variant

	// ActiveFATOff is the byte offset of the FAT copy that reads are served
	// from (equal to FirstFATOff unless mirroring is disabled and a
	// non-zero active index was designated).
	ActiveFATOff int64

	// FirstFATOff is the byte offset of FAT copy 0.
	FirstFATOff int64

	// SizeBytes is the size of one FAT copy in bytes.
	SizeBytes int64

	// NumFATs is the mirroring count (at most 15).
	NumFATs uint8

	// MaxClusterNum is the highest valid cluster number on this volume.
	MaxClusterNum ClusterID
}

func (t *Table) isValidCluster(c ClusterID) bool {
	return c >= 2 && c <= t.MaxClusterNum
}

// IsValidCluster reports whether c falls within this table's valid cluster
// range [2, MaxClusterNum].
func (t *Table) IsValidCluster(c ClusterID) bool {
	return t.isValidCluster(c)
}

// EOF returns the all-ones end-of-chain sentinel for this table's width.
func (t *Table) EOF() ClusterID {
	return t.Variant.eofSentinel()
}

// read dispatches a raw (unvalidated) FAT entry read to the width-specific
// codec.
func (t *Table) read(cluster ClusterID) (ClusterID, error) {
	switch t.Variant {
	case Variant12:
		return t.read12(cluster)
	case Variant16:
		return t.read16(cluster)
	default:
		return t.read32(cluster)
	}
}

// write dispatches a raw (unvalidated) FAT entry write, mirrored across
// every FAT copy. Per section 7, this one-write-per-copy writeback is not
// atomic: a Collector aggregates every mirror's failure rather than
// aborting at the first one, so callers can see the full extent of the
// divergence.
func (t *Table) write(cluster, value ClusterID) error {
	var collect ferr.Collector
	for i := uint8(0); i < t.NumFATs; i++ {
		fatOff := t.FirstFATOff + int64(i)*t.SizeBytes
		var err error
		switch t.Variant {
		case Variant12:
			err = t.write12At(fatOff, cluster, value)
		case Variant16:
			err = t.write16At(fatOff, cluster, value)
		default:
			err = t.write32At(fatOff, cluster, value)
		}
		collect.Add(fmt.Sprintf("fat copy %d", i), err)
	}
	return collect.ErrorOrNil()
}

// SafeRead validates cluster before dispatch and validates the resulting
// entry afterward. Any out-of-range result — including the EOF sentinel —
// comes back as Invalid, because chain traversal never wants to step
// through EOF; callers that need to tell "ended cleanly at EOF" apart from
// "corrupt" read the raw entry themselves (see Table.IsEOF).
func (t *Table) SafeRead(cluster ClusterID) (ClusterID, error) {
	if !t.isValidCluster(cluster) {
		return Invalid, ferr.New(ferr.Inval)
	}
	next, err := t.read(cluster)
	if err != nil {
		return Invalid, err
	}
	if !t.isValidCluster(next) {
		return Invalid, ferr.New(ferr.Inval)
	}
	return next, nil
}

// IsEOF reports whether cluster is this table's end-of-chain sentinel.
func (t *Table) IsEOF(cluster ClusterID) bool {
	return cluster == t.EOF()
}

// PeekNext reads the raw entry for cluster without the "collapse EOF to
// Invalid" behavior of SafeRead, so a caller can distinguish a clean chain
// end from an out-of-range entry. Cursor.Advance does not use it: it goes
// through SafeRead and fails the same way in both cases.
func (t *Table) PeekNext(cluster ClusterID) (ClusterID, error) {
	if !t.isValidCluster(cluster) {
		return Invalid, ferr.New(ferr.Inval)
	}
	return t.read(cluster)
}

// SafeWrite validates cluster, then writes value into it across every FAT
// mirror.
func (t *Table) SafeWrite(cluster, value ClusterID) error {
	if !t.isValidCluster(cluster) {
		return ferr.New(ferr.Inval)
	}
	return t.write(cluster, value)
}

// WriteReserved writes value into cluster's entry without the normal
// cluster-range validation, mirrored across every FAT copy. It exists for
// formatting the two reserved entries (0 and 1) that every real FAT volume
// carries — a media descriptor echo and an end-of-chain marker — which sit
// outside the [2, MaxClusterNum] range SafeWrite enforces.
func (t *Table) WriteReserved(cluster, value ClusterID) error {
	return t.write(cluster, value)
}

// Release writes a zero entry, marking cluster free.
func (t *Table) Release(cluster ClusterID) error {
	return t.SafeWrite(cluster, 0)
}

// Link writes clus2link into cluster's entry, extending a chain. clus2link
// must either be the EOF sentinel or a currently valid cluster number — the
// accessor refuses to link in an arbitrary value.
func (t *Table) Link(cluster, clus2link ClusterID) error {
	if clus2link != t.EOF() && !t.isValidCluster(clus2link) {
		return ferr.New(ferr.Inval)
	}
	return t.SafeWrite(cluster, clus2link)
}
