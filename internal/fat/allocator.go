package fat

import "github.com/corvusfs/fatstream/ferr"

// chunkSize is the scan buffer size used by the free-cluster sweep, the same
// 516-byte constant the source uses. It's evenly divisible by 2 and 4 and,
// at 516 bytes, holds a whole number of 12-bit entries too (exactly 344 of
// them, 516/1.5), so no entry straddles two chunks.
const chunkSize = 516

// Allocator tracks the first known free cluster and a running free count for
// one FAT table, refreshed by an initial full scan and kept approximately in
// sync by Allocate. It never caches the FAT itself — only these two scalars.
type Allocator struct {
	table *Table

	firstFree    ClusterID
	hasFirstFree bool
	numFree      uint
}

// NewAllocator scans the entirety of table's active FAT in chunkSize chunks,
// counting free (zero) entries and recording the lowest free cluster number
// found.
func NewAllocator(table *Table) (*Allocator, error) {
	a := &Allocator{table: table}
	if err := a.scan(); err != nil {
		return nil, err
	}
	return a, nil
}

func entriesPerChunk(v Variant) int {
	switch v {
	case Variant12:
		return (chunkSize * 2) / 3
	case Variant16:
		return chunkSize / 2
	default:
		return chunkSize / 4
	}
}

func decodeChunkEntry(v Variant, data []byte, index int) (ClusterID, bool) {
	switch v {
	case Variant12:
		return readBuf12(data, index)
	case Variant16:
		return readBuf16(data, index)
	default:
		return readBuf32(data, index)
	}
}

func (a *Allocator) scan() error {
	a.hasFirstFree = false
	a.numFree = 0

	t := a.table
	perChunk := entriesPerChunk(t.Variant)
	buf := make([]byte, chunkSize)

	remaining := int64(t.MaxClusterNum) + 1 // clusters 0..max, matching the source's countdown
	chunkCount := (t.SizeBytes + chunkSize - 1) / chunkSize

	clusterIndex := 0
	for i := int64(0); i < chunkCount && remaining > 0; i++ {
		off := t.ActiveFATOff + i*chunkSize
		n, err := t.Stream.ReadAt(buf, off)
		if err != nil {
			return err
		}
		chunkData := buf[:n]

		for j := 0; j < perChunk && remaining > 0; j, remaining = j+1, remaining-1 {
			value, ok := decodeChunkEntry(t.Variant, chunkData, j)
			if !ok {
				break
			}
			if value != 0 {
				clusterIndex++
				continue
			}
			if !a.hasFirstFree {
				a.firstFree = ClusterID(clusterIndex)
				a.hasFirstFree = true
			}
			a.numFree++
			clusterIndex++
		}
	}
	return nil
}

// NumFree returns the allocator's current free-cluster count.
func (a *Allocator) NumFree() uint {
	return a.numFree
}

// Allocate returns a free cluster without linking it into any chain — the
// caller must immediately write either the EOF sentinel or another cluster
// number into the returned cluster's entry.
func (a *Allocator) Allocate() (ClusterID, error) {
	if a.numFree == 0 || !a.hasFirstFree {
		return Invalid, ferr.New(ferr.FullDisk)
	}

	next := a.firstFree
	a.numFree--
	a.hasFirstFree = false

	for candidate := ClusterID(uint32(next) + 1); candidate <= a.table.MaxClusterNum; candidate++ {
		value, err := a.table.read(candidate)
		if err != nil {
			return Invalid, err
		}
		if value == 0 {
			a.firstFree = candidate
			a.hasFirstFree = true
			break
		}
	}

	if !a.hasFirstFree {
		if err := a.scan(); err != nil {
			return Invalid, err
		}
	}

	return next, nil
}

// Free writes a zero entry for cluster and makes it available for the next
// Allocate call, updating the free-count and lowest-free hints.
func (a *Allocator) Free(cluster ClusterID) error {
	if err := a.table.Release(cluster); err != nil {
		return err
	}
	a.numFree++
	if !a.hasFirstFree || cluster < a.firstFree {
		a.firstFree = cluster
		a.hasFirstFree = true
	}
	return nil
}
