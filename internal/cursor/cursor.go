// Package cursor implements the block cursor: the shared traversal
// primitive for walking a cluster chain (or, on FAT12/16, the fixed root
// directory region) one block at a time. Cursors are plain values — copying
// one and stepping the copy backward is how the directory decoder peeks
// backward without disturbing the caller's position.
package cursor

import (
	"github.com/corvusfs/fatstream/ferr"
	"github.com/corvusfs/fatstream/internal/fat"
)

// Cursor is the Go analogue of fatblock_t: a position within either a
// cluster chain or a volume's fixed FAT12/16 root directory region.
type Cursor struct {
	Table           *fat.Table
	DataStartOff    int64
	BytesPerCluster int64

	// CurOff/EndOff bound the current block: [CurOff, EndOff).
	CurOff int64
	EndOff int64

	// Cluster is the cluster backing the current block, or fat.Invalid if
	// this cursor addresses the fixed FAT12/16 root region instead of a
	// chain.
	Cluster fat.ClusterID

	// ClsInit is the first cluster of the chain this cursor was built from,
	// used to re-walk from the start when decrementing across a block
	// boundary. It is fat.Invalid for the fixed root region.
	ClsInit fat.ClusterID

	// Index is the zero-based position of the current block along the
	// chain: Advance increments it, and a Dec that crosses into the
	// previous block decrements it.
	Index int64

	// RegionStart is the start offset of the fixed root directory region;
	// only meaningful when Cluster is fat.Invalid and Index is 0.
	RegionStart int64
}

func clusterOffset(dataStartOff, bytesPerCluster int64, cluster fat.ClusterID) int64 {
	return dataStartOff + (int64(cluster)-2)*bytesPerCluster
}

// New builds a cursor positioned at the start of firstCluster's chain.
func New(table *fat.Table, dataStartOff, bytesPerCluster int64, firstCluster fat.ClusterID) Cursor {
	curOff := clusterOffset(dataStartOff, bytesPerCluster, firstCluster)
	return Cursor{
		Table:           table,
		DataStartOff:    dataStartOff,
		BytesPerCluster: bytesPerCluster,
		CurOff:          curOff,
		EndOff:          curOff + bytesPerCluster,
		Cluster:         firstCluster,
		ClsInit:         firstCluster,
	}
}

// NewFixedRegion builds a cursor over the FAT12/16 root directory's fixed
// byte range [start, end), which is not part of any cluster chain.
func NewFixedRegion(table *fat.Table, bytesPerCluster, start, end int64) Cursor {
	return Cursor{
		Table:           table,
		BytesPerCluster: bytesPerCluster,
		CurOff:          start,
		EndOff:          end,
		Cluster:         fat.Invalid,
		ClsInit:         fat.Invalid,
		RegionStart:     start,
	}
}

// OnChain reports whether this cursor walks a cluster chain, as opposed to
// the fixed FAT12/16 root region.
func (c *Cursor) OnChain() bool {
	return c.Cluster != fat.Invalid
}

func (c *Cursor) blockStart() int64 {
	if !c.OnChain() && c.Index == 0 {
		return c.RegionStart
	}
	return c.EndOff - c.BytesPerCluster
}

// Advance moves the cursor to the next cluster in its chain (goto_next).
// It fails uniformly — whether the chain legitimately ended at EOF or the
// FAT entry is corrupt — since a caller walking forward normally can't use
// either outcome anyway.
func (c *Cursor) Advance() error {
	next, err := c.Table.SafeRead(c.Cluster)
	if err != nil {
		return err
	}
	c.Cluster = next
	c.CurOff = clusterOffset(c.DataStartOff, c.BytesPerCluster, next)
	c.EndOff = c.CurOff + c.BytesPerCluster
	c.Index++
	return nil
}

// AdvanceOrGrow advances the cursor, allocating and linking a fresh cluster
// onto the end of the chain if it was already at EOF. The three-step
// writeback (allocate, link new cluster as EOF, link previous tail to it)
// is not atomic; section 7 covers the consequences of a partial failure.
func (c *Cursor) AdvanceOrGrow(alloc *fat.Allocator) error {
	current := c.Cluster
	if err := c.Advance(); err == nil {
		return nil
	}
	c.Cluster = current

	newCluster, err := alloc.Allocate()
	if err != nil {
		return err
	}
	if err := c.Table.Link(newCluster, c.Table.EOF()); err != nil {
		return err
	}
	if err := c.Table.Link(c.Cluster, newCluster); err != nil {
		return err
	}
	return c.Advance()
}

// Dec steps the cursor backward by d bytes, at most one block's worth. If
// that crosses into the previous block, it re-walks the chain from ClsInit
// to find the predecessor cluster. This is how the directory decoder
// re-reads records preceding an already-advanced-past primary entry.
func (c *Cursor) Dec(d int64) error {
	if d > c.BytesPerCluster {
		return ferr.New(ferr.Inval)
	}
	if c.OnChain() && !c.Table.IsValidCluster(c.ClsInit) {
		return ferr.New(ferr.Inval)
	}

	start := c.blockStart()
	if c.CurOff-d < start {
		if c.Index == 0 {
			return ferr.New(ferr.Inval)
		}

		clsnum := c.ClsInit
		for i := int64(0); i < c.Index-1; i++ {
			next, err := c.Table.SafeRead(clsnum)
			if err != nil {
				return err
			}
			clsnum = next
		}

		d += start - c.CurOff
		c.Index--
		c.Cluster = clsnum
		c.EndOff = clusterOffset(c.DataStartOff, c.BytesPerCluster, clsnum) + c.BytesPerCluster
		c.CurOff = c.EndOff
	}

	c.CurOff -= d
	return nil
}

// Read transfers up to len(buf) bytes starting at the cursor's current
// position, advancing across block boundaries as needed. It stops short of
// len(buf) — without error — if the chain ends before the buffer is full;
// only a genuine stream I/O failure is reported as an error.
func (c *Cursor) Read(buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		avail := c.EndOff - c.CurOff
		want := int64(len(buf) - total)
		if avail < want {
			want = avail
		}

		n, err := c.Table.Stream.ReadAt(buf[total:int64(total)+want], c.CurOff)
		total += n
		if err != nil {
			return total, err
		}
		c.CurOff += int64(n)

		if c.CurOff == c.EndOff {
			if err := c.Advance(); err != nil {
				break
			}
		}
		if int64(n) < want {
			break
		}
	}
	return total, nil
}

// Write transfers buf into the chain starting at the cursor's current
// position, extending the chain with freshly allocated clusters as it runs
// off the end of the current one.
func (c *Cursor) Write(buf []byte, alloc *fat.Allocator) (int, error) {
	total := 0
	for total < len(buf) {
		if c.CurOff == c.EndOff {
			if err := c.AdvanceOrGrow(alloc); err != nil {
				break
			}
		}

		avail := c.EndOff - c.CurOff
		want := int64(len(buf) - total)
		if avail < want {
			want = avail
		}

		n, err := c.Table.Stream.WriteAt(buf[total:int64(total)+want], c.CurOff)
		total += n
		if err != nil {
			return total, err
		}
		c.CurOff += int64(n)
	}
	return total, nil
}
