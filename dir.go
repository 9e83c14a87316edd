package fatstream

import (
	"strings"

	"github.com/corvusfs/fatstream/ferr"
	"github.com/corvusfs/fatstream/internal/cursor"
	"github.com/corvusfs/fatstream/internal/dirent"
)

// DirEntry is one decoded directory record: name, attribute bits, size, and
// first cluster.
type DirEntry = dirent.Entry

// Dir is an open directory handle: a cursor over the directory's chain (or,
// for a FAT12/16 root, the fixed region), plus a serial position counter
// telldir/seekdir/rewinddir operate on.
type Dir struct {
	vol   *Volume
	start cursor.Cursor
	cur   cursor.Cursor
	pos   int64
}

// OpenDir walks path's `/`-separated components starting from the root: a
// missing component returns ferr.NotExist, a component that resolves to a
// file rather than a directory returns ferr.NotDir, and descending into
// each subdirectory re-runs the cycle guard over its first cluster before
// continuing — exactly as a directory lookup run from a file open also
// does, since both walk the same directory chain.
func (v *Volume) OpenDir(path string) (*Dir, error) {
	v.lastErr = ferr.Success

	cur := v.root
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" {
		return &Dir{vol: v, start: cur, cur: cur}, nil
	}

	for _, component := range strings.Split(trimmed, "/") {
		if component == "" {
			continue
		}

		entry, err := v.findInDir(&cur, component)
		if err != nil {
			return nil, v.fail(err)
		}
		if entry == nil {
			return nil, v.fail(ferr.New(ferr.NotExist))
		}
		if !entry.IsDir() {
			return nil, v.fail(ferr.New(ferr.NotDir))
		}

		if err := cursor.CheckCycle(v.table, v.boot.DataStartOff, int64(v.boot.BytesPerCluster), entry.FirstCluster, v.boot.MaxClusterNum); err != nil {
			return nil, v.fail(err)
		}
		cur = cursor.New(v.table, v.boot.DataStartOff, int64(v.boot.BytesPerCluster), entry.FirstCluster)
	}

	return &Dir{vol: v, start: cur, cur: cur}, nil
}

// Read returns the next non-deleted, non-volume-ID entry in on-disk order,
// or (nil, nil) at the end of the directory.
func (d *Dir) Read() (*DirEntry, error) {
	d.vol.lastErr = ferr.Success

	entry, err := dirent.ReadEntry(&d.cur, d.vol.boot.MaxClusterNum)
	if err != nil {
		return nil, d.vol.fail(err)
	}
	if entry != nil {
		d.pos++
	}
	return entry, nil
}

// Tell returns the number of successful Read calls since the directory was
// opened or last rewound.
func (d *Dir) Tell() int64 {
	return d.pos
}

// Rewind resets the directory to its first entry.
func (d *Dir) Rewind() {
	d.cur = d.start
	d.pos = 0
}

// Seek repositions the directory to its n-th entry by rewinding and
// replaying n reads, matching seekdir's "rewind then advance" contract
// rather than attempting a direct positional jump into the chain. A
// negative n is rejected; an n past the last entry leaves the directory
// positioned at EOF with no error, since fat_readdir itself never sets an
// error once it runs past the last entry.
func (d *Dir) Seek(n int64) error {
	if n < 0 {
		return d.vol.fail(ferr.New(ferr.Inval))
	}
	d.Rewind()
	for i := int64(0); i < n; i++ {
		entry, err := d.Read()
		if err != nil {
			return err
		}
		if entry == nil {
			break
		}
	}
	return nil
}

// Close releases the directory handle. Dir holds no resource beyond Go
// values the garbage collector already reclaims; this exists for API parity
// with closedir.
func (d *Dir) Close() error {
	return nil
}
