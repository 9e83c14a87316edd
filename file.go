package fatstream

import (
	"io"
	"math"
	"strings"

	"github.com/corvusfs/fatstream/ferr"
	"github.com/corvusfs/fatstream/internal/cursor"
	"github.com/corvusfs/fatstream/internal/dirent"
	"github.com/corvusfs/fatstream/internal/fat"
)

// FileMode is the bitmask of read/write/append permissions a File was
// opened with, derived from the fopen-style mode string.
type FileMode int

const (
	ModeRead FileMode = 1 << iota
	ModeWrite
	ModeAppend
)

// File is an open file handle: a cursor over the file's chain (or marked
// "not on a chain" for an empty file), the authoritative on-disk size, the
// oversize deferred-growth counter, the open mode, and the private offset
// of the owning directory entry.
type File struct {
	vol      *Volume
	cur      cursor.Cursor
	fileSize uint32
	oversize int64
	mode     FileMode
	privOff  int64
}

var _ io.ReadWriteSeeker = (*File)(nil)

func parseOpenMode(mode string) (FileMode, bool, bool, error) {
	switch mode {
	case "r":
		return ModeRead, false, false, nil
	case "r+":
		return ModeRead | ModeWrite, false, false, nil
	case "w":
		return ModeWrite, true, true, nil
	case "w+":
		return ModeRead | ModeWrite, true, true, nil
	case "wx":
		return ModeWrite, true, false, nil
	case "w+x":
		return ModeRead | ModeWrite, true, false, nil
	case "a":
		return ModeAppend, true, false, nil
	case "a+":
		return ModeRead | ModeAppend, true, false, nil
	default:
		return 0, false, false, ferr.New(ferr.Inval)
	}
}

// splitPath divides path into its parent directory and final component, the
// way the source's split_path does: a path ending in "/" yields an empty
// final component, which Open treats as "this names a directory, not a
// file".
func splitPath(path string) (dir, file string) {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "", path
	}
	return path[:idx+1], path[idx+1:]
}

// Open parses mode, locates path's parent directory, and scans it for the
// final path component. A directory hit is ferr.IsDir. A miss is
// ferr.NotExist regardless of whether mode requested creation — the source
// leaves directory-entry creation unimplemented and this preserves that
// gap. A hit on a regular file builds a File positioned at its first
// cluster (or marked invalid for a zero-size file), truncating to zero
// first if mode requested it.
func (v *Volume) Open(path, mode string) (*File, error) {
	v.lastErr = ferr.Success

	fm, _, trunc, err := parseOpenMode(mode)
	if err != nil {
		return nil, v.fail(err)
	}

	dirPart, filePart := splitPath(path)
	parent, err := v.OpenDir(dirPart)
	if err != nil {
		return nil, err
	}
	if filePart == "" {
		return nil, v.fail(ferr.New(ferr.IsDir))
	}

	entry, err := v.findInDir(&parent.cur, filePart)
	if err != nil {
		return nil, v.fail(err)
	}
	if entry == nil {
		return nil, v.fail(ferr.New(ferr.NotExist))
	}
	if entry.IsDir() {
		return nil, v.fail(ferr.New(ferr.IsDir))
	}

	f := &File{
		vol:      v,
		mode:     fm,
		privOff:  entry.PrivOff,
		fileSize: entry.Size,
		cur:      invalidCursor(v),
	}
	if entry.Size > 0 {
		f.cur = cursor.New(v.table, v.boot.DataStartOff, int64(v.boot.BytesPerCluster), entry.FirstCluster)
	}

	if trunc {
		if err := f.Truncate(0); err != nil {
			return nil, v.fail(err)
		}
	}

	return f, nil
}

func invalidCursor(v *Volume) cursor.Cursor {
	return cursor.Cursor{
		Table:           v.table,
		DataStartOff:    v.boot.DataStartOff,
		BytesPerCluster: int64(v.boot.BytesPerCluster),
		Cluster:         fat.Invalid,
		ClsInit:         fat.Invalid,
	}
}

// Read clamps the request to the remaining bytes before filesize and
// delegates to the block cursor. It never consumes oversize.
func (f *File) Read(buf []byte) (int, error) {
	f.vol.lastErr = ferr.Success
	if f.mode&ModeRead == 0 {
		return 0, f.vol.fail(ferr.New(ferr.WrOnly))
	}
	if len(buf) == 0 {
		return 0, nil
	}
	if uint64(len(buf)) > math.MaxUint32 {
		return 0, f.vol.fail(ferr.New(ferr.MaxSize))
	}

	remaining := int64(f.fileSize) - f.Tell()
	if remaining <= 0 {
		return 0, nil
	}
	want := int64(len(buf))
	if want > remaining {
		want = remaining
	}

	n, err := f.cur.Read(buf[:want])
	if err != nil {
		return n, f.vol.fail(err)
	}
	return n, nil
}

// Write commits any pending oversize growth (or allocates the file's first
// cluster if it's currently empty), then extends the chain as needed to
// hold buf, updating filesize and its directory entry if the write moved
// the position past the old end.
func (f *File) Write(buf []byte) (int, error) {
	f.vol.lastErr = ferr.Success
	if f.mode&(ModeWrite|ModeAppend) == 0 {
		return 0, f.vol.fail(ferr.New(ferr.RdOnly))
	}
	if len(buf) == 0 {
		return 0, nil
	}
	if uint64(len(buf)) > math.MaxUint32 {
		return 0, f.vol.fail(ferr.New(ferr.MaxSize))
	}
	if f.vol.readOnly {
		return 0, f.vol.fail(ferr.New(ferr.Access))
	}

	if f.mode&ModeAppend != 0 {
		if err := f.seekTo(int64(f.fileSize)); err != nil {
			return 0, f.vol.fail(err)
		}
	}

	if f.oversize > 0 {
		if err := f.Truncate(int64(f.fileSize) + f.oversize); err != nil {
			return 0, f.vol.fail(err)
		}
		if f.mode&ModeAppend == 0 {
			if err := f.seekTo(int64(f.fileSize)); err != nil {
				return 0, f.vol.fail(err)
			}
		}
	} else if f.fileSize == 0 {
		if err := f.Truncate(1); err != nil {
			return 0, f.vol.fail(err)
		}
	}

	n, err := f.cur.Write(buf, f.vol.alloc)
	if err != nil {
		return n, f.vol.fail(err)
	}

	if pos := f.Tell(); pos > int64(f.fileSize) {
		f.fileSize = uint32(pos)
		if err := dirent.UpdateSize(f.vol.stream, f.privOff, f.fileSize); err != nil {
			return n, f.vol.fail(err)
		}
	}

	return n, nil
}

// Tell returns the file's logical position. A handle whose cursor isn't on
// a chain — an empty file that has never had its oversize growth
// committed — reports 0 regardless of any pending oversize, matching
// fat_ftell exactly: the oversize field still holds the right value for
// Write to commit, it's just not reflected by Tell until the first cluster
// exists.
func (f *File) Tell() int64 {
	if !f.cur.OnChain() {
		return 0
	}
	blockStart := f.cur.EndOff - f.cur.BytesPerCluster
	return f.cur.Index*f.cur.BytesPerCluster + (f.cur.CurOff - blockStart) + f.oversize
}

// Seek resolves whence and delegates to seekTo. A negative resolved offset
// is rejected with ferr.Inval, matching fat_fseek.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	f.vol.lastErr = ferr.Success

	var resolved int64
	switch whence {
	case io.SeekStart:
		resolved = offset
	case io.SeekCurrent:
		resolved = f.Tell() + offset
	case io.SeekEnd:
		resolved = int64(f.fileSize) + offset
	default:
		return -1, f.vol.fail(ferr.New(ferr.Inval))
	}
	if resolved < 0 {
		return -1, f.vol.fail(ferr.New(ferr.Inval))
	}

	if err := f.seekTo(resolved); err != nil {
		return -1, f.vol.fail(err)
	}
	return resolved, nil
}

// seekTo repositions the cursor to absolute logical offset, the core of
// fat_fseek with whence already resolved. If the cursor is on a chain it
// reinitializes at the chain head, clears oversize, advances the whole
// blocks needed, and lands cur_off on the remainder; if offset runs past
// filesize the excess goes entirely into oversize instead of being walked.
// An empty file (not on a chain) skips all of that: offset becomes the
// whole of oversize.
func (f *File) seekTo(offset int64) error {
	if f.cur.OnChain() {
		bpc := f.cur.BytesPerCluster
		f.cur = cursor.New(f.vol.table, f.vol.boot.DataStartOff, bpc, f.cur.ClsInit)
		f.oversize = 0

		nblks := (offset+bpc-1)/bpc - 1
		if offset > int64(f.fileSize) {
			nblks = (int64(f.fileSize)+bpc-1)/bpc - 1
		}
		for i := int64(0); i < nblks; i++ {
			if err := f.cur.Advance(); err != nil {
				return err
			}
		}

		if offset <= int64(f.fileSize) {
			f.cur.CurOff += offset - f.Tell()
		} else {
			f.cur.CurOff += int64(f.fileSize) - f.Tell()
		}
	}

	f.oversize = offset - f.Tell()
	return nil
}

// Truncate resizes the file to length: growing zero-fills via the
// extending-write path (allocating the first cluster if the file was
// empty); shrinking releases every cluster beyond the cutoff and
// re-terminates the chain there. length == 0 additionally releases the
// first cluster and invalidates the cursor, mirroring fatfile_truncate.
func (f *File) Truncate(length int64) error {
	f.vol.lastErr = ferr.Success
	if f.vol.readOnly {
		return f.vol.fail(ferr.New(ferr.Access))
	}
	if length == int64(f.fileSize) {
		return nil
	}

	var err error
	if length > int64(f.fileSize) {
		err = f.expand(length)
	} else {
		err = f.shrink(length)
	}
	if err != nil {
		return f.vol.fail(err)
	}

	f.fileSize = uint32(length)
	if err := dirent.UpdateSize(f.vol.stream, f.privOff, f.fileSize); err != nil {
		return f.vol.fail(err)
	}
	return nil
}

// expand grows the file by zero-filling from its old end to length,
// allocating a first cluster first if it was empty. It moves the handle to
// the old end before the fill and leaves it there afterwards, with oversize
// cleared: the handle is not moved to the new end, and a position it held
// before the call (other than the old end) is not restored.
func (f *File) expand(length int64) error {
	expSize := length - int64(f.fileSize)

	if err := f.seekTo(int64(f.fileSize)); err != nil {
		return err
	}

	if f.fileSize == 0 {
		newCluster, err := f.vol.alloc.Allocate()
		if err != nil {
			return err
		}
		if err := f.vol.table.Link(newCluster, f.vol.table.EOF()); err != nil {
			return err
		}
		if err := dirent.UpdateFirstCluster(f.vol.stream, f.privOff, newCluster); err != nil {
			return err
		}
		f.cur = cursor.New(f.vol.table, f.vol.boot.DataStartOff, int64(f.vol.boot.BytesPerCluster), newCluster)
	}

	saved := f.cur
	zero := make([]byte, 2048)
	var writeErr error
	for expSize > 0 {
		chunk := int64(len(zero))
		if chunk > expSize {
			chunk = expSize
		}
		n, err := f.cur.Write(zero[:chunk], f.vol.alloc)
		expSize -= int64(n)
		if err != nil {
			writeErr = err
			break
		}
	}
	f.cur = saved
	return writeErr
}

// shrink releases every cluster past the one containing byte length, each
// exactly once, and re-terminates the chain at that retained cluster. The
// retained cluster is never released on the way, so the allocator's free
// count and first-free hint never point at a cluster that stays linked.
func (f *File) shrink(length int64) error {
	if err := f.seekTo(length); err != nil {
		return err
	}

	saved := f.cur
	lastValid := f.cur.Cluster
	cluster := f.cur.Cluster

	for {
		if err := f.cur.Advance(); err != nil {
			break
		}
		if cluster != lastValid {
			if err := f.vol.alloc.Free(cluster); err != nil {
				return err
			}
		}
		cluster = f.cur.Cluster
	}
	if cluster != lastValid {
		if err := f.vol.alloc.Free(cluster); err != nil {
			return err
		}
	}
	if err := f.vol.table.Link(lastValid, f.vol.table.EOF()); err != nil {
		return err
	}

	f.cur = saved
	if length == 0 {
		f.cur = invalidCursor(f.vol)
		if err := f.vol.alloc.Free(lastValid); err != nil {
			return err
		}
		if err := dirent.UpdateFirstCluster(f.vol.stream, f.privOff, fat.Invalid); err != nil {
			return err
		}
	}

	return nil
}

// Close releases the file handle. File holds no resource beyond Go values
// the garbage collector already reclaims; this exists for API parity with
// fclose.
func (f *File) Close() error {
	return nil
}

// Truncate opens path read-write and resizes it to length, for callers that
// don't already hold an open File.
func (v *Volume) Truncate(path string, length int64) error {
	v.lastErr = ferr.Success
	f, err := v.Open(path, "r+")
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Truncate(length)
}

// Mkdir, Rmdir, and Unlink are stubbed: the source never implements
// directory-entry creation or removal, and this preserves that gap rather
// than inventing 8.3/LFN synthesis.
func (v *Volume) Mkdir(path string) error {
	v.lastErr = ferr.NotImpl
	return ferr.New(ferr.NotImpl)
}

func (v *Volume) Rmdir(path string) error {
	v.lastErr = ferr.NotImpl
	return ferr.New(ferr.NotImpl)
}

func (v *Volume) Unlink(path string) error {
	v.lastErr = ferr.NotImpl
	return ferr.New(ferr.NotImpl)
}
