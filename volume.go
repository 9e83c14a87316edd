// Package fatstream implements a read/write FAT12/FAT16/FAT32 filesystem
// library operating on a single backing byte stream starting at a
// caller-supplied absolute offset: mount a volume, walk directories, open
// files, read/seek/write, truncate, unmount.
package fatstream

import (
	"io"

	"github.com/corvusfs/fatstream/ferr"
	"github.com/corvusfs/fatstream/internal/blockio"
	"github.com/corvusfs/fatstream/internal/bpb"
	"github.com/corvusfs/fatstream/internal/cursor"
	"github.com/corvusfs/fatstream/internal/dirent"
	"github.com/corvusfs/fatstream/internal/fat"
)

// MountOptions configures Mount. It plays the same role disko's MountFlags
// bitmask plays for Driver.Mount, reduced to what this library actually
// enforces: non-destructive handles still work read-only, but Write/Truncate
// on a read-only volume return ferr.Access.
type MountOptions struct {
	ReadOnly bool
}

// Volume is a mounted FAT volume bound to one backing stream. It owns the
// FAT accessor, the free-cluster allocator, and the root directory cursor;
// Dir and File handles borrow these and must not outlive the Volume they
// came from.
type Volume struct {
	backing io.ReadWriteSeeker
	stream  *blockio.Stream
	table   *fat.Table
	alloc   *fat.Allocator
	boot    *bpb.BootSector

	root cursor.Cursor

	readOnly bool
	lastErr  ferr.Kind
}

// Mount parses the BPB at offset within backing, validates every invariant
// in the on-disk format, scans the active FAT for free clusters, and — for
// FAT32 — runs the cycle guard over the root directory chain before
// returning. FAT12/16 volumes have no root chain to check; their root
// directory is the fixed region the BPB parser located.
func Mount(backing io.ReadWriteSeeker, offset int64, opts MountOptions) (*Volume, error) {
	if _, err := backing.Seek(offset, io.SeekStart); err != nil {
		return nil, ferr.Wrap(ferr.IO, err)
	}
	boot, err := bpb.Parse(backing)
	if err != nil {
		return nil, err
	}

	stream := blockio.New(backing, offset, boot.VolumeSize)
	table := &fat.Table{
		Stream:        stream,
		Variant:       boot.Variant,
		ActiveFATOff:  boot.FATActiveOff,
		FirstFATOff:   boot.FATFirstOff,
		SizeBytes:     boot.FATSizeBytes,
		NumFATs:       boot.NumFATs,
		MaxClusterNum: boot.MaxClusterNum,
	}

	var root cursor.Cursor
	if boot.Variant == fat.Variant32 {
		if err := cursor.CheckCycle(table, boot.DataStartOff, int64(boot.BytesPerCluster), boot.RootCluster, boot.MaxClusterNum); err != nil {
			return nil, err
		}
		root = cursor.New(table, boot.DataStartOff, int64(boot.BytesPerCluster), boot.RootCluster)
	} else {
		root = cursor.NewFixedRegion(table, int64(boot.BytesPerCluster), boot.RootDirOff, boot.RootDirEnd)
	}

	alloc, err := fat.NewAllocator(table)
	if err != nil {
		return nil, err
	}

	return &Volume{
		backing:  backing,
		stream:   stream,
		table:    table,
		alloc:    alloc,
		boot:     boot,
		root:     root,
		readOnly: opts.ReadOnly,
	}, nil
}

// Close unmounts the volume: if the backing stream implements io.Closer it
// is closed, and the Volume's internal state is cleared so any further
// method call on it fails predictably instead of silently touching stale
// state.
func (v *Volume) Close() error {
	var err error
	if closer, ok := v.backing.(io.Closer); ok {
		err = closer.Close()
	}
	v.table = nil
	v.alloc = nil
	v.boot = nil
	v.backing = nil
	v.stream = nil
	if err != nil {
		return ferr.Wrap(ferr.IO, err)
	}
	return nil
}

// Label returns the volume's label, trailing spaces stripped.
func (v *Volume) Label() string {
	return v.boot.Label
}

// Error returns the kind of the most recently failed public operation, or
// ferr.Success if none has failed since the last call that cleared it.
// Volume.Open, Volume.OpenDir, Volume.Truncate, Dir.Read, File.Read,
// File.Write, File.Seek and File.Truncate clear this to Success on entry,
// matching fat_error's per-volume last-error slot; Label, Tell, Rewind and
// Close leave it unchanged. Prefer checking the error value a method
// returns directly — this accessor exists for API parity only.
func (v *Volume) Error() ferr.Kind {
	return v.lastErr
}

func (v *Volume) fail(err error) error {
	v.lastErr = ferr.KindOf(err)
	return err
}

// findInDir scans forward from a copy of c (the caller's cursor is never
// perturbed) for an entry named name, returning (nil, nil) if none is found
// before end-of-directory.
func (v *Volume) findInDir(c *cursor.Cursor, name string) (*dirent.Entry, error) {
	scan := *c
	for {
		entry, err := dirent.ReadEntry(&scan, v.boot.MaxClusterNum)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, nil
		}
		if entry.Name == name {
			return entry, nil
		}
	}
}
