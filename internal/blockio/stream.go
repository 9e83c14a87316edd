// Package blockio wraps a backing byte stream (a regular file or block
// device) with the bounds checking every other package in fatstream relies
// on: all reads and writes are relative to a volume's base offset and are
// rejected outright if they would cross the end of the volume.
package blockio

import (
	"io"

	"github.com/corvusfs/fatstream/ferr"
)

// Stream adapts a backing io.ReadWriteSeeker — typically an *os.File opened
// on the caller's image, or bytesextra.NewReadWriteSeeker over an in-memory
// []byte for tests — into the bounds-checked, volume-relative read_at /
// write_at primitive described by the byte-stream adapter. It never buffers
// or caches; every call seeks and then transfers directly against the
// underlying stream.
type Stream struct {
	backing io.ReadWriteSeeker

	// BaseOffset is the absolute byte offset of the volume's start within
	// the backing stream.
	BaseOffset int64

	// VolumeSize is the total size of the volume in bytes.
	VolumeSize int64
}

// New wraps backing as a Stream for a volume of volumeSize bytes starting at
// baseOffset.
func New(backing io.ReadWriteSeeker, baseOffset, volumeSize int64) *Stream {
	return &Stream{backing: backing, BaseOffset: baseOffset, VolumeSize: volumeSize}
}

func (s *Stream) checkBounds(off, n int64) error {
	if off < 0 || n < 0 {
		return ferr.New(ferr.Inval)
	}
	if off+n > s.VolumeSize {
		return ferr.New(ferr.Inval)
	}
	return nil
}

// ReadAt reads up to len(buf) bytes starting at volume-relative offset off.
// It returns the short count actually transferred if the underlying stream
// fails partway through, alongside an IO error.
func (s *Stream) ReadAt(buf []byte, off int64) (int, error) {
	if err := s.checkBounds(off, int64(len(buf))); err != nil {
		return 0, err
	}
	if _, err := s.backing.Seek(s.BaseOffset+off, io.SeekStart); err != nil {
		return 0, ferr.Wrap(ferr.IO, err)
	}
	n, err := io.ReadFull(s.backing, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return n, ferr.Wrap(ferr.IO, err)
	}
	return n, nil
}

// WriteAt writes buf starting at volume-relative offset off.
func (s *Stream) WriteAt(buf []byte, off int64) (int, error) {
	if err := s.checkBounds(off, int64(len(buf))); err != nil {
		return 0, err
	}
	if _, err := s.backing.Seek(s.BaseOffset+off, io.SeekStart); err != nil {
		return 0, ferr.Wrap(ferr.IO, err)
	}
	n, err := s.backing.Write(buf)
	if err != nil {
		return n, ferr.Wrap(ferr.IO, err)
	}
	return n, nil
}
