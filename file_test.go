package fatstream_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile_Read(t *testing.T) {
	vol := mustMount(t)

	f, err := vol.Open("/notes.txt", "r")
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 16)
	n, err := f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	n, err = f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "a second read at EOF returns nothing, no error")
}

func TestFile_Read_RejectsWriteOnlyHandle(t *testing.T) {
	vol := mustMount(t)

	f, err := vol.Open("/notes.txt", "w")
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Read(make([]byte, 4))
	assert.Error(t, err)
}

func TestFile_Open_MissingPathIsNotExist(t *testing.T) {
	vol := mustMount(t)

	_, err := vol.Open("/GHOST.TXT", "r")
	assert.Error(t, err)
}

func TestFile_Open_DirectoryIsIsDir(t *testing.T) {
	vol := mustMount(t)

	_, err := vol.Open("/SUBDIR", "r")
	assert.Error(t, err)
}

func TestFile_Write_ExtendsExistingFile(t *testing.T) {
	vol := mustMount(t)

	f, err := vol.Open("/notes.txt", "r+")
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	n, err := f.Write([]byte(", world"))
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	buf := make([]byte, 32)
	n, err = f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello, world", string(buf[:n]))
}

func TestFile_Write_ZeroFillsWhenSeekedPastEnd(t *testing.T) {
	vol := mustMount(t)

	f, err := vol.Open("/notes.txt", "r+")
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Seek(10, io.SeekStart)
	require.NoError(t, err)
	n, err := f.Write([]byte("X"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	buf := make([]byte, 32)
	n, err = f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello\x00\x00\x00\x00\x00X", string(buf[:n]))
}

func TestFile_Write_GrowsFromEmpty(t *testing.T) {
	vol := mustMount(t)

	f, err := vol.Open("/SUBDIR/INNER.TXT", "r+")
	require.NoError(t, err)
	defer f.Close()

	// INNER.TXT already holds "hi"; truncate it to empty first so this
	// exercises the empty-file first-cluster-allocation path in Write.
	require.NoError(t, f.Truncate(0))

	n, err := f.Write([]byte("new content"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	buf := make([]byte, 32)
	n, err = f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "new content", string(buf[:n]))
}

func TestFile_Truncate_Shrinks(t *testing.T) {
	vol := mustMount(t)

	f, err := vol.Open("/notes.txt", "r+")
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.Truncate(2))

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	buf := make([]byte, 32)
	n, err := f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "he", string(buf[:n]))
}

func TestFile_Truncate_ToZeroReleasesFirstCluster(t *testing.T) {
	vol := mustMount(t)

	f, err := vol.Open("/notes.txt", "r+")
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.Truncate(0))

	n, err := f.Read(make([]byte, 4))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestVolume_Truncate_ByPath(t *testing.T) {
	vol := mustMount(t)

	require.NoError(t, vol.Truncate("/SHORT.TXT", 1))

	f, err := vol.Open("/SHORT.TXT", "r")
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 8)
	n, err := f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "a", string(buf[:n]))
}
