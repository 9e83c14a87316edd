package fatstream_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusfs/fatstream"
	"github.com/corvusfs/fatstream/ferr"
)

func TestMount_ParsesLabelAndClearsError(t *testing.T) {
	img := newTestImage(t)
	setLabel(img.image.Bytes, "TESTVOL")
	img.layOutFixture()

	vol, err := fatstream.Mount(img.image.Stream, 0, fatstream.MountOptions{})
	require.NoError(t, err)
	defer vol.Close()

	assert.Equal(t, "TESTVOL", vol.Label())
	assert.Equal(t, ferr.Success, vol.Error())
}

func TestMount_RejectsNonFATFSData(t *testing.T) {
	img := newTestImage(t)
	img.layOutFixture()
	// Scribble over the BPB's bytes-per-sector field so Parse's invariant
	// check rejects it outright.
	img.image.Bytes[11] = 0xAB
	img.image.Bytes[12] = 0xCD

	_, err := fatstream.Mount(img.image.Stream, 0, fatstream.MountOptions{})
	assert.Error(t, err)
}

func TestVolume_ReadOnly_RejectsWrite(t *testing.T) {
	img := newTestImage(t)
	img.layOutFixture()

	vol, err := fatstream.Mount(img.image.Stream, 0, fatstream.MountOptions{ReadOnly: true})
	require.NoError(t, err)
	defer vol.Close()

	f, err := vol.Open("/notes.txt", "r+")
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Write([]byte("x"))
	assert.Error(t, err)

	err = vol.Truncate("/notes.txt", 1)
	assert.Error(t, err)
}

func TestVolume_MkdirRmdirUnlink_NotImplemented(t *testing.T) {
	img := newTestImage(t)
	img.layOutFixture()

	vol, err := fatstream.Mount(img.image.Stream, 0, fatstream.MountOptions{})
	require.NoError(t, err)
	defer vol.Close()

	assert.Error(t, vol.Mkdir("/NEWDIR"))
	assert.Error(t, vol.Rmdir("/SUBDIR"))
	assert.Error(t, vol.Unlink("/SHORT.TXT"))
}
