package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/corvusfs/fatstream"
)

func main() {
	app := cli.App{
		Usage: "Inspect and edit FAT12/FAT16/FAT32 volume images",
		Commands: []*cli.Command{
			{
				Name:      "label",
				Usage:     "Print a volume's label",
				Action:    labelCmd,
				ArgsUsage: "IMAGE",
			},
			{
				Name:      "ls",
				Usage:     "List a directory's entries",
				Action:    lsCmd,
				ArgsUsage: "IMAGE [PATH]",
			},
			{
				Name:      "cat",
				Usage:     "Print a file's contents to stdout",
				Action:    catCmd,
				ArgsUsage: "IMAGE PATH",
			},
			{
				Name:      "truncate",
				Usage:     "Resize a file",
				Action:    truncateCmd,
				ArgsUsage: "IMAGE PATH LENGTH",
			},
			{
				Name:      "write",
				Usage:     "Write DATA at OFFSET in a file, extending it if necessary",
				Action:    writeCmd,
				ArgsUsage: "IMAGE PATH OFFSET DATA",
			},
			{
				Name:      "seektest",
				Usage:     "Seek past end-of-file, write one byte, and report the resulting size",
				Action:    seekTestCmd,
				ArgsUsage: "IMAGE PATH OFFSET",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func mountReadOnly(imagePath string) (*fatstream.Volume, *os.File, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, nil, err
	}
	vol, err := fatstream.Mount(f, 0, fatstream.MountOptions{ReadOnly: true})
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return vol, f, nil
}

func mountReadWrite(imagePath string) (*fatstream.Volume, *os.File, error) {
	f, err := os.OpenFile(imagePath, os.O_RDWR, 0)
	if err != nil {
		return nil, nil, err
	}
	vol, err := fatstream.Mount(f, 0, fatstream.MountOptions{})
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return vol, f, nil
}

func labelCmd(c *cli.Context) error {
	if c.Args().Len() < 1 {
		return cli.Exit("usage: label IMAGE", 1)
	}
	vol, f, err := mountReadOnly(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer f.Close()
	defer vol.Close()

	fmt.Println(vol.Label())
	return nil
}

func lsCmd(c *cli.Context) error {
	if c.Args().Len() < 1 {
		return cli.Exit("usage: ls IMAGE [PATH]", 1)
	}
	path := "/"
	if c.Args().Len() >= 2 {
		path = c.Args().Get(1)
	}

	vol, f, err := mountReadOnly(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer f.Close()
	defer vol.Close()

	dir, err := vol.OpenDir(path)
	if err != nil {
		return err
	}
	defer dir.Close()

	for {
		entry, err := dir.Read()
		if err != nil {
			return err
		}
		if entry == nil {
			break
		}
		kind := "f"
		if entry.IsDir() {
			kind = "d"
		}
		fmt.Printf("%s %8d %s\n", kind, entry.Size, entry.Name)
	}
	return nil
}

func catCmd(c *cli.Context) error {
	if c.Args().Len() < 2 {
		return cli.Exit("usage: cat IMAGE PATH", 1)
	}

	vol, f, err := mountReadOnly(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer f.Close()
	defer vol.Close()

	file, err := vol.Open(c.Args().Get(1), "r")
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(os.Stdout, readerFunc(file.Read))
	return err
}

// readerFunc adapts a Read method value to io.Reader.
type readerFunc func([]byte) (int, error)

func (r readerFunc) Read(buf []byte) (int, error) {
	n, err := r(buf)
	if n == 0 && err == nil {
		return 0, io.EOF
	}
	return n, err
}

func truncateCmd(c *cli.Context) error {
	if c.Args().Len() < 3 {
		return cli.Exit("usage: truncate IMAGE PATH LENGTH", 1)
	}
	length, err := strconv.ParseInt(c.Args().Get(2), 10, 64)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid length: %s", err), 1)
	}

	vol, f, err := mountReadWrite(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer f.Close()
	defer vol.Close()

	return vol.Truncate(c.Args().Get(1), length)
}

func writeCmd(c *cli.Context) error {
	if c.Args().Len() < 4 {
		return cli.Exit("usage: write IMAGE PATH OFFSET DATA", 1)
	}
	offset, err := strconv.ParseInt(c.Args().Get(2), 10, 64)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid offset: %s", err), 1)
	}
	data := []byte(c.Args().Get(3))

	vol, f, err := mountReadWrite(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer f.Close()
	defer vol.Close()

	file, err := vol.Open(c.Args().Get(1), "r+")
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	_, err = file.Write(data)
	return err
}

// seekTestCmd exercises the oversize mechanism directly: seeking past the
// current end of file doesn't grow it, and only a subsequent write commits
// the pending growth, zero-filling the gap. The tell printed after the seek
// includes the pending oversize, except on an empty file, which is not on a
// chain yet and reports 0 (fat_ftell's "not on a chain" case).
func seekTestCmd(c *cli.Context) error {
	if c.Args().Len() < 3 {
		return cli.Exit("usage: seektest IMAGE PATH OFFSET", 1)
	}
	offset, err := strconv.ParseInt(c.Args().Get(2), 10, 64)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid offset: %s", err), 1)
	}

	vol, f, err := mountReadWrite(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer f.Close()
	defer vol.Close()

	file, err := vol.Open(c.Args().Get(1), "r+")
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	fmt.Printf("after seek: tell=%d\n", file.Tell())

	if _, err := file.Write([]byte{'X'}); err != nil {
		return err
	}
	fmt.Printf("after write: tell=%d\n", file.Tell())
	return nil
}
