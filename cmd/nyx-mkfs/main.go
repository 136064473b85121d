// Command nyx-mkfs builds a disk image by replicating a host skeleton
// directory into an ext4fs-staged filesystem, the way biscuit's mkfs
// replicated a skeleton into a fresh ufs image before boot.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nyx-os/nyx/fs/ext4fs"
	"github.com/nyx-os/nyx/kerr"
	"github.com/nyx-os/nyx/vfs"
)

const (
	defaultBlockSize = 4096
	defaultBlocks    = 65536 // 256 MiB image by default
)

var (
	flagBlockSize int
	flagBlocks    int64
)

var rootCmd = &cobra.Command{
	Use:   "nyx-mkfs <image> <skeldir>",
	Short: "build a nyx disk image from a host skeleton directory",
	Args:  cobra.ExactArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(args[0], args[1])
	},
}

func init() {
	rootCmd.Flags().IntVar(&flagBlockSize, "block-size", defaultBlockSize, "block size in bytes")
	rootCmd.Flags().Int64Var(&flagBlocks, "blocks", defaultBlocks, "number of blocks in the image")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(image, skeldir string) error {
	dev, err := createFileDevice(image, flagBlocks, flagBlockSize)
	if err != nil {
		return fmt.Errorf("nyx-mkfs: %w", err)
	}
	defer dev.Close()

	fs := ext4fs.New(dev)
	root := fs.RootInode()

	if err := addFiles(root, skeldir); err != nil {
		return fmt.Errorf("nyx-mkfs: %w", err)
	}

	if serr := fs.Sync(); serr != kerr.ENone {
		return fmt.Errorf("nyx-mkfs: sync image: %v", serr)
	}

	fmt.Printf("nyx-mkfs: wrote %s (%d blocks x %d bytes) from %s\n", image, flagBlocks, flagBlockSize, skeldir)
	return nil
}

// addFiles walks skeldir on the host and replicates its contents into
// root, mirroring biscuit mkfs's addfiles/copydata split: directories
// are created first, then each regular file's bytes are streamed in.
func addFiles(root vfs.Inode, skeldir string) error {
	return filepath.WalkDir(skeldir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("access %q: %w", path, walkErr)
		}

		rel := strings.TrimPrefix(strings.TrimPrefix(path, skeldir), string(filepath.Separator))
		if rel == "" {
			return nil
		}

		if d.IsDir() {
			if err := mkdirAll(root, rel); err != kerr.ENone {
				return fmt.Errorf("mkdir %q: %v", rel, err)
			}
			return nil
		}

		if err := copyData(root, path, rel); err != nil {
			return fmt.Errorf("copy %q: %w", rel, err)
		}
		return nil
	})
}

// copyData streams src's bytes into a freshly created file at dst
// inside root, buffering one block at a time the way biscuit's
// copydata appended one fs.BSIZE chunk per read.
func copyData(root vfs.Inode, src, dst string) error {
	parent, name, err := resolveParent(root, dst)
	if err != kerr.ENone {
		return fmt.Errorf("resolve parent: %v", err)
	}

	inode, err := parent.Create(name, vfs.ModeUserRead|vfs.ModeUserWrite)
	if err != kerr.ENone {
		return fmt.Errorf("create: %v", err)
	}

	srcFile, oserr := os.Open(src)
	if oserr != nil {
		return oserr
	}
	defer srcFile.Close()

	buf := make([]byte, flagBlockSize)
	var offset int64
	for {
		n, readErr := srcFile.Read(buf)
		if n > 0 {
			if _, werr := inode.WriteAt(offset, buf[:n]); werr != kerr.ENone {
				return fmt.Errorf("write: %v", werr)
			}
			offset += int64(n)
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

// mkdirAll creates every path component of rel under root that does
// not already exist.
func mkdirAll(root vfs.Inode, rel string) kerr.Errno {
	cur := root
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == "" {
			continue
		}
		next, lerr := cur.Lookup(part)
		if lerr == kerr.ENone {
			cur = next
			continue
		}
		created, cerr := cur.Mkdir(part, vfs.ModeUserRead|vfs.ModeUserWrite|vfs.ModeUserExec)
		if cerr != kerr.ENone {
			return cerr
		}
		cur = created
	}
	return kerr.ENone
}

// resolveParent walks every component of rel but the last, creating
// intermediate directories as needed, and returns the final directory
// inode plus the leaf name.
func resolveParent(root vfs.Inode, rel string) (vfs.Inode, string, kerr.Errno) {
	parts := strings.Split(rel, string(filepath.Separator))
	cur := root
	for _, part := range parts[:len(parts)-1] {
		if part == "" {
			continue
		}
		next, lerr := cur.Lookup(part)
		if lerr == kerr.ENone {
			cur = next
			continue
		}
		created, cerr := cur.Mkdir(part, vfs.ModeUserRead|vfs.ModeUserWrite|vfs.ModeUserExec)
		if cerr != kerr.ENone {
			return nil, "", cerr
		}
		cur = created
	}
	return cur, parts[len(parts)-1], kerr.ENone
}
