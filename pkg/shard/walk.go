package shard

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/afero"
)

var log = logging.Logger("shard")

// Leaf is a directory found at the node level of the shard tree.
type Leaf struct {
	// Name is the leaf directory name, which should be the node identifier.
	Name string
	// Dir is the path the leaf was found at.
	Dir string
	// Misplaced is set when Name is not a node identifier, or when the
	// identifier resolves to a different directory than Dir.
	Misplaced bool
}

// Walk enumerates the node directories of the shard tree rooted at baseDir.
// Exactly three levels of two-character directories are descended; every
// directory at the fourth level is yielded as a Leaf. Symbolic links to
// directories are followed at every level. Files and
// unexpectedly-named directories in the intermediate levels are skipped.
//
// An error reading baseDir itself is yielded and ends the walk. Errors reading
// deeper directories are logged and that subtree is skipped.
func Walk(fsys afero.Fs, baseDir string) iter.Seq2[Leaf, error] {
	return func(yield func(Leaf, error) bool) {
		top, err := afero.ReadDir(fsys, baseDir)
		if err != nil {
			yield(Leaf{}, fmt.Errorf("reading shard base directory %s: %w", baseDir, err))
			return
		}

		type level struct {
			dir     string
			entries []os.FileInfo
		}
		// Explicit stack of open levels; stack[i] holds the remaining entries of
		// the directory at depth i.
		stack := []level{{dir: baseDir, entries: top}}
		for len(stack) > 0 {
			cur := &stack[len(stack)-1]
			if len(cur.entries) == 0 {
				stack = stack[:len(stack)-1]
				continue
			}
			entry := cur.entries[0]
			cur.entries = cur.entries[1:]
			path := filepath.Join(cur.dir, entry.Name())
			depth := len(stack)

			isDir := entry.IsDir()
			if entry.Mode()&os.ModeSymlink != 0 {
				// Shard levels may link to directories on other volumes.
				target, err := fsys.Stat(path)
				if err != nil {
					log.Warnf("skipping unresolvable link %s: %s", path, err)
					continue
				}
				isDir = target.IsDir()
			}
			if !isDir {
				log.Debugf("skipping non-directory %s", path)
				continue
			}

			if depth == Depth {
				leaf := Leaf{Name: entry.Name(), Dir: path}
				if want, err := Resolve(leaf.Name, baseDir); err != nil || want != path {
					leaf.Misplaced = true
				}
				if !yield(leaf, nil) {
					return
				}
				continue
			}

			if len(entry.Name()) != 2 {
				log.Debugf("skipping unexpected directory %s", path)
				continue
			}
			children, err := afero.ReadDir(fsys, path)
			if err != nil {
				log.Warnf("reading shard directory %s: %s", path, err)
				continue
			}
			stack = append(stack, level{dir: path, entries: children})
		}
	}
}
