// Package checksum computes content digests for dataset files.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sort"

	"github.com/rotisserie/eris"
)

const chunkSize = 1 << 20 // 1 MiB

// Sum streams every file into a single sha256 and returns the hex digest.
// Paths are processed in lexicographic order so the digest is independent of
// filesystem enumeration order. Any unreadable file fails the whole digest;
// no partial checksum is produced.
func Sum(paths ...string) (string, error) {
	if len(paths) == 0 {
		return "", eris.New("checksum: no files given")
	}

	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	h := sha256.New()
	buf := make([]byte, chunkSize)
	for _, path := range sorted {
		f, err := os.Open(path)
		if err != nil {
			return "", eris.Wrapf(err, "checksum: open %s", path)
		}
		if _, err := io.CopyBuffer(h, f, buf); err != nil {
			_ = f.Close()
			return "", eris.Wrapf(err, "checksum: read %s", path)
		}
		if err := f.Close(); err != nil {
			return "", eris.Wrapf(err, "checksum: close %s", path)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumFile computes the digest of a single file.
func SumFile(path string) (string, error) {
	return Sum(path)
}
