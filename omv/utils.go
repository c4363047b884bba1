package omv

import (
	"fmt"
	"path/filepath"

	humanize "github.com/dustin/go-humanize"
)

const (
	Kilo = 1 << 10
	Mega = 1 << 20
	Giga = 1 << 30
)

// ConvertToAbsolute returns path unchanged if it is absolute, otherwise joined
// onto baseDir.
func ConvertToAbsolute(path, baseDir string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	abs, err := filepath.Abs(filepath.Join(baseDir, path))
	if err != nil {
		return "", fmt.Errorf("cannot make %q absolute relative to %q: %w", path, baseDir, err)
	}
	return abs, nil
}

// ParseByteSize parses sizes like "2GiB", "512 MB" or "1073741824".
func ParseByteSize(s string) (int, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("bad byte size %q: %w", s, err)
	}
	return int(n), nil
}

// ByteString formats a byte count for humans, e.g., "2.1 GB".
func ByteString(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}
