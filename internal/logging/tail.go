package logging

import (
	"bufio"
	"fmt"
	"os"
)

// TailLines returns the last limit lines of the file at path, oldest first.
// A missing file is reported with an error satisfying errors.Is(err, os.ErrNotExist).
func TailLines(path string, limit int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("log path %q is a directory", path)
	}
	if limit <= 0 {
		return []string{}, nil
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	// The ring grows with the file, so a large limit costs nothing on a short log.
	var ring []string
	idx := 0
	for scanner.Scan() {
		if len(ring) < limit {
			ring = append(ring, scanner.Text())
			continue
		}
		ring[idx] = scanner.Text()
		idx = (idx + 1) % limit
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}

	lines := make([]string, 0, len(ring))
	lines = append(lines, ring[idx:]...)
	return append(lines, ring[:idx]...), nil
}
