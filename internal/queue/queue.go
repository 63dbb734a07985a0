package queue

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Read loads the pending target list from a queue file: UTF-8 text, one URL
// per line, blank lines ignored. A missing file or a file with no usable
// lines is a run-level error.
func Read(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read queue file: %w", err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read queue file: %w", err)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("queue file %s contains no URLs", path)
	}
	return urls, nil
}

// Write rewrites the queue file with the full remaining list, one URL per
// line, in order. It is called with the suffix after each completed item, so
// writing the same suffix twice is harmless.
func Write(path string, remaining []string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create queue dir: %w", err)
		}
	}
	var b strings.Builder
	for _, u := range remaining {
		b.WriteString(u)
		b.WriteString("\n")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write queue file: %w", err)
	}
	return nil
}
