package target

import (
	"errors"
	"strings"
)

// ErrEmptyURL is returned for URLs that are empty after trimming.
var ErrEmptyURL = errors.New("target URL is empty")

// Normalize ensures a target URL carries a scheme. Company pages only
// support HTTPS, so that is the default when the caller omits it. The result
// is stable: normalizing twice yields the same string.
func Normalize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrEmptyURL
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return trimmed, nil
	}
	return "https://" + strings.TrimLeft(trimmed, "/"), nil
}

// MergeUnique merges URL lists keeping the first occurrence order and
// dropping blank entries.
func MergeUnique(sequences ...[]string) []string {
	seen := make(map[string]struct{})
	var ordered []string
	for _, seq := range sequences {
		for _, raw := range seq {
			url := strings.TrimSpace(raw)
			if url == "" {
				continue
			}
			if _, ok := seen[url]; ok {
				continue
			}
			ordered = append(ordered, url)
			seen[url] = struct{}{}
		}
	}
	return ordered
}
