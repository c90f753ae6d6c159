package batch

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadList reads one software name per line from r. Blank lines and lines
// whose first non-whitespace character is '#' are skipped (spec.md §4.11).
// Leading/trailing whitespace on each name is trimmed.
func ReadList(r io.Reader) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("batch: reading software list: %w", err)
	}
	return names, nil
}

// ReadListFile opens path and reads its software list via ReadList.
func ReadListFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("batch: opening software list %s: %w", path, err)
	}
	defer f.Close()
	return ReadList(f)
}
