package source

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// File reads one URL per line. Blank lines and lines starting with '#' are
// skipped.
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) URLs(ctx context.Context) ([]string, error) {
	fh, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("source: open url file: %w", err)
	}
	defer fh.Close()

	var urls []string
	sc := bufio.NewScanner(fh)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("source: read url file: %w", err)
	}
	return urls, nil
}

func (f *File) Close() error { return nil }
