package util

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// VideoExtensions lists the container extensions FindVideoFiles accepts,
// compared case-insensitively.
var VideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv", ".flv", ".wmv", ".m4v"}

// IsVideoFile reports whether path carries one of VideoExtensions.
func IsVideoFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, v := range VideoExtensions {
		if ext == v {
			return true
		}
	}
	return false
}

// FindVideoFiles resolves input into the list of videos to process.
//
// Arguments:
// - input: A single video file, or a directory searched recursively.
//
// Returns:
// - []string: Sorted video paths.
// - error: Error if input does not exist, is a file with an unsupported
// extension, or the directory walk fails.
func FindVideoFiles(input string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, errors.Wrapf(err, "stat input %s", input)
	}

	if !info.IsDir() {
		if !IsVideoFile(input) {
			return nil, errors.Errorf("unsupported video format: %s", input)
		}
		return []string{input}, nil
	}

	var videos []string
	err = filepath.WalkDir(input, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !IsVideoFile(path) {
			return nil
		}
		videos = append(videos, path)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walk %s", input)
	}

	sort.Strings(videos)
	return videos, nil
}

// SourceName returns the file name of path without its extension. It prefixes
// every still and clip written for that source.
func SourceName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// UniqueSourceNames returns one output name per path, in input order. Paths
// whose SourceName is shared with another path are prefixed with their parent
// directory name; any name still taken gets a numeric suffix.
func UniqueSourceNames(paths []string) []string {
	names := make([]string, len(paths))
	count := make(map[string]int, len(paths))
	for i, path := range paths {
		names[i] = SourceName(path)
		count[names[i]]++
	}

	for i, path := range paths {
		if count[names[i]] < 2 {
			continue
		}
		parent := filepath.Base(filepath.Dir(path))
		if parent != "." && parent != string(filepath.Separator) {
			names[i] = parent + "_" + names[i]
		}
	}

	used := make(map[string]bool, len(paths))
	for i := range names {
		base := names[i]
		for n := 2; used[names[i]]; n++ {
			names[i] = fmt.Sprintf("%s_%d", base, n)
		}
		used[names[i]] = true
	}
	return names
}
