package service

import (
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

var partNumberRe = regexp.MustCompile(`(?i)part(\d+)`)

// PartNumber extracts the numeric token of the first case-insensitive
// "part<N>" match in the base filename. Filenames without the token
// sort as 0.
func PartNumber(filename string) int {
	m := partNumberRe.FindStringSubmatch(filepath.Base(filename))
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		// Digits too large for int; treat like an absent token.
		return 0
	}
	return n
}

// SortByPartNumber orders paths ascending by part number. Equal keys
// order lexically by base filename, so the result does not depend on
// directory enumeration order. The input slice is not modified.
func SortByPartNumber(paths []string) []string {
	sorted := make([]string, len(paths))
	copy(sorted, paths)

	sort.Slice(sorted, func(i, j int) bool {
		return filepath.Base(sorted[i]) < filepath.Base(sorted[j])
	})
	sort.SliceStable(sorted, func(i, j int) bool {
		return PartNumber(sorted[i]) < PartNumber(sorted[j])
	})

	return sorted
}
