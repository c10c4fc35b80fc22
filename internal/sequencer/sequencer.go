// Package sequencer orders revision files by the version embedded in
// their filename and produces the consecutive comparison pairs the
// pipeline consumes.
package sequencer

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dgallion1/docverge/internal/parser"
)

// FileVersion is one discovered revision file with its parsed version.
type FileVersion struct {
	Path     string
	Filename string
	Version  [3]int
}

// VersionString renders the version as "X.Y.Z".
func (f FileVersion) VersionString() string {
	return fmt.Sprintf("%d.%d.%d", f.Version[0], f.Version[1], f.Version[2])
}

// Pair is one consecutive comparison: Left is the older revision.
type Pair struct {
	Left, Right FileVersion
}

// Filename version patterns, tried in order:
//
//	study-design-1-0-0(english)
//	report_version_3.0.0 / document-v1.2.3
//	anything-2.0-4 (three numbers split by dots or dashes)
//	v4 / version_4
var (
	reStudyDesign = regexp.MustCompile(`study-design-(\d+)-(\d+)-(\d+)`)
	reVersioned   = regexp.MustCompile(`(?i)(?:version[_-]?|v)(\d+)\.(\d+)\.(\d+)`)
	reTriple      = regexp.MustCompile(`(\d+)[.-](\d+)[.-](\d+)`)
	reSingle      = regexp.MustCompile(`(?i)(?:version[_-]?|v)(\d+)`)
)

// ExtractVersion parses a version tuple out of a filename. Files
// without a recognizable version sort first as 0.0.0.
func ExtractVersion(filename string) [3]int {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))

	for _, re := range []*regexp.Regexp{reStudyDesign, reVersioned, reTriple} {
		if m := re.FindStringSubmatch(name); m != nil {
			return [3]int{atoi(m[1]), atoi(m[2]), atoi(m[3])}
		}
	}
	if m := reSingle.FindStringSubmatch(name); m != nil {
		return [3]int{atoi(m[1]), 0, 0}
	}
	return [3]int{}
}

// ScanDir finds supported revision files in a directory and parses
// their versions. The result is unsorted.
func ScanDir(dir string) ([]FileVersion, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	var files []FileVersion
	for _, e := range entries {
		if e.IsDir() || !parser.IsSupportedExtension(e.Name()) {
			continue
		}
		files = append(files, FileVersion{
			Path:     filepath.Join(dir, e.Name()),
			Filename: e.Name(),
			Version:  ExtractVersion(e.Name()),
		})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no supported revision files in %s", dir)
	}
	return files, nil
}

// SortByVersion orders files ascending by version tuple, with the
// filename as a stable fallback.
func SortByVersion(files []FileVersion) []FileVersion {
	out := make([]FileVersion, len(files))
	copy(out, files)
	sort.SliceStable(out, func(i, j int) bool {
		for k := range 3 {
			if out[i].Version[k] != out[j].Version[k] {
				return out[i].Version[k] < out[j].Version[k]
			}
		}
		return out[i].Filename < out[j].Filename
	})
	return out
}

// Pairs produces the consecutive comparison pairs over the sorted
// sequence: (v1,v2), (v2,v3), ...
func Pairs(files []FileVersion) ([]Pair, error) {
	if len(files) < 2 {
		return nil, fmt.Errorf("need at least 2 revision files, have %d", len(files))
	}
	sorted := SortByVersion(files)
	pairs := make([]Pair, 0, len(sorted)-1)
	for i := 0; i+1 < len(sorted); i++ {
		pairs = append(pairs, Pair{Left: sorted[i], Right: sorted[i+1]})
	}
	return pairs, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
