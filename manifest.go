package foodset

// Training manifest specific functionality.

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ManifestEntry is a single "path class" line of a manifest.
type ManifestEntry struct {
	Path  string // Absolute image path.
	Class int    // Zero-based class index.
}

// Manifest lists images with their class index, in the line format read by Caffe-style image data
// layers.
type Manifest []ManifestEntry

// Split randomly splits the manifest into multiple manifests.
//
// The cumulativeSplits specify the cumulative distribution according to which the entries are
// split into the returned manifests. Its values must add up to 100. The same seed always yields the
// same split for the same manifest.
func (m Manifest) Split(cumulativeSplits []int, seed int64) ([]Manifest, error) {
	manifests := make([]Manifest, len(cumulativeSplits))

	// Allocate slightly more than the expected size for each manifest.
	var sum int
	for i, s := range cumulativeSplits {
		percent := s - sum
		if percent < 0 {
			return nil, errors.New("the split percentages must be cumulative")
		}
		manifests[i] = make(Manifest, 0, int(1.05*float64(percent)/100*float64(len(m))))
		sum = s
	}
	if sum != 100 {
		return nil, errors.New("the split percentages do not add up to 100")
	}

	rng := rand.New(rand.NewSource(seed))

outer:
	for _, e := range m {
		r := rng.Intn(100)
		for i, s := range cumulativeSplits {
			if r < s {
				manifests[i] = append(manifests[i], e)
				continue outer
			}
		}
	}

	return manifests, nil
}

// WriteManifest writes the manifest to path, one entry per line.
func WriteManifest(path string, m Manifest) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "cannot create manifest %q", path)
	}
	defer closeWithErrCheck(file, &err)

	buf := bufio.NewWriter(file)
	for _, e := range m {
		if _, err := fmt.Fprintf(buf, "%s %d\n", e.Path, e.Class); err != nil {
			return errors.Wrapf(err, "cannot write manifest %q", path)
		}
	}
	return buf.Flush()
}

// ReadManifest reads the manifest at path. Paths may contain spaces; the class index is the last
// field of a line.
func ReadManifest(path string) (m Manifest, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read manifest %q", path)
	}
	defer closeWithErrCheck(file, &err)

	scanner := bufio.NewScanner(file)
	for line := 1; scanner.Scan(); line++ {
		text := scanner.Text()
		sep := strings.LastIndexByte(text, ' ')
		if sep <= 0 {
			return nil, errors.Errorf("%s:%d: expected \"path class\", got %q", path, line, text)
		}
		class, err := strconv.Atoi(text[sep+1:])
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d: invalid class index", path, line)
		}
		m = append(m, ManifestEntry{Path: text[:sep], Class: class})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read %q as lines", path)
	}

	return m, nil
}
