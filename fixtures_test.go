package foodset

import (
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

// testDataset has four food categories, one of them missing from the default class table, and
// images covering every outcome of an extraction:
//
//	3  b.jpg        hot dog then banana
//	5  x.jpg        person then pizza
//	7  car.jpg      car only
//	9  missing.jpg  pizza, no file on disk
//	11 broc.jpg     broccoli
func testDataset() COCODataset {
	return COCODataset{
		Categories: []COCOCategory{
			{ID: 1, Name: "person", Supercategory: "person"},
			{ID: 3, Name: "car", Supercategory: "vehicle"},
			{ID: 52, Name: "banana", Supercategory: "food"},
			{ID: 59, Name: "pizza", Supercategory: "food"},
			{ID: 60, Name: "hot dog", Supercategory: "food"},
			{ID: 61, Name: "broccoli", Supercategory: "food"},
		},
		Images: []COCOImage{
			{ID: 5, FileName: "x.jpg", Width: 100, Height: 80},
			{ID: 3, FileName: "b.jpg", Width: 100, Height: 80},
			{ID: 7, FileName: "car.jpg", Width: 100, Height: 80},
			{ID: 9, FileName: "missing.jpg", Width: 100, Height: 80},
			{ID: 11, FileName: "broc.jpg", Width: 100, Height: 80},
		},
		Annotations: []COCOAnnotation{
			{ID: 100, ImageID: 5, CategoryID: 1, BBox: [4]float64{1, 1, 5, 5}},
			{ID: 101, ImageID: 5, CategoryID: 59, BBox: [4]float64{10, 20, 30, 40}},
			{ID: 102, ImageID: 3, CategoryID: 60, BBox: [4]float64{0, 0, 50, 40}},
			{ID: 103, ImageID: 3, CategoryID: 52, BBox: [4]float64{50, 40, 10, 10}},
			{ID: 104, ImageID: 7, CategoryID: 3, BBox: [4]float64{2, 2, 20, 20}},
			{ID: 105, ImageID: 9, CategoryID: 59, BBox: [4]float64{1, 2, 3, 4}},
			{ID: 106, ImageID: 11, CategoryID: 61, BBox: [4]float64{4.4, 5.6, 10.2, 10.5}},
			{ID: 107, ImageID: 5, CategoryID: 59, BBox: [4]float64{60, 10, 5, 5}},
		},
	}
}

func newTestIndex(t *testing.T) *COCOIndex {
	t.Helper()
	idx, err := NewCOCOIndex(testDataset())
	test.That(t, err, test.ShouldBeNil)
	return idx
}

// writeTestJPEG writes a solid width x height JPEG to path.
func writeTestJPEG(t *testing.T, path string, width, height int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	test.That(t, os.MkdirAll(filepath.Dir(path), 0755), test.ShouldBeNil)
	f, err := os.Create(path)
	test.That(t, err, test.ShouldBeNil)
	defer f.Close()
	test.That(t, jpeg.Encode(f, img, nil), test.ShouldBeNil)
}

// newTestDataRoot creates a dataset root with the images of testDataset in images/val2014, except
// missing.jpg.
func newTestDataRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range []string{"x.jpg", "b.jpg", "car.jpg", "broc.jpg"} {
		writeTestJPEG(t, filepath.Join(root, "images", "val2014", name), 100, 80)
	}
	return root
}

// testOptions returns options writing below a fresh output directory.
func testOptions(t *testing.T, dataRoot string) Options {
	t.Helper()
	out := t.TempDir()
	return Options{
		DataRoot:       dataRoot,
		Split:          "val2014",
		ImagesDir:      filepath.Join(out, "JPEGImages"),
		AnnotationsDir: filepath.Join(out, "Annotations"),
		ClassRoot:      out,
	}
}
