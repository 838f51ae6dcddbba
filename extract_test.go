package foodset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"go.viam.com/test"
)

// allImages selects every image of the index, regardless of the queried categories.
type allImages struct {
	*COCOIndex
}

func (a allImages) ImageIDs(_ []int, m Match) []int {
	return a.COCOIndex.ImageIDs(nil, m)
}

func outcomes(s *Summary) map[string]Outcome {
	m := make(map[string]Outcome, len(s.Items))
	for _, r := range s.Items {
		m[r.FileName] = r.Outcome
	}
	return m
}

func TestFoodCategories(t *testing.T) {
	t.Parallel()
	idx := newTestIndex(t)

	var names []string
	for _, c := range FoodCategories(idx, "food") {
		names = append(names, c.Name)
	}
	test.That(t, names, test.ShouldResemble, []string{"banana", "pizza", "hot dog", "broccoli"})
	test.That(t, FoodCategories(idx, "kitchen"), test.ShouldBeEmpty)
	test.That(t, SelectImages(idx, nil), test.ShouldBeEmpty)
	test.That(t, SelectImages(idx, FoodCategories(idx, "food")), test.ShouldResemble,
		[]int{3, 5, 9, 11})
}

func TestExtractorRun(t *testing.T) {
	t.Parallel()
	idx := newTestIndex(t)
	opts := testOptions(t, newTestDataRoot(t))

	core, logs := observer.New(zapcore.DebugLevel)
	ext, err := NewExtractor(idx, opts, zap.New(core).Sugar()).Run(context.Background())
	test.That(t, err, test.ShouldBeNil)

	t.Run("outcomes", func(t *testing.T) {
		s := ext.Summary
		test.That(t, s.Interrupted, test.ShouldBeFalse)
		test.That(t, s.Categories, test.ShouldResemble, []string{"banana", "pizza", "hot dog", "broccoli"})
		test.That(t, s.Items, test.ShouldHaveLength, 4)
		test.That(t, outcomes(s), test.ShouldResemble, map[string]Outcome{
			"b.jpg":       Written,
			"x.jpg":       Written,
			"missing.jpg": SkippedMissingSource,
			"broc.jpg":    Written,
		})
		test.That(t, s.Items[0].ImageID, test.ShouldEqual, 3)
		test.That(t, s.Items[0].Category, test.ShouldEqual, "hot dog")
	})

	t.Run("annotation document", func(t *testing.T) {
		data, err := ReadVOC(filepath.Join(opts.AnnotationsDir, "x.xml"))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, data.FilePath, test.ShouldEqual, filepath.Join(opts.ImagesDir, "x.jpg"))
		test.That(t, data.Folder, test.ShouldEqual, "VOC2007")
		test.That(t, data.Size, test.ShouldResemble, VOCSize{Width: 100, Height: 80, Depth: 3})
		test.That(t, data.Objects, test.ShouldHaveLength, 1)
		test.That(t, data.Objects[0].Name, test.ShouldEqual, "pizza")
		test.That(t, data.Objects[0].BndBox, test.ShouldResemble,
			VOCBndBox{XMin: 10, YMin: 20, XMax: 40, YMax: 60})
	})

	t.Run("first matching annotation", func(t *testing.T) {
		data, err := ReadVOC(filepath.Join(opts.AnnotationsDir, "b.xml"))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, data.Objects, test.ShouldHaveLength, 1)
		test.That(t, data.Objects[0].Name, test.ShouldEqual, "hot dog")
	})

	t.Run("image copies", func(t *testing.T) {
		for _, p := range []string{
			filepath.Join(opts.ImagesDir, "x.jpg"),
			filepath.Join(opts.ImagesDir, "b.jpg"),
			filepath.Join(opts.ImagesDir, "broc.jpg"),
			filepath.Join(opts.ClassRoot, "pizza", "x.jpg"),
			filepath.Join(opts.ClassRoot, "hotdog", "b.jpg"),
		} {
			test.That(t, fileExists(p), test.ShouldBeTrue)
		}
		src, err := os.ReadFile(filepath.Join(opts.DataRoot, "images", "val2014", "x.jpg"))
		test.That(t, err, test.ShouldBeNil)
		dst, err := os.ReadFile(filepath.Join(opts.ClassRoot, "pizza", "x.jpg"))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, dst, test.ShouldResemble, src)
	})

	t.Run("skipped images leave no output", func(t *testing.T) {
		test.That(t, fileExists(filepath.Join(opts.ImagesDir, "missing.jpg")), test.ShouldBeFalse)
		test.That(t, fileExists(filepath.Join(opts.AnnotationsDir, "missing.xml")), test.ShouldBeFalse)
		test.That(t, fileExists(filepath.Join(opts.ImagesDir, "car.jpg")), test.ShouldBeFalse)
		test.That(t, fileExists(filepath.Join(opts.ClassRoot, "broccoli", "broc.jpg")), test.ShouldBeFalse)
	})

	t.Run("manifest", func(t *testing.T) {
		test.That(t, ext.Manifest, test.ShouldResemble, Manifest{
			{Path: filepath.Join(opts.ImagesDir, "b.jpg"), Class: 2},
			{Path: filepath.Join(opts.ImagesDir, "x.jpg"), Class: 1},
			{Path: filepath.Join(opts.ImagesDir, "broc.jpg"), Class: 3},
		})
		test.That(t, ext.Files, test.ShouldHaveLength, 3)
	})

	t.Run("logs", func(t *testing.T) {
		test.That(t, logs.FilterMessage("The image is not in the source folder, skipping").Len(),
			test.ShouldEqual, 1)
		test.That(t, logs.FilterMessage("Wrote annotation").Len(), test.ShouldEqual, 3)
		test.That(t, logs.FilterMessage("Selected 4 images").Len(), test.ShouldEqual, 1)
	})
}

func TestExtractorRunTwice(t *testing.T) {
	t.Parallel()
	idx := newTestIndex(t)
	opts := testOptions(t, newTestDataRoot(t))

	first, err := NewExtractor(idx, opts, nil).Run(context.Background())
	test.That(t, err, test.ShouldBeNil)
	second, err := NewExtractor(idx, opts, nil).Run(context.Background())
	test.That(t, err, test.ShouldBeNil)

	test.That(t, outcomes(second.Summary), test.ShouldResemble, outcomes(first.Summary))
	test.That(t, second.Manifest, test.ShouldResemble, first.Manifest)
}

func TestExtractorAllClassDirs(t *testing.T) {
	t.Parallel()
	opts := testOptions(t, newTestDataRoot(t))
	opts.AllClassDirs = true

	_, err := NewExtractor(newTestIndex(t), opts, nil).Run(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, fileExists(filepath.Join(opts.ClassRoot, "broccoli", "broc.jpg")), test.ShouldBeTrue)
	test.That(t, fileExists(filepath.Join(opts.ClassRoot, "hotdog", "b.jpg")), test.ShouldBeTrue)
}

func TestExtractorNoFoodAnnotation(t *testing.T) {
	t.Parallel()
	opts := testOptions(t, newTestDataRoot(t))

	ext, err := NewExtractor(allImages{newTestIndex(t)}, opts, nil).Run(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, outcomes(ext.Summary)["car.jpg"], test.ShouldEqual, SkippedNoFoodAnnotation)
	test.That(t, fileExists(filepath.Join(opts.AnnotationsDir, "car.xml")), test.ShouldBeFalse)
	test.That(t, ext.Manifest, test.ShouldHaveLength, 3)
}

func TestExtractorFailedImage(t *testing.T) {
	t.Parallel()
	opts := testOptions(t, newTestDataRoot(t))
	// A regular file where the pizza class directory belongs.
	test.That(t, os.WriteFile(filepath.Join(opts.ClassRoot, "pizza"), nil, 0644), test.ShouldBeNil)

	core, logs := observer.New(zapcore.ErrorLevel)
	ext, err := NewExtractor(newTestIndex(t), opts, zap.New(core).Sugar()).Run(context.Background())
	test.That(t, err, test.ShouldBeNil)

	res := ext.Summary.Items[1]
	test.That(t, res.FileName, test.ShouldEqual, "x.jpg")
	test.That(t, res.Outcome, test.ShouldEqual, Failed)
	test.That(t, res.Err, test.ShouldNotBeNil)
	test.That(t, fileExists(filepath.Join(opts.AnnotationsDir, "x.xml")), test.ShouldBeFalse)
	test.That(t, ext.Summary.Count(Written), test.ShouldEqual, 2)
	test.That(t, logs.Len(), test.ShouldEqual, 1)
}

func TestExtractorResize(t *testing.T) {
	t.Parallel()
	opts := testOptions(t, newTestDataRoot(t))
	opts.ResizeLonger = 50

	_, err := NewExtractor(newTestIndex(t), opts, nil).Run(context.Background())
	test.That(t, err, test.ShouldBeNil)

	cfg, format, err := decodeImageConfig(filepath.Join(opts.ImagesDir, "x.jpg"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, format, test.ShouldEqual, "jpeg")
	test.That(t, cfg.Width, test.ShouldEqual, 50)
	test.That(t, cfg.Height, test.ShouldEqual, 40)

	data, err := ReadVOC(filepath.Join(opts.AnnotationsDir, "x.xml"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, data.Size, test.ShouldResemble, VOCSize{Width: 50, Height: 40, Depth: 3})
	test.That(t, data.Objects[0].BndBox, test.ShouldResemble,
		VOCBndBox{XMin: 5, YMin: 10, XMax: 20, YMax: 30})
}

func TestExtractorCancelled(t *testing.T) {
	t.Parallel()
	opts := testOptions(t, newTestDataRoot(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ext, err := NewExtractor(newTestIndex(t), opts, nil).Run(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ext.Summary.Interrupted, test.ShouldBeTrue)
	test.That(t, ext.Summary.Items, test.ShouldBeEmpty)
	test.That(t, ext.Manifest, test.ShouldBeEmpty)
}

func TestExtractorClassDir(t *testing.T) {
	t.Parallel()
	e := NewExtractor(newTestIndex(t), Options{ClassRoot: "out"}, nil)

	dir, ok := e.ClassDir("hot dog")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, dir, test.ShouldEqual, filepath.Join("out", "hotdog"))
	_, ok = e.ClassDir("broccoli")
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, e.SourcePath("x.jpg"), test.ShouldEqual, filepath.Join("images", "x.jpg"))
}

func TestExtractorSinglePizza(t *testing.T) {
	t.Parallel()
	idx, err := NewCOCOIndex(COCODataset{
		Categories:  []COCOCategory{{ID: 1, Name: "pizza", Supercategory: "food"}},
		Images:      []COCOImage{{ID: 7, FileName: "x.jpg", Width: 100, Height: 80}},
		Annotations: []COCOAnnotation{{ID: 1, ImageID: 7, CategoryID: 1, BBox: [4]float64{10, 20, 30, 40}}},
	})
	test.That(t, err, test.ShouldBeNil)

	root := t.TempDir()
	writeTestJPEG(t, filepath.Join(root, "images", "val2014", "x.jpg"), 100, 80)
	opts := testOptions(t, root)

	ext, err := NewExtractor(idx, opts, nil).Run(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ext.Summary.Count(Written), test.ShouldEqual, 1)

	test.That(t, fileExists(filepath.Join(opts.ImagesDir, "x.jpg")), test.ShouldBeTrue)
	test.That(t, fileExists(filepath.Join(opts.ClassRoot, "pizza", "x.jpg")), test.ShouldBeTrue)
	enc, err := os.ReadFile(filepath.Join(opts.AnnotationsDir, "x.xml"))
	test.That(t, err, test.ShouldBeNil)
	doc := string(enc)
	test.That(t, doc, test.ShouldStartWith, "<annotation>")
	test.That(t, doc, test.ShouldContainSubstring, "<name>pizza</name>")
	for _, want := range []string{"<xmin>10</xmin>", "<ymin>20</ymin>", "<xmax>40</xmax>", "<ymax>60</ymax>"} {
		test.That(t, doc, test.ShouldContainSubstring, want)
	}
	test.That(t, ext.Manifest, test.ShouldResemble, Manifest{
		{Path: filepath.Join(opts.ImagesDir, "x.jpg"), Class: 0},
	})
}
