package foodset

// Extraction of a category grouping from a dataset index into VOC layout.

import (
	"context"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultSupercategory is the category grouping that is extracted by default.
const DefaultSupercategory = "food"

// Index is the dataset index queried by an Extractor. COCOIndex implements it.
type Index interface {
	Categories() []COCOCategory
	CategoryIDs(names ...string) []int
	ImageIDs(catIDs []int, m Match) []int
	Images(ids ...int) ([]COCOImage, error)
	AnnotationIDs(imageID int) []int
	Annotations(ids ...int) ([]COCOAnnotation, error)
	CategoriesByID(ids ...int) ([]COCOCategory, error)
}

// DefaultClassDirs returns the category to class directory table used when Options.ClassDirs is
// nil.
func DefaultClassDirs() map[string]string {
	return map[string]string{
		"apple":    "apple",
		"banana":   "banana",
		"cake":     "cake",
		"carrot":   "carrot",
		"donut":    "donut",
		"hot dog":  "hotdog",
		"orange":   "orange",
		"pizza":    "pizza",
		"sandwich": "sandwich",
	}
}

// Options configures an Extractor.
type Options struct {
	DataRoot      string // Source images are read from DataRoot/images/Split.
	Split         string // The dataset split, e.g. "val2014".
	Supercategory string // The category grouping to extract.

	ImagesDir      string            // Flat copies of all selected images.
	AnnotationsDir string            // One VOC document per image.
	ClassRoot      string            // Parent of the per-category directories.
	ClassDirs      map[string]string // Category name to directory name below ClassRoot.
	AllClassDirs   bool              // Use the category name for categories missing in ClassDirs.

	ResizeLonger  int // Target length of the longer image side, 0 to keep the aspect ratio.
	ResizeShorter int // Target length of the shorter image side, 0 to keep the aspect ratio.
	JPEGQuality   int // The quality for re-encoded JPEGs.
}

// Extraction is the result of a run.
type Extraction struct {
	Categories []COCOCategory  // The extracted categories; position is the class index.
	Files      []AnnotatedFile // The written annotations, with paths of the flat copies.
	Manifest   Manifest        // One entry per written annotation.
	Summary    *Summary
}

// Extractor copies the images of a category grouping and writes their VOC annotations.
type Extractor struct {
	index  Index
	opts   Options
	logger *zap.SugaredLogger
}

// NewExtractor returns an Extractor reading from index. A nil logger disables logging.
func NewExtractor(index Index, opts Options, logger *zap.SugaredLogger) *Extractor {
	if opts.Supercategory == "" {
		opts.Supercategory = DefaultSupercategory
	}
	if opts.ClassDirs == nil {
		opts.ClassDirs = DefaultClassDirs()
	}
	if opts.JPEGQuality < 1 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 90
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Extractor{index: index, opts: opts, logger: logger}
}

// FoodCategories returns the categories of idx whose supercategory is supercategory, in index
// order.
func FoodCategories(idx Index, supercategory string) []COCOCategory {
	var cats []COCOCategory
	for _, c := range idx.Categories() {
		if c.Supercategory == supercategory {
			cats = append(cats, c)
		}
	}
	return cats
}

// SelectImages returns the IDs of the images with at least one annotation in any of cats. The
// categories are queried in a single batch.
func SelectImages(idx Index, cats []COCOCategory) []int {
	if len(cats) == 0 {
		return nil
	}
	ids := make([]int, len(cats))
	for i, c := range cats {
		ids[i] = c.ID
	}
	return idx.ImageIDs(ids, MatchAny)
}

// SourcePath returns the path of the dataset image with the given file name.
func (e *Extractor) SourcePath(fileName string) string {
	return filepath.Join(e.opts.DataRoot, "images", e.opts.Split, fileName)
}

// ClassDir returns the class directory for the category name and false if the category has none.
func (e *Extractor) ClassDir(category string) (string, bool) {
	dir, ok := e.opts.ClassDirs[category]
	if !ok && e.opts.AllClassDirs {
		dir, ok = category, true
	}
	if !ok {
		return "", false
	}
	return filepath.Join(e.opts.ClassRoot, dir), true
}

// Run processes every selected image once, in ascending ID order. Per-image problems are recorded
// in the summary and never stop the run. Cancelling ctx stops the run between two images.
func (e *Extractor) Run(ctx context.Context) (*Extraction, error) {
	summary := &Summary{Started: time.Now()}
	defer func() { summary.Finished = time.Now() }()

	cats := FoodCategories(e.index, e.opts.Supercategory)
	classIdx := make(map[int]int, len(cats))
	for i, c := range cats {
		classIdx[c.ID] = i
		summary.Categories = append(summary.Categories, c.Name)
	}
	e.logger.Infow("Selected categories", "supercategory", e.opts.Supercategory,
		"categories", summary.Categories)

	imgIDs := SelectImages(e.index, cats)
	e.logger.Infof("Selected %d images", len(imgIDs))

	imgs, err := e.index.Images(imgIDs...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load the image records")
	}

	for _, dir := range []string{e.opts.ImagesDir, e.opts.AnnotationsDir} {
		if err := ensureDir(dir); err != nil {
			return nil, err
		}
	}

	ext := &Extraction{Categories: cats, Summary: summary}
	for i, img := range imgs {
		if ctx.Err() != nil {
			e.logger.Warnf("Interrupted after %d of %d images", i, len(imgs))
			summary.Interrupted = true
			break
		}

		res, fileData := e.processImage(img)
		summary.Add(res)

		switch res.Outcome {
		case Written:
			e.logger.Debugw("Wrote annotation", "image", img.FileName, "category", res.Category)
		case SkippedMissingSource:
			e.logger.Warnw("The image is not in the source folder, skipping", "image", img.FileName)
			continue
		case SkippedNoFoodAnnotation:
			e.logger.Warnw("No annotation in the grouping, skipping", "image", img.FileName,
				"supercategory", e.opts.Supercategory)
			continue
		default:
			e.logger.Errorw("Failed to process image, skipping", "image", img.FileName,
				"error", res.Err)
			continue
		}

		a := fileData.Annotations[0]
		catID, _ := a.CategoryID()
		absPath, err := filepath.Abs(fileData.FilePath)
		if err != nil {
			absPath = fileData.FilePath
		}
		ext.Files = append(ext.Files, fileData)
		ext.Manifest = append(ext.Manifest, ManifestEntry{Path: absPath, Class: classIdx[catID]})
	}

	e.logger.Infow("Extraction finished", "written", summary.Count(Written),
		"missing", summary.Count(SkippedMissingSource),
		"unmatched", summary.Count(SkippedNoFoodAnnotation), "failed", summary.Count(Failed))

	return ext, nil
}

// processImage materializes one image and writes its annotation document. On success the returned
// AnnotatedFile holds the single written annotation.
func (e *Extractor) processImage(img COCOImage) (ItemResult, AnnotatedFile) {
	res := ItemResult{ImageID: img.ID, FileName: img.FileName}
	fail := func(err error) (ItemResult, AnnotatedFile) {
		res.Outcome = Failed
		res.Err = err
		return res, AnnotatedFile{}
	}

	src := e.SourcePath(img.FileName)
	if !fileExists(src) {
		res.Outcome = SkippedMissingSource
		return res, AnnotatedFile{}
	}

	// Copy to the flat images directory.
	dst := filepath.Join(e.opts.ImagesDir, filepath.Base(img.FileName))
	scaleWidth, scaleHeight, err := e.materialize(src, dst)
	if err != nil {
		return fail(err)
	}

	// Resolve the first annotation in the grouping.
	anns, err := e.index.Annotations(e.index.AnnotationIDs(img.ID)...)
	if err != nil {
		return fail(err)
	}
	fileData, err := FromCOCO(e.index, img, anns, dst)
	if err != nil {
		return fail(err)
	}
	a, ok := fileData.FirstWithAncestor(e.opts.Supercategory)
	if !ok {
		res.Outcome = SkippedNoFoodAnnotation
		return res, AnnotatedFile{}
	}
	res.Category = a.Label
	fileData.Annotations = []Annotation{a}

	if scaleWidth != 1 || scaleHeight != 1 {
		fileData.scaleCoords(scaleWidth, scaleHeight)
		fileData.Width = int(float64(fileData.Width)*scaleWidth + 0.5)
		fileData.Height = int(float64(fileData.Height)*scaleHeight + 0.5)
	}

	// Copy into the class directory.
	if dir, ok := e.ClassDir(a.Label); ok {
		if err := ensureDir(dir); err != nil {
			return fail(err)
		}
		if _, err := copyFileToDir(dst, dir); err != nil {
			return fail(err)
		}
	}

	if _, err := WriteVOC(e.opts.AnnotationsDir, ToVOC(fileData)); err != nil {
		return fail(err)
	}

	res.Outcome = Written
	return res, fileData
}

// materialize copies src to dst, resampling the image if a target size is configured. Returns the
// width and height scale factors.
func (e *Extractor) materialize(src, dst string) (scaleWidth, scaleHeight float64, err error) {
	if e.opts.ResizeLonger <= 0 && e.opts.ResizeShorter <= 0 {
		return 1, 1, copyFile(src, dst)
	}

	img, err := loadImage(src)
	if err != nil {
		return 0, 0, err
	}
	resized, scaleWidth, scaleHeight, err := resizeImage(img, e.opts.ResizeLonger,
		e.opts.ResizeShorter, imaging.Box, imaging.Linear)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "cannot resize %q", src)
	}
	if err := saveImage(dst, resized, e.opts.JPEGQuality); err != nil {
		return 0, 0, err
	}
	return scaleWidth, scaleHeight, nil
}
