package foodset

// COCO instances specific functionality.

import (
	"os"
	"sort"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// ErrNoCategories is returned for a dataset without any categories.
var ErrNoCategories = errors.New("the dataset defines no categories")

// Match selects how several category IDs are combined in an image query.
type Match int

// The image query modes.
const (
	MatchAny Match = iota // Images with at least one of the categories.
	MatchAll              // Images with every one of the categories.
)

// COCOCategory is a single entry of the "categories" list.
type COCOCategory struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Supercategory string `json:"supercategory"`
}

// COCOImage is a single entry of the "images" list.
type COCOImage struct {
	ID       int    `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// COCOAnnotation is a single object instance. Segmentations are not decoded.
type COCOAnnotation struct {
	ID         int        `json:"id"`
	ImageID    int        `json:"image_id"`
	CategoryID int        `json:"category_id"`
	BBox       [4]float64 `json:"bbox"` // x, y, width, height
	Area       float64    `json:"area"`
	IsCrowd    int        `json:"iscrowd"`
}

// Corners converts the bounding box to absolute x1, y1, x2, y2 coordinates.
func (a COCOAnnotation) Corners() [4]float64 {
	return [4]float64{a.BBox[0], a.BBox[1], a.BBox[0] + a.BBox[2], a.BBox[1] + a.BBox[3]}
}

// COCODataset is the subset of a COCO instances file that is used for indexing.
type COCODataset struct {
	Images      []COCOImage      `json:"images"`
	Annotations []COCOAnnotation `json:"annotations"`
	Categories  []COCOCategory   `json:"categories"`
}

// COCOIndex answers category, image and annotation queries over a COCODataset.
type COCOIndex struct {
	cats      []COCOCategory
	catsByID  map[int]COCOCategory
	imgsByID  map[int]COCOImage
	imgIDs    []int // Ascending.
	annsByID  map[int]COCOAnnotation
	imgToAnns map[int][]int // Annotation IDs in dataset order.
	catToImgs map[int][]int // Image IDs in dataset order, with repetitions.
}

// LoadCOCO reads and indexes the COCO instances file at path.
func LoadCOCO(path string) (*COCOIndex, error) {
	enc, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read annotation file %q", path)
	}

	var ds COCODataset
	if err := json.Unmarshal(enc, &ds); err != nil {
		return nil, errors.Wrapf(err, "failed to parse COCO input from %q", path)
	}

	idx, err := NewCOCOIndex(ds)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid COCO input %q", path)
	}
	return idx, nil
}

// NewCOCOIndex builds the lookup tables for ds.
func NewCOCOIndex(ds COCODataset) (*COCOIndex, error) {
	if len(ds.Categories) == 0 {
		return nil, ErrNoCategories
	}

	idx := &COCOIndex{
		cats:      append([]COCOCategory(nil), ds.Categories...),
		catsByID:  make(map[int]COCOCategory, len(ds.Categories)),
		imgsByID:  make(map[int]COCOImage, len(ds.Images)),
		imgIDs:    make([]int, 0, len(ds.Images)),
		annsByID:  make(map[int]COCOAnnotation, len(ds.Annotations)),
		imgToAnns: make(map[int][]int),
		catToImgs: make(map[int][]int),
	}

	for _, c := range ds.Categories {
		if _, dup := idx.catsByID[c.ID]; dup {
			return nil, errors.Errorf("duplicate category id %d", c.ID)
		}
		idx.catsByID[c.ID] = c
	}
	for _, img := range ds.Images {
		if _, dup := idx.imgsByID[img.ID]; dup {
			return nil, errors.Errorf("duplicate image id %d", img.ID)
		}
		idx.imgsByID[img.ID] = img
		idx.imgIDs = append(idx.imgIDs, img.ID)
	}
	sort.Ints(idx.imgIDs)

	for _, a := range ds.Annotations {
		if _, dup := idx.annsByID[a.ID]; dup {
			return nil, errors.Errorf("duplicate annotation id %d", a.ID)
		}
		idx.annsByID[a.ID] = a
		idx.imgToAnns[a.ImageID] = append(idx.imgToAnns[a.ImageID], a.ID)
		idx.catToImgs[a.CategoryID] = append(idx.catToImgs[a.CategoryID], a.ImageID)
	}

	return idx, nil
}

// Categories returns all categories in dataset order.
func (idx *COCOIndex) Categories() []COCOCategory {
	return append([]COCOCategory(nil), idx.cats...)
}

// CategoryIDs returns the IDs of the categories named in names, in dataset order. All IDs are
// returned if names is empty.
func (idx *COCOIndex) CategoryIDs(names ...string) []int {
	ids := make([]int, 0, len(idx.cats))
	for _, c := range idx.cats {
		if len(names) == 0 || lo.Contains(names, c.Name) {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// ImageIDs returns the ascending, de-duplicated IDs of the images annotated with the categories in
// catIDs, combined according to m. All image IDs are returned if catIDs is empty.
func (idx *COCOIndex) ImageIDs(catIDs []int, m Match) []int {
	if len(catIDs) == 0 {
		return append([]int(nil), idx.imgIDs...)
	}

	var ids []int
	switch m {
	case MatchAll:
		ids = lo.Uniq(idx.catToImgs[catIDs[0]])
		for _, catID := range catIDs[1:] {
			have := make(map[int]bool, len(idx.catToImgs[catID]))
			for _, id := range idx.catToImgs[catID] {
				have[id] = true
			}
			ids = lo.Filter(ids, func(id int, _ int) bool { return have[id] })
		}
	default:
		for _, catID := range catIDs {
			ids = append(ids, idx.catToImgs[catID]...)
		}
		ids = lo.Uniq(ids)
	}

	sort.Ints(ids)
	return ids
}

// Images loads the image records for ids.
func (idx *COCOIndex) Images(ids ...int) ([]COCOImage, error) {
	imgs := make([]COCOImage, len(ids))
	for i, id := range ids {
		img, ok := idx.imgsByID[id]
		if !ok {
			return nil, errors.Errorf("unknown image id %d", id)
		}
		imgs[i] = img
	}
	return imgs, nil
}

// AnnotationIDs returns the IDs of the annotations of the image, in dataset order.
func (idx *COCOIndex) AnnotationIDs(imageID int) []int {
	return append([]int(nil), idx.imgToAnns[imageID]...)
}

// Annotations loads the annotations for ids.
func (idx *COCOIndex) Annotations(ids ...int) ([]COCOAnnotation, error) {
	anns := make([]COCOAnnotation, len(ids))
	for i, id := range ids {
		a, ok := idx.annsByID[id]
		if !ok {
			return nil, errors.Errorf("unknown annotation id %d", id)
		}
		anns[i] = a
	}
	return anns, nil
}

// CategoriesByID loads the categories for ids.
func (idx *COCOIndex) CategoriesByID(ids ...int) ([]COCOCategory, error) {
	cats := make([]COCOCategory, len(ids))
	for i, id := range ids {
		c, ok := idx.catsByID[id]
		if !ok {
			return nil, errors.Errorf("unknown category id %d", id)
		}
		cats[i] = c
	}
	return cats, nil
}

// FromCOCO converts the image and its annotations to the intermediate representation. The
// category name becomes the label and the supercategory the only ancestor.
func FromCOCO(idx Index, img COCOImage, anns []COCOAnnotation, imagePath string) (
	AnnotatedFile, error) {

	fileData := AnnotatedFile{
		Annotations: make([]Annotation, 0, len(anns)),
		FilePath:    imagePath,
		Width:       img.Width,
		Height:      img.Height,
	}
	for _, a := range anns {
		cats, err := idx.CategoriesByID(a.CategoryID)
		if err != nil {
			return AnnotatedFile{}, errors.Wrapf(err, "annotation %d of image %d", a.ID, img.ID)
		}

		fileData.Annotations = append(fileData.Annotations, Annotation{
			Attributes: map[string]interface{}{
				AncestorLabels: []string{cats[0].Supercategory},
				SourceCategory: a.CategoryID,
			},
			Coords: a.Corners(),
			Label:  cats[0].Name,
		})
	}

	return fileData, nil
}
