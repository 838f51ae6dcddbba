package foodset

// The intermediate annotation metadata representation.

// Keys for known annotation attributes.
const (
	AncestorLabels = "Ancestors"  // Ancestors in the label taxonomy. Type []string.
	SourceCategory = "CategoryID" // The category ID in the source dataset. Type int.
)

// Annotation is the intermediate representation of an object label.
type Annotation struct {
	Attributes map[string]interface{} // Additional attributes of this annotation.
	Coords     [4]float64             // Absolute x1, y1, x2, y2 offsets from the top-left corner.
	Label      string
}

// Width is the object width from a.Coords.
func (a Annotation) Width() float64 {
	return a.Coords[2] - a.Coords[0]
}

// Height is the object height from a.Coords.
func (a Annotation) Height() float64 {
	return a.Coords[3] - a.Coords[1]
}

// HasAncestor reports whether label is listed in the AncestorLabels attribute of a.
func (a Annotation) HasAncestor(label string) bool {
	ancestors, _ := a.Attributes[AncestorLabels].([]string)
	for _, v := range ancestors {
		if v == label {
			return true
		}
	}
	return false
}

// CategoryID returns the source category of a and false if the attribute is missing.
func (a Annotation) CategoryID() (int, bool) {
	id, ok := a.Attributes[SourceCategory].(int)
	return id, ok
}

// AnnotatedFile is the intermediate representation of file metadata.
type AnnotatedFile struct {
	Annotations []Annotation // The annotations.
	FilePath    string       // The annotated file.
	Width       int          // The image width in pixels.
	Height      int          // The image height in pixels.
}

// FirstWithAncestor returns the first annotation, in order, that has label among its ancestors.
func (f *AnnotatedFile) FirstWithAncestor(label string) (Annotation, bool) {
	for _, a := range f.Annotations {
		if a.HasAncestor(label) {
			return a, true
		}
	}
	return Annotation{}, false
}

// scaleCoords scales all Annotations.Coords by the given scale factors.
func (f *AnnotatedFile) scaleCoords(width, height float64) {
	for i := range f.Annotations {
		for j := 0; j < 4; j++ {
			if j&1 == 0 {
				f.Annotations[i].Coords[j] *= width
			} else {
				f.Annotations[i].Coords[j] *= height
			}
		}
	}
}
