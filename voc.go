package foodset

// Pascal VOC specific functionality.

import (
	"encoding/xml"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Constant values of the VOC documents.
const (
	vocFolder = "VOC2007"
	vocPose   = "Unspecified"
	vocDepth  = 3
)

// VOCBndBox is the bounding box of an object, in absolute pixel coordinates.
type VOCBndBox struct {
	XMin int `xml:"xmin"`
	YMin int `xml:"ymin"`
	XMax int `xml:"xmax"`
	YMax int `xml:"ymax"`
}

// VOCObject is a single annotation within a VOC document.
type VOCObject struct {
	Name      string    `xml:"name"`
	Pose      string    `xml:"pose"`
	Truncated int       `xml:"truncated"`
	Difficult int       `xml:"difficult"`
	BndBox    VOCBndBox `xml:"bndbox"`
}

// VOCSize is the image size.
type VOCSize struct {
	Width  int `xml:"width"`
	Height int `xml:"height"`
	Depth  int `xml:"depth"`
}

// VOCAnnotatedFile defines the VOC annotation structure for a single file. The field order is the
// element order of the document.
type VOCAnnotatedFile struct {
	XMLName   xml.Name    `xml:"annotation"`
	Folder    string      `xml:"folder"`
	FilePath  string      `xml:"filename"`
	Size      VOCSize     `xml:"size"`
	Segmented int         `xml:"segmented"`
	Objects   []VOCObject `xml:"object"`
}

// ToVOC converts the intermediate representation for a single file to VOC format. Coordinates are
// rounded to the nearest pixel.
func ToVOC(fileData AnnotatedFile) VOCAnnotatedFile {
	vocData := VOCAnnotatedFile{
		Folder:   vocFolder,
		FilePath: fileData.FilePath,
		Size: VOCSize{
			Width:  fileData.Width,
			Height: fileData.Height,
			Depth:  vocDepth,
		},
		Objects: make([]VOCObject, len(fileData.Annotations)),
	}
	for i, a := range fileData.Annotations {
		vocData.Objects[i] = VOCObject{
			Name: a.Label,
			Pose: vocPose,
			BndBox: VOCBndBox{
				XMin: int(math.Round(a.Coords[0])),
				YMin: int(math.Round(a.Coords[1])),
				XMax: int(math.Round(a.Coords[2])),
				YMax: int(math.Round(a.Coords[3])),
			},
		}
	}

	return vocData
}

// MarshalVOC encodes the document with two-space indentation. No XML declaration is written, so the
// output starts at the opening tag of the annotation element.
func MarshalVOC(data VOCAnnotatedFile) ([]byte, error) {
	enc, err := xml.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, errors.Wrapf(err, "cannot encode VOC document for %q", data.FilePath)
	}
	return append(enc, '\n'), nil
}

// WriteVOC writes data to dirPath, using the image base name with an .xml extension as the file
// name. Returns the path of the written file.
func WriteVOC(dirPath string, data VOCAnnotatedFile) (string, error) {
	_, baseNoExt, _, err := splitPath(data.FilePath)
	if err != nil {
		return "", err
	}

	enc, err := MarshalVOC(data)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dirPath, baseNoExt+".xml")
	if err := os.WriteFile(path, enc, 0644); err != nil {
		return "", errors.Wrapf(err, "cannot write file %q", path)
	}
	return path, nil
}

// ReadVOC parses the VOC document at path.
func ReadVOC(path string) (data VOCAnnotatedFile, err error) {
	f, err := os.Open(path)
	if err != nil {
		return VOCAnnotatedFile{}, err
	}
	defer closeWithErrCheck(f, &err)

	if err := xml.NewDecoder(f).Decode(&data); err != nil {
		return VOCAnnotatedFile{}, errors.Wrapf(err, "failed to parse VOC input from %q", path)
	}
	return data, nil
}
