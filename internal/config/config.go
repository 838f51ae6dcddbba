package config

import (
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/sensorable/foodset"
)

// Default configuration values. They reproduce the layout of a VOC2007 style export from the COCO
// 2014 validation split, run from a directory next to the dataset.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "foodset"

	DefaultDataRoot       = ".."
	DefaultSplit          = "val2014"
	DefaultImagesDir      = "JPEGImages"
	DefaultAnnotationsDir = "Annotations"
	DefaultClassRoot      = "."
	DefaultJPEGQuality    = 90
	DefaultShards         = 1
	DefaultSeed           = 1
)

// Config holds all options of an extraction run.
type Config struct {
	// DataRoot is the dataset root; images are read from DataRoot/images/Split.
	DataRoot string `yaml:"data_root"`

	// Split is the dataset split, e.g. "train2014" or "val2014".
	Split string `yaml:"split"`

	// AnnotationFile is the COCO instances file. Empty means
	// DataRoot/annotations/instances_Split.json.
	AnnotationFile string `yaml:"annotation_file,omitempty"`

	// Supercategory is the category grouping to extract.
	Supercategory string `yaml:"supercategory"`

	Output   OutputConfig   `yaml:"output"`
	Manifest ManifestConfig `yaml:"manifest"`
	Image    ImageConfig    `yaml:"image"`
	TFRecord TFRecordConfig `yaml:"tfrecord"`

	// Report is the path of the Markdown run report. Empty disables the report.
	Report string `yaml:"report,omitempty"`

	// LedgerDir is the directory of the SQLite run ledger. Empty means the XDG data directory.
	LedgerDir string `yaml:"ledger_dir,omitempty"`
}

// OutputConfig describes the produced directory layout.
type OutputConfig struct {
	ImagesDir      string            `yaml:"images_dir"`
	AnnotationsDir string            `yaml:"annotations_dir"`
	ClassRoot      string            `yaml:"class_root"`
	ClassDirs      map[string]string `yaml:"class_dirs"`
	AllClassDirs   bool              `yaml:"all_class_dirs"`
}

// ManifestSplit is one output manifest and its share of the images in percent.
type ManifestSplit struct {
	Path    string `yaml:"path"`
	Percent int    `yaml:"percent"`
}

// ManifestConfig describes the training manifest output.
type ManifestConfig struct {
	// Path is the manifest written when Splits is empty. Empty means Split.txt.
	Path string `yaml:"path,omitempty"`

	// Splits divides the manifest randomly into several files.
	Splits []ManifestSplit `yaml:"splits,omitempty"`

	// Seed makes the random division reproducible.
	Seed int64 `yaml:"seed"`
}

// ImageConfig controls re-encoding of the flat image copies.
type ImageConfig struct {
	ResizeLonger  int `yaml:"resize_longer"`
	ResizeShorter int `yaml:"resize_shorter"`
	JPEGQuality   int `yaml:"jpeg_quality"`
}

// TFRecordConfig controls the optional TFRecord export.
type TFRecordConfig struct {
	Path     string `yaml:"path,omitempty"`
	LabelMap string `yaml:"label_map,omitempty"`
	Shards   int    `yaml:"shards"`
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		DataRoot:      DefaultDataRoot,
		Split:         DefaultSplit,
		Supercategory: foodset.DefaultSupercategory,
		Output: OutputConfig{
			ImagesDir:      DefaultImagesDir,
			AnnotationsDir: DefaultAnnotationsDir,
			ClassRoot:      DefaultClassRoot,
			ClassDirs:      foodset.DefaultClassDirs(),
		},
		Manifest: ManifestConfig{Seed: DefaultSeed},
		Image:    ImageConfig{JPEGQuality: DefaultJPEGQuality},
		TFRecord: TFRecordConfig{Shards: DefaultShards},
	}
}

// XDGDataDir returns the XDG data directory, the default home of the run ledger.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory searched for a configuration file.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// AnnotationPath returns the COCO instances file to load.
func (c *Config) AnnotationPath() string {
	if c.AnnotationFile != "" {
		return c.AnnotationFile
	}
	return filepath.Join(c.DataRoot, "annotations", "instances_"+c.Split+".json")
}

// LedgerPath returns the directory of the run ledger.
func (c *Config) LedgerPath() string {
	if c.LedgerDir != "" {
		return c.LedgerDir
	}
	return XDGDataDir()
}

// ManifestOutputs returns the manifest paths with their cumulative split percentages.
func (c *Config) ManifestOutputs() (paths []string, cumulative []int) {
	if len(c.Manifest.Splits) == 0 {
		path := c.Manifest.Path
		if path == "" {
			path = c.Split + ".txt"
		}
		return []string{path}, []int{100}
	}

	var sum int
	for _, s := range c.Manifest.Splits {
		sum += s.Percent
		paths = append(paths, s.Path)
		cumulative = append(cumulative, sum)
	}
	return paths, cumulative
}

// ExtractorOptions converts the configuration to extractor options.
func (c *Config) ExtractorOptions() foodset.Options {
	return foodset.Options{
		DataRoot:       c.DataRoot,
		Split:          c.Split,
		Supercategory:  c.Supercategory,
		ImagesDir:      c.Output.ImagesDir,
		AnnotationsDir: c.Output.AnnotationsDir,
		ClassRoot:      c.Output.ClassRoot,
		ClassDirs:      c.Output.ClassDirs,
		AllClassDirs:   c.Output.AllClassDirs,
		ResizeLonger:   c.Image.ResizeLonger,
		ResizeShorter:  c.Image.ResizeShorter,
		JPEGQuality:    c.Image.JPEGQuality,
	}
}

// Validate checks if the configuration is valid and returns the first problem found.
func (c *Config) Validate() error {
	if c.DataRoot == "" {
		return ErrMissingDataRoot
	}
	if c.Split == "" {
		return ErrMissingSplit
	}
	if c.Supercategory == "" {
		return ErrMissingSupercategory
	}
	if filepath.Clean(c.Output.ImagesDir) == filepath.Clean(c.Output.AnnotationsDir) {
		return ErrSameOutputDirs
	}

	if len(c.Manifest.Splits) > 0 {
		var sum int
		for _, s := range c.Manifest.Splits {
			if s.Percent < 0 || s.Path == "" {
				return ErrInvalidSplits
			}
			sum += s.Percent
		}
		if sum != 100 {
			return ErrInvalidSplits
		}
	}

	if c.Image.ResizeLonger < 0 || c.Image.ResizeShorter < 0 {
		return ErrInvalidResize
	}
	if c.Image.JPEGQuality < 1 || c.Image.JPEGQuality > 100 {
		return ErrInvalidJPEGQuality
	}

	if c.TFRecord.Path != "" {
		if c.TFRecord.Shards <= 0 {
			return ErrInvalidShards
		}
		if c.TFRecord.LabelMap == "" {
			return ErrMissingLabelMap
		}
	}

	return nil
}
