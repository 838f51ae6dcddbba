package config

import "github.com/pkg/errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrMissingDataRoot is returned when no dataset root directory is set.
	ErrMissingDataRoot = errors.New("missing data root: set data_root or use --data-root")

	// ErrMissingSplit is returned when no dataset split is set.
	ErrMissingSplit = errors.New("missing split: set split or use --split")

	// ErrMissingSupercategory is returned when the grouping to extract is empty.
	ErrMissingSupercategory = errors.New("missing supercategory")

	// ErrSameOutputDirs is returned when images and annotations would share a directory.
	ErrSameOutputDirs = errors.New("the images and annotations directories must differ")

	// ErrInvalidSplits is returned when the manifest split percentages are negative or do not
	// add up to 100.
	ErrInvalidSplits = errors.New("invalid manifest splits: percentages must be non-negative and add up to 100")

	// ErrInvalidResize is returned for negative target image sizes.
	ErrInvalidResize = errors.New("invalid resize: target sizes must be non-negative")

	// ErrInvalidJPEGQuality is returned for a JPEG quality outside [1, 100].
	ErrInvalidJPEGQuality = errors.New("invalid jpeg quality: must be in [1, 100]")

	// ErrInvalidShards is returned for a non-positive TFRecord shard count.
	ErrInvalidShards = errors.New("invalid tfrecord shards: must be positive")

	// ErrMissingLabelMap is returned when a TFRecord is requested without a label map path.
	ErrMissingLabelMap = errors.New("missing tfrecord label map path")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
