package foodset

// TFRecord object detection specific functionality.

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/golang/protobuf/proto"
	"github.com/pkg/errors"
	"github.com/ryszard/tfutils/go/example"
	"github.com/ryszard/tfutils/go/tfrecord"
	"github.com/ryszard/tfutils/proto/tensorflow/core/example" // package tensorflow
	"go.uber.org/zap"
)

// TFFeatureMap maps feature names to their values. Values must be convertible to
// tensorflow.Feature.
type TFFeatureMap map[string]interface{}

// TFRecordAnnotatedFile defines the TFRecord annotation structure for a single file.
type TFRecordAnnotatedFile struct {
	Annotations TFFeatureMap
	FilePath    string
}

// toTFRecord converts the intermediate representation for a single file to the TFRecord format.
// Class IDs are looked up in labelIDs.
func toTFRecord(fileData AnnotatedFile, labelIDs map[string]int64) (TFRecordAnnotatedFile, error) {
	// Get the image width and height.
	img, format, err := decodeImageConfig(fileData.FilePath)
	if err != nil {
		return TFRecordAnnotatedFile{}, errors.Wrap(err, "failed to decode the image metadata")
	}

	// Read the image data.
	imgData, err := os.ReadFile(fileData.FilePath)
	if err != nil {
		return TFRecordAnnotatedFile{}, errors.Wrap(err, "failed to read the image")
	}

	// Prepare the feature map for the per file data.
	f := make(TFFeatureMap, 16)
	f["image/height"] = img.Height
	f["image/width"] = img.Width
	f["image/filename"] = fileData.FilePath
	f["image/source_id"] = fileData.FilePath
	f["image/encoded"] = imgData
	f["image/format"] = format

	// Prepare the per label data.
	numLabels := len(fileData.Annotations)
	xmins := make([]float32, numLabels)
	ymins := make([]float32, numLabels)
	xmaxs := make([]float32, numLabels)
	ymaxs := make([]float32, numLabels)
	classes := make([]string, numLabels)
	classIDs := make([]int64, numLabels)
	for i, a := range fileData.Annotations {
		id, ok := labelIDs[a.Label]
		if !ok {
			return TFRecordAnnotatedFile{}, errors.Errorf("label %q is not in the label map", a.Label)
		}

		xmins[i] = float32(a.Coords[0]) / float32(img.Width)
		ymins[i] = float32(a.Coords[1]) / float32(img.Height)
		xmaxs[i] = float32(a.Coords[2]) / float32(img.Width)
		ymaxs[i] = float32(a.Coords[3]) / float32(img.Height)
		classes[i] = a.Label
		classIDs[i] = id
	}
	f["image/object/bbox/xmin"] = xmins
	f["image/object/bbox/ymin"] = ymins
	f["image/object/bbox/xmax"] = xmaxs
	f["image/object/bbox/ymax"] = ymaxs
	f["image/object/class/text"] = classes
	f["image/object/class/label"] = classIDs

	return TFRecordAnnotatedFile{
		Annotations: f,
		FilePath:    fileData.FilePath,
	}, nil
}

// WriteTFRecord does a streaming conversion, serialisation and file write for the annotation data
// to one or more TFRecord files stored under recordFilePath (with suffixes added when numShards>1).
//
// The label map assigns ID i+1 to labels[i] and is written to labelMapPath. Files that cannot be
// converted are logged and skipped. Returns the number of examples written.
func WriteTFRecord(recordFilePath, labelMapPath string, labels []string, data []AnnotatedFile,
	numShards int, logger *zap.SugaredLogger) (written int, err error) {
	defer func() {
		if e := recover(); e != nil {
			err = errors.Errorf("conversion to TensorFlow Example failed: %v", e)
		}
	}()

	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if numShards <= 0 {
		numShards = 1
	}

	labelIDs := make(map[string]int64, len(labels))
	for i, l := range labels {
		labelIDs[l] = int64(i + 1)
	}

	fmtShardSuffix := func(idx int) string {
		return fmt.Sprintf("-%05d-of-%05d", idx, numShards)
	}

	var shardFile *os.File
	defer func() {
		if shardFile != nil {
			closeWithErrCheck(shardFile, &err)
		}
	}()
	shardSize := int(math.Ceil(float64(len(data)) / float64(numShards)))
	shardIdx := -1

	// Convert and serialise one data element at a time.
	for i, fileData := range data {
		// Check if a new shard file needs to be opened for writing.
		if i%shardSize == 0 {
			shardIdx++

			// Close the previous shard file.
			if shardFile != nil {
				err := shardFile.Close()
				shardFile = nil
				if err != nil {
					return written, errors.Wrap(err, "failed to close shard")
				}
			}

			// Create the new shard file.
			shardPath := recordFilePath
			if numShards > 1 {
				shardPath += fmtShardSuffix(shardIdx)
			}
			f, err := os.Create(shardPath)
			if err != nil {
				return written, errors.Wrapf(err, "failed to create shard at %q", shardPath)
			}
			shardFile = f
		}

		// Convert the file data to an example.
		tfFileData, err := toTFRecord(fileData, labelIDs)
		if err != nil {
			logger.Warnw("Failed to convert, skipping", "path", fileData.FilePath, "error", err)
			continue
		}
		tfExample := example.New(tfFileData.Annotations)

		// Write the example.
		if err := writeTFRecordExample(shardFile, tfExample); err != nil {
			return written, errors.Wrap(err, "failed to write example")
		}
		written++
	}

	return written, saveTFRecordLabelMap(labelMapPath, labels)
}

// writeTFRecordExample serialises the example and writes it as a TFRecord to w.
func writeTFRecordExample(w io.Writer, e *tensorflow.Example) error {
	enc, err := proto.Marshal(e)
	if err != nil {
		return err
	}

	return tfrecord.Write(w, enc)
}

// saveTFRecordLabelMap writes the labels in the StringIntLabelMap prototxt format to path. IDs
// start at 1, in the order of labels.
func saveTFRecordLabelMap(path string, labels []string) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create the label map file %q", path)
	}
	defer closeWithErrCheck(file, &err)

	buf := bufio.NewWriter(file)
	for i, l := range labels {
		_, err := fmt.Fprintf(buf, "item {\n  name: %s\n  id: %d\n}\n", strconv.Quote(l), i+1)
		if err != nil {
			return errors.Wrapf(err, "failed to write the label map %q", path)
		}
	}
	return buf.Flush()
}
