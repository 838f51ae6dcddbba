package foodset

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/protobuf/proto"
	"github.com/ryszard/tfutils/proto/tensorflow/core/example" // package tensorflow
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"go.viam.com/test"
)

// readTFRecords splits a TFRecord file into its payloads: an 8 byte length, a 4 byte length
// checksum, the payload and a 4 byte payload checksum per record.
func readTFRecords(t *testing.T, path string) [][]byte {
	t.Helper()
	enc, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)

	var records [][]byte
	for len(enc) > 0 {
		test.That(t, len(enc), test.ShouldBeGreaterThanOrEqualTo, 12)
		n := int(binary.LittleEndian.Uint64(enc[:8]))
		test.That(t, len(enc), test.ShouldBeGreaterThanOrEqualTo, 12+n+4)
		records = append(records, enc[12:12+n])
		enc = enc[12+n+4:]
	}
	return records
}

func TestWriteTFRecord(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	imgPath := filepath.Join(dir, "x.jpg")
	writeTestJPEG(t, imgPath, 100, 80)
	hotdog := filepath.Join(dir, "h.jpg")
	writeTestJPEG(t, hotdog, 100, 80)

	data := []AnnotatedFile{
		{
			Annotations: []Annotation{foodAnnotation("pizza", [4]float64{10, 20, 40, 60})},
			FilePath:    imgPath,
		},
		{
			Annotations: []Annotation{foodAnnotation("salad", [4]float64{0, 0, 10, 10})},
			FilePath:    imgPath,
		},
		{
			Annotations: []Annotation{foodAnnotation("hot dog", [4]float64{0, 0, 50, 40})},
			FilePath:    hotdog,
		},
	}

	core, logs := observer.New(zapcore.WarnLevel)
	recordPath := filepath.Join(dir, "food.record")
	labelMapPath := filepath.Join(dir, "label_map.pbtxt")
	written, err := WriteTFRecord(recordPath, labelMapPath, []string{"banana", "pizza", "hot dog"},
		data, 1, zap.New(core).Sugar())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, written, test.ShouldEqual, 2)
	test.That(t, logs.FilterMessage("Failed to convert, skipping").Len(), test.ShouldEqual, 1)

	records := readTFRecords(t, recordPath)
	test.That(t, records, test.ShouldHaveLength, 2)

	var ex tensorflow.Example
	test.That(t, proto.Unmarshal(records[0], &ex), test.ShouldBeNil)
	features := ex.GetFeatures().GetFeature()
	test.That(t, features["image/width"].GetInt64List().GetValue(), test.ShouldResemble, []int64{100})
	test.That(t, features["image/height"].GetInt64List().GetValue(), test.ShouldResemble, []int64{80})
	test.That(t, string(features["image/format"].GetBytesList().GetValue()[0]), test.ShouldEqual, "jpeg")
	test.That(t, features["image/object/class/label"].GetInt64List().GetValue(), test.ShouldResemble,
		[]int64{2})
	test.That(t, features["image/object/bbox/xmax"].GetFloatList().GetValue(), test.ShouldResemble,
		[]float32{0.4})
	test.That(t, features["image/object/bbox/ymax"].GetFloatList().GetValue(), test.ShouldResemble,
		[]float32{0.75})

	labelMap, err := os.ReadFile(labelMapPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(labelMap), test.ShouldEqual,
		"item {\n  name: \"banana\"\n  id: 1\n}\n"+
			"item {\n  name: \"pizza\"\n  id: 2\n}\n"+
			"item {\n  name: \"hot dog\"\n  id: 3\n}\n")
}

func TestWriteTFRecordShards(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	imgPath := filepath.Join(dir, "x.jpg")
	writeTestJPEG(t, imgPath, 32, 32)
	data := make([]AnnotatedFile, 3)
	for i := range data {
		data[i] = AnnotatedFile{
			Annotations: []Annotation{foodAnnotation("cake", [4]float64{1, 1, 8, 8})},
			FilePath:    imgPath,
		}
	}

	recordPath := filepath.Join(dir, "food.record")
	written, err := WriteTFRecord(recordPath, filepath.Join(dir, "labels.pbtxt"), []string{"cake"},
		data, 2, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, written, test.ShouldEqual, 3)
	test.That(t, readTFRecords(t, recordPath+"-00000-of-00002"), test.ShouldHaveLength, 2)
	test.That(t, readTFRecords(t, recordPath+"-00001-of-00002"), test.ShouldHaveLength, 1)
}
