package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sensorable/foodset"
	"github.com/sensorable/foodset/internal/config"
	"github.com/sensorable/foodset/internal/ledger"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Extract the images of a supercategory in VOC layout",
		Long: `Run loads the COCO instances file of a split, selects every image with an annotation of
the supercategory and writes:
- a copy of the image to the images directory
- a VOC XML document for the first matching annotation to the annotations directory
- a copy of the image to the folder of its category
- the manifest file(s) with one "path class" line per written image

Images missing from the dataset folder are skipped. Interrupting the run keeps the output
written so far.

Examples:
  # Extract food images of the validation split next to the dataset
  foodset run --data-root .. --split val2014

  # Extract with a Markdown report and record the run in the ledger
  foodset run --report report.md --ledger`,
		Args: cobra.NoArgs,
		RunE: runRunCmd,
	}

	cmd.Flags().String("data-root", config.DefaultDataRoot, "Dataset root with images/ and annotations/")
	cmd.Flags().StringP("split", "s", config.DefaultSplit, "Dataset split")
	cmd.Flags().String("annotation-file", "", "COCO instances file (default {data-root}/annotations/instances_{split}.json)")
	cmd.Flags().String("supercategory", foodset.DefaultSupercategory, "Supercategory to extract")
	cmd.Flags().String("images-dir", config.DefaultImagesDir, "Directory of the flat image copies")
	cmd.Flags().String("annotations-dir", config.DefaultAnnotationsDir, "Directory of the VOC documents")
	cmd.Flags().String("class-root", config.DefaultClassRoot, "Parent directory of the per-category folders")
	cmd.Flags().Bool("all-class-dirs", false, "Create a folder for categories missing in the class table")
	cmd.Flags().StringP("manifest", "m", "", "Manifest file (default {split}.txt)")
	cmd.Flags().Int("resize-longer", 0, "Resize so the longer side has this length")
	cmd.Flags().Int("resize-shorter", 0, "Resize so the shorter side has this length")
	cmd.Flags().Int("quality", config.DefaultJPEGQuality, "JPEG quality of resized images")
	cmd.Flags().String("tfrecord", "", "Also write a TFRecord file to this path")
	cmd.Flags().String("label-map", "", "Label map written with the TFRecord file")
	cmd.Flags().Int("shards", config.DefaultShards, "Number of TFRecord shards")
	cmd.Flags().StringP("report", "r", "", "Write a Markdown report to this path")
	cmd.Flags().BoolP("ledger", "l", false, "Record the run in the ledger")
	cmd.Flags().String("ledger-dir", "", "Ledger directory (default XDG data dir)")

	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration error")
	}

	record, err := cmd.Flags().GetBool("ledger")
	if err != nil {
		return err
	}

	logger, err := newLogger(getVerboseFlag(cmd))
	if err != nil {
		return errors.Wrap(err, "failed to create logger")
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runExtraction(ctx, cmd.OutOrStdout(), cfg, record, logger)
}

// loadConfig returns the configuration file named by --config or found in the default locations,
// or the defaults if there is none.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var explicit string
	if f := cmd.Flags().Lookup("config"); f != nil {
		explicit = f.Value.String()
	}

	path := config.FindConfigFile(explicit)
	if path == "" {
		if explicit != "" {
			return nil, errors.Errorf("configuration file not found: %s", explicit)
		}
		return config.NewConfig(), nil
	}
	return config.Load(path)
}

// buildConfig loads the configuration and applies the flags set on the command line.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	stringFlags := map[string]*string{
		"data-root":       &cfg.DataRoot,
		"split":           &cfg.Split,
		"annotation-file": &cfg.AnnotationFile,
		"supercategory":   &cfg.Supercategory,
		"images-dir":      &cfg.Output.ImagesDir,
		"annotations-dir": &cfg.Output.AnnotationsDir,
		"class-root":      &cfg.Output.ClassRoot,
		"manifest":        &cfg.Manifest.Path,
		"tfrecord":        &cfg.TFRecord.Path,
		"label-map":       &cfg.TFRecord.LabelMap,
		"report":          &cfg.Report,
		"ledger-dir":      &cfg.LedgerDir,
	}
	for name, dst := range stringFlags {
		if !cmd.Flags().Changed(name) {
			continue
		}
		if *dst, err = cmd.Flags().GetString(name); err != nil {
			return nil, err
		}
	}

	intFlags := map[string]*int{
		"resize-longer":  &cfg.Image.ResizeLonger,
		"resize-shorter": &cfg.Image.ResizeShorter,
		"quality":        &cfg.Image.JPEGQuality,
		"shards":         &cfg.TFRecord.Shards,
	}
	for name, dst := range intFlags {
		if !cmd.Flags().Changed(name) {
			continue
		}
		if *dst, err = cmd.Flags().GetInt(name); err != nil {
			return nil, err
		}
	}

	if cmd.Flags().Changed("all-class-dirs") {
		if cfg.Output.AllClassDirs, err = cmd.Flags().GetBool("all-class-dirs"); err != nil {
			return nil, err
		}
	}
	// A manifest path on the command line replaces configured splits.
	if cmd.Flags().Changed("manifest") {
		cfg.Manifest.Splits = nil
	}

	return cfg, nil
}

// runExtraction runs the pipeline for cfg and writes all configured outputs.
func runExtraction(ctx context.Context, out io.Writer, cfg *config.Config, record bool,
	logger *zap.SugaredLogger,
) error {
	logger.Infow("Loading annotations", "path", cfg.AnnotationPath())
	idx, err := foodset.LoadCOCO(cfg.AnnotationPath())
	if err != nil {
		return err
	}

	ext, err := foodset.NewExtractor(idx, cfg.ExtractorOptions(), logger).Run(ctx)
	if err != nil {
		return err
	}

	if err := writeManifests(cfg, ext.Manifest, logger); err != nil {
		return err
	}

	if cfg.TFRecord.Path != "" {
		labels := make([]string, len(ext.Categories))
		for i, c := range ext.Categories {
			labels[i] = c.Name
		}
		n, err := foodset.WriteTFRecord(cfg.TFRecord.Path, cfg.TFRecord.LabelMap, labels, ext.Files,
			cfg.TFRecord.Shards, logger)
		if err != nil {
			return err
		}
		logger.Infow("Wrote TFRecord", "path", cfg.TFRecord.Path, "examples", n)
	}

	if cfg.Report != "" {
		if err := writeReport(cfg.Report, ext.Summary); err != nil {
			return err
		}
		logger.Infow("Wrote report", "path", cfg.Report)
	}

	if record {
		// The run is recorded even if ctx was cancelled.
		if err := recordRun(context.WithoutCancel(ctx), cfg, ext.Summary, logger); err != nil {
			return err
		}
	}

	s := ext.Summary
	fmt.Fprintf(out, "%d of %d images written (%d missing, %d without %s annotation, %d failed)\n",
		s.Count(foodset.Written), len(s.Items), s.Count(foodset.SkippedMissingSource),
		s.Count(foodset.SkippedNoFoodAnnotation), cfg.Supercategory, s.Count(foodset.Failed))
	if s.Interrupted {
		fmt.Fprintln(out, "The run was interrupted; the output is partial.")
	}
	return nil
}

func writeManifests(cfg *config.Config, m foodset.Manifest, logger *zap.SugaredLogger) error {
	paths, cumulative := cfg.ManifestOutputs()
	parts, err := m.Split(cumulative, cfg.Manifest.Seed)
	if err != nil {
		return err
	}
	for i, part := range parts {
		if err := foodset.WriteManifest(paths[i], part); err != nil {
			return err
		}
		logger.Infow("Wrote manifest", "path", paths[i], "entries", len(part))
	}
	return nil
}

func writeReport(path string, s *foodset.Summary) (err error) {
	f, err := os.Create(path) //nolint:gosec // User-provided report path is intentional
	if err != nil {
		return errors.Wrap(err, "failed to create report file")
	}
	defer multierr.AppendInvoke(&err, multierr.Close(f))

	return errors.Wrap(s.WriteMarkdown(f), "failed to write report")
}

func recordRun(ctx context.Context, cfg *config.Config, s *foodset.Summary,
	logger *zap.SugaredLogger,
) (err error) {
	l, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(l))

	id, err := l.RecordRun(ctx, cfg.Split, s)
	if err != nil {
		return err
	}
	logger.Infow("Recorded run", "ledger", l.Path(), "run", id)
	return nil
}
