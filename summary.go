package foodset

import (
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
)

// Outcome is the terminal state of a single image.
type Outcome int

// The image outcomes.
const (
	Written                 Outcome = iota // The image was copied and its annotation written.
	SkippedMissingSource                   // The source image does not exist.
	SkippedNoFoodAnnotation                // No annotation of the image is in the food grouping.
	Failed                                 // An I/O error occurred; see ItemResult.Err.
)

var outcomeNames = [...]string{
	Written:                 "written",
	SkippedMissingSource:    "missing source",
	SkippedNoFoodAnnotation: "no food annotation",
	Failed:                  "failed",
}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return "unknown"
	}
	return outcomeNames[o]
}

// ItemResult records what happened to one selected image.
type ItemResult struct {
	ImageID  int
	FileName string
	Category string // The matched category, empty if none matched.
	Outcome  Outcome
	Err      error // Set for Failed.
}

// Summary collects the per-image results of a run.
type Summary struct {
	Started     time.Time
	Finished    time.Time
	Categories  []string // The food categories, in class index order.
	Items       []ItemResult
	Interrupted bool // The run stopped before all selected images were processed.
}

// Add appends r to the results.
func (s *Summary) Add(r ItemResult) {
	s.Items = append(s.Items, r)
}

// Count returns the number of images with outcome o.
func (s *Summary) Count(o Outcome) int {
	n := 0
	for _, r := range s.Items {
		if r.Outcome == o {
			n++
		}
	}
	return n
}

// CategoryCounts returns the number of written images per matched category.
func (s *Summary) CategoryCounts() map[string]int {
	counts := make(map[string]int, len(s.Categories))
	for _, r := range s.Items {
		if r.Outcome == Written {
			counts[r.Category]++
		}
	}
	return counts
}

// WriteMarkdown renders the summary as a Markdown report to w.
func (s *Summary) WriteMarkdown(w io.Writer) error {
	md := markdown.NewMarkdown(w)

	md.H1("Food Extraction Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Started", s.Started.Format(time.RFC3339)},
			{"Duration", s.Finished.Sub(s.Started).Round(time.Millisecond).String()},
			{"Selected images", strconv.Itoa(len(s.Items))},
			{"Categories", strconv.Itoa(len(s.Categories))},
		},
	})
	md.PlainText("")

	if s.Interrupted {
		md.Warningf("The run was interrupted after %d images; the output is partial.", len(s.Items))
		md.PlainText("")
	}

	md.H2("Outcomes")
	rows := make([][]string, 0, len(outcomeNames))
	for o := range outcomeNames {
		rows = append(rows, []string{Outcome(o).String(), strconv.Itoa(s.Count(Outcome(o)))})
	}
	md.Table(markdown.TableSet{Header: []string{"Outcome", "Images"}, Rows: rows})
	md.PlainText("")

	md.H2("Categories")
	counts := s.CategoryCounts()
	rows = make([][]string, 0, len(s.Categories))
	for i, c := range s.Categories {
		rows = append(rows, []string{strconv.Itoa(i), c, strconv.Itoa(counts[c])})
	}
	md.Table(markdown.TableSet{Header: []string{"Class", "Category", "Images"}, Rows: rows})
	md.PlainText("")

	var problems []string
	for _, r := range s.Items {
		switch r.Outcome {
		case SkippedMissingSource, Failed:
			line := r.FileName + ": " + r.Outcome.String()
			if r.Err != nil {
				line += " (" + r.Err.Error() + ")"
			}
			problems = append(problems, line)
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		md.H2("Skipped Images")
		md.BulletList(problems...)
	}

	return md.Build()
}
