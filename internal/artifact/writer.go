package artifact

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/fidelity/internal/compare"
	"github.com/roach88/fidelity/internal/config"
	"github.com/roach88/fidelity/internal/harness"
	"github.com/roach88/fidelity/internal/report"
)

// Options configures a Writer.
type Options struct {
	// ContactSheets adds a sheet.png to every golden directory.
	ContactSheets bool

	Logger *slog.Logger
}

// Writer writes a results tree under Root. It implements harness.Sink.
type Writer struct {
	root          string
	contactSheets bool
	logger        *slog.Logger
}

var _ harness.Sink = (*Writer)(nil)

// NewWriter creates a Writer for root.
func NewWriter(root string, opts Options) *Writer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Writer{
		root:          root,
		contactSheets: opts.ContactSheets,
		logger:        logger,
	}
}

// Begin removes any previous tree at Root and recreates it empty.
func (w *Writer) Begin(cfg config.Config) error {
	clean := filepath.Clean(w.root)
	if clean == "." || clean == string(filepath.Separator) || clean == filepath.VolumeName(clean)+string(filepath.Separator) {
		return fmt.Errorf("refusing to use %q as output directory", w.root)
	}
	if err := os.RemoveAll(w.root); err != nil {
		return fmt.Errorf("clear output: %w", err)
	}
	if err := os.MkdirAll(w.root, 0755); err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	w.logger.Debug("output prepared", "root", w.root, "scenarios", len(cfg))
	return nil
}

// WriteScenario writes one directory per successful comparison of result.
// Failed comparisons get no directory. A golden that cannot be written does
// not stop its siblings; its error is returned under the golden's name.
func (w *Writer) WriteScenario(result harness.ScenarioResult) (map[string]error, error) {
	slug := result.Scenario.Slug
	dir := filepath.Join(w.root, slug)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create scenario directory: %w", err)
	}

	var failed map[string]error
	for _, r := range result.Results {
		if !r.OK() {
			continue
		}
		if err := w.writeGolden(dir, r.Golden.Name, r.Comparison); err != nil {
			w.logger.Error("write golden failed", "slug", slug, "golden", r.Golden.Name, "error", err)
			if failed == nil {
				failed = make(map[string]error)
			}
			failed[r.Golden.Name] = fmt.Errorf("write %s: %w", filepath.Join(slug, r.Golden.Name), err)
			continue
		}
		w.logger.Debug("golden written", "slug", slug, "golden", r.Golden.Name)
	}
	return failed, nil
}

// Finish writes config.json, report.json and index.html.
func (w *Writer) Finish(batch *harness.BatchResult) error {
	cfgJSON, err := batch.Config.JSON()
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(w.root, report.ConfigFile), cfgJSON, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	reportJSON, err := json.MarshalIndent(NewReport(batch), "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	reportJSON = append(reportJSON, '\n')
	if err := writeFileAtomic(filepath.Join(w.root, report.ReportFile), reportJSON, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	index, err := report.Index(report.Build(batch.Config))
	if err != nil {
		return err
	}
	if err := writeFileAtomic(filepath.Join(w.root, report.IndexFile), index, 0644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	w.logger.Info("results recorded", "root", w.root)
	return nil
}

type file struct {
	name string
	data []byte
}

func (w *Writer) goldenFiles(cmp *compare.Result) ([]file, error) {
	analysis, err := EncodeAnalysis(cmp.Analysis)
	if err != nil {
		return nil, err
	}
	files := []file{
		{report.CandidateFile, cmp.Images.Candidate},
		{report.GoldenFile, cmp.Images.Golden},
		{report.DeltaFile, cmp.Images.Delta},
		{report.BooleanFile, cmp.Images.Boolean},
		{report.AnalysisFile, analysis},
	}
	if w.contactSheets {
		sheet, err := report.Sheet(cmp.Images)
		if err != nil {
			return nil, err
		}
		files = append(files, file{report.SheetFile, sheet})
	}
	return files, nil
}

// writeGolden stages the files of one comparison in a temporary sibling
// directory and renames it to dir/name.
func (w *Writer) writeGolden(dir, name string, cmp *compare.Result) error {
	files, err := w.goldenFiles(cmp)
	if err != nil {
		return err
	}

	tmp, err := os.MkdirTemp(dir, ".tmp-"+name+"-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	if err := os.Chmod(tmp, 0755); err != nil {
		return err
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(tmp, f.name), f.data, 0644); err != nil {
			return err
		}
	}

	final := filepath.Join(dir, name)
	if err := os.RemoveAll(final); err != nil {
		return err
	}
	return os.Rename(tmp, final)
}

// EncodeAnalysis returns the analysis.json document for a.
func EncodeAnalysis(a compare.Analysis) ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode analysis: %w", err)
	}
	return data, nil
}

// writeFileAtomic writes data to a temporary file in the same directory and
// renames it over path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	_ = tmp.Sync()
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
