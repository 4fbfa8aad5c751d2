package store

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Stage file names inside a run directory. The numeric prefixes keep
// directory listings in pipeline order.
const (
	// GenerationFile holds one GenerationRecord per line.
	GenerationFile = "01_gen.jsonl"

	// VerifiedFile holds one VerifiedRecord per line.
	VerifiedFile = "02_verify.jsonl"

	// TaggedFile holds one TaggedRecord per line.
	TaggedFile = "02_tagged.jsonl"

	// MetricsCSVFile holds the overall and per-domain metric rows.
	MetricsCSVFile = "03_metrics.csv"

	// DetailsCSVFile holds one row per question with cell and similarity.
	DetailsCSVFile = "03_details.csv"

	// SummaryFile holds the human-readable gap analysis block.
	SummaryFile = "03_summary.txt"

	// ManifestFile records run identity, config, and stage counts.
	ManifestFile = "manifest.json"

	// TaxonomyFile is the cumulative taxonomy table at the results root,
	// rebuilt from every tagged file beneath it.
	TaxonomyFile = "taxonomy.md"
)

// Layout locates every artifact of one evaluation run inside the
// results tree: <root>/<dataset>/<model-safe>/<split>/.
type Layout struct {
	// Root is the results root directory shared by all runs.
	Root string

	// Dataset is the benchmark name, e.g. "gsm8k".
	Dataset string

	// Model is the raw model identifier; path construction applies
	// ModelSafe to it.
	Model string

	// Split is the dataset split, e.g. "pilot".
	Split string
}

// ModelSafe converts a model identifier into a path-safe directory
// name. Provider-qualified identifiers such as "openai/gpt-4o-mini"
// contain slashes that would otherwise nest directories.
func ModelSafe(model string) string {
	return strings.ReplaceAll(model, "/", "_")
}

// RunDir returns the directory holding this run's stage files.
func (l Layout) RunDir() string {
	return filepath.Join(l.Root, l.Dataset, ModelSafe(l.Model), l.Split)
}

// EnsureRunDir creates the run directory and any missing parents.
func (l Layout) EnsureRunDir() error {
	if err := os.MkdirAll(l.RunDir(), 0o755); err != nil {
		return fmt.Errorf("create run directory %s: %w", l.RunDir(), err)
	}
	return nil
}

// GenerationPath returns the generation stage output path.
func (l Layout) GenerationPath() string { return filepath.Join(l.RunDir(), GenerationFile) }

// VerifiedPath returns the verification stage output path.
func (l Layout) VerifiedPath() string { return filepath.Join(l.RunDir(), VerifiedFile) }

// TaggedPath returns the tagging stage output path.
func (l Layout) TaggedPath() string { return filepath.Join(l.RunDir(), TaggedFile) }

// MetricsCSVPath returns the metrics CSV path.
func (l Layout) MetricsCSVPath() string { return filepath.Join(l.RunDir(), MetricsCSVFile) }

// DetailsCSVPath returns the per-question details CSV path.
func (l Layout) DetailsCSVPath() string { return filepath.Join(l.RunDir(), DetailsCSVFile) }

// SummaryPath returns the text summary path.
func (l Layout) SummaryPath() string { return filepath.Join(l.RunDir(), SummaryFile) }

// ManifestPath returns the run manifest path.
func (l Layout) ManifestPath() string { return filepath.Join(l.RunDir(), ManifestFile) }

// TaxonomyPath returns the cumulative taxonomy table path. It lives at
// the results root, not inside the run directory, because it summarizes
// every run beneath the root.
func (l Layout) TaxonomyPath() string { return filepath.Join(l.Root, TaxonomyFile) }

// FindTaggedFiles returns every tagged-stage file under root, sorted by
// path. The taxonomy summary is always rebuilt from a full scan of
// these files, never from an incremental counter. A missing root yields
// an empty list.
func FindTaggedFiles(root string) ([]string, error) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == TaggedFile {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	sort.Strings(paths)
	return paths, nil
}

// StageStats summarizes one pipeline stage for the run manifest.
type StageStats struct {
	// Processed is the number of records the stage produced.
	Processed int `json:"processed"`

	// Skipped is the number of malformed or unmatched inputs dropped.
	Skipped int `json:"skipped,omitempty"`

	// Failed is the number of items lost to provider failures, such as
	// questions whose every judge call failed.
	Failed int `json:"failed,omitempty"`

	// TokensIn is the total prompt tokens the stage consumed.
	TokensIn int `json:"tokens_in,omitempty"`

	// TokensOut is the total completion tokens the stage consumed.
	TokensOut int `json:"tokens_out,omitempty"`

	// DurationS is the stage wall-clock duration in seconds.
	DurationS float64 `json:"duration_s"`
}

// RunManifest records what one pipeline run did: identity, the
// configuration it ran with, and per-stage outcome counts. It is
// written next to the stage outputs so a results directory is
// self-describing.
type RunManifest struct {
	// RunID is the UUID assigned when the run started.
	RunID string `json:"run_id"`

	// CreatedAt is the run start time.
	CreatedAt time.Time `json:"created_at"`

	// Config echoes the run configuration for reproducibility.
	Config any `json:"config,omitempty"`

	// Stages maps stage name to its outcome counts.
	Stages map[string]StageStats `json:"stages"`
}

// WriteManifest writes the run manifest as indented JSON.
func WriteManifest(path string, manifest RunManifest) error {
	return WriteJSON(path, manifest)
}

// ReadManifest loads a run manifest. The config echo decodes as generic
// JSON since its concrete type belongs to the caller.
func ReadManifest(path string) (RunManifest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return RunManifest{}, fmt.Errorf("read manifest: %w", err)
	}

	var manifest RunManifest
	if err := json.Unmarshal(content, &manifest); err != nil {
		return RunManifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	return manifest, nil
}
