// Package runconfig loads the pipeline configuration document and derives
// per-run effective configuration from it.
//
// A document has a global section and two ordered run arrays:
//
//	global:
//	  directories: {...}
//	  methods: {use_chai: true, use_boltz: true, use_msa: true}
//	  motifs: {...}
//	prediction_runs:
//	  - id: standard
//	    parameters: {methods: {use_msa: false}}
//	analysis_runs:
//	  - id: whole
//	    source_predictions: [standard]
//	    metrics: [rmsd, plddt]
//
// A document with neither run array is the legacy flat shape: the whole
// document is the global section and a single "default" prediction run and
// "default" analysis run are implied.
package runconfig

import (
	"fmt"
	"os"
	"strings"

	"github.com/westberg-lab/foldrun/internal/errors"
	"gopkg.in/yaml.v3"
)

// RunKind distinguishes prediction runs from analysis runs.
type RunKind int

const (
	Prediction RunKind = iota
	Analysis
)

// String returns the kind name used in logs and on the command line.
func (k RunKind) String() string {
	switch k {
	case Prediction:
		return "prediction"
	case Analysis:
		return "analysis"
	default:
		return "unknown"
	}
}

// Metric is an analysis metric.
type Metric string

const (
	MetricRMSD  Metric = "rmsd"
	MetricPLDDT Metric = "plddt"
)

// AllMetrics returns every metric in execution order.
func AllMetrics() []Metric {
	return []Metric{MetricRMSD, MetricPLDDT}
}

// DefaultRunID names the implicit runs of a legacy document.
const DefaultRunID = "default"

// DefaultAnalysisType is the analysis type of runs that do not declare one.
const DefaultAnalysisType = "whole_protein"

// reservedKeys are run object keys that are not parameters.
var reservedKeys = []string{
	"id", "enabled", "description", "parameters",
	"source_predictions", "analysis_type", "motif_id", "metrics",
}

// RunDefinition is one declared prediction or analysis run.
type RunDefinition struct {
	ID          string
	Kind        RunKind
	Enabled     bool
	Description string
	// Parameters overrides the global section for this run.
	Parameters Value

	// Analysis runs only.
	SourcePredictions []string
	AnalysisType      string
	MotifID           string
	Metrics           []Metric
}

// HasMetric reports whether the run requests m.
func (r RunDefinition) HasMetric(m Metric) bool {
	for _, have := range r.Metrics {
		if have == m {
			return true
		}
	}
	return false
}

// Document is a loaded configuration document.
type Document struct {
	// Path is where the document was read from, empty for built-in defaults.
	Path string
	// Raw is the document exactly as parsed. It is the fingerprint input.
	Raw Value
	// Global is the built-in defaults merged with the document's global section.
	Global Value
	// Legacy is set when the document has the flat shape.
	Legacy bool

	PredictionRuns []RunDefinition
	AnalysisRuns   []RunDefinition

	// problems collects structural issues found while decoding runs;
	// Validate reports them together with semantic checks.
	problems []*errors.ValidationError
}

// Load reads and decodes the document at path. It fails with
// ErrConfigNotFound when path does not exist and ErrConfigParse when the
// content is malformed or invalid. JSON documents are accepted since JSON is
// a subset of YAML.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewConfigError("configuration file does not exist", errors.ErrConfigNotFound).WithPath(path)
		}
		return nil, errors.NewConfigError("reading configuration", errors.Join(errors.ErrConfigParse, err)).WithPath(path)
	}

	doc, err := Parse(data)
	if err != nil {
		var cfgErr *errors.ConfigError
		if errors.As(err, &cfgErr) {
			return nil, cfgErr.WithPath(path)
		}
		return nil, err
	}
	doc.Path = path
	return doc, nil
}

// Parse decodes and validates a document.
func Parse(data []byte) (*Document, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, errors.NewConfigError("empty document", errors.ErrConfigParse)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.NewConfigError("malformed document", errors.Join(errors.ErrConfigParse, err))
	}

	root, err := FromAny(raw)
	if err != nil {
		return nil, errors.NewConfigError("unsupported value", errors.Join(errors.ErrConfigParse, err))
	}

	doc, err := FromValue(root)
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, errors.NewConfigError("invalid document", errors.Join(errors.ErrConfigParse, err))
	}
	return doc, nil
}

// FromValue builds a document from an already decoded root value without
// running semantic validation.
func FromValue(root Value) (*Document, error) {
	if !root.IsMapping() {
		return nil, errors.NewConfigError(
			fmt.Sprintf("document root must be a mapping, got %s", root.Kind()),
			errors.ErrConfigParse,
		)
	}

	doc := &Document{Raw: root}

	_, hasPred := root.Field("prediction_runs")
	_, hasAnalysis := root.Field("analysis_runs")
	if !hasPred && !hasAnalysis {
		doc.Legacy = true
		doc.Global = Merge(DefaultGlobal(), root)
		doc.PredictionRuns = []RunDefinition{{
			ID:          DefaultRunID,
			Kind:        Prediction,
			Enabled:     true,
			Description: "implicit run of a legacy configuration",
			Parameters:  EmptyMapping(),
		}}
		doc.AnalysisRuns = []RunDefinition{{
			ID:                DefaultRunID,
			Kind:              Analysis,
			Enabled:           true,
			Description:       "implicit run of a legacy configuration",
			Parameters:        EmptyMapping(),
			SourcePredictions: []string{DefaultRunID},
			AnalysisType:      DefaultAnalysisType,
			Metrics:           AllMetrics(),
		}}
		return doc, nil
	}

	global := EmptyMapping()
	if g, ok := root.Field("global"); ok && !g.IsNull() {
		if !g.IsMapping() {
			doc.problems = append(doc.problems, errors.NewValidationError("must be a mapping").
				WithField("global").WithValue(g.Kind()))
		} else {
			global = g
		}
	}
	doc.Global = Merge(DefaultGlobal(), global)

	doc.PredictionRuns = doc.decodeRuns(root, "prediction_runs", Prediction)
	doc.AnalysisRuns = doc.decodeRuns(root, "analysis_runs", Analysis)
	return doc, nil
}

func (d *Document) decodeRuns(root Value, key string, kind RunKind) []RunDefinition {
	list, ok := root.Field(key)
	if !ok || list.IsNull() {
		return nil
	}
	if list.Kind() != KindSequence {
		d.problems = append(d.problems, errors.NewValidationError("must be a sequence").
			WithField(key).WithValue(list.Kind()))
		return nil
	}

	runs := make([]RunDefinition, 0, list.Len())
	for i, item := range list.Items() {
		field := fmt.Sprintf("%s[%d]", key, i)
		run, problems := decodeRun(item, kind, field)
		d.problems = append(d.problems, problems...)
		if run != nil {
			runs = append(runs, *run)
		}
	}
	return runs
}

func decodeRun(item Value, kind RunKind, field string) (*RunDefinition, []*errors.ValidationError) {
	var problems []*errors.ValidationError
	if !item.IsMapping() {
		return nil, append(problems, errors.NewValidationError("run must be a mapping").
			WithField(field).WithValue(item.Kind()))
	}

	id := item.StringAt("", "id")
	if strings.TrimSpace(id) == "" {
		return nil, append(problems, errors.NewValidationError("run id is required").WithField(field+".id"))
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		problems = append(problems, errors.NewValidationError("run id must be usable as a directory name").
			WithField(field+".id").WithValue(id))
	}

	run := &RunDefinition{
		ID:          id,
		Kind:        kind,
		Enabled:     item.BoolAt(true, "enabled"),
		Description: item.StringAt("", "description"),
	}
	if enabled, ok := item.Field("enabled"); ok {
		if _, isBool := enabled.AsBool(); !isBool {
			problems = append(problems, errors.NewValidationError("enabled must be a boolean").
				WithField(field+".enabled").WithValue(enabled.Any()))
		}
	}

	// Non-reserved keys on the run object are parameters too; the explicit
	// parameters mapping wins on conflict.
	params := item.Without(reservedKeys...)
	if p, ok := item.Field("parameters"); ok && !p.IsNull() {
		if !p.IsMapping() {
			problems = append(problems, errors.NewValidationError("parameters must be a mapping").
				WithField(field+".parameters").WithValue(p.Kind()))
		} else {
			params = Merge(params, p)
		}
	}
	run.Parameters = params

	if kind == Prediction {
		return run, problems
	}

	run.AnalysisType = item.StringAt(DefaultAnalysisType, "analysis_type")
	run.MotifID = item.StringAt("", "motif_id")

	if sources, ok := item.Field("source_predictions"); ok && !sources.IsNull() {
		ids, err := stringList(sources)
		if err != nil {
			problems = append(problems, errors.NewValidationError(err.Error()).WithField(field+".source_predictions"))
		}
		run.SourcePredictions = dedupe(ids)
	}

	run.Metrics = AllMetrics()
	if metrics, ok := item.Field("metrics"); ok && !metrics.IsNull() {
		names, err := stringList(metrics)
		if err != nil {
			problems = append(problems, errors.NewValidationError(err.Error()).WithField(field+".metrics"))
		}
		if len(names) > 0 {
			var requested []Metric
			for _, name := range dedupe(names) {
				m := Metric(strings.ToLower(name))
				if m != MetricRMSD && m != MetricPLDDT {
					problems = append(problems, errors.NewValidationError("unknown metric").
						WithField(field+".metrics").WithValue(name))
					continue
				}
				requested = append(requested, m)
			}
			run.Metrics = orderMetrics(requested)
		}
	}

	return run, problems
}

func stringList(v Value) ([]string, error) {
	switch v.Kind() {
	case KindScalar:
		s, _ := v.AsString()
		return []string{s}, nil
	case KindSequence:
		out := make([]string, 0, v.Len())
		for _, item := range v.Items() {
			s, ok := item.AsString()
			if !ok {
				return out, fmt.Errorf("must be a list of strings")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("must be a list of strings")
	}
}

// dedupe collapses duplicates keeping the first occurrence.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// orderMetrics returns metrics in execution order.
func orderMetrics(in []Metric) []Metric {
	out := make([]Metric, 0, len(in))
	for _, m := range AllMetrics() {
		for _, have := range in {
			if have == m {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

// Runs returns the declared runs of kind.
func (d *Document) Runs(kind RunKind) []RunDefinition {
	if kind == Analysis {
		return d.AnalysisRuns
	}
	return d.PredictionRuns
}

// Run returns the run of kind with the given id.
func (d *Document) Run(kind RunKind, id string) (RunDefinition, bool) {
	for _, run := range d.Runs(kind) {
		if run.ID == id {
			return run, true
		}
	}
	return RunDefinition{}, false
}

// Motifs returns the ids declared under global.motifs, or nil when the
// section is absent.
func (d *Document) Motifs() []string {
	motifs, ok := d.Global.Field("motifs")
	if !ok || motifs.IsNull() {
		return nil
	}
	if motifs.Kind() == KindSequence {
		var ids []string
		for _, item := range motifs.Items() {
			if id := item.StringAt("", "id"); id != "" {
				ids = append(ids, id)
			} else if s, ok := item.AsString(); ok {
				ids = append(ids, s)
			}
		}
		return ids
	}
	return motifs.Keys()
}
