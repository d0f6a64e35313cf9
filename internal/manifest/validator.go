package manifest

import (
	"fmt"
	"strings"

	"modelfarm/internal/failure"
)

// FailureKind classifies a failed validation. Findings of every category are
// always present in the report; the kind only names the dominant failure.
type FailureKind string

const (
	FailureNone                      FailureKind = ""
	FailureDuplicateModels           FailureKind = "duplicate-models"
	FailureDuplicateConfigs          FailureKind = "duplicate-configs"
	FailureDuplicateModelsAndConfigs FailureKind = "duplicate-models-and-configs"
	FailureDanglingConfigRef         FailureKind = "dangling-config-ref"
	FailureInvalidEntries            FailureKind = "invalid-entries"
)

// Category groups findings.
type Category string

const (
	CategoryDuplicateConfigName Category = "duplicate config name"
	CategoryDuplicateConfigURL  Category = "duplicate config url"
	CategoryDuplicateModel      Category = "duplicate model"
	CategoryDanglingConfigRef   Category = "dangling config reference"
	CategoryInvalidEntry        Category = "invalid entry"
)

// Finding is a single validation problem.
type Finding struct {
	Category Category
	// Entry labels the offending entry.
	Entry string
	// Index is the position of the offending entry within its section.
	Index int
	// FirstIndex is the position of the earlier entry a duplicate collides
	// with, or -1.
	FirstIndex int
	Detail     string
}

func (f Finding) String() string {
	if f.Detail == "" {
		return fmt.Sprintf("%s: %s", f.Category, f.Entry)
	}
	return fmt.Sprintf("%s: %s: %s", f.Category, f.Entry, f.Detail)
}

// Report holds every finding, per category, in declaration order.
type Report struct {
	DuplicateConfigNames []Finding
	DuplicateConfigURLs  []Finding
	DuplicateModels      []Finding
	DanglingConfigRefs   []Finding
	InvalidEntries       []Finding
}

// Empty reports whether no findings were recorded.
func (r Report) Empty() bool {
	return len(r.All()) == 0
}

// All returns every finding, grouped by category.
func (r Report) All() []Finding {
	var all []Finding
	all = append(all, r.DuplicateConfigNames...)
	all = append(all, r.DuplicateConfigURLs...)
	all = append(all, r.DuplicateModels...)
	all = append(all, r.DanglingConfigRefs...)
	all = append(all, r.InvalidEntries...)
	return all
}

// Kind returns the failure classification of the report.
func (r Report) Kind() FailureKind {
	configDup := len(r.DuplicateConfigNames) > 0 || len(r.DuplicateConfigURLs) > 0
	modelDup := len(r.DuplicateModels) > 0
	switch {
	case configDup && modelDup:
		return FailureDuplicateModelsAndConfigs
	case modelDup:
		return FailureDuplicateModels
	case configDup:
		return FailureDuplicateConfigs
	case len(r.DanglingConfigRefs) > 0:
		return FailureDanglingConfigRef
	case len(r.InvalidEntries) > 0:
		return FailureInvalidEntries
	default:
		return FailureNone
	}
}

// ValidationError is returned by Validate. It matches failure.ErrValidation.
type ValidationError struct {
	Report Report
}

func (e *ValidationError) Error() string {
	findings := e.Report.All()
	var b strings.Builder
	b.WriteString(printer.Sprintf("manifest validation failed (%s): %d finding(s)", e.Report.Kind(), len(findings)))
	for _, f := range findings {
		b.WriteString("\n  - ")
		b.WriteString(f.String())
	}
	return b.String()
}

func (e *ValidationError) Is(target error) bool { return target == failure.ErrValidation }

// Kind returns the failure classification.
func (e *ValidationError) Kind() FailureKind { return e.Report.Kind() }

// Validate checks the cross-entry integrity of a manifest. Every category is
// checked in a single pass; nil means the manifest is safe to act on.
func Validate(m *Manifest) error {
	if m == nil {
		return failure.Wrap(failure.ErrConfig, "manifest", "validate", "manifest is nil", nil)
	}
	var r Report
	checkConfigs(m, &r)
	checkRaw(m, &r)
	checkModels(m, &r)
	if r.Empty() {
		return nil
	}
	return &ValidationError{Report: r}
}

func checkConfigs(m *Manifest, r *Report) {
	names := make(map[string]int)
	urls := make(map[string]int)
	for i, c := range m.Configs {
		if c.Name == "" {
			r.InvalidEntries = append(r.InvalidEntries, invalid(c.Label(), i, "name is empty"))
		} else if first, ok := names[c.Name]; ok {
			r.DuplicateConfigNames = append(r.DuplicateConfigNames, Finding{
				Category:   CategoryDuplicateConfigName,
				Entry:      c.Label(),
				Index:      i,
				FirstIndex: first,
				Detail:     fmt.Sprintf("name %q already declared by configs[%d]", c.Name, first),
			})
		} else {
			names[c.Name] = i
		}

		if c.URL == "" {
			r.InvalidEntries = append(r.InvalidEntries, invalid(c.Label(), i, "url is empty"))
		} else if first, ok := urls[c.URL]; ok {
			r.DuplicateConfigURLs = append(r.DuplicateConfigURLs, Finding{
				Category:   CategoryDuplicateConfigURL,
				Entry:      c.Label(),
				Index:      i,
				FirstIndex: first,
				Detail:     fmt.Sprintf("url already declared by configs[%d]", first),
			})
		} else {
			urls[c.URL] = i
		}
	}
}

func checkRaw(m *Manifest, r *Report) {
	names := make(map[string]int)
	urls := make(map[string]int)
	filenames := make(map[string]int)
	for i, raw := range m.RawArtifacts {
		label := raw.Label()
		if raw.Name == "" {
			r.InvalidEntries = append(r.InvalidEntries, invalid(label, i, "name is empty"))
		} else if first, ok := names[raw.Name]; ok {
			r.InvalidEntries = append(r.InvalidEntries, duplicateRaw(label, i, first, "name"))
		} else {
			names[raw.Name] = i
		}
		if raw.URL == "" {
			r.InvalidEntries = append(r.InvalidEntries, invalid(label, i, "url is empty"))
		} else if first, ok := urls[raw.URL]; ok {
			r.InvalidEntries = append(r.InvalidEntries, duplicateRaw(label, i, first, "url"))
		} else {
			urls[raw.URL] = i
		}
		if raw.Filename == "" {
			r.InvalidEntries = append(r.InvalidEntries, invalid(label, i, "filename is empty"))
		} else if strings.ContainsAny(raw.Filename, `/\`) {
			r.InvalidEntries = append(r.InvalidEntries, invalid(label, i, "filename must not contain path separators"))
		} else if first, ok := filenames[raw.Filename]; ok {
			r.InvalidEntries = append(r.InvalidEntries, duplicateRaw(label, i, first, "filename"))
		} else {
			filenames[raw.Filename] = i
		}
	}
}

func checkModels(m *Manifest, r *Report) {
	configNames := make(map[string]struct{}, len(m.Configs))
	for _, c := range m.Configs {
		if c.Name != "" {
			configNames[c.Name] = struct{}{}
		}
	}
	keys := make(map[string]int)
	for i, model := range m.Models {
		label := model.Label()
		if model.RepoID == "" || model.Filename == "" {
			r.InvalidEntries = append(r.InvalidEntries, invalid(label, i, "repo_id and filename are required"))
		} else if first, ok := keys[model.Key()]; ok {
			r.DuplicateModels = append(r.DuplicateModels, Finding{
				Category:   CategoryDuplicateModel,
				Entry:      label,
				Index:      i,
				FirstIndex: first,
				Detail:     fmt.Sprintf("repo_id/filename already declared by models[%d]", first),
			})
		} else {
			keys[model.Key()] = i
		}

		if model.ConfigRef == "" {
			continue
		}
		if _, ok := configNames[model.ConfigRef]; !ok {
			r.DanglingConfigRefs = append(r.DanglingConfigRefs, Finding{
				Category:   CategoryDanglingConfigRef,
				Entry:      label,
				Index:      i,
				FirstIndex: -1,
				Detail:     fmt.Sprintf("config %q is not declared", model.ConfigRef),
			})
		}
	}
}

func invalid(label string, index int, detail string) Finding {
	return Finding{
		Category:   CategoryInvalidEntry,
		Entry:      label,
		Index:      index,
		FirstIndex: -1,
		Detail:     detail,
	}
}

func duplicateRaw(label string, index, first int, field string) Finding {
	return Finding{
		Category:   CategoryInvalidEntry,
		Entry:      label,
		Index:      index,
		FirstIndex: first,
		Detail:     fmt.Sprintf("%s already declared by raw artifact %d", field, first),
	}
}
