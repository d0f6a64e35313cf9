package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.yaml.in/yaml/v3"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"modelfarm/internal/config"
	"modelfarm/internal/failure"
)

//go:embed schema/manifest.schema.json
var schemaBytes []byte

var (
	compiledSchema *jsonschema.Schema
	compileOnce    sync.Once
	compileErr     error
	printer        = message.NewPrinter(language.English)
)

// SchemaIssue is one structural problem found in a manifest document.
type SchemaIssue struct {
	Path    string // Instance location (e.g., "/models/0/repo_id")
	Message string
	Keyword string
}

// SchemaError reports every structural problem in a manifest document. It
// matches failure.ErrConfig.
type SchemaError struct {
	Source string
	Issues []SchemaIssue
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString(printer.Sprintf("manifest %s has %d structural problem(s)", e.Source, len(e.Issues)))
	for _, issue := range e.Issues {
		b.WriteString("\n  - ")
		if issue.Path != "" {
			b.WriteString(issue.Path)
			b.WriteString(": ")
		}
		b.WriteString(issue.Message)
	}
	return b.String()
}

func (e *SchemaError) Is(target error) bool { return target == failure.ErrConfig }

type document struct {
	TokenRef      string      `yaml:"hf_token_ro"`
	CacheDir      string      `yaml:"cache_dir"`
	ModelsDir     string      `yaml:"models_dir"`
	Configs       []configDoc `yaml:"configs"`
	Models        []modelDoc  `yaml:"models"`
	RawModels     []rawDoc    `yaml:"raw_models"`
	RawEmbeddings []rawDoc    `yaml:"raw_embeddings"`
}

type configDoc struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type rawDoc struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Filename string `yaml:"filename"`
	Enabled  *bool  `yaml:"enabled"`
}

type modelDoc struct {
	Name     string `yaml:"name"`
	RepoID   string `yaml:"repo_id"`
	Filename string `yaml:"filename"`
	Config   string `yaml:"config"`
	Enabled  *bool  `yaml:"enabled"`
}

// Load reads and structurally checks a manifest file. Relative cache and link
// directories are resolved against the manifest's own directory.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, failure.Wrap(failure.ErrConfig, "manifest", "read", fmt.Sprintf("%s does not exist (pass --manifest or set paths.manifest)", path), nil)
		}
		return nil, failure.Wrap(failure.ErrConfig, "manifest", "read", path, err)
	}
	return Parse(data, path)
}

// Parse decodes manifest YAML. source names the document in errors and
// anchors relative directories; it may be empty.
func Parse(data []byte, source string) (*Manifest, error) {
	if source == "" {
		source = "<inline>"
	}
	if err := checkShape(data, source); err != nil {
		return nil, err
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, failure.Wrap(failure.ErrConfig, "manifest", "decode", source, err)
	}

	base := "."
	if source != "<inline>" {
		base = filepath.Dir(source)
	}
	cacheDir, err := resolveDir(base, doc.CacheDir)
	if err != nil {
		return nil, failure.Wrap(failure.ErrConfig, "manifest", "cache_dir", doc.CacheDir, err)
	}
	linkDir, err := resolveDir(base, doc.ModelsDir)
	if err != nil {
		return nil, failure.Wrap(failure.ErrConfig, "manifest", "models_dir", doc.ModelsDir, err)
	}

	m := &Manifest{
		CacheDir:      cacheDir,
		LinkDir:       linkDir,
		CredentialRef: strings.TrimSpace(doc.TokenRef),
		Source:        source,
	}
	for _, c := range doc.Configs {
		m.Configs = append(m.Configs, ConfigEntry{
			Name: strings.TrimSpace(c.Name),
			URL:  strings.TrimSpace(c.URL),
		})
	}
	for _, section := range []struct {
		name    string
		entries []rawDoc
	}{
		{"raw_models", doc.RawModels},
		{"raw_embeddings", doc.RawEmbeddings},
	} {
		for _, r := range section.entries {
			m.RawArtifacts = append(m.RawArtifacts, RawArtifactEntry{
				Name:     strings.TrimSpace(r.Name),
				URL:      strings.TrimSpace(r.URL),
				Filename: strings.TrimSpace(r.Filename),
				Enabled:  enabledOrDefault(r.Enabled),
				Section:  section.name,
			})
		}
	}
	for _, model := range doc.Models {
		m.Models = append(m.Models, ModelEntry{
			Name:      strings.TrimSpace(model.Name),
			RepoID:    strings.TrimSpace(model.RepoID),
			Filename:  strings.TrimSpace(model.Filename),
			ConfigRef: strings.TrimSpace(model.Config),
			Enabled:   enabledOrDefault(model.Enabled),
		})
	}
	return m, nil
}

func enabledOrDefault(v *bool) bool {
	if v == nil {
		return true
	}
	return *v
}

func resolveDir(base, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("directory must not be empty")
	}
	if !strings.HasPrefix(value, "~") && !filepath.IsAbs(value) {
		value = filepath.Join(base, value)
	}
	return config.ExpandPath(value)
}

func getSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
		if err != nil {
			compileErr = fmt.Errorf("unmarshaling schema JSON: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("manifest.schema.json", doc); err != nil {
			compileErr = fmt.Errorf("adding schema resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile("manifest.schema.json")
		if compileErr != nil {
			compileErr = fmt.Errorf("compiling schema: %w", compileErr)
		}
	})
	return compiledSchema, compileErr
}

func checkShape(data []byte, source string) error {
	schema, err := getSchema()
	if err != nil {
		return fmt.Errorf("loading manifest schema: %w", err)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return failure.Wrap(failure.ErrConfig, "manifest", "parse YAML", source, err)
	}
	if raw == nil {
		return &SchemaError{Source: source, Issues: []SchemaIssue{{Message: "document is empty"}}}
	}

	jsonData, err := json.Marshal(raw)
	if err != nil {
		return failure.Wrap(failure.ErrConfig, "manifest", "convert to JSON", source, err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(jsonData))
	if err != nil {
		return failure.Wrap(failure.ErrConfig, "manifest", "prepare JSON", source, err)
	}

	err = schema.Validate(inst)
	if err == nil {
		return nil
	}
	validationErr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return failure.Wrap(failure.ErrConfig, "manifest", "schema", source, err)
	}
	return &SchemaError{Source: source, Issues: extractIssues(validationErr)}
}

// extractIssues walks the ValidationError tree and returns leaf-level issues.
func extractIssues(ve *jsonschema.ValidationError) []SchemaIssue {
	var issues []SchemaIssue
	collectIssues(ve, &issues)
	if len(issues) == 0 {
		return []SchemaIssue{{Message: ve.Error()}}
	}
	seen := make(map[string]bool, len(issues))
	result := issues[:0]
	for _, issue := range issues {
		key := issue.Path + "|" + issue.Keyword + "|" + issue.Message
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, issue)
	}
	return result
}

func collectIssues(ve *jsonschema.ValidationError, issues *[]SchemaIssue) {
	if len(ve.Causes) > 0 {
		for _, cause := range ve.Causes {
			collectIssues(cause, issues)
		}
		return
	}

	location := ""
	if len(ve.InstanceLocation) > 0 {
		location = "/" + strings.Join(ve.InstanceLocation, "/")
	}
	keyword := ""
	msg := ""
	if ve.ErrorKind != nil {
		if kw := ve.ErrorKind.KeywordPath(); len(kw) > 0 {
			keyword = kw[len(kw)-1]
		}
		msg = ve.ErrorKind.LocalizedString(printer)
	}
	if keyword == "$ref" || keyword == "allOf" {
		return
	}
	*issues = append(*issues, SchemaIssue{Path: location, Message: msg, Keyword: keyword})
}
