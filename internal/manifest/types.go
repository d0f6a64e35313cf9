package manifest

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Kind identifies which section of the manifest an entry belongs to.
type Kind string

const (
	KindConfig Kind = "config"
	KindRaw    Kind = "raw"
	KindModel  Kind = "model"
)

// Entry is one artifact declared by the manifest. The concrete type is one of
// ConfigEntry, RawArtifactEntry, or ModelEntry.
type Entry interface {
	Kind() Kind
	// Label identifies the entry in user-facing messages.
	Label() string
	isEntry()
}

// ConfigEntry is an auxiliary file that models may reference by name.
type ConfigEntry struct {
	Name string
	URL  string
}

func (ConfigEntry) Kind() Kind { return KindConfig }

func (c ConfigEntry) Label() string {
	return fmt.Sprintf("config %q (url %s)", c.Name, c.URL)
}

func (ConfigEntry) isEntry() {}

// Extension returns the file extension of the config URL without the dot,
// ignoring any query string.
func (c ConfigEntry) Extension() string {
	return urlExtension(c.URL)
}

// RawArtifactEntry is a plain file downloaded once and never overwritten.
type RawArtifactEntry struct {
	Name     string
	URL      string
	Filename string
	Enabled  bool
	// Section names the manifest key the entry was declared under
	// (raw_models or raw_embeddings).
	Section string
}

func (RawArtifactEntry) Kind() Kind { return KindRaw }

func (r RawArtifactEntry) Label() string {
	return fmt.Sprintf("raw artifact %q (url %s, filename %s)", r.Name, r.URL, r.Filename)
}

func (RawArtifactEntry) isEntry() {}

// ModelEntry is a file hosted in a hub repository and placed in the shared
// cache by the fetcher. Models are unique by (RepoID, Filename).
type ModelEntry struct {
	Name      string
	RepoID    string
	Filename  string
	ConfigRef string
	Enabled   bool
}

func (ModelEntry) Kind() Kind { return KindModel }

func (m ModelEntry) Label() string {
	return fmt.Sprintf("model %q (repo_id %s, filename %s)", m.Name, m.RepoID, m.Filename)
}

func (ModelEntry) isEntry() {}

// Extension returns the extension of the model filename without the dot.
func (m ModelEntry) Extension() string {
	return strings.TrimPrefix(path.Ext(m.Filename), ".")
}

// Key returns the uniqueness key of the model.
func (m ModelEntry) Key() string {
	return m.RepoID + "/" + m.Filename
}

// Manifest is the validated description of every artifact to acquire and link.
// It must not be modified after Validate succeeds.
type Manifest struct {
	Configs       []ConfigEntry
	RawArtifacts  []RawArtifactEntry
	Models        []ModelEntry
	CacheDir      string
	LinkDir       string
	CredentialRef string
	// Source is the file the manifest was loaded from, if any.
	Source string
}

// Entries returns every entry in dispatch order: configs, raw artifacts, then
// models, each in declaration order.
func (m *Manifest) Entries() []Entry {
	entries := make([]Entry, 0, len(m.Configs)+len(m.RawArtifacts)+len(m.Models))
	for _, c := range m.Configs {
		entries = append(entries, c)
	}
	for _, r := range m.RawArtifacts {
		entries = append(entries, r)
	}
	for _, model := range m.Models {
		entries = append(entries, model)
	}
	return entries
}

// Config returns the config entry with the given name.
func (m *Manifest) Config(name string) (ConfigEntry, bool) {
	for _, c := range m.Configs {
		if c.Name == name {
			return c, true
		}
	}
	return ConfigEntry{}, false
}

// ReferencedConfigs returns the distinct config names referenced by models, in
// first-reference order.
func (m *Manifest) ReferencedConfigs() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, model := range m.Models {
		if model.ConfigRef == "" {
			continue
		}
		if _, ok := seen[model.ConfigRef]; ok {
			continue
		}
		seen[model.ConfigRef] = struct{}{}
		names = append(names, model.ConfigRef)
	}
	return names
}

func urlExtension(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(path.Ext(parsed.Path), ".")
}
