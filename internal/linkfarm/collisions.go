package linkfarm

import (
	"fmt"

	"modelfarm/internal/manifest"
)

// Collision is a link name claimed by more than one manifest entry. The later
// entry's link replaces the earlier one during a run.
type Collision struct {
	Name    string
	Entries []string
}

func (c Collision) String() string {
	return fmt.Sprintf("link %s is claimed by %d entries: %v", c.Name, len(c.Entries), c.Entries)
}

// Collisions reports link names that several entries would write. Models from
// one repo with the same file extension collide because the link name is
// derived from the repo id.
func Collisions(m *manifest.Manifest) []Collision {
	owners := make(map[string][]string)
	var order []string
	claim := func(name, label string) {
		if _, ok := owners[name]; !ok {
			order = append(order, name)
		}
		owners[name] = append(owners[name], label)
	}
	referenced := make(map[string]struct{})
	for _, name := range m.ReferencedConfigs() {
		referenced[name] = struct{}{}
	}
	for _, c := range m.Configs {
		if _, ok := referenced[c.Name]; ok {
			claim(ConfigLinkName(c), c.Label())
		}
	}
	for _, r := range m.RawArtifacts {
		if r.Enabled {
			claim(r.Filename, r.Label())
		}
	}
	for _, model := range m.Models {
		if model.Enabled {
			claim(ModelLinkName(model), model.Label())
		}
	}

	var collisions []Collision
	for _, name := range order {
		if labels := owners[name]; len(labels) > 1 {
			collisions = append(collisions, Collision{Name: name, Entries: labels})
		}
	}
	return collisions
}
