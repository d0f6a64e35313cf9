package linkfarm

import "strings"

var separatorReplacer = strings.NewReplacer("/", "_", `\`, "_")

// Slugify replaces path separators in value with underscores and appends ext
// (with or without its leading dot) when given.
func Slugify(value string, ext ...string) string {
	slug := separatorReplacer.Replace(value)
	if len(ext) > 0 {
		if e := strings.TrimPrefix(strings.TrimSpace(ext[0]), "."); e != "" {
			slug += "." + e
		}
	}
	return slug
}
