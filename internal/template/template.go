// Package template substitutes {{name}} markers in stored prompt templates.
package template

import "regexp"

var markerPattern = regexp.MustCompile(`\{\{([A-Za-z0-9_]+)\}\}`)

// Resolve replaces every {{name}} occurrence with the matching variable
// value. The scan is a single pass over the original template: substituted
// values are never re-scanned, so variable content cannot introduce new
// markers. Markers with no matching variable are left literal.
func Resolve(template string, variables map[string]string) string {
	return markerPattern.ReplaceAllStringFunc(template, func(marker string) string {
		name := marker[2 : len(marker)-2]
		if value, ok := variables[name]; ok {
			return value
		}
		return marker
	})
}
