package runlog

import (
	"regexp"
	"strings"
)

var nonWordRE = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// TableNameForStep sanitizes a step name into the per-step output table
// name: lowercased alphanumeric/underscore, "step_" prefixed, a leading
// digit prefixed with "s_", and an empty result falling back to "step".
func TableNameForStep(stepName string) string {
	normalized := strings.Trim(nonWordRE.ReplaceAllString(stepName, "_"), "_")
	normalized = strings.ToLower(normalized)
	if normalized == "" {
		normalized = "step"
	}
	if normalized[0] >= '0' && normalized[0] <= '9' {
		normalized = "s_" + normalized
	}
	return "step_" + normalized
}

// ValidTableName reports whether name is safe to interpolate directly
// into a SQL statement (defense in depth before the API builds queries
// against a computed table name; see spec §5).
var ValidTableName = regexp.MustCompile(`^[A-Za-z0-9_]+$`).MatchString
