package store

import "fmt"

// maxListLimit is a defense-in-depth cap on limit values for list queries.
const maxListLimit = 1000

// orNull substitutes NULL for an absent SQL expression.
func orNull(expr string) string {
	if expr == "" {
		return "NULL"
	}

	return expr
}

// tableSample renders a TABLESAMPLE clause, or nothing for a full scan.
func tableSample(percent float64) string {
	if percent <= 0 || percent >= 100 {
		return ""
	}

	return fmt.Sprintf("TABLESAMPLE SYSTEM (%.4f)", percent)
}
