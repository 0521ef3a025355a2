package logger

import (
	"regexp"
)

var (
	secretPattern = regexp.MustCompile(`(?i)((?:password|api_key|token)\s*=\s*['"])([^'"]+)(['"])`)
	emailPattern  = regexp.MustCompile(`([A-Za-z0-9._%+-])[A-Za-z0-9._%+-]*(@[A-Za-z0-9.-]+\.[A-Za-z]{2,})`)
)

// sanitizeSQL masks secrets and email principals before statements hit the log
func sanitizeSQL(sql string) string {
	sql = secretPattern.ReplaceAllString(sql, `$1***$3`)
	return emailPattern.ReplaceAllString(sql, `$1***$2`)
}
