package internal

import (
	"strings"

	"github.com/jackc/pgx/v5"
)

// quoteIdent double-quotes a single column, constraint or sequence name.
// Dots are kept as part of the name.
func quoteIdent(name string) string {
	if name == "" {
		return ""
	}
	return pgx.Identifier{name}.Sanitize()
}

// quoteTable quotes the configured registry table, which may be
// schema-qualified such as "registry.sweet_schemas". Materialized table
// names go through quoteIdent. Surrounding quotes and blanks on each part are
// dropped first so already-quoted config values round trip.
func quoteTable(name string) string {
	var parts pgx.Identifier
	for _, part := range strings.Split(name, ".") {
		if p := strings.Trim(part, ` "`); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return quoteIdent(name)
	}
	return parts.Sanitize()
}

func quoteIdentList(names []string) string {
	var b strings.Builder
	for i, n := range names {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(n))
	}
	return b.String()
}

// quoteLiteral renders s as a single quoted SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
