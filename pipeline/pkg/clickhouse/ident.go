package clickhouse

import "strings"

// QuoteIdent quotes a table, column or database name with backticks.
func QuoteIdent(name string) string {
	r := strings.NewReplacer("\\", "\\\\", "`", "\\`")
	return "`" + r.Replace(name) + "`"
}
