// Package migrations embeds the SQL schema so test harnesses and deploy
// tooling apply the same DDL the stores are written against.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Files returns the migration filenames in apply order.
func Files() ([]string, error) {
	entries, err := FS.ReadDir(".")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}
