package courier

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// DefaultTablePrefix is the prefix of every courier table unless configured otherwise.
const DefaultTablePrefix = "courier_"

const prefixPlaceholder = "{{prefix}}"

// MigrationFiles contains the SQL schema of every supported driver, one directory
// per driver name ("postgres", "mysql", "sqlite3"). Table names carry the
// {{prefix}} placeholder; use Schema to get ready-to-run statements, or hand the
// files to your own migration tool after substituting the prefix.
//
//go:embed migrations/*/*.sql
var MigrationFiles embed.FS

// Schema returns the DDL statements for driver with the default table prefix.
func Schema(driver string) ([]string, error) {
	return SchemaWithPrefix(driver, DefaultTablePrefix)
}

// SchemaWithPrefix returns the DDL statements for driver, in file order, with
// prefix substituted into every table name.
func SchemaWithPrefix(driver, prefix string) ([]string, error) {
	dir := path.Join("migrations", driver)
	entries, err := fs.ReadDir(MigrationFiles, dir)
	if err != nil {
		return nil, NewErrorWithCause(ErrCodeConfiguration, fmt.Sprintf("unsupported driver %q", driver), err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var statements []string
	for _, name := range names {
		data, err := fs.ReadFile(MigrationFiles, path.Join(dir, name))
		if err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to read migration "+name, err)
		}
		for _, stmt := range strings.Split(string(data), ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			statements = append(statements, strings.ReplaceAll(stmt, prefixPlaceholder, prefix))
		}
	}
	return statements, nil
}

// Migrate creates the courier tables if they do not exist.
func Migrate(ctx context.Context, exec Executor, driver, prefix string) error {
	statements, err := SchemaWithPrefix(driver, prefix)
	if err != nil {
		return err
	}
	for _, stmt := range statements {
		if _, err := exec.ExecContext(ctx, stmt); err != nil {
			return NewErrorWithCause(ErrCodeDatabase, "failed to apply schema", err)
		}
	}
	return nil
}
