package store

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	migrations "github.com/dropDatabas3/aerogate/migrations/postgres"
)

// Migrate aplica las migraciones embebidas en orden lexicográfico.
// Todas son idempotentes (IF NOT EXISTS), así que correrlas en cada
// arranque es seguro.
func (s *Store) Migrate(ctx context.Context) error {
	return s.migrateFS(ctx, migrations.FS)
}

func (s *Store) migrateFS(ctx context.Context, fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		b, err := fs.ReadFile(fsys, f)
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("migrate %s: %w", f, err)
		}
	}
	return nil
}
