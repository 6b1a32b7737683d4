// Package migrations embeds SQL migration files.
package migrations

import "embed"

// FS contiene las migraciones de Postgres, ordenadas por prefijo numérico.
//
//go:embed *.sql
var FS embed.FS
