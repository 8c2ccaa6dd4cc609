// Package migrations embeds the SQL schema migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// EmbeddingDimensions is the declared width of assembly_steps.embedding.
const EmbeddingDimensions = 384
