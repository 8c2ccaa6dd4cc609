package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/kitguide/internal/database"
	"github.com/cloo-solutions/kitguide/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// AssemblyStepRepository persists manual pages in the assembly_steps table and
// answers nearest-neighbor queries over their embeddings (L2 distance).
type AssemblyStepRepository struct {
	conns *database.Connector
}

func NewAssemblyStepRepository(conns *database.Connector) *AssemblyStepRepository {
	return &AssemblyStepRepository{conns: conns}
}

// FormatVector renders v in the vector extension's literal syntax: [v1,v2,...].
func FormatVector(v []float32) string {
	return pgvector.NewVector(v).String()
}

// Insert writes a single record.
func (r *AssemblyStepRepository) Insert(ctx context.Context, rec *domain.AssemblyStepRecord) error {
	return r.InsertBatch(ctx, []*domain.AssemblyStepRecord{rec}, false)
}

// InsertBatch writes records in one transaction. With replace set, rows that
// share a page number with the batch are deleted first. Any failure rolls the
// whole batch back.
func (r *AssemblyStepRepository) InsertBatch(ctx context.Context, recs []*domain.AssemblyStepRecord, replace bool) error {
	if len(recs) == 0 {
		return nil
	}

	dimension := len(recs[0].Embedding)
	for _, rec := range recs {
		if err := domain.ValidateAssemblyStepRecord(rec, dimension); err != nil {
			return domain.Wrap(domain.ErrStoreWrite, err)
		}
	}

	return r.conns.Do(ctx, func(conn *pgx.Conn) error {
		tx, err := conn.Begin(ctx)
		if err != nil {
			return domain.Wrap(domain.ErrStoreWrite, err)
		}

		if err := insertSteps(ctx, tx, recs, replace); err != nil {
			_ = tx.Rollback(ctx)
			return domain.Wrap(domain.ErrStoreWrite, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return domain.Wrap(domain.ErrStoreWrite, err)
		}
		return nil
	})
}

func insertSteps(ctx context.Context, tx pgx.Tx, recs []*domain.AssemblyStepRecord, replace bool) error {
	if replace {
		pages := make([]int32, 0, len(recs))
		for _, rec := range recs {
			pages = append(pages, int32(rec.PageNumber))
		}
		if _, err := tx.Exec(ctx, `DELETE FROM assembly_steps WHERE page_number = ANY($1)`, pages); err != nil {
			return fmt.Errorf("delete existing pages: %w", err)
		}
	}

	for _, rec := range recs {
		_, err := tx.Exec(ctx,
			`INSERT INTO assembly_steps (page_number, part_names, description, embedding, image_source)
			 VALUES ($1, $2, $3, $4::vector, $5)`,
			rec.PageNumber,
			rec.PartNames,
			rec.Description,
			FormatVector(rec.Embedding),
			rec.ImageSource,
		)
		if err != nil {
			return fmt.Errorf("insert page %d: %w", rec.PageNumber, err)
		}
	}

	return nil
}

// Nearest returns at most k records ordered by ascending L2 distance from vec.
// An empty table yields an empty slice.
func (r *AssemblyStepRepository) Nearest(ctx context.Context, vec []float32, k int) ([]domain.RetrievedContext, error) {
	if k <= 0 {
		return nil, domain.ErrInvalidNeighbors
	}

	results := make([]domain.RetrievedContext, 0, k)
	err := r.conns.Do(ctx, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`SELECT page_number, description, image_source, embedding <-> $1::vector AS distance
			 FROM assembly_steps
			 ORDER BY distance
			 LIMIT $2`,
			FormatVector(vec), k,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var item domain.RetrievedContext
			if err := rows.Scan(&item.PageNumber, &item.Description, &item.ImageSource, &item.Distance); err != nil {
				return err
			}
			results = append(results, item)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

// Dimension returns the corpus embedding dimension: the declared vector(D)
// width, else the width of any stored row, else 0 when unknown.
func (r *AssemblyStepRepository) Dimension(ctx context.Context) (int, error) {
	var dimension int
	err := r.conns.Do(ctx, func(conn *pgx.Conn) error {
		var typmod int32
		err := conn.QueryRow(ctx,
			`SELECT atttypmod FROM pg_attribute
			 WHERE attrelid = 'assembly_steps'::regclass AND attname = 'embedding'`,
		).Scan(&typmod)
		if err != nil {
			return err
		}
		if typmod > 0 {
			dimension = int(typmod)
			return nil
		}

		err = conn.QueryRow(ctx, `SELECT vector_dims(embedding) FROM assembly_steps LIMIT 1`).Scan(&dimension)
		if errors.Is(err, pgx.ErrNoRows) {
			dimension = 0
			return nil
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	return dimension, nil
}

// Count returns the number of stored records.
func (r *AssemblyStepRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conns.Do(ctx, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `SELECT count(*) FROM assembly_steps`).Scan(&n)
	})
	return n, err
}

// DeleteAll removes every record; used by a full corpus rebuild.
func (r *AssemblyStepRepository) DeleteAll(ctx context.Context) error {
	return r.conns.Do(ctx, func(conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, `DELETE FROM assembly_steps`); err != nil {
			return domain.Wrap(domain.ErrStoreWrite, err)
		}
		return nil
	})
}
