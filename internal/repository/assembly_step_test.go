//go:build integration

package repository

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/cloo-solutions/kitguide/internal/domain"
	"github.com/cloo-solutions/kitguide/internal/testutil"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDimension = 384

// axisVector returns a vector of testDimension with value at index axis.
func axisVector(axis int, value float32) []float32 {
	v := make([]float32, testDimension)
	v[axis] = value
	return v
}

func testRecord(page int, embedding []float32) *domain.AssemblyStepRecord {
	return &domain.AssemblyStepRecord{
		PageNumber:  page,
		PartNames:   fmt.Sprintf("A%d, B1-%d", page, page+10),
		Description: fmt.Sprintf("summary %d | detail %d", page, page),
		Embedding:   embedding,
		ImageSource: fmt.Sprintf("manuals/page%d.jpg", page),
	}
}

// storedPages returns every stored page number in ascending order.
func storedPages(ctx context.Context, repo *AssemblyStepRepository) ([]int, error) {
	results, err := repo.Nearest(ctx, axisVector(0, 0), 1000)
	if err != nil {
		return nil, err
	}
	pages := make([]int, 0, len(results))
	for _, r := range results {
		pages = append(pages, r.PageNumber)
	}
	sort.Ints(pages)
	return pages, nil
}

func setupRepo(ctx context.Context, t *testing.T) (*AssemblyStepRepository, func()) {
	pc := testutil.NewPostgresContainer(ctx, t)
	conns := testutil.NewTestConnector(ctx, t, pc)
	return NewAssemblyStepRepository(conns), func() { _ = pc.Terminate(ctx) }
}

func TestAssemblyStepRepository_NearestOrdering(t *testing.T) {
	ctx := context.Background()
	repo, cleanup := setupRepo(ctx, t)
	defer cleanup()

	recs := []*domain.AssemblyStepRecord{
		testRecord(1, axisVector(0, 1.0)),
		testRecord(2, axisVector(0, 0.2)),
		testRecord(3, axisVector(1, 3.0)),
		testRecord(4, axisVector(0, 0.6)),
	}
	require.NoError(t, repo.InsertBatch(ctx, recs, false))

	query := axisVector(0, 1.0)

	results, err := repo.Nearest(ctx, query, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []int{1, 4, 2}, []int{results[0].PageNumber, results[1].PageNumber, results[2].PageNumber})
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
	assert.Equal(t, "manuals/page1.jpg", results[0].ImageSource)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-6)

	all, err := repo.Nearest(ctx, query, 10)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestAssemblyStepRepository_NearestEmptyCorpus(t *testing.T) {
	ctx := context.Background()
	repo, cleanup := setupRepo(ctx, t)
	defer cleanup()

	results, err := repo.Nearest(ctx, axisVector(0, 1), 5)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestAssemblyStepRepository_Dimension(t *testing.T) {
	ctx := context.Background()
	repo, cleanup := setupRepo(ctx, t)
	defer cleanup()

	dim, err := repo.Dimension(ctx)
	require.NoError(t, err)
	assert.Equal(t, testDimension, dim)
}

func TestAssemblyStepRepository_AppendAndReplace(t *testing.T) {
	ctx := context.Background()
	repo, cleanup := setupRepo(ctx, t)
	defer cleanup()

	batch := []*domain.AssemblyStepRecord{testRecord(1, axisVector(0, 1)), testRecord(2, axisVector(1, 1))}

	require.NoError(t, repo.InsertBatch(ctx, batch, false))
	require.NoError(t, repo.InsertBatch(ctx, batch, false))
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n, "default mode appends duplicates")

	require.NoError(t, repo.InsertBatch(ctx, batch, true))
	pages, err := storedPages(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, pages)

	require.NoError(t, repo.DeleteAll(ctx))
	n, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAssemblyStepRepository_BatchRollback(t *testing.T) {
	ctx := context.Background()
	repo, cleanup := setupRepo(ctx, t)
	defer cleanup()

	require.NoError(t, repo.Insert(ctx, testRecord(1, axisVector(0, 1))))

	// Valid for ValidateAssemblyStepRecord but rejected by vector(384).
	bad := []*domain.AssemblyStepRecord{
		testRecord(2, []float32{1, 2, 3}),
		testRecord(3, []float32{4, 5, 6}),
	}
	err := repo.InsertBatch(ctx, bad, false)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeWrite))

	pages, err := storedPages(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, pages, "earlier batches remain, failed batch rolled back")
}

func TestAssemblyStepRepository_CompoundLabelsRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, cleanup := setupRepo(ctx, t)
	defer cleanup()

	page := &domain.StructuredPage{PartsList: []string{"A11", "B1-18"}, Summary: "s", Detail: "d"}
	rec := page.Record(1, "manuals/page1.jpg")
	rec.Embedding = axisVector(2, 1)
	require.NoError(t, repo.Insert(ctx, rec))

	var partNames string
	err := repo.conns.Do(ctx, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `SELECT part_names FROM assembly_steps WHERE page_number = 1`).Scan(&partNames)
	})
	require.NoError(t, err)
	assert.Contains(t, partNames, "B1-18")
}
