package docvec_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docvec"
	"github.com/hupe1980/docvec/distance"
	"github.com/hupe1980/docvec/embed"
	"github.com/hupe1980/docvec/index"
	"github.com/hupe1980/docvec/index/flat"
	"github.com/hupe1980/docvec/persistence"
	"github.com/hupe1980/docvec/store"
)

const testDim = 8

// fakeEmbedder derives a deterministic unit vector from each text, so
// identical texts always embed identically and a query equal to a stored
// chunk is its own nearest neighbor.
type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++

	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vecs[i] = fakeVector(text)
	}
	return vecs, nil
}

func (f *fakeEmbedder) Dimension() int { return testDim }

func fakeVector(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, testDim)
	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed>>33)) / float32(1<<30)
		norm += float64(vec[i]) * float64(vec[i])
	}

	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

// flakyEmbedder fails one batch call to simulate an embedding service outage
// partway through a multi-batch operation.
type flakyEmbedder struct {
	fakeEmbedder
	failOn int
	batch  int
}

func (f *flakyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.batch++
	if f.batch == f.failOn {
		return nil, errors.New("embedding service down")
	}
	return f.fakeEmbedder.EmbedBatch(ctx, texts)
}

func newTestService(t *testing.T, dir string, opts ...docvec.Option) *docvec.Service {
	t.Helper()
	return newTestServiceWith(t, dir, &fakeEmbedder{}, opts...)
}

func newTestServiceWith(t *testing.T, dir string, e embed.Embedder, opts ...docvec.Option) *docvec.Service {
	t.Helper()

	opts = append([]docvec.Option{docvec.WithDataDir(dir)}, opts...)

	svc, err := docvec.New(e, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	return svc
}

func TestBuildAndSearch(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, t.TempDir())

	texts := []string{"pump cavitation", "bearing wear", "valve leakage"}

	n, err := svc.BuildIndex(ctx, texts)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	count, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	results, err := svc.Search(ctx, "bearing wear", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// The query equals a stored chunk, so that chunk must come back first.
	assert.Equal(t, "bearing wear", results[0].Text)
	assert.Equal(t, docvec.DefaultBuildDocID, results[0].DocID)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestSearchWithoutIndex(t *testing.T) {
	svc := newTestService(t, t.TempDir())

	_, err := svc.Search(context.Background(), "anything", 5)
	require.ErrorIs(t, err, docvec.ErrNotFound)
}

func TestSearchMissingSnapshotWithRows(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	svc := newTestService(t, dir)
	_, err := svc.BuildIndex(ctx, []string{"a", "b"})
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	// Metadata survives but the snapshot is gone, e.g. deleted by hand.
	indexPath := filepath.Join(dir, "index.dvc")
	require.NoError(t, os.Remove(indexPath))

	reopened := newTestService(t, dir)

	_, err = reopened.Search(ctx, "a", 1)
	require.ErrorIs(t, err, docvec.ErrNotFound)

	// The read path must not have recreated the snapshot.
	exists, err := persistence.Exists(indexPath)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSearchInvalidK(t *testing.T) {
	svc := newTestService(t, t.TempDir())

	_, err := svc.Search(context.Background(), "anything", 0)
	require.ErrorIs(t, err, docvec.ErrInvalidK)
}

func TestAppendAllocatesContiguousIDs(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, t.TempDir())

	_, err := svc.BuildIndex(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)

	n, err := svc.AppendTexts(ctx, []string{"d", "e"}, "doc-7")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := svc.Store().FetchByDocID(ctx, "doc-7")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(3), rows[0].ID)
	assert.Equal(t, int64(4), rows[1].ID)
}

func TestAppendEmptyIsNoop(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	svc := newTestService(t, dir)

	n, err := svc.AppendTexts(ctx, nil, "doc")
	require.NoError(t, err)
	assert.Zero(t, n)

	count, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	// The no-op must not leave a snapshot behind either.
	exists, err := persistence.Exists(filepath.Join(dir, "index.dvc"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAppendWithoutBuildStartsAtZero(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, t.TempDir())

	n, err := svc.AppendTexts(ctx, []string{"first", "second"}, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := svc.Store().FetchByDocID(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(0), rows[0].ID)
	assert.Equal(t, int64(1), rows[1].ID)
}

func TestSearchCapsResults(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, t.TempDir())

	_, err := svc.BuildIndex(ctx, []string{"one", "two"})
	require.NoError(t, err)

	results, err := svc.Search(ctx, "one", 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestIVFTrainsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	metrics := &docvec.BasicMetricsCollector{}

	svc := newTestService(t, t.TempDir(),
		docvec.WithIndexSpec("IVF4,Flat"),
		docvec.WithMetricsCollector(metrics),
	)

	texts := make([]string, 16)
	for i := range texts {
		texts[i] = string(rune('a' + i))
	}

	_, err := svc.AppendTexts(ctx, texts[:8], "doc-1")
	require.NoError(t, err)

	_, err = svc.AppendTexts(ctx, texts[8:], "doc-2")
	require.NoError(t, err)

	assert.Equal(t, int64(1), metrics.TrainCount.Load())

	results, err := svc.Search(ctx, texts[12], 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestBuildResetsIDs(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, t.TempDir())

	_, err := svc.BuildIndex(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)

	_, err = svc.AppendTexts(ctx, []string{"d"}, "doc")
	require.NoError(t, err)

	n, err := svc.BuildIndex(ctx, []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	rows, err := svc.Store().FetchByDocID(ctx, docvec.DefaultBuildDocID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(0), rows[0].ID)
}

func TestBuildEmptyKeepsExistingData(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, t.TempDir())

	_, err := svc.BuildIndex(ctx, []string{"a", "b"})
	require.NoError(t, err)

	n, err := svc.BuildIndex(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	count, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	results, err := svc.Search(ctx, "a", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Text)
}

func TestConcurrentSearchAndAppend(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, t.TempDir())

	_, err := svc.BuildIndex(ctx, []string{"seed one", "seed two"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errc := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			if _, err := svc.AppendTexts(ctx, []string{fmt.Sprintf("chunk %d", i)}, "doc"); err != nil {
				errc <- err
				return
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if _, err := svc.Search(ctx, "seed one", 3); err != nil {
				errc <- err
				return
			}
		}
	}()

	wg.Wait()
	close(errc)
	for err := range errc {
		require.NoError(t, err)
	}
}

func TestReopenFromSnapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	svc := newTestService(t, dir)
	_, err := svc.BuildIndex(ctx, []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	reopened := newTestService(t, dir)

	results, err := reopened.Search(ctx, "beta", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "beta", results[0].Text)

	// Ids keep counting from where the first process stopped.
	n, err := reopened.AppendTexts(ctx, []string{"delta"}, "doc-2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rows, err := reopened.Store().FetchByDocID(ctx, "doc-2")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(3), rows[0].ID)
}

func TestSearchDropsRowsMissingFromStore(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, t.TempDir())

	_, err := svc.BuildIndex(ctx, []string{"kept", "removed"})
	require.NoError(t, err)

	// Simulate metadata loss for one of the two ids.
	require.NoError(t, svc.Store().Clear(ctx))
	require.NoError(t, svc.Store().InsertMany(ctx, []store.Row{
		{ID: 0, DocID: docvec.DefaultBuildDocID, Text: "kept"},
	}))

	results, err := svc.Search(ctx, "kept", 2)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "kept", results[0].Text)
}

func TestMigrateLegacyList(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	legacyJSON := `["old chunk one", {"text": "old chunk two", "docId": "manual-3"}, 42]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "legacy.json"), []byte(legacyJSON), 0o644))

	svc := newTestService(t, dir)

	migrated, err := svc.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, migrated)

	rows, err := svc.Store().FetchByDocID(ctx, "legacy")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "old chunk one", rows[0].Text)

	rows, err = svc.Store().FetchByDocID(ctx, "manual-3")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// Second run must be guarded by the marker.
	migrated, err = svc.Migrate(ctx)
	require.NoError(t, err)
	assert.Zero(t, migrated)

	count, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// The legacy file stays in place.
	_, err = os.Stat(filepath.Join(dir, "legacy.json"))
	require.NoError(t, err)
}

func TestMigrateRetryAfterFailure(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	legacyJSON := `["one", "two", "three", "four"]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "legacy.json"), []byte(legacyJSON), 0o644))

	// The second embedding batch fails, so the first run dies halfway.
	e := &flakyEmbedder{failOn: 2}
	svc := newTestServiceWith(t, dir, e, docvec.WithBatchSize(2))

	_, err := svc.Migrate(ctx)
	require.Error(t, err)

	// Nothing of the failed run may reach the store.
	count, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	// The retry migrates every chunk exactly once, under the same ids.
	migrated, err := svc.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, migrated)

	rows, err := svc.Store().FetchByDocID(ctx, "legacy")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, int64(0), rows[0].ID)
	assert.Equal(t, int64(3), rows[3].ID)

	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		assert.False(t, seen[row.Text], "chunk migrated twice: %q", row.Text)
		seen[row.Text] = true
	}

	results, err := svc.Search(ctx, "three", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "three", results[0].Text)
}

func TestMigrateMissingFileIsNoop(t *testing.T) {
	svc := newTestService(t, t.TempDir())

	migrated, err := svc.Migrate(context.Background())
	require.NoError(t, err)
	assert.Zero(t, migrated)
}

// writeLegacySnapshot writes a snapshot without the id-mapped flag, the way
// files from before stable ids look on disk.
func writeLegacySnapshot(t *testing.T, path string) {
	t.Helper()

	idx, err := flat.New(flat.Options{Dimension: testDim, Metric: distance.MetricInnerProduct})
	require.NoError(t, err)
	require.NoError(t, idx.Add([]int64{0}, [][]float32{fakeVector("old")}))

	payload, err := idx.MarshalBinary()
	require.NoError(t, err)

	header := persistence.FileHeader{
		Magic:       persistence.MagicNumber,
		Version:     persistence.FormatVersion,
		Kind:        uint8(index.KindFlat),
		Compression: uint8(persistence.CompressionNone),
		Flags:       persistence.FlagTrained,
		Dimension:   testDim,
		VectorCount: 1,
		PayloadSize: uint64(len(payload)),
		Checksum:    persistence.CalculateChecksum(payload),
	}

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, &header))
	buf.Write(payload)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestAppendRejectsLegacySnapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	writeLegacySnapshot(t, filepath.Join(dir, "index.dvc"))

	svc := newTestService(t, dir)

	_, err := svc.AppendTexts(ctx, []string{"new"}, "doc")
	require.ErrorIs(t, err, docvec.ErrLegacyIndex)

	// The snapshot stays searchable read-only.
	require.NoError(t, svc.Store().InsertMany(ctx, []store.Row{
		{ID: 0, DocID: "legacy", Text: "old"},
	}))

	results, err := svc.Search(ctx, "old", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "old", results[0].Text)
}

func TestUpgradeIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	writeLegacySnapshot(t, filepath.Join(dir, "index.dvc"))

	svc := newTestService(t, dir)
	require.NoError(t, svc.UpgradeIndex(ctx))

	_, info, err := persistence.Load(filepath.Join(dir, "index.dvc"))
	require.NoError(t, err)
	assert.True(t, info.IDMapped)

	// Appends work after the upgrade.
	_, err = svc.AppendTexts(ctx, []string{"new"}, "doc")
	require.NoError(t, err)
}

func TestUpgradeIndexWithoutSnapshot(t *testing.T) {
	svc := newTestService(t, t.TempDir())

	require.NoError(t, svc.UpgradeIndex(context.Background()))
}
