package docvec

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/hupe1980/docvec/embed"
	"github.com/hupe1980/docvec/index"
	"github.com/hupe1980/docvec/index/flat"
	"github.com/hupe1980/docvec/index/ivf"
	"github.com/hupe1980/docvec/legacy"
	"github.com/hupe1980/docvec/persistence"
	"github.com/hupe1980/docvec/store"
)

// metaKeyLegacyMigrated marks a completed legacy migration in the store.
const metaKeyLegacyMigrated = "legacy_migrated"

// SearchResult is a single search hit joined with its stored metadata.
type SearchResult struct {
	ID    int64
	DocID string
	Text  string
	Score float32
}

// chunk is one unit of text awaiting embedding and insertion.
type chunk struct {
	text  string
	docID string
}

// Service keeps a vector index and its SQLite metadata store in lock-step.
// Ids are allocated from the store's high-water mark, so they stay stable
// across restarts and appends.
type Service struct {
	embedder embed.Embedder
	opts     options
	store    *store.Store

	mu  sync.RWMutex
	idx index.Index
}

// New creates a Service backed by the given embedder. The metadata store is
// opened eagerly; the index snapshot is opened or created on first use.
func New(embedder embed.Embedder, optFns ...Option) (*Service, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	if _, err := index.ParseSpec(opts.indexSpec); err != nil {
		return nil, err
	}

	st, err := store.Open(opts.storePath)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}

	return &Service{
		embedder: embedder,
		opts:     opts,
		store:    st,
	}, nil
}

// Close releases the metadata store. The index snapshot is already durable;
// it is persisted at the end of every mutating operation.
func (s *Service) Close() error {
	return s.store.Close()
}

// Store exposes the underlying metadata store for collaborators that need
// direct metadata lookups, e.g. fetching all chunks of a document.
func (s *Service) Store() *store.Store {
	return s.store
}

// Count returns the number of chunks tracked by the store.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.store.Count(ctx)
}

// AppendTexts embeds texts and appends them to the index and the store,
// tagged with docID. Ids continue from the store's high-water mark. An empty
// input is a no-op. Returns the number of chunks appended.
func (s *Service) AppendTexts(ctx context.Context, texts []string, docID string) (int, error) {
	chunks := make([]chunk, len(texts))
	for i, text := range texts {
		chunks[i] = chunk{text: text, docID: docID}
	}

	start := time.Now()
	n, err := s.append(ctx, chunks)
	s.opts.metricsCollector.RecordAppend(len(texts), time.Since(start), err)

	return n, err
}

func (s *Service) append(ctx context.Context, chunks []chunk) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(chunks) == 0 {
		s.opts.logger.InfoContext(ctx, "append skipped, no chunks")
		return 0, nil
	}

	idx, err := s.openIndexLocked(ctx)
	if err != nil {
		return 0, err
	}

	maxID, err := s.store.MaxID(ctx)
	if err != nil {
		return 0, err
	}
	baseID := maxID + 1

	if err := s.trainLocked(ctx, idx, chunks); err != nil {
		s.idx = nil
		s.opts.logger.LogAppend(ctx, len(chunks), baseID, err)
		return 0, err
	}

	n, err := s.insertLocked(ctx, idx, chunks, baseID, s.store.InsertMany)
	if err != nil {
		// Drop the half-mutated in-memory index; the next open reloads the
		// last durable snapshot.
		s.idx = nil
		s.opts.logger.LogAppend(ctx, len(chunks), baseID, err)
		return n, err
	}

	if err := s.saveLocked(ctx, idx); err != nil {
		return n, err
	}

	s.opts.logger.LogAppend(ctx, n, baseID, nil)
	return n, nil
}

// BuildIndex discards all existing data and rebuilds the index and the
// store from texts. Ids restart at zero; rows are tagged with the build
// document id.
func (s *Service) BuildIndex(ctx context.Context, texts []string) (int, error) {
	start := time.Now()
	n, err := s.build(ctx, texts)
	s.opts.metricsCollector.RecordBuild(len(texts), time.Since(start), err)

	return n, err
}

func (s *Service) build(ctx context.Context, texts []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Nothing to build from; existing data stays untouched.
	if len(texts) == 0 {
		s.opts.logger.InfoContext(ctx, "build skipped, no texts")
		return 0, nil
	}

	if err := s.store.Clear(ctx); err != nil {
		return 0, err
	}

	idx, err := s.newIndexLocked()
	if err != nil {
		return 0, err
	}
	s.idx = idx

	chunks := make([]chunk, len(texts))
	for i, text := range texts {
		chunks[i] = chunk{text: text, docID: s.opts.buildDocID}
	}

	if err := s.trainLocked(ctx, idx, chunks); err != nil {
		s.opts.logger.LogBuild(ctx, len(chunks), err)
		return 0, err
	}

	n, err := s.insertLocked(ctx, idx, chunks, 0, s.store.InsertMany)
	if err != nil {
		s.opts.logger.LogBuild(ctx, len(chunks), err)
		return n, err
	}

	if err := s.saveLocked(ctx, idx); err != nil {
		return n, err
	}

	s.opts.logger.LogBuild(ctx, n, nil)
	return n, nil
}

// Search embeds the query and returns up to k results joined with their
// stored metadata, best first. Searching before any build or append returns
// ErrNotFound.
func (s *Service) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	start := time.Now()
	results, err := s.search(ctx, query, k)
	s.opts.metricsCollector.RecordSearch(k, time.Since(start), err)
	s.opts.logger.LogSearch(ctx, k, len(results), err)

	return results, err
}

func (s *Service) search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}

	// Searching never creates or writes an index; a missing snapshot means
	// nothing was ever built.
	var legacyIdx index.Index

	s.mu.Lock()
	if s.idx == nil {
		idx, info, err := persistence.Load(s.opts.indexPath)
		if err != nil {
			s.mu.Unlock()
			if os.IsNotExist(err) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		if info.IDMapped {
			if err := s.checkDriftLocked(ctx, idx); err != nil {
				s.mu.Unlock()
				return nil, err
			}
			s.idx = idx
		} else {
			// Read-only view, never cached: the id-mapped check must run
			// again before any mutation.
			legacyIdx = idx
		}
	}
	s.mu.Unlock()

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// Appends mutate the live index under the write lock; the scan has to
	// hold the read lock so it never sees a half-written batch.
	var candidates []index.Candidate
	if legacyIdx != nil {
		candidates, err = legacyIdx.Search(vec, k, index.SearchOptions{NProbes: s.opts.nprobes})
	} else {
		s.mu.RLock()
		candidates, err = s.idx.Search(vec, k, index.SearchOptions{NProbes: s.opts.nprobes})
		s.mu.RUnlock()
	}
	if err != nil {
		return nil, translateError(err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(candidates))
	scores := make(map[int64]float32, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
		scores[c.ID] = c.Score
	}

	rows, err := s.store.FetchByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	// Rows come back in candidate order; ids the store no longer knows are
	// dropped silently.
	results := make([]SearchResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, SearchResult{
			ID:    row.ID,
			DocID: row.DocID,
			Text:  row.Text,
			Score: scores[row.ID],
		})
	}
	return results, nil
}

// Migrate imports the legacy chunk list into the index and the store. It
// runs at most once: a meta marker guards against double migration, and the
// legacy file is never deleted. Returns the number of chunks migrated.
func (s *Service) Migrate(ctx context.Context) (int, error) {
	start := time.Now()
	migrated, skipped, err := s.migrate(ctx)
	s.opts.metricsCollector.RecordMigrate(migrated, skipped, time.Since(start), err)
	s.opts.logger.LogMigrate(ctx, migrated, skipped, err)

	return migrated, err
}

func (s *Service) migrate(ctx context.Context) (migrated, skipped int, err error) {
	entries, skipped, err := legacy.Load(s.opts.legacyPath)
	if err != nil {
		if os.IsNotExist(err) {
			s.opts.logger.InfoContext(ctx, "no legacy list found, nothing to migrate",
				"path", s.opts.legacyPath,
			)
			return 0, 0, nil
		}
		return 0, 0, err
	}

	if _, done, err := s.store.GetMeta(ctx, metaKeyLegacyMigrated); err != nil {
		return 0, 0, err
	} else if done {
		s.opts.logger.InfoContext(ctx, "legacy list already migrated")
		return 0, skipped, nil
	}

	chunks := make([]chunk, len(entries))
	for i, e := range entries {
		chunks[i] = chunk{text: e.Text, docID: e.DocID}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.openIndexLocked(ctx)
	if err != nil {
		return 0, skipped, err
	}

	maxID, err := s.store.MaxID(ctx)
	if err != nil {
		return 0, skipped, err
	}

	if len(chunks) > 0 {
		if err := s.trainLocked(ctx, idx, chunks); err != nil {
			s.idx = nil
			return 0, skipped, err
		}
	}

	// Rows are collected and committed together with the marker in one
	// transaction: a failed run leaves the store untouched, so a re-run
	// starts from the same high-water mark instead of re-inserting the
	// chunks under fresh ids.
	var rows []store.Row
	migrated, err = s.insertLocked(ctx, idx, chunks, maxID+1, func(_ context.Context, batch []store.Row) error {
		rows = append(rows, batch...)
		return nil
	})
	if err != nil {
		s.idx = nil
		return 0, skipped, err
	}

	if err := s.store.InsertManyWithMeta(ctx, rows, metaKeyLegacyMigrated, time.Now().UTC().Format(time.RFC3339)); err != nil {
		s.idx = nil
		return 0, skipped, err
	}

	return migrated, skipped, s.saveLocked(ctx, idx)
}

// UpgradeIndex rewrites a pre-id-mapped snapshot in the current format.
// A missing snapshot, or one that is already id-mapped, is a no-op.
func (s *Service) UpgradeIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, info, err := persistence.Load(s.opts.indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.IDMapped {
		return nil
	}

	if err := s.saveLocked(ctx, idx); err != nil {
		return err
	}
	s.idx = idx

	s.opts.logger.InfoContext(ctx, "legacy snapshot upgraded",
		"filename", s.opts.indexPath,
		"vectors", info.VectorCount,
	)
	return nil
}

// openIndexLocked returns the live index for a mutating operation, loading
// the snapshot or creating a fresh index as needed. New indexes are
// persisted immediately so the on-disk layout is fixed from the start.
//
// A snapshot without the id-mapped flag refuses mutation with ErrLegacyIndex
// until UpgradeIndex has run; searches load such snapshots read-only and
// never go through here.
func (s *Service) openIndexLocked(ctx context.Context) (index.Index, error) {
	if s.idx != nil {
		return s.idx, nil
	}

	idx, info, err := persistence.Load(s.opts.indexPath)
	switch {
	case err == nil:
		if !info.IDMapped {
			return nil, ErrLegacyIndex
		}
		if err := s.checkDriftLocked(ctx, idx); err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
		idx, err = s.newIndexLocked()
		if err != nil {
			return nil, err
		}
		if err := s.saveLocked(ctx, idx); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	s.idx = idx
	return idx, nil
}

func (s *Service) newIndexLocked() (index.Index, error) {
	spec, err := index.ParseSpec(s.opts.indexSpec)
	if err != nil {
		return nil, err
	}

	switch spec.Kind {
	case index.KindIVF:
		return ivf.New(ivf.Options{
			Dimension: s.embedder.Dimension(),
			Metric:    s.opts.metric,
			NList:     spec.NList,
		})
	default:
		return flat.New(flat.Options{
			Dimension: s.embedder.Dimension(),
			Metric:    s.opts.metric,
		})
	}
}

func (s *Service) checkDriftLocked(ctx context.Context, idx index.Index) error {
	maxID, err := s.store.MaxID(ctx)
	if err != nil {
		return err
	}
	if maxID+1 > int64(idx.Count()) {
		s.opts.logger.LogDrift(ctx, maxID+1, int64(idx.Count()))
	}
	return nil
}

// trainLocked runs the one-time training pass on an untrained index, using
// up to the sample limit of the incoming chunks.
func (s *Service) trainLocked(ctx context.Context, idx index.Index, chunks []chunk) error {
	if idx.Trained() {
		return nil
	}

	sample := chunks
	if len(sample) > trainSampleLimit {
		sample = sample[:trainSampleLimit]
	}

	texts := make([]string, len(sample))
	for i, c := range sample {
		texts[i] = c.text
	}

	start := time.Now()
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err == nil {
		err = idx.Train(ctx, vectors)
	}
	s.opts.metricsCollector.RecordTrain(len(sample), time.Since(start), err)
	s.opts.logger.LogTrain(ctx, len(sample), err)

	return translateError(err)
}

// insertLocked embeds chunks batch by batch, adding each batch to the index
// and handing its rows to commit before moving on. Ids are contiguous from
// baseID. Appends commit straight to the store; migration collects the rows
// for a single transaction.
func (s *Service) insertLocked(ctx context.Context, idx index.Index, chunks []chunk, baseID int64, commit func(context.Context, []store.Row) error) (int, error) {
	cursor := baseID

	for i := 0; i < len(chunks); i += s.opts.batchSize {
		if err := ctx.Err(); err != nil {
			return int(cursor - baseID), err
		}

		end := min(i+s.opts.batchSize, len(chunks))
		batch := chunks[i:end]

		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.text
		}

		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return int(cursor - baseID), fmt.Errorf("embed batch: %w", err)
		}

		ids := make([]int64, len(batch))
		rows := make([]store.Row, len(batch))
		for j, c := range batch {
			id := cursor + int64(j)
			ids[j] = id
			rows[j] = store.Row{ID: id, DocID: c.docID, Text: c.text}
		}

		if err := idx.Add(ids, vectors); err != nil {
			return int(cursor - baseID), translateError(err)
		}
		if err := commit(ctx, rows); err != nil {
			return int(cursor - baseID), err
		}

		cursor += int64(len(batch))
	}
	return int(cursor - baseID), nil
}

func (s *Service) saveLocked(ctx context.Context, idx index.Index) error {
	err := persistence.Save(s.opts.indexPath, idx, func(o *persistence.SaveOptions) {
		o.Compression = s.opts.compression
	})
	s.opts.logger.LogSnapshot(ctx, s.opts.indexPath, err)

	return err
}
