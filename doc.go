// Package docvec keeps a vector index and a SQLite metadata store in
// lock-step, so every indexed vector can be resolved back to the chunk of
// text it came from.
//
// # Quick Start
//
//	ctx := context.Background()
//
//	embedder := embed.NewOpenAI(os.Getenv("DOCVEC_API_KEY"))
//	svc, _ := docvec.New(embedder, docvec.WithDataDir("./data"))
//	defer svc.Close()
//
//	svc.BuildIndex(ctx, texts)                    // full rebuild, ids from 0
//	svc.AppendTexts(ctx, more, "report-7")        // incremental, ids continue
//
//	results, _ := svc.Search(ctx, "pump cavitation symptoms", 5)
//	for _, r := range results {
//	    fmt.Println(r.ID, r.DocID, r.Score, r.Text)
//	}
//
// # Identity Model
//
// Ids are int64, allocated contiguously from the store's high-water mark
// (MaxID+1). They never move or get reused, so an id found in the index is
// always resolvable in the store; rows whose ids have left the store are
// dropped from search results silently.
//
// # Index Layouts
//
// The index layout is chosen by a factory spec string at creation time:
//
//	docvec.WithIndexSpec("Flat")         // exact search (default)
//	docvec.WithIndexSpec("IVF256,Flat")  // partitioned, trained once
//
// Partitioned indexes train exactly once, on the first batch of data they
// see; later appends reuse the trained partitioning.
//
// # Durability
//
// The metadata store commits every batch. The index snapshot is written
// atomically (temp file + rename) at the end of every mutating operation,
// with a CRC-verified, compressed payload.
package docvec
