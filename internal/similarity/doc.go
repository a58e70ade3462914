// Package similarity ranks candidate records against a query by cosine
// similarity.
//
// The engine performs a linear scan: every candidate vector is scored,
// candidates below the threshold are dropped, the rest are stably sorted by
// descending score and truncated to top-k. Candidates without a vector are
// skipped rather than scored as non-matches.
//
// Search wraps FindSimilar with embedding and result caching. Result sets
// are cached under a digest of (query text, top-k, threshold), so a repeated
// query never reaches the embedding provider:
//
//	engine := similarity.NewEngine(provider, c, similarity.WithLogger(logger))
//	results, err := engine.Search(ctx, "duplicated western blot bands", store,
//	    similarity.SearchOptions{TopK: 10, Threshold: 0.5, Kind: similarity.KindPaper})
//
// Comparing vectors of different lengths is a precondition violation and
// fails the whole request with ErrDimensionMismatch.
package similarity
