// Package analysis wires the cache, embeddings, similarity, confidence,
// cluster and store packages into the retraction-analysis pipeline.
//
// A paper is analyzed once: entities are extracted and embedded, chains are
// built and scored against the stored chain population, and the result is
// cached under the paper_analysis namespace until InvalidatePaper or
// Reanalyze removes it.
package analysis
