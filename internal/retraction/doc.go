// Package retraction defines the records shared by the retraction analysis
// pipeline: entities extracted from a paper, reasoning chains linking them,
// scored chains and clusters of chains that share an explanation.
//
// Records arrive from the reasoning generator as JSON (see ParseEntities and
// ParseChains) and from the document store. Fixed fields are typed; anything
// else the generator emits is kept in the open Attributes map.
//
// Lookups (ChainByKey, PaperByKey, ...) report absence as a false second
// return value. A missing record is a normal query outcome, not an error.
package retraction
