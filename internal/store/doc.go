// Package store persists papers, entities, chains and clusters in SQLite.
//
// The database runs in WAL mode and is migrated on open from the embedded
// migrations. Slice and map fields are stored as JSON text; embedding
// vectors are stored as little-endian float32 BLOBs.
//
// Store implements similarity.CandidateSource: papers and entities that
// carry a vector form the candidate populations for similarity search.
package store
