// Package cluster groups scored chains into clusters that share an
// explanation.
//
// Assemble groups chains whose entity-id sets are identical. Groups smaller
// than the minimum size are dropped; survivors carry mean confidence, mean
// severity and a majority-vote retraction reason. Cluster IDs are derived
// from the grouping key, so re-assembling the same chains yields the same
// IDs.
//
// AssembleBySimilarEntities is the looser variant: each chain is reduced to
// the centroid of its entity vectors and chains are grouped greedily by
// cosine similarity.
//
// Two clusters are compared by RelationOverlap, the number of relations
// they share.
package cluster
