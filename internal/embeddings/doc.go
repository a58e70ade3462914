// Package embeddings turns text into fixed-width vectors.
//
// Three providers are available: FastEmbed (local ONNX models, requires cgo),
// TEI (a text-embeddings-inference HTTP server) and OpenAI. NewProvider picks
// one from configuration.
//
// CachedProvider wraps any Provider with cache-aside lookups in the
// "embedding" cache namespace. By default the cache identifier is the whole
// text; KeyModePrefix keys on the first PrefixLength code points instead,
// which lets distinct long texts sharing a prefix collide.
package embeddings
