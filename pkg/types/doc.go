// Package types provides the shared type definitions for semlaunch.
//
// # Embedding State
//
// EmbeddingState records how much text about a filesystem entry has been
// embedded. States are totally ordered by richness:
//
//	types.StateNone() < types.StateName() < types.StateParagraphs(1) < types.StateParagraphs(2) ...
//
// The metadata store persists states as integers (None=0, Name=1,
// Paragraphs(n)=2+n) via Code and StateFromCode. The encoding preserves the
// order, so comparisons can be done on either form.
//
// # Cache Items
//
// CacheItem pairs a canonical path with a state. It is what the ranker asks
// the background scheduler to produce, and what the vector cache checks
// against the store before re-embedding:
//
//	item := types.CacheItem{Path: "/home/me/notes.md", State: types.StateParagraphs(3)}
//
// # Results
//
// RankResult is a single ranked path. Source tells which ranker stage
// produced it (ExactPath, InDir, StartLikePath, Semantic) and Score orders
// the list, lower first.
package types
