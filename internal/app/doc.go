// Package app wires storage, embedder, vector cache, scheduler, ranker and
// builder into one process-wide set of components.
package app
