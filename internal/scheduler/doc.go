// Package scheduler runs the background embedding pipeline.
//
// The ranker produces Tasks, each naming a path and the EmbeddingState it
// should reach. Tasks wait in a Queue ordered by ascending priority. Run pops
// them one at a time and hands each to its own goroutine, so a slow embedding
// call never stalls the loop; up to MaxInFlight tasks run at once and the
// rest stay queued.
//
// The queue is shared with the ranker: when the user's input changes the
// ranker calls Replace, discarding pending work for the old input, and when
// it is unchanged it calls Push. Tasks already running finish regardless.
//
// ExecuteTask is idempotent against the metadata store. A task for a path
// already embedded at the requested state or richer does nothing. Failed
// tasks are not retried; the next query for the same area re-enqueues them.
package scheduler
