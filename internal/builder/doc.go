// Package builder creates the approximate vector index offline.
//
// Build crawls a directory tree, records every entry in the metadata store,
// embeds its prompts and adds the vectors to a random projection forest,
// which is then written to disk for vectorcache.Open to load at startup.
// Hidden directories and .gitignore matches are skipped unless ScanAll is
// set. A file lock next to the index keeps concurrent builds apart.
package builder
