// Package watcher feeds filesystem changes into the embedding queue so new
// and edited entries become searchable without a query touching them first.
package watcher
