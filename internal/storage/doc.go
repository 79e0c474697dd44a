// Package storage persists the path metadata table behind the vector cache.
//
// Each canonical path gets one row in the items table:
//
//	items(id INTEGER PRIMARY KEY AUTOINCREMENT, path TEXT UNIQUE, state INTEGER)
//
// The id is assigned on first insert and never changes, so vector indices can
// store the small integer instead of the path. The state column holds the
// integer encoding of types.EmbeddingState (None=0, Name=1, Paragraphs(n)=2+n).
// Upserts keep the richer of the stored and the new state.
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("~/.semlaunch/items.db")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	id, err := db.InsertOrUpdate(ctx, "/home/me/notes.md", types.StateName())
//	path, err := db.GetPathByID(ctx, id)
//
// Lookups of unknown paths or ids return ErrNotFound.
//
// # Drivers
//
// The default build uses modernc.org/sqlite (pure Go). Building with the
// sqlite_cgo tag switches to github.com/mattn/go-sqlite3.
//
// # Migrations
//
// Schema changes are listed in AllMigrations and applied in semver order by
// ApplyMigrations when the store is opened.
package storage
