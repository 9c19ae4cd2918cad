// Package database is the asset store: one row per uploaded video, tracking
// its lifecycle from upload through processing to a terminal state.
//
// Backed by SQLite in WAL mode. The schema is created on startup; there is no
// migration machinery, additive changes use CREATE TABLE IF NOT EXISTS.
package database
