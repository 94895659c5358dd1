// Package storage persists the campaign audit trail (delivery reports).
//
// Two backends: a dependency-free jsonl file and SQLite. Reports are an
// append-only log; restarting the process never resumes a run from them.
package storage
