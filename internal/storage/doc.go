// Package storage is petbot's SQLite persistence layer.
//
// Every exported method is a single independently-committing call; no
// transaction spans more than one method.
package storage
