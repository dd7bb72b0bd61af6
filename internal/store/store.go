package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// ErrNotFound indicates the record at the requested path does not exist.
var ErrNotFound = errors.New("record not found")

// TxFunc is the body of a single-record read-modify-write transaction.
// It receives the current record at the path (nil if absent) and returns
// the record to write. Returning an error aborts the transaction without
// writing.
type TxFunc func(current json.RawMessage) (json.RawMessage, error)

// ChangeFunc receives change notifications for records under a listened
// path.
type ChangeFunc func(path string, record json.RawMessage)

// Store is the document-store abstraction every engine in this codebase
// talks to. Records are JSON documents addressed by slash-separated
// paths (e.g. "products/abc", "warnings/user-1/warn-2").
//
// This abstraction allows swapping between the in-memory store
// (development, tests), Redis, and a SQL documents table without
// changing business logic.
type Store interface {
	// Get reads the record at path into out. Returns ErrNotFound if absent.
	Get(ctx context.Context, path string, out any) error

	// List reads all records exactly one level below parent into out,
	// which must be a pointer to a slice. An empty result is not an error.
	List(ctx context.Context, parent string, out any) error

	// Set writes the record at path, overwriting any existing record.
	Set(ctx context.Context, path string, value any) error

	// UpdateFields merges the given fields into the record at path.
	// Returns ErrNotFound if the record does not exist.
	UpdateFields(ctx context.Context, path string, fields map[string]any) error

	// Remove deletes the record at path. Removing an absent record is
	// not an error.
	Remove(ctx context.Context, path string) error

	// GenerateID returns a new collision-free id for a record under parent.
	GenerateID(ctx context.Context, parent string) (string, error)

	// RunTransaction executes fn as an atomic read-modify-write of the
	// single record at path. committed is false when the backend gave up
	// on optimistic conflicts without writing.
	RunTransaction(ctx context.Context, path string, fn TxFunc) (committed bool, err error)

	// Listen invokes fn for every record written under parent until the
	// returned cancel function is called. Delivery is asynchronous and
	// best-effort.
	Listen(ctx context.Context, parent string, fn ChangeFunc) (cancel func(), err error)
}

// Join builds a record path from its segments.
func Join(parts ...string) string {
	return strings.Join(parts, "/")
}

// childOf reports whether path is exactly one level below parent, and
// returns the child id.
func childOf(parent, path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, parent+"/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

func underneath(parent, path string) bool {
	return strings.HasPrefix(path, parent+"/")
}
