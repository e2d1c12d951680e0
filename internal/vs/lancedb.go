package vs

import (
	"context"
	"log/slog"
	"sync"
)

// LanceDBStore is a declared backend placeholder: no LanceDB Go
// binding is available to this build, so every operation reports
// unavailability and NewStore falls back to SQLiteStore. This follows
// a "downgrade gracefully when the optional adapter is not
// compiled in" policy.
type LanceDBStore struct {
	warnOnce sync.Once
}

func (l *LanceDBStore) logUnavailable() {
	l.warnOnce.Do(func() {
		slog.Warn("vector_backend_unavailable", slog.String("backend", string(BackendLanceDB)), slog.String("fallback", string(BackendSQLite)))
	})
}

func (l *LanceDBStore) Backend() Backend       { return BackendLanceDB }
func (l *LanceDBStore) Available() bool        { return false }
func (l *LanceDBStore) Close() error           { return nil }
func (l *LanceDBStore) WarmPartitions() int    { return 0 }

func (l *LanceDBStore) Upsert(ctx context.Context, vectors []*Vector) error {
	l.logUnavailable()
	return errUnavailable
}

func (l *LanceDBStore) DeleteByPath(ctx context.Context, projectID, ref, path string) error {
	l.logUnavailable()
	return errUnavailable
}

func (l *LanceDBStore) DeleteBySymbol(ctx context.Context, projectID, ref, symbolStableID string) error {
	l.logUnavailable()
	return errUnavailable
}

func (l *LanceDBStore) Search(ctx context.Context, key PartitionKey, query []float32, k int) ([]*Result, error) {
	l.logUnavailable()
	return nil, errUnavailable
}

var _ Store = (*LanceDBStore)(nil)
