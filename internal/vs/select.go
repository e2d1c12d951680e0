package vs

import "database/sql"

// Selection is the outcome of resolving a requested backend, carrying
// whether a graceful fallback occurred so callers can surface
// adapter_unavailable=true on health/status payloads.
type Selection struct {
	Store               Store
	Requested           Backend
	AdapterUnavailable  bool
}

// NewStore resolves the requested backend, falling back to SQLite
// when the request names an adapter this build doesn't compile in.
func NewStore(requested Backend, db *sql.DB, cacheSize int, opts ...Option) (*Selection, error) {
	if requested == BackendLanceDB {
		sqliteStore, err := NewSQLiteStore(db, cacheSize, opts...)
		if err != nil {
			return nil, err
		}
		(&LanceDBStore{}).logUnavailable()
		return &Selection{Store: sqliteStore, Requested: requested, AdapterUnavailable: true}, nil
	}

	sqliteStore, err := NewSQLiteStore(db, cacheSize, opts...)
	if err != nil {
		return nil, err
	}
	return &Selection{Store: sqliteStore, Requested: BackendSQLite}, nil
}
