package db

import "database/sql"

// DB wraps the sql handle so services depend on a local type
// rather than database/sql directly.
type DB struct {
	*sql.DB
}
