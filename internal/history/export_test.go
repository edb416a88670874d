package history

import "database/sql"

// DB exposes the connection pool to tests.
func (s *Store) DB() *sql.DB { return s.db }
