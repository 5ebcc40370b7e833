// Package sqlite implements store.Store using the grove ORM with the SQLite
// dialect. Suitable for embedded deployments and single-node daemons.
//
// Writes are serialized inside the Store, so a status-guarded
// UPDATE ... RETURNING is enough to make claims atomic. Timestamps are
// stored as unix nanoseconds to keep ordering exact.
//
//	s, err := sqlite.Open(ctx, "file:jobq.db?_pragma=busy_timeout(5000)")
//	if err != nil { ... }
//	defer s.Close()
//	if err := s.Migrate(ctx); err != nil { ... }
//
// A caller that already holds a *grove.DB passes it to New instead and
// keeps ownership of it.
package sqlite
