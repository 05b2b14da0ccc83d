package redis

// SetBeforeCommit installs a hook that runs between the read and the write of
// CompareAndSwap.
func SetBeforeCommit(s *Store, f func()) {
	s.beforeCommit = f
}
