package keystore

// Unavailable returns a Store whose every operation fails with the
// given error. Used as the primary tier when the real store could not
// be opened, so the service's normal degradation path takes over.
func Unavailable(err error) Store {
	return unavailableStore{err: err}
}

type unavailableStore struct {
	err error
}

func (s unavailableStore) Put(string, *Record) error   { return s.err }
func (s unavailableStore) Get(string) (*Record, error) { return nil, s.err }
func (s unavailableStore) Delete(string) error         { return s.err }
func (s unavailableStore) Close() error                { return nil }
