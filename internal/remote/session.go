package remote

import "sync"

// lazySession connects on first use and keeps the session for the rest of
// the adapter's lifetime. A failed attempt is not remembered: the next call
// runs open again.
type lazySession[S interface{ Close() error }] struct {
	mu          sync.Mutex
	open        func() (S, error)
	session     S
	established bool
}

func newLazySession[S interface{ Close() error }](open func() (S, error)) *lazySession[S] {
	return &lazySession[S]{open: open}
}

func (l *lazySession[S]) get() (S, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.established {
		return l.session, nil
	}

	s, err := l.open()
	if err != nil {
		var zero S
		return zero, err
	}
	l.session = s
	l.established = true
	return s, nil
}

// close closes the session if one was established. The lazySession can be
// used again afterwards and will reconnect.
func (l *lazySession[S]) close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.established {
		return nil
	}
	err := l.session.Close()
	var zero S
	l.session = zero
	l.established = false
	return err
}
