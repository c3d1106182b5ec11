package bolt

import (
	"sync"
)

// InitFuture is the one-shot signal of INIT completion. Wait blocks
// until the INIT response arrives and returns the live connection or the
// error that ended initialization.
type InitFuture struct {
	done chan struct{}
	conn *Connection
	err  error
}

// Wait blocks until the future settles
func (f *InitFuture) Wait() (*Connection, error) {
	<-f.done
	return f.conn, f.err
}

// Done returns a channel closed when the future settles
func (f *InitFuture) Done() <-chan struct{} {
	return f.done
}

// connectionState tracks the initialization lifecycle. An init error
// that arrives before anyone asked for the future is memorized and only
// materializes when the future is first requested.
type connectionState struct {
	conn *Connection

	mu      sync.Mutex
	settled bool
	err     error
	future  *InitFuture
}

func newConnectionState(conn *Connection) *connectionState {
	return &connectionState{conn: conn}
}

func (s *connectionState) initFuture() *InitFuture {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.future == nil {
		s.future = &InitFuture{done: make(chan struct{})}
		if s.settled {
			s.settleFutureLocked()
		}
	}
	return s.future
}

func (s *connectionState) succeed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settled {
		return
	}
	s.settled = true
	if s.future != nil {
		s.settleFutureLocked()
	}
}

func (s *connectionState) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settled {
		return
	}
	s.settled = true
	s.err = err
	if s.future != nil {
		s.settleFutureLocked()
	}
}

func (s *connectionState) settleFutureLocked() {
	if s.err == nil {
		s.future.conn = s.conn
	} else {
		s.future.err = s.err
	}
	close(s.future.done)
}

// wrap instruments the caller's INIT observer: completion records the
// server version and resolves the future, an error rejects the future
// and then poisons the connection. The caller's terminal runs after the
// queue has already advanced, so a reentrant submission from inside it
// sees a consistent queue.
func (s *connectionState) wrap(obs StreamObserver) StreamObserver {
	return StreamObserver{
		OnNext: obs.notifyNext,
		OnCompleted: func(metadata map[string]interface{}) {
			s.conn.completeInitialization(metadata)
			s.succeed()
			obs.notifyCompleted(metadata)
		},
		OnError: func(err error) {
			s.fail(err)
			obs.notifyError(err)
			s.conn.handleFatalError(err)
		},
	}
}
