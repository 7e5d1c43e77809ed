package cases

import "sync"

// caseLocks hands out one mutex per case id and forgets it once nobody
// holds or waits for it.
type caseLocks struct {
	mu    sync.Mutex
	locks map[string]*caseLock
}

type caseLock struct {
	mu   sync.Mutex
	refs int
}

func newCaseLocks() *caseLocks {
	return &caseLocks{locks: make(map[string]*caseLock)}
}

func (c *caseLocks) lock(caseID string) (unlock func()) {
	c.mu.Lock()
	l, ok := c.locks[caseID]
	if !ok {
		l = &caseLock{}
		c.locks[caseID] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, caseID)
		}
		c.mu.Unlock()
	}
}
