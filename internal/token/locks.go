package token

import "sync"

// walletLocks serializes financial operations per wallet id, so the balance
// check, chain call and database commit of one request cannot interleave with
// another request for the same wallet.
type walletLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newWalletLocks() *walletLocks {
	return &walletLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for the wallet and returns the unlock function.
func (l *walletLocks) acquire(walletID string) func() {
	l.mu.Lock()
	lock, ok := l.locks[walletID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[walletID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
