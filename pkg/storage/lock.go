package storage

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Lock is a held advisory lock on a database directory.
type Lock struct {
	file *os.File
}

// Acquire takes an exclusive non-blocking flock on the database lock file.
// It fails immediately when another process already serves this database.
func (l Layout) Acquire() (*Lock, error) {
	f, err := os.OpenFile(l.lockPath(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("database %s is locked by another process: %w", l.name, err)
	}
	return &Lock{file: f}, nil
}

// Release drops the lock.
func (lk *Lock) Release() error {
	if lk.file == nil {
		return nil
	}
	err := unix.Flock(int(lk.file.Fd()), unix.LOCK_UN)
	closeErr := lk.file.Close()
	lk.file = nil
	if err != nil {
		return err
	}
	return closeErr
}
