package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrLockHeld means another worker owns the lock
var ErrLockHeld = errors.New("lock is held by another owner")

// Locker hands out expiring, owner-checked locks
type Locker interface {
	// Acquire takes key for ttl and returns the owner token
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Release frees key only if token still owns it
	Release(ctx context.Context, key, token string) error
}

// MeetingLockKey is the lock guarding one meeting's processing
func MeetingLockKey(meetingID uuid.UUID) string {
	return "lock:meeting:" + meetingID.String()
}

// MemoryLocker is a single-process Locker backed by MemoryStore
type MemoryLocker struct {
	store *MemoryStore
}

// NewMemoryLocker creates a locker over store
func NewMemoryLocker(store *MemoryStore) *MemoryLocker {
	return &MemoryLocker{store: store}
}

// Acquire implements Locker
func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	if !l.store.SetNX(key, token, ttl) {
		return "", ErrLockHeld
	}
	return token, nil
}

// Release implements Locker
func (l *MemoryLocker) Release(_ context.Context, key, token string) error {
	l.store.CompareAndDelete(key, token)
	return nil
}
