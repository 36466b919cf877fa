package util

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrPatientLocked is returned when another intake for the same patient holds the lock.
var ErrPatientLocked = errors.New("another submission for this patient is in progress")

// releaseScript deletes the lock only if it still carries our token.
const releaseScript = `
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`

// PatientLocker serializes measurement intake per patient through Redis.
// A nil client makes every Lock call succeed without coordination.
type PatientLocker struct {
	rdb      *redis.Client
	ttl      time.Duration
	newToken func() string
}

// NewPatientLocker returns a locker whose locks expire after ttl if never released.
func NewPatientLocker(rdb *redis.Client, ttl time.Duration) *PatientLocker {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &PatientLocker{rdb: rdb, ttl: ttl, newToken: uuid.NewString}
}

func patientLockKey(patientID string) string {
	return fmt.Sprintf("patient_lock:%s", patientID)
}

// Lock acquires the patient's lock. The returned release func is always non-nil.
func (l *PatientLocker) Lock(ctx context.Context, patientID string) (func(), error) {
	noop := func() {}
	if l == nil || l.rdb == nil {
		return noop, nil
	}

	key := patientLockKey(patientID)
	token := l.newToken()
	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return noop, fmt.Errorf("acquire patient lock: %w", err)
	}
	if !ok {
		return noop, ErrPatientLocked
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.rdb.Eval(ctx, releaseScript, []string{key}, token).Err()
	}, nil
}
