package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), KindTimeout},
		{"not found", gorm.ErrRecordNotFound, KindNotFound},
		{"gorm duplicate", gorm.ErrDuplicatedKey, KindConflict},
		{"postgres unique", &pgconn.PgError{Code: "23505"}, KindConflict},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, KindConflict},
		{"sqlite unique", errors.New("UNIQUE constraint failed: medication_plans.pending_key"), KindConflict},
		{"postgres other", &pgconn.PgError{Code: "42P01"}, KindStorage},
		{"anything else", errors.New("disk full"), KindStorage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.err, "op failed")
			assert.Equal(t, tt.want, KindOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.NoError(t, classify(nil, "x"))

	tagged := validationError("bad input")
	assert.Same(t, tagged, classify(tagged, "x"))
}

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", newError(KindConflict, msgPendingExists, nil))

	assert.ErrorIs(t, err, ErrConflict)
	assert.False(t, errors.Is(err, ErrInvalidState))
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, KindStorage, KindOf(errors.New("plain")))
	assert.Contains(t, err.Error(), msgPendingExists)
}

func TestError_Message(t *testing.T) {
	cause := errors.New("boom")
	assert.Equal(t, "storage", ErrStorage.Error())
	assert.Equal(t, "only msg", newError(KindStorage, "only msg", nil).Error())
	assert.Equal(t, "boom", newError(KindStorage, "", cause).Error())
	assert.Equal(t, "save: boom", newError(KindStorage, "save", cause).Error())
}
