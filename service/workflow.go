// Package service implements the medication plan workflow: measurement intake,
// plan resolution, patient registration and the read-side projections.
package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/oceanvince/mangxia/dosage"
	"github.com/oceanvince/mangxia/events"
	"github.com/oceanvince/mangxia/storage"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultImageMaxBytes = 5 * 1024 * 1024
	defaultLatestLimit   = 3
	publishTimeout       = 5 * time.Second
)

// Locker serializes intake per patient. The release func must always be non-nil.
type Locker interface {
	Lock(ctx context.Context, patientID string) (func(), error)
}

type nopLocker struct{}

func (nopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }

// Options carries the collaborators of a Workflow. Zero values fall back to defaults.
type Options struct {
	Policy        dosage.Suggester
	Images        storage.ImageStore
	Events        events.Publisher
	Locker        Locker
	Timeout       time.Duration
	ImageMaxBytes int64
	Now           func() time.Time
	Logger        *zerolog.Logger
}

// Workflow owns the transactional operations over patients, measurements and plans.
type Workflow struct {
	db            *gorm.DB
	policy        dosage.Suggester
	images        storage.ImageStore
	events        events.Publisher
	locker        Locker
	timeout       time.Duration
	imageMaxBytes int64
	now           func() time.Time
	log           zerolog.Logger
}

func New(db *gorm.DB, opts Options) *Workflow {
	w := &Workflow{
		db:            db,
		policy:        opts.Policy,
		images:        opts.Images,
		events:        opts.Events,
		locker:        opts.Locker,
		timeout:       opts.Timeout,
		imageMaxBytes: opts.ImageMaxBytes,
		now:           opts.Now,
		log:           zerolog.Nop(),
	}
	if w.policy == nil {
		w.policy = dosage.DefaultPolicy()
	}
	if w.events == nil {
		w.events = events.NopPublisher{}
	}
	if w.locker == nil {
		w.locker = nopLocker{}
	}
	if w.timeout <= 0 {
		w.timeout = defaultTimeout
	}
	if w.imageMaxBytes <= 0 {
		w.imageMaxBytes = defaultImageMaxBytes
	}
	if w.now == nil {
		w.now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Logger != nil {
		w.log = opts.Logger.With().Str("component", "workflow").Logger()
	}
	return w
}

func (w *Workflow) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, w.timeout)
}

// Ping checks that the store is reachable.
func (w *Workflow) Ping(ctx context.Context) error {
	sqlDB, err := w.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// publish delivers e after commit. Failures are logged and never reach the caller.
func (w *Workflow) publish(e events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := w.events.Publish(ctx, e); err != nil {
		w.log.Warn().Err(err).
			Str("event", string(e.Type)).
			Str("plan_id", e.PlanID).
			Msg("failed to publish plan event")
	}
}
