// Package audit decouples request handling from audit persistence. Records
// are queued on a buffered channel and written by a single background
// worker, so a slow database never stalls a login.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/activitymaster/clubauth/internal/auth/domain"
	"github.com/activitymaster/clubauth/internal/auth/store"
	"github.com/activitymaster/clubauth/pkg/idx"
	"github.com/activitymaster/clubauth/pkg/metrics"
)

const defaultBuffer = 256

type record struct {
	auth  *domain.AuthLog
	audit *domain.AuditLog
}

// Sink is the asynchronous audit recorder. All Record* methods are safe for
// concurrent use and never block; when the buffer is full the record is
// dropped and counted.
type Sink struct {
	Store  store.Store
	Logger *slog.Logger

	ch     chan record
	stopCh chan struct{}
	doneCh chan struct{}
}

func NewSink(st store.Store, logger *slog.Logger, buffer int) *Sink {
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	return &Sink{
		Store:  st,
		Logger: logger,
		ch:     make(chan record, buffer),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the background writer. Non-blocking.
func (s *Sink) Start() {
	go s.run()
	s.Logger.Info("audit sink started", "buffer", cap(s.ch))
}

// Stop drains queued records and shuts the writer down.
func (s *Sink) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("audit sink stopped")
}

// RecordAuth queues an authentication log entry.
func (s *Sink) RecordAuth(userID string, method domain.AuthMethod, ip string, status bool, details string) {
	s.enqueue(record{auth: &domain.AuthLog{
		ID:        idx.New().String(),
		UserID:    userID,
		Method:    method,
		IPAddress: ip,
		Status:    status,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}})
}

// RecordAudit queues an audit log entry.
func (s *Sink) RecordAudit(userID, action string, category domain.AuditCategory, status bool, details string) {
	s.enqueue(record{audit: &domain.AuditLog{
		ID:        idx.New().String(),
		UserID:    userID,
		Action:    action,
		Category:  category,
		Status:    status,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}})
}

func (s *Sink) enqueue(r record) {
	select {
	case s.ch <- r:
	default:
		metrics.AuditDropped.Inc()
		s.Logger.Warn("audit buffer full, dropping record")
	}
}

func (s *Sink) run() {
	defer close(s.doneCh)

	for {
		select {
		case r := <-s.ch:
			s.write(r)
		case <-s.stopCh:
			// Drain whatever is still queued before exiting
			for {
				select {
				case r := <-s.ch:
					s.write(r)
				default:
					return
				}
			}
		}
	}
}

func (s *Sink) write(r record) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	switch {
	case r.auth != nil:
		err = s.Store.Audit().CreateAuthLog(ctx, *r.auth)
	case r.audit != nil:
		err = s.Store.Audit().CreateAuditLog(ctx, *r.audit)
	}

	if err != nil {
		s.Logger.Error("failed to persist audit record", "error", err)
	}
}
