package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/yoga-booking-api/internal/models"
	"github.com/noah-isme/yoga-booking-api/pkg/jobs"
)

const auditJobType = "audit_log"

type auditLogWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// RequestMeta describes the client of the current request for audit entries.
type RequestMeta struct {
	IP        string
	UserAgent string
}

type requestMetaKey struct{}

// WithRequestMeta stores client details on ctx.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFrom returns the client details stored by WithRequestMeta.
func RequestMetaFrom(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}

// AuditEvent is a domain action to be written to the audit trail.
type AuditEvent struct {
	ActorID    string
	Action     string
	Resource   string
	ResourceID string
	Values     map[string]interface{}
}

// AuditConfig sizes the background writer.
type AuditConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
}

// AuditService writes audit entries off the request path through a job queue.
type AuditService struct {
	repo   auditLogWriter
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAuditService constructs the service; call Start before recording.
func NewAuditService(repo auditLogWriter, cfg AuditConfig, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AuditService{repo: repo, logger: logger}
	svc.queue = jobs.NewQueue("audit", svc.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return svc
}

// Start launches the writers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop flushes pending entries and stops the writers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// Stats exposes queue counters.
func (s *AuditService) Stats() jobs.Stats {
	return s.queue.Stats()
}

// Record queues an audit entry. It never blocks the caller; entries that cannot be queued are logged.
func (s *AuditService) Record(ctx context.Context, event AuditEvent) {
	if s == nil {
		return
	}
	entry, err := buildAuditLog(ctx, event)
	if err != nil {
		s.logger.Warn("audit entry not encodable", zap.String("action", event.Action), zap.Error(err))
		return
	}
	if err := s.queue.TryEnqueue(jobs.Job{ID: entry.ID, Type: auditJobType, Payload: entry}); err != nil {
		s.logger.Warn("audit entry dropped", zap.String("action", event.Action), zap.String("resource_id", event.ResourceID), zap.Error(err))
	}
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(*models.AuditLog)
	if !ok {
		return fmt.Errorf("unexpected audit payload %T", job.Payload)
	}
	return s.repo.CreateAuditLog(ctx, entry)
}

func buildAuditLog(ctx context.Context, event AuditEvent) (*models.AuditLog, error) {
	meta := RequestMetaFrom(ctx)
	entry := &models.AuditLog{
		ID:        uuid.NewString(),
		Action:    event.Action,
		Resource:  event.Resource,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
		CreatedAt: time.Now().UTC(),
	}
	if event.ActorID != "" {
		actor := event.ActorID
		entry.UserID = &actor
	}
	if event.ResourceID != "" {
		resourceID := event.ResourceID
		entry.ResourceID = &resourceID
	}
	if len(event.Values) > 0 {
		raw, err := json.Marshal(event.Values)
		if err != nil {
			return nil, err
		}
		entry.NewValues = raw
	}
	return entry, nil
}
