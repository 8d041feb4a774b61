package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"cancionero/internal/models"

	"gorm.io/gorm"
)

type AuditService struct {
	db      *gorm.DB
	logger  *slog.Logger
	channel chan models.AuditLog
}

func NewAuditService(db *gorm.DB, logger *slog.Logger) *AuditService {
	return &AuditService{
		db:      db,
		logger:  logger,
		channel: make(chan models.AuditLog, 100),
	}
}

func (s *AuditService) Start(ctx context.Context) {
	s.logger.Info("Audit worker starting")
	for {
		select {
		case entry := <-s.channel:
			s.write(entry)
		case <-ctx.Done():
			s.drain()
			s.logger.Info("Audit worker stopping")
			return
		}
	}
}

// drain writes whatever is still queued when the worker stops.
func (s *AuditService) drain() {
	for {
		select {
		case entry := <-s.channel:
			s.write(entry)
		default:
			return
		}
	}
}

func (s *AuditService) write(entry models.AuditLog) {
	if err := s.db.Create(&entry).Error; err != nil {
		s.logger.Error("Failed to write audit log", "error", err, "action", entry.Action)
	}
}

// LogAction queues an entry without blocking; entries are dropped when the
// queue is full.
func (s *AuditService) LogAction(userID *uint, action, entityID string, details interface{}, ip string) {
	if s == nil {
		return
	}
	detailBytes, _ := json.Marshal(details)

	entry := models.AuditLog{
		UserID:    userID,
		Action:    action,
		EntityID:  entityID,
		Details:   string(detailBytes),
		IPAddress: ip,
		Timestamp: time.Now(),
	}

	select {
	case s.channel <- entry:
	default:
		s.logger.Warn("Audit channel full, dropping log", "action", action)
	}
}
