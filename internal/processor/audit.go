package processor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/phrazzld/cadence-api/internal/events"
	"github.com/phrazzld/cadence-api/internal/platform/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// AuditLog is one recorded task event.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey"`
	EventID   string    `gorm:"size:36;uniqueIndex"`
	EventType string    `gorm:"size:32;index"`
	TaskID    int64     `gorm:"index"`
	UserID    string    `gorm:"size:255;index"`
	EventData string    `gorm:"type:text"`
	Timestamp time.Time `gorm:"index"`
	CreatedAt time.Time
}

// TableName pins the table name.
func (AuditLog) TableName() string { return "audit_logs" }

// AuditStore persists audit entries through gorm.
type AuditStore struct {
	db *gorm.DB
}

// OpenAuditStore opens the SQLite database at dsn and migrates the audit
// table. An empty dsn uses audit.db in the working directory.
func OpenAuditStore(dsn string, log *slog.Logger) (*AuditStore, error) {
	if dsn == "" {
		dsn = "audit.db"
	}
	if log == nil {
		log = slog.Default()
	}

	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}

	dbLogger := gormlogger.New(
		slog.NewLogLogger(log.Handler(), slog.LevelWarn),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	if err := db.AutoMigrate(&AuditLog{}); err != nil {
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}

	return &AuditStore{db: db}, nil
}

// Record inserts an entry. Entries are keyed by event id, so a redelivered
// event is stored once.
func (s *AuditStore) Record(ctx context.Context, entry *AuditLog) error {
	result := s.db.WithContext(ctx).
		Where(AuditLog{EventID: entry.EventID}).
		FirstOrCreate(entry)
	if result.Error != nil {
		return fmt.Errorf("record audit entry: %w", result.Error)
	}
	return nil
}

// ListForTask returns the entries of one task, oldest first.
func (s *AuditStore) ListForTask(ctx context.Context, taskID int64) ([]AuditLog, error) {
	var entries []AuditLog
	if err := s.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("timestamp, id").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

// Close releases the underlying connection pool.
func (s *AuditStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ensureDirForSQLite creates the parent directory of a file DSN.
func ensureDirForSQLite(dsn string) error {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}

// AuditProcessor stores every task event it receives.
type AuditProcessor struct {
	store  *AuditStore
	logger *slog.Logger
}

var _ events.Handler = (*AuditProcessor)(nil)

// NewAuditProcessor creates an AuditProcessor writing to store.
func NewAuditProcessor(store *AuditStore, logger *slog.Logger) *AuditProcessor {
	if store == nil {
		panic("audit store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditProcessor{
		store:  store,
		logger: logger.With("component", "audit_processor"),
	}
}

// HandleMessage implements events.Handler.
func (p *AuditProcessor) HandleMessage(ctx context.Context, msg *events.Message) error {
	log := logger.FromContextOrDefault(ctx, p.logger)

	event, err := events.DecodeTaskEvent(msg)
	if err != nil {
		log.Warn("discarding undecodable task event", "error", err, "message_id", msg.ID)
		return err
	}

	entry := &AuditLog{
		EventID:   event.ID.String(),
		EventType: string(event.EventType),
		TaskID:    event.TaskID,
		UserID:    event.UserID,
		EventData: string(msg.Data),
		Timestamp: event.Timestamp.UTC(),
	}
	if err := p.store.Record(ctx, entry); err != nil {
		return err
	}

	log.Debug("audit entry recorded",
		"audit_id", entry.ID,
		"event_type", entry.EventType,
		"task_id", entry.TaskID)
	return nil
}
