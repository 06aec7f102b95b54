package journal

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/merlox/ethereum-store/core/events"
)

// Entry is one committed marketplace event.
type Entry struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence   uint64    `gorm:"uniqueIndex"`
	Type       string    `gorm:"index"`
	Attributes string
	RecordedAt time.Time `gorm:"index"`
	// Digest chains the entry to its predecessor; see Verify.
	Digest string `gorm:"size:64"`
}

// Decode returns the entry attributes.
func (e Entry) Decode() (map[string]string, error) {
	out := make(map[string]string)
	if strings.TrimSpace(e.Attributes) == "" {
		return out, nil
	}
	err := json.Unmarshal([]byte(e.Attributes), &out)
	return out, err
}

// Journal appends committed events to a SQL table. It implements
// events.Emitter; write failures are logged and never reach the caller.
type Journal struct {
	mu     sync.Mutex
	db     *gorm.DB
	seq    uint64
	head   string
	log    *slog.Logger
	nowFn  func() time.Time
	closed bool
}

// Open connects to the journal database. postgres:// and postgresql:// DSNs
// use PostgreSQL; anything else is a SQLite path or DSN.
func Open(dsn string, log *slog.Logger) (*Journal, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("journal: dsn required")
	}
	db, err := gorm.Open(dialector(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	return New(db, log)
}

func dialector(dsn string) gorm.Dialector {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return postgres.Open(dsn)
	}
	return sqlite.Open(dsn)
}

// New wraps an existing gorm handle.
func New(db *gorm.DB, log *slog.Logger) (*Journal, error) {
	if db == nil {
		return nil, errors.New("journal: database required")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, err
	}
	var last Entry
	seq := uint64(0)
	if err := db.Order("sequence desc").Limit(1).Find(&last).Error; err != nil {
		return nil, err
	}
	head := ""
	if last.ID != uuid.Nil {
		seq = last.Sequence
		head = last.Digest
	}
	return &Journal{db: db, seq: seq, head: head, log: log, nowFn: time.Now}, nil
}

// Emit implements events.Emitter.
func (j *Journal) Emit(evt events.Event) {
	if j == nil || evt == nil || evt.Event() == nil {
		return
	}
	if _, err := j.Append(evt); err != nil {
		j.log.Error("journal append failed", "type", evt.EventType(), "error", err)
	}
}

// Append stores the event and returns the entry written.
func (j *Journal) Append(evt events.Event) (*Entry, error) {
	payload, err := json.Marshal(evt.Event().Attributes)
	if err != nil {
		return nil, err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil, errors.New("journal: closed")
	}
	entry := &Entry{
		ID:         uuid.New(),
		Sequence:   j.seq + 1,
		Type:       evt.EventType(),
		Attributes: string(payload),
		RecordedAt: j.nowFn().UTC(),
	}
	entry.Digest = digest(j.head, entry)
	if err := j.db.Create(entry).Error; err != nil {
		return nil, err
	}
	j.seq = entry.Sequence
	j.head = entry.Digest
	return entry, nil
}

// Recent returns up to limit entries, newest first, optionally filtered by
// event type.
func (j *Journal) Recent(eventType string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := j.db.Order("sequence desc").Limit(limit)
	if trimmed := strings.TrimSpace(eventType); trimmed != "" {
		query = query.Where("type = ?", trimmed)
	}
	var entries []Entry
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Close releases the underlying connection pool.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
