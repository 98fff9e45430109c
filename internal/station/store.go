package station

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/farellandr/spoticket-checkin/internal/models"
)

// ErrNoSnapshot is returned when no snapshot has been pulled for an event.
var ErrNoSnapshot = errors.New("no snapshot for event")

type SyncStatus string

const (
	SyncPending  SyncStatus = "pending"
	SyncSynced   SyncStatus = "synced"
	SyncRejected SyncStatus = "rejected"
	// SyncReview marks entries that exhausted their retry budget; they wait
	// for manual reconciliation and are never deleted.
	SyncReview SyncStatus = "review"
)

// SnapshotMeta records when a station last pulled the valid-ticket set for an
// event. FetchedAt drives the staleness bound.
type SnapshotMeta struct {
	EventID     string    `gorm:"primary_key"`
	GeneratedAt time.Time `gorm:"not null"`
	FetchedAt   time.Time `gorm:"not null"`
}

// SnapshotTicket is one "known valid as of snapshot time" row. Advisory only:
// it never marks a ticket used, it only supports provisional verdicts.
type SnapshotTicket struct {
	EventID  string `gorm:"primary_key"`
	TicketID string `gorm:"primary_key"`
}

// OutboxEntry is one offline-recorded check-in attempt awaiting
// reconciliation. Its ID doubles as the idempotent request id for replay, so
// a retry after a dropped response cannot double-count.
type OutboxEntry struct {
	ID              uuid.UUID          `gorm:"type:uuid;primary_key"`
	TicketID        string             `gorm:"not null;index"`
	EventID         string             `gorm:"not null;index"`
	StationID       string             `gorm:"not null"`
	ClientTimestamp time.Time          `gorm:"not null"`
	LocalOutcome    models.ScanOutcome `gorm:"not null"`
	Note            string
	SyncStatus      SyncStatus `gorm:"not null;default:'pending';index"`
	RetryCount      int        `gorm:"not null;default:0"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (entry *OutboxEntry) BeforeCreate(tx *gorm.DB) (err error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return
}

// Store is the station-private persistence for snapshot and outbox. It is
// never shared between stations; each station owns its own file.
type Store interface {
	ReplaceSnapshot(eventID string, ticketIDs []string, generatedAt, fetchedAt time.Time) error
	Snapshot(eventID string) (*SnapshotMeta, error)
	SnapshotHas(eventID, ticketID string) (bool, error)

	AppendOutbox(entry *OutboxEntry) error
	PendingOutbox() ([]OutboxEntry, error)
	UpdateOutbox(entry *OutboxEntry) error
	// HasPendingAccept reports whether this station already provisionally
	// accepted the ticket in an unsynced outbox entry.
	HasPendingAccept(ticketID string) (bool, error)
}

// SQLiteStore persists station state in a local sqlite file so an offline
// session survives a process restart.
type SQLiteStore struct {
	db *gorm.DB
}

func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&SnapshotMeta{}, &SnapshotTicket{}, &OutboxEntry{}); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) ReplaceSnapshot(eventID string, ticketIDs []string, generatedAt, fetchedAt time.Time) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", eventID).Delete(&SnapshotTicket{}).Error; err != nil {
			return err
		}
		for _, id := range ticketIDs {
			if err := tx.Create(&SnapshotTicket{EventID: eventID, TicketID: id}).Error; err != nil {
				return err
			}
		}
		meta := SnapshotMeta{EventID: eventID, GeneratedAt: generatedAt, FetchedAt: fetchedAt}
		return tx.Save(&meta).Error
	})
}

func (s *SQLiteStore) Snapshot(eventID string) (*SnapshotMeta, error) {
	var meta SnapshotMeta
	if err := s.db.Where("event_id = ?", eventID).First(&meta).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoSnapshot
		}
		return nil, err
	}
	return &meta, nil
}

func (s *SQLiteStore) SnapshotHas(eventID, ticketID string) (bool, error) {
	var count int64
	err := s.db.Model(&SnapshotTicket{}).
		Where("event_id = ? AND ticket_id = ?", eventID, ticketID).
		Count(&count).Error
	return count > 0, err
}

func (s *SQLiteStore) AppendOutbox(entry *OutboxEntry) error {
	return s.db.Create(entry).Error
}

func (s *SQLiteStore) PendingOutbox() ([]OutboxEntry, error) {
	var entries []OutboxEntry
	err := s.db.Where("sync_status = ?", SyncPending).
		Order("client_timestamp ASC").
		Find(&entries).Error
	return entries, err
}

func (s *SQLiteStore) UpdateOutbox(entry *OutboxEntry) error {
	return s.db.Save(entry).Error
}

func (s *SQLiteStore) HasPendingAccept(ticketID string) (bool, error) {
	var count int64
	err := s.db.Model(&OutboxEntry{}).
		Where("ticket_id = ? AND local_outcome = ? AND sync_status IN ?",
			ticketID, models.OutcomeOfflineProvisional, []SyncStatus{SyncPending, SyncSynced}).
		Count(&count).Error
	return count > 0, err
}

// MemoryStore backs station tests; same contract, no file.
type MemoryStore struct {
	meta    map[string]SnapshotMeta
	tickets map[string]map[string]bool
	outbox  []OutboxEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		meta:    make(map[string]SnapshotMeta),
		tickets: make(map[string]map[string]bool),
	}
}

func (s *MemoryStore) ReplaceSnapshot(eventID string, ticketIDs []string, generatedAt, fetchedAt time.Time) error {
	set := make(map[string]bool, len(ticketIDs))
	for _, id := range ticketIDs {
		set[id] = true
	}
	s.tickets[eventID] = set
	s.meta[eventID] = SnapshotMeta{EventID: eventID, GeneratedAt: generatedAt, FetchedAt: fetchedAt}
	return nil
}

func (s *MemoryStore) Snapshot(eventID string) (*SnapshotMeta, error) {
	meta, ok := s.meta[eventID]
	if !ok {
		return nil, ErrNoSnapshot
	}
	return &meta, nil
}

func (s *MemoryStore) SnapshotHas(eventID, ticketID string) (bool, error) {
	return s.tickets[eventID][ticketID], nil
}

func (s *MemoryStore) AppendOutbox(entry *OutboxEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	s.outbox = append(s.outbox, *entry)
	return nil
}

func (s *MemoryStore) PendingOutbox() ([]OutboxEntry, error) {
	var pending []OutboxEntry
	for _, entry := range s.outbox {
		if entry.SyncStatus == SyncPending {
			pending = append(pending, entry)
		}
	}
	return pending, nil
}

func (s *MemoryStore) UpdateOutbox(entry *OutboxEntry) error {
	for i := range s.outbox {
		if s.outbox[i].ID == entry.ID {
			s.outbox[i] = *entry
			return nil
		}
	}
	return errors.New("outbox entry not found")
}

func (s *MemoryStore) HasPendingAccept(ticketID string) (bool, error) {
	for _, entry := range s.outbox {
		if entry.TicketID == ticketID &&
			entry.LocalOutcome == models.OutcomeOfflineProvisional &&
			(entry.SyncStatus == SyncPending || entry.SyncStatus == SyncSynced) {
			return true, nil
		}
	}
	return false, nil
}
