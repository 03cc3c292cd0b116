// Package database archives finalized attendance sessions in SQLite.
package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"face-attendance/config"
	"face-attendance/internal/attendance"
	"face-attendance/internal/core/models"

	"github.com/glebarez/sqlite" // Pure Go
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	gormlog "gorm.io/gorm/logger"
)

// --- Struct Definitions ---

// Session is one finalized attendance session.
type Session struct {
	gorm.Model
	UUID        string    `gorm:"uniqueIndex"`
	StartedAt   time.Time `gorm:"index"`
	FinalizedAt time.Time
	StopReason  string
	Frames      int
	LedgerPath  string         // empty when nobody was present
	Attendees   datatypes.JSON // [{"id":1,"name":"Alice"}]
	Records     []Record       `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE;"`
}

// Record is one attendance row of a session.
type Record struct {
	gorm.Model
	SessionID  uint   `gorm:"index"`
	IdentityID int    `gorm:"index"`
	Name       string
	Date       string
	Time       string
}

// IdentityTally counts the sessions an identity was present in.
type IdentityTally struct {
	IdentityID int
	Name       string
	Sessions   int64
}

type attendee struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Open connects to the SQLite archive and migrates the schema.
func Open(cfg config.DBConfig) (*gorm.DB, error) {
	if !cfg.Enabled {
		return nil, errors.New("database is disabled in the configuration")
	}

	dbDir := filepath.Dir(cfg.File)
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory '%s': %w", dbDir, err)
	}

	// GORM logs through logrus
	gormLogger := gormlog.New(
		log.StandardLogger(),
		gormlog.Config{
			SlowThreshold:             time.Second * 2,
			LogLevel:                  gormlog.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	log.Debugf("Connecting to database: %s", cfg.File)
	db, err := gorm.Open(sqlite.Open(cfg.File), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database '%s': %w", cfg.File, err)
	}

	if err := db.AutoMigrate(&Session{}, &Record{}); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return db, nil
}

// Close releases the connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Archive stores finalized sessions. It is registered as a session hook.
type Archive struct {
	db *gorm.DB
}

// NewArchive wraps an open database.
func NewArchive(db *gorm.DB) *Archive {
	return &Archive{db: db}
}

// RecordAdded is a no-op; sessions are archived when finalized.
func (a *Archive) RecordAdded(string, models.AttendanceRecord) {}

// SessionFinalized stores the summary. Failures are logged, the ledger file
// stays the authoritative copy.
func (a *Archive) SessionFinalized(summary attendance.Summary) {
	if err := a.Save(summary); err != nil {
		log.WithError(err).Errorf("Failed to archive session %s", summary.SessionID)
	}
}

// Save stores a session summary and its records in one transaction.
func (a *Archive) Save(summary attendance.Summary) error {
	attendees := make([]attendee, 0, len(summary.Records))
	records := make([]Record, 0, len(summary.Records))
	for _, r := range summary.Records {
		attendees = append(attendees, attendee{ID: r.ID, Name: r.Name})
		records = append(records, Record{IdentityID: r.ID, Name: r.Name, Date: r.Date, Time: r.Time})
	}
	payload, err := json.Marshal(attendees)
	if err != nil {
		return fmt.Errorf("failed to encode attendees: %w", err)
	}

	row := Session{
		UUID:        summary.SessionID,
		StartedAt:   summary.StartedAt,
		FinalizedAt: summary.FinalizedAt,
		StopReason:  string(summary.StopReason),
		Frames:      summary.Frames,
		LedgerPath:  summary.LedgerPath,
		Attendees:   datatypes.JSON(payload),
		Records:     records,
	}
	if err := a.db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert session %s: %w", summary.SessionID, err)
	}
	log.Debugf("Archived session %s with %d records", summary.SessionID, len(records))
	return nil
}

// RecentSessions returns the newest sessions with their records.
func (a *Archive) RecentSessions(limit int) ([]Session, error) {
	var sessions []Session
	q := a.db.Preload("Records").Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// SessionByUUID fetches one session. A missing session returns nil, nil.
func (a *Archive) SessionByUUID(id string) (*Session, error) {
	var s Session
	err := a.db.Preload("Records").Where("uuid = ?", id).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return &s, nil
}

// Tally counts attended sessions per identity, most frequent first.
func (a *Archive) Tally() ([]IdentityTally, error) {
	var out []IdentityTally
	err := a.db.Model(&Record{}).
		Select("identity_id, MAX(name) AS name, COUNT(DISTINCT session_id) AS sessions").
		Group("identity_id").
		Order("sessions DESC, identity_id").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to tally attendance: %w", err)
	}
	return out, nil
}

// AttendeeNames decodes the attendee list stored with a session.
func (s Session) AttendeeNames() ([]string, error) {
	var list []attendee
	if len(s.Attendees) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(s.Attendees, &list); err != nil {
		return nil, err
	}
	names := make([]string, len(list))
	for i, a := range list {
		names[i] = a.Name
	}
	return names, nil
}
