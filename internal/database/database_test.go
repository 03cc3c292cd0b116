package database

import (
	"path/filepath"
	"testing"
	"time"

	"face-attendance/config"
	"face-attendance/internal/attendance"
	"face-attendance/internal/core/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openArchive(t *testing.T) *Archive {
	t.Helper()
	db, err := Open(config.DBConfig{Enabled: true, File: filepath.Join(t.TempDir(), "data", "attendance.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	return NewArchive(db)
}

func summary(id string, start time.Time, records ...models.AttendanceRecord) attendance.Summary {
	return attendance.Summary{
		SessionID:   id,
		StartedAt:   start,
		FinalizedAt: start.Add(time.Minute),
		Frames:      42,
		Records:     records,
		LedgerPath:  "Attendance/" + id + ".csv",
		StopReason:  attendance.StopQuit,
	}
}

func TestOpenDisabled(t *testing.T) {
	_, err := Open(config.DBConfig{Enabled: false})
	assert.Error(t, err)
}

func TestArchiveSessions(t *testing.T) {
	a := openArchive(t)
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	alice := models.AttendanceRecord{ID: 1, Name: "Alice", Date: "2024-05-01", Time: "08:00:10"}
	bob := models.AttendanceRecord{ID: 2, Name: "Bob", Date: "2024-05-01", Time: "08:00:20"}

	a.SessionFinalized(summary("s1", base, alice, bob))
	a.SessionFinalized(summary("s2", base.Add(time.Hour), alice))
	a.SessionFinalized(summary("s3", base.Add(2*time.Hour)))

	sessions, err := a.RecentSessions(2)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "s3", sessions[0].UUID)
	assert.Equal(t, "s2", sessions[1].UUID)
	assert.Empty(t, sessions[0].Records)
	require.Len(t, sessions[1].Records, 1)
	assert.Equal(t, "Alice", sessions[1].Records[0].Name)

	s1, err := a.SessionByUUID("s1")
	require.NoError(t, err)
	require.NotNil(t, s1)
	assert.Equal(t, 42, s1.Frames)
	assert.Equal(t, string(attendance.StopQuit), s1.StopReason)
	names, err := s1.AttendeeNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob"}, names)

	missing, err := a.SessionByUUID("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	tally, err := a.Tally()
	require.NoError(t, err)
	require.Len(t, tally, 2)
	assert.Equal(t, IdentityTally{IdentityID: 1, Name: "Alice", Sessions: 2}, tally[0])
	assert.Equal(t, IdentityTally{IdentityID: 2, Name: "Bob", Sessions: 1}, tally[1])
}

func TestArchiveRejectsDuplicateSession(t *testing.T) {
	a := openArchive(t)
	s := summary("same", time.Now())
	require.NoError(t, a.Save(s))
	assert.Error(t, a.Save(s))
}

func TestArchiveAsSessionHook(t *testing.T) {
	a := openArchive(t)
	dir := t.TempDir()

	s := attendance.NewSession(staticDirectory{1: "Alice"}, attendance.NewLedger(dir), attendance.WithHooks(a))
	require.NoError(t, s.Start())
	_, err := s.ObserveFrame([]attendance.Detection{{Result: models.RecognitionResult{CandidateID: 1, Confidence: 95}}})
	require.NoError(t, err)
	sum, err := s.Finalize("")
	require.NoError(t, err)

	row, err := a.SessionByUUID(sum.SessionID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, sum.LedgerPath, row.LedgerPath)
	require.Len(t, row.Records, 1)
	assert.Equal(t, 1, row.Records[0].IdentityID)
}

type staticDirectory map[int]string

func (d staticDirectory) Lookup(id int) (string, error) {
	if name, ok := d[id]; ok {
		return name, nil
	}
	return "", assert.AnError
}
