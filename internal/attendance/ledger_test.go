package attendance

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"face-attendance/internal/core/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileName(t *testing.T) {
	at := time.Date(2024, 3, 9, 7, 5, 3, 0, time.UTC)
	assert.Equal(t, "Attendance_2024-03-09_07-05-03.csv", FileName(at))
}

func TestLedgerWriteAndRead(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Attendance")
	l := NewLedger(dir)
	at := time.Date(2024, 3, 9, 7, 5, 3, 0, time.UTC)
	records := []models.AttendanceRecord{
		{ID: 1, Name: "Alice", Date: "2024-03-09", Time: "07:01:00"},
		{ID: 2, Name: "Bob", Date: "2024-03-09", Time: "07:02:30"},
	}

	path, err := l.Write(at, records)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Attendance_2024-03-09_07-05-03.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Id,Name,Date,Time\n1,Alice,2024-03-09,07:01:00\n2,Bob,2024-03-09,07:02:30\n", string(data))

	got, err := ReadLedger(path)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestLedgerRemovesIncompleteFile(t *testing.T) {
	dir := t.TempDir()
	l := NewLedger(dir)
	at := time.Date(2024, 3, 9, 7, 5, 3, 0, time.UTC)
	records := []models.AttendanceRecord{{ID: 1, Name: "Alice", Date: "2024-03-09", Time: "07:00:00"}}

	l.encode = func(w io.Writer, rows [][]string) error {
		_, _ = io.WriteString(w, "Id,Na")
		return errors.New("no space left on device")
	}
	_, err := l.Write(at, records)
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	l.encode = writeCSV
	path, err := l.Write(at, records)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Attendance_2024-03-09_07-05-03.csv"), path)
}

func TestLedgerNeverOverwrites(t *testing.T) {
	l := NewLedger(t.TempDir())
	at := time.Date(2024, 3, 9, 7, 5, 3, 0, time.UTC)

	first, err := l.Write(at, []models.AttendanceRecord{{ID: 1, Name: "Alice", Date: "2024-03-09", Time: "07:00:00"}})
	require.NoError(t, err)
	before, err := os.ReadFile(first)
	require.NoError(t, err)

	second, err := l.Write(at, []models.AttendanceRecord{{ID: 2, Name: "Bob", Date: "2024-03-09", Time: "07:05:03"}})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasSuffix(second, "Attendance_2024-03-09_07-05-03_1.csv"))

	after, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	paths, err := l.List()
	require.NoError(t, err)
	assert.Equal(t, []string{first, second}, paths)
}

func TestLedgerListMissingDir(t *testing.T) {
	paths, err := NewLedger(filepath.Join(t.TempDir(), "none")).List()
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestReadLedgerRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b,c,d\n"), 0o644))
	_, err := ReadLedger(path)
	assert.Error(t, err)
}
