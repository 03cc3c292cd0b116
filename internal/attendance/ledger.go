package attendance

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"face-attendance/internal/core/models"
	"face-attendance/internal/util/timezone"

	log "github.com/sirupsen/logrus"
)

// LedgerHeader is the first row of every ledger file.
var LedgerHeader = []string{"Id", "Name", "Date", "Time"}

const (
	ledgerPrefix = "Attendance_"
	ledgerExt    = ".csv"
)

// FileName returns the ledger file name for a session finalized at t.
func FileName(t time.Time) string {
	return ledgerPrefix + timezone.Date(t) + "_" + t.In(timezone.Location()).Format(timezone.FileTimeLayout) + ledgerExt
}

// Ledger writes one CSV file per finalized session. Existing files are
// never opened for writing.
type Ledger struct {
	dir    string
	encode func(w io.Writer, rows [][]string) error
}

// NewLedger returns a ledger rooted at dir. The directory is created on the
// first write.
func NewLedger(dir string) *Ledger {
	return &Ledger{dir: dir, encode: writeCSV}
}

func writeCSV(w io.Writer, rows [][]string) error {
	return csv.NewWriter(w).WriteAll(rows)
}

// Dir returns the ledger directory.
func (l *Ledger) Dir() string {
	return l.dir
}

// Write stores records in a new file named after at and returns its path.
// When a file of that name already exists a numeric suffix is added. A
// partially written file is removed again.
func (l *Ledger) Write(at time.Time, records []models.AttendanceRecord) (string, error) {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create attendance directory: %w", err)
	}

	f, path, err := l.create(FileName(at))
	if err != nil {
		return "", err
	}

	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, LedgerHeader)
	for _, r := range records {
		rows = append(rows, []string{strconv.Itoa(r.ID), r.Name, r.Date, r.Time})
	}
	if err := l.encode(f, rows); err != nil {
		f.Close()
		discard(path)
		return "", fmt.Errorf("failed to write ledger %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		discard(path)
		return "", fmt.Errorf("failed to close ledger %s: %w", path, err)
	}
	return path, nil
}

func discard(path string) {
	if err := os.Remove(path); err != nil {
		log.WithError(err).Warnf("Failed to remove incomplete ledger %s", path)
	}
}

func (l *Ledger) create(name string) (*os.File, string, error) {
	base := strings.TrimSuffix(name, ledgerExt)
	for i := 0; i < 100; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", base, i, ledgerExt)
		}
		path := filepath.Join(l.dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("failed to create ledger %s: %w", path, err)
		}
	}
	return nil, "", fmt.Errorf("failed to create ledger %s: too many files with the same timestamp", name)
}

// List returns the ledger files in the directory, oldest name first.
func (l *Ledger) List() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), ledgerPrefix) || !strings.HasSuffix(e.Name(), ledgerExt) {
			continue
		}
		paths = append(paths, filepath.Join(l.dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadLedger parses a ledger file.
func ReadLedger(path string) ([]models.AttendanceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(LedgerHeader)

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("ledger %s is empty", path)
		}
		return nil, fmt.Errorf("failed to read ledger %s: %w", path, err)
	}
	if strings.Join(header, ",") != strings.Join(LedgerHeader, ",") {
		return nil, fmt.Errorf("ledger %s: unexpected header %v", path, header)
	}

	var records []models.AttendanceRecord
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read ledger %s: %w", path, err)
		}
		id, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, fmt.Errorf("ledger %s: invalid id %q", path, row[0])
		}
		records = append(records, models.AttendanceRecord{ID: id, Name: row[1], Date: row[2], Time: row[3]})
	}
	return records, nil
}
