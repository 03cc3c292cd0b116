package identity

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"face-attendance/internal/core/errdefs"
	"face-attendance/internal/core/models"

	log "github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"
)

// Header is the first row of the identity CSV.
var Header = []string{"Id", "Name"}

// ErrUnknownIdentity is returned by Directory.Lookup for ids that were never enrolled.
var ErrUnknownIdentity = errors.New("unknown identity")

// Validate checks raw enrollment input and returns the parsed identity.
// The id must be digits only and positive; the name must be letters only.
func Validate(id, name string) (models.Identity, error) {
	id = strings.TrimSpace(id)
	name = norm.NFC.String(strings.TrimSpace(name))

	if id == "" || strings.IndexFunc(id, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return models.Identity{}, &errdefs.ValidationError{Field: "id", Value: id, Reason: "must be numeric"}
	}
	n, err := strconv.Atoi(id)
	if err != nil || n <= 0 {
		return models.Identity{}, &errdefs.ValidationError{Field: "id", Value: id, Reason: "must be a positive integer"}
	}
	if name == "" || strings.IndexFunc(name, func(r rune) bool { return !unicode.IsLetter(r) }) >= 0 {
		return models.Identity{}, &errdefs.ValidationError{Field: "name", Value: name, Reason: "must be alphabetic"}
	}
	return models.Identity{ID: n, Name: name}, nil
}

// Store is the append-only CSV identity store.
type Store struct {
	path string
}

// NewStore returns a store backed by the CSV file at path. Nothing is
// created until the first Append.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the CSV location.
func (s *Store) Path() string {
	return s.path
}

// Enroll validates the input and appends it. Invalid input writes nothing.
func (s *Store) Enroll(id, name string) (models.Identity, error) {
	identity, err := Validate(id, name)
	if err != nil {
		return models.Identity{}, err
	}
	if err := s.Append(identity); err != nil {
		return models.Identity{}, err
	}
	return identity, nil
}

// Append writes one row, creating the file with its header when absent.
// Duplicate ids are appended as additional rows.
func (s *Store) Append(identity models.Identity) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create identity directory: %w", err)
	}

	_, statErr := os.Stat(s.path)
	isNew := errors.Is(statErr, os.ErrNotExist)

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open identity store: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(Header); err != nil {
			return fmt.Errorf("failed to write identity header: %w", err)
		}
	}
	if err := w.Write([]string{strconv.Itoa(identity.ID), identity.Name}); err != nil {
		return fmt.Errorf("failed to write identity: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush identity store: %w", err)
	}

	log.Infof("Identity saved: ID=%d, Name=%s", identity.ID, identity.Name)
	return nil
}

// All returns every row in file order, duplicates included.
// Rows that cannot be parsed are skipped with a warning.
func (s *Store) All() ([]models.Identity, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &errdefs.MissingArtifactError{Artifact: "identity store", Path: s.path}
		}
		return nil, fmt.Errorf("failed to open identity store: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var identities []models.Identity
	for line := 1; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read identity store: %w", err)
		}
		if line == 1 && len(row) >= 1 && strings.EqualFold(strings.TrimSpace(row[0]), Header[0]) {
			continue
		}
		if len(row) < 2 {
			log.Warnf("Identity store %s line %d: expected 2 columns, got %d", s.path, line, len(row))
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil {
			log.Warnf("Identity store %s line %d: invalid id %q", s.path, line, row[0])
			continue
		}
		identities = append(identities, models.Identity{ID: id, Name: strings.TrimSpace(row[1])})
	}
	return identities, nil
}

// Directory loads the store into an id → name lookup.
func (s *Store) Directory() (*Directory, error) {
	identities, err := s.All()
	if err != nil {
		return nil, err
	}
	return NewDirectory(identities), nil
}

// Directory resolves display names. When an id was enrolled more than once
// the last row wins.
type Directory struct {
	names map[int]string
}

// NewDirectory indexes identities in order.
func NewDirectory(identities []models.Identity) *Directory {
	d := &Directory{names: make(map[int]string, len(identities))}
	for _, identity := range identities {
		d.names[identity.ID] = identity.Name
	}
	return d
}

// Lookup returns the display name for id.
func (d *Directory) Lookup(id int) (string, error) {
	name, ok := d.names[id]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownIdentity, id)
	}
	return name, nil
}

// Len returns the number of distinct ids.
func (d *Directory) Len() int {
	return len(d.names)
}
