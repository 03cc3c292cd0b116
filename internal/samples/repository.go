package samples

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"face-attendance/internal/core/errdefs"
	"face-attendance/internal/core/models"
	"face-attendance/internal/imaging"

	log "github.com/sirupsen/logrus"
)

// Extension of every sample file.
const Extension = ".jpg"

// ErrRunComplete is returned by CaptureRun.Add once the run reached its cap.
var ErrRunComplete = errors.New("capture run complete")

// FileName encodes a sample as {name}.{id}.{seq}.jpg.
func FileName(identity models.Identity, seq int) string {
	return fmt.Sprintf("%s.%d.%d%s", identity.Name, identity.ID, seq, Extension)
}

// ParseFileName recovers the owner and sequence number from a sample file name.
func ParseFileName(name string) (models.Identity, int, error) {
	base := filepath.Base(name)
	if !strings.HasSuffix(base, Extension) {
		return models.Identity{}, 0, fmt.Errorf("%s: not a %s file", base, Extension)
	}
	parts := strings.Split(strings.TrimSuffix(base, Extension), ".")
	if len(parts) != 3 {
		return models.Identity{}, 0, fmt.Errorf("%s: expected name.id.seq%s", base, Extension)
	}
	id, err := strconv.Atoi(parts[1])
	if err != nil || id <= 0 {
		return models.Identity{}, 0, fmt.Errorf("%s: invalid id %q", base, parts[1])
	}
	seq, err := strconv.Atoi(parts[2])
	if err != nil || seq < 1 {
		return models.Identity{}, 0, fmt.Errorf("%s: invalid sequence number %q", base, parts[2])
	}
	return models.Identity{ID: id, Name: parts[0]}, seq, nil
}

// Repository stores face samples as grayscale JPEG files in one directory.
type Repository struct {
	dir     string
	quality int
}

// NewRepository returns a repository rooted at dir. The directory is
// created on the first write.
func NewRepository(dir string, jpegQuality int) *Repository {
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = 95
	}
	return &Repository{dir: dir, quality: jpegQuality}
}

// Dir returns the sample directory.
func (r *Repository) Dir() string {
	return r.dir
}

// Add writes one sample for identity with the given sequence number.
func (r *Repository) Add(identity models.Identity, seq int, face *image.Gray) (models.Sample, error) {
	if seq < 1 {
		return models.Sample{}, fmt.Errorf("sequence number must be at least 1, got %d", seq)
	}
	if face == nil || face.Bounds().Empty() {
		return models.Sample{}, fmt.Errorf("empty face raster for %s sample %d", identity.Name, seq)
	}
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return models.Sample{}, fmt.Errorf("failed to create sample directory: %w", err)
	}

	var buf bytes.Buffer
	if err := imaging.EncodeJPEG(&buf, face, r.quality); err != nil {
		return models.Sample{}, err
	}

	path := filepath.Join(r.dir, FileName(identity, seq))
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return models.Sample{}, fmt.Errorf("failed to write sample %s: %w", path, err)
	}

	return models.Sample{
		OwnerID:    identity.ID,
		OwnerName:  identity.Name,
		SequenceNo: seq,
		Path:       path,
		Pixels:     face,
	}, nil
}

// Load reads every sample in the directory in file name order. Files that
// cannot be decoded or whose names do not follow the encoding are returned
// as UnreadableSampleErrors instead of failing the load. A missing directory
// yields no samples.
func (r *Repository) Load() ([]models.Sample, []error, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warnf("Training directory '%s' not found", r.dir)
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to list sample directory: %w", err)
	}

	var (
		loaded  []models.Sample
		skipped []error
	)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Extension) {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())

		owner, seq, err := ParseFileName(entry.Name())
		if err != nil {
			skipped = append(skipped, &errdefs.UnreadableSampleError{Path: path, Err: err})
			continue
		}
		pixels, err := imaging.DecodeFile(path)
		if err != nil {
			skipped = append(skipped, &errdefs.UnreadableSampleError{Path: path, Err: err})
			continue
		}
		loaded = append(loaded, models.Sample{
			OwnerID:    owner.ID,
			OwnerName:  owner.Name,
			SequenceNo: seq,
			Path:       path,
			Pixels:     pixels,
		})
	}

	log.Debugf("Loaded %d samples from %s (%d skipped)", len(loaded), r.dir, len(skipped))
	return loaded, skipped, nil
}

// Summary counts the sample files and distinct identities without decoding
// any image.
func (r *Repository) Summary() (files int, identities int, err error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, 0, nil
		}
		return 0, 0, err
	}
	ids := make(map[int]struct{})
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Extension) {
			continue
		}
		files++
		if owner, _, err := ParseFileName(entry.Name()); err == nil {
			ids[owner.ID] = struct{}{}
		}
	}
	return files, len(ids), nil
}

// NewRun starts a capture run for identity. Sequence numbers restart at 1
// for every run.
func (r *Repository) NewRun(identity models.Identity, limit int) *CaptureRun {
	return &CaptureRun{repo: r, identity: identity, limit: limit}
}

// CaptureRun numbers the samples of one enrollment capture.
type CaptureRun struct {
	repo     *Repository
	identity models.Identity
	limit    int
	count    int
}

// Add stores the next sample of the run.
func (c *CaptureRun) Add(face *image.Gray) (models.Sample, error) {
	if c.Full() {
		return models.Sample{}, ErrRunComplete
	}
	sample, err := c.repo.Add(c.identity, c.count+1, face)
	if err != nil {
		return models.Sample{}, err
	}
	c.count++
	return sample, nil
}

// Count returns the number of samples stored so far.
func (c *CaptureRun) Count() int {
	return c.count
}

// Limit returns the cap of the run.
func (c *CaptureRun) Limit() int {
	return c.limit
}

// Full reports whether the cap has been reached.
func (c *CaptureRun) Full() bool {
	return c.limit > 0 && c.count >= c.limit
}
