// Package attendance runs recognition sessions and writes their ledgers.
package attendance

import (
	"errors"
	"fmt"
	"image"
	"time"

	"face-attendance/internal/core/models"
	"face-attendance/internal/imaging"
	"face-attendance/internal/util/timezone"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var (
	ErrSessionFinalized = errors.New("session already finalized")
	ErrSessionRunning   = errors.New("session already started")
	ErrSessionIdle      = errors.New("session not started")
)

// DefaultOverlapIoU is the box overlap at which a detection is treated as the
// same face as an earlier Present detection of the frame.
const DefaultOverlapIoU = 0.5

// State is the lifecycle position of a session.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateFinalized:
		return "finalized"
	default:
		return "idle"
	}
}

// StopReason tells why a session ended.
type StopReason string

const (
	StopFinalized     StopReason = "finalized"
	StopCancelled     StopReason = "cancelled"
	StopQuit          StopReason = "operator quit"
	StopEndOfStream   StopReason = "end of stream"
	StopDeviceFailure StopReason = "device failure"
)

// Detection is one recognized face of a frame.
type Detection struct {
	Box    image.Rectangle
	Result models.RecognitionResult
}

// Observation is the session's decision about one detection.
type Observation struct {
	Detection
	Band      models.Band
	Name      string
	Recorded  bool // first Present decision for this id in the session
	Duplicate bool // same face or id as an earlier Present detection of the frame
}

// Directory resolves identity ids to display names.
type Directory interface {
	Lookup(id int) (string, error)
}

// LedgerWriter persists the records of a finalized session.
type LedgerWriter interface {
	Write(at time.Time, records []models.AttendanceRecord) (string, error)
}

// Hook receives session events. Hooks must not block for long; they run
// on the recognition loop.
type Hook interface {
	RecordAdded(sessionID string, record models.AttendanceRecord)
	SessionFinalized(summary Summary)
}

// Summary describes a finalized session.
type Summary struct {
	SessionID   string
	StartedAt   time.Time
	FinalizedAt time.Time
	Frames      int
	Records     []models.AttendanceRecord
	LedgerPath  string // empty when nobody was recorded
	StopReason  StopReason
}

// Session accumulates attendance for one run of the recognition loop.
// It is not safe for concurrent use.
type Session struct {
	id         string
	state      State
	directory  Directory
	ledger     LedgerWriter
	thresholds Thresholds
	overlap    float64
	now        func() time.Time
	hooks      []Hook

	startedAt time.Time
	frames    int
	seen      map[int]struct{}
	records   []models.AttendanceRecord
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithThresholds overrides the confidence bands.
func WithThresholds(t Thresholds) SessionOption {
	return func(s *Session) {
		s.thresholds = t
	}
}

// WithOverlap overrides the per-frame duplicate IoU.
func WithOverlap(iou float64) SessionOption {
	return func(s *Session) {
		s.overlap = iou
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.now = now
	}
}

// WithHooks registers session event hooks.
func WithHooks(hooks ...Hook) SessionOption {
	return func(s *Session) {
		s.hooks = append(s.hooks, hooks...)
	}
}

// NewSession creates an idle session.
func NewSession(directory Directory, ledger LedgerWriter, opts ...SessionOption) *Session {
	s := &Session{
		id:         uuid.NewString(),
		directory:  directory,
		ledger:     ledger,
		thresholds: DefaultThresholds(),
		overlap:    DefaultOverlapIoU,
		now:        timezone.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session UUID.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Start moves an idle session to running with empty state.
func (s *Session) Start() error {
	switch s.state {
	case StateRunning:
		return ErrSessionRunning
	case StateFinalized:
		return ErrSessionFinalized
	}
	s.state = StateRunning
	s.startedAt = s.now()
	s.seen = make(map[int]struct{})
	s.records = nil
	log.Infof("Attendance session %s started", s.id)
	return nil
}

// ObserveFrame processes the detections of one frame in detector order and
// returns one observation per detection.
func (s *Session) ObserveFrame(detections []Detection) ([]Observation, error) {
	switch s.state {
	case StateIdle:
		return nil, ErrSessionIdle
	case StateFinalized:
		return nil, ErrSessionFinalized
	}
	s.frames++

	observations := make([]Observation, 0, len(detections))
	var presentBoxes []image.Rectangle
	presentInFrame := make(map[int]struct{})

	for _, d := range detections {
		obs := Observation{Detection: d}

		obs.Band = s.thresholds.Classify(d.Result.Confidence)
		if obs.Band != models.BandUnknown {
			name, err := s.directory.Lookup(d.Result.CandidateID)
			if err != nil {
				log.WithError(err).Debugf("No identity for candidate %d", d.Result.CandidateID)
				obs.Band = models.BandUnknown
			} else {
				obs.Name = name
			}
		}

		// Only Present decisions claim a face; a weaker box around the same
		// face never hides a later Present one.
		if _, ok := presentInFrame[d.Result.CandidateID]; ok {
			obs.Duplicate = true
		} else {
			for _, box := range presentBoxes {
				if imaging.IoU(box, d.Box) >= s.overlap {
					obs.Duplicate = true
					break
				}
			}
		}

		if obs.Band == models.BandPresent && !obs.Duplicate {
			presentBoxes = append(presentBoxes, d.Box)
			presentInFrame[d.Result.CandidateID] = struct{}{}
			if _, ok := s.seen[d.Result.CandidateID]; !ok {
				s.record(d.Result.CandidateID, obs.Name)
				obs.Recorded = true
			}
		}
		observations = append(observations, obs)
	}
	return observations, nil
}

func (s *Session) record(id int, name string) {
	at := s.now()
	rec := models.AttendanceRecord{
		ID:   id,
		Name: name,
		Date: timezone.Date(at),
		Time: timezone.Clock(at),
	}
	s.seen[id] = struct{}{}
	s.records = append(s.records, rec)
	log.Infof("Recorded %s (%d) at %s %s", name, id, rec.Date, rec.Time)

	for _, h := range s.hooks {
		h.RecordAdded(s.id, rec)
	}
}

// Records returns a copy of the records so far.
func (s *Session) Records() []models.AttendanceRecord {
	out := make([]models.AttendanceRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Seen reports whether id has been recorded in this session.
func (s *Session) Seen(id int) bool {
	_, ok := s.seen[id]
	return ok
}

// Present returns the number of recorded identities.
func (s *Session) Present() int {
	return len(s.records)
}

// Finalize ends the session, writes the ledger when at least one record
// exists and notifies the hooks. It can succeed only once. When the ledger
// cannot be written the session stays open so the call can be retried.
func (s *Session) Finalize(reason StopReason) (Summary, error) {
	if s.state == StateFinalized {
		return Summary{}, ErrSessionFinalized
	}
	if reason == "" {
		reason = StopFinalized
	}

	at := s.now()
	summary := Summary{
		SessionID:   s.id,
		StartedAt:   s.startedAt,
		FinalizedAt: at,
		Frames:      s.frames,
		Records:     s.Records(),
		StopReason:  reason,
	}

	if len(s.records) > 0 {
		path, err := s.ledger.Write(at, summary.Records)
		if err != nil {
			return summary, fmt.Errorf("failed to write attendance ledger: %w", err)
		}
		summary.LedgerPath = path
		log.Infof("Attendance ledger written to %s (%d records)", path, len(summary.Records))
	} else {
		log.Info("No attendance recorded, ledger not written")
	}

	s.state = StateFinalized
	for _, h := range s.hooks {
		h.SessionFinalized(summary)
	}
	return summary, nil
}
