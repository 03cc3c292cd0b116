package timezone

import (
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Layouts used by attendance records and ledger file names.
const (
	DateLayout     = "2006-01-02"
	TimeLayout     = "15:04:05"
	FileTimeLayout = "15-04-05"
)

var (
	mu              sync.RWMutex
	currentLocation *time.Location
)

// Initialize sets the zone used by Now. An empty name falls back to the TZ
// environment variable and then to the host's local zone.
func Initialize(name string) {
	if name == "" {
		name = os.Getenv("TZ")
	}

	loc := time.Local
	if name != "" {
		l, err := time.LoadLocation(name)
		if err != nil {
			log.Warnf("Failed to load timezone %s: %v. Falling back to local time.", name, err)
		} else {
			loc = l
			log.Debugf("Timezone initialized to %s", name)
		}
	}

	mu.Lock()
	currentLocation = loc
	mu.Unlock()
}

// Location returns the configured zone, initializing it on first use.
func Location() *time.Location {
	mu.RLock()
	loc := currentLocation
	mu.RUnlock()
	if loc == nil {
		Initialize("")
		return Location()
	}
	return loc
}

// Now returns the current time in the configured zone.
func Now() time.Time {
	return time.Now().In(Location())
}

// Date formats t as the attendance record date.
func Date(t time.Time) string {
	return t.In(Location()).Format(DateLayout)
}

// Clock formats t as the attendance record time of day.
func Clock(t time.Time) string {
	return t.In(Location()).Format(TimeLayout)
}
