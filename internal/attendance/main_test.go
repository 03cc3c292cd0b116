package attendance

import (
	"os"
	"testing"

	"face-attendance/internal/util/timezone"
)

func TestMain(m *testing.M) {
	timezone.Initialize("UTC")
	os.Exit(m.Run())
}
