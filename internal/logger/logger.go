package logger

import (
	"crypto/rand"
	"encoding/hex"
	"log"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	RunIDKey       string = "run_id"
	CommandKey     string = "cmd"
	CommandArgsKey string = "cmd_args"
	DeviceKey      string = "device"
	BackingFileKey string = "backing_file"
	MountSourceKey string = "source"
	MountTargetKey string = "target"
	ReadOnlyKey    string = "read_only"
	TechnologyKey  string = "technology"
	ModesKey       string = "modes"
	SizeBytesKey   string = "size_bytes"
	StepKey        string = "step"
)

// WithRunID tags the entry with a per-run correlation ID so the actions of a
// single harness run can be told apart in interleaved output.
func WithRunID(e *logrus.Entry) *logrus.Entry {
	return e.WithField(RunIDKey, runID())
}

// runID generates a random run ID string. The value only has to be unique
// enough to distinguish runs in a log stream.
func runID() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		// this shouldn't happen but fallback to UUID if necessary
		return uuid.NewString()
	}
	return hex.EncodeToString(b)
}

func New(logLevel string) *logrus.Logger {
	lv, err := logrus.ParseLevel(logLevel)
	if err != nil {
		log.Fatal(err)
	}
	logger := logrus.New()
	logger.SetLevel(lv)
	if logger.GetLevel() > logrus.InfoLevel {
		logger.WithField("level", logger.GetLevel().String()).Warn("using log level higher than INFO is not recommended in production")
	}
	return logger
}
