package doctor

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/loopkit/loopkit/internal/cmdexec/mock"
	"github.com/loopkit/loopkit/internal/doctor/config"
	"github.com/loopkit/loopkit/internal/fstech"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type unavailableProber struct{}

func (p *unavailableProber) Probe(context.Context, fstech.Technology, fstech.Mode) error {
	return errors.New("mkfs.ext4 executable not found in $PATH")
}

func TestExerciseRefusesUnavailableTechnology(t *testing.T) {
	t.Parallel()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	log := logger.WithFields(nil)

	runner := mock.NewRunner()
	matrix := fstech.NewMatrix(&unavailableProber{}, log)

	c := config.Config{TempDir: t.TempDir(), LoopSize: 1 << 20}
	err := exercise(context.Background(), c, fstech.Ext4, matrix, runner, log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unavailable")
	assert.Empty(t, runner.Calls(), "no device may be provisioned when the capability is missing")
}
