package fstech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type proberFunc func(ctx context.Context, tech Technology, mode Mode) error

func (f proberFunc) Probe(ctx context.Context, tech Technology, mode Mode) error {
	return f(ctx, tech, mode)
}

func newTestMatrix(p Prober) *Matrix {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewMatrix(p, logger.WithFields(nil))
}

func TestProbeAvailable(t *testing.T) {
	t.Parallel()
	m := newTestMatrix(proberFunc(func(context.Context, Technology, Mode) error {
		return nil
	}))

	v := m.Probe(context.Background(), Ext4, AllModes)
	assert.True(t, v.Available)
	assert.Empty(t, v.Reason)
}

func TestProbeConjunction(t *testing.T) {
	t.Parallel()
	// every mode except resize is available; a mask containing resize must
	// come back unavailable
	m := newTestMatrix(proberFunc(func(_ context.Context, _ Technology, mode Mode) error {
		if mode == Resize {
			return errors.New("resize2fs executable not found in $PATH")
		}
		return nil
	}))

	assert.True(t, m.Probe(context.Background(), Ext4, Create|Check).Available)

	v := m.Probe(context.Background(), Ext4, Create|Resize|Check)
	require.False(t, v.Available)
	assert.Contains(t, v.Reason, "resize2fs")
}

func TestProbeNeverPropagatesProberPanic(t *testing.T) {
	t.Parallel()
	m := newTestMatrix(proberFunc(func(context.Context, Technology, Mode) error {
		panic("query API not implemented")
	}))

	v := m.Probe(context.Background(), NTFS, AllModes)
	require.False(t, v.Available)
	assert.Contains(t, v.Reason, "query API not implemented")
}

func TestProbeUnknownTechnology(t *testing.T) {
	t.Parallel()
	m := newTestMatrix(proberFunc(func(context.Context, Technology, Mode) error {
		t.Error("prober must not be consulted for an unknown technology")
		return nil
	}))

	v := m.Probe(context.Background(), Technology("zfs"), Create)
	require.False(t, v.Available)
	assert.Contains(t, v.Reason, "unknown filesystem technology")
}

func TestProbeEmptyModeSet(t *testing.T) {
	t.Parallel()
	m := newTestMatrix(proberFunc(func(context.Context, Technology, Mode) error {
		return nil
	}))

	v := m.Probe(context.Background(), Ext4, 0)
	assert.False(t, v.Available)
}

func TestProbeModeWithoutTool(t *testing.T) {
	t.Parallel()
	// the prober reports everything installed, but UDF has no resize tool at
	// all, so the verdict must still be unavailable
	m := newTestMatrix(&hostProberAllInstalled{})

	v := m.Probe(context.Background(), UDF, Create|Resize)
	require.False(t, v.Available)
	assert.Contains(t, v.Reason, "no tool")
}

type hostProberAllInstalled struct{}

func (p *hostProberAllInstalled) Probe(_ context.Context, tech Technology, mode Mode) error {
	_, err := ToolFor(tech, mode)
	return err
}

func TestSnapshotCoversEveryTechnology(t *testing.T) {
	t.Parallel()
	m := newTestMatrix(proberFunc(func(_ context.Context, tech Technology, _ Mode) error {
		if tech == ReiserFS {
			return fmt.Errorf("mkreiserfs executable not found in $PATH")
		}
		return nil
	}))

	verdicts := m.Snapshot(context.Background())
	require.Len(t, verdicts, len(Technologies()))
	for _, tech := range Technologies() {
		v, ok := verdicts[tech]
		require.True(t, ok, "missing verdict for %s", tech)
		if tech == ReiserFS {
			assert.False(t, v.Available)
		} else {
			assert.True(t, v.Available, "%s: %s", tech, v.Reason)
		}
	}
}

func TestHostProbeIsTotal(t *testing.T) {
	t.Parallel()
	// against the real host: whatever is installed, every technology must
	// produce a verdict without error
	m := newTestMatrix(&hostProber{})
	for _, tech := range Technologies() {
		v := m.Probe(context.Background(), tech, DefaultModes(tech))
		if !v.Available {
			t.Logf("%s: %s", tech, v)
		}
	}
}
