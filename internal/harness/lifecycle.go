package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/loopkit/loopkit/internal/cmdexec"
	"github.com/loopkit/loopkit/internal/fsmount"
	"github.com/loopkit/loopkit/internal/logger"
	"github.com/loopkit/loopkit/internal/loopdev"
	"github.com/sirupsen/logrus"
)

const blockdevCmd = "blockdev"

// ErrSetup marks a fixture provisioning failure. Setup failures are fatal:
// a test without its devices cannot run.
var ErrSetup = errors.New("fixture setup error")

// Lifecycle provisions a test's pair of loop-device fixtures and guarantees
// their reclamation. Two independent devices let tests exercise
// device-to-device operations. Cleanup is unconditional, ordered, and
// tolerant: every registered step gets its attempt even when earlier ones
// fail, and failures are logged rather than propagated so teardown never
// masks the test's own result.
type Lifecycle struct {
	runner cmdexec.Runner
	log    *logrus.Entry

	dir      string
	loopSize int64

	primary   *loopdev.Fixture
	secondary *loopdev.Fixture
	mounts    []string
	cleaned   bool
}

// New returns an unprovisioned lifecycle placing backing files in dir (the
// system temp dir when empty) with the given backing size (150 MiB default).
func New(runner cmdexec.Runner, dir string, loopSize int64, log *logrus.Entry) *Lifecycle {
	if loopSize <= 0 {
		loopSize = loopdev.DefaultSize
	}
	return &Lifecycle{runner: runner, log: log, dir: dir, loopSize: loopSize}
}

// Primary returns the first loop device path, empty before Setup.
func (l *Lifecycle) Primary() string {
	if l.primary == nil {
		return ""
	}
	return l.primary.Device()
}

// Secondary returns the second loop device path, empty before Setup.
func (l *Lifecycle) Secondary() string {
	if l.secondary == nil {
		return ""
	}
	return l.secondary.Device()
}

// Setup creates both fixtures. The first failure aborts setup with ErrSetup
// after reclaiming whatever was already provisioned.
func (l *Lifecycle) Setup(ctx context.Context) error {
	l.primary = loopdev.New(l.runner, l.dir, l.loopSize, l.log)
	if err := l.primary.Create(ctx); err != nil {
		return fmt.Errorf("%w: primary device: %s", ErrSetup, err)
	}
	l.secondary = loopdev.New(l.runner, l.dir, l.loopSize, l.log)
	if err := l.secondary.Create(ctx); err != nil {
		l.primary.Destroy(ctx)
		return fmt.Errorf("%w: secondary device: %s", ErrSetup, err)
	}
	return nil
}

// RegisterMount remembers a mount target the test body may leave active so
// Cleanup can sweep it. An already-unmounted target is tolerated at sweep
// time.
func (l *Lifecycle) RegisterMount(target string) {
	l.mounts = append(l.mounts, target)
}

// Cleanup reclaims every resource the lifecycle knows about: registered
// mounts first (a held mount blocks detach), then both fixtures. Each step
// is independent — one failing never skips the next — and all failures are
// contained. Calling Cleanup again is a no-op.
func (l *Lifecycle) Cleanup(ctx context.Context) {
	if l.cleaned {
		return
	}
	l.cleaned = true

	for _, target := range l.mounts {
		fsmount.Unmount(ctx, l.runner, target, l.log.WithField(logger.StepKey, "mount sweep"))
	}
	if l.primary != nil {
		l.primary.Destroy(ctx)
	}
	if l.secondary != nil {
		l.secondary.Destroy(ctx)
	}
}

// SetReadOnly switches the block device to read-only. A non-zero exit is a
// hard error: a test that asked for read-only protection cannot trust its
// assertions without it.
func (l *Lifecycle) SetReadOnly(ctx context.Context, device string) error {
	return l.blockdev(ctx, "--setro", device)
}

// SetReadWrite switches the block device back to read-write.
func (l *Lifecycle) SetReadWrite(ctx context.Context, device string) error {
	return l.blockdev(ctx, "--setrw", device)
}

func (l *Lifecycle) blockdev(ctx context.Context, flag, device string) error {
	if device == "" {
		return errors.New("device is not specified")
	}
	if _, err := cmdexec.RunChecked(ctx, l.runner, blockdevCmd, flag, device); err != nil {
		return fmt.Errorf("failed to set %s mode: %w", device, err)
	}
	return nil
}
