package loopdev

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/loopkit/loopkit/internal/cmdexec"
	"github.com/loopkit/loopkit/internal/logger"
	"github.com/sirupsen/logrus"
)

const (
	losetupCmd = "losetup"

	// DefaultSize is the backing-file size used by the harness fixtures.
	DefaultSize int64 = 150 * 1024 * 1024
)

// ErrResource marks a failure to provision the backing file or bind the loop
// device. Provisioning failures are fatal to the owning test: there is no
// device to run it against.
var ErrResource = errors.New("loop device resource error")

type state int

const (
	unallocated state = iota
	bound
	reclaimed
)

// Fixture owns one sparse backing file and the loop device bound to it.
// Create moves it to the bound state; Destroy reclaims both resources
// best-effort and is safe to call from any state, any number of times.
type Fixture struct {
	runner cmdexec.Runner
	log    *logrus.Entry

	dir  string
	size int64

	backingFile string
	device      string
	state       state
}

// New returns an unallocated fixture that will place its backing file in dir
// (the system temp dir when empty).
func New(runner cmdexec.Runner, dir string, size int64, log *logrus.Entry) *Fixture {
	if dir == "" {
		dir = os.TempDir()
	}
	if size <= 0 {
		size = DefaultSize
	}
	return &Fixture{runner: runner, log: log, dir: dir, size: size}
}

// Device returns the bound loop device path, empty unless bound.
func (f *Fixture) Device() string {
	return f.device
}

// BackingFile returns the sparse file path, empty unless bound.
func (f *Fixture) BackingFile() string {
	return f.backingFile
}

// Create allocates a unique sparse backing file and binds it to a free loop
// device. Both steps must succeed; on a failed bind the fresh backing file
// is removed before returning. All failures wrap ErrResource.
func (f *Fixture) Create(ctx context.Context) error {
	if f.state != unallocated {
		return fmt.Errorf("%w: fixture already used", ErrResource)
	}

	file, err := createSparseFile(f.dir, f.size)
	if err != nil {
		return fmt.Errorf("%w: creating backing file: %s", ErrResource, err)
	}

	res, err := cmdexec.RunChecked(ctx, f.runner, losetupCmd, "--find", "--show", file)
	if err != nil {
		if rmErr := os.Remove(file); rmErr != nil {
			f.log.WithField(logger.BackingFileKey, file).WithError(rmErr).Warn("failed to remove backing file after bind failure")
		}
		return fmt.Errorf("%w: binding loop device: %s", ErrResource, err)
	}
	device := strings.TrimSpace(res.Stdout)
	if device == "" {
		if rmErr := os.Remove(file); rmErr != nil {
			f.log.WithField(logger.BackingFileKey, file).WithError(rmErr).Warn("failed to remove backing file after bind failure")
		}
		return fmt.Errorf("%w: losetup reported no device", ErrResource)
	}

	f.backingFile = file
	f.device = device
	f.state = bound
	f.log.WithFields(logrus.Fields{
		logger.DeviceKey:      device,
		logger.BackingFileKey: file,
		logger.SizeBytesKey:   f.size,
	}).Info("loop device bound")
	return nil
}

// Destroy detaches the loop device and removes the backing file. Each step
// is attempted independently: a failed detach never blocks file removal.
// Failures are logged — a resource that is already gone at debug, one that
// is still present but would not release at warn — and never returned.
// Destroy is idempotent and a no-op on an unallocated fixture.
func (f *Fixture) Destroy(ctx context.Context) {
	if f.state != bound {
		return
	}
	f.state = reclaimed

	if _, err := cmdexec.RunChecked(ctx, f.runner, losetupCmd, "--detach", f.device); err != nil {
		log := f.log.WithField(logger.DeviceKey, f.device).WithError(err)
		if deviceGone(f.device) {
			log.Debug("loop device already detached")
		} else {
			log.Warn("failed to detach loop device, device may be leaked")
		}
	}

	if err := os.Remove(f.backingFile); err != nil {
		log := f.log.WithField(logger.BackingFileKey, f.backingFile).WithError(err)
		if os.IsNotExist(err) {
			log.Debug("backing file already removed")
		} else {
			log.Warn("failed to remove backing file, file may be leaked")
		}
	}
}

// createSparseFile allocates a unique file of the declared size without
// writing its blocks.
func createSparseFile(dir string, size int64) (string, error) {
	file, err := os.CreateTemp(dir, "loopkit-backing-*.img")
	if err != nil {
		return "", err
	}
	defer file.Close()
	if err := file.Truncate(size); err != nil {
		os.Remove(file.Name())
		return "", err
	}
	return file.Name(), nil
}

func deviceGone(device string) bool {
	_, err := os.Stat(device)
	return os.IsNotExist(err)
}
