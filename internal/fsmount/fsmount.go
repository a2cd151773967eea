package fsmount

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/loopkit/loopkit/internal/cmdexec"
	"github.com/loopkit/loopkit/internal/logger"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const (
	mountCmd   = "mount"
	umountCmd  = "umount"
	findmntCmd = "findmnt"
)

// ErrMount marks a failed mount acquisition. The scope body never runs
// without a valid mount, so this is fatal to the caller.
var ErrMount = errors.New("mount error")

// Scope is a held mount. The Scope that mounted a target is solely
// responsible for unmounting it; Exit releases best-effort and is safe to
// call repeatedly, including after the target was already unmounted by the
// body.
type Scope struct {
	runner cmdexec.Runner
	log    *logrus.Entry
	target string
	done   bool
}

// Enter mounts device at target, read-only when requested, creating the
// target directory if needed. On failure no Scope is returned and nothing is
// left mounted.
func Enter(ctx context.Context, runner cmdexec.Runner, device, target string, readOnly bool, log *logrus.Entry) (*Scope, error) {
	if device == "" {
		return nil, fmt.Errorf("%w: device is not specified", ErrMount)
	}
	if target == "" {
		return nil, fmt.Errorf("%w: target is not specified", ErrMount)
	}
	if err := os.MkdirAll(target, 0o750); err != nil {
		return nil, fmt.Errorf("%w: creating mount point: %s", ErrMount, err)
	}

	args := make([]string, 0, 4)
	if readOnly {
		args = append(args, "-o", "ro")
	}
	args = append(args, device, target)

	log = log.WithFields(logrus.Fields{
		logger.MountSourceKey: device,
		logger.MountTargetKey: target,
		logger.ReadOnlyKey:    readOnly,
	})
	if _, err := cmdexec.RunChecked(ctx, runner, mountCmd, args...); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMount, err)
	}
	log.Debug("mounted")
	return &Scope{runner: runner, log: log, target: target}, nil
}

// Exit unmounts the scope's target. It never fails: a target that is already
// unmounted or gone is treated as clean, anything else is logged and
// dropped.
func (s *Scope) Exit(ctx context.Context) {
	if s.done {
		return
	}
	s.done = true
	Unmount(ctx, s.runner, s.target, s.log)
}

// Target returns the mount point path.
func (s *Scope) Target() string {
	return s.target
}

// Mounted runs fn with device mounted at target and guarantees the unmount
// afterwards, whether fn succeeds or fails.
func Mounted(ctx context.Context, runner cmdexec.Runner, device, target string, readOnly bool, log *logrus.Entry, fn func(target string) error) error {
	scope, err := Enter(ctx, runner, device, target, readOnly, log)
	if err != nil {
		return err
	}
	defer scope.Exit(ctx)
	return fn(target)
}

// Unmount best-effort unmounts target. "Not mounted" and a missing target
// are success; real failures are logged at warn and swallowed.
func Unmount(ctx context.Context, runner cmdexec.Runner, target string, log *logrus.Entry) {
	log = log.WithField(logger.MountTargetKey, target)
	if _, err := os.Stat(target); os.IsNotExist(err) {
		log.Debug("unmount target does not exist")
		return
	}
	res, err := runner.Run(ctx, umountCmd, target)
	switch {
	case err != nil:
		log.WithError(err).Warn("failed to run umount")
	case res.ExitCode == 0:
		log.Debug("unmounted")
	case strings.Contains(res.Stderr, "not mounted") || strings.Contains(res.Stderr, "no mount point"):
		log.Debug("target already unmounted")
	default:
		log.WithField("stderr", strings.TrimSpace(res.Stderr)).Warn("failed to unmount, mount may be leaked")
	}
}

// IsMounted checks whether target currently has a filesystem mounted on it.
func IsMounted(ctx context.Context, runner cmdexec.Runner, target string) (bool, error) {
	if target == "" {
		return false, errors.New("target is not specified for checking the mount")
	}

	res, err := runner.Run(ctx, findmntCmd, "-o", "TARGET,FSTYPE,OPTIONS", "-M", target, "-J")
	if err != nil {
		return false, fmt.Errorf("checking mounted failed: %w", err)
	}
	// findmnt exits with non zero exit status if it couldn't find anything
	if res.ExitCode != 0 || strings.TrimSpace(res.Stdout) == "" {
		return false, nil
	}

	type fileSystem struct {
		Target  string `json:"target"`
		FsType  string `json:"fstype"`
		Options string `json:"options"`
	}
	type findmntResponse struct {
		FileSystems []fileSystem `json:"filesystems"`
	}

	var resp findmntResponse
	if err := json.Unmarshal([]byte(res.Stdout), &resp); err != nil {
		return false, fmt.Errorf("couldn't unmarshal findmnt output %q: %w", res.Stdout, err)
	}
	for _, fs := range resp.FileSystems {
		if fs.Target == target {
			return true, nil
		}
	}
	return false, nil
}

// VolumeStatistics reports capacity figures for a mounted filesystem.
type VolumeStatistics struct {
	AvailableBytes,
	TotalBytes,
	UsedBytes,
	AvailableInodes,
	TotalInodes,
	UsedInodes int64
}

// Statistics returns capacity-related statistics for the given mounted path.
func Statistics(path string) (VolumeStatistics, error) {
	var statfs unix.Statfs_t
	// See http://man7.org/linux/man-pages/man2/statfs.2.html for details.
	err := unix.Statfs(path, &statfs)
	if err != nil {
		return VolumeStatistics{}, err
	}
	return VolumeStatistics{
		AvailableBytes: int64(statfs.Bavail) * int64(statfs.Bsize),                         //nolint:unconvert // unix.Statfs_t integer types varies between GOARCHs
		TotalBytes:     int64(statfs.Blocks) * int64(statfs.Bsize),                         //nolint:unconvert // unix.Statfs_t integer types varies between GOARCHs
		UsedBytes:      (int64(statfs.Blocks) - int64(statfs.Bfree)) * int64(statfs.Bsize), //nolint:unconvert // unix.Statfs_t integer types varies between GOARCHs

		AvailableInodes: int64(statfs.Ffree),
		TotalInodes:     int64(statfs.Files),
		UsedInodes:      int64(statfs.Files) - int64(statfs.Ffree),
	}, nil
}
