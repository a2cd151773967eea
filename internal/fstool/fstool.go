package fstool

import (
	"context"
	"fmt"

	"github.com/loopkit/loopkit/internal/cmdexec"
	"github.com/loopkit/loopkit/internal/fstech"
	"github.com/loopkit/loopkit/internal/logger"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Tool invokes the external filesystem utilities behind the capability
// matrix. Callers are expected to have probed availability first; a missing
// tool surfaces here as a run error.
type Tool struct {
	runner cmdexec.Runner
	log    *logrus.Entry
}

func New(runner cmdexec.Runner, log *logrus.Entry) *Tool {
	return &Tool{runner: runner, log: log}
}

// Mkfs formats device with the technology's filesystem. extraArgs are
// appended before the device argument. The device is synced before returning
// so a mount attempt immediately after sees the fresh superblock.
func (t *Tool) Mkfs(ctx context.Context, tech fstech.Technology, device string, extraArgs ...string) error {
	args := append(mkfsArgs(tech), extraArgs...)
	args = append(args, device)
	if err := t.run(ctx, tech, fstech.Create, device, args); err != nil {
		return err
	}
	// sync after a mkfs on the loopback before trying to mount the device
	unix.Sync()
	return nil
}

// Resize grows or shrinks the filesystem. target is the device for most
// technologies; XFS and Btrfs resize through an active mount point instead.
// An empty size means "grow to the device size" where the tool supports it.
func (t *Tool) Resize(ctx context.Context, tech fstech.Technology, target, size string) error {
	var args []string
	switch tech {
	case fstech.Btrfs:
		if size == "" {
			size = "max"
		}
		args = []string{"filesystem", "resize", size, target}
	case fstech.XFS:
		args = []string{target}
		if size != "" {
			args = []string{"-D", size, target}
		}
	case fstech.NTFS:
		args = []string{"-f"}
		if size != "" {
			args = append(args, "-s", size)
		}
		args = append(args, target)
	case fstech.ReiserFS:
		if size != "" {
			args = append(args, "-s", size)
		}
		args = append(args, target)
	default:
		args = []string{target}
		if size != "" {
			args = append(args, size)
		}
	}
	return t.run(ctx, tech, fstech.Resize, target, args)
}

// Repair fixes filesystem inconsistencies on device.
func (t *Tool) Repair(ctx context.Context, tech fstech.Technology, device string) error {
	var args []string
	switch tech {
	case fstech.Ext4:
		args = []string{"-f", "-p", device}
	case fstech.Btrfs:
		args = []string{"check", "--repair", "--force", device}
	case fstech.NTFS:
		args = []string{"-d", device}
	case fstech.F2FS:
		args = []string{"-f", device}
	case fstech.ReiserFS:
		args = []string{"--fix-fixable", "-y", device}
	case fstech.ExFAT:
		args = []string{"-y", device}
	case fstech.VFAT:
		args = []string{"-a", device}
	default:
		args = []string{device}
	}
	return t.run(ctx, tech, fstech.Repair, device, args)
}

// Check runs a non-destructive consistency check on device.
func (t *Tool) Check(ctx context.Context, tech fstech.Technology, device string) error {
	var args []string
	switch tech {
	case fstech.Ext4:
		args = []string{"-f", "-n", device}
	case fstech.XFS:
		args = []string{"-n", device}
	case fstech.Btrfs:
		args = []string{"check", device}
	case fstech.NTFS:
		args = []string{"-n", device}
	case fstech.ReiserFS:
		args = []string{"--check", "-y", device}
	case fstech.ExFAT, fstech.VFAT:
		args = []string{"-n", device}
	default:
		args = []string{device}
	}
	return t.run(ctx, tech, fstech.Check, device, args)
}

// SetLabel sets the filesystem label on device.
func (t *Tool) SetLabel(ctx context.Context, tech fstech.Technology, device, label string) error {
	var args []string
	switch tech {
	case fstech.Ext4:
		args = []string{"-L", label, device}
	case fstech.XFS:
		args = []string{"-L", label, device}
	case fstech.Btrfs:
		args = []string{"filesystem", "label", device, label}
	case fstech.ReiserFS:
		args = []string{"-l", label, device}
	case fstech.NILFS2:
		args = []string{"-L", label, device}
	case fstech.ExFAT:
		args = []string{"-L", label, device}
	default:
		args = []string{device, label}
	}
	return t.run(ctx, tech, fstech.SetLabel, device, args)
}

func (t *Tool) run(ctx context.Context, tech fstech.Technology, mode fstech.Mode, device string, args []string) error {
	tool, err := fstech.ToolFor(tech, mode)
	if err != nil {
		return err
	}
	t.log.WithFields(logrus.Fields{
		logger.TechnologyKey: tech,
		logger.ModesKey:      mode.String(),
		logger.DeviceKey:     device,
	}).Debugf("running %s", tool)
	if _, err := cmdexec.RunChecked(ctx, t.runner, tool, args...); err != nil {
		return fmt.Errorf("%s %s failed: %w", tech, mode, err)
	}
	return nil
}

// mkfsArgs returns the flags that keep a technology's mkfs from prompting or
// refusing a reused loop device.
func mkfsArgs(tech fstech.Technology) []string {
	switch tech {
	case fstech.Ext4:
		return []string{"-F"}
	case fstech.XFS, fstech.Btrfs, fstech.F2FS, fstech.ReiserFS:
		return []string{"-f"}
	case fstech.NTFS:
		// quick format, a full zeroing of 150 MiB is pointless for tests
		return []string{"-F", "-Q"}
	default:
		return nil
	}
}
