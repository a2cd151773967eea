package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/loopkit/loopkit/internal/cmdexec"
	"github.com/loopkit/loopkit/internal/doctor/config"
	"github.com/loopkit/loopkit/internal/fsmount"
	"github.com/loopkit/loopkit/internal/fstech"
	"github.com/loopkit/loopkit/internal/fstool"
	"github.com/loopkit/loopkit/internal/harness"
	"github.com/loopkit/loopkit/internal/logger"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Run prints the host's filesystem capability report and, when requested,
// exercises the selected technology end to end on disposable loop devices.
func Run(ctx context.Context, c config.Config) error {
	log := logger.WithRunID(logger.New(c.LogLevel).WithFields(nil))
	runner := cmdexec.NewRunner(log)
	matrix := fstech.NewHostMatrix(log)

	verdicts := matrix.Snapshot(ctx)
	printReport(c, verdicts)

	if !c.Exercise {
		return nil
	}
	tech, err := fstech.ParseTechnology(c.ExerciseFs)
	if err != nil {
		return err
	}
	return exercise(ctx, c, tech, matrix, runner, log)
}

func printReport(c config.Config, verdicts map[fstech.Technology]fstech.Verdict) {
	selected := make(map[fstech.Technology]bool, len(c.Technologies))
	for _, t := range c.Technologies {
		if tech, err := fstech.ParseTechnology(t); err == nil {
			selected[tech] = true
		}
	}
	for _, tech := range fstech.Technologies() {
		if len(selected) > 0 && !selected[tech] {
			continue
		}
		fmt.Printf("%-10s %-28s %s\n", tech, fstech.DefaultModes(tech), verdicts[tech]) //nolint: forbidigo // report output
	}
}

// exercise runs the full disposable-device scenario: provision two loop
// devices, format the primary, mount it read-only and prove writes are
// rejected, toggle the device itself read-only and prove mkfs is rejected,
// then reclaim everything. Cleanup runs on every exit path and its failures
// never replace the scenario's own result.
func exercise(ctx context.Context, c config.Config, tech fstech.Technology, matrix *fstech.Matrix, runner cmdexec.Runner, log *logrus.Entry) error {
	if v := matrix.Probe(ctx, tech, fstech.Create); !v.Available {
		return fmt.Errorf("cannot exercise %s: create capability is %s", tech, v)
	}

	lc := harness.New(runner, c.TempDir, c.LoopSize, log)
	if err := lc.Setup(ctx); err != nil {
		return err
	}
	defer lc.Cleanup(ctx)

	tool := fstool.New(runner, log)
	device := lc.Primary()
	if err := tool.Mkfs(ctx, tech, device); err != nil {
		return err
	}

	target := filepath.Join(os.TempDir(), fmt.Sprintf("loopkit-mount-%s", uuid.NewString()))
	lc.RegisterMount(target)
	defer os.RemoveAll(target)

	err := fsmount.Mounted(ctx, runner, device, target, true, log, func(target string) error {
		if err := rejectWrite(target); err != nil {
			return err
		}
		stats, err := fsmount.Statistics(target)
		if err != nil {
			return err
		}
		log.WithField(logger.MountTargetKey, target).Infof("mounted filesystem reports %d bytes total, %d available", stats.TotalBytes, stats.AvailableBytes)
		return nil
	})
	if err != nil {
		return err
	}

	if err := lc.SetReadOnly(ctx, device); err != nil {
		return err
	}
	if err := tool.Mkfs(ctx, tech, device); err == nil {
		_ = lc.SetReadWrite(ctx, device)
		return fmt.Errorf("mkfs succeeded on read-only device %s", device)
	}
	if err := lc.SetReadWrite(ctx, device); err != nil {
		return err
	}

	log.WithField(logger.TechnologyKey, tech).Info("exercise completed")
	return nil
}

// rejectWrite proves the read-only mount refuses file creation.
func rejectWrite(target string) error {
	f, err := os.Create(filepath.Join(target, "loopkit-write-probe"))
	if err == nil {
		f.Close()
		return fmt.Errorf("write inside read-only mount %s unexpectedly succeeded", target)
	}
	if !errors.Is(err, os.ErrPermission) && !errors.Is(err, unix.EROFS) {
		return fmt.Errorf("write probe failed with unexpected error: %w", err)
	}
	return nil
}
