package fsmount

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/loopkit/loopkit/internal/cmdexec"
	"github.com/loopkit/loopkit/internal/cmdexec/mock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLog() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger.WithFields(nil)
}

func TestEnterReadOnly(t *testing.T) {
	t.Parallel()
	runner := mock.NewRunner()
	target := filepath.Join(t.TempDir(), "mnt")

	scope, err := Enter(context.Background(), runner, "/dev/loop4", target, true, newTestLog())
	require.NoError(t, err)
	assert.Equal(t, target, scope.Target())

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, mountCmd, calls[0].Name)
	assert.Equal(t, []string{"-o", "ro", "/dev/loop4", target}, calls[0].Args)
	assert.DirExists(t, target, "mount point must be created")
}

func TestEnterReadWrite(t *testing.T) {
	t.Parallel()
	runner := mock.NewRunner()
	target := filepath.Join(t.TempDir(), "mnt")

	_, err := Enter(context.Background(), runner, "/dev/loop4", target, false, newTestLog())
	require.NoError(t, err)

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"/dev/loop4", target}, calls[0].Args)
}

func TestEnterMountFailure(t *testing.T) {
	t.Parallel()
	runner := mock.NewRunner()
	runner.Respond(mountCmd, cmdexec.Result{ExitCode: 32, Stderr: "wrong fs type"}, nil)

	scope, err := Enter(context.Background(), runner, "/dev/loop4", filepath.Join(t.TempDir(), "mnt"), false, newTestLog())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMount))
	assert.Nil(t, scope)
}

func TestEnterRejectsEmptyArguments(t *testing.T) {
	t.Parallel()
	runner := mock.NewRunner()
	_, err := Enter(context.Background(), runner, "", "/mnt/x", false, newTestLog())
	require.Error(t, err)
	_, err = Enter(context.Background(), runner, "/dev/loop4", "", false, newTestLog())
	require.Error(t, err)
	assert.Empty(t, runner.Calls())
}

func TestExitUnmountsOnce(t *testing.T) {
	t.Parallel()
	runner := mock.NewRunner()
	target := filepath.Join(t.TempDir(), "mnt")

	scope, err := Enter(context.Background(), runner, "/dev/loop4", target, false, newTestLog())
	require.NoError(t, err)

	scope.Exit(context.Background())
	scope.Exit(context.Background())

	names := runner.CallNames()
	assert.Equal(t, []string{mountCmd, umountCmd}, names, "second exit must be a no-op")
}

func TestExitToleratesAlreadyUnmounted(t *testing.T) {
	t.Parallel()
	runner := mock.NewRunner()
	target := filepath.Join(t.TempDir(), "mnt")

	scope, err := Enter(context.Background(), runner, "/dev/loop4", target, false, newTestLog())
	require.NoError(t, err)

	// the body unmounted the target itself
	runner.Respond(umountCmd, cmdexec.Result{ExitCode: 32, Stderr: "umount: " + target + ": not mounted."}, nil)
	scope.Exit(context.Background())
}

func TestMountedUnmountsWhenBodyFails(t *testing.T) {
	t.Parallel()
	runner := mock.NewRunner()
	target := filepath.Join(t.TempDir(), "mnt")

	bodyErr := errors.New("assertion failed inside the mount")
	err := Mounted(context.Background(), runner, "/dev/loop4", target, true, newTestLog(), func(string) error {
		return bodyErr
	})
	require.Equal(t, bodyErr, err, "the body's failure must be the reported one")

	names := runner.CallNames()
	assert.Equal(t, []string{mountCmd, umountCmd}, names, "unmount must run despite body failure")
}

func TestMountedBodyNeverRunsWithoutMount(t *testing.T) {
	t.Parallel()
	runner := mock.NewRunner()
	runner.Respond(mountCmd, cmdexec.Result{ExitCode: 1}, nil)

	ran := false
	err := Mounted(context.Background(), runner, "/dev/loop4", filepath.Join(t.TempDir(), "mnt"), false, newTestLog(), func(string) error {
		ran = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, ran)
}

func TestUnmountMissingTarget(t *testing.T) {
	t.Parallel()
	runner := mock.NewRunner()
	Unmount(context.Background(), runner, filepath.Join(t.TempDir(), "never-created"), newTestLog())
	assert.Empty(t, runner.Calls(), "a missing target is already clean")
}

func TestIsMounted(t *testing.T) {
	t.Parallel()
	runner := mock.NewRunner()
	runner.Respond(findmntCmd, cmdexec.Result{
		Stdout: `{"filesystems": [{"target":"/mnt/scratch", "fstype":"ext4", "options":"ro"}]}`,
	}, nil)

	mounted, err := IsMounted(context.Background(), runner, "/mnt/scratch")
	require.NoError(t, err)
	assert.True(t, mounted)
}

func TestIsMountedNotFound(t *testing.T) {
	t.Parallel()
	// findmnt exits non-zero with empty output when nothing matches
	runner := mock.NewRunner()
	runner.Respond(findmntCmd, cmdexec.Result{ExitCode: 1}, nil)

	mounted, err := IsMounted(context.Background(), runner, "/mnt/scratch")
	require.NoError(t, err)
	assert.False(t, mounted)
}

func TestIsMountedMalformedOutput(t *testing.T) {
	t.Parallel()
	runner := mock.NewRunner()
	runner.Respond(findmntCmd, cmdexec.Result{Stdout: "not json"}, nil)

	_, err := IsMounted(context.Background(), runner, "/mnt/scratch")
	require.Error(t, err)
}

func TestStatistics(t *testing.T) {
	t.Parallel()
	stats, err := Statistics(t.TempDir())
	require.NoError(t, err)
	assert.Greater(t, stats.TotalBytes, int64(0))
}
