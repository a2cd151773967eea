package config

import (
	"fmt"
	"os"

	"github.com/loopkit/loopkit/internal/fstech"
	"github.com/loopkit/loopkit/internal/loopdev"
	"github.com/spf13/pflag"
)

const (
	// DefaultExerciseFs is the technology used by the disposable-device
	// exercise when none is requested; ext4 tooling is the most commonly
	// installed.
	DefaultExerciseFs string = "ext4"

	envTempDir string = "LOOPKIT_TMPDIR"
)

type Config struct {
	TempDir      string
	LoopSize     int64
	Technologies []string
	Exercise     bool
	ExerciseFs   string
	LogLevel     string
	PrintVersion bool
}

func Parse(osArgs []string) (Config, error) {
	flagSet := pflag.NewFlagSet("default", pflag.ContinueOnError)
	c := Config{}
	flagSet.StringVar(&c.TempDir, "tmpdir", "", "Directory for sparse backing files. Defaults to the system temp directory.")
	flagSet.Int64Var(&c.LoopSize, "loop-size", loopdev.DefaultSize, "Size of each sparse backing file in bytes")
	flagSet.StringSliceVar(&c.Technologies, "technologies", nil, "Restrict the capability report to these filesystem technologies, e.g. --technologies=ext4,xfs")
	flagSet.BoolVar(&c.Exercise, "exercise", false, "Provision disposable loop devices and exercise the selected filesystem end to end")
	flagSet.StringVar(&c.ExerciseFs, "exercise-fs", DefaultExerciseFs, "Filesystem technology the exercise formats and mounts")
	flagSet.StringVar(&c.LogLevel, "log-level", "info", "Logging level: panic, fatal, error, warn, warning, info, debug or trace")
	flagSet.BoolVar(&c.PrintVersion, "version", false, "Print the version and exit.")

	if err := flagSet.Parse(osArgs); err != nil {
		return c, err
	}

	if c.TempDir == "" {
		c.TempDir = os.Getenv(envTempDir)
	}
	if c.LoopSize <= 0 {
		return c, fmt.Errorf("loop-size must be positive, got %d", c.LoopSize)
	}
	for _, t := range c.Technologies {
		if _, err := fstech.ParseTechnology(t); err != nil {
			return c, err
		}
	}
	if _, err := fstech.ParseTechnology(c.ExerciseFs); err != nil {
		return c, err
	}
	return c, nil
}
