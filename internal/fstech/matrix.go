package fstech

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/loopkit/loopkit/internal/logger"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Verdict is the outcome of a capability probe. Reason is set only when the
// capability is unavailable.
type Verdict struct {
	Available bool
	Reason    string
}

func available() Verdict {
	return Verdict{Available: true}
}

func unavailable(reason string) Verdict {
	return Verdict{Available: false, Reason: reason}
}

func (v Verdict) String() string {
	if v.Available {
		return "available"
	}
	return fmt.Sprintf("unavailable (%s)", v.Reason)
}

// Prober answers whether a single operation of a technology is usable on the
// host. A nil error means usable; any error carries the reason it is not.
// Matrix treats prober errors and panics alike as unavailability, so
// implementations are free to fail in whatever way is natural.
type Prober interface {
	Probe(ctx context.Context, tech Technology, mode Mode) error
}

// Matrix answers capability queries for all supported technologies. It keeps
// no state between probes: each query inspects the host afresh.
type Matrix struct {
	prober Prober
	log    *logrus.Entry
}

func NewMatrix(prober Prober, log *logrus.Entry) *Matrix {
	return &Matrix{prober: prober, log: log}
}

// NewHostMatrix returns a Matrix that probes the running host's toolchain.
func NewHostMatrix(log *logrus.Entry) *Matrix {
	return NewMatrix(&hostProber{}, log)
}

// Probe reports whether the technology supports every requested mode on this
// host. It is total: unknown technologies, prober errors, and prober panics
// all degrade to an unavailable verdict, never to an error.
func (m *Matrix) Probe(ctx context.Context, tech Technology, modes Mode) (verdict Verdict) {
	defer func() {
		if r := recover(); r != nil {
			verdict = unavailable(fmt.Sprintf("probe panicked: %v", r))
		}
		m.log.WithFields(logrus.Fields{
			logger.TechnologyKey: tech,
			logger.ModesKey:      modes.String(),
		}).Debugf("capability probe: %s", verdict)
	}()

	if modes == 0 {
		return unavailable("no operation modes requested")
	}
	if _, ok := toolTable[tech]; !ok {
		return unavailable(fmt.Sprintf("unknown filesystem technology '%s'", tech))
	}

	verdict = available()
	modes.Each(func(mode Mode) {
		if !verdict.Available {
			return
		}
		if err := m.prober.Probe(ctx, tech, mode); err != nil {
			verdict = unavailable(err.Error())
		}
	})
	return verdict
}

// Snapshot probes the default mode set of every supported technology and
// returns the verdicts keyed by technology. Probes are read-only host
// inspection, so they run concurrently. The returned map is a value to pass
// around; Snapshot never fails.
func (m *Matrix) Snapshot(ctx context.Context) map[Technology]Verdict {
	techs := Technologies()
	verdicts := make([]Verdict, len(techs))

	g, ctx := errgroup.WithContext(ctx)
	for i, tech := range techs {
		i, tech := i, tech
		g.Go(func() error {
			verdicts[i] = m.Probe(ctx, tech, DefaultModes(tech))
			return nil
		})
	}
	_ = g.Wait() // probes never return errors

	out := make(map[Technology]Verdict, len(techs))
	for i, tech := range techs {
		out[tech] = verdicts[i]
	}
	return out
}

type hostProber struct{}

// Probe checks that the tool implementing the operation is on PATH.
func (p *hostProber) Probe(_ context.Context, tech Technology, mode Mode) error {
	tool, err := ToolFor(tech, mode)
	if err != nil {
		return err
	}
	if _, err := exec.LookPath(tool); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%s executable not found in $PATH", tool)
		}
		return err
	}
	return nil
}
