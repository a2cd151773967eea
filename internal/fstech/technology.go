package fstech

import (
	"fmt"
	"strings"
)

// Technology identifies a filesystem kind the harness knows how to probe and
// exercise. The set is closed: probing an unlisted value yields an
// unavailable verdict, never an error.
type Technology string

const (
	Ext4     Technology = "ext4"
	XFS      Technology = "xfs"
	Btrfs    Technology = "btrfs"
	NTFS     Technology = "ntfs"
	F2FS     Technology = "f2fs"
	ReiserFS Technology = "reiserfs"
	NILFS2   Technology = "nilfs2"
	ExFAT    Technology = "exfat"
	UDF      Technology = "udf"
	VFAT     Technology = "vfat"
)

// Technologies lists every supported technology in stable order.
func Technologies() []Technology {
	return []Technology{Ext4, XFS, Btrfs, NTFS, F2FS, ReiserFS, NILFS2, ExFAT, UDF, VFAT}
}

// ParseTechnology maps a user-supplied name to a Technology.
func ParseTechnology(s string) (Technology, error) {
	t := Technology(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Technologies() {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown filesystem technology '%s'", s)
}

// Mode is a bitmask over the filesystem lifecycle operations a probe can ask
// about. A multi-bit mask asks for the conjunction: all requested operations
// must be available.
type Mode uint8

const (
	Create Mode = 1 << iota
	Resize
	Repair
	Check
	SetLabel

	AllModes = Create | Resize | Repair | Check | SetLabel
)

var modeNames = []struct {
	mode Mode
	name string
}{
	{Create, "create"},
	{Resize, "resize"},
	{Repair, "repair"},
	{Check, "check"},
	{SetLabel, "set-label"},
}

func (m Mode) String() string {
	if m == 0 {
		return "none"
	}
	parts := make([]string, 0, len(modeNames))
	for _, n := range modeNames {
		if m&n.mode != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "+")
}

// Each calls fn once per set bit, in declaration order.
func (m Mode) Each(fn func(Mode)) {
	for _, n := range modeNames {
		if m&n.mode != 0 {
			fn(n.mode)
		}
	}
}

// DefaultModes returns the mode set a suite-start snapshot probes for the
// technology. Technologies whose tooling never grew an operation are probed
// without it so hosts that carry the rest of the toolchain still pass.
func DefaultModes(t Technology) Mode {
	switch t {
	case F2FS:
		// resize and check tooling is version-dependent, probed separately
		return Create
	case NILFS2:
		return Create | Resize | SetLabel
	case ExFAT:
		return Create | Repair | Check | SetLabel
	case UDF:
		return Create | SetLabel
	case VFAT:
		return Create | Repair | Check | SetLabel
	default:
		return AllModes
	}
}
