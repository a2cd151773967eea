package fstech

import "fmt"

// toolTable maps technology and operation to the external tool that performs
// it. An absent entry means the operation has no tool for that technology
// and is permanently unavailable on any host.
var toolTable = map[Technology]map[Mode]string{
	Ext4: {
		Create:   "mkfs.ext4",
		Resize:   "resize2fs",
		Repair:   "e2fsck",
		Check:    "e2fsck",
		SetLabel: "tune2fs",
	},
	XFS: {
		Create:   "mkfs.xfs",
		Resize:   "xfs_growfs",
		Repair:   "xfs_repair",
		Check:    "xfs_repair",
		SetLabel: "xfs_admin",
	},
	Btrfs: {
		Create:   "mkfs.btrfs",
		Resize:   "btrfs",
		Repair:   "btrfs",
		Check:    "btrfs",
		SetLabel: "btrfs",
	},
	NTFS: {
		Create:   "mkntfs",
		Resize:   "ntfsresize",
		Repair:   "ntfsfix",
		Check:    "ntfsfix",
		SetLabel: "ntfslabel",
	},
	F2FS: {
		Create: "mkfs.f2fs",
		Resize: "resize.f2fs",
		Repair: "fsck.f2fs",
		Check:  "fsck.f2fs",
	},
	ReiserFS: {
		Create:   "mkreiserfs",
		Resize:   "resize_reiserfs",
		Repair:   "reiserfsck",
		Check:    "reiserfsck",
		SetLabel: "reiserfstune",
	},
	NILFS2: {
		Create:   "mkfs.nilfs2",
		Resize:   "nilfs-resize",
		SetLabel: "nilfs-tune",
	},
	ExFAT: {
		Create:   "mkfs.exfat",
		Repair:   "fsck.exfat",
		Check:    "fsck.exfat",
		SetLabel: "tune.exfat",
	},
	UDF: {
		Create:   "mkudffs",
		SetLabel: "udflabel",
	},
	VFAT: {
		Create:   "mkfs.vfat",
		Repair:   "fsck.vfat",
		Check:    "fsck.vfat",
		SetLabel: "fatlabel",
	},
}

// ToolFor returns the external tool that implements a single operation for
// the technology.
func ToolFor(t Technology, m Mode) (string, error) {
	tools, ok := toolTable[t]
	if !ok {
		return "", fmt.Errorf("unknown filesystem technology '%s'", t)
	}
	tool, ok := tools[m]
	if !ok {
		return "", fmt.Errorf("%s has no tool for %s", t, m)
	}
	return tool, nil
}
