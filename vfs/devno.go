package vfs

// Device numbers pack a 12-bit major and 20-bit minor into a uint64, the
// scheme grounded on original_source/crates/vfs/src/devno.rs's
// major()/minor() helpers (itself Linux's huge_encode_dev layout
// truncated to what nyx needs).
const (
	devMajorBits = 12
	devMinorBits = 20
	devMinorMask = 1<<devMinorBits - 1
)

// MakeDev packs (major, minor) into a single device number.
func MakeDev(major, minor uint32) uint64 {
	return uint64(major)<<devMinorBits | uint64(minor&devMinorMask)
}

// Major extracts the major number from a device number.
func Major(dev uint64) uint32 { return uint32(dev >> devMinorBits) }

// Minor extracts the minor number from a device number.
func Minor(dev uint64) uint32 { return uint32(dev & devMinorMask) }

// Standard character device major numbers, matching Linux's
// well-known assignments that original_source hard-codes.
const (
	CharMajorMem     = 1 // /dev/null, /dev/zero, ...
	CharMajorTTY     = 4 // /dev/tty*, /dev/ttyS*
	CharMajorConsole = 5 // /dev/console
	CharMajorMisc    = 10
	CharMajorInput   = 13
)

// MiscMinorRTC is /dev/misc's RTC minor number.
const MiscMinorRTC = 135

// Standard block device major numbers.
const (
	BlockMajorLoop      = 7
	BlockMajorSCSIDisk  = 8
	BlockMajorVirtioBlk = 254
)
