// Package archops is the single-init function-table handoff point between
// architecture/OS-specific code and the generic kernel cores (MM, sync,
// VFS, FS, Net, Log, Device). Generic crates never import an arch package
// directly; they call <Thing>() to fetch whatever was registered at boot.
//
// Registration stores the implementation behind an atomic.Pointer so the
// hot-path lookup is a single acquire load, with no lock: a
// OnceCell-style primitive with acquire/release ordering instead of an
// unsafe transmute.
package archops

import (
	"fmt"
	"sync/atomic"
)

// cell is a write-once, read-many holder for a single interface value.
// atomic.Pointer already carries the full interface value (type + data)
// in one atomic slot, so there is no fat pointer to split.
type cell[T any] struct {
	p atomic.Pointer[T]
}

func (c *cell[T]) register(v T) {
	if c.p.Load() != nil {
		panic("archops: provider already registered")
	}
	c.p.Store(&v)
}

func (c *cell[T]) get() T {
	p := c.p.Load()
	if p == nil {
		panic("archops: provider not registered")
	}
	return *p
}

func (c *cell[T]) registered() bool {
	return c.p.Load() != nil
}

var (
	mmCell     cell[MM]
	mmCfgCell  cell[MMConfig]
	syncCell   cell[Sync]
	deviceCell cell[Device]
	vfsCell    cell[VFSHost]
	fsCell     cell[FSHost]
	netCell    cell[Net]
	logCell    cell[Log]
)

// RegisterMM installs the MM arch-ops provider. Must be called exactly
// once, in single-threaded boot context.
func RegisterMM(v MM) { mmCell.register(v) }

// MMOps returns the registered MM provider, panicking if none was
// registered yet.
func MMOps() MM { return mmCell.get() }

// RegisterMMConfig installs the MM configuration provider.
func RegisterMMConfig(v MMConfig) { mmCfgCell.register(v) }

// MMConfigOps returns the registered MM configuration provider.
func MMConfigOps() MMConfig { return mmCfgCell.get() }

// MMConfigRegistered reports whether an MM configuration provider has
// been registered yet, for callers that need to degrade gracefully
// (rather than panic) before arch-specific bring-up has run.
func MMConfigRegistered() bool { return mmCfgCell.registered() }

// RegisterSync installs the Sync arch-ops provider.
func RegisterSync(v Sync) { syncCell.register(v) }

// SyncOps returns the registered Sync provider.
func SyncOps() Sync { return syncCell.get() }

// RegisterDevice installs the Device arch-ops provider.
func RegisterDevice(v Device) { deviceCell.register(v) }

// DeviceOps returns the registered Device provider.
func DeviceOps() Device { return deviceCell.get() }

// RegisterVFSHost installs the VFS host-services provider.
func RegisterVFSHost(v VFSHost) { vfsCell.register(v) }

// VFSHostOps returns the registered VFS host-services provider.
func VFSHostOps() VFSHost { return vfsCell.get() }

// RegisterFSHost installs the FS host-services provider.
func RegisterFSHost(v FSHost) { fsCell.register(v) }

// FSHostOps returns the registered FS host-services provider.
func FSHostOps() FSHost { return fsCell.get() }

// RegisterNet installs the Net arch-ops provider.
func RegisterNet(v Net) { netCell.register(v) }

// NetOps returns the registered Net provider.
func NetOps() Net { return netCell.get() }

// RegisterLog installs the Log arch-ops provider.
func RegisterLog(v Log) { logCell.register(v) }

// LogOps returns the registered Log provider, or a no-op provider if
// nothing has registered yet (logging must work before boot finishes
// parsing the device tree).
func LogOps() Log {
	if !logCell.registered() {
		return noopLog{}
	}
	return logCell.get()
}

type noopLog struct{}

func (noopLog) CPUID() int                          { return 0 }
func (noopLog) TaskID() int                          { return 0 }
func (noopLog) TimestampNanos() int64                { return 0 }
func (noopLog) WriteString(string)                   {}
func (noopLog) String() string                       { return "noopLog" }
var _ fmt.Stringer = noopLog{}
