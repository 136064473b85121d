// Package kdebug renders raw kernel sample data — frame-allocator
// stats, per-task memory footprints — as standard pprof profiles, so
// the same numbers procfs's meminfo/stat generators print as text are
// also available in a format `go tool pprof` (or any other pprof
// consumer) can open directly.
package kdebug

import (
	"bytes"

	"github.com/google/pprof/profile"
	"github.com/ianlancetaylor/demangle"
)

// Sample is one named quantity to render into a profile: a task's RSS,
// a frame-allocator region, or any other single (name, value) pair the
// caller wants pprof-visible.
type Sample struct {
	Name      string
	ValueKB   int64
}

// BuildHeapProfile renders samples as a pprof Profile with a single
// "inuse_space" sample type, one Location/Function per distinct
// (demangled) name.
func BuildHeapProfile(samples []Sample) *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "inuse_space", Unit: "kilobytes"}},
		PeriodType: &profile.ValueType{Type: "space", Unit: "kilobytes"},
		Period:     1,
	}

	funcByName := make(map[string]*profile.Function)
	locByName := make(map[string]*profile.Location)
	var nextID uint64 = 1

	for _, s := range samples {
		name := Demangle(s.Name)

		fn, ok := funcByName[name]
		if !ok {
			fn = &profile.Function{ID: nextID, Name: name}
			nextID++
			funcByName[name] = fn
			p.Function = append(p.Function, fn)
		}
		loc, ok := locByName[name]
		if !ok {
			loc = &profile.Location{ID: nextID, Line: []profile.Line{{Function: fn}}}
			nextID++
			locByName[name] = loc
			p.Location = append(p.Location, loc)
		}
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{s.ValueKB},
		})
	}
	return p
}

// Demangle best-effort demangles name via the Itanium C++ ABI scheme,
// for symbol names that cross an arch-specific assembly stub's symbol
// table into kernel-side sample data. Names it does not recognize as
// mangled pass through unchanged.
func Demangle(name string) string {
	return demangle.Filter(name)
}

// Render serializes p in pprof's standard gzip'd protobuf wire format —
// the same bytes a `/debug/pprof/heap` endpoint or `go tool pprof`
// expects to read.
func Render(p *profile.Profile) ([]byte, error) {
	var buf bytes.Buffer
	if err := p.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
