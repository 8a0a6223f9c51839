package controller

import (
	"log"

	"github.com/fpgasim/flashsim/wire"
)

// Builder configures and creates controller models.
type Builder struct {
	mode        wire.IOMode
	dummyCycles int
	readDelay   int
	pageSize    uint32
}

// MakeBuilder returns a builder with a one-lane bus and the timing of the
// default device geometry.
func MakeBuilder() Builder {
	return Builder{
		mode:        wire.Single,
		dummyCycles: 8,
		pageSize:    256,
	}
}

// WithIOMode sets how many lanes memory-mapped reads use.
func (b Builder) WithIOMode(mode wire.IOMode) Builder {
	b.mode = mode
	return b
}

// WithDummyCycles sets the dummy-cycle count of wide I/O reads. It must match
// the attached device.
func (b Builder) WithDummyCycles(n int) Builder {
	b.dummyCycles = n
	return b
}

// WithReadDelay adds extra dummy clocks to every read, matching the input
// pipeline depth of the attached device.
func (b Builder) WithReadDelay(n int) Builder {
	b.readDelay = n
	return b
}

// WithPageSize sets the program granularity at which write bursts are split.
func (b Builder) WithPageSize(pageSize uint32) Builder {
	b.pageSize = pageSize
	return b
}

// Build creates a controller model.
func (b Builder) Build(name string) *Comp {
	if b.pageSize == 0 || b.pageSize&(b.pageSize-1) != 0 {
		log.Panicf("controller page size %d is not a power of two",
			b.pageSize)
	}

	c := &Comp{
		name:        name,
		mode:        b.mode,
		dummyCycles: b.dummyCycles,
		readDelay:   b.readDelay,
		pageSize:    b.pageSize,
	}
	c.pads.CSn = true

	return c
}
