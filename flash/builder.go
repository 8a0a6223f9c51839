package flash

import (
	"log"

	"github.com/fpgasim/flashsim/memory"
)

// Builder configures and creates flash device models.
type Builder struct {
	capacity     uint64
	pageSize     uint32
	sectorSize   uint32
	dummyCycles  int
	readDelay    int
	programDelay int
	eraseDelay   int
	id           []byte
	storage      *memory.Storage
}

// MakeBuilder returns a builder with the geometry and timing of a 16 MiB
// part: 256-byte pages, 64 KiB sectors, 8 dummy cycles on wide I/O reads.
func MakeBuilder() Builder {
	return Builder{
		capacity:     1 << 24,
		pageSize:     256,
		sectorSize:   1 << 16,
		dummyCycles:  8,
		programDelay: 128,
		eraseDelay:   1024,
		id:           []byte{0x20, 0xBA, 0x18, 0x10},
	}
}

// WithCapacity sets the array size in bytes. Must be a power of two.
func (b Builder) WithCapacity(capacity uint64) Builder {
	b.capacity = capacity
	return b
}

// WithPageSize sets the program granularity in bytes.
func (b Builder) WithPageSize(pageSize uint32) Builder {
	b.pageSize = pageSize
	return b
}

// WithSectorSize sets the erase granularity in bytes.
func (b Builder) WithSectorSize(sectorSize uint32) Builder {
	b.sectorSize = sectorSize
	return b
}

// WithDummyCycles sets the dummy-cycle count of the wide I/O read commands.
func (b Builder) WithDummyCycles(n int) Builder {
	b.dummyCycles = n
	return b
}

// WithReadDelay adds extra pipeline cycles before read data appears,
// mirroring the input-register depth of different boards.
func (b Builder) WithReadDelay(n int) Builder {
	b.readDelay = n
	return b
}

// WithProgramDelay sets how many evaluation steps a page program stays busy.
func (b Builder) WithProgramDelay(n int) Builder {
	b.programDelay = n
	return b
}

// WithEraseDelay sets how many evaluation steps a sector erase stays busy.
func (b Builder) WithEraseDelay(n int) Builder {
	b.eraseDelay = n
	return b
}

// WithID sets the bytes answered to the read-ID command.
func (b Builder) WithID(id []byte) Builder {
	b.id = id
	return b
}

// WithStorage supplies a pre-populated backing array.
func (b Builder) WithStorage(storage *memory.Storage) Builder {
	b.storage = storage
	return b
}

// Build creates a flash device model.
func (b Builder) Build(name string) *Comp {
	if b.capacity&(b.capacity-1) != 0 {
		log.Panicf("flash capacity %d is not a power of two", b.capacity)
	}

	c := &Comp{
		name:         name,
		capacity:     b.capacity,
		pageSize:     b.pageSize,
		sectorSize:   b.sectorSize,
		dummyCycles:  b.dummyCycles,
		readDelay:    b.readDelay,
		programDelay: b.programDelay,
		eraseDelay:   b.eraseDelay,
		id:           b.id,
		state:        StateIdle,
	}

	if b.storage == nil {
		// Unwritten NOR flash reads erased.
		c.storage = memory.NewFilledStorage(b.capacity, 0xFF)
	} else {
		c.storage = b.storage
	}

	c.progData = make([]byte, b.pageSize)
	c.progTouched = make([]bool, b.pageSize)
	c.cmdTable = buildCommandTable(b.dummyCycles)

	return c
}
