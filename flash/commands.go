package flash

import "github.com/fpgasim/flashsim/wire"

// The opcodes the device recognizes. Anything else parks the device in
// StateIgnore until the next deselect.
const (
	OpPageProgram  byte = 0x02
	OpRead         byte = 0x03
	OpWriteDisable byte = 0x04
	OpReadStatus   byte = 0x05
	OpWriteEnable  byte = 0x06
	OpFastRead     byte = 0x0B
	OpReadID       byte = 0x9F
	OpDualIORead   byte = 0xBB
	OpSectorErase  byte = 0xD8
	OpQuadIORead   byte = 0xEB
)

type dataDir int

const (
	dirNone dataDir = iota
	dirOut
	dirIn
)

// A command describes how the device reacts to one opcode: the framing of
// the transfer (address, mode byte, dummy cycles, lane count) plus the byte
// source or commit action. The table makes the opcode set data-driven so
// each behavior is testable on its own.
type command struct {
	op        byte
	name      string
	hasAddr   bool
	hasMode   bool
	dummy     int
	wideLanes wire.IOMode
	dir       dataDir
	needsWEL  bool
	allowBusy bool

	// next produces the n-th output byte for dirOut commands.
	next func(c *Comp) byte

	// commit runs when the deselect ends the command.
	commit func(c *Comp)
}

func (c *Comp) commands() map[byte]*command {
	return c.cmdTable
}

// buildCommandTable assembles the opcode table for one device instance.
// ioDummy is the dummy-cycle count of the wide I/O read commands, which
// varies across part numbers.
func buildCommandTable(ioDummy int) map[byte]*command {
	cmds := []*command{
		{
			op:        OpRead,
			name:      "READ",
			hasAddr:   true,
			wideLanes: wire.Single,
			dir:       dirOut,
			next:      (*Comp).readByte,
		},
		{
			op:        OpFastRead,
			name:      "FAST_READ",
			hasAddr:   true,
			dummy:     8,
			wideLanes: wire.Single,
			dir:       dirOut,
			next:      (*Comp).readByte,
		},
		{
			op:        OpDualIORead,
			name:      "DUAL_IO_READ",
			hasAddr:   true,
			hasMode:   true,
			dummy:     ioDummy,
			wideLanes: wire.Dual,
			dir:       dirOut,
			next:      (*Comp).readByte,
		},
		{
			op:        OpQuadIORead,
			name:      "QUAD_IO_READ",
			hasAddr:   true,
			hasMode:   true,
			dummy:     ioDummy,
			wideLanes: wire.Quad,
			dir:       dirOut,
			next:      (*Comp).readByte,
		},
		{
			op:        OpPageProgram,
			name:      "PAGE_PROGRAM",
			hasAddr:   true,
			wideLanes: wire.Single,
			dir:       dirIn,
			needsWEL:  true,
			commit:    (*Comp).commitProgram,
		},
		{
			op:        OpSectorErase,
			name:      "SECTOR_ERASE",
			hasAddr:   true,
			wideLanes: wire.Single,
			needsWEL:  true,
			commit:    (*Comp).commitErase,
		},
		{
			op:        OpReadID,
			name:      "READ_ID",
			wideLanes: wire.Single,
			dir:       dirOut,
			allowBusy: true,
			next: func(c *Comp) byte {
				return c.id[c.byteIdx%len(c.id)]
			},
		},
		{
			op:        OpReadStatus,
			name:      "READ_STATUS",
			wideLanes: wire.Single,
			dir:       dirOut,
			allowBusy: true,
			next: func(c *Comp) byte {
				return c.Status()
			},
		},
		{
			op:   OpWriteEnable,
			name: "WRITE_ENABLE",
			commit: func(c *Comp) {
				c.writeEnabled = true
			},
		},
		{
			op:   OpWriteDisable,
			name: "WRITE_DISABLE",
			commit: func(c *Comp) {
				c.writeEnabled = false
			},
		},
	}

	table := make(map[byte]*command, len(cmds))
	for _, cmd := range cmds {
		table[cmd.op] = cmd
	}

	return table
}
