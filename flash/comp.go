// Package flash models a serial NOR flash chip at the pin level. The model
// observes chip select, the serial clock, and one, two, or four data lanes,
// and replies bit for bit the way a real part would: commands shift in MSB
// first, reads stream out after the configured dummy cycles, and program
// operations can only ever clear bits until the containing sector is erased.
package flash

import (
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"os"

	"github.com/fpgasim/flashsim/memory"
	"github.com/fpgasim/flashsim/sim"
	"github.com/fpgasim/flashsim/wire"
)

// HookPosCommandEnd is invoked on every deselect that ends a recognized
// command. The hook item is a CommandInfo.
var HookPosCommandEnd = &sim.HookPos{Name: "CommandEnd"}

// CommandInfo describes one completed command for hooks.
type CommandInfo struct {
	Opcode byte
	Name   string
	Addr   uint32
}

// State identifies the protocol state of the device.
type State int

// The protocol states. Programming and Erasing are entered when a deselect
// commits the corresponding command and last until the busy countdown runs
// out.
const (
	StateIdle State = iota
	StateCommand
	StateAddress
	StateMode
	StateDummy
	StateDataOut
	StateDataIn
	StateProgramming
	StateErasing
	StateIgnore
)

const addrBytes = 3

// Status register bits.
const (
	srWIP uint8 = 1 << 0
	srWEL uint8 = 1 << 1

	// Block-protect background bits. A freshly idle device reads 0x1c.
	srFixed uint8 = 0x1c
)

// A Comp is one simulated flash chip instance.
type Comp struct {
	sim.HookableBase

	name    string
	storage *memory.Storage

	capacity     uint64
	pageSize     uint32
	sectorSize   uint32
	dummyCycles  int
	readDelay    int
	programDelay int
	eraseDelay   int
	id           []byte

	state State
	cmd   *command

	lastSCK bool

	// Input shifting.
	shiftReg uint32
	bitsGot  int

	addr     uint32
	addrGot  int
	byteIdx  int

	// Output shifting.
	outByte     uint8
	outBitsLeft int
	out         uint8
	outEn       uint8

	dummyLeft int

	// Page program staging. Bytes AND into the staging buffer so that a
	// page-wrapping burst behaves like the real part.
	progBase    uint32
	progOff     uint32
	progData    []byte
	progTouched []bool

	writeEnabled bool
	busyCycles   int
	busyState    State

	cmdTable map[byte]*command
}

// Name returns the name of the device instance.
func (c *Comp) Name() string {
	return c.name
}

// State returns the current protocol state. Used by oracles and the monitor.
func (c *Comp) State() State {
	return c.state
}

// Status returns the value the device would answer to a read-status command.
func (c *Comp) Status() uint8 {
	sr := srFixed
	if c.busyCycles > 0 {
		sr |= srWIP
	}
	if c.writeEnabled {
		sr |= srWEL
	}
	return sr
}

// Capacity returns the device capacity in bytes.
func (c *Comp) Capacity() uint64 {
	return c.capacity
}

// SectorSize returns the erase granularity in bytes.
func (c *Comp) SectorSize() uint32 {
	return c.sectorSize
}

// PageSize returns the program granularity in bytes.
func (c *Comp) PageSize() uint32 {
	return c.pageSize
}

// DummyCycles returns the dummy-cycle count of the wide I/O read commands,
// so the controller model can be configured to match.
func (c *Comp) DummyCycles() int {
	return c.dummyCycles
}

// ReadDelay returns the extra read pipeline depth.
func (c *Comp) ReadDelay() int {
	return c.readDelay
}

// Eval advances the device by one evaluation step. The caller presents the
// chip select, the serial clock, and the lanes it drives; the device returns
// the lanes it drives together with its own output-enable mask. The
// testbench calls Eval on both clock levels of every system tick so that
// output transitions on falling edges are observed.
func (c *Comp) Eval(csn, sck bool, in uint8) (out, outEn uint8) {
	c.tickBusy()

	if csn {
		c.deselect()
		c.lastSCK = sck
		return 0, 0
	}

	if c.state == StateIdle || c.state == StateProgramming ||
		c.state == StateErasing {
		c.enterCommand()
	}

	rising := sck && !c.lastSCK
	falling := !sck && c.lastSCK
	c.lastSCK = sck

	if rising {
		c.onRisingEdge(in)
	}
	if falling {
		c.onFallingEdge()
	}

	return c.out, c.outEn
}

func (c *Comp) tickBusy() {
	if c.busyCycles == 0 {
		return
	}

	c.busyCycles--
	if c.busyCycles == 0 {
		if c.state == c.busyState {
			c.state = StateIdle
		}
		c.busyState = StateIdle
	}
}

func (c *Comp) enterCommand() {
	c.state = StateCommand
	c.cmd = nil
	c.shiftReg = 0
	c.bitsGot = 0
	c.addr = 0
	c.addrGot = 0
	c.byteIdx = 0
	c.outBitsLeft = 0
	c.out = 0
	c.outEn = 0
}

func (c *Comp) deselect() {
	if c.cmd != nil {
		c.InvokeHook(sim.HookCtx{
			Domain: c,
			Pos:    HookPosCommandEnd,
			Item: CommandInfo{
				Opcode: c.cmd.op,
				Name:   c.cmd.name,
				Addr:   c.addr,
			},
		})

		if c.cmd.commit != nil {
			c.cmd.commit(c)
		}
	}

	c.cmd = nil
	c.outEn = 0
	c.out = 0
	c.bitsGot = 0
	c.shiftReg = 0
	c.outBitsLeft = 0

	if c.busyCycles > 0 {
		c.state = c.busyState
		return
	}
	c.state = StateIdle
}

// phaseLanes returns the sampling width of the current input phase.
func (c *Comp) phaseLanes() wire.IOMode {
	switch c.state {
	case StateCommand:
		return wire.Single
	case StateAddress, StateMode, StateDataIn:
		if c.cmd != nil {
			return c.cmd.wideLanes
		}
		return wire.Single
	}
	return wire.Single
}

func (c *Comp) onRisingEdge(in uint8) {
	switch c.state {
	case StateCommand, StateAddress, StateMode, StateDataIn:
		lanes := c.phaseLanes()
		n := lanes.Lanes()
		c.shiftReg = c.shiftReg<<n | uint32(in&lanes.LaneMask())
		c.bitsGot += n
		if c.bitsGot >= 8 {
			b := byte(c.shiftReg)
			c.shiftReg = 0
			c.bitsGot = 0
			c.onByte(b)
		}
	case StateDummy:
		c.dummyLeft--
		if c.dummyLeft <= 0 {
			c.state = StateDataOut
		}
	case StateDataOut, StateIgnore:
		// Nothing to sample.
	}
}

func (c *Comp) onFallingEdge() {
	if c.state != StateDataOut {
		return
	}

	if c.outBitsLeft == 0 {
		c.outByte = c.cmd.next(c)
		c.byteIdx++
		c.outBitsLeft = 8
	}

	lanes := c.cmd.wideLanes
	if c.cmd.dir != dirOut {
		log.Panicf("flash %s: driving data without an output command", c.name)
	}

	n := lanes.Lanes()
	c.outBitsLeft -= n
	slice := (c.outByte >> c.outBitsLeft) & lanes.LaneMask()

	if lanes == wire.Single {
		// One-lane reads answer on the second lane (MISO).
		c.out = slice << 1
		c.outEn = 0x02
		return
	}

	c.out = slice
	c.outEn = lanes.LaneMask()
}

func (c *Comp) onByte(b byte) {
	switch c.state {
	case StateCommand:
		c.onOpcode(b)
	case StateAddress:
		c.addr = c.addr<<8 | uint32(b)
		c.addrGot++
		if c.addrGot == addrBytes {
			c.addr &= uint32(c.capacity - 1)
			c.afterAddress()
		}
	case StateMode:
		// The mode byte only matters for continuous-read parts; accept
		// and discard it.
		c.enterDummy()
	case StateDataIn:
		idx := (c.progOff + uint32(c.byteIdx)) % c.pageSize
		c.progData[idx] &= b
		c.progTouched[idx] = true
		c.byteIdx++
	}
}

func (c *Comp) onOpcode(b byte) {
	cmd, ok := c.commands()[b]
	if !ok {
		c.state = StateIgnore
		return
	}

	if c.busyCycles > 0 && !cmd.allowBusy {
		c.state = StateIgnore
		return
	}
	if cmd.needsWEL && !c.writeEnabled {
		c.state = StateIgnore
		return
	}

	c.cmd = cmd
	c.byteIdx = 0

	if cmd.hasAddr {
		c.state = StateAddress
		return
	}

	switch cmd.dir {
	case dirOut:
		c.state = StateDataOut
	case dirIn:
		c.beginProgram()
	default:
		c.state = StateIgnore
	}
}

func (c *Comp) afterAddress() {
	switch c.cmd.dir {
	case dirOut:
		if c.cmd.hasMode {
			c.state = StateMode
			return
		}
		c.enterDummy()
	case dirIn:
		c.beginProgram()
	default:
		// Address-only commands (erase) just wait for the deselect.
		c.state = StateIgnore
	}
}

func (c *Comp) enterDummy() {
	c.dummyLeft = c.cmd.dummy + c.readDelay
	if c.dummyLeft > 0 {
		c.state = StateDummy
		return
	}
	c.state = StateDataOut
}

func (c *Comp) beginProgram() {
	c.progBase = c.addr &^ (c.pageSize - 1)
	c.progOff = c.addr & (c.pageSize - 1)
	for i := range c.progData {
		c.progData[i] = 0xFF
		c.progTouched[i] = false
	}
	c.state = StateDataIn
}

// readByte is the output source of the array-read commands. The address
// counter wraps at the end of the array.
func (c *Comp) readByte() byte {
	b, err := c.storage.ReadByte(uint64(c.addr))
	if err != nil {
		log.Panic(err)
	}
	c.addr = uint32((uint64(c.addr) + 1) % c.capacity)
	return b
}

func (c *Comp) commitProgram() {
	wrote := false
	for i, touched := range c.progTouched {
		if !touched {
			continue
		}

		addr := uint64(c.progBase + uint32(i))
		old, err := c.storage.ReadByte(addr)
		if err != nil {
			log.Panic(err)
		}
		// Programming can only clear bits.
		if err := c.storage.WriteByte(addr, old&c.progData[i]); err != nil {
			log.Panic(err)
		}
		wrote = true
	}

	if !wrote {
		return
	}

	c.writeEnabled = false
	c.busyCycles = c.programDelay
	c.busyState = StateProgramming
	c.state = StateProgramming
}

func (c *Comp) commitErase() {
	if c.addrGot < addrBytes {
		return
	}

	base := uint64(c.addr &^ (c.sectorSize - 1))
	blank := make([]byte, c.sectorSize)
	for i := range blank {
		blank[i] = 0xFF
	}
	if err := c.storage.Write(base, blank); err != nil {
		log.Panic(err)
	}

	c.writeEnabled = false
	c.busyCycles = c.eraseDelay
	c.busyState = StateErasing
	c.state = StateErasing
}

// LoadBytes bulk-fills the array starting at offset, bypassing the protocol.
func (c *Comp) LoadBytes(offset uint64, src []byte) error {
	if offset+uint64(len(src)) > c.capacity {
		return fmt.Errorf(
			"load of %d bytes at offset %d exceeds capacity %d",
			len(src), offset, c.capacity)
	}
	return c.storage.Write(offset, src)
}

// LoadImage fills the array from a flat binary file. Images shorter than the
// remaining capacity leave the tail erased; longer images are an error.
func (c *Comp) LoadImage(offset uint64, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return errors.New("image file is empty")
	}
	return c.LoadBytes(offset, data)
}

// LoadRand fills n bytes starting at offset from the given random source.
func (c *Comp) LoadRand(rng *rand.Rand, offset, n uint64) error {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(rng.Uint32())
	}
	return c.LoadBytes(offset, data)
}

// Word inspects the array directly, for golden-value comparison only.
func (c *Comp) Word(addr uint32) uint32 {
	v, err := c.storage.ReadWord(uint64(addr))
	if err != nil {
		log.Panic(err)
	}
	return v
}

// SetWord mutates the array directly, for pre-test seeding only.
func (c *Comp) SetWord(addr uint32, v uint32) {
	if err := c.storage.WriteWord(uint64(addr), v); err != nil {
		log.Panic(err)
	}
}

// Byte inspects a single byte of the array directly.
func (c *Comp) Byte(addr uint32) byte {
	b, err := c.storage.ReadByte(uint64(addr))
	if err != nil {
		log.Panic(err)
	}
	return b
}
