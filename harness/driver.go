package harness

import (
	"errors"
	"fmt"

	"github.com/fpgasim/flashsim/controller"
	"github.com/fpgasim/flashsim/sim"
)

// ErrBombed is wrapped by every error returned after a bus transaction
// exceeds its bounded wait. Once a driver bombs it stays bombed; later
// transactions fail immediately so a wedged bus cannot hang a scenario.
var ErrBombed = errors.New("bus transaction exceeded its bounded wait")

// DefaultBombCount is the number of idle ticks a transaction may wait before
// the driver declares the bus wedged.
const DefaultBombCount = 2048

// A BusRecorder observes every completed bus transaction.
type BusRecorder interface {
	RecordBus(kind string, addr, data uint32, words int)
}

// A Driver issues register-bus transactions against a Core and, on top of
// them, the command sequences a flash bring-up uses: identification, status
// polling, sector erase, and page programming.
type Driver struct {
	engine sim.Engine
	core   Core

	bombCount int
	bombed    bool
	recorder  BusRecorder
}

// NewDriver creates a driver with the default bounded wait.
func NewDriver(engine sim.Engine, core Core) *Driver {
	return &Driver{
		engine:    engine,
		core:      core,
		bombCount: DefaultBombCount,
	}
}

// WithBombCount overrides the bounded wait. Intended for tests.
func (d *Driver) WithBombCount(n int) *Driver {
	d.bombCount = n
	return d
}

// WithRecorder attaches a recorder that observes completed transactions.
func (d *Driver) WithRecorder(r BusRecorder) *Driver {
	d.recorder = r
	return d
}

func (d *Driver) record(kind string, addr, data uint32, words int) {
	if d.recorder == nil {
		return
	}
	d.recorder.RecordBus(kind, addr, data, words)
}

// Bombed reports whether any transaction has ever exceeded its bounded wait.
func (d *Driver) Bombed() bool {
	return d.bombed
}

func (d *Driver) bomb(format string, args ...interface{}) error {
	d.bombed = true
	return fmt.Errorf(format+": %w", append(args, ErrBombed)...)
}

func (d *Driver) checkBombed() error {
	if d.bombed {
		return fmt.Errorf("driver for %s is wedged: %w", d.core.Name(),
			ErrBombed)
	}
	return nil
}

// Read performs one memory-mapped read.
func (d *Driver) Read(addr uint32) (uint32, error) {
	buf := make([]uint32, 1)
	if err := d.readBurst(addr, buf, true, false); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadV performs a pipelined read of len(buf) consecutive words.
func (d *Driver) ReadV(addr uint32, buf []uint32) error {
	return d.readBurst(addr, buf, true, false)
}

// Write performs one memory-mapped write.
func (d *Driver) Write(addr uint32, v uint32) error {
	return d.writeBurst(addr, []uint32{v}, true, false)
}

// WriteV performs a pipelined write of len(buf) consecutive words.
func (d *Driver) WriteV(addr uint32, buf []uint32) error {
	return d.writeBurst(addr, buf, true, false)
}

// CtrlRead reads a control register.
func (d *Driver) CtrlRead(reg uint32) (uint32, error) {
	buf := make([]uint32, 1)
	if err := d.readBurst(reg, buf, false, true); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// CtrlWrite writes a control register.
func (d *Driver) CtrlWrite(reg uint32, v uint32) error {
	return d.writeBurst(reg, []uint32{v}, false, true)
}

// readBurst keeps the strobe asserted until every word has been accepted,
// advancing the address on every tick the controller does not stall, then
// waits for the outstanding acks.
func (d *Driver) readBurst(addr uint32, buf []uint32, inc, ctrl bool) error {
	if err := d.checkBombed(); err != nil {
		return err
	}

	bus := d.core.Bus()
	bus.Cyc = true
	bus.WE = false
	bus.Addr = addr
	if ctrl {
		bus.CtrlStb = true
	} else {
		bus.DataStb = true
	}

	accepted, got := 0, 0
	errcount := 0
	for got < len(buf) && errcount < d.bombCount {
		stalled := bus.Stall
		d.engine.Tick()

		if !stalled && accepted < len(buf) {
			accepted++
			if inc {
				bus.Addr += 4
			}
			if accepted == len(buf) {
				bus.DataStb = false
				bus.CtrlStb = false
			}
		}

		if bus.Ack {
			buf[got] = bus.RData
			got++
			errcount = 0
		} else {
			errcount++
		}
	}

	bus.Cyc = false
	bus.DataStb = false
	bus.CtrlStb = false
	d.engine.Tick()

	if got < len(buf) {
		return d.bomb("read of %d words at %#08x stuck after %d",
			len(buf), addr, got)
	}

	kind := "read"
	if ctrl {
		kind = "ctrl_read"
	}
	d.record(kind, addr, buf[0], len(buf))

	return nil
}

func (d *Driver) writeBurst(addr uint32, buf []uint32, inc, ctrl bool) error {
	if err := d.checkBombed(); err != nil {
		return err
	}

	bus := d.core.Bus()
	bus.Cyc = true
	bus.WE = true
	bus.Addr = addr
	bus.WData = buf[0]
	if ctrl {
		bus.CtrlStb = true
	} else {
		bus.DataStb = true
	}

	accepted, acks := 0, 0
	errcount := 0
	for acks < len(buf) && errcount < d.bombCount {
		stalled := bus.Stall
		d.engine.Tick()

		if !stalled && accepted < len(buf) {
			accepted++
			if inc {
				bus.Addr += 4
			}
			if accepted < len(buf) {
				bus.WData = buf[accepted]
			} else {
				bus.DataStb = false
				bus.CtrlStb = false
			}
		}

		if bus.Ack {
			acks++
			errcount = 0
		} else {
			errcount++
		}
	}

	bus.Cyc = false
	bus.DataStb = false
	bus.CtrlStb = false
	bus.WE = false
	d.engine.Tick()

	if acks < len(buf) {
		return d.bomb("write of %d words at %#08x stuck after %d",
			len(buf), addr, acks)
	}

	kind := "write"
	if ctrl {
		kind = "ctrl_write"
	}
	d.record(kind, addr, buf[0], len(buf))

	return nil
}

// TakeOffline detaches the memory mapping and enters user command mode with
// the device deselected.
func (d *Driver) TakeOffline() error {
	return d.CtrlWrite(controller.RegUser,
		controller.CfgUserMode|controller.CfgUserCSn)
}

// PlaceOnline leaves user command mode and re-enables memory-mapped access.
func (d *Driver) PlaceOnline() error {
	return d.CtrlWrite(controller.RegUser, 0)
}

// sendOctet shifts one octet out on a single lane in user mode.
func (d *Driver) sendOctet(b byte) error {
	return d.CtrlWrite(controller.RegUser,
		controller.CfgUserMode|controller.CfgDir|uint32(b))
}

// recvOctet clocks one octet in on a single lane in user mode.
func (d *Driver) recvOctet() (byte, error) {
	err := d.CtrlWrite(controller.RegUser, controller.CfgUserMode)
	if err != nil {
		return 0, err
	}
	v, err := d.CtrlRead(controller.RegUser)
	return byte(v), err
}

// ReadID shifts the identification command through user mode and returns the
// four identification bytes, highest first.
func (d *Driver) ReadID() (uint32, error) {
	if err := d.TakeOffline(); err != nil {
		return 0, err
	}
	if err := d.sendOctet(0x9F); err != nil {
		return 0, err
	}

	var id uint32
	for i := 0; i < 4; i++ {
		b, err := d.recvOctet()
		if err != nil {
			return 0, err
		}
		id = id<<8 | uint32(b)
	}

	return id, d.PlaceOnline()
}

// Status shifts a read-status command through user mode and returns the
// status octet.
func (d *Driver) Status() (byte, error) {
	if err := d.TakeOffline(); err != nil {
		return 0, err
	}
	if err := d.sendOctet(0x05); err != nil {
		return 0, err
	}
	sr, err := d.recvOctet()
	if err != nil {
		return 0, err
	}
	return sr, d.PlaceOnline()
}

// WaitIdle polls the control register until no program or erase is in flight.
func (d *Driver) WaitIdle() error {
	for i := 0; i < d.bombCount; i++ {
		v, err := d.CtrlRead(controller.RegControl)
		if err != nil {
			return err
		}
		if v&controller.EraseFlag == 0 {
			return nil
		}
	}
	return d.bomb("device stuck busy")
}

// EraseSector erases the sector containing the given byte address and waits
// for the erase to finish.
func (d *Driver) EraseSector(addr uint32) error {
	err := d.CtrlWrite(controller.RegControl, controller.DisableWP)
	if err != nil {
		return err
	}
	err = d.CtrlWrite(controller.RegControl,
		controller.EraseFlag|(addr>>2))
	if err != nil {
		return err
	}
	return d.WaitIdle()
}

// PageProgram writes one burst of words that must not cross a page boundary,
// then waits for the program to finish.
func (d *Driver) PageProgram(addr uint32, buf []uint32) error {
	err := d.CtrlWrite(controller.RegControl, controller.DisableWP)
	if err != nil {
		return err
	}
	if err := d.WriteV(addr, buf); err != nil {
		return err
	}
	return d.WaitIdle()
}

// Program writes an arbitrary span of words, splitting the burst at page
// boundaries the way flash programming requires.
func (d *Driver) Program(addr uint32, buf []uint32, pageSize uint32) error {
	for len(buf) > 0 {
		room := (pageSize - addr%pageSize) / 4
		n := uint32(len(buf))
		if n > room {
			n = room
		}

		if err := d.PageProgram(addr, buf[:n]); err != nil {
			return err
		}

		addr += n * 4
		buf = buf[n:]
	}
	return nil
}
