// Package controller provides a behavioral model of a Wishbone-to-QSPI flash
// controller. It stands in for the synthesizable design the harness was
// built to drive: memory-mapped reads become full serial read sequences on
// the pad group, a control register triggers write-enable and sector-erase
// command sequences, and a user register shifts raw octets for arbitrary
// flash commands.
package controller

import (
	"encoding/binary"
	"log"

	"github.com/fpgasim/flashsim/flash"
	"github.com/fpgasim/flashsim/wire"
)

// Control address space layout (byte addresses on CtrlStb transactions).
const (
	RegControl uint32 = 0x0
	RegUser    uint32 = 0x4
)

// RegControl bits.
const (
	EraseFlag uint32 = 0x80000000
	DisableWP uint32 = 0x10000000
	EnableWP  uint32 = 0x00000000
)

// RegUser bits, following the user-mode layout of the control port: the low
// byte is the octet to shift, the upper bits steer the transfer.
const (
	CfgUserMode uint32 = 0x1000
	CfgSpeed    uint32 = 0x0400
	CfgDir      uint32 = 0x0200
	CfgUserCSn  uint32 = 0x0100
)

// The mode byte sent after the address of a wide I/O read.
const modeByte = 0xA0

type opKind int

const (
	opDrive opKind = iota
	opSample
	opDummy
	opCSHigh
)

type opTag int

const (
	tagNone opTag = iota
	tagData
	tagStatus
	tagUser
	tagWordDone
	tagCtrlDone
)

// A serialOp is one step of pad activity: shift an octet out, clock an octet
// in, run dummy clocks, or raise chip select for a tick.
type serialOp struct {
	kind   opKind
	data   byte
	lanes  wire.IOMode
	clocks int
	tag    opTag
}

// A Comp is one controller instance. It advances one system clock per Tick;
// one system clock carries one full serial clock.
type Comp struct {
	name string

	bus  wire.WishboneBus
	pads wire.QSPIPads

	mode        wire.IOMode
	dummyCycles int
	readDelay   int
	pageSize    uint32

	queue     []serialOp
	cur       serialOp
	curActive bool
	curBits   int

	// One sample slot is clocked per tick; the device's answer is visible
	// on the pads at the start of the following tick.
	slotPending bool
	slotLanes   wire.IOMode
	sampShift   uint8
	sampGot     int
	sampTag     opTag

	collect []byte

	burstOpen bool
	burstNext uint32

	writeStreamOpen bool
	writeNext       uint32

	reqPending bool
	reqStarted bool
	reqCtrl    bool
	reqWE      bool
	reqAddr    uint32
	reqData    uint32

	wip        bool
	wpDisabled bool
	pollWait   int

	userActive bool
	lastUser   uint8
}

// Name returns the name of the controller instance.
func (c *Comp) Name() string {
	return c.name
}

// Bus exposes the register bus surface for the bus master.
func (c *Comp) Bus() *wire.WishboneBus {
	return &c.bus
}

// Pads exposes the serial pad group for the testbench.
func (c *Comp) Pads() *wire.QSPIPads {
	return &c.pads
}

// Tick advances the controller one system clock.
func (c *Comp) Tick() {
	stallWasLow := !c.bus.Stall
	c.bus.Ack = false

	c.completeSample()
	c.closeIdleWriteStream()
	c.acceptRequest(stallWasLow)
	c.startPendingRequest()
	c.maybePollStatus()
	c.advanceSerial()

	c.bus.Stall = c.curActive || len(c.queue) > 0 || c.reqPending
}

// completeSample folds the lanes the device drove during the previous tick
// into the input shift register.
func (c *Comp) completeSample() {
	if !c.slotPending {
		return
	}
	c.slotPending = false

	var bits uint8
	n := c.slotLanes.Lanes()
	if c.slotLanes == wire.Single {
		// One-lane replies arrive on the second lane.
		bits = (c.pads.In >> 1) & 1
	} else {
		bits = c.pads.In & c.slotLanes.LaneMask()
	}

	c.sampShift = c.sampShift<<n | bits
	c.sampGot += n

	if c.sampGot < 8 {
		return
	}

	b := c.sampShift
	c.sampShift = 0
	c.sampGot = 0
	c.dispatchByte(b)
}

func (c *Comp) dispatchByte(b byte) {
	switch c.sampTag {
	case tagData:
		c.collect = append(c.collect, b)
		if len(c.collect) == 4 {
			c.bus.RData = binary.BigEndian.Uint32(c.collect)
			c.collect = c.collect[:0]
			c.burstOpen = true
			c.ackRequest()
		}
	case tagStatus:
		if b&0x01 == 0 {
			c.wip = false
			c.wpDisabled = false
		} else {
			c.pollWait = 16
		}
	case tagUser:
		c.lastUser = b
		c.ackRequest()
	}
}

func (c *Comp) ackRequest() {
	if !c.reqPending {
		return
	}
	c.reqPending = false
	c.reqStarted = false
	if c.bus.Cyc {
		c.bus.Ack = true
	}
}

// closeIdleWriteStream raises chip select once the master stops streaming
// write data, which is what commits the page program in the device.
func (c *Comp) closeIdleWriteStream() {
	if !c.writeStreamOpen || c.curActive || len(c.queue) > 0 ||
		c.reqPending {
		return
	}
	if c.bus.Cyc && c.bus.DataStb && c.bus.WE {
		return
	}
	c.endWriteStream()
}

func (c *Comp) endWriteStream() {
	c.queue = append(c.queue, serialOp{kind: opCSHigh})
	c.writeStreamOpen = false
	c.wip = true
	c.pollWait = 4
}

// acceptRequest latches a bus request. The request is only latched on ticks
// where the master observed a low stall line, so acceptance counting on both
// sides agrees.
func (c *Comp) acceptRequest(stallWasLow bool) {
	if c.reqPending || !stallWasLow || !c.bus.Cyc {
		return
	}
	if !c.bus.DataStb && !c.bus.CtrlStb {
		return
	}

	c.reqPending = true
	c.reqStarted = false
	c.reqCtrl = c.bus.CtrlStb
	c.reqWE = c.bus.WE
	c.reqAddr = c.bus.Addr
	c.reqData = c.bus.WData

	if c.reqCtrl {
		c.handleCtrl()
	}
}

func (c *Comp) handleCtrl() {
	if !c.reqWE {
		switch c.reqAddr {
		case RegControl:
			v := uint32(0)
			if c.wip || c.writeStreamOpen {
				v |= EraseFlag
			}
			if c.wpDisabled {
				v |= DisableWP
			}
			c.bus.RData = v
		case RegUser:
			c.bus.RData = uint32(c.lastUser)
		default:
			c.bus.RData = 0
		}
		c.ackRequest()
		return
	}

	switch c.reqAddr {
	case RegControl:
		c.handleCtrlWrite(c.reqData)
	case RegUser:
		c.handleUserWrite(c.reqData)
	default:
		c.ackRequest()
	}
}

func (c *Comp) handleCtrlWrite(v uint32) {
	switch {
	case v&EraseFlag != 0:
		// The erase target arrives as a word address.
		addr := (v &^ EraseFlag) << 2
		c.closeBurst()
		c.pushWriteEnable()
		c.pushCommandAddr(flash.OpSectorErase, addr)
		c.queue = append(c.queue, serialOp{kind: opCSHigh, tag: tagCtrlDone})
		c.wip = true
		c.pollWait = 8
	case v&DisableWP != 0:
		c.wpDisabled = true
		c.closeBurst()
		c.pushWriteEnable()
		c.queue = append(c.queue, serialOp{kind: opCSHigh, tag: tagCtrlDone})
	default:
		c.wpDisabled = false
		c.ackRequest()
	}
}

func (c *Comp) handleUserWrite(v uint32) {
	if v&CfgUserMode == 0 || v&CfgUserCSn != 0 {
		c.userActive = false
		c.burstOpen = false
		c.queue = append(c.queue, serialOp{kind: opCSHigh, tag: tagCtrlDone})
		return
	}

	c.closeBurst()
	c.userActive = true

	lanes := wire.Single
	if v&CfgSpeed != 0 {
		lanes = c.mode
	}

	if v&CfgDir != 0 {
		c.queue = append(c.queue, serialOp{
			kind:  opDrive,
			data:  byte(v),
			lanes: lanes,
			tag:   tagCtrlDone,
		})
		return
	}

	c.sampTag = tagUser
	c.queue = append(c.queue, serialOp{
		kind:  opSample,
		lanes: lanes,
		tag:   tagUser,
	})
}

// startPendingRequest begins the serial work of a latched data request once
// the pads are free and no program or erase is in flight.
func (c *Comp) startPendingRequest() {
	if !c.reqPending || c.reqStarted || c.reqCtrl {
		return
	}
	if c.curActive || len(c.queue) > 0 || c.wip {
		return
	}

	c.reqStarted = true
	if c.reqWE {
		c.startWrite()
		return
	}
	c.startRead()
}

func (c *Comp) startRead() {
	if c.userActive {
		c.queue = append(c.queue, serialOp{kind: opCSHigh})
		c.userActive = false
	}

	if c.burstOpen && c.reqAddr == c.burstNext {
		c.pushDataSample()
		c.burstNext += 4
		return
	}

	c.closeBurst()

	switch c.mode {
	case wire.Single:
		c.pushCommandAddr(flash.OpRead, c.reqAddr)
		c.pushDummy(c.readDelay)
	case wire.Dual:
		c.pushWideRead(flash.OpDualIORead, c.reqAddr)
	case wire.Quad:
		c.pushWideRead(flash.OpQuadIORead, c.reqAddr)
	}

	c.pushDataSample()
	c.burstNext = c.reqAddr + 4
}

func (c *Comp) pushWideRead(op byte, addr uint32) {
	c.queue = append(c.queue, serialOp{kind: opDrive, data: op,
		lanes: wire.Single})
	c.pushAddr(addr, c.mode)
	c.queue = append(c.queue, serialOp{kind: opDrive, data: modeByte,
		lanes: c.mode})
	c.pushDummy(c.dummyCycles + c.readDelay)
}

func (c *Comp) startWrite() {
	if !c.wpDisabled {
		// Write-protected: the request completes without touching the
		// device.
		c.ackRequest()
		return
	}

	if c.writeStreamOpen && c.reqAddr == c.writeNext &&
		c.writeNext%c.pageSize != 0 {
		c.pushWriteData(c.reqData)
		c.writeNext += 4
		return
	}

	if c.writeStreamOpen {
		c.endWriteStream()
		// Restart once the commit has drained.
		c.reqStarted = false
		return
	}

	c.closeBurst()
	if c.userActive {
		c.queue = append(c.queue, serialOp{kind: opCSHigh})
		c.userActive = false
	}

	c.pushWriteEnable()
	c.pushCommandAddr(flash.OpPageProgram, c.reqAddr)
	c.writeStreamOpen = true
	c.writeNext = c.reqAddr
	c.pushWriteData(c.reqData)
	c.writeNext += 4
}

func (c *Comp) pushWriteData(v uint32) {
	var word [4]byte
	binary.BigEndian.PutUint32(word[:], v)

	for i, b := range word {
		op := serialOp{kind: opDrive, data: b, lanes: wire.Single}
		if i == 3 {
			op.tag = tagWordDone
		}
		c.queue = append(c.queue, op)
	}
}

func (c *Comp) pushWriteEnable() {
	c.queue = append(c.queue,
		serialOp{kind: opDrive, data: flash.OpWriteEnable,
			lanes: wire.Single},
		serialOp{kind: opCSHigh},
	)
}

func (c *Comp) pushCommandAddr(op byte, addr uint32) {
	c.queue = append(c.queue, serialOp{kind: opDrive, data: op,
		lanes: wire.Single})
	c.pushAddr(addr, wire.Single)
}

func (c *Comp) pushAddr(addr uint32, lanes wire.IOMode) {
	c.queue = append(c.queue,
		serialOp{kind: opDrive, data: byte(addr >> 16), lanes: lanes},
		serialOp{kind: opDrive, data: byte(addr >> 8), lanes: lanes},
		serialOp{kind: opDrive, data: byte(addr), lanes: lanes},
	)
}

func (c *Comp) pushDummy(n int) {
	if n <= 0 {
		return
	}
	c.queue = append(c.queue, serialOp{kind: opDummy, clocks: n})
}

func (c *Comp) pushDataSample() {
	c.sampTag = tagData
	for i := 0; i < 4; i++ {
		c.queue = append(c.queue, serialOp{kind: opSample,
			lanes: c.mode, tag: tagData})
	}
}

func (c *Comp) closeBurst() {
	if !c.burstOpen {
		return
	}
	c.queue = append(c.queue, serialOp{kind: opCSHigh})
	c.burstOpen = false
}

// maybePollStatus keeps a read-status poll loop running while a program or
// erase is committed in the device, mirroring how firmware waits on WIP.
func (c *Comp) maybePollStatus() {
	if !c.wip || c.curActive || len(c.queue) > 0 {
		return
	}
	if c.writeStreamOpen {
		return
	}

	if c.pollWait > 0 {
		c.pollWait--
		return
	}

	c.sampTag = tagStatus
	c.queue = append(c.queue,
		serialOp{kind: opDrive, data: flash.OpReadStatus,
			lanes: wire.Single},
		serialOp{kind: opSample, lanes: wire.Single, tag: tagStatus},
		serialOp{kind: opCSHigh},
	)
}

func (c *Comp) advanceSerial() {
	if !c.curActive {
		if len(c.queue) == 0 {
			c.driveIdle()
			return
		}
		c.cur = c.queue[0]
		c.queue = c.queue[1:]
		c.curActive = true
		c.curBits = 8
		if c.cur.kind == opSample {
			c.sampTag = c.cur.tag
		}
	}

	switch c.cur.kind {
	case opCSHigh:
		c.pads.CSn = true
		c.pads.SCK = false
		c.pads.OutEn = 0
		c.curActive = false
		if c.cur.tag == tagCtrlDone {
			c.ackRequest()
		}

	case opDummy:
		c.pads.CSn = false
		c.pads.SCK = true
		c.pads.OutEn = 0
		c.cur.clocks--
		if c.cur.clocks <= 0 {
			c.curActive = false
		}

	case opDrive:
		c.pads.CSn = false
		c.pads.SCK = true
		n := c.cur.lanes.Lanes()
		c.curBits -= n
		c.pads.Out = (c.cur.data >> c.curBits) & c.cur.lanes.LaneMask()
		c.pads.OutEn = c.cur.lanes.LaneMask()
		if c.curBits == 0 {
			c.curActive = false
			switch c.cur.tag {
			case tagWordDone:
				c.finishWriteWord()
			case tagCtrlDone:
				c.ackRequest()
			}
		}

	case opSample:
		c.pads.CSn = false
		c.pads.SCK = true
		c.pads.OutEn = 0
		c.slotPending = true
		c.slotLanes = c.cur.lanes
		c.curBits -= c.cur.lanes.Lanes()
		if c.curBits <= 0 {
			c.curActive = false
		}

	default:
		log.Panicf("controller %s: unknown serial op %d", c.name,
			int(c.cur.kind))
	}
}

func (c *Comp) finishWriteWord() {
	c.ackRequest()

	// A page boundary forces the burst closed; the next accepted word
	// starts a fresh program sequence.
	if c.writeNext%c.pageSize == 0 {
		c.endWriteStream()
	}
}

func (c *Comp) driveIdle() {
	c.pads.SCK = false
	c.pads.OutEn = 0
	c.pads.CSn = !(c.burstOpen || c.userActive || c.writeStreamOpen)
}
