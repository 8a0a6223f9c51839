// Package wire defines the pin-level signal bundles exchanged between the
// simulated controller, the flash device model, and the bus driver. A
// bidirectional pad is modeled as an explicit pair of driven-value and
// output-enable signals on each side; the testbench resolves direction every
// clock edge.
package wire

import "fmt"

// IOMode selects how many data lanes a serial transfer uses.
type IOMode int

// The supported serial bus widths.
const (
	Single IOMode = iota
	Dual
	Quad
)

// Lanes returns the number of data lanes active in this mode.
func (m IOMode) Lanes() int {
	switch m {
	case Single:
		return 1
	case Dual:
		return 2
	case Quad:
		return 4
	}
	panic(fmt.Sprintf("invalid IO mode %d", int(m)))
}

// LaneMask returns the pad mask of the lanes active in this mode.
func (m IOMode) LaneMask() uint8 {
	return uint8(1<<m.Lanes()) - 1
}

func (m IOMode) String() string {
	switch m {
	case Single:
		return "single"
	case Dual:
		return "dual"
	case Quad:
		return "quad"
	}
	return fmt.Sprintf("IOMode(%d)", int(m))
}

// ParseIOMode converts a mode name from the command line to an IOMode.
func ParseIOMode(s string) (IOMode, error) {
	switch s {
	case "spi", "single":
		return Single, nil
	case "dspi", "dual":
		return Dual, nil
	case "qspi", "quad":
		return Quad, nil
	}
	return Single, fmt.Errorf("unknown IO mode %q", s)
}

// QSPIPads is the serial pad group between the controller and the flash
// device. CSn, SCK, Out and OutEn are driven by the controller. In carries
// the lanes the device drove on the previous edge.
type QSPIPads struct {
	CSn bool
	SCK bool

	// Out holds the nibble the controller drives; OutEn is the per-lane
	// output-enable mask. A lane with its OutEn bit clear is released to
	// the device.
	Out   uint8
	OutEn uint8

	// In holds the lanes driven by the device.
	In uint8
}

// WishboneBus is the register bus surface of the controller model. Cyc,
// DataStb, CtrlStb, WE, Addr and WData are driven by the bus master. Stall,
// Ack and RData are driven by the controller.
type WishboneBus struct {
	Cyc     bool
	DataStb bool
	CtrlStb bool
	WE      bool
	Addr    uint32
	WData   uint32

	Stall bool
	Ack   bool
	RData uint32
}
