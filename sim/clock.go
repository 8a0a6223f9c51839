package sim

// A Clock is an Engine that evaluates every registered ticker exactly once
// per edge, in registration order.
type Clock struct {
	HookableBase

	cycle   uint64
	tickers []Ticker
}

// NewClock creates a Clock with no tickers registered.
func NewClock() *Clock {
	c := new(Clock)
	c.tickers = make([]Ticker, 0)

	return c
}

// Register adds a ticker to the clock.
func (c *Clock) Register(t Ticker) {
	c.tickers = append(c.tickers, t)
}

// Tick performs one clock edge.
func (c *Clock) Tick() {
	hookCtx := HookCtx{
		Domain: c,
		Pos:    HookPosBeforeEdge,
		Item:   c.cycle,
	}
	c.InvokeHook(hookCtx)

	for _, t := range c.tickers {
		t.Tick()
	}

	c.cycle++

	hookCtx.Pos = HookPosAfterEdge
	c.InvokeHook(hookCtx)
}

// TickN performs n clock edges.
func (c *Clock) TickN(n int) {
	for i := 0; i < n; i++ {
		c.Tick()
	}
}

// CurrentCycle returns the number of completed clock edges.
func (c *Clock) CurrentCycle() uint64 {
	return c.cycle
}
