package sim

// CycleTeller can be used to get the current clock cycle.
type CycleTeller interface {
	CurrentCycle() uint64
}

// A Ticker is an object that updates its state on every clock edge.
type Ticker interface {
	Tick()
}

// An Engine drives the simulated hardware one clock edge at a time. All
// registered tickers advance in lock step: within one tick, every ticker
// observes the signal state produced by the previous tick.
type Engine interface {
	Hookable
	CycleTeller

	// Register adds a ticker to the engine. Tickers are evaluated in
	// registration order on every edge.
	Register(t Ticker)

	// Tick performs exactly one clock edge.
	Tick()

	// TickN performs n clock edges.
	TickN(n int)
}
