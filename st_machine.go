// st_machine.go - Machine aggregate and cycle-driven scheduler glue for IntuitionST

/*
st_machine.go - Machine model for the IntuitionST core

One STMachine owns the global cycle counter, the bus with its RAM, the PSG
port latch and the FDC aggregate (controller, DMA engine, drives, work
buffer). Everything runs single-threaded and cooperatively: the machine
loop advances the cycle counter and lets the FDC consume its one-shot
timer and index-pulse polls.

All FDC-internal delays are kept in WD1772 controller cycles. They are
converted to CPU cycles when the one-shot timer is armed, through the
configured clock ratio (the TT/Falcon variants run the controller clock
doubled) and the optional fast-FDC divisor used for accelerated emulation.
*/

package main

// Machine variants. The variant picks the CPU clock and whether the
// controller clock runs doubled.
const (
	MACHINE_ST = iota
	MACHINE_MEGA_ST
	MACHINE_STE
	MACHINE_TT
	MACHINE_FALCON
)

// MachineConfig carries the knobs the FDC core cares about.
type MachineConfig struct {
	MachineType    int
	RAMSize        int
	FastFDCDivisor uint32 // >1 shortens all FDC delays for accelerated emulation
}

// STMachine is the owning aggregate for the whole core.
type STMachine struct {
	Config MachineConfig

	Bus *STBus
	PSG *PSG
	FDC *FDC

	cycles uint64 // Global clock in CPU cycles

	cpuFreq uint32
	fdcFreq uint32

	irqPending bool // FDC interrupt line (wired to MFP GPIP5 on real hardware)
}

// NewSTMachine builds a machine with the FDC window, DMA and PSG mapped.
func NewSTMachine(cfg MachineConfig) *STMachine {
	if cfg.RAMSize == 0 {
		cfg.RAMSize = ST_RAM_SIZE_1MB
	}
	if cfg.FastFDCDivisor == 0 {
		cfg.FastFDCDivisor = 1
	}

	m := &STMachine{
		Config:  cfg,
		Bus:     NewSTBus(cfg.RAMSize),
		cpuFreq: CPU_CLOCK_ST,
		fdcFreq: FDC_CLOCK_HZ,
	}
	switch cfg.MachineType {
	case MACHINE_TT, MACHINE_FALCON:
		m.cpuFreq = CPU_CLOCK_FALCON
		m.fdcFreq = FDC_CLOCK_HZ * 2
	}

	m.FDC = NewFDC(m)
	m.PSG = NewPSG(m)
	m.mapIO()
	return m
}

// Cycles returns the global clock in CPU cycles.
func (m *STMachine) Cycles() uint64 {
	return m.cycles
}

// FdcCycles returns the global clock converted to controller cycles.
func (m *STMachine) FdcCycles() uint64 {
	if m.cpuFreq == m.fdcFreq {
		return m.cycles
	}
	return m.cycles * uint64(m.fdcFreq) / uint64(m.cpuFreq)
}

// FdcToCPUCycles converts a controller-cycle delay to CPU cycles, applying
// the fast-FDC divisor. Delays never collapse to zero.
func (m *STMachine) FdcToCPUCycles(fdcCycles uint32) uint64 {
	c := uint64(fdcCycles) * uint64(m.cpuFreq) / uint64(m.fdcFreq)
	c /= uint64(m.Config.FastFDCDivisor)
	if c == 0 {
		c = 1
	}
	return c
}

// Is4MBMachine reports whether the DMA high address byte is limited to 6 bits.
func (m *STMachine) Is4MBMachine() bool {
	return m.Config.RAMSize <= ST_RAM_SIZE_4MB
}

// SetIRQ drives the FDC interrupt line.
func (m *STMachine) SetIRQ(level bool) {
	m.irqPending = level
}

// IRQPending reports the FDC interrupt line state.
func (m *STMachine) IRQPending() bool {
	return m.irqPending
}

// Run advances the global clock by n CPU cycles, servicing the FDC timer
// and index-pulse polling on the way. The FDC reports its next event in
// absolute CPU cycles so the loop never overshoots a due transition.
func (m *STMachine) Run(n uint64) {
	target := m.cycles + n
	for m.cycles < target {
		next := m.FDC.NextEventCycle()
		if next > target {
			next = target
		}
		if next <= m.cycles {
			next = m.cycles + 1
		}
		m.cycles = next
		m.FDC.Poll()
	}
}

// Reset performs a cold reset of bus, PSG and FDC.
func (m *STMachine) Reset() {
	m.cycles = 0
	m.irqPending = false
	m.Bus.Reset()
	m.PSG.Reset()
	m.FDC.Reset()
}

// mapIO wires the FDC/DMA window and the PSG into the bus.
func (m *STMachine) mapIO() {
	m.FDC.MapIO(m.Bus)
	m.PSG.MapIO(m.Bus)
}
