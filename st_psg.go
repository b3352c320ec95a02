// st_psg.go - YM2149 register latch with floppy side/drive select on port A

/*
The ST routes the floppy side-select and the two drive-select lines through
I/O port A of the YM2149. This file carries just the register latch: sound
synthesis belongs to the wider machine and is out of scope for the FDC
core, but the port A byte has to be observable because every write to it
may switch the selected drive and side under a running command.

Register select at 0xFF8800, data at 0xFF8802, as on real hardware. Both
respond to byte access; reading 0xFF8800 returns the selected register.
*/

package main

// PSG is the YM2149 register file, port A wired to the FDC drive select.
type PSG struct {
	machine *STMachine

	regSelect uint8
	regs      [PSG_REG_COUNT]uint8
}

// NewPSG builds the PSG latch. Port A powers up with no drive selected and
// side 0 (all select lines high).
func NewPSG(m *STMachine) *PSG {
	p := &PSG{machine: m}
	p.regs[PSG_REG_PORTA] = PSG_PORTA_SIDE | PSG_PORTA_DRIVE0 | PSG_PORTA_DRIVE1
	return p
}

// Reset restores the power-up latch state.
func (p *PSG) Reset() {
	p.regSelect = 0
	for i := range p.regs {
		p.regs[i] = 0
	}
	p.regs[PSG_REG_PORTA] = PSG_PORTA_SIDE | PSG_PORTA_DRIVE0 | PSG_PORTA_DRIVE1
}

// PortA returns the current port A latch byte.
func (p *PSG) PortA() uint8 {
	return p.regs[PSG_REG_PORTA]
}

// WriteSelect latches the register number.
func (p *PSG) WriteSelect(val uint8) {
	p.regSelect = val & 0x0F
}

// ReadSelected returns the currently selected register.
func (p *PSG) ReadSelected() uint8 {
	return p.regs[p.regSelect]
}

// WriteData writes the selected register. A port A write is forwarded to
// the FDC so it can react to side/drive select changes.
func (p *PSG) WriteData(val uint8) {
	if p.regSelect == PSG_REG_PORTA {
		prev := p.regs[PSG_REG_PORTA]
		p.regs[PSG_REG_PORTA] = val
		p.machine.FDC.SetDriveSide(prev, val)
		return
	}
	p.regs[p.regSelect] = val
}

// MapIO registers the PSG latch addresses with the bus. The PSG mirrors
// across the whole 0xFF8800 page on hardware; the two canonical addresses
// are enough for the FDC core.
func (p *PSG) MapIO(bus *STBus) {
	bus.MapIO(PSG_REG_SELECT, PSG_REG_SELECT+1, stIORegion{
		read8: func(addr uint32) (uint8, bool) {
			return p.ReadSelected(), true
		},
		write8: func(addr uint32, val uint8) bool {
			p.WriteSelect(val)
			return true
		},
		read16: func(addr uint32) (uint16, bool) {
			return uint16(p.ReadSelected()) << 8, true
		},
		write16: func(addr uint32, val uint16) bool {
			p.WriteSelect(uint8(val >> 8))
			return true
		},
	})
	bus.MapIO(PSG_REG_DATA, PSG_REG_DATA+1, stIORegion{
		read8: func(addr uint32) (uint8, bool) {
			return p.ReadSelected(), true
		},
		write8: func(addr uint32, val uint8) bool {
			p.WriteData(val)
			return true
		},
		write16: func(addr uint32, val uint16) bool {
			p.WriteData(uint8(val >> 8))
			return true
		},
	})
}
