// fdc_io.go - Memory-mapped register window for the FDC/DMA/HDC mux

/*
The word at 0xFF8604 is a multiplexed window: the DMA mode word routes it
to the DMA sector counter, to the HDC, or to one of the four WD1772
registers picked by the A1/A0 select bits. Every access through the window
updates the DMA shadow word, which is where the undefined bits of later
reads come from.

0xFF8604 and 0xFF8606 only answer word access; byte access bus-errors, as
do the reserved even offsets of the page. The DMA address counter bytes at
0xFF8609/0B/0D answer byte access directly and word access through the
even address one below, which is how movep-style code drives them.
0xFF860F exists on the Falcon only.
*/

package main

// HDCDevice is the hard disk controller collaborator. Only FIFO routing is
// in scope for this core; anything attached here sees the raw window
// traffic when the HDC route bit is set.
type HDCDevice interface {
	WriteCommand(val uint16)
	ReadStatus() uint16
}

// readRegWindow handles a word read of 0xFF8604.
func (f *FDC) readRegWindow() uint16 {
	dma := f.DMA
	if dma.Mode&DMA_MODE_SECTOR_COUNT != 0 {
		// The sector counter is write-only; reads see the shadow
		return dma.Shadow
	}
	if dma.Mode&DMA_MODE_HDC_REG != 0 {
		if f.hdc != nil {
			return f.hdc.ReadStatus()
		}
		return dma.Shadow | 0x00FF
	}
	var v uint8
	switch dma.Mode & (DMA_MODE_A1 | DMA_MODE_A0) {
	case 0:
		v = f.ReadStatusReg()
	case DMA_MODE_A0:
		v = f.ReadTrackReg()
	case DMA_MODE_A1:
		v = f.ReadSectorReg()
	default:
		v = f.ReadDataReg()
	}
	dma.Shadow = dma.Shadow&0xFF00 | uint16(v)
	return dma.Shadow
}

// writeRegWindow handles a word write of 0xFF8604.
func (f *FDC) writeRegWindow(val uint16) {
	dma := f.DMA
	if dma.Mode&DMA_MODE_SECTOR_COUNT != 0 {
		dma.WriteSectorCount(val)
		return
	}
	dma.Shadow = val
	if dma.Mode&DMA_MODE_HDC_REG != 0 {
		if f.hdc != nil {
			f.hdc.WriteCommand(val)
		}
		return
	}
	switch dma.Mode & (DMA_MODE_A1 | DMA_MODE_A0) {
	case 0:
		f.WriteCommandReg(uint8(val))
	case DMA_MODE_A0:
		f.WriteTrackReg(uint8(val))
	case DMA_MODE_A1:
		f.WriteSectorReg(uint8(val))
	default:
		f.WriteDataReg(uint8(val))
	}
}

// MapIO wires the 0xFF8600 page into the bus.
func (f *FDC) MapIO(bus *STBus) {
	bus.MapIO(0xFF8600, 0xFF860F, stIORegion{
		read8:   f.ioRead8,
		write8:  f.ioWrite8,
		read16:  f.ioRead16,
		write16: f.ioWrite16,
	})
}

func (f *FDC) ioRead8(addr uint32) (uint8, bool) {
	switch addr {
	case DMA_ADDR_HIGH, DMA_ADDR_MID, DMA_ADDR_LOW:
		return f.DMA.ReadAddressByte(addr), true
	case FALCON_FDC_MODE:
		if f.machine.Config.MachineType == MACHINE_FALCON {
			return 0x80, true
		}
	}
	return 0, false
}

func (f *FDC) ioWrite8(addr uint32, val uint8) bool {
	switch addr {
	case DMA_ADDR_HIGH, DMA_ADDR_MID, DMA_ADDR_LOW:
		f.DMA.WriteAddressByte(addr, val)
		return true
	case FALCON_FDC_MODE:
		if f.machine.Config.MachineType == MACHINE_FALCON {
			return true
		}
	}
	return false
}

func (f *FDC) ioRead16(addr uint32) (uint16, bool) {
	switch addr {
	case FDC_DMA_DATA:
		return f.readRegWindow(), true
	case FDC_DMA_MODE:
		return f.DMA.ReadStatus(), true
	case DMA_ADDR_HIGH - 1, DMA_ADDR_MID - 1, DMA_ADDR_LOW - 1:
		return uint16(f.DMA.ReadAddressByte(addr + 1)), true
	case FALCON_FDC_MODE - 1:
		if f.machine.Config.MachineType == MACHINE_FALCON {
			return 0x80, true
		}
	}
	return 0, false
}

func (f *FDC) ioWrite16(addr uint32, val uint16) bool {
	switch addr {
	case FDC_DMA_DATA:
		f.writeRegWindow(val)
		return true
	case FDC_DMA_MODE:
		f.DMA.WriteMode(val)
		return true
	case DMA_ADDR_HIGH - 1, DMA_ADDR_MID - 1, DMA_ADDR_LOW - 1:
		f.DMA.WriteAddressByte(addr+1, uint8(val))
		return true
	case FALCON_FDC_MODE - 1:
		if f.machine.Config.MachineType == MACHINE_FALCON {
			return true
		}
	}
	return false
}
