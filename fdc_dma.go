// fdc_dma.go - 16-byte FIFO DMA engine between the FDC data port and ST RAM

/*
The ST floppy DMA sits between the WD1772 data register and main memory.
It moves bytes one at a time on the controller side and whole 16-byte
blocks on the RAM side: a push fills the FIFO until it holds 16 bytes,
then flushes them to the DMA address in one block; a pull drains the FIFO
and reloads 16 bytes from RAM when it runs dry.

The sector counter counts 512-byte units. It only decrements when a full
sector's worth of bytes has crossed the FIFO, and while it sits at zero
any transfer attempt just raises the DMA error flag and moves no data.

Every access through the 0xFF8604 data port leaves a trace in a shadow
word; reads of undefined bit positions in the DMA registers return those
stale shadow bits, which some software actually observes.
*/

package main

// DMA is the floppy DMA engine. One instance per machine.
type DMA struct {
	machine *STMachine

	Mode   uint16 // Mode/control word (0xFF8606 write)
	Status uint16 // Error / sector-count-zero / DRQ bits (0xFF8606 read)

	SectorCount   uint16 // Remaining 512-byte units
	BytesInSector int    // Countdown within the current sector unit

	FIFO     [DMA_FIFO_SIZE]uint8
	FIFOSize int // 0..16

	// Most recent word seen at 0xFF8604; source of the undefined bits on
	// later register reads.
	Shadow uint16

	address uint32 // 24-bit DMA address counter
}

// NewDMA builds a freshly reset DMA engine.
func NewDMA(m *STMachine) *DMA {
	d := &DMA{machine: m}
	d.ResetTransfer()
	return d
}

// ResetTransfer is the bit-8 toggle reset: FIFO emptied, sector counter
// cleared, byte countdown reloaded, error flag cleared.
func (d *DMA) ResetTransfer() {
	d.FIFOSize = 0
	d.BytesInSector = DMA_SECTOR_SIZE
	d.SectorCount = 0
	d.Status = DMA_STATUS_NO_ERROR
}

// Address returns the 24-bit DMA address counter.
func (d *DMA) Address() uint32 {
	return d.address
}

// SetAddress sets the counter, forcing word alignment.
func (d *DMA) SetAddress(addr uint32) {
	d.address = addr & ST_ADDR_MASK &^ 1
}

// WriteAddressByte handles the three byte-wide address registers. The high
// byte is masked to six bits on machines limited to 4MB of RAM; the low
// byte keeps bit 0 forced to zero.
func (d *DMA) WriteAddressByte(reg uint32, val uint8) {
	switch reg {
	case DMA_ADDR_HIGH:
		if d.machine.Is4MBMachine() {
			val &= DMA_ADDR_HIGH_MASK_4MB
		}
		d.address = d.address&0x00FFFF | uint32(val)<<16
	case DMA_ADDR_MID:
		d.address = d.address&0xFF00FF | uint32(val)<<8
	case DMA_ADDR_LOW:
		d.address = d.address&0xFFFF00 | uint32(val&0xFE)
	}
}

// ReadAddressByte returns one byte of the running address counter.
func (d *DMA) ReadAddressByte(reg uint32) uint8 {
	switch reg {
	case DMA_ADDR_HIGH:
		return uint8(d.address >> 16)
	case DMA_ADDR_MID:
		return uint8(d.address >> 8)
	}
	return uint8(d.address)
}

// Push moves one byte from the controller toward RAM. With the sector
// counter at zero the byte is discarded and the error flag raised; the
// FIFO flushes to RAM each time it fills.
func (d *DMA) Push(b uint8) {
	d.Shadow = d.Shadow&0xFF00 | uint16(b)
	if d.SectorCount == 0 {
		d.Status &^= DMA_STATUS_NO_ERROR
		return
	}
	d.Status |= DMA_STATUS_NO_ERROR
	d.FIFO[d.FIFOSize] = b
	d.FIFOSize++
	if d.FIFOSize == DMA_FIFO_SIZE {
		d.flushFIFO()
	}
}

// Pull moves one byte from RAM toward the controller, reloading the FIFO
// in 16-byte blocks. The FIFO drains indexed from its tail, matching the
// hardware's drain order while delivering bytes in memory order. Sector
// accounting on this side runs per byte: the counter must not expire
// while undelivered bytes still sit in the FIFO.
func (d *DMA) Pull() uint8 {
	if d.SectorCount == 0 {
		d.Status &^= DMA_STATUS_NO_ERROR
		d.Shadow &= 0xFF00
		return 0
	}
	d.Status |= DMA_STATUS_NO_ERROR
	if d.FIFOSize == 0 {
		d.loadFIFO()
	}
	b := d.FIFO[DMA_FIFO_SIZE-d.FIFOSize]
	d.FIFOSize--
	d.Shadow = d.Shadow&0xFF00 | uint16(b)
	d.BytesInSector--
	if d.BytesInSector <= 0 {
		d.SectorCount--
		d.BytesInSector = DMA_SECTOR_SIZE
	}
	return b
}

// flushFIFO writes the full FIFO to RAM as one block and advances the
// address and sector accounting.
func (d *DMA) flushFIFO() {
	ram := d.machine.Bus.GetMemory()
	for i := 0; i < DMA_FIFO_SIZE; i++ {
		addr := (d.address + uint32(i)) & ST_ADDR_MASK
		if int(addr) < len(ram) {
			ram[addr] = d.FIFO[i]
		}
	}
	d.address = (d.address + DMA_FIFO_SIZE) & ST_ADDR_MASK
	d.Shadow = uint16(d.FIFO[DMA_FIFO_SIZE-2])<<8 | uint16(d.FIFO[DMA_FIFO_SIZE-1])
	d.FIFOSize = 0
	d.accountBlock()
}

// loadFIFO fills the FIFO with the next 16 bytes of RAM.
func (d *DMA) loadFIFO() {
	ram := d.machine.Bus.GetMemory()
	for i := 0; i < DMA_FIFO_SIZE; i++ {
		addr := (d.address + uint32(i)) & ST_ADDR_MASK
		if int(addr) < len(ram) {
			d.FIFO[i] = ram[addr]
		} else {
			d.FIFO[i] = 0xFF
		}
	}
	d.address = (d.address + DMA_FIFO_SIZE) & ST_ADDR_MASK
	d.Shadow = uint16(d.FIFO[DMA_FIFO_SIZE-2])<<8 | uint16(d.FIFO[DMA_FIFO_SIZE-1])
	d.FIFOSize = DMA_FIFO_SIZE
}

// accountBlock books one 16-byte block against the current sector unit.
func (d *DMA) accountBlock() {
	d.BytesInSector -= DMA_FIFO_SIZE
	if d.BytesInSector <= 0 {
		if d.SectorCount > 0 {
			d.SectorCount--
		}
		d.BytesInSector = DMA_SECTOR_SIZE
	}
}

// WriteMode handles a write to 0xFF8606. A direction-bit toggle resets the
// transfer machinery.
func (d *DMA) WriteMode(val uint16) {
	if (d.Mode^val)&DMA_MODE_DIRECTION != 0 {
		d.ResetTransfer()
	}
	d.Mode = val
}

// ReadStatus assembles the 0xFF8606 read: the three live bits overlaid on
// the shadow word for the undefined positions. DRQ always reads 0 on this
// platform; the DMA itself keeps the controller serviced.
func (d *DMA) ReadStatus() uint16 {
	v := d.Shadow &^ (DMA_STATUS_NO_ERROR | DMA_STATUS_SECTOR_COUNT | DMA_STATUS_DRQ)
	v |= d.Status & DMA_STATUS_NO_ERROR
	if d.SectorCount != 0 {
		v |= DMA_STATUS_SECTOR_COUNT
	}
	return v
}

// WriteSectorCount loads the sector counter through the 0xFF8604 window.
func (d *DMA) WriteSectorCount(val uint16) {
	d.Shadow = val
	d.SectorCount = val
	d.BytesInSector = DMA_SECTOR_SIZE
}
