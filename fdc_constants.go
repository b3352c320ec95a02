// fdc_constants.go - WD1772 FDC and DMA register/timing constants for IntuitionST

package main

// ------------------------------------------------------------------------------
// Memory-mapped register addresses
// The FDC/DMA window sits at 0xFF8600 in the ST I/O page. 0xFF8604 and
// 0xFF8606 are word registers (byte access bus-errors), the DMA address
// counter is three byte registers on odd addresses.
// ------------------------------------------------------------------------------
const (
	FDC_DMA_DATA    = 0xFF8604 // FDC register window / DMA sector count (word)
	FDC_DMA_MODE    = 0xFF8606 // DMA mode (write) / DMA status (read) (word)
	DMA_ADDR_HIGH   = 0xFF8609 // DMA address counter bits 16-23 (byte)
	DMA_ADDR_MID    = 0xFF860B // DMA address counter bits 8-15 (byte)
	DMA_ADDR_LOW    = 0xFF860D // DMA address counter bits 0-7 (byte)
	FALCON_FDC_MODE = 0xFF860F // Falcon floppy mode/control (byte)

	// YM2149 PSG. Port A of the PSG carries the floppy side/drive select lines.
	PSG_REG_SELECT = 0xFF8800 // Write: select register, Read: read data
	PSG_REG_DATA   = 0xFF8802 // Write: write data
)

// PSG port A floppy select lines (active low for the drive bits)
const (
	PSG_PORTA_SIDE   = 0x01 // Side select, inverted (0 = side 1)
	PSG_PORTA_DRIVE0 = 0x02 // Drive 0 select, active low
	PSG_PORTA_DRIVE1 = 0x04 // Drive 1 select, active low

	PSG_REG_PORTA = 14 // PSG register number of I/O port A
	PSG_REG_COUNT = 16
)

// ------------------------------------------------------------------------------
// DMA mode/control word (write to 0xFF8606)
// ------------------------------------------------------------------------------
const (
	DMA_MODE_A0           = 0x0002 // FDC register select line A0
	DMA_MODE_A1           = 0x0004 // FDC register select line A1
	DMA_MODE_HDC_REG      = 0x0008 // Register window routed to the HDC
	DMA_MODE_SECTOR_COUNT = 0x0010 // 0xFF8604 accesses the DMA sector counter
	DMA_MODE_ENABLE       = 0x0040 // DMA enable
	DMA_MODE_HDC_DMA      = 0x0080 // DMA transfers serve the HDC
	DMA_MODE_DIRECTION    = 0x0100 // 0 = read (disk to RAM), 1 = write; toggling resets the DMA
)

// DMA status word (read from 0xFF8606); unused bits mirror the 0xFF8604 shadow
const (
	DMA_STATUS_NO_ERROR     = 0x0001 // 1 = no DMA error
	DMA_STATUS_SECTOR_COUNT = 0x0002 // 1 = sector counter non-zero
	DMA_STATUS_DRQ          = 0x0004 // DRQ line; the DMA services it, reads as 0
)

const (
	DMA_FIFO_SIZE       = 16  // Hardware FIFO depth in bytes
	DMA_SECTOR_SIZE     = 512 // One DMA sector-count unit
	DMA_ADDR_HIGH_MASK_4MB = 0x3F // High address byte mask on 4MB machines
)

// ------------------------------------------------------------------------------
// WD1772 status register. Bits 1, 2 and 5 differ between the type I view
// and the type II/III view.
// ------------------------------------------------------------------------------
const (
	FDC_STR_BUSY        = 0x01
	FDC_STR_INDEX       = 0x02 // Type I: index pulse
	FDC_STR_DRQ         = 0x02 // Type II/III: data request
	FDC_STR_TR00        = 0x04 // Type I: track zero
	FDC_STR_LOST_DATA   = 0x04 // Type II/III: lost data (never set, the DMA keeps up)
	FDC_STR_CRC_ERROR   = 0x08
	FDC_STR_RNF         = 0x10 // Record not found
	FDC_STR_SPIN_UP     = 0x20 // Type I: spin-up complete
	FDC_STR_RECORD_TYPE = 0x20 // Type II/III: record type
	FDC_STR_WPRT        = 0x40 // Write protect
	FDC_STR_MOTOR_ON    = 0x80
)

// WD1772 command byte bits
const (
	FDC_CMD_BIT_STEP_RATE  = 0x03 // Type I: step rate select
	FDC_CMD_BIT_VERIFY     = 0x04 // Type I: verify destination track
	FDC_CMD_BIT_HEAD_LOAD  = 0x04 // Type II/III: head settle before operating
	FDC_CMD_BIT_NO_SPINUP  = 0x08 // Type I/II/III: disable the spin-up sequence
	FDC_CMD_BIT_UPDATE_TRK = 0x10 // Step commands: update the track register
	FDC_CMD_BIT_MULTIPLE   = 0x10 // Type II: transfer multiple sectors

	FDC_CMD_BIT_FI_IMMEDIATE = 0x08 // Force interrupt: raise IRQ now
	FDC_CMD_BIT_FI_INDEX     = 0x04 // Force interrupt: raise IRQ on each index pulse
	FDC_CMD_FI_COND_MASK     = 0x0F
)

// ------------------------------------------------------------------------------
// Timing. All FDC delays are kept in WD1772 controller cycles and converted
// to CPU cycles when the one-shot timer is armed.
// ------------------------------------------------------------------------------
const (
	FDC_CLOCK_HZ = 8021247 // WD1772 clock on the ST (doubled on TT/Falcon variants)

	CPU_CLOCK_ST     = 8021247
	CPU_CLOCK_FALCON = 16042494

	// One MFM byte is 32us at double density: 256 controller cycles.
	// Divide by the density factor for HD/ED media.
	FDC_DELAY_CYCLE_MFM_BYTE = 256

	FDC_RPM_STANDARD = 300000 // RPM x 1000

	// Raw bytes on one DD track; HD/ED scale by the density factor
	FDC_TRACK_BYTES_DD = 6268

	// The index signal stays high for roughly 46 MFM bytes (~1.47ms at DD) per rev
	FDC_INDEX_PULSE_BYTES = 46

	// Prepare delays after a command register write, per command type
	FDC_DELAY_CYCLE_TYPE_I_PREPARE   = 90
	FDC_DELAY_CYCLE_TYPE_II_PREPARE  = 1
	FDC_DELAY_CYCLE_TYPE_III_PREPARE = 1
	FDC_DELAY_CYCLE_TYPE_IV_PREPARE  = 100

	// Poll interval while waiting on index pulses (spin-up, motor-off timer)
	FDC_DELAY_CYCLE_REFRESH_INDEX_PULSE = 500

	// Poll interval for a header search on an empty or disabled drive; the
	// command resumes transparently once a disk shows up
	FDC_DELAY_CYCLE_WAIT_NO_DRIVE = 50000

	FDC_DELAY_MS_HEAD_SETTLE = 15

	FDC_SPINUP_INDEX_PULSES    = 6
	FDC_MOTOR_OFF_INDEX_PULSES = 9
	FDC_RNF_REVOLUTIONS        = 5
	FDC_RESTORE_MAX_STEPS      = 255

	FDC_HEAD_TRACK_MAX = 90
)

// Type I step rates in ms, indexed by the low two command bits (WD1772 at 8MHz)
var fdcStepRateMs = [4]uint32{6, 12, 2, 3}

// ------------------------------------------------------------------------------
// Raw track layout for a standard 9/10 sector track. All counts are MFM bytes.
// ------------------------------------------------------------------------------
const (
	FDC_TRACK_GAP1  = 60 // 0x4E before the first sector
	FDC_TRACK_GAP2  = 12 // 0x00 before the ID field sync
	FDC_TRACK_GAP3A = 22 // 0x4E between ID field and data sync
	FDC_TRACK_GAP3B = 12 // 0x00 data field sync lead-in
	FDC_TRACK_GAP4  = 40 // 0x4E after the data CRC
	// GAP5 is whatever 0x4E filler remains up to the track boundary

	FDC_TRACK_SYNC_BYTES = 3 // 0xA1 sync marks before IAM/DAM

	FDC_ID_FIELD_BYTES = 6 // track, side, sector, length, CRC hi, CRC lo

	// One sector slot: GAP2 + sync + IAM + ID + GAP3a + GAP3b + sync + DAM +
	// data + CRC + GAP4
	FDC_TRACK_SECTOR_SLOT = FDC_TRACK_GAP2 + FDC_TRACK_SYNC_BYTES + 1 +
		FDC_ID_FIELD_BYTES + FDC_TRACK_GAP3A + FDC_TRACK_GAP3B +
		FDC_TRACK_SYNC_BYTES + 1 + DMA_SECTOR_SIZE + 2 + FDC_TRACK_GAP4

	// Byte offset of a sector's ID track byte within its slot
	FDC_TRACK_ID_OFFSET = FDC_TRACK_GAP2 + FDC_TRACK_SYNC_BYTES + 1

	// Bytes between the ID length byte and the first data byte
	FDC_TRACK_ID_TO_DATA = 2 + FDC_TRACK_GAP3A + FDC_TRACK_GAP3B +
		FDC_TRACK_SYNC_BYTES + 1

	FDC_IAM_BYTE = 0xFE // ID address mark
	FDC_DAM_BYTE = 0xFB // Data address mark

	FDC_SECTOR_LEN_CODE = 0x02 // 512-byte sectors

	// Work buffer holds one full raw track at ED density
	FDC_TRACK_BUFFER_SIZE = FDC_TRACK_BYTES_DD * 4
)

// Density factors (bytes-per-revolution multiplier over DD)
const (
	FDC_DENSITY_DD = 1
	FDC_DENSITY_HD = 2
	FDC_DENSITY_ED = 4
)

const FDC_DRIVE_COUNT = 2
