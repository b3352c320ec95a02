// fdc_wd1772.go - WD1772 floppy disk controller command state machine

/*
fdc_wd1772.go - WD1772 emulation core for IntuitionST

The controller is driven entirely by one one-shot cycle timer. Writing the
command register classifies the command, arms the timer with a short
prepare delay and from then on the state machine advances whenever the
timer fires, each sub-state returning the controller-cycle delay to the
next one. A zero delay chains immediately without going back through the
scheduler, which is how multi-step transitions (classification, motor
decisions, header checks) execute in a single timer expiry.

Programs from the ST era watch this chip very closely: the replace-possible
window during which a same-type command overwrites the running one, the
six-revolution spin-up, the per-byte DMA pacing at the MFM byte rate and
the nine-revolution motor-off timer are all observable behaviour and are
modelled as such. Commands searching for a header on an empty drive never
time out; they poll slowly until a disk appears.
*/

package main

import (
	"math/rand"
)

// fdcCommand identifies the command owning the state machine.
type fdcCommand int

const (
	FDC_COMMAND_NULL fdcCommand = iota
	FDC_COMMAND_RESTORE
	FDC_COMMAND_SEEK
	FDC_COMMAND_STEP
	FDC_COMMAND_STEP_IN
	FDC_COMMAND_STEP_OUT
	FDC_COMMAND_READ_SECTOR
	FDC_COMMAND_WRITE_SECTOR
	FDC_COMMAND_READ_ADDRESS
	FDC_COMMAND_READ_TRACK
	FDC_COMMAND_WRITE_TRACK
)

// fdcSubState is the phase within the owning command.
type fdcSubState int

const (
	FDC_SUB_PREPARE fdcSubState = iota
	FDC_SUB_SPIN_UP
	FDC_SUB_MAIN
	FDC_SUB_STEP
	FDC_SUB_VERIFY_NEXT_HEADER
	FDC_SUB_VERIFY_CHECK_HEADER
	FDC_SUB_HEAD_LOAD
	FDC_SUB_NEXT_HEADER
	FDC_SUB_CHECK_HEADER
	FDC_SUB_TRANSFER
	FDC_SUB_WAIT_INDEX
	FDC_SUB_TRACK_START
)

// idField is the six-byte ID field shadow captured at the last header.
type idField struct {
	Track  uint8
	Side   uint8
	Sector uint8
	Length uint8
	CRCHi  uint8
	CRCLo  uint8
}

// FDC is the controller aggregate: WD1772 register file and state machine,
// the DMA engine, both drives and the raw-track work buffer.
type FDC struct {
	machine *STMachine

	// WD1772 register file
	dr  uint8 // Data register
	tr  uint8 // Track register
	sr  uint8 // Sector register
	cr  uint8 // Command register
	str uint8 // Status register

	stepDirection int8 // +1 step in (toward the hub), -1 step out
	side          int8 // 0 or 1, from the PSG port A latch
	driveSel      int8 // -1 none, 0 or 1

	command fdcCommand
	state   fdcSubState
	cmdType int // 1..4

	replacePossible bool // Same-type command may still take over
	statusTypeI     bool // Status register presents the type I view
	spinUpNeeded    bool // This command runs the six-revolution spin-up
	motorOff        bool // Motor-stop timer is counting index pulses

	indexPulseCount int
	interruptCond   uint8 // Force-interrupt condition mask (latched)
	irq             bool

	headerSector int     // Header slot the search positioned onto
	nextID       idField // ID field shadow from the last header read
	stepCount    int     // Restore step attempts

	buffer    []byte // Raw-track work buffer
	bufferPos int
	bufferLen int

	Drives [FDC_DRIVE_COUNT]Drive
	DMA    *DMA

	hdc HDCDevice

	// One-shot timer, in absolute CPU cycles
	timerActive bool
	timerFire   uint64

	nextIndexPoll uint64
}

// NewFDC builds the controller with both drives enabled and no disks.
func NewFDC(m *STMachine) *FDC {
	f := &FDC{
		machine:  m,
		driveSel: -1,
		buffer:   make([]byte, FDC_TRACK_BUFFER_SIZE),
	}
	f.DMA = NewDMA(m)
	for i := range f.Drives {
		f.Drives[i].Enabled = true
		f.Drives[i].RPM = FDC_RPM_STANDARD
		f.Drives[i].Density = FDC_DENSITY_DD
	}
	f.stepDirection = 1
	f.statusTypeI = true
	f.sr = 1
	return f
}

// SetHDC attaches the hard disk controller collaborator.
func (f *FDC) SetHDC(h HDCDevice) {
	f.hdc = h
}

// ------------------------------------------------------------------------------
// Scheduler interface
// ------------------------------------------------------------------------------

// NextEventCycle returns the absolute CPU cycle of the next FDC event so
// the machine loop never steps past a due transition.
func (f *FDC) NextEventCycle() uint64 {
	next := f.nextIndexPoll
	if f.timerActive && f.timerFire < next {
		next = f.timerFire
	}
	return next
}

// Poll services the index-pulse clock and the one-shot command timer.
// Called by the machine loop; cheap when nothing is due.
func (f *FDC) Poll() {
	now := f.machine.Cycles()
	if now >= f.nextIndexPoll {
		f.tickIndexPulses()
		f.nextIndexPoll = now + f.machine.FdcToCPUCycles(FDC_DELAY_CYCLE_REFRESH_INDEX_PULSE)
	}
	if f.timerActive && now >= f.timerFire {
		f.timerActive = false
		f.runStateMachine()
	}
}

// schedule arms the one-shot timer a controller-cycle delay from now.
func (f *FDC) schedule(fdcCycles uint32) {
	f.timerFire = f.machine.Cycles() + f.machine.FdcToCPUCycles(fdcCycles)
	f.timerActive = true
}

// runStateMachine advances sub-states until one asks for a real delay.
func (f *FDC) runStateMachine() {
	for {
		var delay uint32
		if f.command == FDC_COMMAND_NULL {
			if !f.motorOff {
				return
			}
			delay = f.updateMotorStop()
		} else {
			switch f.command {
			case FDC_COMMAND_RESTORE:
				delay = f.updateRestore()
			case FDC_COMMAND_SEEK:
				delay = f.updateSeek()
			case FDC_COMMAND_STEP, FDC_COMMAND_STEP_IN, FDC_COMMAND_STEP_OUT:
				delay = f.updateStep()
			case FDC_COMMAND_READ_SECTOR:
				delay = f.updateReadSector()
			case FDC_COMMAND_WRITE_SECTOR:
				delay = f.updateWriteSector()
			case FDC_COMMAND_READ_ADDRESS:
				delay = f.updateReadAddress()
			case FDC_COMMAND_READ_TRACK:
				delay = f.updateReadTrack()
			case FDC_COMMAND_WRITE_TRACK:
				delay = f.updateWriteTrack()
			}
		}
		if delay > 0 {
			f.schedule(delay)
			return
		}
		if f.command == FDC_COMMAND_NULL && !f.motorOff {
			return
		}
	}
}

// ------------------------------------------------------------------------------
// IRQ line
// ------------------------------------------------------------------------------

func (f *FDC) setIRQ() {
	f.irq = true
	f.machine.SetIRQ(true)
}

func (f *FDC) clearIRQ() {
	f.irq = false
	f.machine.SetIRQ(false)
}

// IRQ reports the interrupt line state.
func (f *FDC) IRQ() bool {
	return f.irq
}

// ------------------------------------------------------------------------------
// Register file access (routed through the DMA mode word, see fdc_io.go)
// ------------------------------------------------------------------------------

// ReadStatusReg returns the status register. In the type I view the TR00,
// INDEX and WPRT bits are derived live from the selected drive; the
// write-protect sensor reads as obstructed during a media-change
// transition. Reading status drops the IRQ line unless the immediate
// force-interrupt condition is latched.
func (f *FDC) ReadStatusReg() uint8 {
	v := f.str
	if f.statusTypeI {
		v &^= FDC_STR_TR00 | FDC_STR_INDEX | FDC_STR_WPRT
		if d := f.selectedDrive(); d != nil && d.Enabled {
			if d.HeadTrack == 0 {
				v |= FDC_STR_TR00
			}
			if f.str&FDC_STR_MOTOR_ON != 0 && f.indexSignal(d) {
				v |= FDC_STR_INDEX
			}
			if f.mediaChangeActive(d) {
				v |= FDC_STR_WPRT
			} else if d.image != nil && d.image.WriteProtected() {
				v |= FDC_STR_WPRT
			}
		}
	}
	if f.interruptCond&FDC_CMD_BIT_FI_IMMEDIATE == 0 {
		f.clearIRQ()
	}
	return v
}

// WriteTrackReg latches the track register; ignored while a command runs.
func (f *FDC) WriteTrackReg(val uint8) {
	if f.str&FDC_STR_BUSY != 0 {
		return
	}
	f.tr = val
}

// WriteSectorReg latches the sector register; ignored while a command runs.
func (f *FDC) WriteSectorReg(val uint8) {
	if f.str&FDC_STR_BUSY != 0 {
		return
	}
	f.sr = val
}

// WriteDataReg latches the data register. Always accepted; Seek reads its
// target from here.
func (f *FDC) WriteDataReg(val uint8) {
	f.dr = val
}

// ReadTrackReg returns the track register.
func (f *FDC) ReadTrackReg() uint8 { return f.tr }

// ReadSectorReg returns the sector register.
func (f *FDC) ReadSectorReg() uint8 { return f.sr }

// ReadDataReg returns the data register.
func (f *FDC) ReadDataReg() uint8 { return f.dr }

// classifyCommand returns the WD1772 command type from the top nibble.
func classifyCommand(b uint8) int {
	switch {
	case b&0x80 == 0:
		return 1
	case b&0xC0 == 0x80:
		return 2
	case b&0xF0 == 0xD0:
		return 4
	}
	return 3
}

// commandFromByte maps a command byte to its identity tag.
func commandFromByte(b uint8) fdcCommand {
	switch b >> 4 {
	case 0x0:
		return FDC_COMMAND_RESTORE
	case 0x1:
		return FDC_COMMAND_SEEK
	case 0x2, 0x3:
		return FDC_COMMAND_STEP
	case 0x4, 0x5:
		return FDC_COMMAND_STEP_IN
	case 0x6, 0x7:
		return FDC_COMMAND_STEP_OUT
	case 0x8, 0x9:
		return FDC_COMMAND_READ_SECTOR
	case 0xA, 0xB:
		return FDC_COMMAND_WRITE_SECTOR
	case 0xC:
		return FDC_COMMAND_READ_ADDRESS
	case 0xE:
		return FDC_COMMAND_READ_TRACK
	}
	return FDC_COMMAND_WRITE_TRACK
}

// WriteCommandReg starts a command. While busy the write is dropped unless
// it is a force interrupt, or the running command is still in its
// replace-possible window and the new command has the same type (I over I,
// II over II).
func (f *FDC) WriteCommandReg(b uint8) {
	f.tickIndexPulses()

	typ := classifyCommand(b)
	if typ == 4 {
		f.forceInterrupt(b)
		return
	}
	if f.str&FDC_STR_BUSY != 0 {
		if !(f.replacePossible && typ == f.cmdType && typ <= 2) {
			return
		}
	}
	if f.interruptCond&FDC_CMD_BIT_FI_IMMEDIATE == 0 {
		f.clearIRQ()
	}

	f.cr = b
	f.cmdType = typ
	f.command = commandFromByte(b)
	f.state = FDC_SUB_PREPARE
	f.replacePossible = true
	f.stepCount = 0
	f.statusTypeI = typ == 1

	f.str |= FDC_STR_BUSY
	f.str &^= FDC_STR_RNF | FDC_STR_CRC_ERROR | FDC_STR_WPRT

	motorWasOn := f.str&FDC_STR_MOTOR_ON != 0
	f.str |= FDC_STR_MOTOR_ON
	f.motorOff = false
	if !motorWasOn {
		if d := f.selectedDrive(); d != nil && d.Enabled && d.DiskInserted {
			f.seedIndexPulse(d)
		}
	}
	f.spinUpNeeded = b&FDC_CMD_BIT_NO_SPINUP == 0 && !motorWasOn

	switch typ {
	case 1:
		f.schedule(FDC_DELAY_CYCLE_TYPE_I_PREPARE)
	case 2:
		f.schedule(FDC_DELAY_CYCLE_TYPE_II_PREPARE)
	default:
		f.schedule(FDC_DELAY_CYCLE_TYPE_III_PREPARE)
	}
}

// forceInterrupt handles the type IV command, accepted at any time. The
// low four bits latch the interrupt condition. A running command is ended
// with its status untouched; from idle the status switches to the type I
// view. A condition mask of zero clears everything, including the
// immediate latch, without raising IRQ.
func (f *FDC) forceInterrupt(b uint8) {
	wasBusy := f.str&FDC_STR_BUSY != 0

	f.cr = b
	f.interruptCond = b & FDC_CMD_FI_COND_MASK
	if b&FDC_CMD_BIT_FI_IMMEDIATE != 0 {
		f.setIRQ()
	}

	if wasBusy {
		f.str &^= FDC_STR_BUSY
		f.command = FDC_COMMAND_NULL
		f.state = FDC_SUB_PREPARE
		f.replacePossible = false
	} else {
		f.statusTypeI = true
	}

	if f.str&FDC_STR_MOTOR_ON != 0 {
		f.motorOff = true
		f.indexPulseCount = 0
		f.schedule(FDC_DELAY_CYCLE_TYPE_IV_PREPARE)
	}
}

// ------------------------------------------------------------------------------
// Shared phases
// ------------------------------------------------------------------------------

// motorPhase runs the prepare and spin-up sub-states common to type I, II
// and III commands. proceed=false means the caller returns the delay;
// once the motor phase is over the command-specific states run and the
// replace-possible window is closed.
func (f *FDC) motorPhase() (delay uint32, proceed bool) {
	switch f.state {
	case FDC_SUB_PREPARE:
		if f.spinUpNeeded {
			f.str &^= FDC_STR_SPIN_UP
			f.indexPulseCount = 0
			f.state = FDC_SUB_SPIN_UP
			return FDC_DELAY_CYCLE_REFRESH_INDEX_PULSE, false
		}
		f.state = FDC_SUB_MAIN
		f.replacePossible = false
		return 0, false
	case FDC_SUB_SPIN_UP:
		if f.indexPulseCount >= FDC_SPINUP_INDEX_PULSES {
			f.str |= FDC_STR_SPIN_UP
			f.state = FDC_SUB_MAIN
			f.replacePossible = false
			return 0, false
		}
		return FDC_DELAY_CYCLE_REFRESH_INDEX_PULSE, false
	}
	return 0, true
}

// msToFdcCycles converts milliseconds to controller cycles.
func (f *FDC) msToFdcCycles(ms uint32) uint32 {
	return ms * f.machine.fdcFreq / 1000
}

// stepRateCycles returns the step delay selected by the low command bits.
func (f *FDC) stepRateCycles() uint32 {
	return f.msToFdcCycles(fdcStepRateMs[f.cr&FDC_CMD_BIT_STEP_RATE])
}

// headSettleCycles is the 15ms head settle delay.
func (f *FDC) headSettleCycles() uint32 {
	return f.msToFdcCycles(FDC_DELAY_MS_HEAD_SETTLE)
}

// complete is the common completion path: clear BUSY, raise IRQ and hand
// over to the motor-stop timer.
func (f *FDC) complete(raiseIRQ bool) uint32 {
	f.str &^= FDC_STR_BUSY
	f.command = FDC_COMMAND_NULL
	f.state = FDC_SUB_PREPARE
	f.replacePossible = false
	if raiseIRQ {
		f.setIRQ()
	}
	f.motorOff = true
	f.indexPulseCount = 0
	return FDC_DELAY_CYCLE_REFRESH_INDEX_PULSE
}

// updateMotorStop counts nine index pulses after a completed command, then
// drops the motor bit. With no disk spinning there are no pulses and the
// motor line stays up, as on the real chip.
func (f *FDC) updateMotorStop() uint32 {
	if f.indexPulseCount >= FDC_MOTOR_OFF_INDEX_PULSES {
		f.str &^= FDC_STR_MOTOR_ON
		f.motorOff = false
		return 0
	}
	return FDC_DELAY_CYCLE_REFRESH_INDEX_PULSE
}

// verifyEntry finishes a type I command, running the verify phase first
// when the command asked for one.
func (f *FDC) verifyEntry() uint32 {
	if f.cr&FDC_CMD_BIT_VERIFY == 0 {
		return f.complete(true)
	}
	f.indexPulseCount = 0
	f.state = FDC_SUB_VERIFY_NEXT_HEADER
	return f.headSettleCycles()
}

// updateVerify is the type I verify phase: compare ID field track bytes
// against the track register for up to five revolutions.
func (f *FDC) updateVerify() uint32 {
	switch f.state {
	case FDC_SUB_VERIFY_NEXT_HEADER:
		if !f.driveReady() {
			return FDC_DELAY_CYCLE_WAIT_NO_DRIVE
		}
		if f.indexPulseCount > FDC_RNF_REVOLUTIONS {
			f.str |= FDC_STR_RNF
			return f.complete(true)
		}
		delay := f.nextHeader()
		f.state = FDC_SUB_VERIFY_CHECK_HEADER
		return delay
	case FDC_SUB_VERIFY_CHECK_HEADER:
		if !f.driveReady() {
			f.state = FDC_SUB_VERIFY_NEXT_HEADER
			return 0
		}
		id := f.readIDField()
		if id.Track == f.tr {
			f.str &^= FDC_STR_RNF
			return f.complete(true)
		}
		f.state = FDC_SUB_VERIFY_NEXT_HEADER
		return 0
	}
	return f.complete(true)
}

// nextHeader computes the delay until the next ID field passes under the
// head and records which sector slot that is. Only called with a ready
// drive.
func (f *FDC) nextHeader() uint32 {
	d := f.selectedDrive()
	spt := d.image.SectorsPerTrack()
	pos, _ := f.bytesSinceIndex(d)
	bc := f.byteCycles(d)

	for n := 0; n < spt; n++ {
		hp := FDC_TRACK_GAP1 + n*FDC_TRACK_SECTOR_SLOT + FDC_TRACK_ID_OFFSET
		if hp > pos {
			f.headerSector = n
			return uint32(hp-pos) * bc
		}
	}
	// Past the last header: wrap to the first one after the index
	f.headerSector = 0
	tb := f.trackBytes(d)
	hp := FDC_TRACK_GAP1 + FDC_TRACK_ID_OFFSET
	return uint32(tb-pos+hp) * bc
}

// readIDField synthesizes the ID field under the head and stores it in the
// next-sector-id shadow. A side that does not exist on the media yields
// six random bytes, matching what an unformatted surface reads like.
func (f *FDC) readIDField() idField {
	d := f.selectedDrive()
	var id idField
	if d == nil || d.image == nil || int(f.side) >= d.image.SidesPerDisk() {
		id.Track = uint8(rand.Intn(256))
		id.Side = uint8(rand.Intn(256))
		id.Sector = uint8(rand.Intn(256))
		id.Length = uint8(rand.Intn(256))
		id.CRCHi = uint8(rand.Intn(256))
		id.CRCLo = uint8(rand.Intn(256))
	} else {
		id.Track = uint8(d.HeadTrack)
		id.Side = uint8(f.side)
		id.Sector = uint8(f.headerSector + 1)
		id.Length = FDC_SECTOR_LEN_CODE
		crc := crc16CCITT([]byte{0xA1, 0xA1, 0xA1, FDC_IAM_BYTE,
			id.Track, id.Side, id.Sector, id.Length})
		id.CRCHi = uint8(crc >> 8)
		id.CRCLo = uint8(crc)
	}
	f.nextID = id
	return id
}

// ------------------------------------------------------------------------------
// Type I - positioning
// ------------------------------------------------------------------------------

func (f *FDC) updateRestore() uint32 {
	if delay, proceed := f.motorPhase(); !proceed {
		return delay
	}
	switch f.state {
	case FDC_SUB_MAIN:
		f.stepCount = 0
		f.stepDirection = -1
		f.state = FDC_SUB_STEP
		return 0
	case FDC_SUB_STEP:
		d := f.selectedDrive()
		if d != nil && d.Enabled && d.HeadTrack == 0 {
			f.tr = 0
			return f.verifyEntry()
		}
		if f.stepCount >= FDC_RESTORE_MAX_STEPS {
			f.str |= FDC_STR_RNF
			return f.complete(true)
		}
		f.stepCount++
		f.tr--
		if d != nil && d.HeadTrack > 0 {
			d.HeadTrack--
		}
		return f.stepRateCycles()
	}
	return f.updateVerify()
}

func (f *FDC) updateSeek() uint32 {
	if delay, proceed := f.motorPhase(); !proceed {
		return delay
	}
	switch f.state {
	case FDC_SUB_MAIN:
		if f.dr > f.tr {
			f.stepDirection = 1
		} else if f.dr < f.tr {
			f.stepDirection = -1
		}
		f.state = FDC_SUB_STEP
		return 0
	case FDC_SUB_STEP:
		if f.tr == f.dr {
			return f.verifyEntry()
		}
		f.tr += uint8(f.stepDirection)
		f.moveHead(int(f.stepDirection))
		return f.stepRateCycles()
	}
	return f.updateVerify()
}

func (f *FDC) updateStep() uint32 {
	if delay, proceed := f.motorPhase(); !proceed {
		return delay
	}
	switch f.state {
	case FDC_SUB_MAIN:
		switch f.command {
		case FDC_COMMAND_STEP_IN:
			f.stepDirection = 1
		case FDC_COMMAND_STEP_OUT:
			f.stepDirection = -1
		}
		f.moveHead(int(f.stepDirection))
		if f.cr&FDC_CMD_BIT_UPDATE_TRK != 0 {
			f.tr += uint8(f.stepDirection)
		}
		f.state = FDC_SUB_STEP
		return f.stepRateCycles()
	case FDC_SUB_STEP:
		return f.verifyEntry()
	}
	return f.updateVerify()
}

// moveHead steps the physical head, clamped at track 0 and the mechanical
// stop. No movement happens at the clamps.
func (f *FDC) moveHead(dir int) {
	d := f.selectedDrive()
	if d == nil {
		return
	}
	t := d.HeadTrack + dir
	if t < 0 || t > FDC_HEAD_TRACK_MAX {
		return
	}
	d.HeadTrack = t
}

// ------------------------------------------------------------------------------
// Type II - sector transfer
// ------------------------------------------------------------------------------

func (f *FDC) updateReadSector() uint32 {
	if delay, proceed := f.motorPhase(); !proceed {
		return delay
	}
	switch f.state {
	case FDC_SUB_MAIN:
		f.indexPulseCount = 0
		if f.cr&FDC_CMD_BIT_HEAD_LOAD != 0 {
			f.state = FDC_SUB_HEAD_LOAD
			return f.headSettleCycles()
		}
		f.state = FDC_SUB_NEXT_HEADER
		return 0
	case FDC_SUB_HEAD_LOAD:
		f.state = FDC_SUB_NEXT_HEADER
		return 0
	case FDC_SUB_NEXT_HEADER:
		if !f.driveReady() {
			return FDC_DELAY_CYCLE_WAIT_NO_DRIVE
		}
		if f.indexPulseCount > FDC_RNF_REVOLUTIONS {
			f.str |= FDC_STR_RNF
			return f.complete(true)
		}
		delay := f.nextHeader()
		f.state = FDC_SUB_CHECK_HEADER
		return delay
	case FDC_SUB_CHECK_HEADER:
		if !f.driveReady() {
			f.state = FDC_SUB_NEXT_HEADER
			return 0
		}
		id := f.readIDField()
		if id.Sector != f.sr {
			f.state = FDC_SUB_NEXT_HEADER
			return 0
		}
		d := f.selectedDrive()
		data, err := d.image.ReadSector(d.HeadTrack, int(f.side), int(f.sr))
		if err != nil {
			f.state = FDC_SUB_NEXT_HEADER
			return 0
		}
		f.bufferLen = copy(f.buffer, data)
		f.bufferPos = 0
		f.state = FDC_SUB_TRANSFER
		return FDC_TRACK_ID_TO_DATA * f.byteCycles(d)
	case FDC_SUB_TRANSFER:
		f.DMA.Push(f.buffer[f.bufferPos])
		f.bufferPos++
		d := f.selectedDrive()
		if f.bufferPos < f.bufferLen {
			return f.byteCycles(d)
		}
		if f.cr&FDC_CMD_BIT_MULTIPLE != 0 {
			f.sr++
			f.indexPulseCount = 0
			f.state = FDC_SUB_NEXT_HEADER
			return f.byteCycles(d)
		}
		return f.complete(true)
	}
	return f.complete(true)
}

func (f *FDC) updateWriteSector() uint32 {
	if delay, proceed := f.motorPhase(); !proceed {
		return delay
	}
	switch f.state {
	case FDC_SUB_MAIN:
		d := f.selectedDrive()
		if d != nil && d.image != nil && d.image.WriteProtected() {
			f.str |= FDC_STR_WPRT
			return f.complete(true)
		}
		f.indexPulseCount = 0
		if f.cr&FDC_CMD_BIT_HEAD_LOAD != 0 {
			f.state = FDC_SUB_HEAD_LOAD
			return f.headSettleCycles()
		}
		f.state = FDC_SUB_NEXT_HEADER
		return 0
	case FDC_SUB_HEAD_LOAD:
		f.state = FDC_SUB_NEXT_HEADER
		return 0
	case FDC_SUB_NEXT_HEADER:
		if !f.driveReady() {
			return FDC_DELAY_CYCLE_WAIT_NO_DRIVE
		}
		if f.indexPulseCount > FDC_RNF_REVOLUTIONS {
			f.str |= FDC_STR_RNF
			return f.complete(true)
		}
		delay := f.nextHeader()
		f.state = FDC_SUB_CHECK_HEADER
		return delay
	case FDC_SUB_CHECK_HEADER:
		if !f.driveReady() {
			f.state = FDC_SUB_NEXT_HEADER
			return 0
		}
		id := f.readIDField()
		if id.Sector != f.sr {
			f.state = FDC_SUB_NEXT_HEADER
			return 0
		}
		d := f.selectedDrive()
		data := make([]byte, DMA_SECTOR_SIZE)
		if f.DMA.SectorCount > 0 {
			ram := f.machine.Bus.GetMemory()
			for i := range data {
				addr := (f.DMA.Address() + uint32(i)) & ST_ADDR_MASK
				if int(addr) < len(ram) {
					data[i] = ram[addr]
				}
			}
		}
		if err := d.image.WriteSector(d.HeadTrack, int(f.side), int(f.sr), data); err != nil {
			f.state = FDC_SUB_NEXT_HEADER
			return 0
		}
		f.bufferLen = DMA_SECTOR_SIZE
		f.bufferPos = 0
		f.state = FDC_SUB_TRANSFER
		return FDC_TRACK_ID_TO_DATA * f.byteCycles(d)
	case FDC_SUB_TRANSFER:
		// The image already holds the sector; the FIFO is drained byte by
		// byte so the DMA address and sector accounting stay consistent.
		f.DMA.Pull()
		f.bufferPos++
		d := f.selectedDrive()
		if f.bufferPos < f.bufferLen {
			return f.byteCycles(d)
		}
		if f.cr&FDC_CMD_BIT_MULTIPLE != 0 {
			f.sr++
			f.indexPulseCount = 0
			f.state = FDC_SUB_NEXT_HEADER
			return f.byteCycles(d)
		}
		return f.complete(true)
	}
	return f.complete(true)
}

// ------------------------------------------------------------------------------
// Type III - raw track and address
// ------------------------------------------------------------------------------

func (f *FDC) updateReadAddress() uint32 {
	if delay, proceed := f.motorPhase(); !proceed {
		return delay
	}
	switch f.state {
	case FDC_SUB_MAIN:
		f.indexPulseCount = 0
		if f.cr&FDC_CMD_BIT_HEAD_LOAD != 0 {
			f.state = FDC_SUB_HEAD_LOAD
			return f.headSettleCycles()
		}
		f.state = FDC_SUB_NEXT_HEADER
		return 0
	case FDC_SUB_HEAD_LOAD:
		f.state = FDC_SUB_NEXT_HEADER
		return 0
	case FDC_SUB_NEXT_HEADER:
		if !f.driveReady() {
			return FDC_DELAY_CYCLE_WAIT_NO_DRIVE
		}
		delay := f.nextHeader()
		f.state = FDC_SUB_CHECK_HEADER
		return delay
	case FDC_SUB_CHECK_HEADER:
		if !f.driveReady() {
			f.state = FDC_SUB_NEXT_HEADER
			return 0
		}
		id := f.readIDField()
		f.buffer[0] = id.Track
		f.buffer[1] = id.Side
		f.buffer[2] = id.Sector
		f.buffer[3] = id.Length
		f.buffer[4] = id.CRCHi
		f.buffer[5] = id.CRCLo
		// The WD1772 copies the ID track byte into the sector register
		f.sr = id.Track
		f.bufferLen = FDC_ID_FIELD_BYTES
		f.bufferPos = 0
		f.state = FDC_SUB_TRANSFER
		return 0
	case FDC_SUB_TRANSFER:
		f.DMA.Push(f.buffer[f.bufferPos])
		f.bufferPos++
		if f.bufferPos < f.bufferLen {
			return f.byteCycles(f.selectedDrive())
		}
		return f.complete(true)
	}
	return f.complete(true)
}

func (f *FDC) updateReadTrack() uint32 {
	if delay, proceed := f.motorPhase(); !proceed {
		return delay
	}
	switch f.state {
	case FDC_SUB_MAIN:
		if f.cr&FDC_CMD_BIT_HEAD_LOAD != 0 {
			f.state = FDC_SUB_HEAD_LOAD
			return f.headSettleCycles()
		}
		f.state = FDC_SUB_WAIT_INDEX
		return 0
	case FDC_SUB_HEAD_LOAD:
		f.state = FDC_SUB_WAIT_INDEX
		return 0
	case FDC_SUB_WAIT_INDEX:
		if !f.driveReady() {
			return FDC_DELAY_CYCLE_WAIT_NO_DRIVE
		}
		d := f.selectedDrive()
		pos, _ := f.indexPos(d)
		period := f.rotationPeriod(d)
		f.state = FDC_SUB_TRACK_START
		// Waiting a whole revolution when the pulse is almost due avoids
		// a 0/1 cycle rounding hazard at the crossing itself
		wait := period - pos
		if wait <= 1 {
			wait += period
		}
		return uint32(wait)
	case FDC_SUB_TRACK_START:
		f.assembleTrack()
		f.bufferPos = 0
		f.state = FDC_SUB_TRANSFER
		return 0
	case FDC_SUB_TRANSFER:
		f.DMA.Push(f.buffer[f.bufferPos])
		f.bufferPos++
		if f.bufferPos < f.bufferLen {
			return f.byteCycles(f.selectedDrive())
		}
		return f.complete(true)
	}
	return f.complete(true)
}

// updateWriteTrack is the unimplemented formatter: record-not-found and out.
func (f *FDC) updateWriteTrack() uint32 {
	if delay, proceed := f.motorPhase(); !proceed {
		return delay
	}
	f.str |= FDC_STR_RNF
	return f.complete(true)
}

// assembleTrack builds one full raw track in the work buffer: gaps, sync
// runs, address marks, ID and data fields with their CRCs, 0x4E filler to
// the boundary. A missing side reads as noise.
func (f *FDC) assembleTrack() {
	d := f.selectedDrive()
	tb := f.trackBytes(d)
	f.bufferLen = tb

	if d.image == nil || int(f.side) >= d.image.SidesPerDisk() {
		for i := 0; i < tb; i++ {
			f.buffer[i] = uint8(rand.Intn(256))
		}
		return
	}

	p := 0
	fill := func(b uint8, n int) {
		for i := 0; i < n; i++ {
			f.buffer[p] = b
			p++
		}
	}

	fill(0x4E, FDC_TRACK_GAP1)
	spt := d.image.SectorsPerTrack()
	for n := 0; n < spt; n++ {
		fill(0x00, FDC_TRACK_GAP2)
		fill(0xA1, FDC_TRACK_SYNC_BYTES)
		f.buffer[p] = FDC_IAM_BYTE
		p++
		id := []byte{uint8(d.HeadTrack), uint8(f.side), uint8(n + 1), FDC_SECTOR_LEN_CODE}
		copy(f.buffer[p:], id)
		p += len(id)
		crc := crc16CCITT(append([]byte{0xA1, 0xA1, 0xA1, FDC_IAM_BYTE}, id...))
		f.buffer[p] = uint8(crc >> 8)
		f.buffer[p+1] = uint8(crc)
		p += 2
		fill(0x4E, FDC_TRACK_GAP3A)
		fill(0x00, FDC_TRACK_GAP3B)
		fill(0xA1, FDC_TRACK_SYNC_BYTES)
		f.buffer[p] = FDC_DAM_BYTE
		p++
		data, err := d.image.ReadSector(d.HeadTrack, int(f.side), n+1)
		if err != nil {
			data = make([]byte, DMA_SECTOR_SIZE)
		}
		copy(f.buffer[p:], data)
		crc = crc16CCITT(append([]byte{0xA1, 0xA1, 0xA1, FDC_DAM_BYTE}, data...))
		p += DMA_SECTOR_SIZE
		f.buffer[p] = uint8(crc >> 8)
		f.buffer[p+1] = uint8(crc)
		p += 2
		fill(0x4E, FDC_TRACK_GAP4)
	}
	fill(0x4E, tb-p)
}

// crc16CCITT is the x^16+x^12+x^5+1 CRC over the given bytes, preset 0xFFFF.
func crc16CCITT(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
