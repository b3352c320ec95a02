// fdc_drive.go - Floppy drive model and angular (index pulse) clock

/*
Each drive tracks its rotational position through a single reference
timestamp: the controller-cycle time of its most recently simulated index
pulse. Zero means "not tracking" (drive empty, deselected or motor off).
Position within the revolution is derived on demand from the global clock,
so the drive needs no per-cycle bookkeeping; the controller just has to
poll often enough (every 500 controller cycles is plenty) to notice index
crossings and advance the reference.

Seeding the reference uses a random back-offset inside one revolution, as
the angular position of real media after motor start is nondeterministic.
*/

package main

import (
	"math/rand"
)

// Drive is the per-drive record. All rotation state lives in
// IndexPulseCycle; everything else is plain configuration.
type Drive struct {
	Enabled      bool
	DiskInserted bool

	RPM     int // x1000, 300000 for the standard 300 RPM mechanism
	Density int // 1/2/4 for DD/HD/ED

	HeadTrack int // Physical head position, clamped to [0, FDC_HEAD_TRACK_MAX]

	// Controller-cycle timestamp of the last witnessed index pulse.
	// 0 = unknown / not tracking.
	IndexPulseCycle uint64

	// End of the media-change transition window, in controller cycles.
	// While it lasts the write-protect sensor reads as obstructed.
	MediaChangeEnd uint64

	image DiskImage
}

// Image returns the drive's disk image backend (nil when empty).
func (d *Drive) Image() DiskImage {
	return d.image
}

// rotationPeriod returns one revolution in controller cycles.
func (f *FDC) rotationPeriod(d *Drive) uint64 {
	rpm := d.RPM
	if rpm == 0 {
		rpm = FDC_RPM_STANDARD
	}
	return uint64(f.machine.fdcFreq) * 60000 / uint64(rpm)
}

// byteCycles returns the controller cycles per MFM byte on this drive.
// Transfers keep ticking at the DD rate if the drive is deselected under
// a running command.
func (f *FDC) byteCycles(d *Drive) uint32 {
	den := FDC_DENSITY_DD
	if d != nil && d.Density != 0 {
		den = d.Density
	}
	return FDC_DELAY_CYCLE_MFM_BYTE / uint32(den)
}

// trackBytes returns the raw byte length of one revolution on this drive.
func (f *FDC) trackBytes(d *Drive) int {
	den := FDC_DENSITY_DD
	if d != nil && d.Density != 0 {
		den = d.Density
	}
	return FDC_TRACK_BYTES_DD * den
}

// indexPos returns controller cycles elapsed since the last index pulse.
// Returns ok=false when the drive is not tracking rotation.
func (f *FDC) indexPos(d *Drive) (uint64, bool) {
	if d.IndexPulseCycle == 0 {
		return 0, false
	}
	now := f.machine.FdcCycles()
	if now < d.IndexPulseCycle {
		return 0, true
	}
	return (now - d.IndexPulseCycle) % f.rotationPeriod(d), true
}

// bytesSinceIndex returns the current angular position in MFM bytes.
func (f *FDC) bytesSinceIndex(d *Drive) (int, bool) {
	pos, ok := f.indexPos(d)
	if !ok {
		return 0, false
	}
	return int(pos / uint64(f.byteCycles(d))), true
}

// indexSignal reports the state of the index line; high for roughly 46
// bytes at the start of each revolution.
func (f *FDC) indexSignal(d *Drive) bool {
	pos, ok := f.indexPos(d)
	if !ok {
		return false
	}
	return pos < uint64(FDC_INDEX_PULSE_BYTES)*uint64(f.byteCycles(d))
}

// seedIndexPulse starts rotation tracking at a random angular position
// inside the current revolution.
func (f *FDC) seedIndexPulse(d *Drive) {
	period := f.rotationPeriod(d)
	now := f.machine.FdcCycles()
	back := uint64(rand.Int63n(int64(period)))
	if back >= now {
		back = now
	}
	d.IndexPulseCycle = now - back
	if d.IndexPulseCycle == 0 {
		d.IndexPulseCycle = 1
	}
}

// tickIndexPulses advances the selected drive's index reference across any
// revolutions the global clock has passed, counting pulses for the
// controller and raising IRQ when a force-interrupt-on-index condition is
// latched. Called from the poll path and before every fresh command.
func (f *FDC) tickIndexPulses() {
	d := f.selectedDrive()
	if d == nil {
		return
	}
	if f.str&FDC_STR_MOTOR_ON == 0 {
		return
	}
	if d.IndexPulseCycle == 0 {
		if d.Enabled && d.DiskInserted {
			f.seedIndexPulse(d)
		}
		return
	}
	period := f.rotationPeriod(d)
	now := f.machine.FdcCycles()
	for now >= d.IndexPulseCycle+period {
		d.IndexPulseCycle += period
		f.indexPulseCount++
		if f.interruptCond&FDC_CMD_BIT_FI_INDEX != 0 {
			f.setIRQ()
		}
	}
}

// selectedDrive returns the selected drive or nil when none is selected.
func (f *FDC) selectedDrive() *Drive {
	if f.driveSel < 0 || int(f.driveSel) >= FDC_DRIVE_COUNT {
		return nil
	}
	return &f.Drives[f.driveSel]
}

// driveReady reports whether the selected drive can produce index pulses
// and sector headers.
func (f *FDC) driveReady() bool {
	d := f.selectedDrive()
	return d != nil && d.Enabled && d.DiskInserted && d.IndexPulseCycle != 0
}

// EnableDrive switches a drive on or off. Idempotent.
func (f *FDC) EnableDrive(drive int, on bool) {
	if drive < 0 || drive >= FDC_DRIVE_COUNT {
		return
	}
	d := &f.Drives[drive]
	if d.Enabled == on {
		return
	}
	d.Enabled = on
	if !on {
		d.IndexPulseCycle = 0
	}
}

// InsertDisk loads an image into a drive. Density is re-derived from the
// image geometry; if the motor is running and this is the selected drive
// the index reference is re-seeded so the command machinery can resume
// transparently, otherwise it is cleared.
func (f *FDC) InsertDisk(drive int, img DiskImage) {
	if drive < 0 || drive >= FDC_DRIVE_COUNT {
		return
	}
	d := &f.Drives[drive]
	d.DiskInserted = true
	d.image = img
	d.Density = deriveDensity(img.SectorsPerTrack())
	d.MediaChangeEnd = f.machine.FdcCycles() + uint64(f.machine.fdcFreq)/2
	if f.str&FDC_STR_MOTOR_ON != 0 && f.selectedDrive() == d {
		f.seedIndexPulse(d)
	} else {
		d.IndexPulseCycle = 0
	}
}

// EjectDisk marks the drive empty and stops rotation tracking.
func (f *FDC) EjectDisk(drive int) {
	if drive < 0 || drive >= FDC_DRIVE_COUNT {
		return
	}
	d := &f.Drives[drive]
	d.DiskInserted = false
	d.image = nil
	d.IndexPulseCycle = 0
	d.MediaChangeEnd = f.machine.FdcCycles() + uint64(f.machine.fdcFreq)/2
}

// SetDriveSide decodes a PSG port A change. Bit 0 selects the side
// (inverted), bits 1-2 select drive 0/1 active low, drive 0 winning ties.
// A drive change clears the old drive's index reference and, with the
// motor on, re-seeds the new one.
func (f *FDC) SetDriveSide(prevPortA, newPortA uint8) {
	if newPortA&PSG_PORTA_SIDE == 0 {
		f.side = 1
	} else {
		f.side = 0
	}

	newSel := int8(-1)
	if newPortA&PSG_PORTA_DRIVE0 == 0 {
		newSel = 0
	} else if newPortA&PSG_PORTA_DRIVE1 == 0 {
		newSel = 1
	}

	if newSel == f.driveSel {
		return
	}
	if old := f.selectedDrive(); old != nil {
		old.IndexPulseCycle = 0
	}
	f.driveSel = newSel
	d := f.selectedDrive()
	if d != nil && f.str&FDC_STR_MOTOR_ON != 0 && d.Enabled && d.DiskInserted {
		f.seedIndexPulse(d)
	}
}

// deriveDensity inspects a sectors-per-track count and picks the density
// factor. Standard DD tracks run 9-11 sectors, HD up to 22, anything
// beyond is ED.
func deriveDensity(sectorsPerTrack int) int {
	switch {
	case sectorsPerTrack <= 11:
		return FDC_DENSITY_DD
	case sectorsPerTrack <= 22:
		return FDC_DENSITY_HD
	default:
		return FDC_DENSITY_ED
	}
}

// mediaChangeActive reports whether the drive is inside the insert/eject
// transition window during which the write-protect sensor is obstructed.
func (f *FDC) mediaChangeActive(d *Drive) bool {
	return d.MediaChangeEnd != 0 && f.machine.FdcCycles() < d.MediaChangeEnd
}
