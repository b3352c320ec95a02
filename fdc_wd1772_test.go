// fdc_wd1772_test.go - WD1772 command state machine tests

package main

import (
	"testing"
)

// TestFDC_CommandClassification tests the top-nibble command decode.
func TestFDC_CommandClassification(t *testing.T) {
	cases := []struct {
		cmd     uint8
		typ     int
		command fdcCommand
	}{
		{0x00, 1, FDC_COMMAND_RESTORE},
		{0x13, 1, FDC_COMMAND_SEEK},
		{0x33, 1, FDC_COMMAND_STEP},
		{0x58, 1, FDC_COMMAND_STEP_IN},
		{0x78, 1, FDC_COMMAND_STEP_OUT},
		{0x80, 2, FDC_COMMAND_READ_SECTOR},
		{0x98, 2, FDC_COMMAND_READ_SECTOR},
		{0xA8, 2, FDC_COMMAND_WRITE_SECTOR},
		{0xC8, 3, FDC_COMMAND_READ_ADDRESS},
		{0xE8, 3, FDC_COMMAND_READ_TRACK},
		{0xF0, 3, FDC_COMMAND_WRITE_TRACK},
	}
	for _, c := range cases {
		if typ := classifyCommand(c.cmd); typ != c.typ {
			t.Errorf("command %02X: expected type %d, got %d", c.cmd, c.typ, typ)
		}
		if cmd := commandFromByte(c.cmd); cmd != c.command {
			t.Errorf("command %02X: expected identity %d, got %d", c.cmd, c.command, cmd)
		}
	}
	if typ := classifyCommand(0xD8); typ != 4 {
		t.Errorf("Expected 0xD8 to classify as type IV, got %d", typ)
	}
}

// TestFDC_RestoreFromTrack5 tests boundary scenario: restore with
// spin-up from head position 5, motor off.
func TestFDC_RestoreFromTrack5(t *testing.T) {
	m := newTestMachine(t)
	f := m.FDC
	f.Drives[0].HeadTrack = 5
	f.tr = 5

	issueCommand(m, 0x00) // restore, spin-up enabled, 6ms rate
	if f.str&FDC_STR_BUSY == 0 {
		t.Fatal("Expected BUSY set right after the command write")
	}
	if f.command != FDC_COMMAND_RESTORE {
		t.Fatalf("Expected restore running, got command %d", f.command)
	}

	// Six revolutions of spin-up plus five 6ms steps
	runUntilIdle(t, m, 40000000)

	if f.Drives[0].HeadTrack != 0 {
		t.Errorf("Expected head at track 0, got %d", f.Drives[0].HeadTrack)
	}
	if f.tr != 0 {
		t.Errorf("Expected track register 0, got %d", f.tr)
	}
	if !m.IRQPending() {
		t.Error("Expected IRQ asserted at completion")
	}
	status := readStatus(m)
	if status&FDC_STR_BUSY != 0 {
		t.Error("Expected BUSY clear after completion")
	}
	if status&FDC_STR_TR00 == 0 {
		t.Error("Expected TR00 set after a successful restore")
	}
	if status&FDC_STR_SPIN_UP == 0 {
		t.Error("Expected spin-up complete bit set")
	}
	if status&FDC_STR_MOTOR_ON == 0 {
		t.Error("Expected motor still on right after completion")
	}
}

// TestFDC_RestoreWithoutDriveSetsRNF tests the 255-step give-up path.
func TestFDC_RestoreWithoutDriveSetsRNF(t *testing.T) {
	m := newEmptyTestMachine(t)
	deselectDrives(m)
	f := m.FDC

	issueCommand(m, 0x08) // restore, spin-up disabled
	runUntilIdle(t, m, 30000000)
	if f.str&FDC_STR_RNF == 0 {
		t.Error("Expected RNF after 255 fruitless steps")
	}
}

// TestFDC_SeekMovesToDataRegister tests seek completion and the track
// register walk.
func TestFDC_SeekMovesToDataRegister(t *testing.T) {
	m := newTestMachine(t)
	f := m.FDC

	writeFDCRegister(m, DMA_MODE_A1|DMA_MODE_A0, 20) // data register = 20
	issueCommand(m, 0x18)                            // seek, no verify, spin-up disabled
	runUntilIdle(t, m, 20000000)

	if f.tr != 20 {
		t.Errorf("Expected track register 20, got %d", f.tr)
	}
	if f.Drives[0].HeadTrack != 20 {
		t.Errorf("Expected head at track 20, got %d", f.Drives[0].HeadTrack)
	}
}

// TestFDC_SeekWithVerifyMatchesIDField tests the type I verify phase:
// after stepping, the ID fields under the head carry the destination
// track number and the command completes without RNF.
func TestFDC_SeekWithVerifyMatchesIDField(t *testing.T) {
	m := newTestMachine(t)
	f := m.FDC

	writeFDCRegister(m, DMA_MODE_A1|DMA_MODE_A0, 20)
	issueCommand(m, 0x1C) // seek with verify, spin-up disabled
	runUntilIdle(t, m, 40000000)

	if f.str&FDC_STR_RNF != 0 {
		t.Error("Expected verify to match the destination track")
	}
	if f.Drives[0].HeadTrack != 20 || f.tr != 20 {
		t.Errorf("Expected head and track register at 20, got %d and %d",
			f.Drives[0].HeadTrack, f.tr)
	}
}

// TestFDC_SeekClampsPhysicalHead tests that the head stops at the
// mechanical limit while the register keeps counting.
func TestFDC_SeekClampsPhysicalHead(t *testing.T) {
	m := newTestMachine(t)
	f := m.FDC

	writeFDCRegister(m, DMA_MODE_A1|DMA_MODE_A0, 120)
	issueCommand(m, 0x18)
	runUntilIdle(t, m, 60000000)

	if f.tr != 120 {
		t.Errorf("Expected track register 120, got %d", f.tr)
	}
	if f.Drives[0].HeadTrack != FDC_HEAD_TRACK_MAX {
		t.Errorf("Expected head clamped at %d, got %d", FDC_HEAD_TRACK_MAX, f.Drives[0].HeadTrack)
	}
}

// TestFDC_StepClampsAtLimits tests invariant 5: step-in at 90 and
// step-out at 0 do not move the head.
func TestFDC_StepClampsAtLimits(t *testing.T) {
	m := newTestMachine(t)
	f := m.FDC

	f.Drives[0].HeadTrack = FDC_HEAD_TRACK_MAX
	issueCommand(m, 0x48) // step-in, no update, spin-up disabled
	runUntilIdle(t, m, 2000000)
	if f.Drives[0].HeadTrack != FDC_HEAD_TRACK_MAX {
		t.Errorf("Expected head still at %d, got %d", FDC_HEAD_TRACK_MAX, f.Drives[0].HeadTrack)
	}

	f.Drives[0].HeadTrack = 0
	issueCommand(m, 0x68) // step-out, no update, spin-up disabled
	runUntilIdle(t, m, 2000000)
	if f.Drives[0].HeadTrack != 0 {
		t.Errorf("Expected head still at 0, got %d", f.Drives[0].HeadTrack)
	}
}

// TestFDC_StepUpdatesTrackRegisterWhenAsked tests the update-track bit.
func TestFDC_StepUpdatesTrackRegisterWhenAsked(t *testing.T) {
	m := newTestMachine(t)
	f := m.FDC
	f.Drives[0].HeadTrack = 10
	f.tr = 10

	issueCommand(m, 0x58) // step-in with update
	runUntilIdle(t, m, 2000000)
	if f.tr != 11 || f.Drives[0].HeadTrack != 11 {
		t.Errorf("Expected track register and head at 11, got %d and %d",
			f.tr, f.Drives[0].HeadTrack)
	}

	issueCommand(m, 0x48) // step-in without update
	runUntilIdle(t, m, 2000000)
	if f.tr != 11 {
		t.Errorf("Expected track register unchanged at 11, got %d", f.tr)
	}
	if f.Drives[0].HeadTrack != 12 {
		t.Errorf("Expected head at 12, got %d", f.Drives[0].HeadTrack)
	}
}

// TestFDC_BusyMatchesCommand tests invariant 1: BUSY set exactly while a
// command tag is live.
func TestFDC_BusyMatchesCommand(t *testing.T) {
	m := newTestMachine(t)
	f := m.FDC

	if f.str&FDC_STR_BUSY != 0 || f.command != FDC_COMMAND_NULL {
		t.Fatal("Expected idle controller with no command")
	}
	issueCommand(m, 0x08)
	if f.str&FDC_STR_BUSY == 0 || f.command == FDC_COMMAND_NULL {
		t.Error("Expected BUSY and a live command after the write")
	}
	runUntilIdle(t, m, 30000000)
	if f.str&FDC_STR_BUSY != 0 || f.command != FDC_COMMAND_NULL {
		t.Error("Expected BUSY clear and command Null after completion")
	}
}

// TestFDC_CommandReplacementWindow tests boundary scenario 6: a same-type
// command replaces the running one only inside the prepare/spin-up phase.
func TestFDC_CommandReplacementWindow(t *testing.T) {
	m := newTestMachine(t)
	f := m.FDC

	// Motor off: spin-up keeps the replace window open
	writeFDCRegister(m, DMA_MODE_A1|DMA_MODE_A0, 7) // data register = 7
	issueCommand(m, 0x00)                           // restore with spin-up
	m.Run(1000)
	issueCommand(m, 0x10) // seek, still inside the window
	if f.command != FDC_COMMAND_SEEK {
		t.Fatalf("Expected the seek to replace the restore, got command %d", f.command)
	}
	runUntilIdle(t, m, 40000000)
	if f.tr != 7 {
		t.Errorf("Expected the replacing seek to finish at track 7, got %d", f.tr)
	}

	// Past the window: motor already on, prepare long gone
	writeFDCRegister(m, DMA_MODE_A1|DMA_MODE_A0, 60)
	issueCommand(m, 0x19) // seek at 12ms rate, spin-up disabled
	m.Run(2000000)        // well past prepare, mid-stepping
	issueCommand(m, 0x08) // restore attempt
	if f.command != FDC_COMMAND_SEEK {
		t.Errorf("Expected the late restore to be ignored, got command %d", f.command)
	}

	// Type mismatch inside a fresh window is ignored too
	runUntilIdle(t, m, 80000000)
	issueCommand(m, 0x00)
	m.Run(10) // prepare delay still pending, window open
	issueCommand(m, 0x88) // read sector over a type I: dropped
	if f.command != FDC_COMMAND_RESTORE {
		t.Errorf("Expected type II write to be dropped, got command %d", f.command)
	}
	runUntilIdle(t, m, 40000000)
}

// TestFDC_ForceInterruptDuringSeek tests boundary scenario 3.
func TestFDC_ForceInterruptDuringSeek(t *testing.T) {
	m := newTestMachine(t)
	f := m.FDC

	writeFDCRegister(m, DMA_MODE_A1|DMA_MODE_A0, 20)
	issueCommand(m, 0x18)
	m.Run(200000) // a few steps in

	issueCommand(m, 0xD8)
	if f.str&FDC_STR_BUSY != 0 {
		t.Error("Expected BUSY clear immediately after force interrupt")
	}
	if !m.IRQPending() {
		t.Error("Expected IRQ asserted by the immediate condition")
	}
	if f.str&FDC_STR_MOTOR_ON == 0 {
		t.Error("Expected the motor still on")
	}
	head := f.Drives[0].HeadTrack
	if head < 0 || head > 20 {
		t.Errorf("Expected head somewhere in [0,20], got %d", head)
	}

	// The immediate condition is latched: status reads do not drop IRQ
	readStatus(m)
	if !m.IRQPending() {
		t.Error("Expected IRQ still asserted while the immediate condition is latched")
	}

	// 0xD0 clears the latch; the next status read drops the line
	issueCommand(m, 0xD0)
	readStatus(m)
	if m.IRQPending() {
		t.Error("Expected IRQ released after 0xD0 and a status read")
	}
}

// TestFDC_ForceInterruptWhileIdleForcesTypeI tests the idle-case status
// view switch.
func TestFDC_ForceInterruptWhileIdleForcesTypeI(t *testing.T) {
	m := newTestMachine(t)
	f := m.FDC

	setDMAAddress(m, 0x10000)
	setSectorCount(m, 1)
	issueCommand(m, 0x88)
	runUntilIdle(t, m, 30000000)
	if f.statusTypeI {
		t.Fatal("Expected type II status view after a read sector")
	}

	issueCommand(m, 0xD0)
	if !f.statusTypeI {
		t.Error("Expected force interrupt from idle to force the type I status view")
	}
	if f.str&FDC_STR_BUSY != 0 {
		t.Error("Expected BUSY still clear")
	}
}

// TestFDC_ForceInterruptOnIndexPulse tests the 0xD4 condition: IRQ rises
// at every index crossing until the condition is cleared.
func TestFDC_ForceInterruptOnIndexPulse(t *testing.T) {
	m := newTestMachine(t)
	f := m.FDC

	issueCommand(m, 0x08) // quick restore to get the motor running
	runUntilIdle(t, m, 30000000)

	issueCommand(m, 0xD4)
	readStatus(m) // drop the completion IRQ; 0xD4 itself raises none
	if m.IRQPending() {
		t.Fatal("Expected no IRQ right after latching the index condition")
	}

	period := f.rotationPeriod(&f.Drives[0])
	m.Run(period + period/4)
	if !m.IRQPending() {
		t.Error("Expected IRQ at the index crossing")
	}
	readStatus(m)
	if m.IRQPending() {
		t.Error("Expected the status read to drop the line")
	}
	m.Run(period)
	if !m.IRQPending() {
		t.Error("Expected IRQ again on the next crossing")
	}

	issueCommand(m, 0xD0) // clear the condition
	readStatus(m)
	m.Run(2 * period)
	if m.IRQPending() {
		t.Error("Expected no further index IRQs after 0xD0")
	}
}

// TestFDC_MotorOffAfterNineRevolutions tests the motor-stop timer.
func TestFDC_MotorOffAfterNineRevolutions(t *testing.T) {
	m := newTestMachine(t)
	f := m.FDC

	issueCommand(m, 0x08) // restore, already at track 0 after one check
	runUntilIdle(t, m, 30000000)
	if f.str&FDC_STR_MOTOR_ON == 0 {
		t.Fatal("Expected motor on right after completion")
	}

	period := f.rotationPeriod(&f.Drives[0])
	m.Run(uint64(FDC_MOTOR_OFF_INDEX_PULSES+2) * period)
	if f.str&FDC_STR_MOTOR_ON != 0 {
		t.Error("Expected motor off after nine index pulses")
	}
}

// TestFDC_SpinUpWaitsSixRevolutions tests the spin-up sequence bounds.
func TestFDC_SpinUpWaitsSixRevolutions(t *testing.T) {
	m := newTestMachine(t)
	f := m.FDC

	issueCommand(m, 0x00) // restore with spin-up, head already at 0
	m.Run(100000)
	if f.str&FDC_STR_SPIN_UP != 0 {
		t.Error("Expected spin-up bit clear during the wait")
	}
	if f.str&FDC_STR_BUSY == 0 {
		t.Error("Expected the command still waiting on spin-up")
	}

	period := f.rotationPeriod(&f.Drives[0])
	m.Run(7 * uint64(period))
	if f.str&FDC_STR_SPIN_UP == 0 {
		t.Error("Expected spin-up complete after six revolutions")
	}
}

// TestFDC_WriteTrackSetsRNF tests the unimplemented formatter path.
func TestFDC_WriteTrackSetsRNF(t *testing.T) {
	m := newTestMachine(t)
	f := m.FDC

	issueCommand(m, 0xF8) // write track, spin-up disabled
	runUntilIdle(t, m, 5000000)
	if f.str&FDC_STR_RNF == 0 {
		t.Error("Expected write track to set RNF")
	}
}

// TestFDC_TrackSectorWritesIgnoredWhileBusy tests register latching rules.
func TestFDC_TrackSectorWritesIgnoredWhileBusy(t *testing.T) {
	m := newTestMachine(t)
	f := m.FDC

	writeFDCRegister(m, DMA_MODE_A0, 33) // track register
	writeFDCRegister(m, DMA_MODE_A1, 5)  // sector register
	if f.tr != 33 || f.sr != 5 {
		t.Fatalf("Expected TR=33 SR=5, got TR=%d SR=%d", f.tr, f.sr)
	}

	issueCommand(m, 0x00) // long spin-up, command stays busy
	writeFDCRegister(m, DMA_MODE_A0, 77)
	writeFDCRegister(m, DMA_MODE_A1, 8)
	if f.tr == 77 || f.sr == 8 {
		t.Error("Expected track/sector writes ignored while busy")
	}
	issueCommand(m, 0xD0)
	runUntilIdle(t, m, 1000000)
}
