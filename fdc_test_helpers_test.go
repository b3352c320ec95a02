// fdc_test_helpers_test.go - Shared helpers for the FDC core test suite

package main

import (
	"testing"
)

// newTestMachine builds a plain 1MB ST with a blank double-density disk
// (80 tracks, 2 sides, 9 sectors) in drive 0 and drive 0 / side 0
// selected through the PSG latch.
func newTestMachine(t *testing.T) *STMachine {
	t.Helper()
	m := NewSTMachine(MachineConfig{RAMSize: ST_RAM_SIZE_1MB})
	m.FDC.InsertDisk(0, NewBlankSTImage(80, 2, 9))
	selectDrive0(m)
	return m
}

// newEmptyTestMachine builds the same machine with no disk in any drive.
func newEmptyTestMachine(t *testing.T) *STMachine {
	t.Helper()
	m := NewSTMachine(MachineConfig{RAMSize: ST_RAM_SIZE_1MB})
	selectDrive0(m)
	return m
}

// selectDrive0 selects drive 0, side 0 through PSG port A.
func selectDrive0(m *STMachine) {
	m.Bus.Write8(PSG_REG_SELECT, PSG_REG_PORTA)
	m.Bus.Write8(PSG_REG_DATA, PSG_PORTA_SIDE|PSG_PORTA_DRIVE1)
}

// deselectDrives raises all PSG port A select lines.
func deselectDrives(m *STMachine) {
	m.Bus.Write8(PSG_REG_SELECT, PSG_REG_PORTA)
	m.Bus.Write8(PSG_REG_DATA, PSG_PORTA_SIDE|PSG_PORTA_DRIVE0|PSG_PORTA_DRIVE1)
}

// writeFDCRegister writes a controller register through the 0xFF8604
// window, selecting it with the DMA mode word first.
func writeFDCRegister(m *STMachine, sel uint16, val uint16) {
	m.Bus.Write16(FDC_DMA_MODE, sel)
	m.Bus.Write16(FDC_DMA_DATA, val)
}

// issueCommand writes the FDC command register.
func issueCommand(m *STMachine, cmd uint8) {
	writeFDCRegister(m, 0, uint16(cmd))
}

// readStatus reads the FDC status register through the window.
func readStatus(m *STMachine) uint8 {
	m.Bus.Write16(FDC_DMA_MODE, 0)
	return uint8(m.Bus.Read16(FDC_DMA_DATA))
}

// setDMAAddress points the DMA at the given RAM address.
func setDMAAddress(m *STMachine, addr uint32) {
	m.Bus.Write8(DMA_ADDR_HIGH, uint8(addr>>16))
	m.Bus.Write8(DMA_ADDR_MID, uint8(addr>>8))
	m.Bus.Write8(DMA_ADDR_LOW, uint8(addr))
}

// setSectorCount loads the DMA sector counter through the window.
func setSectorCount(m *STMachine, n uint16) {
	writeFDCRegister(m, DMA_MODE_SECTOR_COUNT, n)
	m.Bus.Write16(FDC_DMA_MODE, 0)
}

// runUntilIdle runs the machine until the controller drops BUSY, up to the
// given cycle budget.
func runUntilIdle(t *testing.T, m *STMachine, budget uint64) {
	t.Helper()
	const slice = 100000
	for spent := uint64(0); spent < budget; spent += slice {
		m.Run(slice)
		if m.FDC.str&FDC_STR_BUSY == 0 {
			return
		}
	}
	t.Fatalf("controller still busy after %d cycles (STR=%02X, command=%d, state=%d)",
		budget, m.FDC.str, m.FDC.command, m.FDC.state)
}

// sectorPattern fills a 512-byte sector with a recognizable pattern.
func sectorPattern(seed uint8) []byte {
	data := make([]byte, IMAGE_SECTOR_SIZE)
	for i := range data {
		data[i] = seed ^ uint8(i) ^ uint8(i>>8)
	}
	return data
}
