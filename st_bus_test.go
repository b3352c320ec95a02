// st_bus_test.go - ST bus access and fault behaviour tests

package main

import (
	"testing"
)

// TestBus_RAMReadWrite tests plain byte and big-endian word RAM access.
func TestBus_RAMReadWrite(t *testing.T) {
	bus := NewSTBus(ST_RAM_SIZE_1MB)

	bus.Write8(0x1000, 0xAB)
	if v := bus.Read8(0x1000); v != 0xAB {
		t.Errorf("Expected 0xAB, got %02X", v)
	}

	bus.Write16(0x2000, 0x1234)
	if v := bus.Read8(0x2000); v != 0x12 {
		t.Errorf("Expected big-endian high byte 0x12, got %02X", v)
	}
	if v := bus.Read8(0x2001); v != 0x34 {
		t.Errorf("Expected big-endian low byte 0x34, got %02X", v)
	}
	if v := bus.Read16(0x2000); v != 0x1234 {
		t.Errorf("Expected 0x1234, got %04X", v)
	}
}

// TestBus_OddWordAccessFaults tests that word access at odd addresses
// raises a bus error like the 68000 does.
func TestBus_OddWordAccessFaults(t *testing.T) {
	bus := NewSTBus(ST_RAM_SIZE_1MB)
	if _, ok := bus.Read16WithFault(0x1001); ok {
		t.Error("Expected bus error for odd word read")
	}
	if ok := bus.Write16WithFault(0x1001, 0); ok {
		t.Error("Expected bus error for odd word write")
	}
}

// TestBus_UnpopulatedReads tests open-bus reads beyond RAM.
func TestBus_UnpopulatedReads(t *testing.T) {
	bus := NewSTBus(ST_RAM_SIZE_1MB)
	if v := bus.Read8(0x700000); v != 0xFF {
		t.Errorf("Expected open-bus 0xFF, got %02X", v)
	}
	// Writes beyond RAM are discarded, not faults
	if ok := bus.Write8WithFault(0x700000, 0x55); !ok {
		t.Error("Expected write beyond RAM to be discarded without fault")
	}
}

// TestBus_ByteAccessToWordRegistersFaults tests the FDC window registers:
// byte access to 0xFF8604/0xFF8606 must bus-error.
func TestBus_ByteAccessToWordRegistersFaults(t *testing.T) {
	m := NewSTMachine(MachineConfig{RAMSize: ST_RAM_SIZE_1MB})
	for _, addr := range []uint32{FDC_DMA_DATA, FDC_DMA_DATA + 1, FDC_DMA_MODE, FDC_DMA_MODE + 1} {
		if _, ok := m.Bus.Read8WithFault(addr); ok {
			t.Errorf("Expected bus error for byte read at %06X", addr)
		}
		if ok := m.Bus.Write8WithFault(addr, 0); ok {
			t.Errorf("Expected bus error for byte write at %06X", addr)
		}
	}
	if _, ok := m.Bus.Read16WithFault(FDC_DMA_DATA); !ok {
		t.Error("Expected word read of 0xFF8604 to succeed")
	}
}

// TestBus_ReservedOffsetsFault tests the unassigned offsets of the
// 0xFF8600 page.
func TestBus_ReservedOffsetsFault(t *testing.T) {
	m := NewSTMachine(MachineConfig{RAMSize: ST_RAM_SIZE_1MB})
	for _, addr := range []uint32{0xFF8600, 0xFF8601, 0xFF8602} {
		if _, ok := m.Bus.Read8WithFault(addr); ok {
			t.Errorf("Expected bus error at %06X", addr)
		}
	}
}

// TestBus_DMAAddressBytes tests the three byte-wide DMA address registers.
func TestBus_DMAAddressBytes(t *testing.T) {
	m := NewSTMachine(MachineConfig{RAMSize: ST_RAM_SIZE_1MB})
	bus := m.Bus

	bus.Write8(DMA_ADDR_HIGH, 0x03)
	bus.Write8(DMA_ADDR_MID, 0x45)
	bus.Write8(DMA_ADDR_LOW, 0x67)
	if got := m.FDC.DMA.Address(); got != 0x034566 {
		t.Errorf("Expected DMA address 0x034566 (bit 0 forced clear), got %06X", got)
	}
	if v := bus.Read8(DMA_ADDR_LOW); v != 0x66 {
		t.Errorf("Expected low byte 0x66, got %02X", v)
	}

	// 4MB machines mask the high byte to six bits
	bus.Write8(DMA_ADDR_HIGH, 0xFF)
	if v := bus.Read8(DMA_ADDR_HIGH); v != DMA_ADDR_HIGH_MASK_4MB {
		t.Errorf("Expected high byte masked to %02X, got %02X", DMA_ADDR_HIGH_MASK_4MB, v)
	}
}

// TestBus_FalconModeRegister tests that 0xFF860F exists on the Falcon only.
func TestBus_FalconModeRegister(t *testing.T) {
	falcon := NewSTMachine(MachineConfig{MachineType: MACHINE_FALCON, RAMSize: ST_RAM_SIZE_4MB})
	if v, ok := falcon.Bus.Read8WithFault(FALCON_FDC_MODE); !ok || v != 0x80 {
		t.Errorf("Expected Falcon mode register to read 0x80, got %02X ok=%v", v, ok)
	}

	st := NewSTMachine(MachineConfig{MachineType: MACHINE_ST, RAMSize: ST_RAM_SIZE_1MB})
	if _, ok := st.Bus.Read8WithFault(FALCON_FDC_MODE); ok {
		t.Error("Expected bus error reading 0xFF860F on a plain ST")
	}
}

// TestBus_PSGLatch tests register select and port A readback.
func TestBus_PSGLatch(t *testing.T) {
	m := NewSTMachine(MachineConfig{RAMSize: ST_RAM_SIZE_1MB})
	m.Bus.Write8(PSG_REG_SELECT, PSG_REG_PORTA)
	m.Bus.Write8(PSG_REG_DATA, 0x05)
	if v := m.Bus.Read8(PSG_REG_SELECT); v != 0x05 {
		t.Errorf("Expected port A readback 0x05, got %02X", v)
	}
}
