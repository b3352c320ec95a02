// main.go - IntuitionST FDC core headless entry point

/*
Boots a minimal ST machine (bus, PSG latch, FDC/DMA, drives), optionally
inserts a disk image, and either drops into the interactive monitor, runs
a Lua automation script, or performs the default smoke exercise: select
drive 0, restore, read the boot sector through the DMA and print it.
*/

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
)

func main() {
	imagePath := flag.String("image", "", "disk image (.st or .msa) for drive 0")
	machineType := flag.String("machine", "st", "machine variant: st, megast, ste, tt, falcon")
	fastFDC := flag.Uint("fastfdc", 1, "fast-FDC divisor (1 = cycle accurate)")
	monitor := flag.Bool("monitor", false, "interactive FDC monitor")
	script := flag.String("script", "", "Lua automation script")
	flag.Parse()

	cfg := MachineConfig{FastFDCDivisor: uint32(*fastFDC)}
	switch *machineType {
	case "st":
		cfg.MachineType = MACHINE_ST
	case "megast":
		cfg.MachineType = MACHINE_MEGA_ST
	case "ste":
		cfg.MachineType = MACHINE_STE
	case "tt":
		cfg.MachineType = MACHINE_TT
	case "falcon":
		cfg.MachineType = MACHINE_FALCON
	default:
		log.Fatalf("unknown machine type %q", *machineType)
	}

	m := NewSTMachine(cfg)

	if *imagePath != "" {
		img, err := LoadDiskImage(*imagePath)
		if err != nil {
			log.Fatalf("%v", err)
		}
		m.FDC.InsertDisk(0, img)
		log.Printf("inserted %s: %d sides, %d sectors/track",
			*imagePath, img.SidesPerDisk(), img.SectorsPerTrack())
	}

	switch {
	case *monitor:
		if err := NewFDCMonitor(m).Run(); err != nil {
			log.Fatalf("%v", err)
		}
	case *script != "":
		c := NewLuaConsole(m)
		defer c.Close()
		if err := c.RunFile(*script); err != nil {
			log.Fatalf("%v", err)
		}
	default:
		if *imagePath == "" {
			flag.Usage()
			os.Exit(1)
		}
		bootSectorDemo(m)
	}
}

// bootSectorDemo reads track 0, side 0, sector 1 into RAM at 0x10000 the
// way TOS would: drive select through the PSG, restore, then a read
// sector command with the DMA pointed at the target buffer.
func bootSectorDemo(m *STMachine) {
	bus := m.Bus

	// Select drive 0, side 0
	bus.Write8(PSG_REG_SELECT, PSG_REG_PORTA)
	bus.Write8(PSG_REG_DATA, PSG_PORTA_SIDE|PSG_PORTA_DRIVE1)

	// Restore with verify
	bus.Write16(FDC_DMA_MODE, 0)
	bus.Write16(FDC_DMA_DATA, 0x04)
	m.Run(100000000)

	// DMA target and sector count
	bus.Write8(DMA_ADDR_HIGH, 0x01)
	bus.Write8(DMA_ADDR_MID, 0x00)
	bus.Write8(DMA_ADDR_LOW, 0x00)
	bus.Write16(FDC_DMA_MODE, DMA_MODE_SECTOR_COUNT)
	bus.Write16(FDC_DMA_DATA, 1)

	// Sector register = 1
	bus.Write16(FDC_DMA_MODE, DMA_MODE_A1)
	bus.Write16(FDC_DMA_DATA, 1)

	// Read sector
	bus.Write16(FDC_DMA_MODE, 0)
	bus.Write16(FDC_DMA_DATA, 0x80)
	m.Run(100000000)

	status := bus.Read16(FDC_DMA_DATA)
	log.Printf("read sector complete: status=%02X dma=%06X", uint8(status), m.FDC.DMA.Address())

	ram := bus.GetMemory()
	for row := 0; row < 4; row++ {
		line := ""
		for col := 0; col < 16; col++ {
			line += fmt.Sprintf("%02X ", ram[0x10000+row*16+col])
		}
		log.Printf("%05X: %s", 0x10000+row*16, line)
	}
}
