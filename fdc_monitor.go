// fdc_monitor.go - Interactive terminal monitor for the FDC core

/*
A small raw-mode console for poking at the controller from a terminal:
dump the register file and drive state, step the machine by cycles, issue
command bytes, insert and eject images. Only instantiated from main.go
for interactive use — never in tests.
*/

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// FDCMonitor drives an STMachine from stdin in raw mode.
type FDCMonitor struct {
	machine  *STMachine
	fd       int
	oldState *term.State
}

// NewFDCMonitor builds a monitor over the given machine.
func NewFDCMonitor(m *STMachine) *FDCMonitor {
	return &FDCMonitor{machine: m, fd: int(os.Stdin.Fd())}
}

// Run puts the terminal into raw mode and serves commands until quit.
func (mon *FDCMonitor) Run() error {
	st, err := term.MakeRaw(mon.fd)
	if err != nil {
		return fmt.Errorf("entering raw mode: %w", err)
	}
	mon.oldState = st
	defer term.Restore(mon.fd, mon.oldState)

	t := term.NewTerminal(os.Stdin, "fdc> ")
	mon.printLine(t, "IntuitionST FDC monitor. 'help' lists commands.")
	for {
		line, err := t.ReadLine()
		if err != nil {
			return nil
		}
		if quit := mon.handleCommand(t, strings.Fields(strings.TrimSpace(line))); quit {
			return nil
		}
	}
}

func (mon *FDCMonitor) printLine(t *term.Terminal, s string) {
	t.Write([]byte(s + "\r\n"))
}

// handleCommand dispatches one monitor command; returns true on quit.
func (mon *FDCMonitor) handleCommand(t *term.Terminal, args []string) bool {
	if len(args) == 0 {
		return false
	}
	m := mon.machine
	f := m.FDC
	switch args[0] {
	case "q", "quit":
		return true
	case "help":
		mon.printLine(t, "r              dump FDC/DMA registers")
		mon.printLine(t, "d              dump drive state")
		mon.printLine(t, "s <cycles>     run the machine")
		mon.printLine(t, "c <hex>        write the FDC command register")
		mon.printLine(t, "i <n> <path>   insert disk image into drive n")
		mon.printLine(t, "e <n>          eject drive n")
		mon.printLine(t, "q              quit")
	case "r":
		mon.printLine(t, fmt.Sprintf("STR=%02X TR=%02X SR=%02X DR=%02X CR=%02X IRQ=%v",
			f.str, f.tr, f.sr, f.dr, f.cr, f.IRQ()))
		mon.printLine(t, fmt.Sprintf("DMA addr=%06X count=%d mode=%04X status=%04X",
			f.DMA.Address(), f.DMA.SectorCount, f.DMA.Mode, f.DMA.ReadStatus()))
	case "d":
		for i := range f.Drives {
			d := &f.Drives[i]
			mon.printLine(t, fmt.Sprintf("drive %d: enabled=%v disk=%v track=%d density=%d",
				i, d.Enabled, d.DiskInserted, d.HeadTrack, d.Density))
		}
		mon.printLine(t, fmt.Sprintf("selected=%d side=%d cycles=%d",
			f.driveSel, f.side, m.Cycles()))
	case "s":
		n := uint64(1000)
		if len(args) > 1 {
			if v, err := strconv.ParseUint(args[1], 10, 64); err == nil {
				n = v
			}
		}
		m.Run(n)
		mon.printLine(t, fmt.Sprintf("cycles=%d STR=%02X", m.Cycles(), f.str))
	case "c":
		if len(args) < 2 {
			break
		}
		v, err := strconv.ParseUint(args[1], 16, 8)
		if err != nil {
			mon.printLine(t, "bad command byte")
			break
		}
		f.WriteCommandReg(uint8(v))
	case "i":
		if len(args) < 3 {
			break
		}
		drive, _ := strconv.Atoi(args[1])
		img, err := LoadDiskImage(args[2])
		if err != nil {
			mon.printLine(t, err.Error())
			break
		}
		f.InsertDisk(drive, img)
	case "e":
		if len(args) < 2 {
			break
		}
		drive, _ := strconv.Atoi(args[1])
		f.EjectDisk(drive)
	default:
		mon.printLine(t, "unknown command; 'help' lists commands")
	}
	return false
}
