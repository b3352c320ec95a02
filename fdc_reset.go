// fdc_reset.go - Reset() methods for the FDC core components (hard reset support)

package main

// FDC.Reset restores the controller to power-up state. Drive configuration
// (enable, inserted media, head position) survives a reset, as the
// mechanics do on real hardware; all command machinery is torn down.
func (f *FDC) Reset() {
	f.dr = 0
	f.tr = 0
	f.sr = 1
	f.cr = 0
	f.str = 0

	f.stepDirection = 1
	f.command = FDC_COMMAND_NULL
	f.state = FDC_SUB_PREPARE
	f.cmdType = 0
	f.replacePossible = false
	f.statusTypeI = true
	f.spinUpNeeded = false
	f.motorOff = false
	f.indexPulseCount = 0
	f.interruptCond = 0
	f.irq = false
	f.machine.SetIRQ(false)
	f.headerSector = 0
	f.nextID = idField{}
	f.stepCount = 0
	f.bufferPos = 0
	f.bufferLen = 0
	f.timerActive = false
	f.timerFire = 0
	f.nextIndexPoll = 0

	for i := range f.Drives {
		f.Drives[i].IndexPulseCycle = 0
		f.Drives[i].MediaChangeEnd = 0
	}

	f.DMA.Reset()
}

// DMA.Reset restores the engine to power-up state, including the mode word
// and address counter that a transfer reset leaves alone.
func (d *DMA) Reset() {
	d.ResetTransfer()
	d.Mode = 0
	d.Shadow = 0
	d.address = 0
}
