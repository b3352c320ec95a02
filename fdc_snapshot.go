// fdc_snapshot.go - FDC/DMA/drive save-state as one opaque blob

package main

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	fdcSnapshotMagic   = "ISTF"
	fdcSnapshotVersion = 1
)

// fdcSnapshotState is the flat, fixed-layout view of everything the FDC
// aggregate owns. Restore is a plain field copy; nothing needs
// recomputing afterwards, which keeps save states portable mid-command.
type fdcSnapshotState struct {
	DR, TR, SR, CR, STR uint8

	StepDirection int8
	Side          int8
	DriveSel      int8

	Command int32
	State   int32
	CmdType int32

	ReplacePossible uint8
	StatusTypeI     uint8
	SpinUpNeeded    uint8
	MotorOff        uint8
	IRQ             uint8

	IndexPulseCount int32
	InterruptCond   uint8
	HeaderSector    int32
	StepCount       int32

	NextIDTrack, NextIDSide, NextIDSector, NextIDLength uint8
	NextIDCRCHi, NextIDCRCLo                            uint8

	BufferPos int32
	BufferLen int32

	TimerActive   uint8
	TimerFire     uint64
	NextIndexPoll uint64

	// DMA engine
	DMAMode          uint16
	DMAStatus        uint16
	DMASectorCount   uint16
	DMABytesInSector int32
	DMAFIFO          [DMA_FIFO_SIZE]uint8
	DMAFIFOSize      int32
	DMAShadow        uint16
	DMAAddress       uint32

	// Drives
	DriveEnabled    [FDC_DRIVE_COUNT]uint8
	DriveInserted   [FDC_DRIVE_COUNT]uint8
	DriveRPM        [FDC_DRIVE_COUNT]int32
	DriveDensity    [FDC_DRIVE_COUNT]int32
	DriveHeadTrack  [FDC_DRIVE_COUNT]int32
	DriveIndexCycle [FDC_DRIVE_COUNT]uint64
	DriveMediaEnd   [FDC_DRIVE_COUNT]uint64
}

func b2u(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// SaveState serializes the controller, DMA engine, drive array and work
// buffer into one blob. Disk image contents are not part of the state;
// the host reattaches images on restore.
func (f *FDC) SaveState() ([]byte, error) {
	var s fdcSnapshotState
	s.DR, s.TR, s.SR, s.CR, s.STR = f.dr, f.tr, f.sr, f.cr, f.str
	s.StepDirection = f.stepDirection
	s.Side = f.side
	s.DriveSel = f.driveSel
	s.Command = int32(f.command)
	s.State = int32(f.state)
	s.CmdType = int32(f.cmdType)
	s.ReplacePossible = b2u(f.replacePossible)
	s.StatusTypeI = b2u(f.statusTypeI)
	s.SpinUpNeeded = b2u(f.spinUpNeeded)
	s.MotorOff = b2u(f.motorOff)
	s.IRQ = b2u(f.irq)
	s.IndexPulseCount = int32(f.indexPulseCount)
	s.InterruptCond = f.interruptCond
	s.HeaderSector = int32(f.headerSector)
	s.StepCount = int32(f.stepCount)
	s.NextIDTrack = f.nextID.Track
	s.NextIDSide = f.nextID.Side
	s.NextIDSector = f.nextID.Sector
	s.NextIDLength = f.nextID.Length
	s.NextIDCRCHi = f.nextID.CRCHi
	s.NextIDCRCLo = f.nextID.CRCLo
	s.BufferPos = int32(f.bufferPos)
	s.BufferLen = int32(f.bufferLen)
	s.TimerActive = b2u(f.timerActive)
	s.TimerFire = f.timerFire
	s.NextIndexPoll = f.nextIndexPoll

	s.DMAMode = f.DMA.Mode
	s.DMAStatus = f.DMA.Status
	s.DMASectorCount = f.DMA.SectorCount
	s.DMABytesInSector = int32(f.DMA.BytesInSector)
	s.DMAFIFO = f.DMA.FIFO
	s.DMAFIFOSize = int32(f.DMA.FIFOSize)
	s.DMAShadow = f.DMA.Shadow
	s.DMAAddress = f.DMA.address

	for i := range f.Drives {
		d := &f.Drives[i]
		s.DriveEnabled[i] = b2u(d.Enabled)
		s.DriveInserted[i] = b2u(d.DiskInserted)
		s.DriveRPM[i] = int32(d.RPM)
		s.DriveDensity[i] = int32(d.Density)
		s.DriveHeadTrack[i] = int32(d.HeadTrack)
		s.DriveIndexCycle[i] = d.IndexPulseCycle
		s.DriveMediaEnd[i] = d.MediaChangeEnd
	}

	var buf bytes.Buffer
	buf.WriteString(fdcSnapshotMagic)
	binary.Write(&buf, binary.LittleEndian, uint32(fdcSnapshotVersion))
	if err := binary.Write(&buf, binary.LittleEndian, &s); err != nil {
		return nil, fmt.Errorf("serializing FDC state: %w", err)
	}

	// Work buffer: uncompressed length, then gzip-compressed data
	binary.Write(&buf, binary.LittleEndian, uint32(len(f.buffer)))
	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	if _, err := gz.Write(f.buffer); err != nil {
		return nil, fmt.Errorf("compressing work buffer: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip: %w", err)
	}
	buf.Write(compressed.Bytes())

	return buf.Bytes(), nil
}

// RestoreState restores a blob produced by SaveState.
func (f *FDC) RestoreState(blob []byte) error {
	r := bytes.NewReader(blob)

	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return fmt.Errorf("reading magic: %w", err)
	}
	if string(magic) != fdcSnapshotMagic {
		return fmt.Errorf("invalid FDC snapshot magic: %q", string(magic))
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return fmt.Errorf("reading version: %w", err)
	}
	if version != fdcSnapshotVersion {
		return fmt.Errorf("unsupported FDC snapshot version %d", version)
	}

	var s fdcSnapshotState
	if err := binary.Read(r, binary.LittleEndian, &s); err != nil {
		return fmt.Errorf("reading FDC state: %w", err)
	}

	var bufLen uint32
	if err := binary.Read(r, binary.LittleEndian, &bufLen); err != nil {
		return fmt.Errorf("reading buffer length: %w", err)
	}
	if int(bufLen) != len(f.buffer) {
		return fmt.Errorf("work buffer size mismatch: %d != %d", bufLen, len(f.buffer))
	}
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("opening gzip: %w", err)
	}
	if _, err := io.ReadFull(gz, f.buffer); err != nil {
		return fmt.Errorf("decompressing work buffer: %w", err)
	}
	gz.Close()

	f.dr, f.tr, f.sr, f.cr, f.str = s.DR, s.TR, s.SR, s.CR, s.STR
	f.stepDirection = s.StepDirection
	f.side = s.Side
	f.driveSel = s.DriveSel
	f.command = fdcCommand(s.Command)
	f.state = fdcSubState(s.State)
	f.cmdType = int(s.CmdType)
	f.replacePossible = s.ReplacePossible != 0
	f.statusTypeI = s.StatusTypeI != 0
	f.spinUpNeeded = s.SpinUpNeeded != 0
	f.motorOff = s.MotorOff != 0
	f.irq = s.IRQ != 0
	f.machine.SetIRQ(f.irq)
	f.indexPulseCount = int(s.IndexPulseCount)
	f.interruptCond = s.InterruptCond
	f.headerSector = int(s.HeaderSector)
	f.stepCount = int(s.StepCount)
	f.nextID = idField{
		Track:  s.NextIDTrack,
		Side:   s.NextIDSide,
		Sector: s.NextIDSector,
		Length: s.NextIDLength,
		CRCHi:  s.NextIDCRCHi,
		CRCLo:  s.NextIDCRCLo,
	}
	f.bufferPos = int(s.BufferPos)
	f.bufferLen = int(s.BufferLen)
	f.timerActive = s.TimerActive != 0
	f.timerFire = s.TimerFire
	f.nextIndexPoll = s.NextIndexPoll

	f.DMA.Mode = s.DMAMode
	f.DMA.Status = s.DMAStatus
	f.DMA.SectorCount = s.DMASectorCount
	f.DMA.BytesInSector = int(s.DMABytesInSector)
	f.DMA.FIFO = s.DMAFIFO
	f.DMA.FIFOSize = int(s.DMAFIFOSize)
	f.DMA.Shadow = s.DMAShadow
	f.DMA.address = s.DMAAddress

	for i := range f.Drives {
		d := &f.Drives[i]
		d.Enabled = s.DriveEnabled[i] != 0
		d.DiskInserted = s.DriveInserted[i] != 0
		d.RPM = int(s.DriveRPM[i])
		d.Density = int(s.DriveDensity[i])
		d.HeadTrack = int(s.DriveHeadTrack[i])
		d.IndexPulseCycle = s.DriveIndexCycle[i]
		d.MediaChangeEnd = s.DriveMediaEnd[i]
	}
	return nil
}
