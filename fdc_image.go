// fdc_image.go - Disk image backends (.st raw and .msa compressed) for IntuitionST

/*
The controller never talks to files directly; each drive carries a
DiskImage backend exposing the small capability set the state machine
needs: sector read/write, geometry, and the write-protect tab. The two
supported backends are raw .st dumps (geometry derived from the file
size) and .msa archives (per-track RLE, decoded to a flat buffer on load
and re-encoded on save). Both use 512-byte sectors throughout, which is
why the controller can treat every CRC as valid.
*/

package main

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DiskImage is the capability set a drive backend must provide.
type DiskImage interface {
	ReadSector(track, side, sector int) ([]byte, error)
	WriteSector(track, side, sector int, data []byte) error
	SectorsPerTrack() int
	SidesPerDisk() int
	WriteProtected() bool
}

const (
	MSA_MAGIC = 0x0E0F
	MSA_RLE   = 0xE5

	IMAGE_SECTOR_SIZE = 512
)

// stGeometry is one plausible raw-image layout. Checked in order; the
// standard 9 and 10 sector formats come first because most images use them.
var stGeometries = []struct {
	sectors int
	sides   int
}{
	{9, 1}, {9, 2}, {10, 1}, {10, 2}, {11, 1}, {11, 2},
	{18, 2}, {21, 2}, {36, 2},
}

// STImage is a flat sector dump, the common denominator both backends
// decode into.
type STImage struct {
	data    []byte
	tracks  int
	sides   int
	sectors int

	writeProtected bool
	modified       bool

	path string // Empty for in-memory images
	msa  bool   // Re-encode as MSA on save
}

// NewSTImage wraps a raw .st dump, deriving the geometry from its size.
func NewSTImage(data []byte) (*STImage, error) {
	for _, g := range stGeometries {
		trackSize := g.sectors * g.sides * IMAGE_SECTOR_SIZE
		if len(data)%trackSize != 0 {
			continue
		}
		tracks := len(data) / trackSize
		if tracks >= 75 && tracks <= 86 {
			return &STImage{
				data:    data,
				tracks:  tracks,
				sides:   g.sides,
				sectors: g.sectors,
			}, nil
		}
	}
	return nil, fmt.Errorf("unrecognized ST image size %d", len(data))
}

// NewBlankSTImage builds a zero-filled image with explicit geometry.
func NewBlankSTImage(tracks, sides, sectors int) *STImage {
	return &STImage{
		data:    make([]byte, tracks*sides*sectors*IMAGE_SECTOR_SIZE),
		tracks:  tracks,
		sides:   sides,
		sectors: sectors,
	}
}

// SetWriteProtected sets the write-protect tab.
func (img *STImage) SetWriteProtected(on bool) {
	img.writeProtected = on
}

// Modified reports whether any sector was written since load.
func (img *STImage) Modified() bool {
	return img.modified
}

func (img *STImage) offset(track, side, sector int) (int, error) {
	if track < 0 || track >= img.tracks ||
		side < 0 || side >= img.sides ||
		sector < 1 || sector > img.sectors {
		return 0, fmt.Errorf("sector out of range: track %d side %d sector %d",
			track, side, sector)
	}
	// Sides interleave per track: track 0 side 0, track 0 side 1, ...
	n := (track*img.sides+side)*img.sectors + sector - 1
	return n * IMAGE_SECTOR_SIZE, nil
}

// ReadSector returns a copy of the 512-byte sector.
func (img *STImage) ReadSector(track, side, sector int) ([]byte, error) {
	off, err := img.offset(track, side, sector)
	if err != nil {
		return nil, err
	}
	out := make([]byte, IMAGE_SECTOR_SIZE)
	copy(out, img.data[off:off+IMAGE_SECTOR_SIZE])
	return out, nil
}

// WriteSector stores a 512-byte sector.
func (img *STImage) WriteSector(track, side, sector int, data []byte) error {
	if img.writeProtected {
		return fmt.Errorf("image is write protected")
	}
	if len(data) != IMAGE_SECTOR_SIZE {
		return fmt.Errorf("sector data must be %d bytes, got %d", IMAGE_SECTOR_SIZE, len(data))
	}
	off, err := img.offset(track, side, sector)
	if err != nil {
		return err
	}
	copy(img.data[off:off+IMAGE_SECTOR_SIZE], data)
	img.modified = true
	return nil
}

// SectorsPerTrack returns the per-track sector count.
func (img *STImage) SectorsPerTrack() int { return img.sectors }

// SidesPerDisk returns the side count.
func (img *STImage) SidesPerDisk() int { return img.sides }

// WriteProtected reports the write-protect tab.
func (img *STImage) WriteProtected() bool { return img.writeProtected }

// Tracks returns the track count per side.
func (img *STImage) Tracks() int { return img.tracks }

// ------------------------------------------------------------------------------
// MSA decode/encode
// ------------------------------------------------------------------------------

// decodeMSA expands an MSA archive into a flat STImage.
func decodeMSA(data []byte) (*STImage, error) {
	if len(data) < 10 {
		return nil, fmt.Errorf("MSA header truncated")
	}
	if binary.BigEndian.Uint16(data[0:2]) != MSA_MAGIC {
		return nil, fmt.Errorf("bad MSA magic %#04x", binary.BigEndian.Uint16(data[0:2]))
	}
	sectors := int(binary.BigEndian.Uint16(data[2:4]))
	sides := int(binary.BigEndian.Uint16(data[4:6])) + 1
	startTrack := int(binary.BigEndian.Uint16(data[6:8]))
	endTrack := int(binary.BigEndian.Uint16(data[8:10]))
	if sectors < 1 || sectors > 36 || sides < 1 || sides > 2 ||
		startTrack != 0 || endTrack < startTrack || endTrack > 86 {
		return nil, fmt.Errorf("implausible MSA geometry: %d sectors, %d sides, tracks %d-%d",
			sectors, sides, startTrack, endTrack)
	}

	tracks := endTrack + 1
	img := NewBlankSTImage(tracks, sides, sectors)
	trackLen := sectors * IMAGE_SECTOR_SIZE

	p := 10
	for track := 0; track < tracks; track++ {
		for side := 0; side < sides; side++ {
			if p+2 > len(data) {
				return nil, fmt.Errorf("MSA truncated at track %d side %d", track, side)
			}
			dataLen := int(binary.BigEndian.Uint16(data[p : p+2]))
			p += 2
			if p+dataLen > len(data) {
				return nil, fmt.Errorf("MSA track %d side %d overruns file", track, side)
			}
			out := img.data[(track*sides+side)*trackLen : (track*sides+side+1)*trackLen]
			if dataLen == trackLen {
				copy(out, data[p:p+dataLen])
			} else if err := msaExpandTrack(data[p:p+dataLen], out); err != nil {
				return nil, fmt.Errorf("MSA track %d side %d: %w", track, side, err)
			}
			p += dataLen
		}
	}
	img.msa = true
	return img, nil
}

// msaExpandTrack undoes the 0xE5 run-length coding of one track.
func msaExpandTrack(in, out []byte) error {
	o := 0
	for i := 0; i < len(in); {
		b := in[i]
		if b != MSA_RLE {
			if o >= len(out) {
				return fmt.Errorf("expanded track too long")
			}
			out[o] = b
			o++
			i++
			continue
		}
		if i+4 > len(in) {
			return fmt.Errorf("truncated RLE run")
		}
		val := in[i+1]
		count := int(binary.BigEndian.Uint16(in[i+2 : i+4]))
		if o+count > len(out) {
			return fmt.Errorf("RLE run overflows track")
		}
		for j := 0; j < count; j++ {
			out[o] = val
			o++
		}
		i += 4
	}
	if o != len(out) {
		return fmt.Errorf("expanded track is %d bytes, want %d", o, len(out))
	}
	return nil
}

// encodeMSA packs the image back into MSA form, compressing each track
// when the RLE actually wins.
func encodeMSA(img *STImage) []byte {
	trackLen := img.sectors * IMAGE_SECTOR_SIZE
	out := make([]byte, 0, len(img.data)/2+10)

	var hdr [10]byte
	binary.BigEndian.PutUint16(hdr[0:2], MSA_MAGIC)
	binary.BigEndian.PutUint16(hdr[2:4], uint16(img.sectors))
	binary.BigEndian.PutUint16(hdr[4:6], uint16(img.sides-1))
	binary.BigEndian.PutUint16(hdr[6:8], 0)
	binary.BigEndian.PutUint16(hdr[8:10], uint16(img.tracks-1))
	out = append(out, hdr[:]...)

	for track := 0; track < img.tracks; track++ {
		for side := 0; side < img.sides; side++ {
			raw := img.data[(track*img.sides+side)*trackLen : (track*img.sides+side+1)*trackLen]
			packed := msaPackTrack(raw)
			if len(packed) >= trackLen {
				packed = raw
			}
			var l [2]byte
			binary.BigEndian.PutUint16(l[:], uint16(len(packed)))
			out = append(out, l[:]...)
			out = append(out, packed...)
		}
	}
	return out
}

// msaPackTrack run-length encodes one track. Runs of four or more bytes
// (and every literal 0xE5) use the marker form.
func msaPackTrack(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); {
		b := raw[i]
		run := 1
		for i+run < len(raw) && raw[i+run] == b {
			run++
		}
		if run >= 4 || b == MSA_RLE {
			var enc [4]byte
			enc[0] = MSA_RLE
			enc[1] = b
			binary.BigEndian.PutUint16(enc[2:4], uint16(run))
			out = append(out, enc[:]...)
		} else {
			for j := 0; j < run; j++ {
				out = append(out, b)
			}
		}
		i += run
	}
	return out
}

// ------------------------------------------------------------------------------
// Loading and saving
// ------------------------------------------------------------------------------

// LoadDiskImage reads a .st or .msa file, picked by magic then extension.
func LoadDiskImage(path string) (*STImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading disk image: %w", err)
	}
	if len(data) >= 2 && binary.BigEndian.Uint16(data[0:2]) == MSA_MAGIC {
		img, err := decodeMSA(data)
		if err != nil {
			return nil, err
		}
		img.path = path
		return img, nil
	}
	if strings.EqualFold(filepath.Ext(path), ".msa") {
		return nil, fmt.Errorf("%s: not an MSA archive", path)
	}
	img, err := NewSTImage(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	img.path = path
	return img, nil
}

// Save writes a modified image back to its original file in its original
// format. A no-op for unmodified or in-memory images.
func (img *STImage) Save() error {
	if !img.modified || img.path == "" {
		return nil
	}
	data := img.data
	if img.msa {
		data = encodeMSA(img)
	}
	if err := os.WriteFile(img.path, data, 0644); err != nil {
		return fmt.Errorf("saving disk image: %w", err)
	}
	img.modified = false
	return nil
}
