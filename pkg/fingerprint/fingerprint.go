// Package fingerprint computes content-identity summaries for local
// files: size, mtime and four CRC32 sums over the content. Small files
// are covered in full; large files are sampled at spaced offsets so that
// fingerprinting stays cheap regardless of file size.
package fingerprint

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/openmirror/localfs/pkg/fileaccess"
	"github.com/openmirror/localfs/pkg/pool"
)

const (
	// crcSlots is the number of independent CRC sums in a fingerprint.
	crcSlots = 4

	// maxFull is the largest file read in full; beyond it content is sampled.
	maxFull = 128 * 1024

	// samplesPerSlot and sampleSize control sparse sampling for large
	// files: each CRC slot covers samplesPerSlot blocks of sampleSize
	// bytes spread evenly across its quarter of the file.
	samplesPerSlot = 8
	sampleSize     = 64
)

// readBuffers serves the full-content reads; sample blocks are small
// enough to come from the same pool's lowest bucket.
var readBuffers = pool.NewBucketedBufferPool(1024, maxFull)

// Fingerprint summarizes one file's content identity. Two fingerprints
// compare equal only when size, mtime and all CRC sums match.
type Fingerprint struct {
	Size  int64
	MTime int64
	CRC   [crcSlots]uint32
	Valid bool
}

// Equal reports whether both fingerprints are valid and identical.
func (fp Fingerprint) Equal(o Fingerprint) bool {
	return fp.Valid && o.Valid &&
		fp.Size == o.Size &&
		fp.MTime == o.MTime &&
		fp.CRC == o.CRC
}

// Generate computes the fingerprint of the file behind fa, which must
// have been prepared with FOpen so size and mtime are cached. The reads
// go through the handle abstraction, so staleness is detected the same
// way as any other read.
func Generate(fa *fileaccess.FileAccess) Fingerprint {
	fp := Fingerprint{Size: fa.Size, MTime: fa.MTime}
	if fa.Type != fileaccess.TypeFile || fa.Size < 0 {
		return fp
	}

	switch {
	case fa.Size <= int64(crcSlots*4):
		// Tiny file: the raw bytes are the fingerprint.
		var raw [crcSlots * 4]byte
		if fa.Size > 0 && !fa.FRawRead(raw[:fa.Size], 0, false) {
			return fp
		}
		for i := 0; i < crcSlots; i++ {
			fp.CRC[i] = binary.BigEndian.Uint32(raw[i*4:])
		}

	case fa.Size <= maxFull:
		// Small file: CRC each quarter of the full content.
		bufPtr := readBuffers.Get(fa.Size)
		defer readBuffers.Put(bufPtr)
		buf := *bufPtr
		if !fa.FRawRead(buf, 0, false) {
			return fp
		}
		for i := 0; i < crcSlots; i++ {
			lo := int(fa.Size) * i / crcSlots
			hi := int(fa.Size) * (i + 1) / crcSlots
			fp.CRC[i] = crc32.ChecksumIEEE(buf[lo:hi])
		}

	default:
		// Large file: sample spaced blocks, one CRC per quarter. The
		// handle stays open across all samples.
		if !fa.OpenF() {
			return fp
		}
		defer fa.CloseF()

		var block [sampleSize]byte
		for i := 0; i < crcSlots; i++ {
			crc := crc32.NewIEEE()
			lo := fa.Size * int64(i) / crcSlots
			hi := fa.Size * int64(i+1) / crcSlots
			span := hi - lo - sampleSize
			if span < 0 {
				span = 0
			}
			for s := 0; s < samplesPerSlot; s++ {
				pos := lo
				if samplesPerSlot > 1 {
					pos += span * int64(s) / int64(samplesPerSlot-1)
				}
				if !fa.FRawRead(block[:], pos, true) {
					return fp
				}
				crc.Write(block[:])
			}
			fp.CRC[i] = crc.Sum32()
		}
	}

	fp.Valid = true
	return fp
}
