// Package hcdi reads the directory stored in block 0 of a card.
//
// Layout: the magic "HCDI", then records of
//
//	u32le start block, u32le length in bytes, u8 name length, name
//
// ending with a record whose start block is 0. The whole directory must fit
// in block 0.
package hcdi

import (
	"encoding/binary"
	"errors"

	"catprotect/core"
	"catprotect/sdcard"
)

// Magic identifies a directory block.
const Magic = "HCDI"

const (
	blockSize  = sdcard.BlockSize
	headerSize = 9 // start, length, name length
)

var (
	ErrBadMagic  = errors.New("hcdi: bad directory magic")
	ErrTruncated = errors.New("hcdi: directory runs past block 0")
	ErrRead      = errors.New("hcdi: reading directory block failed")
)

// ReadError is returned when the card fails while block 0 is read.
// It matches ErrRead and unwraps to the card's error.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	if e.Err == nil {
		return ErrRead.Error()
	}
	return ErrRead.Error() + ": " + e.Err.Error()
}

func (e *ReadError) Unwrap() error { return e.Err }

func (e *ReadError) Is(target error) bool { return target == ErrRead }

// BlockReader is the part of *sdcard.Card the catalog needs.
type BlockReader interface {
	SyncStartSingleRead(block uint32) sdcard.Status
	SyncReadChunk(buf []byte) (sdcard.Status, int)
	Stop() sdcard.Status
	RecordError(code sdcard.ErrorCode)
	Err() error
}

// Entry is one named clip.
type Entry struct {
	StartBlock uint32
	Length     uint32 // bytes
	Name       string

	next *Entry
}

// Next returns the following entry in directory order, or nil.
func (e *Entry) Next() *Entry {
	return e.next
}

// SampleCount returns the number of 16-bit samples in the clip.
func (e *Entry) SampleCount() uint32 {
	return e.Length / 2
}

// Catalog is the parsed directory. It is read-only after Build.
type Catalog struct {
	first *Entry
	last  *Entry
	n     int
}

// Build reads block 0 from r and parses it. The read session is always
// stopped before returning.
func Build(r BlockReader) (*Catalog, error) {
	var block [blockSize]byte
	if err := readBlock0(r, block[:]); err != nil {
		return nil, err
	}
	cat, err := Parse(block[:])
	if errors.Is(err, ErrBadMagic) {
		r.RecordError(sdcard.CodeUnknownMagic)
	}
	if err != nil {
		return nil, err
	}
	core.DebugPrintln("[HCDI] " + core.Itoa(cat.Len()) + " entries")
	return cat, nil
}

func readBlock0(r BlockReader, block []byte) error {
	defer r.Stop()

	if st := r.SyncStartSingleRead(0); st != sdcard.StatusReady {
		return &ReadError{Err: r.Err()}
	}
	for pos := 0; pos < len(block); {
		st, n := r.SyncReadChunk(block[pos:])
		pos += n
		switch st {
		case sdcard.StatusReady:
		case sdcard.StatusEndOfBlock:
			if pos != len(block) {
				return &ReadError{Err: sdcard.ErrMalformedToken}
			}
		default:
			return &ReadError{Err: r.Err()}
		}
	}
	return nil
}

// Parse decodes a directory block.
func Parse(block []byte) (*Catalog, error) {
	if len(block) < len(Magic) || string(block[:len(Magic)]) != Magic {
		return nil, ErrBadMagic
	}
	if len(block) > blockSize {
		block = block[:blockSize]
	}

	cat := &Catalog{}
	pos := len(Magic)
	for {
		if pos+4 > len(block) {
			return nil, ErrTruncated
		}
		start := binary.LittleEndian.Uint32(block[pos:])
		if start == 0 {
			return cat, nil
		}
		if pos+headerSize > len(block) {
			return nil, ErrTruncated
		}
		length := binary.LittleEndian.Uint32(block[pos+4:])
		nameLen := int(block[pos+8])
		pos += headerSize
		if pos+nameLen > len(block) {
			return nil, ErrTruncated
		}
		cat.append(&Entry{
			StartBlock: start,
			Length:     length,
			Name:       string(block[pos : pos+nameLen]),
		})
		pos += nameLen
	}
}

func (c *Catalog) append(e *Entry) {
	if c.last == nil {
		c.first = e
	} else {
		c.last.next = e
	}
	c.last = e
	c.n++
}

// First returns the first entry in directory order, or nil.
func (c *Catalog) First() *Entry {
	return c.first
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return c.n
}

// Find returns the first entry whose name matches exactly, or nil.
func (c *Catalog) Find(name string) *Entry {
	for e := c.first; e != nil; e = e.next {
		if e.Name == name {
			return e
		}
	}
	return nil
}
