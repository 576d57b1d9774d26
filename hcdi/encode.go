package hcdi

import (
	"encoding/binary"
	"errors"
)

var (
	ErrDirectoryFull = errors.New("hcdi: directory does not fit in block 0")
	ErrNameTooLong   = errors.New("hcdi: name longer than 255 bytes")
	ErrZeroStart     = errors.New("hcdi: start block 0 is reserved")
)

// Record describes one clip for Encode.
type Record struct {
	StartBlock uint32
	Length     uint32
	Name       string
}

// Encode renders records as a directory block, terminator included.
func Encode(records []Record) ([]byte, error) {
	block := make([]byte, blockSize)
	pos := copy(block, Magic)
	for _, r := range records {
		if r.StartBlock == 0 {
			return nil, ErrZeroStart
		}
		if len(r.Name) > 0xFF {
			return nil, ErrNameTooLong
		}
		if pos+headerSize+len(r.Name)+4 > blockSize {
			return nil, ErrDirectoryFull
		}
		binary.LittleEndian.PutUint32(block[pos:], r.StartBlock)
		binary.LittleEndian.PutUint32(block[pos+4:], r.Length)
		block[pos+8] = byte(len(r.Name))
		pos += headerSize
		pos += copy(block[pos:], r.Name)
	}
	// Terminator is the zeroed remainder of the block
	return block, nil
}

// Records returns the catalog contents in directory order.
func (c *Catalog) Records() []Record {
	out := make([]Record, 0, c.n)
	for e := c.first; e != nil; e = e.next {
		out = append(out, Record{StartBlock: e.StartBlock, Length: e.Length, Name: e.Name})
	}
	return out
}
