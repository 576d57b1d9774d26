package image

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"catprotect/hcdi"
	"catprotect/sdcard"
)

var ErrDuplicateName = errors.New("image: duplicate clip name")

// Clip is one converted payload and the name it is listed under.
type Clip struct {
	Name string
	Data []byte
}

// Layout places clips one after another from block 1, each starting on a
// block boundary, and returns the directory records.
func Layout(clips []Clip) ([]hcdi.Record, error) {
	records := make([]hcdi.Record, 0, len(clips))
	seen := make(map[string]bool, len(clips))
	next := uint32(1)
	for _, c := range clips {
		if seen[c.Name] {
			return nil, errors.Wrapf(ErrDuplicateName, "%q", c.Name)
		}
		seen[c.Name] = true
		records = append(records, hcdi.Record{StartBlock: next, Length: uint32(len(c.Data)), Name: c.Name})
		next += blocksFor(len(c.Data))
	}
	return records, nil
}

func blocksFor(n int) uint32 {
	return uint32((n + sdcard.BlockSize - 1) / sdcard.BlockSize)
}

// Write renders the complete image: the directory in block 0 followed by
// every clip padded to whole blocks.
func Write(w io.Writer, clips []Clip) ([]hcdi.Record, error) {
	records, err := Layout(clips)
	if err != nil {
		return nil, err
	}
	dir, err := hcdi.Encode(records)
	if err != nil {
		return nil, errors.Wrap(err, "encode directory")
	}
	if _, err := w.Write(dir); err != nil {
		return nil, errors.WithStack(err)
	}
	pad := make([]byte, sdcard.BlockSize)
	for _, c := range clips {
		if _, err := w.Write(c.Data); err != nil {
			return nil, errors.WithStack(err)
		}
		if rem := len(c.Data) % sdcard.BlockSize; rem != 0 {
			if _, err := w.Write(pad[:sdcard.BlockSize-rem]); err != nil {
				return nil, errors.WithStack(err)
			}
		}
	}
	return records, nil
}

// Build returns the image as a byte slice.
func Build(clips []Clip) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := Write(&buf, clips); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
