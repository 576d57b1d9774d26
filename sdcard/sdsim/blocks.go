// Package sdsim emulates an SD card in SPI mode on top of a block device.
// It answers the same byte stream a real card would and implements
// sdcard.Bus, so the driver, the catalog and the player can run against it
// on a host.
package sdsim

import (
	"errors"
	"io"
)

var (
	errUnaligned = errors.New("sdsim: buffer not a multiple of the block size")
	errPastEnd   = errors.New("sdsim: read past end of device")
)

// BlockDevice is the storage behind the emulated card.
type BlockDevice interface {
	ReadBlocks(dst []byte, startBlock int64) error
}

// BytesBlocks is a BlockDevice over an in-memory image.
type BytesBlocks struct {
	buf []byte
}

// NewBytesBlocks wraps image, padding it to a whole number of blocks.
func NewBytesBlocks(image []byte) *BytesBlocks {
	if rem := len(image) % blockSize; rem != 0 {
		padded := make([]byte, len(image)+blockSize-rem)
		copy(padded, image)
		image = padded
	}
	return &BytesBlocks{buf: image}
}

// NumBlocks returns the device size in blocks.
func (b *BytesBlocks) NumBlocks() int64 {
	return int64(len(b.buf) / blockSize)
}

func (b *BytesBlocks) ReadBlocks(dst []byte, startBlock int64) error {
	if len(dst)%blockSize != 0 {
		return errUnaligned
	}
	off := startBlock * blockSize
	end := off + int64(len(dst))
	if startBlock < 0 || end > int64(len(b.buf)) {
		return errPastEnd
	}
	copy(dst, b.buf[off:end])
	return nil
}

// ReaderBlocks is a BlockDevice over an image file or any io.ReaderAt.
type ReaderBlocks struct {
	r    io.ReaderAt
	size int64
}

// NewReaderBlocks serves blocks from r, which holds size bytes. A short
// last block reads as zero padded.
func NewReaderBlocks(r io.ReaderAt, size int64) *ReaderBlocks {
	return &ReaderBlocks{r: r, size: size}
}

// NumBlocks returns the device size in blocks.
func (b *ReaderBlocks) NumBlocks() int64 {
	return (b.size + blockSize - 1) / blockSize
}

func (b *ReaderBlocks) ReadBlocks(dst []byte, startBlock int64) error {
	if len(dst)%blockSize != 0 {
		return errUnaligned
	}
	if startBlock < 0 || startBlock+int64(len(dst)/blockSize) > b.NumBlocks() {
		return errPastEnd
	}
	n, err := b.r.ReadAt(dst, startBlock*blockSize)
	if err == io.EOF {
		err = nil
	}
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
	return err
}
