package protocol

import "errors"

var (
	ErrInvalidVLQ     = errors.New("invalid VLQ encoding")
	ErrBufferTooSmall = errors.New("buffer too small for VLQ")
)

// vlqMaxLen is the longest encoding of a 32-bit value.
const vlqMaxLen = 5

// vlqLen returns how many 7-bit groups v needs. The leading group carries
// a sign in bits 6..5, so one byte covers -32..95.
func vlqLen(v int32) int {
	lim := int32(1 << 5)
	for n := 1; n < vlqMaxLen; n++ {
		if v >= -lim && v < 3*lim {
			return n
		}
		lim <<= 7
	}
	return vlqMaxLen
}

// EncodeVLQInt writes v most significant group first. Every group but the
// last has bit 7 set.
func EncodeVLQInt(output OutputBuffer, v int32) {
	var buf [vlqMaxLen]byte
	n := vlqLen(v)
	for i := 0; i < n; i++ {
		shift := uint(7 * (n - 1 - i))
		buf[i] = byte(v>>shift) & 0x7F
		if i < n-1 {
			buf[i] |= 0x80
		}
	}
	output.Output(buf[:n])
}

// EncodeVLQUint writes v with the same wire form as its int32 bit pattern.
func EncodeVLQUint(output OutputBuffer, v uint32) {
	EncodeVLQInt(output, int32(v))
}

// DecodeVLQInt reads one value and advances data past it.
func DecodeVLQInt(data *[]byte) (int32, error) {
	in := *data
	if len(in) == 0 {
		return 0, ErrBufferTooSmall
	}
	v := uint32(in[0] & 0x7F)
	if in[0]&0x60 == 0x60 {
		// Negative: sign-extend the leading group
		v |= ^uint32(0x1F)
	}
	i := 0
	for in[i]&0x80 != 0 {
		i++
		if i == vlqMaxLen {
			return 0, ErrInvalidVLQ
		}
		if i == len(in) {
			return 0, ErrBufferTooSmall
		}
		v = v<<7 | uint32(in[i]&0x7F)
	}
	*data = in[i+1:]
	return int32(v), nil
}

func DecodeVLQUint(data *[]byte) (uint32, error) {
	v, err := DecodeVLQInt(data)
	return uint32(v), err
}

// EncodeVLQBytes writes a length-prefixed byte string.
func EncodeVLQBytes(output OutputBuffer, b []byte) {
	EncodeVLQUint(output, uint32(len(b)))
	output.Output(b)
}

// DecodeVLQBytes returns a length-prefixed byte string aliasing data.
func DecodeVLQBytes(data *[]byte) ([]byte, error) {
	n, err := DecodeVLQUint(data)
	if err != nil {
		return nil, err
	}
	if uint32(len(*data)) < n {
		return nil, ErrBufferTooSmall
	}
	b := (*data)[:n]
	*data = (*data)[n:]
	return b, nil
}

func EncodeVLQString(output OutputBuffer, s string) {
	EncodeVLQUint(output, uint32(len(s)))
	output.Output([]byte(s))
}

func DecodeVLQString(data *[]byte) (string, error) {
	b, err := DecodeVLQBytes(data)
	return string(b), err
}
