package image

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SampleRate is the rate the player paces samples at.
const SampleRate = 22050

// MaxNameLen keeps names short enough for the device's entry report.
const MaxNameLen = 32

// Mono16 mixes all channels down and scales to signed 16 bits.
func (p *PCM) Mono16() []int16 {
	frames := p.Frames()
	out := make([]int16, frames)
	shift := p.BitDepth - 16
	for i := 0; i < frames; i++ {
		sum := 0
		for ch := 0; ch < p.Channels; ch++ {
			sum += p.Data[i*p.Channels+ch]
		}
		v := sum / p.Channels
		switch {
		case shift > 0:
			v >>= uint(shift)
		case shift < 0:
			v <<= uint(-shift)
		}
		out[i] = clamp16(v)
	}
	return out
}

func clamp16(v int) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// Resample converts in from one rate to another by linear interpolation.
func Resample(in []int16, from, to int) []int16 {
	if from == to || len(in) == 0 || from <= 0 || to <= 0 {
		return in
	}
	n := int(int64(len(in)) * int64(to) / int64(from))
	out := make([]int16, n)
	for i := range out {
		// Position in the input as a 16.16 fixed point value
		pos := int64(i) * int64(from) << 16 / int64(to)
		idx := int(pos >> 16)
		frac := pos & 0xFFFF
		a := int64(in[idx])
		b := a
		if idx+1 < len(in) {
			b = int64(in[idx+1])
		}
		out[i] = int16(a + (b-a)*frac>>16)
	}
	return out
}

// Encode renders samples in the on-card format: unsigned-centered 16-bit
// little endian.
func Encode(samples []int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		u := uint16(s) ^ 0x8000
		out[2*i] = byte(u)
		out[2*i+1] = byte(u >> 8)
	}
	return out
}

// Convert produces the on-card payload for p.
func Convert(p *PCM) []byte {
	return Encode(Resample(p.Mono16(), p.SampleRate, SampleRate))
}

// ClipName folds name to upper case printable ASCII. Accents are dropped,
// other characters outside the set become '_'.
func ClipName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	var b strings.Builder
	for _, r := range strings.ToUpper(folded) {
		if b.Len() == MaxNameLen {
			break
		}
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
