// Package image builds SD card images holding an HCDI directory and the
// clips it lists. Clips are decoded from WAV or FLAC, mixed down to mono
// and resampled to the playback rate.
package image

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/pkg/errors"
)

// ErrFormat is returned for input files of an unknown kind.
var ErrFormat = errors.New("image: unsupported input format")

// PCM is decoded audio with interleaved channels.
type PCM struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Data       []int
}

// Frames returns the number of samples per channel.
func (p *PCM) Frames() int {
	if p.Channels == 0 {
		return 0
	}
	return len(p.Data) / p.Channels
}

// DecodeWAV reads a whole PCM WAV stream.
func DecodeWAV(r io.ReadSeeker) (*PCM, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.Wrap(ErrFormat, "invalid WAV file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return fromIntBuffer(buf, int(dec.BitDepth)), nil
}

func fromIntBuffer(buf *audio.IntBuffer, bitDepth int) *PCM {
	if buf.SourceBitDepth != 0 {
		bitDepth = buf.SourceBitDepth
	}
	return &PCM{
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		BitDepth:   bitDepth,
		Data:       buf.Data,
	}
}

// DecodeFLAC reads a whole FLAC stream.
func DecodeFLAC(r io.Reader) (*PCM, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer stream.Close()

	p := &PCM{
		SampleRate: int(stream.Info.SampleRate),
		Channels:   int(stream.Info.NChannels),
		BitDepth:   int(stream.Info.BitsPerSample),
	}
	if stream.Info.NSamples != 0 {
		p.Data = make([]int, 0, int(stream.Info.NSamples)*p.Channels)
	}
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WithStack(err)
		}
		for i := 0; i < int(frame.BlockSize); i++ {
			for _, sub := range frame.Subframes {
				p.Data = append(p.Data, int(sub.Samples[i]))
			}
		}
	}
	return p, nil
}

// DecodeFile picks the decoder from the file extension. ".raw" files are
// taken as already converted clips.
func DecodeFile(path string) (*PCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	var p *PCM
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		p, err = DecodeWAV(f)
	case ".flac":
		p, err = DecodeFLAC(f)
	case ".raw":
		p, err = DecodeRaw(f)
	default:
		return nil, errors.Wrapf(ErrFormat, "%s", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return p, nil
}

// DecodeRaw reads mono unsigned-centered 16-bit little-endian samples at
// the playback rate.
func DecodeRaw(r io.Reader) (*PCM, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	p := &PCM{SampleRate: SampleRate, Channels: 1, BitDepth: 16, Data: make([]int, len(data)/2)}
	for i := range p.Data {
		u := uint16(data[2*i]) | uint16(data[2*i+1])<<8
		p.Data[i] = int(int16(u ^ 0x8000))
	}
	return p, nil
}
