package main

import (
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/pkg/errors"
)

// sampleQueue turns committed DAC values into signed 16-bit PCM for oto.
// It satisfies player.OutputStage on the write side and io.Reader on the
// read side. Reads never block; an empty queue plays silence.
type sampleQueue struct {
	mu      sync.Mutex
	pcm     []byte
	max     int
	value   uint16
	enabled bool
	dropped int
}

func newSampleQueue(maxSamples int) *sampleQueue {
	return &sampleQueue{max: 2 * maxSamples}
}

func (q *sampleQueue) SetValue(v uint16) {
	q.value = v & 0x0FFF
}

// Commit queues the pending 12-bit value centred on the DAC midpoint.
func (q *sampleQueue) Commit() {
	s := uint16(int16(int(q.value)-0x800) << 4)
	q.mu.Lock()
	q.enabled = true
	if len(q.pcm)+2 > q.max {
		q.dropped++
	} else {
		q.pcm = append(q.pcm, byte(s), byte(s>>8))
	}
	q.mu.Unlock()
}

func (q *sampleQueue) Disable() {
	q.mu.Lock()
	q.enabled = false
	q.mu.Unlock()
}

func (q *sampleQueue) Read(p []byte) (int, error) {
	q.mu.Lock()
	n := copy(p, q.pcm)
	q.pcm = q.pcm[:copy(q.pcm, q.pcm[n:])]
	q.mu.Unlock()
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

// Dropped returns how many samples did not fit the queue.
func (q *sampleQueue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// speaker plays a sampleQueue through the host sound card.
type speaker struct {
	ctx    *oto.Context
	player *oto.Player
}

func newSpeaker(rate int, q *sampleQueue) (*speaker, error) {
	op := &oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, errors.Wrap(err, "open audio output")
	}
	<-ready

	s := &speaker{ctx: ctx, player: ctx.NewPlayer(q)}
	s.player.Play()
	return s, nil
}

func (s *speaker) Close() error {
	return errors.WithStack(s.player.Close())
}
