package protocol

// OutputBuffer receives encoded payload bytes.
type OutputBuffer interface {
	Output(data []byte)
}

// InputBuffer holds received bytes until the decoder has consumed them.
type InputBuffer interface {
	// Data returns the unconsumed bytes without copying.
	Data() []byte
	// Pop discards the first n bytes.
	Pop(n int)
}

// FrameBuffer is the fixed scratch area one outgoing frame is built in.
// Bytes past MessageMax are dropped.
type FrameBuffer struct {
	buf [MessageMax]byte
	n   int
}

func (f *FrameBuffer) Output(data []byte) {
	f.n += copy(f.buf[f.n:], data)
}

func (f *FrameBuffer) Len() int { return f.n }

func (f *FrameBuffer) Reset() { f.n = 0 }

// Truncate shortens the frame to n bytes. Larger n is ignored.
func (f *FrameBuffer) Truncate(n int) {
	if n >= 0 && n < f.n {
		f.n = n
	}
}

// Set overwrites a byte that was already written.
func (f *FrameBuffer) Set(pos int, v byte) {
	if pos < f.n {
		f.buf[pos] = v
	}
}

// Bytes aliases the frame; it is only valid until the next Reset.
func (f *FrameBuffer) Bytes() []byte { return f.buf[:f.n] }

// SliceInput presents a complete byte slice, e.g. one frame handed over in
// process.
type SliceInput struct {
	data []byte
}

func NewSliceInput(data []byte) *SliceInput {
	return &SliceInput{data: data}
}

func (s *SliceInput) Data() []byte { return s.data }

func (s *SliceInput) Pop(n int) {
	if n > len(s.data) {
		n = len(s.data)
	}
	s.data = s.data[n:]
}

// RxBuffer accumulates bytes read from a link. Consumed bytes are
// reclaimed by sliding the remainder to the front once they make up half
// the buffer. When a write would exceed the limit the oldest bytes go;
// the decoder resynchronises on the next sync byte.
type RxBuffer struct {
	buf   []byte
	start int
	limit int
}

func NewRxBuffer(limit int) *RxBuffer {
	return &RxBuffer{buf: make([]byte, 0, limit), limit: limit}
}

// Write appends p and never fails.
func (r *RxBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if n >= r.limit {
		r.buf = append(r.buf[:0], p[n-r.limit:]...)
		r.start = 0
		return n, nil
	}
	if over := len(r.buf) - r.start + n - r.limit; over > 0 {
		r.start += over
	}
	if r.start > 0 && (r.start >= len(r.buf)/2 || len(r.buf)+n > r.limit) {
		kept := copy(r.buf, r.buf[r.start:])
		r.buf = r.buf[:kept]
		r.start = 0
	}
	r.buf = append(r.buf, p...)
	return n, nil
}

func (r *RxBuffer) Data() []byte { return r.buf[r.start:] }

func (r *RxBuffer) Pop(n int) {
	r.start += n
	if r.start >= len(r.buf) {
		r.buf = r.buf[:0]
		r.start = 0
	}
}

// Len returns the number of unconsumed bytes.
func (r *RxBuffer) Len() int { return len(r.buf) - r.start }
