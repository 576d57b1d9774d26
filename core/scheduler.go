package core

// Timer represents a scheduled event
type Timer struct {
	WakeTime uint32
	Handler  func(*Timer) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// Scheduler keeps timers sorted by WakeTime and runs the due ones from the
// main loop. It replaces interrupt-driven callbacks: nothing runs unless
// Dispatch is called.
type Scheduler struct {
	timerList   *Timer
	currentTime uint32
}

// Schedule adds a timer to the schedule
func (s *Scheduler) Schedule(t *Timer) {
	defer maskIRQ().restore()

	s.insertTimer(t)
}

// Cancel removes a timer if it is scheduled
func (s *Scheduler) Cancel(t *Timer) {
	defer maskIRQ().restore()

	for pp := &s.timerList; *pp != nil; pp = &(*pp).Next {
		if *pp == t {
			*pp = t.Next
			t.Next = nil
			return
		}
	}
}

// insertTimer inserts a timer in sorted order by WakeTime. Ordering is
// relative to the current time so wraparound of the tick counter is safe.
func (s *Scheduler) insertTimer(t *Timer) {
	key := t.WakeTime - s.currentTime
	if s.timerList == nil || key < s.timerList.WakeTime-s.currentTime {
		t.Next = s.timerList
		s.timerList = t
		return
	}

	current := s.timerList
	for current.Next != nil && current.Next.WakeTime-s.currentTime <= key {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

// Now returns the time passed to the last Dispatch
func (s *Scheduler) Now() uint32 {
	return s.currentTime
}

// Dispatch processes due timers
func (s *Scheduler) Dispatch(now uint32) {
	defer maskIRQ().restore()

	s.currentTime = now
	for s.timerList != nil && int32(now-s.timerList.WakeTime) >= 0 {
		timer := s.timerList
		s.timerList = timer.Next
		timer.Next = nil // Clear Next pointer to avoid circular references

		if timer.Handler(timer) == SF_RESCHEDULE {
			s.insertTimer(timer)
		}
	}
}
