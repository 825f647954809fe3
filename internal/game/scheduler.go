package game

import "time"

// Scheduler maps wall-clock time onto in-game day boundaries. It remembers
// the last processed boundary so each one is handed out exactly once.
type Scheduler struct {
	epoch         time.Time
	dayLength     time.Duration
	lastProcessed int
}

func NewScheduler(epoch time.Time, dayLength time.Duration, lastProcessed int) *Scheduler {
	if dayLength <= 0 {
		dayLength = time.Minute
	}
	if lastProcessed < 0 {
		lastProcessed = 0
	}
	return &Scheduler{epoch: epoch.UTC(), dayLength: dayLength, lastProcessed: lastProcessed}
}

func (s *Scheduler) Epoch() time.Time { return s.epoch }

func (s *Scheduler) DayLength() time.Duration { return s.dayLength }

func (s *Scheduler) LastProcessedDay() int { return s.lastProcessed }

// ElapsedDays is the number of whole days between the epoch and now.
func (s *Scheduler) ElapsedDays(now time.Time) int {
	if now.Before(s.epoch) {
		return 0
	}
	return int(now.Sub(s.epoch) / s.dayLength)
}

// Due lists the boundaries not yet processed, oldest first. It does not
// mark them; callers call MarkProcessed after handling each one.
func (s *Scheduler) Due(now time.Time) []int {
	elapsed := s.ElapsedDays(now)
	if elapsed <= s.lastProcessed {
		return nil
	}
	out := make([]int, 0, elapsed-s.lastProcessed)
	for d := s.lastProcessed + 1; d <= elapsed; d++ {
		out = append(out, d)
	}
	return out
}

// MarkProcessed records day as handled. Out of order or repeated days are ignored.
func (s *Scheduler) MarkProcessed(day int) bool {
	if day != s.lastProcessed+1 {
		return false
	}
	s.lastProcessed = day
	return true
}
