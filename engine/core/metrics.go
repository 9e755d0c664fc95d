package core

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// AVG_COUNT is the number of samples in each rolling average.
const AVG_COUNT = 30

type rollingAverage struct {
	samples [AVG_COUNT]time.Duration
	next    int
	filled  int
	total   time.Duration
	last    time.Duration
}

func (r *rollingAverage) add(d time.Duration) {
	if r.filled == AVG_COUNT {
		r.total -= r.samples[r.next]
	} else {
		r.filled++
	}
	r.samples[r.next] = d
	r.total += d
	r.next = (r.next + 1) % AVG_COUNT
	r.last = d
}

func (r *rollingAverage) average() time.Duration {
	if r.filled == 0 {
		return 0
	}
	return r.total / time.Duration(r.filled)
}

// Metrics keeps rolling GPU and host timings per named section. GPU samples
// come from timestamp query pairs scaled by the device timestamp period.
type Metrics struct {
	mutex sync.Mutex
	// nanoseconds per timestamp tick
	period float64
	// bits of a timestamp that carry data, 64 when unknown
	validBits uint32
	sections  map[string]*rollingAverage
}

func NewMetrics(timestampPeriod float32, validBits uint32) *Metrics {
	if validBits == 0 || validBits > 64 {
		validBits = 64
	}
	return &Metrics{
		period:    float64(timestampPeriod),
		validBits: validBits,
		sections:  make(map[string]*rollingAverage),
	}
}

// TicksToDuration converts a timestamp delta into host time.
func (m *Metrics) TicksToDuration(ticks uint64) time.Duration {
	return time.Duration(float64(ticks) * m.period)
}

// RecordTimestamps adds the time between two timestamps to the named
// section and returns it.
func (m *Metrics) RecordTimestamps(name string, begin, end uint64) (time.Duration, error) {
	if m.validBits < 64 {
		mask := uint64(1)<<m.validBits - 1
		begin &= mask
		end &= mask
	}
	if end < begin {
		return 0, fmt.Errorf("%w: %s: %d < %d", ErrTimestampOrder, name, end, begin)
	}
	d := m.TicksToDuration(end - begin)
	m.Record(name, d)
	return d, nil
}

// Record adds a host measured sample to the named section.
func (m *Metrics) Record(name string, d time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	s, ok := m.sections[name]
	if !ok {
		s = &rollingAverage{}
		m.sections[name] = s
	}
	s.add(d)
}

// AverageMS returns the rolling average of a section in milliseconds.
func (m *Metrics) AverageMS(name string) (float64, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	s, ok := m.sections[name]
	if !ok {
		return 0, false
	}
	return float64(s.average()) / float64(time.Millisecond), true
}

// Last returns the most recent sample of a section.
func (m *Metrics) Last(name string) (time.Duration, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	s, ok := m.sections[name]
	if !ok {
		return 0, false
	}
	return s.last, true
}

func (m *Metrics) Sections() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	names := make([]string, 0, len(m.sections))
	for name := range m.sections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Report logs the average of every section at info level.
func (m *Metrics) Report() {
	for _, name := range m.Sections() {
		if avg, ok := m.AverageMS(name); ok {
			LogInfo("%s: %.3f ms (avg of last %d)", name, avg, AVG_COUNT)
		}
	}
}
