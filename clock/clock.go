/*
 * rv64sim - Virtual event clock.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package clock

import "container/heap"

// Policy selects how a periodic timer's next due time is computed relative
// to the fire time.
type Policy int

const (
	// PolicyOnce reschedules from the moment the timer actually fired,
	// letting drift accumulate across late fires.
	PolicyOnce Policy = iota
	// PolicyCompensation reschedules from the timer's own scheduled time,
	// keeping cadence drift-free across late fires.
	PolicyCompensation
)

// Callback receives the clock's current time and the time the timer was
// actually scheduled to fire at (they can differ if the clock advanced past
// several due timers in one Advance call). Callbacks must not reentrantly
// call Advance or Register on the clock they were fired from.
type Callback func(now, scheduledWhen uint64)

type timer struct {
	when     uint64
	period   *uint64 // nil for a one-shot timer
	policy   Policy
	cb       Callback
	sequence uint64 // insertion order, for FIFO tie-break
}

type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].when != h[j].when {
		return h[i].when < h[j].when
	}
	return h[i].sequence < h[j].sequence
}

func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) {
	*h = append(*h, x.(*timer))
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// Clock is a monotonic tick counter driving a min-heap of due timers,
// ordered on absolute due time so the heap top always holds the next timer
// due regardless of how many ticks one Advance call crosses.
type Clock struct {
	now    uint64
	heap   timerHeap
	nextID uint64
}

// New creates a Clock starting at tick 0 with no timers registered.
func New() *Clock {
	return &Clock{}
}

// Now returns the clock's current tick count.
func (c *Clock) Now() uint64 {
	return c.now
}

// Register schedules cb to fire delay ticks from now. If period is non-nil,
// the timer reschedules itself after firing according to policy; otherwise
// it fires once and is retired.
func (c *Clock) Register(delay uint64, period *uint64, policy Policy, cb Callback) {
	t := &timer{
		when:     c.now + delay,
		period:   period,
		policy:   policy,
		cb:       cb,
		sequence: c.nextID,
	}
	c.nextID++
	heap.Push(&c.heap, t)
}

// Advance increases now by delta, then fires every timer whose when is now
// <= the new now, in ascending when order (FIFO among ties). Periodic
// timers are rescheduled per their policy and pushed back onto the heap
// before the next timer is popped. Callers retiring one instruction at a
// time should complete the instruction's own effects and PC update before
// calling Advance, since callbacks run synchronously within this call.
func (c *Clock) Advance(delta uint64) {
	c.now += delta
	for c.heap.Len() > 0 && c.heap[0].when <= c.now {
		t := heap.Pop(&c.heap).(*timer)
		scheduledWhen := t.when
		t.cb(c.now, scheduledWhen)

		if t.period == nil {
			continue
		}
		switch t.policy {
		case PolicyCompensation:
			t.when = scheduledWhen + *t.period
		default: // PolicyOnce
			t.when = c.now + *t.period
		}
		t.sequence = c.nextID
		c.nextID++
		heap.Push(&c.heap, t)
	}
}

// Pending reports whether any timer is currently registered.
func (c *Clock) Pending() bool {
	return c.heap.Len() > 0
}
