/*
 * rv64sim - Serial output device.
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

package device

import (
	"log/slog"

	"rv64sim/addr"
)

const serialQueueCapacity = 1024

// Serial is a write-only byte sink at offset 0. Writes queue bytes up to
// serialQueueCapacity; once full, further bytes are dropped and logged.
// Every tick it flushes whatever is queued to its HostSink and drains the
// queue, so Period reports 1.
type Serial struct {
	log   *slog.Logger
	sink  HostSink
	queue []byte
}

// NewSerial creates a Serial device delivering flushed bytes to sink and
// logging queue-full drops to log.
func NewSerial(log *slog.Logger, sink HostSink) *Serial {
	if sink == nil {
		sink = NullHostSink{}
	}
	return &Serial{log: log, sink: sink}
}

func (s *Serial) Len() uint64 { return 1 }

func (s *Serial) Period() uint64 { return 1 }

// Read always returns 0; the serial device exposes no readable state.
func (s *Serial) Read(offset uint64, w addr.Width) uint64 {
	return 0
}

// Write accepts a single byte at offset 0 per call, queuing it for the next
// flush. Any other offset is ignored.
func (s *Serial) Write(offset uint64, w addr.Width, v uint64) {
	if offset != 0 {
		return
	}
	if len(s.queue) >= serialQueueCapacity {
		s.log.Error("serial queue full, dropping byte", "byte", byte(v))
		return
	}
	s.queue = append(s.queue, byte(v))
}

// Flush delivers the queued bytes to the host sink and clears the queue.
// Registered as the device's periodic clock callback.
func (s *Serial) Flush(now, scheduledWhen uint64) {
	if len(s.queue) == 0 {
		return
	}
	out := s.queue
	s.queue = nil
	s.sink.Flush(out)
}

// Pending returns a copy of the currently queued, unflushed bytes. Intended
// for tests and the interactive monitor, not the hot path.
func (s *Serial) Pending() []byte {
	out := make([]byte, len(s.queue))
	copy(out, s.queue)
	return out
}
