/*
 * rv64sim - MMIO device interfaces.
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

// Timed is the capability a device implements if it wants a periodic
// callback registered on the virtual clock. Not every Peripheral needs
// this: RTC is read-only and stateless between reads, so it has no Timed
// implementation.
type Timed interface {
	// Period returns the callback period in ticks.
	Period() uint64
}

// HostSink is the seam between a device and whatever is presenting the
// guest's output to the outside world. The default, NullHostSink, discards
// everything; a terminal or windowed frontend supplies its own.
type HostSink interface {
	// Flush delivers bytes written to the serial device, in order.
	Flush(bytes []byte)
	// PollEvents returns keyboard scancodes queued by the host since the
	// last call, oldest first.
	PollEvents() []uint32
	// Present delivers a full framebuffer snapshot for display.
	Present(pixels []byte)
}

// NullHostSink discards all output and reports no input.
type NullHostSink struct{}

func (NullHostSink) Flush(bytes []byte)    {}
func (NullHostSink) PollEvents() []uint32  { return nil }
func (NullHostSink) Present(pixels []byte) {}
