/*
 * rv64sim - Real time clock device.
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

import "rv64sim/addr"

// RTC is a read-only real-time clock exposing a 64-bit microsecond counter
// as two 32-bit halves: the high half at offset 0, the low half at offset
// 4. It has no periodic callback of its own; the counter advances with
// whatever host-time source NowMicros is wired to.
type RTC struct {
	NowMicros func() uint64
}

// NewRTC creates an RTC reading the current time from now.
func NewRTC(now func() uint64) *RTC {
	return &RTC{NowMicros: now}
}

func (r *RTC) Len() uint64 { return 8 }

func (r *RTC) Read(offset uint64, w addr.Width) uint64 {
	us := r.NowMicros()
	switch offset {
	case 0:
		return us >> 32
	case 4:
		return us & 0xFFFFFFFF
	default:
		return 0
	}
}

// Write is a no-op; the RTC is read-only.
func (r *RTC) Write(offset uint64, w addr.Width, v uint64) {}
