/*
 * rv64sim - Keyboard device.
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

// Scancode is a fixed, private key ordinal. It deliberately does not reuse
// any host input library's numbering (SDL, termbox, X11 keysyms, ...) so
// that guest software compiled against this device sees stable values
// regardless of what the frontend in any given build links against.
type Scancode uint32

// KeyDownFlag is set in a queued event's low halfword when the key was
// pressed; a clear flag means the key was released. Host adapters OR it
// into the scancode before handing the event to PollEvents.
const KeyDownFlag uint32 = 1 << 15

const (
	ScancodeNone Scancode = iota
	ScancodeA
	ScancodeB
	ScancodeC
	ScancodeD
	ScancodeE
	ScancodeF
	ScancodeG
	ScancodeH
	ScancodeI
	ScancodeJ
	ScancodeK
	ScancodeL
	ScancodeM
	ScancodeN
	ScancodeO
	ScancodeP
	ScancodeQ
	ScancodeR
	ScancodeS
	ScancodeT
	ScancodeU
	ScancodeV
	ScancodeW
	ScancodeX
	ScancodeY
	ScancodeZ
	Scancode0
	Scancode1
	Scancode2
	Scancode3
	Scancode4
	Scancode5
	Scancode6
	Scancode7
	Scancode8
	Scancode9
	ScancodeReturn
	ScancodeEscape
	ScancodeBackspace
	ScancodeTab
	ScancodeSpace
	ScancodeUp
	ScancodeDown
	ScancodeLeft
	ScancodeRight
)

const keyboardQueueCapacity = 1024

// Keyboard exposes a FIFO of queued scancodes at offset 0: each read pops
// the oldest pending event, or returns 0 (ScancodeNone) if none is queued.
// Events are pulled from the host sink once per callback period.
type Keyboard struct {
	sink  HostSink
	queue []Scancode
}

// NewKeyboard creates a Keyboard pulling host key events from sink.
func NewKeyboard(sink HostSink) *Keyboard {
	if sink == nil {
		sink = NullHostSink{}
	}
	return &Keyboard{sink: sink}
}

func (k *Keyboard) Len() uint64 { return 4 }

func (k *Keyboard) Period() uint64 { return 1000 }

// Read pops the oldest queued scancode, or returns ScancodeNone if the
// queue is empty. Width is ignored; the register is always 4 bytes wide.
func (k *Keyboard) Read(offset uint64, w addr.Width) uint64 {
	if offset != 0 || len(k.queue) == 0 {
		return uint64(ScancodeNone)
	}
	sc := k.queue[0]
	k.queue = k.queue[1:]
	return uint64(sc)
}

// Write is a no-op; the keyboard register is read-only from the guest.
func (k *Keyboard) Write(offset uint64, w addr.Width, v uint64) {}

// Poll pulls pending host events into the queue, dropping the oldest
// entries first if the queue would overflow. Registered as the device's
// periodic clock callback.
func (k *Keyboard) Poll(now, scheduledWhen uint64) {
	for _, raw := range k.sink.PollEvents() {
		if len(k.queue) >= keyboardQueueCapacity {
			k.queue = k.queue[1:]
		}
		k.queue = append(k.queue, Scancode(raw))
	}
}
