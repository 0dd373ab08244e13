/*
 * rv64sim - GDB remote serial protocol transport.
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

package difftest

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"time"

	"rv64sim/simerr"
)

// Conn is a GDB Remote Serial Protocol connection to a reference
// simulator's gdbstub, in ack mode by default.
type Conn struct {
	conn    net.Conn
	r       *bufio.Reader
	w       *bufio.Writer
	ackMode bool
}

// Dial connects to a reference gdbstub at addr, retrying briefly while the
// reference process finishes starting up.
func Dial(addr string) (*Conn, error) {
	var last error
	for attempt := 0; attempt < 1000; attempt++ {
		c, err := net.Dial("tcp", addr)
		if err == nil {
			conn := &Conn{
				conn:    c,
				r:       bufio.NewReader(c),
				w:       bufio.NewWriter(c),
				ackMode: true,
			}
			if _, err := conn.w.Write([]byte{'+'}); err != nil {
				return nil, &simerr.DifftestError{Kind: simerr.ConnectionFailed, Err: err}
			}
			if err := conn.w.Flush(); err != nil {
				return nil, &simerr.DifftestError{Kind: simerr.ConnectionFailed, Err: err}
			}
			return conn, nil
		}
		last = err
		time.Sleep(time.Millisecond)
	}
	return nil, &simerr.DifftestError{Kind: simerr.ConnectionFailed, Err: last}
}

// Close closes the underlying TCP connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

func checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

func hexEncodeByte(b byte, out []byte) {
	const digits = "0123456789abcdef"
	out[0] = digits[b>>4]
	out[1] = digits[b&0xf]
}

func hexNibble(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	default:
		return 0, false
	}
}

func decodeHexByte(msb, lsb byte) (byte, bool) {
	hi, ok1 := hexNibble(msb)
	lo, ok2 := hexNibble(lsb)
	if !ok1 || !ok2 {
		return 0, false
	}
	return hi<<4 | lo, true
}

// decodeHexBytes decodes a run of ASCII hex digits into raw bytes.
func decodeHexBytes(hexData []byte) ([]byte, error) {
	if len(hexData)%2 != 0 {
		return nil, &simerr.DifftestError{Kind: simerr.InvalidResponse}
	}
	out := make([]byte, 0, len(hexData)/2)
	for i := 0; i+1 < len(hexData); i += 2 {
		b, ok := decodeHexByte(hexData[i], hexData[i+1])
		if !ok {
			return nil, &simerr.DifftestError{Kind: simerr.InvalidResponse}
		}
		out = append(out, b)
	}
	return out, nil
}

func encodeHexBytes(data []byte) []byte {
	out := make([]byte, len(data)*2)
	for i, b := range data {
		hexEncodeByte(b, out[i*2:i*2+2])
	}
	return out
}

// Send writes one RSP packet and, in ack mode, retries until a '+' ack is
// received.
func (c *Conn) Send(command []byte) error {
	for {
		sum := checksum(command)
		if _, err := c.w.Write([]byte{'$'}); err != nil {
			return ioErr(err)
		}
		if _, err := c.w.Write(command); err != nil {
			return ioErr(err)
		}
		if _, err := fmt.Fprintf(c.w, "#%02x", sum); err != nil {
			return ioErr(err)
		}
		if err := c.w.Flush(); err != nil {
			return ioErr(err)
		}

		if !c.ackMode {
			return nil
		}

		ack, err := c.r.ReadByte()
		if err != nil {
			return ioErr(err)
		}
		if ack == '+' {
			return nil
		}
		// '-' (NACK): resend.
	}
}

// Recv reads one RSP packet, acking or nacking its checksum, and retries
// on a checksum failure until a valid packet arrives.
func (c *Conn) Recv() ([]byte, error) {
	for {
		payload, ok, err := c.recvPacket()
		if err != nil {
			return nil, err
		}
		if !c.ackMode {
			return payload, nil
		}
		if ok {
			if _, err := c.w.Write([]byte{'+'}); err != nil {
				return nil, ioErr(err)
			}
			if err := c.w.Flush(); err != nil {
				return nil, ioErr(err)
			}
			return payload, nil
		}
		if _, err := c.w.Write([]byte{'-'}); err != nil {
			return nil, ioErr(err)
		}
		if err := c.w.Flush(); err != nil {
			return nil, ioErr(err)
		}
	}
}

// recvPacket reads one $...#XX packet, applying the '}' escape and '*'
// run-length-encoding expansions, and reports whether the trailing
// checksum matched.
func (c *Conn) recvPacket() ([]byte, bool, error) {
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			return nil, false, ioErr(err)
		}
		if b == '$' {
			break
		}
	}

	var reply []byte
	var sum byte
	escape := false

	for {
		b, err := c.r.ReadByte()
		if err != nil {
			return nil, false, ioErr(err)
		}
		sum += b

		switch b {
		case '$':
			reply = reply[:0]
			sum = 0
			escape = false
			continue
		case '#':
			sum -= '#'
			var checkBytes [2]byte
			if _, err := io.ReadFull(c.r, checkBytes[:]); err != nil {
				return nil, false, ioErr(err)
			}
			expected, ok := decodeHexByte(checkBytes[0], checkBytes[1])
			return reply, ok && sum == expected, nil
		case '}':
			escape = true
			continue
		case '*':
			if len(reply) > 0 {
				count, err := c.r.ReadByte()
				if err != nil {
					return nil, false, ioErr(err)
				}
				sum += count
				if count >= 29 && count <= 126 {
					repeat := int(count - 29)
					last := reply[len(reply)-1]
					for i := 0; i < repeat; i++ {
						reply = append(reply, last)
					}
					continue
				}
			}
		}

		if escape {
			b ^= 0x20
			escape = false
		}
		reply = append(reply, b)
	}
}

func ioErr(err error) error {
	return &simerr.DifftestError{Kind: simerr.IoError, Err: err}
}
