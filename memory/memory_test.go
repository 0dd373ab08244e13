/*
 * rv64sim - Low level memory test cases.
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

package memory

import (
	"testing"

	"rv64sim/addr"
)

const testBase = addr.PAddr(0x8000_0000)

// TestRoundTrip checks that for every width, write then read returns the
// value written.
func TestRoundTrip(t *testing.T) {
	m := New(testBase, 4096)

	cases := []struct {
		w addr.Width
		v uint64
	}{
		{addr.Byte, 0xAB},
		{addr.Halfword, 0xBEEF},
		{addr.Word, 0xDEADBEEF},
		{addr.Doubleword, 0x0123456789ABCDEF},
	}

	for _, c := range cases {
		if err := m.Write(testBase.Add(16), c.w, c.v); err != nil {
			t.Fatalf("write width %v: %v", c.w, err)
		}
		got, err := m.Read(testBase.Add(16), c.w)
		if err != nil {
			t.Fatalf("read width %v: %v", c.w, err)
		}
		if got != c.v {
			t.Errorf("width %v: got %#x want %#x", c.w, got, c.v)
		}
	}
}

func TestLittleEndian(t *testing.T) {
	m := New(testBase, 4096)
	if err := m.Write(testBase, addr.Word, 0x11223344); err != nil {
		t.Fatal(err)
	}
	b0, _ := m.Read(testBase, addr.Byte)
	b1, _ := m.Read(testBase.Add(1), addr.Byte)
	b2, _ := m.Read(testBase.Add(2), addr.Byte)
	b3, _ := m.Read(testBase.Add(3), addr.Byte)
	if b0 != 0x44 || b1 != 0x33 || b2 != 0x22 || b3 != 0x11 {
		t.Errorf("not little-endian: got %02x %02x %02x %02x", b0, b1, b2, b3)
	}
}

func TestOutOfBounds(t *testing.T) {
	m := New(testBase, 16)

	if _, err := m.Read(testBase.Add(16), addr.Byte); err == nil {
		t.Error("expected out of bounds error reading past end")
	}
	if _, err := m.Read(testBase.Add(13), addr.Doubleword); err == nil {
		t.Error("expected out of bounds error for straddling access")
	}
	if _, err := m.Read(testBase.Add(0).Add(^uint64(0)), addr.Byte); err == nil {
		t.Error("expected out of bounds error for address below base")
	}
}

func TestUnalignedAllowed(t *testing.T) {
	m := New(testBase, 4096)
	if err := m.Write(testBase.Add(1), addr.Doubleword, 0x1); err != nil {
		t.Fatalf("unaligned write should be allowed: %v", err)
	}
	v, err := m.Read(testBase.Add(1), addr.Doubleword)
	if err != nil || v != 1 {
		t.Fatalf("unaligned read mismatch: v=%d err=%v", v, err)
	}
}

func TestLoadBytes(t *testing.T) {
	m := New(testBase, 4096)
	img := []byte{0x01, 0x02, 0x03, 0x04}
	if err := m.LoadBytes(testBase, img); err != nil {
		t.Fatal(err)
	}
	v, err := m.Read(testBase, addr.Word)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x04030201 {
		t.Errorf("got %#x want %#x", v, 0x04030201)
	}
}
