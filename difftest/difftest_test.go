/*
 * rv64sim - Differential test cases.
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
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net"
	"testing"

	"rv64sim/addr"
	"rv64sim/bus"
	"rv64sim/clock"
	"rv64sim/cpu"
	"rv64sim/memory"
	"rv64sim/mmu"
	"rv64sim/simerr"
)

// fakeGdbServer is a minimal in-process gdbstub good enough to exercise
// Conn/Runner: it acks every packet, answers g/G, M/m, and vCont, and
// always accepts breakpoint set/clear.
type fakeGdbServer struct {
	ln   net.Listener
	regs RegBlock
	mem  map[uint64]byte
}

func newFakeGdbServer(t *testing.T) *fakeGdbServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s := &fakeGdbServer{ln: ln, mem: make(map[uint64]byte)}
	go s.serve(t)
	return s
}

func (s *fakeGdbServer) addr() string { return s.ln.Addr().String() }

func (s *fakeGdbServer) serve(t *testing.T) {
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	r := bufio.NewReader(conn)

	// Initial ack handshake byte the client sends on connect.
	if _, err := r.ReadByte(); err != nil {
		return
	}

	for {
		payload, ok, err := readPacket(r)
		if err != nil {
			return
		}
		if !ok {
			fmt.Fprint(conn, "-")
			continue
		}
		fmt.Fprint(conn, "+")
		s.handle(conn, payload)
	}
}

// readPacket is a standalone copy of the $...#XX framing reader, kept
// separate from Conn.recvPacket so the fake server does not depend on the
// client's own decoder.
func readPacket(r *bufio.Reader) ([]byte, bool, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, false, err
		}
		if b == '$' {
			break
		}
	}
	var buf bytes.Buffer
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, false, err
		}
		if b == '#' {
			// Checksum isn't verified server-side; the fake trusts the client.
			var check [2]byte
			if _, err := r.Read(check[:]); err != nil {
				return nil, false, err
			}
			return buf.Bytes(), true, nil
		}
		buf.WriteByte(b)
	}
}

func (s *fakeGdbServer) handle(conn net.Conn, payload []byte) {
	switch {
	case len(payload) == 1 && payload[0] == 'g':
		out := make([]byte, 0, regCount*16)
		for _, v := range s.regs {
			var le [8]byte
			for i := 0; i < 8; i++ {
				le[i] = byte(v >> (8 * i))
			}
			out = append(out, encodeHexBytes(le[:])...)
		}
		sendPacket(conn, out)

	case len(payload) > 0 && payload[0] == 'G':
		hexData := payload[1:]
		for i := range s.regs {
			chunk := hexData[i*16 : i*16+16]
			raw, _ := decodeHexBytes(chunk)
			var v uint64
			for j := len(raw) - 1; j >= 0; j-- {
				v = v<<8 | uint64(raw[j])
			}
			s.regs[i] = v
		}
		sendPacket(conn, []byte("OK"))

	case len(payload) > 0 && payload[0] == 'M':
		colon := bytes.IndexByte(payload, ':')
		var address uint64
		var length int
		fmt.Sscanf(string(payload[1:colon]), "%x,%d", &address, &length)
		data, _ := decodeHexBytes(payload[colon+1:])
		for i, b := range data {
			s.mem[address+uint64(i)] = b
		}
		sendPacket(conn, []byte("OK"))

	case len(payload) > 0 && payload[0] == 'm':
		var address uint64
		var length int
		fmt.Sscanf(string(payload[1:]), "%x,%d", &address, &length)
		data := make([]byte, length)
		for i := range data {
			data[i] = s.mem[address+uint64(i)]
		}
		sendPacket(conn, encodeHexBytes(data))

	case bytes.HasPrefix(payload, []byte("vCont;s:1")):
		s.regs[32] += 4
		sendPacket(conn, []byte("OK"))

	case bytes.HasPrefix(payload, []byte("vCont;c:1")):
		sendPacket(conn, []byte("OK"))

	case len(payload) > 0 && (payload[0] == 'Z' || payload[0] == 'z'):
		sendPacket(conn, []byte("OK"))

	default:
		sendPacket(conn, nil)
	}
}

func sendPacket(conn net.Conn, data []byte) {
	var sum byte
	for _, b := range data {
		sum += b
	}
	fmt.Fprintf(conn, "$%s#%02x", data, sum)
}

func TestDialAndGetRegs(t *testing.T) {
	srv := newFakeGdbServer(t)
	srv.regs[10] = 0xDEADBEEF
	srv.regs[32] = 0x8000_0000

	conn, err := Dial(srv.addr())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	r := NewRunner(conn)
	regs, err := r.GetRegs()
	if err != nil {
		t.Fatal(err)
	}
	if regs[10] != 0xDEADBEEF {
		t.Fatalf("x10 = %#x, want %#x", regs[10], 0xDEADBEEF)
	}
	if regs[32] != 0x8000_0000 {
		t.Fatalf("pc = %#x, want %#x", regs[32], 0x8000_0000)
	}
}

func TestSetRegsRoundTrip(t *testing.T) {
	srv := newFakeGdbServer(t)
	conn, err := Dial(srv.addr())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	r := NewRunner(conn)
	var want RegBlock
	want[1] = 0x1234
	want[32] = 0x8000_0004
	if err := r.SetRegs(want); err != nil {
		t.Fatal(err)
	}
	got, err := r.GetRegs()
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestMemcpyToFromRoundTrip(t *testing.T) {
	srv := newFakeGdbServer(t)
	conn, err := Dial(srv.addr())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	r := NewRunner(conn)
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	if err := r.MemcpyTo(0x8000_0000, data); err != nil {
		t.Fatal(err)
	}
	got, err := r.MemcpyFrom(0x8000_0000, len(data))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("got %v want %v", got, data)
	}
}

func TestSingleStepAdvancesReferencePC(t *testing.T) {
	srv := newFakeGdbServer(t)
	srv.regs[32] = 0x8000_0000
	conn, err := Dial(srv.addr())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	r := NewRunner(conn)
	if err := r.SingleStep(); err != nil {
		t.Fatal(err)
	}
	regs, err := r.GetRegs()
	if err != nil {
		t.Fatal(err)
	}
	if regs[32] != 0x8000_0004 {
		t.Fatalf("pc = %#x, want %#x", regs[32], 0x8000_0004)
	}
}

func newLockstepCPU(t *testing.T, base addr.PAddr, program []uint32) *cpu.CPU {
	t.Helper()
	ram := memory.New(base, 4096)
	b := bus.New(ram)
	m := mmu.New(b)
	for i, w := range program {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], w)
		if err := m.LoadProgram(addr.VAddr(base)+addr.VAddr(4*i), buf[:]); err != nil {
			t.Fatal(err)
		}
	}
	log := slog.New(slog.NewTextHandler(new(bytes.Buffer), nil))
	return cpu.New(m, clk(), log, addr.VAddr(base))
}

func clk() *clock.Clock { return clock.New() }

func addi(rd, rs1 uint32, imm int32) uint32 {
	return (uint32(imm)&0xfff)<<20 | rs1<<15 | 0<<12 | rd<<7 | 0x13
}

func TestLockstepAgreesOnMatchingSteps(t *testing.T) {
	const base = addr.PAddr(0x8000_0000)
	srv := newFakeGdbServer(t)
	srv.regs[32] = uint64(base)

	conn, err := Dial(srv.addr())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	c := newLockstepCPU(t, base, []uint32{
		addi(0, 0, 0),
		addi(0, 0, 0),
	})

	r := NewRunner(conn)
	if err := r.Lockstep(c, 2); err != nil {
		t.Fatalf("unexpected divergence: %v", err)
	}
}

func TestLockstepDetectsMismatch(t *testing.T) {
	const base = addr.PAddr(0x8000_0000)
	srv := newFakeGdbServer(t)
	srv.regs[32] = uint64(base)

	conn, err := Dial(srv.addr())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	c := newLockstepCPU(t, base, []uint32{
		addi(1, 0, 5), // local diverges: x1 becomes 5, the fake reference never runs it
	})

	r := NewRunner(conn)
	err = r.Lockstep(c, 1)
	if err == nil {
		t.Fatal("expected a Mismatch error")
	}
	mismatch, ok := err.(*simerr.Mismatch)
	if !ok {
		t.Fatalf("got %T, want *simerr.Mismatch", err)
	}
	if mismatch.Register != "x1" {
		t.Fatalf("mismatched register = %q, want x1", mismatch.Register)
	}
}

func TestSetAndClearBreakpoint(t *testing.T) {
	srv := newFakeGdbServer(t)
	conn, err := Dial(srv.addr())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	r := NewRunner(conn)
	if err := r.SetBreakpoint(0x8000_0010); err != nil {
		t.Fatal(err)
	}
	if err := r.ClearBreakpoint(0x8000_0010); err != nil {
		t.Fatal(err)
	}
}

// TestLockstepStopsAtEbreak checks that when the next fetched word is the
// ebreak encoding, the halt retires locally only and the reference is not
// stepped past it.
func TestLockstepStopsAtEbreak(t *testing.T) {
	const base = addr.PAddr(0x8000_0000)
	srv := newFakeGdbServer(t)
	srv.regs[32] = uint64(base)

	conn, err := Dial(srv.addr())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	c := newLockstepCPU(t, base, []uint32{
		addi(0, 0, 0),
		0x00100073, // ebreak
	})

	r := NewRunner(conn)
	if err := r.Lockstep(c, 100); err != nil {
		t.Fatalf("unexpected divergence: %v", err)
	}
	if c.State() != cpu.End {
		t.Fatalf("state = %v, want End", c.State())
	}

	// Exactly one vCont;s reached the reference: its PC moved by 4 once.
	refRegs, err := r.GetRegs()
	if err != nil {
		t.Fatal(err)
	}
	if refRegs[32] != uint64(base)+4 {
		t.Fatalf("reference pc = %#x, want %#x", refRegs[32], uint64(base)+4)
	}
}

// newRawPair returns a Conn in no-ack mode wired to an in-process peer, for
// exercising the packet codec without a TCP server.
func newRawPair() (*Conn, net.Conn) {
	client, server := net.Pipe()
	c := &Conn{
		conn: client,
		r:    bufio.NewReader(client),
		w:    bufio.NewWriter(client),
	}
	return c, server
}

func TestRecvExpandsRunLengthEncoding(t *testing.T) {
	c, server := newRawPair()
	defer c.Close()
	defer server.Close()

	// 'W' then '*' with count '!' (0x21 = 33): 33-29 = 4 extra repeats.
	// The checksum covers the raw bytes as sent.
	go fmt.Fprintf(server, "$W*!#%02x", byte('W'+'*'+'!'))

	payload, err := c.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if string(payload) != "WWWWW" {
		t.Fatalf("payload = %q, want %q", payload, "WWWWW")
	}
}

func TestRecvDecodesEscapes(t *testing.T) {
	c, server := newRawPair()
	defer c.Close()
	defer server.Close()

	// A literal '}' is sent as '}' followed by '}'^0x20 == ']'.
	go fmt.Fprintf(server, "$}]#%02x", byte('}'+']'))

	payload, err := c.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if string(payload) != "}" {
		t.Fatalf("payload = %q, want %q", payload, "}")
	}
}

func TestSendFramesPacketWithChecksum(t *testing.T) {
	c, server := newRawPair()
	defer c.Close()
	defer server.Close()

	got := make(chan string, 1)
	go func() {
		buf := make([]byte, 5)
		io.ReadFull(server, buf)
		got <- string(buf)
	}()

	if err := c.Send([]byte("g")); err != nil {
		t.Fatal(err)
	}
	if wire := <-got; wire != "$g#67" {
		t.Fatalf("wire bytes = %q, want %q", wire, "$g#67")
	}
}
