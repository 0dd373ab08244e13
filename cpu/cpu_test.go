/*
 * rv64sim - Interpreter test cases.
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

package cpu

import (
	"bytes"
	"encoding/binary"
	"log/slog"
	"testing"

	"rv64sim/addr"
	"rv64sim/bus"
	"rv64sim/clock"
	"rv64sim/memory"
	"rv64sim/mmu"
)

const base = addr.PAddr(0x8000_0000)

func newTestCPU(t *testing.T, program []uint32) *CPU {
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
	return New(m, clock.New(), log, addr.VAddr(base))
}

func rType(funct7, rs2, rs1, funct3, rd, opcode uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func iType(imm, rs1, funct3, rd, opcode uint32) uint32 {
	return (imm&0xfff)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func sType(imm uint32, rs2, rs1, funct3 uint32) uint32 {
	return (imm>>5)<<25 | rs2<<20 | rs1<<15 | funct3<<12 | (imm&0x1f)<<7 | 0x23
}

func addi(rd, rs1 uint32, imm int32) uint32 {
	return iType(uint32(imm), rs1, 0, rd, 0x13)
}

func add(rd, rs1, rs2 uint32) uint32 {
	return rType(0, rs2, rs1, 0, rd, 0x33)
}

// auipc rd, 0 materializes the current PC; tests use it to get the RAM base
// into a register, since lui of 0x80000000 sign-extends past the RAM window.
func auipc(rd, imm32 uint32) uint32 {
	return (imm32 & 0xFFFFF000) | rd<<7 | 0x17
}

func lui(rd, imm32 uint32) uint32 {
	return (imm32 & 0xFFFFF000) | rd<<7 | 0x37
}

func ebreak() uint32 {
	return iType(1, 0, 0, 0, 0x73)
}

func lrw(rd, rs1 uint32) uint32 {
	return 0x02<<27 | rs1<<15 | 2<<12 | rd<<7 | 0x2F
}

func scw(rd, rs1, rs2 uint32) uint32 {
	return 0x03<<27 | rs2<<20 | rs1<<15 | 2<<12 | rd<<7 | 0x2F
}

func TestADDIThenEBREAK(t *testing.T) {
	c := newTestCPU(t, []uint32{
		addi(10, 0, 41), // a0 = 0 + 41
		addi(10, 10, 1), // a0 += 1
		ebreak(),
	})
	if _, err := c.Exec(10); err != nil {
		t.Fatal(err)
	}
	if c.State() != End {
		t.Fatalf("state = %v, want End", c.State())
	}
	if c.HaltRet() != 42 {
		t.Fatalf("a0 at halt = %d, want 42", c.HaltRet())
	}
}

func TestX0WritesAreDropped(t *testing.T) {
	c := newTestCPU(t, []uint32{
		addi(0, 0, 99),
		ebreak(),
	})
	if _, err := c.Exec(10); err != nil {
		t.Fatal(err)
	}
	if c.Reg(0) != 0 {
		t.Fatalf("x0 = %d, want 0", c.Reg(0))
	}
}

func TestADD(t *testing.T) {
	c := newTestCPU(t, []uint32{
		addi(1, 0, 5),
		addi(2, 0, 7),
		add(10, 1, 2),
		ebreak(),
	})
	if _, err := c.Exec(10); err != nil {
		t.Fatal(err)
	}
	if c.HaltRet() != 12 {
		t.Fatalf("got %d want 12", c.HaltRet())
	}
}

func TestLUISignExtends(t *testing.T) {
	c := newTestCPU(t, []uint32{
		lui(5, 0x80000000),
		ebreak(),
	})
	if _, err := c.Exec(10); err != nil {
		t.Fatal(err)
	}
	if c.Reg(5) != 0xFFFFFFFF_80000000 {
		t.Fatalf("x5 = %#x, want %#x", c.Reg(5), uint64(0xFFFFFFFF_80000000))
	}
}

func TestLoadStoreRoundTrip(t *testing.T) {
	lw := func(rd, rs1 uint32, imm int32) uint32 {
		return iType(uint32(imm), rs1, 2, rd, 0x03)
	}
	c := newTestCPU(t, []uint32{
		auipc(3, 0),           // x3 = RAM base
		addi(1, 0, 0x123),     // x1 = 0x123
		sType(0x100, 1, 3, 2), // sw x1, 0x100(x3)
		lw(10, 3, 0x100),      // a0 = mem[base+0x100]
		ebreak(),
	})
	if _, err := c.Exec(10); err != nil {
		t.Fatal(err)
	}
	if c.HaltRet() != 0x123 {
		t.Fatalf("got %#x want %#x", c.HaltRet(), 0x123)
	}
}

// TestBootDefaultImage runs the default boot stream: auipc t0,0;
// sb zero,16(t0); lbu a0,16(t0); ebreak; 0xdeadbeef. It must terminate with
// a0 == 0 and the halt PC on the ebreak itself.
func TestBootDefaultImage(t *testing.T) {
	c := newTestCPU(t, []uint32{
		0x00000297, // auipc t0, 0
		0x00028823, // sb zero, 16(t0)
		0x0102c503, // lbu a0, 16(t0)
		0x00100073, // ebreak
		0xdeadbeef,
	})
	n, err := c.Exec(100)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Fatalf("retired %d instructions, want 4", n)
	}
	if c.State() != End {
		t.Fatalf("state = %v, want End", c.State())
	}
	if c.HaltRet() != 0 {
		t.Fatalf("halt_ret = %d, want 0", c.HaltRet())
	}
	if c.HaltPC() != addr.VAddr(base)+0xc {
		t.Fatalf("halt_pc = %s, want base+0xc", c.HaltPC())
	}
	// Terminal states return immediately from Exec.
	n, err = c.Exec(100)
	if err != nil || n != 0 {
		t.Fatalf("Exec after End retired %d (err=%v), want 0", n, err)
	}
}

// TestTenStores retires addi sp,sp,-32 (0xfe010113) ten times, checking PC
// and sp after every step.
func TestTenStores(t *testing.T) {
	program := make([]uint32, 0, 11)
	for i := 0; i < 10; i++ {
		program = append(program, 0xfe010113)
	}
	program = append(program, ebreak())

	c := newTestCPU(t, program)
	c.SetReg(2, uint64(base)) // sp = RAM base

	for i := 1; i <= 10; i++ {
		if err := c.ExecOnce(); err != nil {
			t.Fatal(err)
		}
		if c.PC() != addr.VAddr(base)+addr.VAddr(4*i) {
			t.Fatalf("after step %d: pc = %s, want base+%#x", i, c.PC(), 4*i)
		}
		if want := uint64(base) - 32*uint64(i); c.Reg(2) != want {
			t.Fatalf("after step %d: sp = %#x, want %#x", i, c.Reg(2), want)
		}
	}
}

// TestMulhEdgeCases checks the three upper-half multiplies for
// a1 = a2 = -1.
func TestMulhEdgeCases(t *testing.T) {
	cases := []struct {
		name   string
		funct3 uint32
		want   uint64
	}{
		{"mulh", 1, 0},
		{"mulhu", 3, ^uint64(0) - 1},
		{"mulhsu", 2, ^uint64(0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestCPU(t, []uint32{
				addi(11, 0, -1),
				addi(12, 0, -1),
				rType(0x01, 12, 11, tc.funct3, 10, 0x33),
				ebreak(),
			})
			if _, err := c.Exec(10); err != nil {
				t.Fatal(err)
			}
			if c.HaltRet() != tc.want {
				t.Fatalf("a0 = %#x, want %#x", c.HaltRet(), tc.want)
			}
		})
	}
}

// TestDivuwIgnoresHighBits checks that divuw truncates both operands to 32
// bits before dividing: 0x1_0000_0003 / 2 must see only 0x3.
func TestDivuwIgnoresHighBits(t *testing.T) {
	c := newTestCPU(t, []uint32{
		rType(0x01, 12, 11, 5, 10, 0x3B), // divuw a0, a1, a2
		ebreak(),
	})
	c.SetReg(11, 0x1_0000_0003)
	c.SetReg(12, 0x2)
	if _, err := c.Exec(10); err != nil {
		t.Fatal(err)
	}
	if c.HaltRet() != 0x1 {
		t.Fatalf("a0 = %#x, want 0x1", c.HaltRet())
	}
}

// TestAddwSignExtends checks that the upper 32 bits of a W-op result are
// bit 31 of the 32-bit result, replicated.
func TestAddwSignExtends(t *testing.T) {
	c := newTestCPU(t, []uint32{
		rType(0, 12, 11, 0, 10, 0x3B), // addw a0, a1, a2
		ebreak(),
	})
	c.SetReg(11, 0x7FFFFFFF)
	c.SetReg(12, 1)
	if _, err := c.Exec(10); err != nil {
		t.Fatal(err)
	}
	if c.HaltRet() != 0xFFFFFFFF_80000000 {
		t.Fatalf("a0 = %#x, want %#x", c.HaltRet(), uint64(0xFFFFFFFF_80000000))
	}
}

// TestShiftAmountMasks checks that sllw masks the shift amount to 5 bits
// and sll masks it to 6.
func TestShiftAmountMasks(t *testing.T) {
	sllw := func(rd, rs1, rs2 uint32) uint32 { return rType(0, rs2, rs1, 1, rd, 0x3B) }
	sll := func(rd, rs1, rs2 uint32) uint32 { return rType(0, rs2, rs1, 1, rd, 0x33) }

	c := newTestCPU(t, []uint32{
		sllw(10, 11, 12), // shamt 33 -> low 5 bits = 1
		sll(13, 11, 14),  // shamt 65 -> low 6 bits = 1
		ebreak(),
	})
	c.SetReg(11, 1)
	c.SetReg(12, 33)
	c.SetReg(14, 65)
	if _, err := c.Exec(10); err != nil {
		t.Fatal(err)
	}
	if c.Reg(10) != 2 {
		t.Fatalf("sllw by 33: got %d, want 2", c.Reg(10))
	}
	if c.Reg(13) != 2 {
		t.Fatalf("sll by 65: got %d, want 2", c.Reg(13))
	}
}

func TestUnimplementedECALLAborts(t *testing.T) {
	ecall := iType(0, 0, 0, 0, 0x73)
	c := newTestCPU(t, []uint32{ecall})
	_, err := c.Exec(1)
	if err == nil {
		t.Fatal("expected an error from ecall")
	}
	if c.State() != Abort {
		t.Fatalf("state = %v, want Abort", c.State())
	}
}

func TestRegByNameABI(t *testing.T) {
	c := newTestCPU(t, []uint32{addi(10, 0, 7), ebreak()})
	if _, err := c.Exec(10); err != nil {
		t.Fatal(err)
	}
	v, ok := c.RegByName("a0")
	if !ok || v != 7 {
		t.Fatalf("a0 = %d, ok=%v, want 7", v, ok)
	}
}

func TestRemByZeroReturnsDividend(t *testing.T) {
	rem := func(rd, rs1, rs2 uint32) uint32 {
		return rType(0x01, rs2, rs1, 6, rd, 0x33)
	}
	c := newTestCPU(t, []uint32{
		addi(1, 0, 17), // x1 = 17
		addi(2, 0, 0),  // x2 = 0
		rem(10, 1, 2),  // a0 = 17 rem 0
		ebreak(),
	})
	if _, err := c.Exec(10); err != nil {
		t.Fatal(err)
	}
	if c.HaltRet() != 17 {
		t.Fatalf("got %d want dividend 17", c.HaltRet())
	}
}

func TestLRSCSucceedsWithoutInterveningStore(t *testing.T) {
	c := newTestCPU(t, []uint32{
		auipc(3, 0), // x3 = RAM base
		addi(1, 0, 55),
		lrw(2, 3),     // x2 = mem[base], reservation set
		scw(10, 3, 1), // a0 = 0 on success, mem[base] = 55
		ebreak(),
	})
	if _, err := c.Exec(10); err != nil {
		t.Fatal(err)
	}
	if c.HaltRet() != 0 {
		t.Fatalf("sc.w result = %d, want 0 (success)", c.HaltRet())
	}
}

func TestSCFailsWithoutReservation(t *testing.T) {
	c := newTestCPU(t, []uint32{
		auipc(3, 0),
		addi(1, 0, 1),
		scw(10, 3, 1), // no prior lr.w: must fail
		ebreak(),
	})
	if _, err := c.Exec(10); err != nil {
		t.Fatal(err)
	}
	if c.HaltRet() != 1 {
		t.Fatalf("sc.w result = %d, want 1 (failure)", c.HaltRet())
	}
}

// TestSCFailsAfterInterveningStore checks that any store to the reserved
// word invalidates the reservation, not only a matching sc.
func TestSCFailsAfterInterveningStore(t *testing.T) {
	c := newTestCPU(t, []uint32{
		auipc(3, 0), // x3 = RAM base
		addi(1, 0, 55),
		lrw(2, 3),         // reservation on base
		sType(0, 1, 3, 2), // sw x1, 0(x3): invalidates it
		scw(10, 3, 1),     // must fail
		ebreak(),
	})
	if _, err := c.Exec(10); err != nil {
		t.Fatal(err)
	}
	if c.HaltRet() != 1 {
		t.Fatalf("sc.w after intervening store = %d, want 1 (failure)", c.HaltRet())
	}
}

// TestSCToOtherAddressLeavesReservation checks that a failing sc to a
// different address does not clear a reservation held elsewhere.
func TestSCToOtherAddressLeavesReservation(t *testing.T) {
	c := newTestCPU(t, []uint32{
		auipc(3, 0),   // x3 = RAM base
		addi(4, 3, 8), // x4 = base + 8
		lrw(2, 3),     // reservation on base
		scw(10, 4, 0), // sc to base+8: fails, reservation untouched
		scw(11, 3, 0), // sc to base: still succeeds
		ebreak(),
	})
	if _, err := c.Exec(10); err != nil {
		t.Fatal(err)
	}
	if c.Reg(10) != 1 {
		t.Fatalf("sc.w to other address = %d, want 1 (failure)", c.Reg(10))
	}
	if c.Reg(11) != 0 {
		t.Fatalf("sc.w to reserved address = %d, want 0 (success)", c.Reg(11))
	}
}

func TestExecReturnsRetiredCount(t *testing.T) {
	c := newTestCPU(t, []uint32{
		addi(1, 0, 1),
		addi(2, 0, 2),
		addi(3, 0, 3),
		ebreak(),
	})
	n, err := c.Exec(100)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Fatalf("retired = %d, want 4 (three addi plus the ebreak)", n)
	}
}

func TestDumpRegistersIncludesPC(t *testing.T) {
	c := newTestCPU(t, []uint32{ebreak()})
	if _, err := c.Exec(1); err != nil {
		t.Fatal(err)
	}
	dump := c.DumpRegisters()
	if _, ok := dump["pc"]; !ok {
		t.Fatal("expected pc key in register dump")
	}
}
