/*
 * rv64sim - Instruction bit-field accessors.
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

package decode

const (
	opLoad     = 0x03
	opMiscMem  = 0x0F
	opOpImm    = 0x13
	opAUIPC    = 0x17
	opOpImm32  = 0x1B
	opStore    = 0x23
	opAMO      = 0x2F
	opOp       = 0x33
	opLUI      = 0x37
	opOp32     = 0x3B
	opBranch   = 0x63
	opJALR     = 0x67
	opJAL      = 0x6F
	opSystem   = 0x73
)

func opcodeOf(w uint32) uint32 { return w & 0x7f }
func fieldRd(w uint32) uint8   { return uint8((w >> 7) & 0x1f) }
func fieldRs1(w uint32) uint8  { return uint8((w >> 15) & 0x1f) }
func fieldRs2(w uint32) uint8  { return uint8((w >> 20) & 0x1f) }
func fieldFunct3(w uint32) uint32 { return (w >> 12) & 0x7 }
func fieldFunct7(w uint32) uint32 { return (w >> 25) & 0x7f }
func fieldShamt64(w uint32) uint8 { return uint8((w >> 20) & 0x3f) }

// iImm sign-extends the 12-bit I-type immediate at bits [31:20].
func iImm(w uint32) int64 {
	return int64(int32(w) >> 20)
}

// sImm assembles and sign-extends the S-type immediate from bits
// [31:25] and [11:7].
func sImm(w uint32) int64 {
	imm := ((w >> 7) & 0x1f) | (((w >> 25) & 0x7f) << 5)
	return int64(int32(imm<<20) >> 20)
}

// bImm assembles and sign-extends the B-type immediate (always even).
func bImm(w uint32) int64 {
	imm := (((w >> 8) & 0xf) << 1) |
		(((w >> 25) & 0x3f) << 5) |
		(((w >> 7) & 0x1) << 11) |
		(((w >> 31) & 0x1) << 12)
	return int64(int32(imm<<19) >> 19)
}

// uImm returns the U-type immediate already shifted into bits [31:12].
func uImm(w uint32) int64 {
	return int64(int32(w & 0xFFFFF000))
}

// jImm assembles and sign-extends the J-type immediate (always even).
func jImm(w uint32) int64 {
	imm := (((w >> 21) & 0x3ff) << 1) |
		(((w >> 20) & 0x1) << 11) |
		(((w >> 12) & 0xff) << 12) |
		(((w >> 31) & 0x1) << 20)
	return int64(int32(imm<<11) >> 11)
}

// amoFields extracts the funct5/aq/rl fields of the AMO form; rd, rs1,
// rs2, and funct3 (the access width) use the ordinary R-type positions.
func amoFields(w uint32) (funct5 uint32, aq, rl bool) {
	funct5 = (w >> 27) & 0x1f
	aq = (w>>26)&1 != 0
	rl = (w>>25)&1 != 0
	return
}
