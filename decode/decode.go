/*
 * rv64sim - RV64IMA instruction decoder.
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

import (
	"rv64sim/addr"
	"rv64sim/simerr"
)

// rKey is funct7<<10 | funct3<<7 | opcode, matching the key scheme other
// RISC-V decoders in the pack use to look up a dispatch table entry in one
// map access.
func rKey(w uint32) uint32 {
	return fieldFunct7(w)<<10 | fieldFunct3(w)<<7 | opcodeOf(w)
}

var rTable = map[uint32]Op{
	fKey(0x00, 0x0, opOp): OpADD, fKey(0x20, 0x0, opOp): OpSUB,
	fKey(0x00, 0x1, opOp): OpSLL, fKey(0x00, 0x2, opOp): OpSLT,
	fKey(0x00, 0x3, opOp): OpSLTU, fKey(0x00, 0x4, opOp): OpXOR,
	fKey(0x00, 0x5, opOp): OpSRL, fKey(0x20, 0x5, opOp): OpSRA,
	fKey(0x00, 0x6, opOp): OpOR, fKey(0x00, 0x7, opOp): OpAND,

	fKey(0x00, 0x0, opOp32): OpADDW, fKey(0x20, 0x0, opOp32): OpSUBW,
	fKey(0x00, 0x1, opOp32): OpSLLW,
	fKey(0x00, 0x5, opOp32): OpSRLW, fKey(0x20, 0x5, opOp32): OpSRAW,

	fKey(0x01, 0x0, opOp): OpMUL, fKey(0x01, 0x1, opOp): OpMULH,
	fKey(0x01, 0x2, opOp): OpMULHSU, fKey(0x01, 0x3, opOp): OpMULHU,
	fKey(0x01, 0x4, opOp): OpDIV, fKey(0x01, 0x5, opOp): OpDIVU,
	fKey(0x01, 0x6, opOp): OpREM, fKey(0x01, 0x7, opOp): OpREMU,

	fKey(0x01, 0x0, opOp32): OpMULW,
	fKey(0x01, 0x4, opOp32): OpDIVW, fKey(0x01, 0x5, opOp32): OpDIVUW,
	fKey(0x01, 0x6, opOp32): OpREMW, fKey(0x01, 0x7, opOp32): OpREMUW,
}

// fKey builds the same key rKey computes from already-split fields, for
// use in the literal table above.
func fKey(funct7, funct3, opcode uint32) uint32 {
	return funct7<<10 | funct3<<7 | opcode
}

// amoKey is funct5<<3 | funct3, distinguishing the AMO operation and its
// W/D width.
func amoKey(funct5, funct3 uint32) uint32 { return funct5<<3 | funct3 }

var amoTable = map[uint32]Op{
	amoKey(0x02, 0x2): OpLRW, amoKey(0x03, 0x2): OpSCW,
	amoKey(0x01, 0x2): OpAMOSWAPW, amoKey(0x00, 0x2): OpAMOADDW,
	amoKey(0x04, 0x2): OpAMOXORW, amoKey(0x0C, 0x2): OpAMOANDW,
	amoKey(0x08, 0x2): OpAMOORW, amoKey(0x10, 0x2): OpAMOMINW,
	amoKey(0x14, 0x2): OpAMOMAXW, amoKey(0x18, 0x2): OpAMOMINUW,
	amoKey(0x1C, 0x2): OpAMOMAXUW,

	amoKey(0x02, 0x3): OpLRD, amoKey(0x03, 0x3): OpSCD,
	amoKey(0x01, 0x3): OpAMOSWAPD, amoKey(0x00, 0x3): OpAMOADDD,
	amoKey(0x04, 0x3): OpAMOXORD, amoKey(0x0C, 0x3): OpAMOANDD,
	amoKey(0x08, 0x3): OpAMOORD, amoKey(0x10, 0x3): OpAMOMIND,
	amoKey(0x14, 0x3): OpAMOMAXD, amoKey(0x18, 0x3): OpAMOMINUD,
	amoKey(0x1C, 0x3): OpAMOMAXUD,
}

// Decode turns one little-endian 32-bit instruction word into its tagged
// Instruction. pc is used only to annotate a DecodeError; it plays no part
// in the decode itself.
func Decode(pc addr.PAddr, word uint32) (Instruction, error) {
	if word&0x3 != 0x3 {
		// A compressed (16-bit) instruction. This core implements only the
		// 32-bit RV64IMA encoding.
		return Instruction{}, &simerr.DecodeError{Kind: simerr.Unimplemented, PC: pc, Word: word}
	}

	rd, rs1, rs2 := fieldRd(word), fieldRs1(word), fieldRs2(word)
	f3 := fieldFunct3(word)
	op := opcodeOf(word)

	switch op {
	case opLUI:
		return Instruction{Op: OpLUI, Raw: word, Rd: rd, Imm: uImm(word)}, nil
	case opAUIPC:
		return Instruction{Op: OpAUIPC, Raw: word, Rd: rd, Imm: uImm(word)}, nil
	case opJAL:
		return Instruction{Op: OpJAL, Raw: word, Rd: rd, Imm: jImm(word)}, nil
	case opJALR:
		if f3 != 0 {
			return unknown(pc, word)
		}
		return Instruction{Op: OpJALR, Raw: word, Rd: rd, Rs1: rs1, Imm: iImm(word)}, nil

	case opBranch:
		branchOps := map[uint32]Op{0: OpBEQ, 1: OpBNE, 4: OpBLT, 5: OpBGE, 6: OpBLTU, 7: OpBGEU}
		o, ok := branchOps[f3]
		if !ok {
			return unknown(pc, word)
		}
		return Instruction{Op: o, Raw: word, Rs1: rs1, Rs2: rs2, Imm: bImm(word)}, nil

	case opLoad:
		loadOps := map[uint32]Op{0: OpLB, 1: OpLH, 2: OpLW, 3: OpLD, 4: OpLBU, 5: OpLHU, 6: OpLWU}
		o, ok := loadOps[f3]
		if !ok {
			return unknown(pc, word)
		}
		return Instruction{Op: o, Raw: word, Rd: rd, Rs1: rs1, Imm: iImm(word)}, nil

	case opStore:
		storeOps := map[uint32]Op{0: OpSB, 1: OpSH, 2: OpSW, 3: OpSD}
		o, ok := storeOps[f3]
		if !ok {
			return unknown(pc, word)
		}
		return Instruction{Op: o, Raw: word, Rs1: rs1, Rs2: rs2, Imm: sImm(word)}, nil

	case opOpImm:
		switch f3 {
		case 0:
			return Instruction{Op: OpADDI, Raw: word, Rd: rd, Rs1: rs1, Imm: iImm(word)}, nil
		case 2:
			return Instruction{Op: OpSLTI, Raw: word, Rd: rd, Rs1: rs1, Imm: iImm(word)}, nil
		case 3:
			return Instruction{Op: OpSLTIU, Raw: word, Rd: rd, Rs1: rs1, Imm: iImm(word)}, nil
		case 4:
			return Instruction{Op: OpXORI, Raw: word, Rd: rd, Rs1: rs1, Imm: iImm(word)}, nil
		case 6:
			return Instruction{Op: OpORI, Raw: word, Rd: rd, Rs1: rs1, Imm: iImm(word)}, nil
		case 7:
			return Instruction{Op: OpANDI, Raw: word, Rd: rd, Rs1: rs1, Imm: iImm(word)}, nil
		case 1:
			return Instruction{Op: OpSLLI, Raw: word, Rd: rd, Rs1: rs1, Imm: int64(fieldShamt64(word))}, nil
		case 5:
			o := OpSRLI
			if fieldFunct7(word)&0x20 != 0 {
				o = OpSRAI
			}
			return Instruction{Op: o, Raw: word, Rd: rd, Rs1: rs1, Imm: int64(fieldShamt64(word))}, nil
		}
		return unknown(pc, word)

	case opOpImm32:
		switch f3 {
		case 0:
			return Instruction{Op: OpADDIW, Raw: word, Rd: rd, Rs1: rs1, Imm: iImm(word)}, nil
		case 1:
			return Instruction{Op: OpSLLIW, Raw: word, Rd: rd, Rs1: rs1, Imm: int64(fieldShamt64(word) & 0x1f)}, nil
		case 5:
			o := OpSRLIW
			if fieldFunct7(word)&0x20 != 0 {
				o = OpSRAIW
			}
			return Instruction{Op: o, Raw: word, Rd: rd, Rs1: rs1, Imm: int64(fieldShamt64(word) & 0x1f)}, nil
		}
		return unknown(pc, word)

	case opOp, opOp32:
		o, ok := rTable[rKey(word)]
		if !ok {
			return unknown(pc, word)
		}
		return Instruction{Op: o, Raw: word, Rd: rd, Rs1: rs1, Rs2: rs2}, nil

	case opAMO:
		funct5, aq, rl := amoFields(word)
		o, ok := amoTable[amoKey(funct5, f3)]
		if !ok {
			return unknown(pc, word)
		}
		return Instruction{Op: o, Raw: word, Rd: rd, Rs1: rs1, Rs2: rs2, Aq: aq, Rl: rl}, nil

	case opMiscMem:
		switch f3 {
		case 0:
			return Instruction{Op: OpFENCE, Raw: word}, nil
		case 1:
			return Instruction{Op: OpFENCEI, Raw: word}, nil
		}
		return unknown(pc, word)

	case opSystem:
		switch f3 {
		case 0:
			// uret, sret, mret, wfi and sfence.vma are recognised but not
			// supported by this core.
			if word == 0x00200073 || word == 0x10200073 || word == 0x30200073 ||
				word == 0x10500073 || word&0xFE007FFF == 0x12000073 {
				return Instruction{}, &simerr.DecodeError{Kind: simerr.Unimplemented, PC: pc, Word: word}
			}
			if rd != 0 || rs1 != 0 {
				return unknown(pc, word)
			}
			switch iImm(word) {
			case 0:
				return Instruction{Op: OpECALL, Raw: word}, nil
			case 1:
				return Instruction{Op: OpEBREAK, Raw: word}, nil
			}
			return unknown(pc, word)
		case 1:
			return Instruction{Op: OpCSRRW, Raw: word, Rd: rd, Rs1: rs1, Csr: uint16(uint32(word) >> 20)}, nil
		case 2:
			return Instruction{Op: OpCSRRS, Raw: word, Rd: rd, Rs1: rs1, Csr: uint16(uint32(word) >> 20)}, nil
		case 3:
			return Instruction{Op: OpCSRRC, Raw: word, Rd: rd, Rs1: rs1, Csr: uint16(uint32(word) >> 20)}, nil
		case 5:
			return Instruction{Op: OpCSRRWI, Raw: word, Rd: rd, Rs1: rs1, Csr: uint16(uint32(word) >> 20)}, nil
		case 6:
			return Instruction{Op: OpCSRRSI, Raw: word, Rd: rd, Rs1: rs1, Csr: uint16(uint32(word) >> 20)}, nil
		case 7:
			return Instruction{Op: OpCSRRCI, Raw: word, Rd: rd, Rs1: rs1, Csr: uint16(uint32(word) >> 20)}, nil
		}
		return unknown(pc, word)
	}

	return unknown(pc, word)
}

func unknown(pc addr.PAddr, word uint32) (Instruction, error) {
	return Instruction{}, &simerr.DecodeError{Kind: simerr.Unknown, PC: pc, Word: word}
}
