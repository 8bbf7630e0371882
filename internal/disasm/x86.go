package disasm

import (
	"golang.org/x/arch/x86/x86asm"

	"github.com/quininer/fi/internal/object"
)

func (it *InstIter) nextX86() Inst {
	pc := it.addr + uint64(it.off)
	inst, err := x86asm.Decode(it.code[it.off:], 64)
	if err != nil {
		data := it.code[it.off : it.off+1]
		it.off++
		return Inst{Addr: pc, Data: data, Text: "(bad)", arch: object.ArchX86_64}
	}

	data := it.code[it.off : it.off+inst.Len]
	it.off += inst.Len
	return Inst{
		Addr: pc,
		Data: data,
		Text: x86asm.GNUSyntax(inst, pc, nil),
		arch: object.ArchX86_64,
		x86:  &inst,
	}
}

func x86IsCallOrJump(op x86asm.Op) bool {
	switch op {
	case x86asm.CALL, x86asm.LCALL, x86asm.JMP, x86asm.LJMP,
		x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE, x86asm.JCXZ,
		x86asm.JE, x86asm.JECXZ, x86asm.JG, x86asm.JGE, x86asm.JL,
		x86asm.JLE, x86asm.JNE, x86asm.JNO, x86asm.JNP, x86asm.JNS,
		x86asm.JO, x86asm.JP, x86asm.JRCXZ, x86asm.JS:
		return true
	}
	return false
}

func x86OperandToAddr(inst *Inst) (uint64, bool, error) {
	if inst.x86 == nil || !x86IsCallOrJump(inst.x86.Op) {
		return 0, false, nil
	}

	switch arg := inst.x86.Args[0].(type) {
	case x86asm.Rel:
		// Relative to the end of the instruction.
		return inst.Addr + uint64(inst.x86.Len) + uint64(int64(arg)), true, nil
	case x86asm.Mem:
		if arg.Base == x86asm.RIP {
			return inst.Addr + uint64(arg.Disp), true, nil
		}
	}
	return 0, false, nil
}
