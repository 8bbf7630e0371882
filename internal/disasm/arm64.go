package disasm

import (
	"golang.org/x/arch/arm64/arm64asm"

	"github.com/quininer/fi/internal/object"
)

func (it *InstIter) nextArm64() Inst {
	pc := it.addr + uint64(it.off)
	end := it.off + 4
	if end > len(it.code) {
		end = len(it.code)
	}
	data := it.code[it.off:end]
	it.off = end

	inst, err := arm64asm.Decode(data)
	if err != nil {
		return Inst{Addr: pc, Data: data, Text: "(bad)", arch: object.ArchAArch64}
	}

	return Inst{
		Addr: pc,
		Data: data,
		Text: arm64asm.GNUSyntax(inst),
		arch: object.ArchAArch64,
		a64:  &inst,
	}
}

func arm64IsBranch(op arm64asm.Op) bool {
	switch op {
	case arm64asm.B, arm64asm.BL, arm64asm.BR, arm64asm.BLR,
		arm64asm.CBZ, arm64asm.CBNZ, arm64asm.TBZ, arm64asm.TBNZ:
		return true
	}
	return false
}

func arm64OperandToAddr(inst *Inst) (uint64, bool, error) {
	if inst.a64 == nil || !arm64IsBranch(inst.a64.Op) {
		return 0, false, nil
	}

	for _, arg := range inst.a64.Args {
		if rel, ok := arg.(arm64asm.PCRel); ok {
			return inst.Addr + uint64(int64(rel)), true, nil
		}
	}
	return 0, false, nil
}
