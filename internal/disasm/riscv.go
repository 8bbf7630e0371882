package disasm

import (
	"golang.org/x/arch/riscv64/riscv64asm"

	"github.com/quininer/fi/internal/object"
)

func (it *InstIter) nextRiscv() Inst {
	pc := it.addr + uint64(it.off)
	end := it.off + 4
	if end > len(it.code) {
		end = len(it.code)
	}
	data := it.code[it.off:end]
	it.off = end

	inst, err := riscv64asm.Decode(data)
	if err != nil {
		return Inst{Addr: pc, Data: data, Text: "(bad)", arch: object.ArchRISCV64}
	}

	return Inst{
		Addr: pc,
		Data: data,
		Text: riscv64asm.GNUSyntax(inst),
		arch: object.ArchRISCV64,
	}
}
