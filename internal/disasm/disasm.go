// Package disasm presents a single instruction-iteration interface over the
// per-architecture decoders the tool supports.
package disasm

import (
	"github.com/pkg/errors"
	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"

	"github.com/quininer/fi/internal/object"
)

// ErrUnsupportedArch reports an architecture no backend covers, or an
// instruction handed to the wrong backend.
var ErrUnsupportedArch = errors.New("unsupported arch")

// Inst is one decoded instruction. Addr is the image address, Data the raw
// bytes, Text the printable mnemonic and operands.
type Inst struct {
	Addr uint64
	Data []byte
	Text string

	arch object.Arch
	x86  *x86asm.Inst
	a64  *arm64asm.Inst
}

// Disassembler selects a backend from the object's architecture. Instances
// are cheap but stateful; use one per worker.
type Disassembler struct {
	arch object.Arch
}

// New builds a disassembler for the object's architecture.
func New(f *object.File) (*Disassembler, error) {
	switch f.Arch {
	case object.ArchX86_64, object.ArchAArch64, object.ArchRISCV64,
		object.ArchWasm32, object.ArchWasm64:
		return &Disassembler{arch: f.Arch}, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedArch, "%s", f.Arch)
	}
}

// DisasmAll returns a lazy instruction sequence over code, with the first
// byte at addr.
func (d *Disassembler) DisasmAll(code []byte, addr uint64) *InstIter {
	it := &InstIter{arch: d.arch, code: code, addr: addr}
	if d.arch == object.ArchWasm32 || d.arch == object.ArchWasm64 {
		it.off = skipWasmLocals(code)
	}
	return it
}

// InstIter walks a byte slice one instruction at a time.
type InstIter struct {
	arch object.Arch
	code []byte
	addr uint64
	off  int
	done bool
}

// Next decodes the next instruction. It returns false at the end of the
// byte range.
func (it *InstIter) Next() (Inst, bool) {
	if it.done || it.off >= len(it.code) {
		return Inst{}, false
	}

	switch it.arch {
	case object.ArchX86_64:
		return it.nextX86(), true
	case object.ArchAArch64:
		return it.nextArm64(), true
	case object.ArchRISCV64:
		return it.nextRiscv(), true
	case object.ArchWasm32, object.ArchWasm64:
		inst, ok := it.nextWasm()
		if !ok {
			it.done = true
		}
		return inst, ok
	default:
		it.done = true
		return Inst{}, false
	}
}

// OperandToAddr extracts the absolute target of a call or jump instruction:
// an immediate target on x86-64 and AArch64, or an RIP-relative memory
// reference on x86-64 (instruction address plus displacement). Other
// instructions and architectures yield no target.
func (d *Disassembler) OperandToAddr(inst *Inst) (uint64, bool, error) {
	if inst.arch != d.arch {
		return 0, false, errors.Wrap(ErrUnsupportedArch, "instruction from a different backend")
	}

	switch d.arch {
	case object.ArchX86_64:
		return x86OperandToAddr(inst)
	case object.ArchAArch64:
		return arm64OperandToAddr(inst)
	default:
		return 0, false, nil
	}
}
