package disasm

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/quininer/fi/internal/object"
)

// Wasm operators carry no fixed length, so decoding computes each one's
// extent and the instruction's Data runs to the next operator's offset.

// skipWasmLocals advances past a function body's locals vector so iteration
// starts at the first operator.
func skipWasmLocals(code []byte) int {
	p := 0
	count, n := binary.Uvarint(code)
	if n <= 0 {
		return len(code)
	}
	p += n
	for i := uint64(0); i < count; i++ {
		_, n := binary.Uvarint(code[p:])
		if n <= 0 || p+n >= len(code) {
			return len(code)
		}
		p += n + 1 // repeat count + value type byte
	}
	return p
}

func (it *InstIter) nextWasm() (Inst, bool) {
	pc := it.addr + uint64(it.off)
	text, n, ok := decodeWasmOp(it.code[it.off:])
	if !ok {
		return Inst{}, false
	}

	data := it.code[it.off : it.off+n]
	it.off += n
	return Inst{Addr: pc, Data: data, Text: text, arch: it.arch}, true
}

// Immediate classes.
const (
	immNone = iota
	immBlockType
	immIndex    // one uleb
	immTwoIndex // two ulebs
	immBrTable
	immTypeVec // uleb count, then that many value type bytes
	immMemarg
	immMemIndex // single byte memory index
	immI32Const
	immI64Const
	immF32Const
	immF64Const
)

type wasmOp struct {
	name string
	imm  int
}

var wasmOps = map[byte]wasmOp{
	0x00: {"unreachable", immNone},
	0x01: {"nop", immNone},
	0x02: {"block", immBlockType},
	0x03: {"loop", immBlockType},
	0x04: {"if", immBlockType},
	0x05: {"else", immNone},
	0x0b: {"end", immNone},
	0x0c: {"br", immIndex},
	0x0d: {"br_if", immIndex},
	0x0e: {"br_table", immBrTable},
	0x0f: {"return", immNone},
	0x10: {"call", immIndex},
	0x11: {"call_indirect", immTwoIndex},
	0x1a: {"drop", immNone},
	0x1b: {"select", immNone},
	0x1c: {"select_t", immTypeVec},
	0x20: {"local.get", immIndex},
	0x21: {"local.set", immIndex},
	0x22: {"local.tee", immIndex},
	0x23: {"global.get", immIndex},
	0x24: {"global.set", immIndex},
	0x25: {"table.get", immIndex},
	0x26: {"table.set", immIndex},
	0x28: {"i32.load", immMemarg},
	0x29: {"i64.load", immMemarg},
	0x2a: {"f32.load", immMemarg},
	0x2b: {"f64.load", immMemarg},
	0x2c: {"i32.load8_s", immMemarg},
	0x2d: {"i32.load8_u", immMemarg},
	0x2e: {"i32.load16_s", immMemarg},
	0x2f: {"i32.load16_u", immMemarg},
	0x30: {"i64.load8_s", immMemarg},
	0x31: {"i64.load8_u", immMemarg},
	0x32: {"i64.load16_s", immMemarg},
	0x33: {"i64.load16_u", immMemarg},
	0x34: {"i64.load32_s", immMemarg},
	0x35: {"i64.load32_u", immMemarg},
	0x36: {"i32.store", immMemarg},
	0x37: {"i64.store", immMemarg},
	0x38: {"f32.store", immMemarg},
	0x39: {"f64.store", immMemarg},
	0x3a: {"i32.store8", immMemarg},
	0x3b: {"i32.store16", immMemarg},
	0x3c: {"i64.store8", immMemarg},
	0x3d: {"i64.store16", immMemarg},
	0x3e: {"i64.store32", immMemarg},
	0x3f: {"memory.size", immMemIndex},
	0x40: {"memory.grow", immMemIndex},
	0x41: {"i32.const", immI32Const},
	0x42: {"i64.const", immI64Const},
	0x43: {"f32.const", immF32Const},
	0x44: {"f64.const", immF64Const},
	0x45: {"i32.eqz", immNone},
	0x46: {"i32.eq", immNone},
	0x47: {"i32.ne", immNone},
	0x48: {"i32.lt_s", immNone},
	0x49: {"i32.lt_u", immNone},
	0x4a: {"i32.gt_s", immNone},
	0x4b: {"i32.gt_u", immNone},
	0x4c: {"i32.le_s", immNone},
	0x4d: {"i32.le_u", immNone},
	0x4e: {"i32.ge_s", immNone},
	0x4f: {"i32.ge_u", immNone},
	0x50: {"i64.eqz", immNone},
	0x51: {"i64.eq", immNone},
	0x52: {"i64.ne", immNone},
	0x53: {"i64.lt_s", immNone},
	0x54: {"i64.lt_u", immNone},
	0x55: {"i64.gt_s", immNone},
	0x56: {"i64.gt_u", immNone},
	0x57: {"i64.le_s", immNone},
	0x58: {"i64.le_u", immNone},
	0x59: {"i64.ge_s", immNone},
	0x5a: {"i64.ge_u", immNone},
	0x5b: {"f32.eq", immNone},
	0x5c: {"f32.ne", immNone},
	0x5d: {"f32.lt", immNone},
	0x5e: {"f32.gt", immNone},
	0x5f: {"f32.le", immNone},
	0x60: {"f32.ge", immNone},
	0x61: {"f64.eq", immNone},
	0x62: {"f64.ne", immNone},
	0x63: {"f64.lt", immNone},
	0x64: {"f64.gt", immNone},
	0x65: {"f64.le", immNone},
	0x66: {"f64.ge", immNone},
	0x67: {"i32.clz", immNone},
	0x68: {"i32.ctz", immNone},
	0x69: {"i32.popcnt", immNone},
	0x6a: {"i32.add", immNone},
	0x6b: {"i32.sub", immNone},
	0x6c: {"i32.mul", immNone},
	0x6d: {"i32.div_s", immNone},
	0x6e: {"i32.div_u", immNone},
	0x6f: {"i32.rem_s", immNone},
	0x70: {"i32.rem_u", immNone},
	0x71: {"i32.and", immNone},
	0x72: {"i32.or", immNone},
	0x73: {"i32.xor", immNone},
	0x74: {"i32.shl", immNone},
	0x75: {"i32.shr_s", immNone},
	0x76: {"i32.shr_u", immNone},
	0x77: {"i32.rotl", immNone},
	0x78: {"i32.rotr", immNone},
	0x79: {"i64.clz", immNone},
	0x7a: {"i64.ctz", immNone},
	0x7b: {"i64.popcnt", immNone},
	0x7c: {"i64.add", immNone},
	0x7d: {"i64.sub", immNone},
	0x7e: {"i64.mul", immNone},
	0x7f: {"i64.div_s", immNone},
	0x80: {"i64.div_u", immNone},
	0x81: {"i64.rem_s", immNone},
	0x82: {"i64.rem_u", immNone},
	0x83: {"i64.and", immNone},
	0x84: {"i64.or", immNone},
	0x85: {"i64.xor", immNone},
	0x86: {"i64.shl", immNone},
	0x87: {"i64.shr_s", immNone},
	0x88: {"i64.shr_u", immNone},
	0x89: {"i64.rotl", immNone},
	0x8a: {"i64.rotr", immNone},
	0x8b: {"f32.abs", immNone},
	0x8c: {"f32.neg", immNone},
	0x8d: {"f32.ceil", immNone},
	0x8e: {"f32.floor", immNone},
	0x8f: {"f32.trunc", immNone},
	0x90: {"f32.nearest", immNone},
	0x91: {"f32.sqrt", immNone},
	0x92: {"f32.add", immNone},
	0x93: {"f32.sub", immNone},
	0x94: {"f32.mul", immNone},
	0x95: {"f32.div", immNone},
	0x96: {"f32.min", immNone},
	0x97: {"f32.max", immNone},
	0x98: {"f32.copysign", immNone},
	0x99: {"f64.abs", immNone},
	0x9a: {"f64.neg", immNone},
	0x9b: {"f64.ceil", immNone},
	0x9c: {"f64.floor", immNone},
	0x9d: {"f64.trunc", immNone},
	0x9e: {"f64.nearest", immNone},
	0x9f: {"f64.sqrt", immNone},
	0xa0: {"f64.add", immNone},
	0xa1: {"f64.sub", immNone},
	0xa2: {"f64.mul", immNone},
	0xa3: {"f64.div", immNone},
	0xa4: {"f64.min", immNone},
	0xa5: {"f64.max", immNone},
	0xa6: {"f64.copysign", immNone},
	0xa7: {"i32.wrap_i64", immNone},
	0xa8: {"i32.trunc_f32_s", immNone},
	0xa9: {"i32.trunc_f32_u", immNone},
	0xaa: {"i32.trunc_f64_s", immNone},
	0xab: {"i32.trunc_f64_u", immNone},
	0xac: {"i64.extend_i32_s", immNone},
	0xad: {"i64.extend_i32_u", immNone},
	0xae: {"i64.trunc_f32_s", immNone},
	0xaf: {"i64.trunc_f32_u", immNone},
	0xb0: {"i64.trunc_f64_s", immNone},
	0xb1: {"i64.trunc_f64_u", immNone},
	0xb2: {"f32.convert_i32_s", immNone},
	0xb3: {"f32.convert_i32_u", immNone},
	0xb4: {"f32.convert_i64_s", immNone},
	0xb5: {"f32.convert_i64_u", immNone},
	0xb6: {"f32.demote_f64", immNone},
	0xb7: {"f64.convert_i32_s", immNone},
	0xb8: {"f64.convert_i32_u", immNone},
	0xb9: {"f64.convert_i64_s", immNone},
	0xba: {"f64.convert_i64_u", immNone},
	0xbb: {"f64.promote_f32", immNone},
	0xbc: {"i32.reinterpret_f32", immNone},
	0xbd: {"i64.reinterpret_f64", immNone},
	0xbe: {"f32.reinterpret_i32", immNone},
	0xbf: {"f64.reinterpret_i64", immNone},
	0xc0: {"i32.extend8_s", immNone},
	0xc1: {"i32.extend16_s", immNone},
	0xc2: {"i64.extend8_s", immNone},
	0xc3: {"i64.extend16_s", immNone},
	0xc4: {"i64.extend32_s", immNone},
	0xd0: {"ref.null", immBlockType},
	0xd1: {"ref.is_null", immNone},
	0xd2: {"ref.func", immIndex},
}

var wasmFCOps = map[uint64]wasmOp{
	0:  {"i32.trunc_sat_f32_s", immNone},
	1:  {"i32.trunc_sat_f32_u", immNone},
	2:  {"i32.trunc_sat_f64_s", immNone},
	3:  {"i32.trunc_sat_f64_u", immNone},
	4:  {"i64.trunc_sat_f32_s", immNone},
	5:  {"i64.trunc_sat_f32_u", immNone},
	6:  {"i64.trunc_sat_f64_s", immNone},
	7:  {"i64.trunc_sat_f64_u", immNone},
	8:  {"memory.init", immTwoIndex},
	9:  {"data.drop", immIndex},
	10: {"memory.copy", immTwoIndex},
	11: {"memory.fill", immIndex},
	12: {"table.init", immTwoIndex},
	13: {"elem.drop", immIndex},
	14: {"table.copy", immTwoIndex},
	15: {"table.grow", immIndex},
	16: {"table.size", immIndex},
	17: {"table.fill", immIndex},
}

// decodeWasmOp decodes one operator: its display text and byte length.
func decodeWasmOp(code []byte) (string, int, bool) {
	if len(code) == 0 {
		return "", 0, false
	}

	op := code[0]
	n := 1

	var spec wasmOp
	switch op {
	case 0xfc:
		sub, m := binary.Uvarint(code[n:])
		if m <= 0 {
			return "", 0, false
		}
		n += m
		var ok bool
		spec, ok = wasmFCOps[sub]
		if !ok {
			spec = wasmOp{fmt.Sprintf("op[0xfc %d]", sub), immNone}
		}
	case 0xfd:
		sub, m := binary.Uvarint(code[n:])
		if m <= 0 {
			return "", 0, false
		}
		n += m
		return decodeWasmSimd(code, n, sub)
	default:
		var ok bool
		spec, ok = wasmOps[op]
		if !ok {
			return "", 0, false
		}
	}

	text, n, ok := wasmImmediates(spec, code, n)
	return text, n, ok
}

func wasmImmediates(spec wasmOp, code []byte, n int) (string, int, bool) {
	var args []string
	uleb := func() (uint64, bool) {
		v, m := binary.Uvarint(code[n:])
		if m <= 0 {
			return 0, false
		}
		n += m
		return v, true
	}
	// Signed LEB128; binary.Varint is zigzag and does not apply here.
	sleb := func() (int64, bool) {
		var v int64
		var shift uint
		for n < len(code) && shift < 64 {
			b := code[n]
			n++
			v |= int64(b&0x7f) << shift
			shift += 7
			if b&0x80 == 0 {
				if shift < 64 && b&0x40 != 0 {
					v |= -1 << shift
				}
				return v, true
			}
		}
		return 0, false
	}

	switch spec.imm {
	case immNone:
	case immBlockType, immMemIndex:
		if n >= len(code) {
			return "", 0, false
		}
		n++
	case immIndex:
		v, ok := uleb()
		if !ok {
			return "", 0, false
		}
		args = append(args, fmt.Sprintf("%d", v))
	case immTwoIndex, immMemarg:
		a, ok := uleb()
		if !ok {
			return "", 0, false
		}
		b, ok := uleb()
		if !ok {
			return "", 0, false
		}
		if spec.imm == immMemarg {
			args = append(args, fmt.Sprintf("align=%d", a), fmt.Sprintf("offset=%d", b))
		} else {
			args = append(args, fmt.Sprintf("%d", a), fmt.Sprintf("%d", b))
		}
	case immBrTable:
		count, ok := uleb()
		if !ok {
			return "", 0, false
		}
		for i := uint64(0); i <= count; i++ {
			v, ok := uleb()
			if !ok {
				return "", 0, false
			}
			args = append(args, fmt.Sprintf("%d", v))
		}
	case immTypeVec:
		count, ok := uleb()
		if !ok || uint64(len(code)-n) < count {
			return "", 0, false
		}
		n += int(count)
	case immI32Const, immI64Const:
		v, ok := sleb()
		if !ok {
			return "", 0, false
		}
		args = append(args, fmt.Sprintf("%d", v))
	case immF32Const:
		if n+4 > len(code) {
			return "", 0, false
		}
		args = append(args, fmt.Sprintf("%#x", binary.LittleEndian.Uint32(code[n:])))
		n += 4
	case immF64Const:
		if n+8 > len(code) {
			return "", 0, false
		}
		args = append(args, fmt.Sprintf("%#x", binary.LittleEndian.Uint64(code[n:])))
		n += 8
	}

	text := spec.name
	if len(args) > 0 {
		text += " " + strings.Join(args, " ")
	}
	return text, n, true
}

// decodeWasmSimd covers the 0xfd prefix well enough to keep the byte stream
// aligned: loads and stores take a memarg, v128.const and shuffle take 16
// bytes, lane ops take a lane byte.
func decodeWasmSimd(code []byte, n int, sub uint64) (string, int, bool) {
	name := fmt.Sprintf("simd[%d]", sub)

	skipUleb := func() bool {
		_, m := binary.Uvarint(code[n:])
		if m <= 0 {
			return false
		}
		n += m
		return true
	}

	switch {
	case sub <= 11, sub == 92, sub == 93: // v128 loads + store, load32/64_zero
		if !skipUleb() || !skipUleb() {
			return "", 0, false
		}
	case sub == 12, sub == 13: // v128.const, i8x16.shuffle
		if n+16 > len(code) {
			return "", 0, false
		}
		n += 16
	case sub >= 21 && sub <= 34: // extract/replace lane
		if n >= len(code) {
			return "", 0, false
		}
		n++
	case sub >= 84 && sub <= 91: // load/store lane
		if !skipUleb() || !skipUleb() {
			return "", 0, false
		}
		if n >= len(code) {
			return "", 0, false
		}
		n++
	}
	return name, n, true
}
