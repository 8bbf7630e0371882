package object

import "testing"

// wasmModule is a minimal module: one exported function returning a
// constant.
//
//	(module (func (export "answer") (result i32) i32.const 42))
func wasmModule() []byte {
	var b []byte
	b = append(b, 0x00, 'a', 's', 'm', 1, 0, 0, 0)
	// export section: "answer" -> func 0
	b = append(b, wasmSecExport, 10, 1, 6)
	b = append(b, []byte("answer")...)
	b = append(b, 0x00, 0)
	// code section: one body: no locals, i32.const 42, end
	b = append(b, wasmSecCode, 6, 1, 4, 0x00, 0x41, 42, 0x0b)
	return b
}

func TestParseWasm(t *testing.T) {
	f, err := parseFile(wasmModule())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if f.Format != FormatWasm || f.Arch != ArchWasm32 {
		t.Fatalf("unexpected format/arch: %v/%v", f.Format, f.Arch)
	}

	sect := f.SectionByName("<code>")
	if sect == nil {
		t.Fatal("missing code section")
	}
	if sect.Kind != SectionText {
		t.Errorf("code section kind = %v, want text", sect.Kind)
	}
	if sect.Addr != 22 || sect.Size != 6 {
		t.Errorf("code section at %d+%d, want 22+6", sect.Addr, sect.Size)
	}

	if len(f.Symbols) != 1 {
		t.Fatalf("got %d symbols, want 1", len(f.Symbols))
	}
	sym := f.Symbols[0]
	if sym.Name != "answer" {
		t.Errorf("symbol name = %q, want answer", sym.Name)
	}
	if sym.Addr != 24 || sym.Size != 4 {
		t.Errorf("symbol at %d+%d, want 24+4", sym.Addr, sym.Size)
	}
	if !sym.Global || sym.Kind != SymText {
		t.Errorf("symbol should be a global text symbol")
	}
}

func TestParseWasmBadHeader(t *testing.T) {
	data := wasmModule()
	data[4] = 2 // unsupported version
	if _, err := parseFile(data); err == nil {
		t.Fatal("version 2 must be rejected")
	}
}

func TestParseFileUnknownMagic(t *testing.T) {
	if _, err := parseFile([]byte{1, 2, 3, 4, 5}); err == nil {
		t.Fatal("unknown magic must be rejected")
	}
}
