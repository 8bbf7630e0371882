package object

import "testing"

// gotFile models an ELF with a .got whose slots are patched by dynamic
// relocations: one referencing a symbol, one an absolute address.
func gotFile() *File {
	f := testFile(FormatELF)
	f.Sections = append(f.Sections, &Section{
		Index: 2, Name: ".got", Addr: 0x1000, Size: 0x40, Align: 8,
		Kind: SectionData,
	})
	f.Symbols = append(f.Symbols, &Symbol{
		Index: len(f.Symbols), Name: "bar", Addr: 0x3000, Kind: SymText, Section: 0,
	})
	f.DynRelas = []DynRela{
		{Addr: 0x1008, Target: TargetSymbol, Symbol: len(f.Symbols) - 1},
		{Addr: 0x1010, Target: TargetAbsolute, Addend: 0x140},
	}
	return f
}

func TestQuerySymbolByAddrDirect(t *testing.T) {
	e := &Explorer{File: gotFile()}

	name, addr, ok := e.QuerySymbolByAddr(0x140)
	if !ok {
		t.Fatal("direct hit expected")
	}
	if name != "b" || addr != 0x140 {
		t.Errorf("got (%q, %#x), want (b, 0x140)", name, addr)
	}
}

func TestQuerySymbolByAddrGotExact(t *testing.T) {
	e := &Explorer{File: gotFile()}

	name, addr, ok := e.QuerySymbolByAddr(0x1008)
	if !ok {
		t.Fatal("GOT slot should resolve")
	}
	if name != "bar" {
		t.Errorf("name = %q, want bar", name)
	}
	// The canonical address is the callee's, not the slot's.
	if addr != 0x3000 {
		t.Errorf("addr = %#x, want 0x3000", addr)
	}
}

func TestQuerySymbolByAddrGotWindow(t *testing.T) {
	e := &Explorer{File: gotFile()}

	// 0x1004 has no exact relocation; the next one at 0x1008 is within
	// [addr, addr+8) and counts as the same slot.
	name, addr, ok := e.QuerySymbolByAddr(0x1004)
	if !ok {
		t.Fatal("in-window relocation should resolve")
	}
	if name != "bar" || addr != 0x3000 {
		t.Errorf("got (%q, %#x), want (bar, 0x3000)", name, addr)
	}

	// 0x1000 is a full window before the relocation: no match.
	if _, _, ok := e.QuerySymbolByAddr(0x1000); ok {
		t.Error("relocation outside the window must not match")
	}
}

func TestQuerySymbolByAddrGotAbsolute(t *testing.T) {
	e := &Explorer{File: gotFile()}

	name, addr, ok := e.QuerySymbolByAddr(0x1010)
	if !ok {
		t.Fatal("absolute relocation should resolve")
	}
	if name != "b" || addr != 0x140 {
		t.Errorf("got (%q, %#x), want (b, 0x140)", name, addr)
	}
}

func TestQuerySymbolByAddrOutsideGot(t *testing.T) {
	e := &Explorer{File: gotFile()}

	if _, _, ok := e.QuerySymbolByAddr(0x9999); ok {
		t.Error("address outside any symbol and the GOT must not resolve")
	}
}

func TestQuerySymbolByAddrResultIsCanonical(t *testing.T) {
	e := &Explorer{File: gotFile()}

	// Invariant: a resolved address is either a symbol address in the map
	// or came from a GOT relocation target.
	for _, addr := range []uint64{0x100, 0x140, 0x1004, 0x1008, 0x1010} {
		name, canonical, ok := e.QuerySymbolByAddr(addr)
		if !ok {
			continue
		}
		if _, found := searchAddr(e.Cache.AddrToSym(e.File), canonical); !found {
			t.Errorf("canonical %#x for %q not in the symbol map", canonical, name)
		}
	}
}
