package object

import "sort"

// gotWindow bounds how far past the queried address a relocation may sit
// and still count as the same GOT slot.
const gotWindow = 8

// QuerySymbolByAddr resolves an address to a symbol name and the symbol's
// canonical address. A direct hit in the address index wins; otherwise an
// address inside the GOT is resolved through the dynamic relocation applied
// to that slot. The canonical address is the callee's own address, not the
// queried slot.
func (e *Explorer) QuerySymbolByAddr(addr uint64) (string, uint64, bool) {
	entries := e.Cache.AddrToSym(e.File)
	if i, ok := searchAddr(entries, addr); ok {
		return entries[i].Name, addr, true
	}

	gotName := ".got"
	if e.File.Format == FormatMachO {
		gotName = "__got"
	}
	sect := e.File.SectionByName(gotName)
	if sect == nil || !sect.Contains(addr) {
		return "", 0, false
	}

	relas := e.Cache.DynRela(e.File)
	i := sort.Search(len(relas), func(i int) bool {
		return relas[i].Addr >= addr
	})
	if i == len(relas) {
		return "", 0, false
	}
	rela := relas[i]
	if rela.Addr >= addr+gotWindow {
		return "", 0, false
	}

	switch rela.Target {
	case TargetSymbol:
		sym, err := e.File.Symbol(rela.Symbol)
		if err != nil || sym.Name == "" {
			return "", 0, false
		}
		return sym.Name, sym.Addr, true
	case TargetAbsolute:
		target := uint64(rela.Addend)
		if j, ok := searchAddr(entries, target); ok {
			return entries[j].Name, target, true
		}
	}
	return "", 0, false
}

// searchAddr binary-searches the address index for an exact address.
func searchAddr(entries []AddrEntry, addr uint64) (int, bool) {
	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].Addr >= addr
	})
	if i < len(entries) && entries[i].Addr == addr {
		return i, true
	}
	return 0, false
}
