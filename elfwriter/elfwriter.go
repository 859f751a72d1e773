// Package elfwriter assembles a minimal statically-linked ELF64 ET_EXEC
// file from already-encoded section payloads, following spec.md §4.5:
// an ELF header, two PT_LOAD program headers (text R+X, data R+W), and
// the section payloads themselves, page-aligned in the file to match
// each segment's virtual address modulo the page size. No section
// header table is emitted; the kernel loader never needs one.
package elfwriter

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	pageAlign = 0x1000

	ehSize  = 64
	phSize  = 56
	phCount = 2

	flagsRX = 5 // PF_R | PF_X
	flagsRW = 6 // PF_R | PF_W
)

// Image is everything the writer needs: the two loaded sections' final
// bytes and virtual addresses, the entry point, and .bss's reserved
// (memory-only) size.
type Image struct {
	EntryVA uint64

	TextVA   uint64
	Text     []byte
	DataVA   uint64
	Data     []byte
	BSSVA    uint64
	BSSSize  uint32
}

// Build lays out and serializes the ELF64 executable described by img.
func Build(img Image) ([]byte, error) {
	if img.TextVA%pageAlign != 0 || img.DataVA%pageAlign != 0 {
		return nil, fmt.Errorf("section virtual addresses must be page-aligned (got text=%#x data=%#x)", img.TextVA, img.DataVA)
	}

	headerLen := uint64(ehSize + phCount*phSize)
	textOff := alignUp(headerLen, pageAlign)
	dataOff := alignUp(textOff+uint64(len(img.Text)), pageAlign)

	var buf bytes.Buffer
	buf.Write(elfHeader(img.EntryVA))
	buf.Write(programHeader(1, flagsRX, textOff, img.TextVA, uint64(len(img.Text)), uint64(len(img.Text))))
	buf.Write(programHeader(1, flagsRW, dataOff, img.DataVA, uint64(len(img.Data)), uint64(len(img.Data))+uint64(img.BSSSize)))

	padTo(&buf, textOff)
	buf.Write(img.Text)
	padTo(&buf, dataOff)
	buf.Write(img.Data)

	return buf.Bytes(), nil
}

func alignUp(v, align uint64) uint64 {
	if v%align == 0 {
		return v
	}
	return (v/align + 1) * align
}

func padTo(buf *bytes.Buffer, offset uint64) {
	for uint64(buf.Len()) < offset {
		buf.WriteByte(0)
	}
}

func elfHeader(entry uint64) []byte {
	var b bytes.Buffer
	ident := [16]byte{0x7F, 'E', 'L', 'F', 2, 1, 1, 0}
	b.Write(ident[:])
	binary.Write(&b, binary.LittleEndian, uint16(2))        // e_type = ET_EXEC
	binary.Write(&b, binary.LittleEndian, uint16(0x3E))      // e_machine = EM_X86_64
	binary.Write(&b, binary.LittleEndian, uint32(1))         // e_version
	binary.Write(&b, binary.LittleEndian, entry)              // e_entry
	binary.Write(&b, binary.LittleEndian, uint64(ehSize))     // e_phoff
	binary.Write(&b, binary.LittleEndian, uint64(0))          // e_shoff
	binary.Write(&b, binary.LittleEndian, uint32(0))          // e_flags
	binary.Write(&b, binary.LittleEndian, uint16(ehSize))     // e_ehsize
	binary.Write(&b, binary.LittleEndian, uint16(phSize))     // e_phentsize
	binary.Write(&b, binary.LittleEndian, uint16(phCount))    // e_phnum
	binary.Write(&b, binary.LittleEndian, uint16(0))          // e_shentsize
	binary.Write(&b, binary.LittleEndian, uint16(0))          // e_shnum
	binary.Write(&b, binary.LittleEndian, uint16(0))          // e_shstrndx
	return b.Bytes()
}

func programHeader(ptype, flags uint32, offset, vaddr, filesz, memsz uint64) []byte {
	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, ptype)
	binary.Write(&b, binary.LittleEndian, flags)
	binary.Write(&b, binary.LittleEndian, offset)
	binary.Write(&b, binary.LittleEndian, vaddr)
	binary.Write(&b, binary.LittleEndian, vaddr) // p_paddr, unused under ET_EXEC
	binary.Write(&b, binary.LittleEndian, filesz)
	binary.Write(&b, binary.LittleEndian, memsz)
	binary.Write(&b, binary.LittleEndian, uint64(pageAlign))
	return b.Bytes()
}
