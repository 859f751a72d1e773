// Command x64dis is a thin front end for the disasm package: it reads an
// ELF64 executable produced by x64asm and prints the decoded instructions
// from its executable segment.
package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/Urethramancer/x64asm/disasm"
)

const (
	ehSize = 64
	phSize = 56
)

type programHeader struct {
	Type, Flags                    uint32
	Offset, VAddr, PAddr           uint64
	FileSz, MemSz, Align           uint64
}

func main() {
	if len(os.Args) < 2 || len(os.Args) > 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <executable> [outputfile]\n", os.Args[0])
		os.Exit(1)
	}

	inputFile := os.Args[1]
	var outputFile string
	if len(os.Args) == 3 {
		outputFile = os.Args[2]
	}

	raw, err := os.ReadFile(inputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input file: %v\n", err)
		os.Exit(1)
	}

	code, va, err := executableSegment(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ELF error: %v\n", err)
		os.Exit(1)
	}

	instrs, err := disasm.Disassemble(code, va)
	if err != nil && len(instrs) == 0 {
		fmt.Fprintf(os.Stderr, "Disassembly error: %v\n", err)
		os.Exit(1)
	}
	text := disasm.Text(instrs)

	if outputFile == "" {
		fmt.Print(text)
		return
	}
	if err := os.WriteFile(outputFile, []byte(text), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Disassembly written to %s\n", outputFile)
}

// executableSegment finds the PT_LOAD program header with PF_X set and
// returns its raw file bytes plus its load virtual address; it reads
// exactly the two-program-header ET_EXEC layout elfwriter.Build produces.
func executableSegment(raw []byte) ([]byte, uint64, error) {
	if len(raw) < ehSize+phSize || !bytes.HasPrefix(raw, []byte{0x7F, 'E', 'L', 'F'}) {
		return nil, 0, fmt.Errorf("not an ELF64 file")
	}
	phoff := binary.LittleEndian.Uint64(raw[32:40])
	phnum := binary.LittleEndian.Uint16(raw[56:58])

	for i := 0; i < int(phnum); i++ {
		off := int(phoff) + i*phSize
		if off+phSize > len(raw) {
			break
		}
		var ph programHeader
		ph.Type = binary.LittleEndian.Uint32(raw[off:])
		ph.Flags = binary.LittleEndian.Uint32(raw[off+4:])
		ph.Offset = binary.LittleEndian.Uint64(raw[off+8:])
		ph.VAddr = binary.LittleEndian.Uint64(raw[off+16:])
		ph.FileSz = binary.LittleEndian.Uint64(raw[off+32:])

		const ptLoad, pfX = 1, 1
		if ph.Type == ptLoad && ph.Flags&pfX != 0 {
			end := ph.Offset + ph.FileSz
			if end > uint64(len(raw)) {
				return nil, 0, fmt.Errorf("executable segment overruns file")
			}
			return raw[ph.Offset:end], ph.VAddr, nil
		}
	}
	return nil, 0, fmt.Errorf("no executable PT_LOAD segment found")
}
