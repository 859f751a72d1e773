package elfwriter_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Urethramancer/x64asm/elfwriter"
)

func TestBuildEmitsValidELFHeader(t *testing.T) {
	img := elfwriter.Image{
		EntryVA: 0x400000,
		TextVA:  0x400000,
		Text:    []byte{0x90, 0xC3},
		DataVA:  0x600000,
		Data:    []byte("hi\x00"),
	}
	out, err := elfwriter.Build(img)
	require.NoError(t, err)

	assert.Equal(t, []byte{0x7F, 'E', 'L', 'F', 2, 1, 1, 0}, out[:8])
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(out[16:18]), "e_type must be ET_EXEC")
	assert.Equal(t, uint16(0x3E), binary.LittleEndian.Uint16(out[18:20]), "e_machine must be EM_X86_64")
	assert.Equal(t, uint64(0x400000), binary.LittleEndian.Uint64(out[24:32]), "e_entry")
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(out[56:58]), "e_phnum must be 2")
}

func TestBuildProducesTwoPageAlignedLoadSegments(t *testing.T) {
	img := elfwriter.Image{
		EntryVA: 0x400000,
		TextVA:  0x400000,
		Text:    []byte{0x90, 0xC3},
		DataVA:  0x600000,
		Data:    []byte("hi\x00"),
		BSSVA:   0x800000,
		BSSSize: 32,
	}
	out, err := elfwriter.Build(img)
	require.NoError(t, err)

	const ehSize, phSize = 64, 56
	ph0 := out[ehSize : ehSize+phSize]
	ph1 := out[ehSize+phSize : ehSize+2*phSize]

	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(ph0[0:4]), "p_type PT_LOAD")
	assert.Equal(t, uint32(5), binary.LittleEndian.Uint32(ph0[4:8]), "text segment is R+X")
	assert.Equal(t, uint64(0x400000), binary.LittleEndian.Uint64(ph0[16:24]), "p_vaddr")
	assert.Equal(t, uint64(2), binary.LittleEndian.Uint64(ph0[32:40]), "p_filesz")

	assert.Equal(t, uint32(6), binary.LittleEndian.Uint32(ph1[4:8]), "data segment is R+W")
	assert.Equal(t, uint64(0x600000), binary.LittleEndian.Uint64(ph1[16:24]), "p_vaddr")
	assert.Equal(t, uint64(3), binary.LittleEndian.Uint64(ph1[32:40]), "p_filesz")
	assert.Equal(t, uint64(35), binary.LittleEndian.Uint64(ph1[40:48]), "p_memsz includes BSS")

	dataOff := binary.LittleEndian.Uint64(ph1[8:16])
	assert.Equal(t, uint64(0), dataOff%0x1000, "data segment file offset must be page aligned")
}

func TestBuildRejectsUnalignedSectionVA(t *testing.T) {
	img := elfwriter.Image{TextVA: 0x400001, DataVA: 0x600000}
	_, err := elfwriter.Build(img)
	assert.Error(t, err)
}
