package symtab_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Urethramancer/x64asm/symtab"
)

func TestDefineThenLookup(t *testing.T) {
	tab := symtab.New()
	require.NoError(t, tab.Define("_start", ".text"))

	sym, ok := tab.Lookup("_start")
	require.True(t, ok)
	assert.Equal(t, ".text", sym.Section)
	assert.True(t, sym.Defined)
}

func TestRedefiningALabelIsAnError(t *testing.T) {
	tab := symtab.New()
	require.NoError(t, tab.Define("loop", ".text"))
	assert.Error(t, tab.Define("loop", ".text"))
}

func TestReferenceBeforeDefineIsAllowedThenResolves(t *testing.T) {
	tab := symtab.New()
	forward := tab.Reference("later")
	assert.False(t, forward.Defined)

	require.NoError(t, tab.Define("later", ".data"))
	sym, ok := tab.Lookup("later")
	require.True(t, ok)
	assert.True(t, sym.Defined)
	assert.Same(t, forward, sym)
}

func TestMarkGlobalAndExternFlagExistingOrNewEntries(t *testing.T) {
	tab := symtab.New()
	tab.MarkGlobal("_start")
	tab.MarkExtern("printf")

	g, ok := tab.Lookup("_start")
	require.True(t, ok)
	assert.True(t, g.Global)

	e, ok := tab.Lookup("printf")
	require.True(t, ok)
	assert.True(t, e.Extern)
}

func TestSetOffsetAndSetVA(t *testing.T) {
	tab := symtab.New()
	require.NoError(t, tab.Define("msg", ".data"))
	tab.SetOffset("msg", 16)
	tab.SetVA("msg", 0x600010)

	sym, ok := tab.Lookup("msg")
	require.True(t, ok)
	assert.Equal(t, uint32(16), sym.Offset)
	assert.Equal(t, uint64(0x600010), sym.VA)
}

func TestAllReturnsFirstReferenceOrder(t *testing.T) {
	tab := symtab.New()
	tab.Reference("b")
	tab.Reference("a")
	tab.Reference("c")

	names := make([]string, 0, 3)
	for _, s := range tab.All() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"b", "a", "c"}, names)
}
