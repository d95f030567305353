package keycodes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/blockcheck/internal/errs"
)

func TestResolve_Access(t *testing.T) {
	t.Parallel()

	mods, err := Resolve(Access, false)
	require.NoError(t, err)
	assert.Equal(t, []string{Shift, Alt}, mods)

	mods, err = Resolve(Access, true)
	require.NoError(t, err)
	assert.Equal(t, []string{Control, Alt}, mods)
}

func TestResolve_Primary(t *testing.T) {
	t.Parallel()

	mods, err := Resolve(Primary, true)
	require.NoError(t, err)
	assert.Equal(t, []string{Meta}, mods)

	mods, err = Resolve(Primary, false)
	require.NoError(t, err)
	assert.Equal(t, []string{Control}, mods)
}

func TestResolve_UnknownAlias(t *testing.T) {
	t.Parallel()

	_, err := Resolve("hyper", false)
	require.Error(t, err)
	assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err))
}

func TestChord_String(t *testing.T) {
	t.Parallel()

	c, err := NewChord(Access, "z", false)
	require.NoError(t, err)
	assert.Equal(t, "Shift+Alt+z", c.String())
	assert.True(t, c.Has(Alt))
	assert.False(t, c.Has(Meta))

	c, err = NewChord(ShiftAlias, "ArrowUp", false)
	require.NoError(t, err)
	assert.Equal(t, "Shift+ArrowUp", c.String())
}

func TestIsApple(t *testing.T) {
	t.Parallel()

	assert.True(t, IsApple("darwin"))
	assert.True(t, IsApple(" macOS "))
	assert.False(t, IsApple("linux"))
	assert.False(t, IsApple(""))
}

func testResolve_ReturnsCopies(t *rapid.T) {
	alias := rapid.SampledFrom(Aliases()).Draw(t, "alias")
	apple := rapid.Bool().Draw(t, "apple")

	first, err := Resolve(alias, apple)
	if err != nil {
		t.Fatalf("Resolve(%q): %v", alias, err)
	}
	if len(first) == 0 {
		t.Fatalf("Resolve(%q) returned no modifiers", alias)
	}
	first[0] = "mutated"

	second, err := Resolve(alias, apple)
	if err != nil {
		t.Fatalf("Resolve(%q): %v", alias, err)
	}
	if second[0] == "mutated" {
		t.Fatalf("Resolve(%q) leaked its backing slice", alias)
	}
}

func TestResolve_ReturnsCopies(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testResolve_ReturnsCopies)
}
