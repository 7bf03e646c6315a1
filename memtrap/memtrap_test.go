package memtrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdd_NotInstalled(t *testing.T) {
	prev := installed.Swap(false)
	defer installed.Store(prev)

	_, err := Add(0x10000, 1)
	assert.ErrorIs(t, err, ErrNotInstalled)
	assert.ErrorIs(t, Access(func() {}), ErrNotInstalled)
}

func TestRegistry(t *testing.T) {
	if err := Install(); err != nil {
		t.Skip(err)
	}
	require.NoError(t, Install())

	n := Regions()

	buf := make([]byte, 64)
	a, err := AddSlice(buf)
	require.NoError(t, err)
	b, err := Add(0x10000, 0x1000)
	require.NoError(t, err)
	assert.Equal(t, n+2, Regions())

	assert.Equal(t, uintptr(64), a.Len())
	assert.True(t, a.IsGood())
	assert.Equal(t, uintptr(0x10000), b.Addr())

	s, ok := lookup(0x10fff)
	assert.True(t, ok)
	assert.Equal(t, b, s.region)
	_, ok = lookup(0x11000)
	assert.False(t, ok)

	require.NoError(t, b.Update(0x20000, 0x10))
	assert.Equal(t, uintptr(0x20000), b.Addr())
	assert.Equal(t, uintptr(0x10), b.Len())
	_, ok = lookup(0x10000)
	assert.False(t, ok)
	s, ok = lookup(0x2000f)
	assert.True(t, ok)
	assert.Equal(t, b, s.region)

	b.Remove()
	b.Remove()
	assert.Equal(t, n+1, Regions())
	assert.ErrorIs(t, b.Update(0x30000, 1), ErrRemoved)
	_, ok = lookup(0x20000)
	assert.False(t, ok)

	a.Remove()
	assert.Equal(t, n, Regions())
}

func TestAdd_Invalid(t *testing.T) {
	if err := Install(); err != nil {
		t.Skip(err)
	}
	_, err := Add(0x10000, 0)
	assert.ErrorIs(t, err, ErrInvalidRegion)
	_, err = Add(^uintptr(0), 2)
	assert.ErrorIs(t, err, ErrInvalidRegion)
	_, err = AddSlice(nil)
	assert.ErrorIs(t, err, ErrInvalidRegion)

	r, err := Add(0x10000, 1)
	require.NoError(t, err)
	defer r.Remove()
	assert.ErrorIs(t, r.Update(0x10000, 0), ErrInvalidRegion)
}

func TestAccess_NoFault(t *testing.T) {
	if err := Install(); err != nil {
		t.Skip(err)
	}
	var called int
	require.NoError(t, Access(func() { called++ }))
	assert.Equal(t, 1, called)
}

func TestAccess_OtherPanic(t *testing.T) {
	if err := Install(); err != nil {
		t.Skip(err)
	}
	assert.PanicsWithValue(t, "boom", func() {
		_ = Access(func() { panic("boom") })
	})
}
