package border

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultRecord() Record {
	return NewRecord("island-1", Defaults{TopY: 320, BottomY: -64, CeilingEnabled: true, FloorEnabled: true})
}

func TestNewRecord_Defaults(t *testing.T) {
	r := defaultRecord()

	assert.Equal(t, "island-1", r.RegionID)
	assert.Equal(t, 320, r.TopY)
	assert.Equal(t, -64, r.BottomY)
	assert.True(t, r.BorderEnabled, "граница включена по умолчанию")
	assert.True(t, r.CeilingActive())
	assert.True(t, r.FloorActive())
	assert.False(t, r.LocationInitialized, "новая запись не знает геометрию установки")

	_, ok := r.LastFootprint()
	assert.False(t, ok)
}

func TestRecord_ActiveFlags(t *testing.T) {
	r := defaultRecord()
	r.BorderEnabled = false
	assert.False(t, r.CeilingActive(), "выключенная граница гасит потолок")
	assert.False(t, r.FloorActive(), "выключенная граница гасит пол")

	r.BorderEnabled = true
	r.FloorEnabled = false
	assert.True(t, r.CeilingActive())
	assert.False(t, r.FloorActive())
}

func TestRecord_UpdateLocation(t *testing.T) {
	r := defaultRecord()
	r.UpdateLocation("bskyblock_world", 100, -200, 50)

	fp, ok := r.LastFootprint()
	require.True(t, ok)
	assert.Equal(t, Footprint{World: "bskyblock_world", MinX: 50, MaxX: 150, MinZ: -250, MaxZ: -150}, fp)
	assert.True(t, r.SameLocation("bskyblock_world", 100, -200, 50))
	assert.False(t, r.SameLocation("bskyblock_world", 101, -200, 50))
}

func TestValidateHeight(t *testing.T) {
	l := DefaultLimits

	t.Run("valid pairs accepted", func(t *testing.T) {
		for top := l.MinY; top <= l.MaxY; top += 37 {
			for bottom := l.MinY; bottom < top; bottom += 41 {
				r := defaultRecord()
				r.BottomY = bottom
				assert.NoError(t, ValidateHeight(r, PlaneTop, top, l), "top=%d bottom=%d", top, bottom)

				r = defaultRecord()
				r.TopY = top
				assert.NoError(t, ValidateHeight(r, PlaneBottom, bottom, l), "top=%d bottom=%d", top, bottom)
			}
		}
	})

	t.Run("inverted rejected", func(t *testing.T) {
		r := defaultRecord()
		r.TopY, r.BottomY = 100, 50

		err := ValidateHeight(r, PlaneTop, 50, l)
		assert.ErrorIs(t, err, ErrInverted)
		err = ValidateHeight(r, PlaneTop, 10, l)
		assert.ErrorIs(t, err, ErrInverted)
		err = ValidateHeight(r, PlaneBottom, 100, l)
		assert.ErrorIs(t, err, ErrInverted)

		var he *HeightError
		require.True(t, errors.As(err, &he))
		assert.Equal(t, PlaneBottom, he.Plane)
		assert.Equal(t, 50, he.Current)
	})

	t.Run("out of bounds rejected first", func(t *testing.T) {
		r := defaultRecord()
		assert.ErrorIs(t, ValidateHeight(r, PlaneTop, 321, l), ErrOutOfBounds)
		assert.ErrorIs(t, ValidateHeight(r, PlaneBottom, -65, l), ErrOutOfBounds)
		// И за пределами, и инвертировано: сообщаем о пределах
		assert.ErrorIs(t, ValidateHeight(r, PlaneTop, -100, l), ErrOutOfBounds)
	})
}

func TestFootprint_Volumes(t *testing.T) {
	fp := FootprintAround("w", 0, 0, 2)
	l := DefaultLimits

	ceiling := fp.CeilingVolume(250, l)
	assert.Equal(t, 250, ceiling.MinY)
	assert.Equal(t, 319, ceiling.MaxY, "верх мира исключительный")
	assert.Equal(t, int64(5*70*5), ceiling.Blocks())

	floor := fp.FloorVolume(-60, l)
	assert.Equal(t, -64, floor.MinY)
	assert.Equal(t, -60, floor.MaxY)

	assert.True(t, fp.CeilingVolume(320, l).Empty(), "потолок на 320 не занимает блоков")
}

func TestFootprint_Intersect(t *testing.T) {
	a := Footprint{World: "w", MinX: 0, MaxX: 15, MinZ: 0, MaxZ: 15}
	b := FootprintAround("w", 20, 5, 8)

	got, ok := a.Intersect(b)
	require.True(t, ok)
	assert.Equal(t, Footprint{World: "w", MinX: 12, MaxX: 15, MinZ: 0, MaxZ: 13}, got)

	_, ok = a.Intersect(FootprintAround("w", 100, 100, 5))
	assert.False(t, ok)

	_, ok = a.Intersect(Footprint{World: "nether", MinX: 0, MaxX: 15, MinZ: 0, MaxZ: 15})
	assert.False(t, ok, "разные миры не пересекаются")
}
