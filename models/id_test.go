package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIDGeneratorNew(t *testing.T) {
	t.Run("returns a new id", func(t *testing.T) {
		var ids IDGenerator

		for i := 1; i <= 5; i++ {
			id := ids.New()
			require.Equal(t, uint32(i), id)
		}
		require.Equal(t, 5, ids.Live())
	})

	t.Run("returns a released id", func(t *testing.T) {
		var ids IDGenerator

		for i := 1; i <= 5; i++ {
			ids.New()
		}

		ids.Release(2)
		ids.Release(4)
		require.Equal(t, 3, ids.Live())

		require.Equal(t, uint32(4), ids.New())
		require.Equal(t, uint32(2), ids.New())
		require.Equal(t, uint32(6), ids.New())
	})

	t.Run("ignores unknown ids", func(t *testing.T) {
		var ids IDGenerator
		ids.New()

		ids.Release(0)
		ids.Release(42)
		require.Equal(t, 1, ids.Live())
		require.Equal(t, uint32(2), ids.New())
	})

	t.Run("ignores released ids", func(t *testing.T) {
		var ids IDGenerator
		ids.New()
		ids.New()
		ids.New()

		ids.Release(1)
		ids.Release(1)
		require.Equal(t, 2, ids.Live())

		require.Equal(t, uint32(1), ids.New())
		require.Equal(t, uint32(4), ids.New())
		require.Equal(t, 4, ids.Live())

		ids.Release(1)
		require.Equal(t, uint32(1), ids.New())
	})
}
