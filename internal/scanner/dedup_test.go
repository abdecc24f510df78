package scanner

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeduplicator_CooldownSuppression(t *testing.T) {
	d := NewDeduplicator(0)

	require.True(t, d.Admit("800005BE-1578330321A", 0, 2000))
	require.False(t, d.Admit("800005BE-1578330321A", 1000, 2000))
	require.True(t, d.Admit("800005BE-1578330321A", 2100, 2000))
}

func TestDeduplicator_SuppressedDoesNotRefresh(t *testing.T) {
	d := NewDeduplicator(0)

	require.True(t, d.Admit("X", 0, 2000))
	require.False(t, d.Admit("X", 1500, 2000))
	// отсчёт идёт от первого допуска, а не от подавленного повтора
	require.True(t, d.Admit("X", 2000, 2000))
}

func TestDeduplicator_IndependentCodes(t *testing.T) {
	d := NewDeduplicator(0)

	require.True(t, d.Admit("A", 0, 1500))
	require.True(t, d.Admit("B", 10, 1500))
	require.False(t, d.Admit("A", 20, 1500))
}

func TestDeduplicator_Bounded(t *testing.T) {
	d := NewDeduplicator(4)

	for i := 0; i < 4; i++ {
		require.True(t, d.Admit(fmt.Sprintf("C%d", i), int64(i), 1000))
	}
	require.Equal(t, 4, d.Len())

	// все записи свежие: вытесняется самая старая
	require.True(t, d.Admit("C4", 10, 1000))
	require.Equal(t, 4, d.Len())
	require.True(t, d.Admit("C0", 11, 1000))

	// все записи устарели: чистятся лениво при следующем новом коде
	require.True(t, d.Admit("NEW", 5000, 1000))
	require.Equal(t, 1, d.Len())
}
