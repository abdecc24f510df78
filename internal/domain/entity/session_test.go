package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewScanSession_DefaultStep(t *testing.T) {
	s := NewScanSession(10)
	require.Equal(t, StepSelectLocation, s.Step)
	require.Equal(t, int64(10), s.OwnerID)
	require.Zero(t, s.Len())
}

func TestScanSession_AddIsUnique(t *testing.T) {
	s := NewScanSession(1)
	ev := ScanEvent{Code: "800005BE-1578330321A", RecognizedAt: time.Now(), Source: SourceSymbol}

	require.Equal(t, Added, s.Add(ev))
	require.Equal(t, AlreadyPresent, s.Add(ev))
	require.Equal(t, 1, s.Len())
	require.Equal(t, 1, s.Duplicates)
}

func TestScanSession_RemoveAndClear(t *testing.T) {
	s := NewScanSession(1)
	s.Add(ScanEvent{Code: "A"})
	s.Add(ScanEvent{Code: "B"})
	s.Add(ScanEvent{Code: "C"})

	require.True(t, s.Remove("B"))
	require.False(t, s.Remove("B"))
	require.Equal(t, []string{"A", "C"}, codes(s.Items()))

	s.Hold(ScanEvent{Code: "D"})
	require.True(t, s.Contains("D"))

	s.Clear()
	require.Zero(t, s.Len())
	require.False(t, s.Contains("D"))
}

func TestScanSession_ResetChangesID(t *testing.T) {
	s := NewScanSession(1)
	id := s.ID
	s.LocationID = "loc-1"
	s.Reset()
	require.NotEqual(t, id, s.ID)
	require.Empty(t, s.LocationID)
}

func TestParseStatusTarget(t *testing.T) {
	st, ok := ParseStatusTarget("full")
	require.True(t, ok)
	require.Equal(t, StatusFull, st)

	_, ok = ParseStatusTarget("half")
	require.False(t, ok)
}

func codes(items []ScanEvent) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Code)
	}
	return out
}
