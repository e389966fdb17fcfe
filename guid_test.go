package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeGuid_RoundTripsLocationAndKind(t *testing.T) {
	g := makeGuid(42, KindTask, 7, false)
	assert.Equal(t, uint8(42), g.Location())
	assert.Equal(t, KindTask, g.EmbeddedKind())
	assert.False(t, g.IsReserved())
}

func TestMakeGuid_ReservedBit(t *testing.T) {
	g := makeGuid(1, KindEventOnce, 3, true)
	assert.True(t, g.IsReserved())
	assert.Equal(t, KindEventOnce, g.EmbeddedKind())
}

func TestGuid_SentinelStrings(t *testing.T) {
	assert.Equal(t, "GUID(null)", NullGuid.String())
	assert.Equal(t, "GUID(uninitialized)", UninitializedGuid.String())
	assert.Equal(t, "GUID(error)", ErrorGuid.String())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "TASK", KindTask.String())
	assert.Equal(t, "DATABLOCK", KindDataBlock.String())
	assert.Contains(t, Kind(200).String(), "KIND(200)")
}

func TestMakeGuid_CounterTruncates(t *testing.T) {
	over := uint64(1) << guidCounterBits
	g := makeGuid(0, KindNone, over|5, false)
	assert.Equal(t, Guid(5), g)
}
