package hash256

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumIsDeterministic(t *testing.T) {
	a := Sum([]byte("aevum-bond"))
	b := Sum([]byte("aevum-bond"))
	assert.Equal(t, a, b)

	c := Sum([]byte("different"))
	assert.NotEqual(t, a, c)
}

func TestMeetsDifficultyZeroAcceptsAnything(t *testing.T) {
	h := Sum([]byte("anything"))
	assert.True(t, h.MeetsDifficulty(0))
}

func TestMeetsDifficultyMaxOnlyAcceptsZeroHash(t *testing.T) {
	assert.True(t, Zero.MeetsDifficulty(256))

	h := Sum([]byte("not zero"))
	assert.False(t, h.MeetsDifficulty(256))
}

func TestMeetsDifficultyCountsLeadingZeroBits(t *testing.T) {
	var h Hash256
	h[0] = 0x00
	h[1] = 0x0F // 0000 1111 -> 4 leading zero bits here, 8 before it
	assert.True(t, h.MeetsDifficulty(12))
	assert.False(t, h.MeetsDifficulty(13))
}

func TestNewRejectsWrongLength(t *testing.T) {
	_, err := New([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestFromHexRoundTrip(t *testing.T) {
	h := Sum([]byte("round-trip"))
	parsed, err := FromHex(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
}
