package canbus

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeSLCAN(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		frame Frame
		want  string
	}{
		{"standard", MustFrame(0x123, []byte{0xAB, 0xCD}), "t1232ABCD\r"},
		{"empty", MustFrame(0x7FE, nil), "t7FE0\r"},
		{"extended remote", Frame{ID: 0x1ABCDEF0, Extended: true, RTR: true, Len: 2}, "R1ABCDEF02\r"},
		{"standard remote", Frame{ID: 0x2C0, RTR: true, Len: 1}, "r2C01\r"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, EncodeSLCAN(tt.frame))
		})
	}
}

func TestDecodeSLCAN(t *testing.T) {
	t.Parallel()
	f, err := DecodeSLCAN("t2803010203\r")
	require.NoError(t, err)
	assert.Equal(t, MustFrame(0x280, []byte{1, 2, 3}), f)

	f, err = DecodeSLCAN("T1ABCDEF01FF")
	require.NoError(t, err)
	assert.True(t, f.Extended)
	assert.Equal(t, uint32(0x1ABCDEF0), f.ID)
	assert.Equal(t, byte(0xFF), f.Data[0])

	// Trailing timestamps are tolerated.
	f, err = DecodeSLCAN("t7FB2640A1234")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x64, 0x0A}, f.Payload())

	f, err = DecodeSLCAN("r2C08")
	require.NoError(t, err)
	assert.True(t, f.RTR)
	assert.Equal(t, uint8(8), f.Len)
}

func TestDecodeSLCANErrors(t *testing.T) {
	t.Parallel()
	for _, line := range []string{"", "z", "t12", "t1239", "t1232AB", "tXYZ0", "t1231GG", "t8000"} {
		_, err := DecodeSLCAN(line)
		assert.Error(t, err, "line %q", line)
	}
}

func TestSLCANRoundTrip(t *testing.T) {
	t.Parallel()
	frames := []Frame{
		MustFrame(0x4A0, []byte{0x1A, 0xAF, 0xFE, 0, 0, 0, 0, 0}),
		{ID: 0x12345, Extended: true, Len: 1, Data: [8]byte{9}},
	}
	for _, f := range frames {
		got, err := DecodeSLCAN(strings.TrimSuffix(EncodeSLCAN(f), "\r"))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
}
