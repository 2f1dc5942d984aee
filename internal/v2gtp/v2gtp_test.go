package v2gtp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := Frame{PayloadType: PayloadEXI2, Body: []byte("hello session")}
	raw := Encode(f)

	require.Equal(t, ProtocolVersion, raw[0])
	require.Equal(t, ProtocolVersionInverse, raw[1])

	got, err := Decode(raw, 0)
	require.NoError(t, err)
	assert.Equal(t, f, got)
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	raw := Encode(Frame{PayloadType: PayloadSDPRequest, Body: []byte{1, 2}})
	raw[0] = 0x02

	_, err := Decode(raw, 0)
	assert.Error(t, err)
}

func TestDecodeRejectsUnknownPayloadType(t *testing.T) {
	raw := Encode(Frame{PayloadType: PayloadSDPRequest, Body: []byte{1, 2}})
	raw[2], raw[3] = 0x12, 0x34

	_, err := Decode(raw, 0)
	assert.Error(t, err)
}

func TestDecodeEnforcesMaxLength(t *testing.T) {
	raw := Encode(Frame{PayloadType: PayloadEXI2, Body: make([]byte, 10)})

	_, err := Decode(raw, 4)
	assert.Error(t, err)
}

func TestDecodeRejectsLengthMismatch(t *testing.T) {
	raw := Encode(Frame{PayloadType: PayloadEXI2, Body: []byte{1, 2, 3}})
	raw[4], raw[5], raw[6], raw[7] = 0, 0, 0, 9 // claim 9 bytes, only 3 follow

	_, err := Decode(raw, 0)
	assert.Error(t, err)
}

func TestReadFrameReassemblesPartialReads(t *testing.T) {
	raw := Encode(Frame{PayloadType: PayloadEXI20, Body: []byte("a longer EXI body than one byte")})

	// Simulate a transport that only ever hands back one byte per Read call.
	pos := 0
	read := func(p []byte) (int, error) {
		if pos >= len(raw) {
			return 0, assertEOF{}
		}
		p[0] = raw[pos]
		pos++
		return 1, nil
	}

	f, err := ReadFrame(read, 0)
	require.NoError(t, err)
	assert.Equal(t, PayloadEXI20, f.PayloadType)
	assert.Equal(t, []byte("a longer EXI body than one byte"), f.Body)
}

type assertEOF struct{}

func (assertEOF) Error() string { return "EOF" }
