package vpw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// vinBlockFrame builds a canned 0x7C reply for a VIN block.
func vinBlockFrame(id BlockId, payload []byte) []byte {
	frame := []byte{0x6C, 0xF0, 0x10, 0x7C, byte(id)}
	return append(frame, payload...)
}

func TestParseVinResponses(t *testing.T) {
	p := NewParser()

	// "1G1YY22G965100001"
	b1 := vinBlockFrame(BlockVin1, append([]byte{0x00}, []byte("1G1YY")...))
	b2 := vinBlockFrame(BlockVin2, []byte("22G965"))
	b3 := vinBlockFrame(BlockVin3, []byte("100001"))

	r := p.ParseVinResponses(b1, b2, b3)
	require.True(t, r.Ok(), "status %s: %s", r.Status, r.Message)
	assert.Equal(t, "1G1YY22G965100001", r.Value)
	assert.Len(t, r.Value, 17)
}

func TestParseVinResponsesBlockMismatch(t *testing.T) {
	p := NewParser()
	b1 := vinBlockFrame(BlockVin1, append([]byte{0x00}, []byte("1G1YY")...))
	b3 := vinBlockFrame(BlockVin3, []byte("100001"))

	// Block 2 answered with the wrong block id.
	wrong := vinBlockFrame(BlockVin3, []byte("22G965"))
	r := p.ParseVinResponses(b1, wrong, b3)
	assert.Equal(t, Error, r.Status)
}

func TestParseSerialResponses(t *testing.T) {
	p := NewParser()
	b1 := vinBlockFrame(BlockSerial1, []byte{0, 0, 'P', 'T', '1', '2'})
	b2 := vinBlockFrame(BlockSerial2, []byte{0, 0, '3', '4', '5', '6'})
	b3 := vinBlockFrame(BlockSerial3, []byte{0, 0, '7', '8', '9', 'A'})

	r := p.ParseSerialResponses(b1, b2, b3)
	require.True(t, r.Ok())
	assert.Equal(t, "PT123456789A", r.Value)
}

func TestParseBccAndMec(t *testing.T) {
	p := NewParser()

	bcc := p.ParseBccResponse(vinBlockFrame(BlockBCC, []byte("ABCD")))
	require.True(t, bcc.Ok())
	assert.Equal(t, "ABCD", bcc.Value)

	mec := p.ParseMecResponse(vinBlockFrame(BlockMEC, []byte{0x03}))
	require.True(t, mec.Ok())
	assert.Equal(t, "3", mec.Value)
}

func TestParseBlockUint32(t *testing.T) {
	p := NewParser()
	frame := vinBlockFrame(BlockOperatingSystemID, []byte{0x00, 0xBC, 0x61, 0x4E})
	r := p.ParseBlockUint32(frame, BlockOperatingSystemID)
	require.True(t, r.Ok())
	assert.Equal(t, uint32(12345678), r.Value)
}

func TestRoundTripFactoryParser(t *testing.T) {
	// What the factory asks for, the parser can decode from a well-formed
	// reply carrying the same block id.
	p := NewParser()
	for _, id := range []BlockId{BlockBCC, BlockOperatingSystemID, BlockHardwareID, BlockCalibrationID} {
		frame := vinBlockFrame(id, []byte{0x11, 0x22, 0x33, 0x44})
		switch id {
		case BlockBCC:
			r := p.ParseBccResponse(frame)
			require.True(t, r.Ok())
		default:
			r := p.ParseBlockUint32(frame, id)
			require.True(t, r.Ok())
			assert.Equal(t, uint32(0x11223344), r.Value)
		}
	}
}

func TestParseSeed(t *testing.T) {
	p := NewParser()

	r := p.ParseSeed([]byte{0x6C, 0xF0, 0x10, 0x67, 0x01, 0x12, 0x34})
	require.True(t, r.Ok())
	assert.Equal(t, uint16(0x1234), r.Value)

	zero := p.ParseSeed([]byte{0x6C, 0xF0, 0x10, 0x67, 0x01, 0x00, 0x00})
	require.True(t, zero.Ok())
	assert.Equal(t, uint16(0), zero.Value)

	bad := p.ParseSeed([]byte{0x6C, 0xF0, 0x10, 0x7C, 0x01})
	assert.Equal(t, UnexpectedResponse, bad.Status)
}

func TestIsUnlocked(t *testing.T) {
	p := NewParser()
	assert.True(t, p.IsUnlocked([]byte{0x6C, 0xF0, 0x10, 0x67, 0x01, 0x37}))
	assert.False(t, p.IsUnlocked([]byte{0x6C, 0xF0, 0x10, 0x67, 0x01, 0x12, 0x34}))
}

func TestParseUnlockResponse(t *testing.T) {
	p := NewParser()

	ok, diag := p.ParseUnlockResponse([]byte{0x6C, 0xF0, 0x10, 0x67, 0x02, 0x34})
	assert.True(t, ok.Ok())
	assert.Empty(t, diag)

	refused, diag := p.ParseUnlockResponse([]byte{0x6C, 0xF0, 0x10, 0x67, 0x02, 0x35})
	assert.Equal(t, Refused, refused.Status)
	assert.NotEmpty(t, diag)

	wrong, _ := p.ParseUnlockResponse([]byte{0x6C, 0xF0, 0x10, 0x7C, 0x02, 0x34})
	assert.Equal(t, UnexpectedResponse, wrong.Status)
}

func TestParseReadResponse(t *testing.T) {
	p := NewParser()

	yes := p.ParseReadResponse([]byte{0x6C, 0xF0, 0x10, 0x75, 0x01})
	require.True(t, yes.Ok())
	assert.True(t, yes.Value)

	no := p.ParseReadResponse([]byte{0x6C, 0xF0, 0x10, 0x75, 0x00})
	require.True(t, no.Ok())
	assert.False(t, no.Value)

	junk := p.ParseReadResponse([]byte{0x6C, 0xF0, 0x10, 0x7C, 0x01})
	assert.Equal(t, UnexpectedResponse, junk.Status)
}

func TestParseUploadResponse(t *testing.T) {
	p := NewParser()
	assert.True(t, p.ParseUploadResponse([]byte{0x6C, 0xF0, 0x10, 0x74, 0x00}).Ok())
	assert.Equal(t, Refused, p.ParseUploadResponse([]byte{0x6C, 0xF0, 0x10, 0x74, 0x01}).Status)
}

func TestIsChatter(t *testing.T) {
	p := NewParser()
	assert.True(t, p.IsChatter([]byte{0x6C, 0xFE, 0x40, 0x3F}))
	assert.True(t, p.IsChatter([]byte{0x6C}), "runt frames are noise")
	assert.False(t, p.IsChatter([]byte{0x6C, 0xF0, 0x10, 0x7C, 0x01}))
}
