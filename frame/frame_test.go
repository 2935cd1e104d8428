package frame

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_PinnedVectors(t *testing.T) {
	tests := []struct {
		seq     uint8
		cmd     string
		payload string
		want    string
	}{
		{1, "PING", "", "^01|PING|*11$"},
		{4, "R", "-90", "^04|R|-90*72$"},
	}

	for _, tt := range tests {
		got, err := Encode(tt.seq, tt.cmd, tt.payload)
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(got))
	}
}

func TestEncode_UppercaseHexSequence(t *testing.T) {
	got, err := Encode(0xAB, "S", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(got), "^AB|S|*"), "got %q", got)

	got, err = Encode(0x0F, "S", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(got), "^0F|"), "got %q", got)
}

func TestEncode_InvalidField(t *testing.T) {
	tests := []struct {
		name    string
		cmd     string
		payload string
	}{
		{"empty command", "", "x"},
		{"pipe in command", "A|B", ""},
		{"star in payload", "V", "1*2"},
		{"start marker in payload", "V", "^"},
		{"end marker in command", "$", ""},
		{"control byte in payload", "M", "1\n"},
		{"non-ascii payload", "M", "é"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(1, tt.cmd, tt.payload)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidField)
		})
	}
}

func TestFrame_EncodeAndString(t *testing.T) {
	f := Frame{Seq: 0x10, Command: "ACK", Payload: "OK"}

	wire, err := f.Encode()
	require.NoError(t, err)
	assert.Equal(t, "10|ACK|OK", f.String())

	got, err := Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, f, got)
}

func TestDecode_RoundTrip(t *testing.T) {
	tests := []Frame{
		{Seq: 0, Command: "PING", Payload: ""},
		{Seq: 1, Command: "HELP", Payload: ""},
		{Seq: 0x7F, Command: "V", Payload: "160"},
		{Seq: 0xFF, Command: "M", Payload: "-25"},
		{Seq: 0x42, Command: "ACK", Payload: "dist=123 cm"},
		{Seq: 0x99, Command: "NACK", Payload: "BAD_CS"},
	}

	for _, want := range tests {
		wire, err := Encode(want.Seq, want.Command, want.Payload)
		require.NoError(t, err)

		got, err := Decode(wire)
		require.NoError(t, err, "wire=%q", wire)
		assert.Equal(t, want, got)
	}
}

func TestDecode_RoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		want := Frame{
			Seq:     uint8(rng.Intn(256)),
			Command: randomField(rng, 1+rng.Intn(6)),
			Payload: randomField(rng, rng.Intn(40)),
		}

		wire, err := Encode(want.Seq, want.Command, want.Payload)
		require.NoError(t, err)

		got, err := Decode(wire)
		require.NoError(t, err, "wire=%q", wire)
		require.Equal(t, want, got)
	}
}

func TestDecode_ChecksumSensitivity(t *testing.T) {
	wires := [][]byte{
		MustEncode(1, "PING", ""),
		MustEncode(4, "R", "-90"),
		MustEncode(0xFE, "ACK", "dist=42"),
	}

	for _, wire := range wires {
		sep := len(wire) - 4
		for i := 1; i < sep; i++ {
			for bit := 0; bit < 8; bit++ {
				corrupted := append([]byte(nil), wire...)
				corrupted[i] ^= 1 << bit

				_, err := Decode(corrupted)
				require.Error(t, err, "byte %d bit %d of %q", i, bit, wire)
				assert.ErrorIs(t, err, ErrChecksum, "byte %d bit %d of %q", i, bit, wire)
			}
		}
	}
}

func TestDecode_ChecksumDigitFlip(t *testing.T) {
	// '1' -> '0' keeps the digit valid hex, so only the comparison fails.
	wire := []byte("^01|PING|*10$")

	_, err := Decode(wire)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChecksum)

	de, ok := AsDecodeError(err)
	require.True(t, ok)
	assert.True(t, de.IsChecksum())
	assert.True(t, de.SeqOK)
	assert.Equal(t, uint8(1), de.Seq)
}

func TestDecode_ChecksumErrorRecoversSequence(t *testing.T) {
	wire := MustEncode(0x3C, "ACK", "OK")
	wire[len(wire)-5] ^= 0x01 // corrupt last payload byte

	_, err := Decode(wire)
	de, ok := AsDecodeError(err)
	require.True(t, ok)
	assert.ErrorIs(t, err, ErrChecksum)
	assert.True(t, de.SeqOK)
	assert.Equal(t, uint8(0x3C), de.Seq)
	assert.Contains(t, err.Error(), "seq=3C")
}

func TestDecode_FormatErrors(t *testing.T) {
	tests := []struct {
		name  string
		wire  string
		seqOK bool
	}{
		{"too short", "^1*00$", false},
		{"missing start marker", "01|PING|*11$", false},
		{"missing end marker", "^01|PING|*11", true},
		{"missing checksum separator", "^01|PING|x11$", true},
		{"non-hex checksum", "^01|PING|*1G$", true},
		{"two fields", withChecksum("01|PING"), true},
		{"four fields", withChecksum("01|V|1|2"), true},
		{"three-digit sequence", withChecksum("001|PING|"), false},
		{"non-hex sequence", withChecksum("0X|PING|"), false},
		{"empty command", withChecksum("01||x"), true},
		{"stray star in content", withChecksum("01|V|1*"), true},
		{"control byte in content", withChecksum("01|V|\x01"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.wire))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrFormat)
			assert.False(t, errors.Is(err, ErrChecksum))

			de, ok := AsDecodeError(err)
			require.True(t, ok)
			assert.Equal(t, tt.seqOK, de.SeqOK)
		})
	}
}

func TestDecode_LowercaseHexAccepted(t *testing.T) {
	f, err := Decode([]byte(withChecksum("ab|ACK|")))
	require.NoError(t, err)
	assert.Equal(t, uint8(0xAB), f.Seq)

	// "01|PING|" has checksum 0x11; try a payload whose checksum has letters.
	content := "02|V|9"
	cs := strings.ToLower(string(appendHex2(nil, Checksum([]byte(content)))))
	_, err = Decode([]byte("^" + content + "*" + cs + "$"))
	require.NoError(t, err)
}

func TestPeekSeq(t *testing.T) {
	seq, ok := PeekSeq([]byte("^7F|junk"))
	assert.True(t, ok)
	assert.Equal(t, uint8(0x7F), seq)

	_, ok = PeekSeq([]byte("^7"))
	assert.False(t, ok)

	_, ok = PeekSeq([]byte("7F|"))
	assert.False(t, ok)
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, uint8(0), Checksum(nil))
	assert.Equal(t, uint8(0x11), Checksum([]byte("01|PING|")))
	assert.Equal(t, uint8(0x72), Checksum([]byte("04|R|-90")))
}

func TestMustEncode_Panics(t *testing.T) {
	assert.Panics(t, func() { MustEncode(1, "", "") })
}

// withChecksum wraps content as ^content*CS$ with a correct checksum.
func withChecksum(content string) string {
	cs := Checksum([]byte(content))

	return "^" + content + "*" + string(appendHex2(nil, cs)) + "$"
}

func randomField(rng *rand.Rand, n int) string {
	var sb strings.Builder
	for sb.Len() < n {
		c := byte(0x20 + rng.Intn(0x7F-0x20))
		if strings.IndexByte(reserved, c) >= 0 {
			continue
		}
		sb.WriteByte(c)
	}

	return sb.String()
}
