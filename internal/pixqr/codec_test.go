package pixqr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const staticPayload = "00020101021126500014br.gov.bcb.pix0128pagamentos@careerscan.com.br5204000053039865802BR5910CareerScan6009SAO PAULO62070503***63048DEA"

func TestDecode_WellFormed(t *testing.T) {
	t.Parallel()

	tags, err := Decode("000201010211")
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, Tag{ID: "00", Value: "01"}, tags[0])
	assert.Equal(t, Tag{ID: "01", Value: "11"}, tags[1])
}

func TestDecode_Empty(t *testing.T) {
	t.Parallel()

	tags, err := Decode("")
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestDecode_DuplicateTagIDsPreserved(t *testing.T) {
	t.Parallel()

	tags, err := Decode("5002AA5002BB")
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "AA", tags[0].Value)
	assert.Equal(t, "BB", tags[1].Value)
}

func TestDecode_TrailingFragment(t *testing.T) {
	t.Parallel()

	_, err := Decode("000201XY")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")
}

func TestDecode_NonDecimalLength(t *testing.T) {
	t.Parallel()

	_, err := Decode("00XX01")
	require.Error(t, err)
}

func TestDecode_LengthPastEnd(t *testing.T) {
	t.Parallel()

	_, err := Decode("0099short")
	require.Error(t, err)
}

func TestDecodeLenient_DropsMalformedTail(t *testing.T) {
	t.Parallel()

	tags := DecodeLenient("000201010211garbage")
	require.Len(t, tags, 2)
	assert.Equal(t, "11", tags[1].Value)

	assert.Empty(t, DecodeLenient("xy"))
}

func TestEncode_RoundTrip(t *testing.T) {
	t.Parallel()

	original, err := Decode(staticPayload)
	require.NoError(t, err)

	encoded, err := Encode(original)
	require.NoError(t, err)
	assert.Equal(t, staticPayload, encoded)
}

func TestEncode_ValueTooLong(t *testing.T) {
	t.Parallel()

	_, err := Encode([]Tag{{ID: "26", Value: strings.Repeat("x", 100)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "length field")
}

func TestEncode_BadTagID(t *testing.T) {
	t.Parallel()

	_, err := Encode([]Tag{{ID: "5", Value: "v"}})
	require.Error(t, err)
}

func TestChecksum_KnownVectors(t *testing.T) {
	t.Parallel()

	// CRC-16/CCITT-FALSE reference values
	assert.Equal(t, "29B1", Checksum("123456789"))
	assert.Equal(t, "FFFF", Checksum(""))
	assert.Equal(t, "B915", Checksum("A"))
}

func TestChecksum_Deterministic(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Checksum(staticPayload), Checksum(staticPayload))
}

func TestChecksum_SensitiveToSingleCharacter(t *testing.T) {
	t.Parallel()

	mutated := "X" + staticPayload[1:]
	assert.NotEqual(t, Checksum(staticPayload), Checksum(mutated))
}

func TestBuildDynamicPayload_InsertsAmountBeforeCountryCode(t *testing.T) {
	t.Parallel()

	got, err := BuildDynamicPayload(staticPayload, 101)
	require.NoError(t, err)

	want := "00020101021226500014br.gov.bcb.pix0128pagamentos@careerscan.com.br52040000530398654041.015802BR5910CareerScan6009SAO PAULO62070503***63042213"
	assert.Equal(t, want, got)

	// amount tag sits immediately before the country code tag
	assert.Contains(t, got, "54041.015802BR")
	// static point-of-initiation flipped to dynamic
	assert.Contains(t, got, "010212")
	// trailing checksum differs from the static payload's
	assert.NotEqual(t, staticPayload[len(staticPayload)-4:], got[len(got)-4:])
}

func TestBuildDynamicPayload_ChecksumCoversSentinel(t *testing.T) {
	t.Parallel()

	got, err := BuildDynamicPayload(staticPayload, 1990)
	require.NoError(t, err)

	body := got[:len(got)-4]
	require.True(t, strings.HasSuffix(body, checksumSentinel))
	assert.Equal(t, Checksum(body), got[len(got)-4:])
}

func TestBuildDynamicPayload_Deterministic(t *testing.T) {
	t.Parallel()

	first, err := BuildDynamicPayload(staticPayload, 1990)
	require.NoError(t, err)
	second, err := BuildDynamicPayload(staticPayload, 1990)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	want := "00020101021226500014br.gov.bcb.pix0128pagamentos@careerscan.com.br520400005303986540519.905802BR5910CareerScan6009SAO PAULO62070503***6304D08B"
	assert.Equal(t, want, first)
}

func TestBuildDynamicPayload_IdempotentOnOwnOutput(t *testing.T) {
	t.Parallel()

	first, err := BuildDynamicPayload(staticPayload, 2057)
	require.NoError(t, err)
	second, err := BuildDynamicPayload(first, 2057)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, strings.Count(second, "540520.57"))
}

func TestBuildDynamicPayload_AppendsWhenCountryCodeAbsent(t *testing.T) {
	t.Parallel()

	got, err := BuildDynamicPayload("000201520400005303986630444DD", 250)
	require.NoError(t, err)
	assert.Equal(t, "00020152040000530398654042.5063046F5B", got)
}

func TestBuildDynamicPayload_RejectsNonPositiveAmount(t *testing.T) {
	t.Parallel()

	_, err := BuildDynamicPayload(staticPayload, 0)
	require.Error(t, err)
	_, err = BuildDynamicPayload(staticPayload, -500)
	require.Error(t, err)
}
