package pixqr

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Well-known EMV tag ids used when rewriting a static payload.
const (
	tagPointOfInitiation = "01"
	tagAmount            = "54"
	tagCountryCode       = "58"
	tagChecksum          = "63"

	poiStatic  = "11"
	poiDynamic = "12"

	// checksum block: tag "63" + length "04" + 4 hex chars
	checksumSentinel = tagChecksum + "04"
	checksumBlockLen = 8
)

// Tag is one tag-length-value element of an EMV QR payload. A payload is an
// ordered sequence of tags; the format does not guarantee id uniqueness.
type Tag struct {
	ID    string
	Value string
}

// Decode parses a payload strictly: any trailing fragment shorter than a
// tag+length header, a non-decimal length field, or a length running past
// the end of the input is a decode error.
func Decode(payload string) ([]Tag, error) {
	tags, rest := scan(payload)
	if rest != "" {
		return nil, fmt.Errorf("malformed tlv data at offset %d: %q", len(payload)-len(rest), truncateForError(rest))
	}
	return tags, nil
}

// DecodeLenient parses as far as the input is well formed and silently drops
// any malformed tail. Bank-emitted static payloads occasionally carry
// trailing junk, so the dynamic-payload builder uses this mode.
func DecodeLenient(payload string) []Tag {
	tags, _ := scan(payload)
	return tags
}

func scan(payload string) ([]Tag, string) {
	var tags []Tag
	rest := payload
	for len(rest) >= 4 {
		id := rest[:2]
		length, ok := decimalLength(rest[2:4])
		if !ok || len(rest) < 4+length {
			return tags, rest
		}
		tags = append(tags, Tag{ID: id, Value: rest[4 : 4+length]})
		rest = rest[4+length:]
	}
	return tags, rest
}

func decimalLength(s string) (int, bool) {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

func truncateForError(s string) string {
	if len(s) > 16 {
		return s[:16] + "..."
	}
	return s
}

// Encode serializes tags in sequence order. Values longer than 99 characters
// overflow the 2-digit length field and are rejected rather than truncated.
func Encode(tags []Tag) (string, error) {
	var b strings.Builder
	for _, t := range tags {
		if len(t.ID) != 2 {
			return "", fmt.Errorf("tag id %q must be exactly 2 characters", t.ID)
		}
		if len(t.Value) > 99 {
			return "", fmt.Errorf("tag %s value length %d exceeds the 2-digit length field", t.ID, len(t.Value))
		}
		fmt.Fprintf(&b, "%s%02d%s", t.ID, len(t.Value), t.Value)
	}
	return b.String(), nil
}

// Checksum computes the EMV CRC-16: polynomial 0x1021, initial register
// 0xFFFF, one byte per character (low 8 bits), MSB first, no final XOR.
// Returned as 4 uppercase hex digits.
func Checksum(payload string) string {
	reg := uint16(0xFFFF)
	for i := 0; i < len(payload); i++ {
		reg ^= uint16(payload[i]) << 8
		for bit := 0; bit < 8; bit++ {
			if reg&0x8000 != 0 {
				reg = reg<<1 ^ 0x1021
			} else {
				reg <<= 1
			}
		}
	}
	return fmt.Sprintf("%04X", reg)
}

// BuildDynamicPayload rewrites a static payload into a dynamic one carrying
// the exact amount: the trailing checksum block is stripped, the amount tag
// is upserted (inserted immediately before the country code tag when absent),
// a static point-of-initiation marker is flipped to dynamic, and a fresh
// checksum is computed over the re-serialized payload including the "6304"
// sentinel. Running it on its own output with the same amount is a no-op
// apart from the identical checksum.
func BuildDynamicPayload(staticPayload string, amountCentavos int64) (string, error) {
	if amountCentavos <= 0 {
		return "", fmt.Errorf("amount must be positive, got %d", amountCentavos)
	}

	body := staticPayload
	if len(body) >= checksumBlockLen && strings.HasPrefix(body[len(body)-checksumBlockLen:], checksumSentinel) {
		body = body[:len(body)-checksumBlockLen]
	}

	tags := DecodeLenient(body)
	amount := decimal.New(amountCentavos, -2).StringFixed(2)

	updated := false
	for i := range tags {
		switch tags[i].ID {
		case tagAmount:
			if !updated {
				tags[i].Value = amount
				updated = true
			}
		case tagPointOfInitiation:
			if tags[i].Value == poiStatic {
				tags[i].Value = poiDynamic
			}
		}
	}

	if !updated {
		inserted := false
		for i := range tags {
			if tags[i].ID == tagCountryCode {
				tags = append(tags[:i], append([]Tag{{ID: tagAmount, Value: amount}}, tags[i:]...)...)
				inserted = true
				break
			}
		}
		if !inserted {
			tags = append(tags, Tag{ID: tagAmount, Value: amount})
		}
	}

	encoded, err := Encode(tags)
	if err != nil {
		return "", fmt.Errorf("re-encoding payload: %w", err)
	}

	encoded += checksumSentinel
	return encoded + Checksum(encoded), nil
}
