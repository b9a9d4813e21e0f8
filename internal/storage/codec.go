package storage

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/tos-network/hashfarm/internal/economy"
)

const checksumPrefix = "blake3:"

var (
	// ErrNotFound is returned by stores holding no record.
	ErrNotFound = errors.New("save record not found")
	// ErrChecksum is returned when a record's checksum does not match its body.
	ErrChecksum = errors.New("save record checksum mismatch")
)

// Encode serializes s into an indented JSON record carrying a checksum.
func Encode(s *economy.State) ([]byte, error) {
	rec := Serialize(s)

	sum, err := checksum(rec)
	if err != nil {
		return nil, err
	}
	rec.Checksum = sum

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return data, nil
}

// Decode parses a record and verifies its checksum. Records without a
// checksum are accepted as written by older versions.
func Decode(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if rec.Checksum == "" {
		return &rec, nil
	}

	sum, err := checksum(&rec)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(sum, rec.Checksum) {
		return nil, fmt.Errorf("%w: have %s, want %s", ErrChecksum, rec.Checksum, sum)
	}
	return &rec, nil
}

// checksum hashes the compact JSON of rec without its checksum field.
func checksum(rec *Record) (string, error) {
	body := *rec
	body.Checksum = ""

	data, err := json.Marshal(&body)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	sum := blake3.Sum256(data)
	return checksumPrefix + hex.EncodeToString(sum[:]), nil
}
