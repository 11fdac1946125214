package store

import (
	"encoding/json"
	"errors"
)

// Versions stamped on every record written by this package.
const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

// ErrVersionMismatch is returned when a stored record was written with a
// different schema or codec version.
var ErrVersionMismatch = errors.New("record version mismatch")

// EncodeTrial serializes a record as JSON.
func EncodeTrial(r TrialRecord) ([]byte, error) {
	return json.Marshal(r)
}

// DecodeTrial parses a JSON record and rejects it with ErrVersionMismatch
// unless both versions are current.
func DecodeTrial(data []byte) (TrialRecord, error) {
	var record TrialRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return TrialRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return TrialRecord{}, err
	}
	return record, nil
}

func checkVersion(v VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
