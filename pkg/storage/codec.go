package storage

import (
	"encoding/json"
	"fmt"

	"github.com/vulntor/jobrunner/pkg/jobs"
)

// encodeStatus serializes a record for the file, Redis and NATS backends.
func encodeStatus(st *jobs.Status) ([]byte, error) {
	if st == nil {
		return nil, NewInvalidInputError("status", "status is nil")
	}
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status: %w", err)
	}
	return data, nil
}

func decodeStatus(data []byte) (*jobs.Status, error) {
	var st jobs.Status
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse status: %w", err)
	}
	return &st, nil
}
