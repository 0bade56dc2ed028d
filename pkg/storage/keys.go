package storage

import (
	"github.com/google/uuid"

	"github.com/vulntor/jobrunner/pkg/jobs"
)

// DefaultRedisPrefix namespaces jobrunner keys in a shared Redis.
const DefaultRedisPrefix = "jobrunner:"

func parseJobID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// redisKey renders "<prefix><kind>/<job-id>".
func redisKey(prefix string, key jobs.Key) string {
	return prefix + key.String()
}

// natsKey renders "<kind>.<job-id>"; NATS KV keys may not contain spaces and
// use dots as token separators.
func natsKey(key jobs.Key) string {
	return string(key.Kind) + "." + key.JobID.String()
}
