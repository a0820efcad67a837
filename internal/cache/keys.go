package cache

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const dayFormat = "2006-01-02"

func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s", jobID)
}

func NotesKey(projectID string, start, end time.Time) string {
	return fmt.Sprintf("trackyard:notes:%s:%s:%s", projectID, start.Format(dayFormat), end.Format(dayFormat))
}

func ImagesKey(projectID string, start, end time.Time) string {
	return fmt.Sprintf("trackyard:images:%s:%s:%s", projectID, start.Format(dayFormat), end.Format(dayFormat))
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
