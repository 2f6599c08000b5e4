package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job:view:%s", jobID)
}

func RateLimitKey(caller string) string {
	return fmt.Sprintf("ratelimit:%s", caller)
}
