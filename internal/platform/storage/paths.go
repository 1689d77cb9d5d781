package storage

import (
	"fmt"
	"strings"
	"time"
)

const bulkReportPrefix = "bulk-transitions"

// BulkReportPath is the object key of an archived bulk report:
// bulk-transitions/YYYY/MM/DD/<run id>.json, dated in UTC.
func BulkReportPath(runID string, startedAt time.Time) (string, error) {
	id, err := validateSegment("runID", runID)
	if err != nil {
		return "", err
	}
	if startedAt.IsZero() {
		return "", fmt.Errorf("storage: report start time is required")
	}
	return fmt.Sprintf("%s/%s/%s.json", bulkReportPrefix, startedAt.UTC().Format("2006/01/02"), id), nil
}

func validateSegment(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return "", fmt.Errorf("storage: %s is required", name)
	case strings.ContainsAny(value, "/\\"):
		return "", fmt.Errorf("storage: %s contains invalid path characters", name)
	case strings.Contains(value, ".."):
		return "", fmt.Errorf("storage: %s contains invalid traversal sequence", name)
	}
	return value, nil
}
