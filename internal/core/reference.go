package core

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var recordIDPattern = regexp.MustCompile(`(?i)([a-f0-9]{24})$`)

// NewRecordID returns a 24 hex character id like the hosted service assigns.
func NewRecordID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

// ExtractRecordID returns the trailing 24 hex characters of a record URL.
// The second result is false for empty or non-matching input.
func ExtractRecordID(ref string) (string, bool) {
	if ref == "" {
		return "", false
	}
	m := recordIDPattern.FindStringSubmatch(ref)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// RecordURL builds the absolute URL of a record, which is how the hosted
// service expresses references between apps.
func RecordURL(baseURL, appID, recordID string) string {
	return strings.TrimRight(baseURL, "/") + "/apps/" + appID + "/records/" + recordID
}
