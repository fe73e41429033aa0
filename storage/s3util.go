package storage

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

func normalizeS3Prefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

func applyS3Prefix(prefix, name string) string {
	if prefix == "" {
		return name
	}
	// Ensure there is exactly one slash between prefix and name
	if strings.HasSuffix(prefix, "/") {
		return prefix + name
	}
	return prefix + "/" + name
}

// s3ErrorCode extracts the API error code, or "" for non-API errors
func s3ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func isS3NotFound(err error) bool {
	switch s3ErrorCode(err) {
	case "NoSuchKey", "NotFound", "404":
		return true
	}
	return false
}

// isS3ConditionFailed reports a lost conditional write (If-Match / If-None-Match)
func isS3ConditionFailed(err error) bool {
	switch s3ErrorCode(err) {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	}
	return false
}
