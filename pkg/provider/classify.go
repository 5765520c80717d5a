package provider

import (
	stderrors "errors"
	"strings"

	"github.com/aws/smithy-go"
	"github.com/launchpath/stagectl/pkg/errors"
)

// throttling and timeout API error codes that are safe to retry
var transientCodes = map[string]bool{
	"Throttling":                             true,
	"ThrottlingException":                    true,
	"TooManyRequestsException":               true,
	"RequestLimitExceeded":                   true,
	"RequestTimeout":                         true,
	"ServiceUnavailable":                     true,
	"InternalError":                          true,
	"PriorRequestNotComplete":                true,
	"ProvisionedThroughputExceededException": true,
}

// API error codes meaning a delete was rejected because the resource is
// still referenced somewhere
var inUseCodes = map[string]bool{
	"ResourceInUseException":  true,
	"DistributionNotDisabled": true,
	"DeleteConflict":          true,
	"ResourceConflict":        true,
	"BucketNotEmpty":          true,
}

// Classify maps a raw provider error onto the orchestrator's taxonomy.
// Unrecognized errors classify as fatal.
func Classify(operation, resource string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case transientCodes[code]:
			return errors.TransientProvider(operation, err)
		case inUseCodes[code] || strings.Contains(strings.ToLower(apiErr.ErrorMessage()), "in use"):
			return errors.ResourceStillInUse(resource, err)
		}
	}

	return errors.Fatal(operation+" failed", err)
}

// IsNotFoundCode reports whether an API error indicates a missing resource.
func IsNotFoundCode(err error) bool {
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return strings.Contains(code, "NotFound") || strings.Contains(code, "NoSuch")
	}
	return false
}
