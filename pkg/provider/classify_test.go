package provider

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/launchpath/stagectl/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func apiError(code, message string) error {
	return &smithy.GenericAPIError{Code: code, Message: message}
}

func TestClassifyNil(t *testing.T) {
	assert.NoError(t, Classify("DeleteCertificate", "certificate", nil))
}

func TestClassifyTransient(t *testing.T) {
	for _, code := range []string{"Throttling", "TooManyRequestsException", "RequestTimeout"} {
		err := Classify("RequestCertificate", "certificate", apiError(code, "slow down"))
		assert.Equal(t, errors.ErrCodeTransientProvider, errors.CodeOf(err), "code %s", code)
	}
}

func TestClassifyStillInUse(t *testing.T) {
	err := Classify("DeleteCertificate", "certificate arn:abc", apiError("ResourceInUseException", "certificate is attached"))
	assert.Equal(t, errors.ErrCodeResourceStillInUse, errors.CodeOf(err))

	// Message-based detection for services that use generic codes.
	err = Classify("DeleteRole", "role", apiError("Conflict", "role is in use by a function"))
	assert.Equal(t, errors.ErrCodeResourceStillInUse, errors.CodeOf(err))
}

func TestClassifyWrappedAPIError(t *testing.T) {
	wrapped := fmt.Errorf("operation failed: %w", apiError("ThrottlingException", ""))
	err := Classify("UpdateDistribution", "distribution", wrapped)
	assert.Equal(t, errors.ErrCodeTransientProvider, errors.CodeOf(err))
}

func TestClassifyUnknownIsFatal(t *testing.T) {
	err := Classify("CreateFunction", "function", stderrors.New("wire cut"))
	assert.Equal(t, errors.ErrCodeFatal, errors.CodeOf(err))

	err = Classify("CreateFunction", "function", apiError("AccessDenied", "nope"))
	assert.Equal(t, errors.ErrCodeFatal, errors.CodeOf(err))
}

func TestIsNotFoundCode(t *testing.T) {
	assert.True(t, IsNotFoundCode(apiError("ResourceNotFoundException", "")))
	assert.True(t, IsNotFoundCode(apiError("NoSuchDistribution", "")))
	assert.False(t, IsNotFoundCode(apiError("AccessDenied", "")))
	assert.False(t, IsNotFoundCode(stderrors.New("plain")))
}
