package stages

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/launchpath/stagectl/pkg/artifact"
	"github.com/launchpath/stagectl/pkg/errors"
)

var validate = validator.New()

// AppInputs are the operator-supplied parameters of the app stage. All
// fields are optional; the stack template carries the defaults.
type AppInputs struct {
	IndexDocument    string `json:"indexDocument,omitempty"`
	FunctionMemoryMB int    `json:"functionMemoryMb,omitempty" validate:"omitempty,gte=128,lte=10240"`
}

// EdgeInputs are the operator-supplied parameters of the edge stage.
type EdgeInputs struct {
	// Domain is the public site domain the certificate covers.
	Domain string `json:"domain" validate:"required,fqdn"`

	// HostedZoneID is the target account's hosted zone for the domain.
	HostedZoneID string `json:"hostedZoneId" validate:"required"`
}

// ReleaseInputs are the operator-supplied parameters of the release
// stage.
type ReleaseInputs struct {
	InvalidationPaths []string `json:"invalidationPaths,omitempty" validate:"omitempty,min=1,dive,startswith=/"`
}

// Paths returns the invalidation paths, defaulting to everything.
func (r *ReleaseInputs) Paths() []string {
	if len(r.InvalidationPaths) == 0 {
		return []string{"/*"}
	}
	return r.InvalidationPaths
}

// ValidateInputs checks a stage's inputs document against its typed
// schema. Called once, when the document enters the artifact store.
func ValidateInputs(stageName string, doc artifact.Document) error {
	var err error
	switch stageName {
	case "app":
		err = decodeAndValidate[AppInputs](stageName, doc)
	case "edge":
		err = decodeAndValidate[EdgeInputs](stageName, doc)
	case "release":
		err = decodeAndValidate[ReleaseInputs](stageName, doc)
	default:
		return errors.ValidationError(fmt.Sprintf("no input schema for stage %q", stageName), nil)
	}
	return err
}

func decodeAndValidate[T any](stageName string, doc artifact.Document) error {
	v, err := artifact.DecodeAs[T](doc, stageName+" inputs")
	if err != nil {
		return err
	}
	if err := validate.Struct(v); err != nil {
		return errors.ValidationError(
			fmt.Sprintf("invalid inputs for stage %s: %v", stageName, err),
			map[string]interface{}{"stage": stageName},
		)
	}
	return nil
}

func decodeEdgeInputs(doc artifact.Document) (*EdgeInputs, error) {
	in, err := artifact.DecodeAs[EdgeInputs](doc, "edge inputs")
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("invalid edge inputs: %v", err), nil)
	}
	return in, nil
}

func decodeReleaseInputs(doc artifact.Document) (*ReleaseInputs, error) {
	in, err := artifact.DecodeAs[ReleaseInputs](doc, "release inputs")
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("invalid release inputs: %v", err), nil)
	}
	return in, nil
}

func decodeAppInputs(doc artifact.Document) (*AppInputs, error) {
	in, err := artifact.DecodeAs[AppInputs](doc, "app inputs")
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("invalid app inputs: %v", err), nil)
	}
	return in, nil
}
