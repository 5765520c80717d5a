// Package cloudformation implements the stack engine on AWS
// CloudFormation. Stacks are created and updated through change sets so
// a no-change deploy is detected without mutating anything.
package cloudformation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/launchpath/stagectl/pkg/creds"
	"github.com/launchpath/stagectl/pkg/errors"
	"github.com/launchpath/stagectl/pkg/probe"
	"github.com/launchpath/stagectl/pkg/provider"
	"github.com/launchpath/stagectl/pkg/stack"
)

const (
	defaultPollInterval = 10 * time.Second
	defaultMaxAttempts  = 90
)

func init() {
	stack.Register("cloudformation", func() stack.Engine {
		return &Engine{}
	})
}

// Engine implements stack.Engine on CloudFormation.
type Engine struct{}

func (e *Engine) Name() string {
	return "cloudformation"
}

func (e *Engine) Deploy(ctx context.Context, cred *creds.Context, opts stack.DeployOptions) (*stack.DeployResult, error) {
	client := cloudformation.NewFromConfig(cred.Config())

	exists, err := e.Exists(ctx, cred, opts.StackName)
	if err != nil {
		return nil, err
	}

	changeSetType := cfntypes.ChangeSetTypeCreate
	if exists {
		changeSetType = cfntypes.ChangeSetTypeUpdate
	}

	changeSetName := fmt.Sprintf("stagectl-%s", uuid.NewString())
	_, err = client.CreateChangeSet(ctx, &cloudformation.CreateChangeSetInput{
		StackName:     aws.String(opts.StackName),
		ChangeSetName: aws.String(changeSetName),
		ChangeSetType: changeSetType,
		TemplateBody:  aws.String(opts.TemplateBody),
		Parameters:    toParameters(opts.Parameters),
		Tags:          toTags(opts.Tags),
		Capabilities: []cfntypes.Capability{
			cfntypes.CapabilityCapabilityNamedIam,
		},
	})
	if err != nil {
		return nil, provider.Classify("CreateChangeSet", opts.StackName, err)
	}

	created, err := e.waitForChangeSet(ctx, client, opts.StackName, changeSetName, opts)
	if err != nil {
		return nil, err
	}
	if !created {
		// The change set found nothing to do. Clean it up and report an
		// unchanged stack.
		_, _ = client.DeleteChangeSet(ctx, &cloudformation.DeleteChangeSetInput{
			StackName:     aws.String(opts.StackName),
			ChangeSetName: aws.String(changeSetName),
		})
		outputs, err := e.Outputs(ctx, cred, opts.StackName)
		if err != nil {
			return nil, err
		}
		return &stack.DeployResult{Outputs: outputs, Changed: false}, nil
	}

	log.Debug().
		Str("stack", opts.StackName).
		Str("changeSet", changeSetName).
		Msg("executing change set")

	_, err = client.ExecuteChangeSet(ctx, &cloudformation.ExecuteChangeSetInput{
		StackName:     aws.String(opts.StackName),
		ChangeSetName: aws.String(changeSetName),
	})
	if err != nil {
		return nil, provider.Classify("ExecuteChangeSet", opts.StackName, err)
	}

	if err := e.waitForStack(ctx, client, opts.StackName, deployOK, deployFailed, opts); err != nil {
		return nil, err
	}

	outputs, err := e.Outputs(ctx, cred, opts.StackName)
	if err != nil {
		return nil, err
	}
	return &stack.DeployResult{Outputs: outputs, Changed: true}, nil
}

func (e *Engine) Outputs(ctx context.Context, cred *creds.Context, stackName string) (map[string]string, error) {
	client := cloudformation.NewFromConfig(cred.Config())

	out, err := client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		if isStackMissing(err) {
			return nil, errors.NotFoundError("stack", stackName)
		}
		return nil, provider.Classify("DescribeStacks", stackName, err)
	}
	if len(out.Stacks) == 0 {
		return nil, errors.NotFoundError("stack", stackName)
	}

	outputs := make(map[string]string, len(out.Stacks[0].Outputs))
	for _, o := range out.Stacks[0].Outputs {
		outputs[aws.ToString(o.OutputKey)] = aws.ToString(o.OutputValue)
	}
	return outputs, nil
}

func (e *Engine) Exists(ctx context.Context, cred *creds.Context, stackName string) (bool, error) {
	client := cloudformation.NewFromConfig(cred.Config())

	out, err := client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		if isStackMissing(err) {
			return false, nil
		}
		return false, provider.Classify("DescribeStacks", stackName, err)
	}
	if len(out.Stacks) == 0 {
		return false, nil
	}
	// A stack in REVIEW_IN_PROGRESS has never been executed; treat it as
	// absent so the next deploy issues a CREATE change set.
	return out.Stacks[0].StackStatus != cfntypes.StackStatusReviewInProgress, nil
}

func (e *Engine) Delete(ctx context.Context, cred *creds.Context, stackName string) error {
	client := cloudformation.NewFromConfig(cred.Config())

	exists, err := e.Exists(ctx, cred, stackName)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	_, err = client.DeleteStack(ctx, &cloudformation.DeleteStackInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		return provider.Classify("DeleteStack", stackName, err)
	}

	opts := stack.DeployOptions{StackName: stackName}
	return e.waitForStack(ctx, client, stackName, deleteOK, deleteFailed, opts)
}

var (
	deployOK = []provider.Status{
		provider.Status(cfntypes.StackStatusCreateComplete),
		provider.Status(cfntypes.StackStatusUpdateComplete),
	}
	deployFailed = []provider.Status{
		provider.Status(cfntypes.StackStatusCreateFailed),
		provider.Status(cfntypes.StackStatusRollbackComplete),
		provider.Status(cfntypes.StackStatusRollbackFailed),
		provider.Status(cfntypes.StackStatusUpdateRollbackComplete),
		provider.Status(cfntypes.StackStatusUpdateRollbackFailed),
		provider.Status(cfntypes.StackStatusUpdateFailed),
	}
	deleteOK = []provider.Status{
		provider.Status(cfntypes.StackStatusDeleteComplete),
	}
	deleteFailed = []provider.Status{
		provider.Status(cfntypes.StackStatusDeleteFailed),
	}
)

func (e *Engine) waitForStack(ctx context.Context, client *cloudformation.Client, stackName string, terminalOK, terminalFail []provider.Status, opts stack.DeployOptions) error {
	describe := func(ctx context.Context) (provider.Status, error) {
		out, err := client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
			StackName: aws.String(stackName),
		})
		if err != nil {
			if isStackMissing(err) {
				return provider.Status(cfntypes.StackStatusDeleteComplete), nil
			}
			return "", provider.Classify("DescribeStacks", stackName, err)
		}
		if len(out.Stacks) == 0 {
			return provider.Status(cfntypes.StackStatusDeleteComplete), nil
		}
		return provider.Status(out.Stacks[0].StackStatus), nil
	}

	result, err := probe.WaitFor(ctx, describe, terminalOK, terminalFail, pollOptions(opts))
	if err != nil {
		return err
	}
	if result.Failed {
		reason := e.failureReason(ctx, client, stackName)
		return errors.Fatal(fmt.Sprintf("stack %s reached %s: %s", stackName, result.Status, reason), nil)
	}
	if result.TimedOut {
		return errors.ConvergencePending(fmt.Sprintf("stack %s (last status %s)", stackName, result.Status))
	}
	return nil
}

// waitForChangeSet blocks until the change set is executable. It returns
// false when the change set is empty, which CloudFormation reports as a
// FAILED status with a no-changes reason.
func (e *Engine) waitForChangeSet(ctx context.Context, client *cloudformation.Client, stackName, changeSetName string, opts stack.DeployOptions) (bool, error) {
	var lastReason string
	describe := func(ctx context.Context) (provider.Status, error) {
		out, err := client.DescribeChangeSet(ctx, &cloudformation.DescribeChangeSetInput{
			StackName:     aws.String(stackName),
			ChangeSetName: aws.String(changeSetName),
		})
		if err != nil {
			return "", provider.Classify("DescribeChangeSet", changeSetName, err)
		}
		lastReason = aws.ToString(out.StatusReason)
		return provider.Status(out.Status), nil
	}

	result, err := probe.WaitFor(ctx, describe,
		[]provider.Status{provider.Status(cfntypes.ChangeSetStatusCreateComplete)},
		[]provider.Status{provider.Status(cfntypes.ChangeSetStatusFailed)},
		pollOptions(opts))
	if err != nil {
		return false, err
	}
	if result.Failed {
		if isNoChangesReason(lastReason) {
			return false, nil
		}
		return false, errors.Fatal(fmt.Sprintf("change set for stack %s failed: %s", stackName, lastReason), nil)
	}
	if result.TimedOut {
		return false, errors.ConvergencePending(fmt.Sprintf("change set for stack %s", stackName))
	}
	return true, nil
}

func (e *Engine) failureReason(ctx context.Context, client *cloudformation.Client, stackName string) string {
	out, err := client.DescribeStackEvents(ctx, &cloudformation.DescribeStackEventsInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		return "unable to read stack events"
	}
	for _, event := range out.StackEvents {
		reason := aws.ToString(event.ResourceStatusReason)
		if strings.Contains(string(event.ResourceStatus), "FAILED") && reason != "" {
			return fmt.Sprintf("%s: %s", aws.ToString(event.LogicalResourceId), reason)
		}
	}
	return "no failure reason recorded"
}

func pollOptions(opts stack.DeployOptions) probe.Options {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	return probe.Options{Interval: interval, MaxAttempts: attempts}
}

func toParameters(params map[string]string) []cfntypes.Parameter {
	out := make([]cfntypes.Parameter, 0, len(params))
	for key, value := range params {
		out = append(out, cfntypes.Parameter{
			ParameterKey:   aws.String(key),
			ParameterValue: aws.String(value),
		})
	}
	return out
}

func toTags(tags map[string]string) []cfntypes.Tag {
	out := make([]cfntypes.Tag, 0, len(tags))
	for key, value := range tags {
		out = append(out, cfntypes.Tag{
			Key:   aws.String(key),
			Value: aws.String(value),
		})
	}
	return out
}

func isStackMissing(err error) bool {
	// DescribeStacks reports a missing stack as a ValidationError whose
	// message ends with "does not exist".
	return err != nil && strings.Contains(err.Error(), "does not exist")
}

func isNoChangesReason(reason string) bool {
	lower := strings.ToLower(reason)
	return strings.Contains(lower, "no updates are to be performed") ||
		strings.Contains(lower, "didn't contain changes")
}
