// Package providertest provides an in-memory Provisioning API for tests.
package providertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/launchpath/stagectl/pkg/creds"
	"github.com/launchpath/stagectl/pkg/provider"
)

// Fake implements provider.API in memory. Tests seed it with resources,
// script per-resource status sequences, and inject failures per
// operation. Every call is appended to Calls so tests can assert call
// ordering and idempotence (zero mutating calls on a re-run).
type Fake struct {
	mu sync.Mutex

	resources map[string]*provider.Resource
	statusSeq map[string][]provider.Status
	seqIdx    map[string]int
	failures  map[string][]error

	// Calls is the ordered log of operations, formatted "Op kind id".
	Calls []string

	// MutatingCalls counts Create, Update, and Delete invocations.
	MutatingCalls int

	nextID int
}

// NewFake creates an empty fake provider.
func NewFake() *Fake {
	return &Fake{
		resources: make(map[string]*provider.Resource),
		statusSeq: make(map[string][]provider.Status),
		seqIdx:    make(map[string]int),
		failures:  make(map[string][]error),
	}
}

func resourceKey(kind provider.Kind, id string) string {
	return string(kind) + "/" + id
}

// Seed inserts a resource as pre-existing external state.
func (f *Fake) Seed(res provider.Resource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := res
	f.resources[resourceKey(res.Kind, res.ID)] = &copied
}

// ScriptStatuses sets the statuses successive Describe calls observe for
// a resource; the final status repeats once the sequence is exhausted.
func (f *Fake) ScriptStatuses(kind provider.Kind, id string, statuses ...provider.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusSeq[resourceKey(kind, id)] = statuses
}

// FailNext makes the named operation ("Create", "Update", "Delete",
// "Describe", "List") on the resource fail with err the next len(errs)
// times it is called.
func (f *Fake) FailNext(op string, kind provider.Kind, id string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := op + " " + resourceKey(kind, id)
	f.failures[k] = append(f.failures[k], errs...)
}

// Get returns a copy of the stored resource, if present.
func (f *Fake) Get(kind provider.Kind, id string) (provider.Resource, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.resources[resourceKey(kind, id)]
	if !ok {
		return provider.Resource{}, false
	}
	return *res, true
}

func (f *Fake) log(op string, kind provider.Kind, id string) {
	f.Calls = append(f.Calls, fmt.Sprintf("%s %s %s", op, kind, id))
}

func (f *Fake) takeFailure(op string, kind provider.Kind, id string) error {
	k := op + " " + resourceKey(kind, id)
	errs := f.failures[k]
	if len(errs) == 0 {
		return nil
	}
	f.failures[k] = errs[1:]
	return errs[0]
}

func (f *Fake) Create(ctx context.Context, cred *creds.Context, req provider.CreateRequest) (*provider.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := fmt.Sprintf("%s-%d", req.Kind, f.nextID)
	switch req.Kind {
	case provider.KindCertificate:
		id = fmt.Sprintf("arn:aws:acm:us-east-1:000000000000:certificate/%04d", f.nextID)
	case provider.KindRecordSet:
		id = req.Name
	}

	f.MutatingCalls++
	f.log("Create", req.Kind, id)

	if err := f.takeFailure("Create", req.Kind, id); err != nil {
		return nil, err
	}

	res := &provider.Resource{
		Handle: provider.Handle{
			Kind: req.Kind,
			ID:   id,
			Name: req.Name,
		},
		Status:     initialStatus(req.Kind),
		Attributes: copyMap(req.Attributes),
	}

	if req.Kind == provider.KindCertificate {
		domain := req.Attributes[provider.AttrDomainName]
		res.ValidationRecords = []provider.ValidationRecord{
			{
				Name:  "_validation." + domain,
				Type:  "CNAME",
				Value: "_validation-value.acm-validations.example",
			},
		}
	}

	f.resources[resourceKey(req.Kind, id)] = res
	copied := *res
	return &copied, nil
}

func (f *Fake) Describe(ctx context.Context, cred *creds.Context, h provider.Handle) (*provider.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.log("Describe", h.Kind, h.ID)

	if err := f.takeFailure("Describe", h.Kind, h.ID); err != nil {
		return nil, err
	}

	k := resourceKey(h.Kind, h.ID)
	res, ok := f.resources[k]
	if !ok {
		return &provider.Resource{Handle: h, Status: provider.StatusDeleted}, nil
	}

	copied := *res
	if seq := f.statusSeq[k]; len(seq) > 0 {
		idx := f.seqIdx[k]
		if idx >= len(seq) {
			idx = len(seq) - 1
		} else {
			f.seqIdx[k] = idx + 1
		}
		copied.Status = seq[idx]
		res.Status = seq[idx]
	}
	return &copied, nil
}

func (f *Fake) Update(ctx context.Context, cred *creds.Context, h provider.Handle, changes map[string]string) (*provider.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.MutatingCalls++
	f.log("Update", h.Kind, h.ID)

	if err := f.takeFailure("Update", h.Kind, h.ID); err != nil {
		return nil, err
	}

	res, ok := f.resources[resourceKey(h.Kind, h.ID)]
	if !ok {
		return nil, fmt.Errorf("update of unknown resource %s/%s", h.Kind, h.ID)
	}

	if res.Attributes == nil {
		res.Attributes = make(map[string]string)
	}
	for k, v := range changes {
		res.Attributes[k] = v
	}
	if h.Kind == provider.KindDistribution {
		res.Status = provider.DistributionInProgress
	}

	copied := *res
	return &copied, nil
}

func (f *Fake) Delete(ctx context.Context, cred *creds.Context, h provider.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.MutatingCalls++
	f.log("Delete", h.Kind, h.ID)

	if err := f.takeFailure("Delete", h.Kind, h.ID); err != nil {
		return err
	}

	delete(f.resources, resourceKey(h.Kind, h.ID))
	return nil
}

func (f *Fake) List(ctx context.Context, cred *creds.Context, kind provider.Kind, namePrefix string) ([]provider.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.log("List", kind, namePrefix)

	if err := f.takeFailure("List", kind, namePrefix); err != nil {
		return nil, err
	}

	var out []provider.Resource
	for _, res := range f.resources {
		if res.Kind == kind && strings.Contains(res.Name, namePrefix) {
			out = append(out, *res)
		}
	}
	return out, nil
}

func initialStatus(kind provider.Kind) provider.Status {
	switch kind {
	case provider.KindCertificate:
		return provider.CertificatePendingValidation
	case provider.KindInvalidation:
		return provider.InvalidationInProgress
	case provider.KindDistribution:
		return provider.DistributionInProgress
	default:
		return provider.StatusActive
	}
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var _ provider.API = (*Fake)(nil)
