// Package client implements the client-side half of lease acquisition,
// driver stub tree construction, and generic stub dispatch, grounded on the
// original Python client/core.py and client/lease.py, generalized to Go's
// explicit result types and errgroup-based concurrency the way the
// teacher's pkg/router uses errgroup for its own relay loop.
package client

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jumpstarter-dev/jumpstarter/pkg/backoff"
	"github.com/jumpstarter-dev/jumpstarter/pkg/meta"
	jumpstarterv1 "github.com/jumpstarter-dev/jumpstarter/pkg/wire/jumpstarterv1"
)

// Options configures a single lease acquisition.
type Options struct {
	Selector           meta.Filter
	Duration           time.Duration
	Name               string
	AcquisitionTimeout time.Duration
	PollInterval       time.Duration
}

// Lease is the result of a successful acquisition: its name and the
// exporter uuid the controller bound it to.
type Lease struct {
	Name         string
	ExporterUUID string
}

// leaseOutcome is an explicit result-type sum in place of the original's
// exception-driven GetLease poll loop.
type leaseOutcome int

const (
	outcomeRetry leaseOutcome = iota
	outcomeReady
	outcomeUnsatisfiable
	outcomeInvalid
	outcomeReleased
	outcomeProtocolViolation
)

func classify(resp *jumpstarterv1.GetLeaseResponse) (leaseOutcome, string) {
	for _, c := range resp.Conditions {
		if c.Status != "True" {
			continue
		}
		switch c.Type {
		case "Ready":
			return outcomeReady, c.Message
		case "Unsatisfiable":
			return outcomeUnsatisfiable, c.Message
		case "Invalid":
			return outcomeInvalid, c.Message
		}
	}
	for _, c := range resp.Conditions {
		if c.Type == "Ready" && c.Status == "False" {
			return outcomeReleased, "lease released"
		}
	}
	// Pending=False with nothing else terminal means the controller answered
	// without ever asserting Ready/Unsatisfiable/Invalid/Pending=True — there
	// is nothing left to wait on, so this is a protocol violation rather
	// than a reason to keep polling.
	for _, c := range resp.Conditions {
		if c.Type == "Pending" && c.Status == "False" {
			return outcomeProtocolViolation, c.Message
		}
	}
	return outcomeRetry, ""
}

// LeaseError is a terminal lease-acquisition failure (Unsatisfiable,
// Invalid, Released, or a protocol violation) as opposed to a Retry.
type LeaseError struct {
	Message string
}

func (e *LeaseError) Error() string { return e.Message }

const (
	defaultPollInterval       = 5 * time.Second
	defaultAcquisitionTimeout = 7200 * time.Second
)

// AcquireLease runs the four-step acquisition algorithm: reuse-by-name
// (with a selector-mismatch warning), CreateLease, then poll GetLease every
// PollInterval until a terminal condition or the AcquisitionTimeout elapses.
// Transport errors on GetLease are retried indefinitely with exponential
// jitter backoff (the outer timeout still bounds total acquisition time).
func AcquireLease(ctx context.Context, ctrl jumpstarterv1.ControllerServiceClient, opts Options) (*Lease, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.AcquisitionTimeout <= 0 {
		opts.AcquisitionTimeout = defaultAcquisitionTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, opts.AcquisitionTimeout)
	defer cancel()

	name := opts.Name
	if name != "" {
		existing, err := ctrl.GetLease(ctx, &jumpstarterv1.GetLeaseRequest{Name: name})
		if err != nil {
			return nil, fmt.Errorf("client: fetching existing lease %q: %w", name, err)
		}
		if existing.Selector.MatchLabels == nil || !sameSelector(existing.Selector, opts.Selector) {
			log.Printf("client: existing lease %q has a different selector, creating a new lease", name)
			name = ""
		}
	}

	if name == "" {
		resp, err := ctrl.CreateLease(ctx, &jumpstarterv1.CreateLeaseRequest{
			Selector:        jumpstarterv1.LabelSelector{MatchLabels: opts.Selector.Labels},
			DurationSeconds: int64(opts.Duration.Seconds()),
		})
		if err != nil {
			return nil, fmt.Errorf("client: creating lease: %w", err)
		}
		name = resp.Name
	}

	retry := backoff.Jittered{Initial: 1 * time.Second, Max: 120 * time.Second}
	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		resp, err := ctrl.GetLease(ctx, &jumpstarterv1.GetLeaseRequest{Name: name})
		if err != nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retry.Next()):
			}
			continue
		}
		retry.Reset()

		outcome, msg := classify(resp)
		switch outcome {
		case outcomeReady:
			return &Lease{Name: name, ExporterUUID: resp.ExporterUUID}, nil
		case outcomeUnsatisfiable:
			return nil, &LeaseError{Message: "the lease cannot be satisfied: " + msg}
		case outcomeInvalid:
			return nil, &LeaseError{Message: "the lease is invalid: " + msg}
		case outcomeReleased:
			return nil, &LeaseError{Message: msg}
		case outcomeProtocolViolation:
			return nil, &LeaseError{Message: "lease response carries no terminal condition: " + msg}
		case outcomeRetry:
			// keep polling
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func sameSelector(a jumpstarterv1.LabelSelector, b meta.Filter) bool {
	if len(a.MatchLabels) != len(b.Labels) {
		return false
	}
	for k, v := range a.MatchLabels {
		if b.Labels[k] != v {
			return false
		}
	}
	return true
}

// Release deletes the lease within a 30 s shielded window so a cancelled
// caller context doesn't abort the DeleteLease call itself.
func Release(ctx context.Context, ctrl jumpstarterv1.ControllerServiceClient, name string) error {
	shieldCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = ctx
	_, err := ctrl.DeleteLease(shieldCtx, &jumpstarterv1.DeleteLeaseRequest{Name: name})
	return err
}
