// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

package upstream

import (
	"context"
	"errors"
	"testing"
)

type recordingCaller struct {
	calls int
	err   error
}

func (c *recordingCaller) Call(ctx context.Context, method, path string, body interface{}, opts *CallOptions) ([]byte, error) {
	c.calls++
	return []byte(`{}`), c.err
}

type fakeGovernor struct {
	denyErr  error
	recorded int
}

func (g *fakeGovernor) CanProceed(n int) error { return g.denyErr }
func (g *fakeGovernor) Record(n int)           { g.recorded += n }

func TestGovernedCallerAdmits(t *testing.T) {
	inner := &recordingCaller{}
	gov := &fakeGovernor{}
	gc := NewGovernedCaller(inner, gov)

	if _, err := gc.Call(context.Background(), "GET", "/company", nil, nil); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
	if gov.recorded != 1 {
		t.Errorf("recorded = %d, want 1", gov.recorded)
	}
}

func TestGovernedCallerDeniesBeforeNetwork(t *testing.T) {
	inner := &recordingCaller{}
	gov := &fakeGovernor{denyErr: errors.New("quota used 20000 of 20000")}
	gc := NewGovernedCaller(inner, gov)

	_, err := gc.Call(context.Background(), "GET", "/company", nil, nil)
	if err == nil {
		t.Fatal("Call() error = nil, want rate-limited")
	}
	kind, ok := ErrorKind(err)
	if !ok || kind != KindRateLimited {
		t.Errorf("ErrorKind(err) = %q, %t, want %q", kind, ok, KindRateLimited)
	}
	if inner.calls != 0 {
		t.Errorf("inner calls = %d, want 0 on denial", inner.calls)
	}
	if gov.recorded != 0 {
		t.Errorf("recorded = %d, want 0 on denial", gov.recorded)
	}
}

// A failed upstream call still consumes quota because the vendor counts
// every request it receives, not only successful ones.
func TestGovernedCallerRecordsFailedCalls(t *testing.T) {
	inner := &recordingCaller{err: &Error{Kind: KindServerError, Message: "boom"}}
	gov := &fakeGovernor{}
	gc := NewGovernedCaller(inner, gov)

	if _, err := gc.Call(context.Background(), "GET", "/jobs", nil, nil); err == nil {
		t.Fatal("Call() error = nil, want server error")
	}
	if gov.recorded != 1 {
		t.Errorf("recorded = %d, want 1", gov.recorded)
	}
}
