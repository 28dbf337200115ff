// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

package upstream

import (
	"context"
)

// Governor gates calls against a rolling daily quota.
type Governor interface {
	CanProceed(n int) error
	Record(n int)
}

// GovernedCaller enforces the daily quota in front of another Caller.
// A denied call fails fast with a rate-limited error before any network
// traffic; successful admission is recorded whether or not the call itself
// succeeds, since the vendor counts every request.
type GovernedCaller struct {
	caller   Caller
	governor Governor
}

func NewGovernedCaller(caller Caller, governor Governor) *GovernedCaller {
	return &GovernedCaller{caller: caller, governor: governor}
}

func (g *GovernedCaller) Call(ctx context.Context, method, path string, body interface{}, opts *CallOptions) ([]byte, error) {
	if err := g.governor.CanProceed(1); err != nil {
		return nil, &Error{
			Kind:    KindRateLimited,
			Message: "daily quota exhausted: " + err.Error(),
		}
	}
	g.governor.Record(1)
	return g.caller.Call(ctx, method, path, body, opts)
}
