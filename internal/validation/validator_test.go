// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

package validation

import (
	"strings"
	"testing"
)

type sampleRequest struct {
	UUID   string  `validate:"required,uuid"`
	Email  string  `validate:"omitempty,email"`
	Status string  `validate:"required,oneof=pending confirmed failed"`
	Total  float64 `validate:"gte=0"`
}

func TestValidateStructPasses(t *testing.T) {
	req := sampleRequest{
		UUID:   "0b2e9c2e-1a7f-4c3d-9e8b-6f5a4d3c2b1a",
		Email:  "user@example.com",
		Status: "pending",
		Total:  100,
	}

	if err := ValidateStruct(&req); err != nil {
		t.Errorf("expected nil, got: %v", err)
	}
}

func TestValidateStructCollectsAllErrors(t *testing.T) {
	req := sampleRequest{
		UUID:   "nope",
		Email:  "not-an-email",
		Status: "bogus",
		Total:  -1,
	}

	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if got := len(err.Errors()); got != 4 {
		t.Errorf("error count = %d, want 4: %v", got, err)
	}
}

func TestErrorMessagesAreReadable(t *testing.T) {
	tests := []struct {
		name string
		req  sampleRequest
		want string
	}{
		{
			name: "missing required",
			req:  sampleRequest{UUID: "", Status: "pending"},
			want: "UUID is required",
		},
		{
			name: "bad enum",
			req: sampleRequest{
				UUID:   "0b2e9c2e-1a7f-4c3d-9e8b-6f5a4d3c2b1a",
				Status: "other",
			},
			want: "Status must be one of: pending confirmed failed",
		},
		{
			name: "negative total",
			req: sampleRequest{
				UUID:   "0b2e9c2e-1a7f-4c3d-9e8b-6f5a4d3c2b1a",
				Status: "pending",
				Total:  -5,
			},
			want: "Total must be greater than or equal to 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestDetailsSingleVsMultiple(t *testing.T) {
	single := ValidateStruct(&sampleRequest{
		UUID:   "0b2e9c2e-1a7f-4c3d-9e8b-6f5a4d3c2b1a",
		Status: "",
	})
	if single == nil {
		t.Fatal("expected error")
	}
	if _, ok := single.Details()["field"]; !ok {
		t.Error("single failure should expose a flat field detail")
	}

	multiple := ValidateStruct(&sampleRequest{UUID: "", Status: ""})
	if multiple == nil {
		t.Fatal("expected error")
	}
	if _, ok := multiple.Details()["fields"]; !ok {
		t.Error("multiple failures should expose a fields list")
	}
}
