package domain

import "testing"

func TestIdempotencyStatus(t *testing.T) {
	tests := []struct {
		name         string
		status       IdempotencyStatus
		wantValid    bool
		wantFinished bool
	}{
		{name: "processing", status: IdempotencyStatusProcessing, wantValid: true},
		{name: "done", status: IdempotencyStatusDone, wantValid: true, wantFinished: true},
		{name: "failed", status: IdempotencyStatusFailed, wantValid: true, wantFinished: true},
		{name: "invalid", status: IdempotencyStatus("broken")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.status.Valid(); got != tc.wantValid {
				t.Fatalf("status %q valid=%v, want %v", tc.status, got, tc.wantValid)
			}
			if got := tc.status.Finished(); got != tc.wantFinished {
				t.Fatalf("status %q finished=%v, want %v", tc.status, got, tc.wantFinished)
			}
		})
	}
}
