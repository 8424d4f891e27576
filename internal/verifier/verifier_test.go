package verifier

import (
	"testing"

	"github.com/ci-telemetry/snowdoc/internal/logger"
)

func TestVerifyExactMatch(t *testing.T) {
	v := New("job", logger.NewDefault())

	res := v.Verify([]any{1, 2, 3}, []any{1, 2, 3})

	if !res.Match {
		t.Fatalf("expected match, got mismatch: %+v", res)
	}
	if res.ExpectedCount != 3 || res.ActualCount != 3 {
		t.Errorf("unexpected counts: %+v", res)
	}
	if res.Error() != nil {
		t.Errorf("expected nil error for matching result, got %v", res.Error())
	}
}

func TestVerifyMissingDocument(t *testing.T) {
	v := New("job", logger.NewDefault())

	res := v.Verify([]any{1, 2, 3}, []any{1, 3})

	if res.Match {
		t.Fatal("expected mismatch when a fetched id never reached the sink")
	}
	if len(res.MissingIDs) != 1 || res.MissingIDs[0] != 2 {
		t.Errorf("expected missing id [2], got %v", res.MissingIDs)
	}
	if res.Error() == nil {
		t.Error("expected non-nil error for mismatched result")
	}
}

func TestVerifyEmptyBatch(t *testing.T) {
	v := New("job", logger.NewDefault())

	res := v.Verify(nil, nil)

	if !res.Match {
		t.Errorf("expected match for an empty batch, got %+v", res)
	}
	if res.ExpectedCount != 0 || res.ActualCount != 0 {
		t.Errorf("expected zero counts, got %+v", res)
	}
}

func TestVerifyIgnoresExtraEmittedIDs(t *testing.T) {
	// emittedIDs is driven by what the reconstructor closed, which should
	// never exceed fetchedIDs in practice, but Verify should not flag it
	// as a failure either way — missing ids are the only failure mode.
	v := New("job", logger.NewDefault())

	res := v.Verify([]any{1, 2}, []any{1, 2, 3})

	if !res.Match {
		t.Errorf("extra emitted ids should not cause mismatch: %+v", res)
	}
}

func TestResultErrorMessage(t *testing.T) {
	res := Result{
		RootTable:     "job",
		ExpectedCount: 2,
		ActualCount:   1,
		MissingIDs:    []any{42},
		Match:         false,
	}

	err := res.Error()
	if err == nil {
		t.Fatal("expected error")
	}
	want := "verification failed for job: expected 2 documents, got 1 (missing ids: [42])"
	if err.Error() != want {
		t.Errorf("unexpected error message: got %q want %q", err.Error(), want)
	}
}
