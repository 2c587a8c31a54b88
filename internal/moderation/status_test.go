package moderation

import (
	"errors"
	"testing"
)

func TestParseStatus(t *testing.T) {
	testCases := []struct {
		raw     string
		want    Status
		wantErr bool
	}{
		{raw: "pending", want: StatusPending},
		{raw: " Visible ", want: StatusVisible},
		{raw: "HIDDEN", want: StatusHidden},
		{raw: "deleted", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.raw, func(t *testing.T) {
			got, err := ParseStatus(testCase.raw)
			if testCase.wantErr {
				if !errors.Is(err, ErrInvalidStatus) {
					t.Fatalf("expected ErrInvalidStatus, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != testCase.want {
				t.Fatalf("got %q want %q", got, testCase.want)
			}
		})
	}
}

func TestInitialStatus(t *testing.T) {
	if InitialStatus(false) != StatusPending {
		t.Fatalf("default initial status must be pending")
	}
	if InitialStatus(true) != StatusVisible {
		t.Fatalf("auto-visible initial status must be visible")
	}
}

func TestTransitionAllowsEveryPair(t *testing.T) {
	statuses := []Status{StatusPending, StatusVisible, StatusHidden}
	for _, from := range statuses {
		for _, to := range statuses {
			got, err := Transition(from, to)
			if err != nil {
				t.Fatalf("transition %s -> %s failed: %v", from, to, err)
			}
			if got != to {
				t.Fatalf("transition %s -> %s returned %s", from, to, got)
			}
		}
	}
}

func TestTransitionRejectsUnknownTarget(t *testing.T) {
	if _, err := Transition(StatusPending, Status("archived")); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestOnlyVisibleIsPublic(t *testing.T) {
	if !StatusVisible.PubliclyReadable() {
		t.Fatalf("visible must be public")
	}
	if StatusPending.PubliclyReadable() || StatusHidden.PubliclyReadable() {
		t.Fatalf("pending and hidden must not be public")
	}
}

func TestSourcesCoverEveryStatus(t *testing.T) {
	for _, target := range []Status{StatusPending, StatusVisible, StatusHidden} {
		sources, err := Sources(target)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", target, err)
		}
		if len(sources) != 3 {
			t.Fatalf("expected %s to be reachable from every status, got %v", target, sources)
		}
	}
	if _, err := Sources(Status("")); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus for empty target, got %v", err)
	}
}
