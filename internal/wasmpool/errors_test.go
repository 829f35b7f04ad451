package wasmpool

import (
	"errors"
	"testing"

	"github.com/foofork/riptide/pkg/pipeerr"
)

func TestClassify_EpochTimeoutMapsToPipeerrTimeout(t *testing.T) {
	e := classify(ClassEpochTimeout, errors.New("deadline"))
	if e.Kind != pipeerr.Timeout {
		t.Fatalf("expected pipeerr.Timeout, got %v", e.Kind)
	}
}

func TestClassify_OOMMapsToResourceExhausted(t *testing.T) {
	e := classify(ClassOOM, errors.New("oom"))
	if e.Kind != pipeerr.ResourceExhausted {
		t.Fatalf("expected pipeerr.ResourceExhausted, got %v", e.Kind)
	}
}

func TestClassify_ParseErrorAndPanicMapToExtractionFailed(t *testing.T) {
	for _, c := range []FailureClass{ClassParseError, ClassPanic, ClassUnknown} {
		e := classify(c, errors.New("boom"))
		if e.Kind != pipeerr.ExtractionFailed {
			t.Fatalf("class %v: expected pipeerr.ExtractionFailed, got %v", c, e.Kind)
		}
	}
}

func TestFailureClass_String(t *testing.T) {
	if ClassOOM.String() != "oom" {
		t.Fatalf("expected %q, got %q", "oom", ClassOOM.String())
	}
}
