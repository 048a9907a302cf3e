package diag_test

import (
	"errors"
	"testing"

	"github.com/agenthands/trcarch/pkg/compiler/diag"
)

func TestEmptySinkHasNoError(t *testing.T) {
	var s diag.Sink
	if err := s.Err(); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestSinkDump(t *testing.T) {
	var s diag.Sink
	s.Errorf(1, 3, 2, diag.InvalidChar, "a")
	s.Errorf(2, 1, 10, diag.TokenExpected, ";")

	want := "-- line 1 col 3: unexpected character 'a'\n-- line 2 col 1: ; expected"
	if s.String() != want {
		t.Errorf("expected %q, got %q", want, s.String())
	}

	err := s.Err()
	if !errors.Is(err, diag.ErrCompile) {
		t.Fatalf("expected ErrCompile, got %v", err)
	}
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}

	var derr *diag.Error
	if !errors.As(err, &derr) || len(derr.Diagnostics) != 2 {
		t.Errorf("expected 2 diagnostics in error, got %v", derr)
	}
}

func TestListIsACopy(t *testing.T) {
	var s diag.Sink
	s.Errorf(1, 1, 0, diag.Factor)
	l := s.List()
	l[0].Msg = "changed"
	if s.List()[0].Msg != diag.Factor {
		t.Errorf("sink was mutated through List()")
	}
}
