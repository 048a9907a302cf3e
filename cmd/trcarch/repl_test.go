package main

import (
	"errors"
	"testing"

	"github.com/agenthands/trcarch/pkg/compiler/diag"
	"github.com/agenthands/trcarch/pkg/vm"
)

const replScript = `
int base = 40;
int add(int a, int b) { return a + b; }
`

func TestEvalLine(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"add(1, 2)", "3"},
		{"base + 2", "42"},
		{"int x = 6; x * 7", "42"},
		{"-5", "-5"},
		{"strlen(\"four\")", "4"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := evalLine([]byte(replScript), tt.line)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEvalLineErrors(t *testing.T) {
	if _, err := evalLine([]byte(replScript), "nope(1)"); !errors.Is(err, diag.ErrCompile) {
		t.Errorf("unknown function: err = %v", err)
	}
	if _, err := evalLine([]byte(replScript), "base / (base - 40)"); !errors.Is(err, vm.ErrDivisionByZero) {
		t.Errorf("division: err = %v", err)
	}
	if _, err := evalLine([]byte(replScript), "while (1) { }"); !errors.Is(err, vm.ErrGasExhausted) {
		t.Errorf("loop: err = %v", err)
	}
}
