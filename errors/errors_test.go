package errors

import (
	stdlib "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestCause(t *testing.T) {
	std := stdlib.New("this is a stdlib error")

	cases := map[string]struct {
		err  error
		root error
	}{
		"Errors are self-causing": {
			err:  ErrNotFound,
			root: ErrNotFound,
		},
		"Wrap reveals root cause": {
			err:  Wrap(ErrNotFound, "foo"),
			root: ErrNotFound,
		},
		"Cause works for stderr as root": {
			err:  Wrap(std, "Some helpful text"),
			root: std,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			if got := errors.Cause(tc.err); got != tc.root {
				t.Fatal("unexpected result")
			}
		})
	}
}

func TestErrorIs(t *testing.T) {
	cases := map[string]struct {
		a      *Error
		b      error
		wantIs bool
	}{
		"instance of the same error": {
			a:      ErrNotFound,
			b:      ErrNotFound,
			wantIs: true,
		},
		"two different coded errors": {
			a:      ErrNotFound,
			b:      ErrModel,
			wantIs: false,
		},
		"successful comparison to a wrapped error": {
			a:      ErrNotFound,
			b:      errors.Wrap(ErrNotFound, "gone"),
			wantIs: true,
		},
		"unsuccessful comparison to a wrapped error": {
			a:      ErrNotFound,
			b:      errors.Wrap(ErrState, "gone"),
			wantIs: false,
		},
		"field error unwraps": {
			a:      ErrInput,
			b:      Field("Amount", ErrInput, "must be positive"),
			wantIs: true,
		},
		"not equal to stdlib error": {
			a:      ErrNotFound,
			b:      fmt.Errorf("stdlib error"),
			wantIs: false,
		},
		"nil is nil": {
			a:      nil,
			b:      nil,
			wantIs: true,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			if got := tc.a.Is(tc.b); got != tc.wantIs {
				t.Fatalf("unexpected result - got:%v want: %v", got, tc.wantIs)
			}
		})
	}
}

func TestStdlibInterop(t *testing.T) {
	err := Wrap(ErrExpired, "too late")
	if !stdlib.Is(err, ErrExpired) {
		t.Fatal("stdlib errors.Is must unwrap the chain")
	}
}

func TestInfo(t *testing.T) {
	cases := map[string]struct {
		err      error
		debug    bool
		wantCode uint32
		wantLog  string
	}{
		"nil error": {
			err:      nil,
			wantCode: SuccessCode,
			wantLog:  "",
		},
		"registered error": {
			err:      ErrNotFound,
			wantCode: ErrNotFound.code,
			wantLog:  "not found",
		},
		"wrapped registered error": {
			err:      Wrap(Wrap(ErrNotFound, "foo"), "bar"),
			wantCode: ErrNotFound.code,
			wantLog:  "bar: foo: not found",
		},
		"stdlib is redacted": {
			err:      fmt.Errorf("cannot connect"),
			wantCode: internalCode,
			wantLog:  internalLog,
		},
		"stdlib in debug mode": {
			err:      fmt.Errorf("cannot connect"),
			debug:    true,
			wantCode: internalCode,
			wantLog:  "cannot connect",
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			code, log := Info(tc.err, tc.debug)
			if code != tc.wantCode {
				t.Errorf("want %d code, got %d", tc.wantCode, code)
			}
			if log != tc.wantLog {
				t.Errorf("want %q log, got %q", tc.wantLog, log)
			}
		})
	}
}

func TestHasCode(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"nil":                {err: nil, want: false},
		"registered":         {err: ErrInput, want: true},
		"wrapped registered": {err: Wrap(ErrOverflow, "sum"), want: true},
		"stdlib":             {err: fmt.Errorf("eof"), want: false},
		"wrapped stdlib":     {err: Wrap(fmt.Errorf("eof"), "read"), want: false},
		"pkg errors on top":  {err: errors.Wrap(ErrEmpty, "name"), want: true},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			if got := HasCode(tc.err); got != tc.want {
				t.Errorf("want %v, got %v", tc.want, got)
			}
		})
	}
}

func TestRedact(t *testing.T) {
	if err := Redact(ErrPanic, false); ErrPanic.Is(err) {
		t.Error("reduct must not pass through panic error")
	}
	if err := Redact(ErrPanic, true); !ErrPanic.Is(err) {
		t.Error("reduct should pass through panic error in debug mode")
	}
	if err := Redact(ErrUnauthorized, false); !ErrUnauthorized.Is(err) {
		t.Error("registered error must not be redacted")
	}
}

func TestRecover(t *testing.T) {
	run := func() (err error) {
		defer Recover(&err)
		panic("boom")
	}
	err := run()
	if !ErrPanic.Is(err) {
		t.Fatalf("want panic error, got %v", err)
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("duplicate code must panic")
		}
	}()
	Register(ErrNotFound.code, "again")
}

func TestStackTraceIsAttachedOnce(t *testing.T) {
	err := Wrap(Wrap(ErrEmpty, "inner"), "outer")
	if stackTrace(err) == nil {
		t.Fatal("no stack trace")
	}
	full := fmt.Sprintf("%+v", err)
	if !strings.Contains(full, "errors_test.go") {
		t.Fatalf("stack trace does not point to the creation place: %s", full)
	}
}

func TestFieldName(t *testing.T) {
	err := Wrap(Field("Targets.1.Amount", ErrInvalidAmount, "zero"), "validate")
	if got := FieldName(err); got != "Targets.1.Amount" {
		t.Fatalf("unexpected field name %q", got)
	}
	if got := FieldName(ErrInput); got != "" {
		t.Fatalf("unexpected field name %q", got)
	}
}
