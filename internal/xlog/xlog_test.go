package xlog

import (
	"testing"

	"github.com/pkg/errors"
)

func TestStackReturnsTraceForPkgErrors(t *testing.T) {
	err := errors.New("boom")
	st := Stack(err)
	if st == nil {
		t.Fatal("Stack() = nil for a pkg/errors error")
	}
}

func TestStackReturnsNilForPlainError(t *testing.T) {
	err := errorString("boom")
	if st := Stack(err); st != nil {
		t.Fatalf("Stack() = %v, want nil for a plain error", st)
	}
}

type errorString string

func (e errorString) Error() string { return string(e) }

func TestReportFatalFormatsMessageAndStack(t *testing.T) {
	err := errors.New("boom")
	format, args := ReportFatal(err)
	if format == "" || len(args) != 2 {
		t.Fatalf("ReportFatal() = %q, %v", format, args)
	}
}
