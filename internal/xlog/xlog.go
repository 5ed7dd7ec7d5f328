// Package xlog adds a couple of small helpers around
// github.com/golang/glog for reporting github.com/pkg/errors errors
// with their stack trace, matching the %+v-style unwrapping every
// cmd/ entry point in the teacher's own main.go uses.
package xlog

import "github.com/pkg/errors"

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Stack extracts the stack trace carried by err, if any was attached
// via pkg/errors (errors.New, errors.Wrap, errors.WithStack). Returns
// nil if err does not carry one.
func Stack(err error) errors.StackTrace {
	if e, ok := err.(stackTracer); ok {
		return e.StackTrace()
	}
	return nil
}

// ReportFatal formats err and its stack trace the way the teacher's
// cmd/dnsproxy/main.go reports a fatal startup error: message followed
// by the stack (one frame per line), as a single format/args pair
// suitable for glog.Errorf/Warningf.
func ReportFatal(err error) (format string, args []interface{}) {
	return "%s%+v\n", []interface{}{err, Stack(err)}
}
