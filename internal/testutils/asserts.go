package testutils

import (
	"fmt"
	"reflect"
	"testing"
)

// AssertEqual reports a test error when got and want differ. A leading
// format string in msgAndArgs is prepended to the failure.
func AssertEqual(t *testing.T, got, want interface{}, msgAndArgs ...interface{}) {
	t.Helper()

	if !reflect.DeepEqual(got, want) {
		t.Error(message(msgAndArgs) + formatUnequalValues(got, want))
	}
}

// AssertTrue reports a test error when condition is false.
func AssertTrue(t *testing.T, condition bool, msgAndArgs ...interface{}) {
	t.Helper()

	if !condition {
		t.Error(message(msgAndArgs) + "\nexpected: true")
	}
}

func message(msgAndArgs []interface{}) string {
	if len(msgAndArgs) == 0 {
		return ""
	}
	format, ok := msgAndArgs[0].(string)
	if !ok {
		return ""
	}
	return fmt.Sprintf(format, msgAndArgs[1:]...)
}

func formatUnequalValues(got, want interface{}) string {
	if reflect.TypeOf(got) != reflect.TypeOf(want) {
		return fmt.Sprintf("\ngot: %T(%#v)\nwant: %T(%#v)", got, got, want, want)
	}
	return fmt.Sprintf("\ngot: %#v\nwant: %#v", got, want)
}
