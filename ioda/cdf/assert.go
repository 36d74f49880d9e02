package cdf

import "github.com/batchatco/go-thrower"

// Asserts with given error and message
func assertError(condition bool, err error, msg string) {
	if condition {
		return
	}
	failError(err, msg)
}

// Warns if condition isn't met
func warnAssert(condition bool, msg string) {
	if condition {
		return
	}
	logger.Warn(msg)
}

// Panics with specified error and message
func failError(err error, msg string) {
	logger.Error(msg)
	thrower.Throw(err)
	panic("never gets here")
}
