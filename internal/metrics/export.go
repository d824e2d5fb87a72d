package metrics

import "time"

// Package-level helpers record into the process-wide manager.

// MetricInc bumps a counter.
func MetricInc(topic, function string) {
	GetInstance().AddCounter(topic, function, 1)
}

// MetricSuccess records a successful call.
func MetricSuccess(topic, function string) {
	GetInstance().RecordSuccess(topic, function)
}

// MetricFail records a failed call with a short reason.
func MetricFail(topic, function, reason string) {
	GetInstance().RecordFailure(topic, function, reason)
}

// MetricTimer starts a timing; call the result when the work ends.
func MetricTimer(topic, function string) func() {
	start := time.Now()
	return func() {
		GetInstance().RecordDuration(topic, function, time.Since(start))
	}
}
