// Package metrics holds the standard metric emitters for session, gateway and notification events.
package metrics

import (
	"maps"
	"strconv"
	"time"

	obserrors "github.com/instantmart/admin-console/internal/observability/errors"
	"github.com/instantmart/admin-console/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultShared  = "shared"
)

// RefreshMetric describes one token refresh attempt.
type RefreshMetric struct {
	Result   string
	Waiters  int
	Duration time.Duration
	Err      error
}

// EmitRefresh records a refresh outcome. Only the leader of a single flight emits.
func EmitRefresh(sink statsd.Sink, in RefreshMetric) {
	if sink == nil {
		return
	}
	tags := withErrorClass(map[string]string{"result": in.Result}, in.Result, in.Err)
	sink.Count("auth.refresh", 1, tags)
	if in.Waiters > 0 {
		sink.Gauge("auth.refresh.waiters", float64(in.Waiters), maps.Clone(tags))
	}
	if in.Duration > 0 {
		sink.Timing("auth.refresh.duration", in.Duration, maps.Clone(tags))
	}
}

// RequestMetric describes one gateway call.
type RequestMetric struct {
	Method   string
	Status   int
	Retried  bool
	Duration time.Duration
	Err      error
}

// EmitRequest records a gateway call.
func EmitRequest(sink statsd.Sink, in RequestMetric) {
	if sink == nil {
		return
	}
	result := ResultSuccess
	if in.Err != nil {
		result = ResultError
	}
	tags := withErrorClass(map[string]string{
		"method":  in.Method,
		"status":  strconv.Itoa(in.Status),
		"retried": strconv.FormatBool(in.Retried),
		"result":  result,
	}, result, in.Err)
	sink.Count("gateway.request", 1, tags)
	if in.Duration > 0 {
		sink.Timing("gateway.request.duration", in.Duration, maps.Clone(tags))
	}
}

// NotificationMetric describes a notification cache event such as push, mark_read or delete.
type NotificationMetric struct {
	Event  string
	Result string
	Unread int
	Err    error
}

// EmitNotification records a notification event and the current unread gauge.
func EmitNotification(sink statsd.Sink, in NotificationMetric) {
	if sink == nil {
		return
	}
	tags := withErrorClass(map[string]string{"event": in.Event, "result": in.Result}, in.Result, in.Err)
	sink.Count("notifications.event", 1, tags)
	sink.Gauge("notifications.unread", float64(in.Unread), nil)
}

func withErrorClass(tags map[string]string, result string, err error) map[string]string {
	if err != nil && result == ResultError {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}
	return tags
}
