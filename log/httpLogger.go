package log

import (
	"github.com/golang/glog"
	"github.com/hashicorp/go-retryablehttp"
)

var _ retryablehttp.LeveledLogger = retryableHTTPLogger{}

// retryableHTTPLogger feeds retryablehttp's own internal retry/backoff
// tracing through the module's leveled logger. upload/hosts.newClient is
// its only caller, so every line it emits is scoped to an outbound request
// against one of the nine upload hosts.
type retryableHTTPLogger struct {
}

func NewRetryableHTTPLogger() retryablehttp.LeveledLogger {
	return retryableHTTPLogger{}
}

func (r retryableHTTPLogger) Error(msg string, keysAndValues ...interface{}) {
	if glog.V(3) {
		LogNoRequestID(msg, keysAndValues...)
	}
}

func (r retryableHTTPLogger) Warn(msg string, keysAndValues ...interface{}) {
	if glog.V(4) {
		LogNoRequestID(msg, keysAndValues...)
	}
}

func (r retryableHTTPLogger) Info(msg string, keysAndValues ...interface{}) {
	if glog.V(5) {
		LogNoRequestID(msg, keysAndValues...)
	}
}

// Debug carries retryablehttp's per-attempt tracing (one line per HTTP
// round trip it makes while retrying), so it sits at the same verbosity
// tier as job/worker.go's per-tick encode progress logging rather than the
// coarser tier glog.V(6) would otherwise put ordinary debug output at.
func (r retryableHTTPLogger) Debug(msg string, keysAndValues ...interface{}) {
	if glog.V(7) {
		LogNoRequestID(msg, keysAndValues...)
	}
}
