package metrics

type contextKey string

func (c contextKey) String() string {
	return "mirrobotContextKey" + string(c)
}

// RetriesKey stores a *Retries in the context MonitorRequest attaches to an
// outbound request, so HttpRetryHook can record each retry attempt back
// onto it as retryablehttp works through the request.
var RetriesKey = contextKey("HostClientRetries")
