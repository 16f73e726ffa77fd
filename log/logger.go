package log

import (
	"net/url"
	"strings"
	"time"

	"github.com/go-kit/log"
	kitlog "github.com/go-kit/log"
	"github.com/patrickmn/go-cache"
)

// loggerCache holds one go-kit logger per job id, pre-populated with the
// "job_id" field, so every subsequent Log() call for that job doesn't need
// to repeat it.
var loggerCache *cache.Cache
var defaultLoggerCacheExpiry = 6 * time.Hour

func init() {
	loggerCache = cache.New(defaultLoggerCacheExpiry, 10*time.Minute)
}

// AddContext permanently attaches keyvals to every future Log() call for
// this job id.
func AddContext(jobID string, keyvals ...interface{}) {
	logger := kitlog.With(getLogger(jobID), redactKeyvals(keyvals...)...)

	err := loggerCache.Replace(jobID, logger, defaultLoggerCacheExpiry)
	if err != nil {
		_ = logger.Log("msg", "error replacing logger in cache: "+err.Error())
	}
}

func Log(jobID string, message string, keyvals ...interface{}) {
	_ = kitlog.With(getLogger(jobID), "msg", message).Log(redactKeyvals(keyvals...)...)
}

// LogNoRequestID logs in situations where no job is in scope yet (e.g.
// before a submitted URL has been admitted to the queue). Use sparingly and
// put as much context as possible into the message itself.
func LogNoRequestID(message string, keyvals ...interface{}) {
	_ = kitlog.With(newLogger(), "msg", message).Log(redactKeyvals(keyvals...)...)
}

func LogError(jobID string, message string, err error, keyvals ...interface{}) {
	msgLogger := kitlog.With(getLogger(jobID), "msg", message)
	errLogger := kitlog.With(msgLogger, "err", err.Error())
	_ = errLogger.Log(redactKeyvals(keyvals...)...)
}

func getLogger(jobID string) kitlog.Logger {
	logger, found := loggerCache.Get(jobID)
	if found {
		return logger.(kitlog.Logger)
	}

	l := kitlog.With(newLogger(), "job_id", jobID)
	err := loggerCache.Add(jobID, l, defaultLoggerCacheExpiry)
	if err != nil {
		_ = l.Log("msg", "error adding logger to cache", "job_id", jobID, "err", err.Error())
	}
	return l
}

func newLogger() kitlog.Logger {
	l := kitlog.NewLogfmtLogger(log.NewSyncWriter(OutputWriter))
	return kitlog.With(l, "ts", kitlog.DefaultTimestampUTC)
}

// sensitiveKeySubstrings names keyval keys whose values are never logged
// verbatim regardless of shape. Host API keys (config.HostConfig.APIKey)
// and the Telegram bot token are bare tokens, not URLs, so RedactURL's
// http/s3-prefix check never catches them.
var sensitiveKeySubstrings = []string{"api_key", "apikey", "token", "secret", "password"}

func isSensitiveKey(k string) bool {
	kl := strings.ToLower(k)
	for _, sub := range sensitiveKeySubstrings {
		if strings.Contains(kl, sub) {
			return true
		}
	}
	return false
}

// redactKeyvals strips credentials out of the log line before it reaches
// output: known-sensitive keys are blanked outright, and any remaining
// URL-shaped value has its query string and userinfo redacted — source/
// host URLs routinely carry API tokens as query params.
func redactKeyvals(keyvals ...interface{}) []interface{} {
	var res []interface{}
	for i := range keyvals {
		if i%2 == 1 {
			k, v := keyvals[i-1], keyvals[i]
			res = append(res, k)
			if ks, ok := k.(string); ok && isSensitiveKey(ks) {
				res = append(res, "REDACTED")
				continue
			}
			switch s := v.(type) {
			case string:
				res = append(res, RedactURL(s))
			case url.URL:
				res = append(res, s.Redacted())
			case *url.URL:
				if s != nil {
					res = append(res, s.Redacted())
				}
			default:
				res = append(res, v)
			}
		}
	}
	return res
}

func RedactURL(str string) string {
	strLower := strings.ToLower(str)
	if !strings.HasPrefix(strLower, "http") && !strings.HasPrefix(strLower, "s3") {
		return str
	}

	u, err := url.Parse(str)
	if err != nil {
		return "REDACTED"
	}
	return u.Redacted()
}
