package http

import (
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// ClientConfig configures the HTTP client shared by all handles of a provider.
type ClientConfig struct {
	Timeout   time.Duration
	RetryMax  int // 0 disables retries
	UserAgent string
}

// NewClient builds a resty client on top of a retryablehttp transport.
// Transport errors and 5xx answers are retried up to RetryMax times; the last
// response is always handed back so that callers see the real status.
func NewClient(cfg ClientConfig, logger zerolog.Logger) *resty.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = nil

	client := resty.NewWithClient(retryClient.StandardClient()).
		SetLogger(restyLogger{logger}).
		SetHeader("User-Agent", cfg.UserAgent)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	client.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		logger.Debug().
			Str("method", resp.Request.Method).
			Str("url", resp.Request.URL).
			Int("status", resp.StatusCode()).
			Dur("elapsed", resp.Time()).
			Msg("http request")
		return nil
	})
	return client
}

// restyLogger routes resty's own messages to zerolog.
type restyLogger struct {
	logger zerolog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error().Msgf(format, v...)
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn().Msgf(format, v...)
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug().Msgf(format, v...)
}
