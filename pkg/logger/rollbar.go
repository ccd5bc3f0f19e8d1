package logger

import (
	"net/http"
	"os"

	"github.com/rollbar/rollbar-go"
	"go.uber.org/zap"

	"github.com/noah-isme/coverage-api/pkg/config"
)

// Reporter forwards panics and server errors to Rollbar. Without a token it only logs.
type Reporter struct {
	enabled bool
	log     *zap.Logger
}

// NewReporter configures the process-wide Rollbar client.
func NewReporter(cfg *config.Config, log *zap.Logger) *Reporter {
	if log == nil {
		log = zap.NewNop()
	}
	enabled := cfg.Rollbar.Token != ""

	rollbar.SetToken(cfg.Rollbar.Token)
	rollbar.SetEnvironment(cfg.Env)
	rollbar.SetCodeVersion(cfg.Rollbar.Version)
	if host, err := os.Hostname(); err == nil {
		rollbar.SetServerHost(host)
	}
	rollbar.SetEnabled(enabled)

	if !enabled {
		log.Info("rollbar disabled: no token configured")
	}
	return &Reporter{enabled: enabled, log: log}
}

// Enabled reports whether items are shipped to Rollbar.
func (r *Reporter) Enabled() bool {
	return r != nil && r.enabled
}

// Error reports a failed request. actorID attaches the caller as the Rollbar person.
func (r *Reporter) Error(req *http.Request, actorID string, err error, extras map[string]interface{}) {
	if !r.Enabled() {
		return
	}
	r.person(actorID)
	rollbar.RequestErrorWithExtras(rollbar.ERR, req, err, extras)
}

// Critical reports a recovered panic.
func (r *Reporter) Critical(req *http.Request, actorID string, err error, extras map[string]interface{}) {
	if !r.Enabled() {
		return
	}
	r.person(actorID)
	rollbar.RequestErrorWithExtras(rollbar.CRIT, req, err, extras)
}

// Close flushes queued items. Call once on shutdown.
func (r *Reporter) Close() {
	if !r.Enabled() {
		return
	}
	rollbar.Close()
	r.log.Info("rollbar flushed")
}

func (r *Reporter) person(actorID string) {
	if actorID == "" {
		rollbar.ClearPerson()
		return
	}
	rollbar.SetPerson(actorID, "", "")
}
