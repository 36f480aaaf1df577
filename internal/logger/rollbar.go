package logger

import (
	"fmt"
	"sync/atomic"

	"github.com/rollbar/rollbar-go"
	"go.uber.org/zap/zapcore"
)

var reportingEnabled atomic.Bool

// RollbarConfig describes where error reports go
type RollbarConfig struct {
	Token       string
	Environment string
	ServerHost  string
	CodeVersion string
}

// InitRollbar configures error reporting. An empty token leaves reporting disabled.
func InitRollbar(cfg RollbarConfig) {
	rollbar.SetToken(cfg.Token)
	rollbar.SetEnvironment(cfg.Environment)
	rollbar.SetServerHost(cfg.ServerHost)
	rollbar.SetCodeVersion(cfg.CodeVersion)

	enabled := cfg.Token != ""
	rollbar.SetEnabled(enabled)
	reportingEnabled.Store(enabled)
}

// ReportPanic sends a recovered panic value as a critical item
func ReportPanic(recovered any, extras map[string]any) {
	if !reportingEnabled.Load() {
		return
	}
	err, ok := recovered.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", recovered)
	}
	rollbar.Critical(err, extras)
}

func reportEntry(entry zapcore.Entry) error {
	if !reportingEnabled.Load() || entry.Level < zapcore.ErrorLevel {
		return nil
	}
	rollbar.Error(entry.Message, map[string]any{
		"caller": entry.Caller.TrimmedPath(),
		"logger": entry.LoggerName,
	})
	return nil
}

func flushReports() {
	if reportingEnabled.Load() {
		rollbar.Wait()
	}
}
