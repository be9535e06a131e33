package config

import (
	"reflect"
	"sort"
	"strings"

	logx "probed/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections plus safe
// structured attrs for logging (never includes secrets like tokens).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Engine, newCfg.Engine) {
		changed = append(changed, "engine")
		attrs = append(attrs,
			logx.Int("engine.history_size", newCfg.Engine.HistorySize),
			logx.String("engine.test_deadline", strings.TrimSpace(newCfg.Engine.TestDeadline)),
			logx.String("engine.default_model", strings.TrimSpace(newCfg.Engine.DefaultModel)),
			logx.Int("engine.model_count", len(newCfg.Engine.AvailableModels)),
		)
	}

	if oldCfg.Runner != newCfg.Runner {
		changed = append(changed, "runner")
		attrs = append(attrs,
			logx.Bool("runner.endpoint_set", strings.TrimSpace(newCfg.Runner.Endpoint) != ""),
			logx.String("runner.timeout", strings.TrimSpace(newCfg.Runner.Timeout)),
		)
	}

	if oldCfg.Auth != newCfg.Auth {
		changed = append(changed, "auth")
		attrs = append(attrs,
			logx.Bool("auth.credentials_path_set", strings.TrimSpace(newCfg.Auth.CredentialsPath) != ""),
		)
	}

	// Storage: nil means disabled.
	var oDriver, nDriver, oBusy, nBusy string
	var oPathSet, nPathSet bool
	if oldCfg.Storage != nil {
		oDriver = strings.TrimSpace(oldCfg.Storage.Driver)
		oBusy = strings.TrimSpace(oldCfg.Storage.BusyTimeout)
		oPathSet = strings.TrimSpace(oldCfg.Storage.Path) != ""
	}
	if newCfg.Storage != nil {
		nDriver = strings.TrimSpace(newCfg.Storage.Driver)
		nBusy = strings.TrimSpace(newCfg.Storage.BusyTimeout)
		nPathSet = strings.TrimSpace(newCfg.Storage.Path) != ""
	}
	if oDriver != nDriver || oBusy != nBusy || oPathSet != nPathSet {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.path_set", nPathSet),
		)
	}

	// API (never log token)
	if oldCfg.API.Enabled != newCfg.API.Enabled ||
		strings.TrimSpace(oldCfg.API.Addr) != strings.TrimSpace(newCfg.API.Addr) ||
		oldCfg.API.AllowInsecure != newCfg.API.AllowInsecure ||
		oldCfg.API.RatePerSec != newCfg.API.RatePerSec ||
		strings.TrimSpace(oldCfg.API.ReadTimeout) != strings.TrimSpace(newCfg.API.ReadTimeout) ||
		strings.TrimSpace(oldCfg.API.WriteTimeout) != strings.TrimSpace(newCfg.API.WriteTimeout) ||
		strings.TrimSpace(oldCfg.API.IdleTimeout) != strings.TrimSpace(newCfg.API.IdleTimeout) ||
		(strings.TrimSpace(oldCfg.API.Token) != "") != (strings.TrimSpace(newCfg.API.Token) != "") {
		changed = append(changed, "api")
		attrs = append(attrs,
			logx.Bool("api.enabled", newCfg.API.Enabled),
			logx.String("api.addr", strings.TrimSpace(newCfg.API.Addr)),
			logx.Bool("api.token_set", strings.TrimSpace(newCfg.API.Token) != ""),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
