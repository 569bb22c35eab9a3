package common

import (
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/encointer/personhood-oracle/common/logging"
	"github.com/encointer/personhood-oracle/config"
	cmnConfig "github.com/encointer/personhood-oracle/oracle-node/cmd/common/config"
)

// Per module levels can only be set in the configuration file.
const (
	cfgLogFile  = "log.file"
	cfgLogFmt   = "log.format"
	cfgLogLevel = "log.level"
)

var loggingFlags = flag.NewFlagSet("", flag.ContinueOnError)

// effectiveLogConfig returns the logging configuration with command line
// flags applied over the configuration file.
func effectiveLogConfig() cmnConfig.LogConfig {
	cfg := config.GlobalConfig.Common.Log

	levels := make(map[string]string, len(cfg.Level)+1)
	for module, lvl := range cfg.Level {
		levels[module] = lvl
	}
	cfg.Level = levels

	if viper.IsSet(cfgLogFile) {
		cfg.File = viper.GetString(cfgLogFile)
	}
	if viper.IsSet(cfgLogFmt) {
		cfg.Format = viper.GetString(cfgLogFmt)
	}
	if viper.IsSet(cfgLogLevel) {
		cfg.Level[cmnConfig.DefaultLevelKey] = viper.GetString(cfgLogLevel)
	}
	return cfg
}

func initLogging() error {
	cfg := effectiveLogConfig()

	format := logging.FmtLogfmt
	if cfg.Format != "" {
		if err := format.Set(cfg.Format); err != nil {
			return err
		}
	}

	defaultLevel := logging.LevelInfo
	moduleLevels := make(map[string]logging.Level, len(cfg.Level))
	for module, v := range cfg.Level {
		var lvl logging.Level
		if err := lvl.Set(v); err != nil {
			return fmt.Errorf("module '%s': %w", module, err)
		}
		if module == cmnConfig.DefaultLevelKey {
			defaultLevel = lvl
		} else {
			moduleLevels[module] = lvl
		}
	}

	var w io.Writer = os.Stdout
	if cfg.File != "" {
		f, err := os.OpenFile(normalizePath(cfg.File), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return err
		}
		w = f
	}

	return logging.Initialize(w, format, defaultLevel, moduleLevels)
}

func initLoggingFlags() {
	loggingFlags.String(cfgLogFile, "", "log file")
	loggingFlags.String(cfgLogFmt, logging.FmtLogfmt.String(), "log format (logfmt, json)")
	loggingFlags.String(cfgLogLevel, logging.LevelInfo.String(), "default log level (debug, info, warn, error)")

	_ = viper.BindPFlags(loggingFlags)
}
