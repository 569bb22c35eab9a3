// Package common contains common shared utilities for oracle-node commands.
package common

import (
	"fmt"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/encointer/personhood-oracle/common/logging"
	"github.com/encointer/personhood-oracle/config"
)

const (
	// CfgConfigFile is the flag used to specify a config file.
	CfgConfigFile = "config"

	// CfgDataDir is the flag used to specify a data directory.
	CfgDataDir = "datadir"
)

var (
	cfgFile string

	rootLog = logging.GetLogger("oracle-node")

	// RootFlags has the flags that are common across all commands.
	RootFlags = flag.NewFlagSet("", flag.ContinueOnError)
)

// DataDir returns the data directory iff one is set.
func DataDir() string {
	return config.GlobalConfig.Common.DataDir
}

// Logger returns the command logger.
func Logger() *logging.Logger {
	return rootLog
}

// InitConfig initializes the command configuration.
//
// WARNING: This is exposed for the benefit of tests and the interface is
// not guaranteed to be stable.
func InitConfig() {
	if err := initConfig(); err != nil {
		EarlyLogAndExit(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		if err := config.InitConfig(cfgFile); err != nil {
			return err
		}
	}

	// Flags override the configuration file.
	if viper.IsSet(CfgDataDir) {
		config.GlobalConfig.Common.DataDir = viper.GetString(CfgDataDir)
	}
	if dataDir := config.GlobalConfig.Common.DataDir; dataDir != "" {
		abs, err := filepath.Abs(dataDir)
		if err != nil {
			return err
		}
		config.GlobalConfig.Common.DataDir = abs
		if err = ensureDataDir(abs); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	if err := initLogging(); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	rootLog.Debug("common initialization complete")
	return nil
}

// EarlyLogAndExit logs the error and exits.
//
// Use only before logging is initialized.
func EarlyLogAndExit(err error) {
	_, _ = fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func normalizePath(f string) string {
	if !filepath.IsAbs(f) && DataDir() != "" {
		f = filepath.Join(DataDir(), f)
		return filepath.Clean(f)
	}
	return f
}

func init() {
	initLoggingFlags()

	RootFlags.StringVar(&cfgFile, CfgConfigFile, "", "config file")
	RootFlags.String(CfgDataDir, "", "data directory")
	_ = viper.BindPFlags(RootFlags)
	RootFlags.AddFlagSet(loggingFlags)
}
