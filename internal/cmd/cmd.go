// Package cmd implements the thermostat command line.
package cmd

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/clambin/go-common/charmer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFilename string
	RootCmd        = cobra.Command{
		Use:   "thermostat",
		Short: "Adds schedules, safety bounds and runtime tracking to a thermostat",
	}
)

var args = charmer.Arguments{
	"debug":      {Default: false, Help: "Log debug messages"},
	"log.format": {Default: "text", Help: "Log format (text or json)"},
}

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&configFilename, "config", "", "Configuration file")
	_ = charmer.SetPersistentFlags(&RootCmd, viper.GetViper(), args)
	RootCmd.AddCommand(&runCmd, &scheduleCmd)
}

func initConfig() {
	if configFilename != "" {
		viper.SetConfigFile(configFilename)
	} else {
		viper.AddConfigPath("/etc/enhanced-thermostat/")
		viper.AddConfigPath("$HOME/.enhanced-thermostat")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("THERMOSTAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// all settings can also be passed as flags or environment variables
		var notFound viper.ConfigFileNotFoundError
		if configFilename != "" || !errors.As(err, &notFound) {
			slog.Error("failed to read config file", "err", err)
			os.Exit(1)
		}
	}
}

func newLogger(w io.Writer, v *viper.Viper) *slog.Logger {
	opts := slog.HandlerOptions{Level: slog.LevelInfo}
	if v.GetBool("debug") {
		opts.Level = slog.LevelDebug
	}
	if v.GetString("log.format") == "json" {
		return slog.New(slog.NewJSONHandler(w, &opts))
	}
	return slog.New(slog.NewTextHandler(w, &opts))
}
