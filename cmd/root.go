package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/contxt-cli/internal/pkg/logging"
)

const defaultConfigFile = "~/.contxt/config.yml"

var _rootCmdOpts struct {
	configFile string
	debug      bool
	json       bool
	logLevel   string
	logFormat  string
	logFile    string
}

var rootCmd = &cobra.Command{
	Use:   "contxt",
	Short: "Command line client for the Contxt platform",
	Long: `contxt talks to the Contxt facility control, IoT and rates APIs.

Settings are read from ~/.contxt/config.yml, CONTXT_* environment variables
(eg. CONTXT_AUTH_CLIENT_SECRET) and command line flags, in increasing order
of precedence.`,
	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(_rootCmdOpts.configFile, cmd.Flags().Changed("config")); err != nil {
			return err
		}

		if viper.GetBool("debug") {
			logrus.SetLevel(logrus.DebugLevel)
		}

		return logging.Configure(viper.GetViper())
	},
}

// Execute runs the command tree and exits non-zero on failure
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&_rootCmdOpts.configFile, "config", defaultConfigFile, "config file")
	rootCmd.PersistentFlags().BoolVar(&_rootCmdOpts.debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&_rootCmdOpts.json, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().StringVar(&_rootCmdOpts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&_rootCmdOpts.logFormat, "log-format", "text", "log format (text or json)")
	rootCmd.PersistentFlags().StringVar(&_rootCmdOpts.logFile, "log-file", "stderr", "log to stderr, stdout or the named file")

	errPanic(viper.GetViper().BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")))
	errPanic(viper.GetViper().BindPFlag("output.json", rootCmd.PersistentFlags().Lookup("json")))
	errPanic(viper.GetViper().BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level")))
	errPanic(viper.GetViper().BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format")))
	errPanic(viper.GetViper().BindPFlag("logging.location", rootCmd.PersistentFlags().Lookup("log-file")))

	viper.SetEnvPrefix("contxt")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// loadConfig reads the config file; a missing file is only an error when
// it was named explicitly
func loadConfig(configFile string, explicit bool) error {
	fileName, err := homedir.Expand(configFile)
	if err != nil {
		return err
	}

	viper.SetConfigFile(fileName)
	if err := viper.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(fileName); os.IsNotExist(statErr) && !explicit {
			return nil
		}
		return fmt.Errorf("reading config file %s: %v", fileName, err)
	}

	logging.Logger(nil).Debugf("read config from %s", viper.ConfigFileUsed())
	return nil
}

func errPanic(err error) {
	if err != nil {
		panic(err)
	}
}

func checkRequiredFlags(needFlags ...string) error {
	missingFlags := []string{}

	for _, f := range needFlags {
		if !viper.IsSet(f) {
			missingFlags = append(missingFlags, f)
		}
	}

	if len(missingFlags) > 0 {
		itemPlural := "item"
		if len(missingFlags) > 1 {
			itemPlural = "items"
		}
		return fmt.Errorf("required config %s `%s` not set", itemPlural, strings.Join(missingFlags, "`, `"))
	}

	return nil
}
