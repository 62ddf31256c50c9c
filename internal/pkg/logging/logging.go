package logging

import (
	"context"
	"fmt"
	"os"
	"path"

	stdlog "log"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

/*
 *  Process-wide diagnostics logging.  Every entry carries the pid, executable
 *  and a per-run instance ID; entries made with a context also carry the
 *  transaction ID and/or component slug stored in it.
 */

type ctxID int

const (
	txnIDKey ctxID = iota
	componentKey
)

// WithTxnID returns a context which knows its transaction ID
func WithTxnID(ctx context.Context, txnID string) context.Context {
	return context.WithValue(ctx, txnIDKey, txnID)
}

// WithComponent returns a context which knows the component slug being worked on
func WithComponent(ctx context.Context, slug string) context.Context {
	return context.WithValue(ctx, componentKey, slug)
}

// TxnID returns the transaction ID stored in ctx, if any
func TxnID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(txnIDKey).(string)
	return id, ok
}

type logger struct {
	logger  *logrus.Entry
	logFile *os.File
}

// The one singleton logger
var gLogger logger
var gInstanceID string

// Logger returns the global logger, decorated with any fields found in ctx
func Logger(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return gLogger.logger
	}

	fields := logrus.Fields{}
	if txnID, ok := ctx.Value(txnIDKey).(string); ok {
		fields["txnid"] = txnID
	}
	if slug, ok := ctx.Value(componentKey).(string); ok {
		fields["component"] = slug
	}

	if len(fields) == 0 {
		return gLogger.logger
	}

	return gLogger.logger.WithFields(fields)
}

// InstanceID returns the ID generated for this process run
func InstanceID() string {
	return gInstanceID
}

func baseFields() logrus.Fields {
	return logrus.Fields{
		"pid":      os.Getpid(),
		"exe":      path.Base(os.Args[0]),
		"instance": gInstanceID,
	}
}

func init() {
	// Viper defaults
	viper.SetDefault("logging.location", "stderr")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.level", "info")

	gInstanceID = uuid.New().String()
	gLogger.logger = logrus.WithFields(baseFields())
}

// Configure sets the log level and output location/format
func Configure(cfg *viper.Viper) error {
	switch loc := cfg.GetString("logging.location"); loc {
	case "stdout":
		logrus.SetOutput(os.Stdout)
		gLogger.logger = logrus.WithFields(logrus.Fields{})
	case "stderr":
		logrus.SetOutput(os.Stderr)
		gLogger.logger = logrus.WithFields(logrus.Fields{})
	default:
		file, err := os.OpenFile(loc, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}

		gLogger.logger.Debugf("Switching system log to %s", loc)
		logrus.SetOutput(file)

		if gLogger.logFile != nil {
			gLogger.logFile.Close()
		}
		gLogger.logFile = file

		// a shared log file needs to tell runs apart
		gLogger.logger = logrus.WithFields(baseFields())
	}

	// --debug wins over the configured level
	if !logrus.IsLevelEnabled(logrus.DebugLevel) {
		level := cfg.GetString("logging.level")
		val, err := logrus.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("bad log level: [%s]", level)
		}
		logrus.SetLevel(val)
	}

	switch format := cfg.GetString("logging.format"); format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("bad log format: [%s]", format)
	}

	// Override the standard system logger
	stdlog.SetOutput(Logger(nil).WriterLevel(logrus.DebugLevel))

	return nil
}
