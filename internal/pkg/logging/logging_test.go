package logging

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerContextFields(t *testing.T) {
	ctx := WithComponent(WithTxnID(context.Background(), "txn-1"), "chiller-1")

	entry := Logger(ctx)
	assert.Equal(t, "txn-1", entry.Data["txnid"])
	assert.Equal(t, "chiller-1", entry.Data["component"])

	id, ok := TxnID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "txn-1", id)
}

func TestLoggerWithoutContext(t *testing.T) {
	assert.Same(t, gLogger.logger, Logger(nil))
	assert.Same(t, gLogger.logger, Logger(context.Background()))

	_, ok := TxnID(nil)
	assert.False(t, ok)
}

func TestConfigure(t *testing.T) {
	defer logrus.SetLevel(logrus.InfoLevel)
	defer logrus.SetFormatter(&logrus.TextFormatter{})

	cfg := viper.New()
	cfg.Set("logging.location", filepath.Join(t.TempDir(), "contxt.log"))
	cfg.Set("logging.level", "warn")
	cfg.Set("logging.format", "json")

	require.NoError(t, Configure(cfg))
	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())
	assert.Equal(t, InstanceID(), Logger(nil).Data["instance"])

	cfg.Set("logging.location", "stderr")
	cfg.Set("logging.level", "chatty")
	assert.Error(t, Configure(cfg))

	cfg.Set("logging.level", "info")
	cfg.Set("logging.format", "xml")
	assert.Error(t, Configure(cfg))
}
