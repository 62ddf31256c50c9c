package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/contxt-cli/internal/pkg/controlsim"
	"github.com/jake-scott/contxt-cli/internal/pkg/handlers"
	"github.com/jake-scott/contxt-cli/internal/pkg/logging"
	"github.com/jake-scott/contxt-cli/internal/pkg/models"
	"github.com/jake-scott/contxt-cli/pkg/middlewares"
)

var _simulateCmdOpts struct {
	configFile        string
	interval          time.Duration
	leadBuffer        time.Duration
	statusPort        uint16
	gracefulTimeout   time.Duration
	readTimeout       time.Duration
	writeTimeout      time.Duration
	transitionTimeout time.Duration
	logRequests       bool
	logStates         bool
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive the control events of an edge node through their state machines",
	Long: `simulate polls the control API for the events active on the configured edge
node client and fires the transitions the simulation config describes for
each state, standing in for real equipment.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		if err := doSimulate(cmd.Context()); err != nil {
			return err
		}

		return nil
	},

	PreRunE: func(cmd *cobra.Command, args []string) error {
		return checkRequiredFlags("simulator.config", "auth.client-id", "control.audience")
	},
}

func init() {
	simulateCmd.Flags().StringVar(&_simulateCmdOpts.configFile, "sim-config", "", "simulation config YAML file")
	simulateCmd.Flags().DurationVar(&_simulateCmdOpts.interval, "interval", controlsim.DefaultInterval, "pause between polls of the control API, eg. 5s")
	simulateCmd.Flags().DurationVar(&_simulateCmdOpts.leadBuffer, "lead-buffer", controlsim.DefaultLeadBuffer, "how long before its start an event is simulated, eg. 3m")
	simulateCmd.Flags().Uint16Var(&_simulateCmdOpts.statusPort, "status-port", 0, "port for the status/metrics server, 0 to disable")
	simulateCmd.Flags().DurationVar(&_simulateCmdOpts.gracefulTimeout, "graceful-timeout", time.Second*15, "duration to wait for the status server to finish, eg. 1m or 10s")
	simulateCmd.Flags().DurationVar(&_simulateCmdOpts.readTimeout, "read-timeout", time.Second*15, "duration to wait for request read, eg. 1m or 10s")
	simulateCmd.Flags().DurationVar(&_simulateCmdOpts.writeTimeout, "write-timeout", time.Second*60, "duration to wait for request write, eg. 1m or 10s")
	simulateCmd.Flags().DurationVar(&_simulateCmdOpts.transitionTimeout, "transition-timeout", time.Second*15, "maximum duration of a manual transition call, eg. 1m or 10s")
	simulateCmd.Flags().BoolVar(&_simulateCmdOpts.logRequests, "log-requests", false, "log status server requests and responses (only in debug mode)")
	simulateCmd.Flags().BoolVar(&_simulateCmdOpts.logStates, "log-states", false, "log every observation of a configured state")

	errPanic(viper.GetViper().BindPFlag("simulator.config", simulateCmd.Flags().Lookup("sim-config")))
	errPanic(viper.GetViper().BindPFlag("simulator.interval", simulateCmd.Flags().Lookup("interval")))
	errPanic(viper.GetViper().BindPFlag("simulator.lead-buffer", simulateCmd.Flags().Lookup("lead-buffer")))
	errPanic(viper.GetViper().BindPFlag("simulator.log-states", simulateCmd.Flags().Lookup("log-states")))
	errPanic(viper.GetViper().BindPFlag("status.port", simulateCmd.Flags().Lookup("status-port")))
	errPanic(viper.GetViper().BindPFlag("status.graceful-timeout", simulateCmd.Flags().Lookup("graceful-timeout")))
	errPanic(viper.GetViper().BindPFlag("status.read-timeout", simulateCmd.Flags().Lookup("read-timeout")))
	errPanic(viper.GetViper().BindPFlag("status.write-timeout", simulateCmd.Flags().Lookup("write-timeout")))
	errPanic(viper.GetViper().BindPFlag("status.transition-timeout", simulateCmd.Flags().Lookup("transition-timeout")))
	errPanic(viper.GetViper().BindPFlag("logging.log-requests", simulateCmd.Flags().Lookup("log-requests")))

	rootCmd.AddCommand(simulateCmd)
}

// stateLoggingHooks logs each observation of every configured state
func stateLoggingHooks(configs *controlsim.SimulationConfigs) controlsim.EventHooks {
	hook := controlsim.HookFunc(func(ctx context.Context, state controlsim.FrameworkState, event models.ControlEvent) {
		logging.Logger(ctx).WithFields(logrus.Fields{
			"event": state.ControlEventID,
			"state": state.State,
			"stale": state.IsStale,
			"end":   state.EndTime.Format(time.RFC3339),
		}).Info("observed state")
	})

	hooks := controlsim.EventHooks{}
	for _, def := range configs.Definitions {
		for name := range def.States {
			hooks[name] = hook
		}
	}
	return hooks
}

func newStatusServer(sim *controlsim.Simulator, control handlers.Transitioner) *http.Server {
	var logRequests bool
	if viper.GetBool("logging.log-requests") {
		if logrus.IsLevelEnabled(logrus.DebugLevel) {
			logRequests = true
		} else {
			logging.Logger(nil).Warn("log-requests ignored when not in debug mode")
		}
	}

	sh := handlers.NewStatusHandler(sim)
	hh := handlers.NewHealthHandler()
	th := handlers.NewTransitionHandler(control, viper.GetDuration("status.transition-timeout"))

	r := mux.NewRouter()
	r.Use(middlewares.NewCorsMw(middlewares.DefaultCorsOptions()))
	r.Use(middlewares.NewLoggingMw(logRequests))
	r.Use(middlewares.NewRecoveryMw())
	r.Use(middlewares.NewCorrelationMw("X-Correlation-ID"))
	r.Use(middlewares.NewMetricsMw())
	r.Handle("/status", &sh).Methods(http.MethodGet)
	r.Handle("/healthz", &hh).Methods(http.MethodGet)
	r.Handle("/transition", &th).Methods(http.MethodPost)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", viper.GetUint("status.port")),
		ReadTimeout:  viper.GetDuration("status.read-timeout"),
		WriteTimeout: viper.GetDuration("status.write-timeout"),
		IdleTimeout:  time.Second * 60,
		Handler:      r,
	}
}

func doSimulate(ctx context.Context) error {
	configs, err := controlsim.LoadConfig(viper.GetString("simulator.config"))
	if err != nil {
		return err
	}

	if err := configs.Validate(); err != nil {
		logging.Logger(nil).WithError(err).Warn("simulation config has problems, affected states will not be simulated")
	}

	var hooks controlsim.EventHooks
	if viper.GetBool("simulator.log-states") {
		hooks = stateLoggingHooks(configs)
	}

	control, err := newControlService()
	if err != nil {
		return err
	}

	sim, err := controlsim.NewSimulator(control, configs, hooks)
	if err != nil {
		return err
	}
	sim = sim.WithInterval(viper.GetDuration("simulator.interval")).
		WithLeadBuffer(viper.GetDuration("simulator.lead-buffer"))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var s *http.Server
	if viper.GetUint("status.port") != 0 {
		s = newStatusServer(sim, control)

		logging.Logger(nil).Infof("Serving status on port %d", viper.GetUint("status.port"))
		go func() {
			if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Logger(nil).WithError(err).Error("running status server")
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := sim.Run(ctx); err != nil {
			logging.Logger(nil).WithError(err).Error("simulator stopped")
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or the simulator gives up
	select {
	case <-c:
	case <-done:
	}

	logging.Logger(nil).Info("shutting down")
	cancel()
	<-done

	if s != nil {
		// Create a deadline to wait for.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), viper.GetDuration("status.graceful-timeout"))
		defer shutdownCancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			logging.Logger(nil).WithError(err).Errorf("shutting down")
		}
	}

	logging.Logger(nil).Info("exiting")
	return nil
}
