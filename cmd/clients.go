package cmd

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/jake-scott/contxt-cli/internal/pkg/auth"
	"github.com/jake-scott/contxt-cli/internal/pkg/controlapi"
	"github.com/jake-scott/contxt-cli/internal/pkg/contxtapi"
	"github.com/jake-scott/contxt-cli/internal/pkg/logging"
)

// Production endpoints, overridable with <service>.url / <service>.audience.
// The control and IoT audiences are tenant specific and must be configured.
const (
	defaultControlURL    = "https://contxt.api.ndustrial.io"
	defaultIoTURL        = "https://feeds.api.ndustrial.io/v1"
	defaultRatesURL      = "https://ems.api.ndustrial.io/"
	defaultRatesAudience = "e2IT0Zm9RgGlDBkLa2ruEcN9Iop6dJAS"
)

func init() {
	viper.SetDefault("control.url", defaultControlURL)
	viper.SetDefault("iot.url", defaultIoTURL)
	viper.SetDefault("rates.url", defaultRatesURL)
	viper.SetDefault("rates.audience", defaultRatesAudience)
	viper.SetDefault("api.timeout", time.Second*30)
	viper.SetDefault("api.retries", 3)
	viper.SetDefault("api.retry-interval", time.Millisecond*100)
}

// tokenProvider builds the client-credentials provider from auth.* keys; a
// configured auth.token is used as-is instead
func tokenProvider() (auth.TokenProvider, error) {
	if token := viper.GetString("auth.token"); token != "" {
		logging.Logger(nil).Debug("using static bearer token from auth.token")
		return auth.Static(token), nil
	}

	tokenCache, err := auth.NewStoredTokenCache(viper.GetString("auth.token-file"))
	if err != nil {
		return nil, errors.Wrap(err, "opening token cache")
	}

	provider := auth.NewClientCredentials(tokenCache).
		WithClientSecret(viper.GetString("auth.client-secret")).
		WithAuthProvider(viper.GetString("auth.provider"))

	logging.Logger(nil).Debugf("token provider: %s", provider)
	return provider, nil
}

// newAPI returns a REST client for the service configured under key
func newAPI(key string) (*contxtapi.API, error) {
	if err := checkRequiredFlags("auth.client-id", key+".audience"); err != nil {
		return nil, err
	}

	tokens, err := tokenProvider()
	if err != nil {
		return nil, err
	}

	api := contxtapi.NewAPI(viper.GetString(key+".url")).
		WithTokenProvider(tokens, viper.GetString("auth.client-id"), viper.GetString(key+".audience")).
		WithTimeout(viper.GetDuration("api.timeout")).
		WithRetries(uint64(viper.GetUint("api.retries")), viper.GetDuration("api.retry-interval"))

	logging.Logger(nil).Debugf("%s API at %s", key, api.BaseURL())
	return api, nil
}

func newControlService() (*controlapi.Service, error) {
	api, err := newAPI("control")
	if err != nil {
		return nil, err
	}

	return controlapi.NewService(controlapi.NewClient(api)), nil
}

func newIoTService() (*contxtapi.IoTService, error) {
	api, err := newAPI("iot")
	if err != nil {
		return nil, err
	}

	return contxtapi.NewIoTService(api), nil
}

func newRatesService() (*contxtapi.RatesService, error) {
	api, err := newAPI("rates")
	if err != nil {
		return nil, err
	}

	return contxtapi.NewRatesService(api), nil
}
