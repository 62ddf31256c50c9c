package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/contxt-cli/internal/pkg/auth"
	"github.com/jake-scott/contxt-cli/internal/pkg/logging"
)

var _tokenCmdOpts struct {
	service  string
	audience string
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a bearer token for a Contxt service",

	RunE: func(cmd *cobra.Command, args []string) error {
		audience := _tokenCmdOpts.audience
		if audience == "" {
			audience = viper.GetString(_tokenCmdOpts.service + ".audience")
		}
		if audience == "" {
			return fmt.Errorf("no audience configured for service %s, set %s.audience or pass --audience", _tokenCmdOpts.service, _tokenCmdOpts.service)
		}

		tokens, err := tokenProvider()
		if err != nil {
			return err
		}

		token, err := tokens.GetToken(cmd.Context(), viper.GetString("auth.client-id"), audience)
		if err != nil {
			return err
		}

		if exp, err := auth.TokenExpiry(token); err == nil {
			logging.Logger(nil).Debugf("token expires at %s (in %s)", exp.Format(time.RFC3339), time.Until(exp).Round(time.Second))
		}

		if viper.GetBool("output.json") {
			return printJSON(map[string]string{"audience": audience, "token": token})
		}

		_, err = fmt.Fprintln(stdout, token)
		return err
	},

	PreRunE: func(cmd *cobra.Command, args []string) error {
		return checkRequiredFlags("auth.client-id")
	},
}

func init() {
	tokenCmd.Flags().StringVar(&_tokenCmdOpts.service, "service", "control", "service whose audience to use (control, iot or rates)")
	tokenCmd.Flags().StringVar(&_tokenCmdOpts.audience, "audience", "", "explicit token audience, overrides --service")

	rootCmd.AddCommand(tokenCmd)
}
