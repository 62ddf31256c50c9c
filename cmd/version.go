package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/contxt-cli/internal/pkg/logging"
	"github.com/jake-scott/contxt-cli/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the version number of the tool",

	RunE: func(cmd *cobra.Command, args []string) error {
		if err := doVersion(); err != nil {
			return err
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

type versionResult struct {
	Version  string `json:"version"`
	Instance string `json:"instance"`
}

func doVersion() error {
	if viper.GetBool("output.json") {
		return printJSON(versionResult{
			Version:  version.Version,
			Instance: logging.InstanceID(),
		})
	}

	_, err := fmt.Fprintf(stdout, "contxt version %s\n", version.Version)
	return err
}
