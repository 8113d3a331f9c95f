package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dctl/cmd/ctl"
	"github.com/ValentinKolb/dctl/cmd/serve"
	"github.com/ValentinKolb/dctl/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dctl",
		Short: "cluster control daemon and client",
		Long: fmt.Sprintf(`dCTL (v%s)

A node daemon and control client speaking the binary control protocol of a
clustered database: node and database maps, record pull and push, tunables,
public addresses, bans and statistics.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dCTL",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dCTL v%s\n", Version)
		},
	}
)

func init() {
	// Initialize viper for all commands
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(ctl.ControlCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "transport"
	RootCmd.PersistentFlags().String(key, "unix", util.WrapString("transport to use (unix, tcp, http)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
