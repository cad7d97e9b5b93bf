package main

import (
	"flag"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"linkbio/config"
)

var (
	configFile string
	cfg        *config.Config
	vp         *viper.Viper
)

var rootCmd = &cobra.Command{
	Use:           "linkbio",
	Short:         "Link-in-bio profile service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, vp, err = config.Load(configFile)
		return err
	},
	// serve is the default command
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

func init() {
	_ = flag.Set("logtostderr", "true")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./configs/config.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	rootCmd.AddCommand(serveCmd, migrateCmd, issueTokenCmd, debugProfileCmd, purgeTokensCmd, inspectFKsCmd, sanitizeCmd)
}

func main() {
	err := rootCmd.Execute()
	glog.Flush()
	if err != nil {
		glog.Errorf("%v", err)
		glog.Flush()
		os.Exit(1)
	}
}
