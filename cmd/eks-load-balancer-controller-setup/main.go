package main

import (
	"os"

	"github.com/datadog/eks-load-balancer-controller-setup/cmd/eks-load-balancer-controller-setup/eks"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:                   "eks-load-balancer-controller-setup",
	Short:                 "Provision the AWS Load Balancer Controller on an EKS cluster",
	DisableFlagsInUseLine: true,
	SilenceUsage:          true,
	SilenceErrors:         true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
	},
}

func init() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print debug messages")
	rootCmd.AddCommand(eks.BuildEksSubcommand())
	rootCmd.AddCommand(&cobra.Command{
		Use:    "autogen-docs",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return doc.GenMarkdownTree(rootCmd, "./docs")
		},
	})
}

func main() {
	handleErrors(rootCmd.Execute())
}

func handleErrors(err error) {
	if err == nil {
		return
	}
	log.Error(err)
	os.Exit(1)
}
