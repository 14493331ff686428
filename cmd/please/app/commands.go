// Package app provides the command-line entry point for the mcp-please
// gateway: index, search, call, serve, mcp, and install verbs over the
// internal federation pipeline (spec §6 "CLI surface").
package app

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pleaseai/mcp-please/internal/logger"
)

// NewRootCmd builds the "please" root command with every subcommand wired
// in, grounded on stacklok-toolhive's cmd/thv/app/commands.go NewRootCmd
// pattern: persistent debug/config flags bound through viper, a
// PersistentPreRun that initializes logging once per invocation.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "please",
		DisableAutoGenTag: true,
		Short:             "please federates tools from multiple MCP servers behind one searchable gateway",
		Long: `please discovers tools across your configured MCP servers, builds an
offline searchable index over them (BM25, embeddings, or both), and exposes
a single MCP gateway that a host can search and list tools through. Tool
execution itself is routed through this CLI's "call" verb rather than the
MCP wire protocol, so a host can gate it behind its own permission policy.`,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				logger.Errorf("error displaying help: %v", err)
			}
		},
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				_ = os.Setenv("MCP_GATEWAY_DEBUG", "true")
			}
			logger.Initialize()
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable verbose debug logging")
	rootCmd.PersistentFlags().String("config", "", "Ignored; config is always read from ~/.please/mcp.json, <cwd>/.please/mcp.json and <cwd>/.please/mcp.local.json")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("error binding debug flag: %v", err)
	}
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		logger.Errorf("error binding config flag: %v", err)
	}
	viper.SetEnvPrefix("mcp_please")
	viper.AutomaticEnv()

	rootCmd.AddCommand(newIndexCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newCallCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMCPCmd())
	rootCmd.AddCommand(newInstallCmd())
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	return rootCmd
}
