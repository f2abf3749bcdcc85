// Command chatkit-server runs the chat thread server: a thread store, a
// single assistant answering each user message with a streamed reply,
// and the HTTP surface around them.
//
// Configuration is read from a YAML file and CHATKIT_* environment
// variables; see pkg/config. OPENAI_API_KEY is required. A .env file in
// the working directory is loaded before the configuration.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configPath string
	envFiles   []string
)

var rootCmd = &cobra.Command{
	Use:   "chatkit-server",
	Short: "Chat thread server with a streaming assistant",
	Long: `chatkit-server stores chat threads and answers each user message with
a streamed reply from a single assistant.

Examples:
  chatkit-server                      # same as "serve"
  chatkit-server serve --config config.yaml
  chatkit-server migrate
  chatkit-server config validate`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnvFiles(envFiles)
	},
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files loaded before the configuration")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadEnvFiles loads the dotenv files that exist. Variables already set
// in the environment win.
func loadEnvFiles(paths []string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}
