// Package cli implements the recall command-line interface using cobra.
// Commands talk to the core through the driving ports; wiring happens in
// cmd/recall.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/recallhq/recall/internal/core/domain"
	"github.com/recallhq/recall/internal/core/ports/driven"
	"github.com/recallhq/recall/internal/core/ports/driving"
	"github.com/recallhq/recall/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Injected services. Set through Configure before Execute.
var (
	retriever   driving.Retriever
	ingestor    driving.Ingestor
	library     driving.Library
	historySvc  driving.History
	configStore driven.ConfigStore
)

// Scope flags, shared by every command.
var (
	scopeUser         string
	scopeProject      string
	scopeConversation string
	verbose           bool
)

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Long-term memory for conversational assistants",
	Long: `Recall stores conversational and document memory in a dual index
(semantic vectors plus an entity/relationship store) and retrieves it with
scope-aware hybrid ranking.

Memories are isolated per user and project; a conversation id narrows the
scope further. Use --user and --project on any command to select the scope.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&scopeUser, "user", "", "user id (default from config, then \"default\")")
	rootCmd.PersistentFlags().StringVar(&scopeProject, "project", "", "project id (default from config, then \"default\")")
	rootCmd.PersistentFlags().StringVar(&scopeConversation, "conversation", "", "conversation id (empty for project-wide)")
}

// Services groups the implementations the CLI needs.
type Services struct {
	Retriever driving.Retriever
	Ingestor  driving.Ingestor
	Library   driving.Library
	History   driving.History
	Config    driven.ConfigStore
}

// Configure injects the service implementations.
func Configure(s Services) {
	retriever = s.Retriever
	ingestor = s.Ingestor
	library = s.Library
	historySvc = s.History
	configStore = s.Config
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// currentScope resolves the scope for this invocation: flags first, then
// config defaults, then "default".
func currentScope() domain.Scope {
	user := scopeUser
	project := scopeProject
	if configStore != nil {
		if user == "" {
			user = configStore.GetString("scope.user")
		}
		if project == "" {
			project = configStore.GetString("scope.project")
		}
	}
	if user == "" {
		user = "default"
	}
	if project == "" {
		project = "default"
	}
	return domain.Scope{
		UserID:         user,
		ProjectID:      project,
		ConversationID: scopeConversation,
	}
}
