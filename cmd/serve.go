package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/alohalabs/aloha/pkg/a2a"
	"github.com/alohalabs/aloha/pkg/bus"
	"github.com/alohalabs/aloha/pkg/provider"
	"github.com/alohalabs/aloha/pkg/service"
	"github.com/alohalabs/aloha/pkg/stores"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	portFlag     int
	hostFlag     string
	agentFlag    string
	providerFlag string
	modelFlag    string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve an A2A agent",
		Long:  longServe,
		RunE: func(cmd *cobra.Command, args []string) error {
			brain, err := buildProvider()
			if err != nil {
				return err
			}

			handler := service.NewRequestHandler(
				stores.NewInMemoryTaskStore(),
				bus.New(),
				brain,
			)

			card := a2a.NewAgentCardFromConfig(agentFlag)
			srv := service.NewA2AServer(*card, handler)

			ctx, stop := signal.NotifyContext(
				cmd.Context(), syscall.SIGINT, syscall.SIGTERM,
			)
			defer stop()

			addr := fmt.Sprintf("%s:%d", hostFlag, portFlag)
			log.Info("starting agent", "agent", card.Name, "provider", brain.Name())

			return srv.ListenAndServe(ctx, addr)
		},
	}
)

// buildProvider picks the capability provider from the flag, falling back
// to the configured default.
func buildProvider() (provider.Interface, error) {
	name := providerFlag
	if name == "" {
		name = viper.GetString("provider.name")
	}

	model := modelFlag
	if model == "" {
		model = viper.GetString("provider.model")
	}

	switch name {
	case "ollama":
		return provider.NewOllamaProvider(provider.WithModel(model)), nil
	case "dice":
		return provider.NewDiceProvider(), nil
	case "echo":
		return provider.NewEchoProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&portFlag, "port", "p", 8080, "Port to serve on")
	serveCmd.Flags().StringVarP(&hostFlag, "host", "H", "0.0.0.0", "Host address to bind to")
	serveCmd.Flags().StringVarP(&agentFlag, "agent", "a", "dice", "Agent card key from the config file")
	serveCmd.Flags().StringVar(&providerFlag, "provider", "", "Capability provider (ollama, dice, echo)")
	serveCmd.Flags().StringVar(&modelFlag, "model", "", "Model to use with the ollama provider")
}

var longServe = `
Serve an A2A agent with the configured capability provider.

Examples:
  # Serve the dice agent with the LLM provider on port 8080
  aloha serve --agent dice --provider ollama

  # Serve the echo agent without an LLM
  aloha serve --agent echo --provider echo --port 3210
`
