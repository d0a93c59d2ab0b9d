package cli

import (
	"github.com/alexanderramin/trilium-bot/internal/app"
	"github.com/alexanderramin/trilium-bot/internal/config"
	"github.com/alexanderramin/trilium-bot/internal/log"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

// Loader builds the application once flags are parsed.
type Loader func(cfg config.Config, logger zerolog.Logger) (*app.App, error)

// runtime carries the parsed configuration from the root command to its
// subcommands, which build the App on demand.
type runtime struct {
	cfg  *config.Config
	load Loader
}

// open validates the configuration and builds the App. serving selects the
// stricter validation that includes the Telegram settings.
func (rt *runtime) open(cmd *cobra.Command, serving bool) (*app.App, error) {
	validate := rt.cfg.ValidateStore
	if serving {
		validate = rt.cfg.Validate
	}
	if err := validate(); err != nil {
		return nil, err
	}
	logger := log.New(log.Options{Level: rt.cfg.LogLevel, Development: rt.cfg.IsDevelopment()}, cmd.ErrOrStderr())
	return rt.load(*rt.cfg, logger)
}

// NewRootCmd creates the top-level "trilium-bot" command. cfg holds the
// environment's values; flags parsed by the command override them.
func NewRootCmd(cfg *config.Config, load Loader) *cobra.Command {
	if load == nil {
		load = app.New
	}
	rt := &runtime{cfg: cfg, load: load}

	root := &cobra.Command{
		Use:           "trilium-bot",
		Short:         "Telegram bot for Trilium notes and daily checklists",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cfg.BindFlags(root.PersistentFlags())

	root.AddCommand(
		newServeCmd(rt),
		newRolloverCmd(rt),
		newChecklistCmd(rt),
		newVersionCmd(),
	)

	return root
}
