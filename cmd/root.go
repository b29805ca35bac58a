// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/fastwork-cli/internal/auth"
	"github.com/xkilldash9x/fastwork-cli/internal/browser"
	"github.com/xkilldash9x/fastwork-cli/internal/config"
	"github.com/xkilldash9x/fastwork-cli/internal/observability"
)

// LauncherFactory builds the browser launcher for a resolved configuration.
type LauncherFactory func(cfg *config.Config, logger *zap.Logger) browser.Launcher

// chromeLauncher is the production factory.
func chromeLauncher(cfg *config.Config, logger *zap.Logger) browser.Launcher {
	return browser.NewChromeLauncher(cfg.Browser, cfg.Network, logger)
}

// app is the state shared by the commands of one root command instance.
type app struct {
	v           *viper.Viper
	cfgFile     string
	cfg         *config.Config
	logger      *zap.Logger
	newLauncher LauncherFactory
}

// credential returns the configured login, or nil when none was supplied.
func (a *app) credential() *auth.Credential {
	if a.cfg.Auth.Identifier == "" && a.cfg.Auth.Secret == "" {
		return nil
	}
	return &auth.Credential{Identifier: a.cfg.Auth.Identifier, Secret: a.cfg.Auth.Secret}
}

// NewRootCommand builds a fresh command tree driving Chrome.
func NewRootCommand() *cobra.Command {
	return newRootCommand(chromeLauncher)
}

func newRootCommand(launchers LauncherFactory) *cobra.Command {
	a := &app{v: viper.New(), newLauncher: launchers}

	rootCmd := &cobra.Command{
		Use:   "fastwork-cli",
		Short: "Automates a fastwork.id seller account from the command line.",
		Long: `fastwork-cli logs in to fastwork.id once, keeps the session on disk, and
reads search results, seller metrics, products, orders and messages as JSON.
It can also edit products, send messages and answer messages by keyword.`,
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd); err != nil {
				observability.InitializeLogger(config.NewDefaultConfig().Logger)
				return err
			}
			observability.InitializeLogger(a.cfg.Logger)
			a.logger = observability.GetLogger()
			a.logger.Debug("Starting fastwork-cli", zap.String("version", Version), zap.String("command", cmd.CommandPath()))
			return nil
		},
	}
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	flags.Bool("headless", true, "run the browser without a window")
	flags.String("session", "", "session snapshot file (file backend)")
	flags.String("account", "", "key of the saved session to use")
	flags.String("email", "", "login identifier (falls back to FASTWORK_EMAIL)")
	flags.String("password", "", "login secret (falls back to FASTWORK_PASSWORD)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")

	bindings := map[string]string{
		"browser.headless": "headless",
		"session.file":     "session",
		"session.account":  "account",
		"auth.identifier":  "email",
		"auth.secret":      "password",
		"logger.level":     "log-level",
	}
	for key, flag := range bindings {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(
		newRunCmd(a),
		newLoginCmd(a),
		newStatusCmd(a),
		newSearchCmd(a),
		newProfileCmd(a),
		newGetCmd(a),
		newEditCmd(a),
		newSendCmd(a),
		newReplyCmd(a),
		newParseCmd(a),
		newFleetCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// load reads the config file, environment and flags into a.cfg.
func (a *app) load(cmd *cobra.Command) error {
	config.SetDefaults(a.v)
	config.BindEnv(a.v)

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
	}
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return &configError{err: fmt.Errorf("error reading config file: %w", err)}
		}
	}

	cfg, err := config.NewConfigFromViper(a.v)
	if err != nil {
		return &configError{err: err}
	}
	a.cfg = cfg
	return nil
}

// Execute runs the command line. A failure is written to stdout as an error
// document and returned so main can choose the exit status.
func Execute(ctx context.Context) error {
	return execute(ctx, NewRootCommand(), os.Args[1:], os.Stdout)
}

func execute(ctx context.Context, rootCmd *cobra.Command, args []string, stdout io.Writer) error {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
		if writeErr := WriteError(stdout, err); writeErr != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	observability.Sync()
	return err
}
