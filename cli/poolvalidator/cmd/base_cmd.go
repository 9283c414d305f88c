package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/alphabill-org/poolvalidator/observability"
)

type poolValidatorApp struct {
	baseCmd    *cobra.Command
	baseConfig *baseConfiguration
}

// New creates a new pool validator application
func New(logF LoggerFactory) *poolValidatorApp {
	baseCmd, baseConfig := newBaseCmd(logF)
	return &poolValidatorApp{baseCmd, baseConfig}
}

// Execute adds all child commands and runs the application
func (a *poolValidatorApp) Execute(ctx context.Context) (err error) {
	defer func() {
		if a.baseConfig.observe != nil {
			err = errors.Join(err, a.baseConfig.observe.Shutdown())
		}
	}()

	a.baseCmd.AddCommand(newRunCmd(a.baseConfig))
	a.baseCmd.AddCommand(newScoresCmd(a.baseConfig))
	a.baseCmd.AddCommand(newVersionCmd())
	return a.baseCmd.ExecuteContext(ctx)
}

func newBaseCmd(logF LoggerFactory) (*cobra.Command, *baseConfiguration) {
	config := &baseConfiguration{loggerBuilder: logF}
	var baseCmd = &cobra.Command{
		Use:           "poolvalidator",
		Short:         "The pool validator CLI",
		Long:          `Pool validator forwards requests to the pool members, scores their responses and commits the scores to the ledger as weights.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// If subcommand does not define PersistentPreRunE, the one from base cmd is used.
			if err := initializeConfig(cmd, config); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			return nil
		},
	}
	config.addConfigurationFlags(baseCmd)

	return baseCmd, config
}

func initializeConfig(cmd *cobra.Command, config *baseConfiguration) error {
	if err := config.initializeConfig(cmd); err != nil {
		return fmt.Errorf("reading configuration: %w", err)
	}

	log, err := config.initLogger(cmd)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	metrics, err := cmd.Flags().GetString(keyMetrics)
	if err != nil {
		return fmt.Errorf("reading flag %q: %w", keyMetrics, err)
	}
	if config.observe, err = observability.New(log, metrics, version); err != nil {
		return fmt.Errorf("initializing observability: %w", err)
	}
	return nil
}

// initializeConfig reads in config file and ENV variables if set.
func (config *baseConfiguration) initializeConfig(cmd *cobra.Command) error {
	v := viper.New()

	config.initConfigFileLocation()

	if config.configFileExists() {
		v.SetConfigFile(config.CfgFile)
	}

	// It's okay if there isn't a config file but it must be valid when present.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	// Flag like --ledger-url binds to an environment variable PV_LEDGER_URL.
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if err := bindFlags(cmd, v); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// Bind each cobra flag to its associated viper configuration (config file and environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var bindFlagErr []error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Name == keyHome || f.Name == keyConfig {
			// "home" and "config" are special configuration values, handled separately.
			return
		}

		// Environment variables can't have dashes in them, so bind them to their equivalent
		// keys with underscores, e.g. --score-db to PV_SCORE_DB
		if strings.Contains(f.Name, "-") {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name, fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
				bindFlagErr = append(bindFlagErr, fmt.Errorf("binding env to flag %q: %w", f.Name, err))
				return
			}
		}

		// Apply the viper config value to the flag when the flag is not set and viper has a value
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				bindFlagErr = append(bindFlagErr, fmt.Errorf("setting flag %q value: %w", f.Name, err))
				return
			}
		}
	})

	return errors.Join(bindFlagErr...)
}
