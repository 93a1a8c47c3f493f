// Package app wires the AYumeRNA API commands.
package app

import (
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	ayumerna "github.com/Lovelumine/AYumeRNA"
	"github.com/Lovelumine/AYumeRNA/catalog"
	"github.com/Lovelumine/AYumeRNA/config"
	"github.com/Lovelumine/AYumeRNA/metrics"
	"github.com/Lovelumine/AYumeRNA/policy"
)

// NewRootCmd creates the ayume-api command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "ayume-api",
		Short:             "AYumeRNA API server",
		Long:              `AYumeRNA API server: bearer-secured RNA task submission with a published OpenAPI description.`,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().String("config", "", "Path to a YAML configuration file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newOpenAPICmd())
	root.AddCommand(newTokenCmd())
	return root
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

// apiInfo applies the configured metadata over the built-in values.
func apiInfo(cfg config.APIConfig) ayumerna.Info {
	info := catalog.Info()
	if cfg.Title != "" {
		info.Title = cfg.Title
	}
	if cfg.Version != "" {
		info.Version = cfg.Version
	}
	if cfg.Description != "" {
		info.Description = cfg.Description
	}
	return info
}

// newEngine registers the AYumeRNA operations. bearer may be nil for
// commands that only describe the API.
func newEngine(cfg *config.Config, logger *zap.Logger, bearer policy.Authenticator, services catalog.Services) (*ayumerna.Engine, error) {
	swagger, err := catalog.NewSwagger(apiInfo(cfg.API))
	if err != nil {
		return nil, fmt.Errorf("failed to register security schemes: %w", err)
	}
	for _, url := range cfg.API.Servers {
		swagger.Servers = append(swagger.Servers, &openapi3.Server{URL: url})
	}

	options := []ayumerna.Option{
		ayumerna.WithLogger(logger),
		ayumerna.WithDocsURLs(cfg.Docs.OpenAPIURL, cfg.Docs.DocsURL, cfg.Docs.RedocURL),
	}
	if bearer != nil {
		options = append(options, ayumerna.WithAuthenticator(catalog.BearerAuth, bearer))
	}
	if cfg.Metrics.Enabled {
		options = append(options, ayumerna.WithMetrics(metrics.New()), ayumerna.WithMetricsURL(cfg.Metrics.URL))
	}

	e := ayumerna.New(swagger, options...)
	catalog.Mount(e, services)
	return e, nil
}
