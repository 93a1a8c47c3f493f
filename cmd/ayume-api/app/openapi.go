package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Lovelumine/AYumeRNA/catalog"
)

func newOpenAPICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Print the API description",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			e, err := newEngine(cfg, zap.NewNop(), nil, catalog.Services{})
			if err != nil {
				return err
			}
			desc, err := e.Describe()
			if err != nil {
				return err
			}

			var out []byte
			switch format {
			case "json":
				out, err = desc.MarshalJSON()
			case "yaml", "yml":
				out, err = desc.MarshalYaml()
			default:
				return fmt.Errorf("unsupported format %q (json or yaml)", format)
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(out, '\n'))
			return err
		},
	}
	cmd.Flags().String("format", "json", "Output format (json or yaml)")
	return cmd
}
