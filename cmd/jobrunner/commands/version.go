package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vulntor/jobrunner/cmd/jobrunner/internal/format"
	"github.com/vulntor/jobrunner/pkg/version"
)

func newVersionCommand() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:         "version",
		GroupID:     "core",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoStore: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if short {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Version)
				return err
			}

			v := version.Get()
			f := format.FromCommand(cmd)
			return f.PrintData(v, []string{"field", "value"}, [][]string{
				{"version", v.Version},
				{"commit", v.Commit},
				{"build_date", v.BuildDate},
				{"go", v.GoVersion},
			})
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "Print only the version number")
	return cmd
}
