package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"toolbelt/internal/platform"
	"toolbelt/internal/tools"
	"toolbelt/internal/tui"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which tools are installed and where they come from",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	return writeStatuses(cmd, env)
}

func writeStatuses(cmd *cobra.Command, env environment) error {
	plat, err := platform.Detect()
	if err != nil {
		return err
	}

	statuses := tools.Detect(env.paths.CacheRoot, plat, env.preferSystem())

	if outputJSON {
		payload := struct {
			Platform  string         `json:"platform"`
			CacheRoot string         `json:"cache_root"`
			Tools     []tools.Status `json:"tools"`
		}{plat.String(), env.paths.CacheRoot, statuses}

		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("encode status json: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Platform: %s\n", plat)
	fmt.Fprintf(out, "Cache:    %s\n\n", env.paths.CacheRoot)

	w := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tINSTALLED\tSOURCE\tVERSION\tPATH")
	for _, st := range statuses {
		installed := "no"
		if st.Installed {
			installed = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			st.Tool, installed,
			tui.NonEmptyOrDash(st.Source), tui.NonEmptyOrDash(st.Version), tui.NonEmptyOrDash(st.Path))
	}
	w.Flush()
	return nil
}
