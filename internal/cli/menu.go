package cli

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"toolbelt/internal/platform"
	"toolbelt/internal/tools"
	"toolbelt/internal/tui"
	"toolbelt/internal/version"
)

// runMenu is the root command: an interactive menu loop on a terminal, a
// status report plus a hint everywhere else.
func runMenu(cmd *cobra.Command, _ []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}

	if outputJSON || !tui.IsTerminal(os.Stdout) {
		if err := writeStatuses(cmd, env); err != nil {
			return err
		}
		if !outputJSON {
			fmt.Fprintln(cmd.OutOrStdout(), "\nNo terminal for the menu. Run a tool with: toolbelt run <tool>")
		}
		return nil
	}

	plat, err := platform.Detect()
	if err != nil {
		return err
	}

	logger, closeLog := sessionLog(env.paths, cmd.ErrOrStderr())
	defer closeLog()

	check := maybeCheckUpdates(cmd, env, logger)

	for {
		items := menuItems(env, plat, check)
		item, chosen, err := tui.RunMenu(tui.NewMenu("toolbelt "+version.Version, items))
		if err != nil {
			return err
		}
		if !chosen || item.Action == tui.ActionQuit {
			return nil
		}

		// The menu program has fully released the terminal here.
		switch item.Action {
		case tui.ActionRunTool:
			tool, ok := tools.Lookup(item.Tool)
			if !ok {
				continue
			}
			if err := launchTool(cmd, env, plat, logger, tool, nil); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
				waitForEnter(cmd)
			}
		case tui.ActionUpdate:
			if err := updateAll(cmd, env, plat, logger); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
			} else {
				check.Clear()
			}
			waitForEnter(cmd)
		case tui.ActionSettings:
			if err := showSettings(cmd, env); err != nil {
				return err
			}
			waitForEnter(cmd)
		}
	}
}

func menuItems(env environment, plat platform.Descriptor, check *updateCheck) []tui.MenuItem {
	statuses := tools.Detect(env.paths.CacheRoot, plat, env.preferSystem())
	installed := make(map[string]bool, len(statuses))
	for _, st := range statuses {
		installed[st.Tool] = st.Installed
	}

	var items []tui.MenuItem
	for _, tool := range tools.All() {
		item := tui.MenuItem{
			Label:  "Run " + tool.Name,
			Detail: tool.Summary,
			Action: tui.ActionRunTool,
			Tool:   tool.Name,
		}
		switch {
		case !installed[tool.Name]:
			item.Badge = "not installed"
		case check.IsOutdated(tool.Name):
			item.Badge = "update available"
		}
		items = append(items, item)
	}

	return append(items,
		tui.MenuItem{Label: "Update binaries", Action: tui.ActionUpdate},
		tui.MenuItem{Label: "Settings", Action: tui.ActionSettings},
		tui.MenuItem{Label: "Quit", Action: tui.ActionQuit},
	)
}

func showSettings(cmd *cobra.Command, env environment) error {
	data, err := env.cfg.Marshal()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "# %s\n", env.paths.ConfigFile)
	fmt.Fprint(out, string(data))
	return nil
}

func waitForEnter(cmd *cobra.Command) {
	fmt.Fprint(cmd.OutOrStdout(), "\n[enter] to return to the menu ")
	reader := bufio.NewReader(cmd.InOrStdin())
	_, _ = reader.ReadString('\n')
}
