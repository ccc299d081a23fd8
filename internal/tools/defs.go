// Package tools defines the companion tool suite the launcher manages.
package tools

import "strings"

// Tool describes one managed companion tool.
type Tool struct {
	Name    string
	Title   string
	Summary string
	Aliases []string
}

var registry = []Tool{
	{
		Name:    "scout",
		Title:   "Scout",
		Summary: "interactive file explorer",
		Aliases: []string{"fs", "files"},
	},
	{
		Name:    "gauge",
		Title:   "Gauge",
		Summary: "disk usage analyzer",
		Aliases: []string{"du", "disk"},
	},
}

// All returns the managed tools in menu order.
func All() []Tool {
	out := make([]Tool, len(registry))
	copy(out, registry)
	return out
}

// Names returns the tool names in menu order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for _, tool := range registry {
		names = append(names, tool.Name)
	}
	return names
}

// Lookup resolves a name or alias to a tool definition.
func Lookup(nameOrAlias string) (Tool, bool) {
	needle := strings.ToLower(strings.TrimSpace(nameOrAlias))
	for _, tool := range registry {
		if tool.Name == needle {
			return tool, true
		}
		for _, alias := range tool.Aliases {
			if alias == needle {
				return tool, true
			}
		}
	}
	return Tool{}, false
}
