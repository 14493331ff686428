package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"
)

// ideConfigPath maps a supported --ide id to the MCP client config file it
// writes into. This is deliberately a minimal file-writer stub: the per-IDE
// installer's discovery/merge/validation logic is out of scope.
var ideConfigPath = map[string]func() string{
	"claude-desktop": func() string {
		return filepath.Join(xdg.Home, "Library", "Application Support", "Claude", "claude_desktop_config.json")
	},
	"cursor": func() string {
		return filepath.Join(xdg.Home, ".cursor", "mcp.json")
	},
	"vscode": func() string {
		return filepath.Join(xdg.Home, ".vscode", "mcp.json")
	},
}

func newInstallCmd() *cobra.Command {
	var ide string
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Write this gateway into an IDE's own MCP configuration file",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInstall(ide)
		},
	}
	cmd.Flags().StringVar(&ide, "ide", "", fmt.Sprintf("Target IDE (%s)", supportedIDEs()))
	return cmd
}

func supportedIDEs() string {
	ids := make([]string, 0, len(ideConfigPath))
	for id := range ideConfigPath {
		ids = append(ids, id)
	}
	return fmt.Sprintf("%v", ids)
}

func runInstall(ide string) error {
	resolve, ok := ideConfigPath[ide]
	if !ok {
		return fmt.Errorf("unsupported --ide %q, must be one of: %s", ide, supportedIDEs())
	}
	path := resolve()

	entry := map[string]any{
		"mcp-please": map[string]any{
			"command": "please",
			"args":    []string{"serve"},
		},
	}

	existing := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &existing)
	}
	servers, _ := existing["mcpServers"].(map[string]any)
	if servers == nil {
		servers = map[string]any{}
	}
	servers["mcp-please"] = entry["mcp-please"]
	existing["mcpServers"] = servers

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	fmt.Printf("installed mcp-please into %s\n", path)
	return nil
}
