package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pleaseai/mcp-please/internal/config"
	"github.com/pleaseai/mcp-please/internal/oauthmgr"
	"github.com/pleaseai/mcp-please/internal/tokenstore"
)

// newMCPCmd groups upstream-server-config management, grounded on
// stacklok-toolhive's cmd/thv/app/mcp.go subcommand-group pattern.
func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Manage upstream MCP server configuration",
	}
	cmd.AddCommand(newMCPAddCmd())
	cmd.AddCommand(newMCPRemoveCmd())
	cmd.AddCommand(newMCPListCmd())
	cmd.AddCommand(newMCPGetCmd())
	cmd.AddCommand(newMCPAuthCmd())
	return cmd
}

func mcpConfigPath(scope config.Scope, cwd string) string {
	paths := config.ResolvePaths(cwd)
	switch scope {
	case config.ScopeUser:
		return paths.User
	case config.ScopeLocal:
		return paths.Local
	default:
		return paths.Project
	}
}

func readScopedFile(path string) (config.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config.File{MCPServers: map[string]config.UpstreamServerConfig{}}, nil
		}
		return config.File{}, fmt.Errorf("read %s: %w", path, err)
	}
	var f config.File
	if err := json.Unmarshal(data, &f); err != nil {
		return config.File{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if f.MCPServers == nil {
		f.MCPServers = map[string]config.UpstreamServerConfig{}
	}
	return f, nil
}

func writeScopedFile(path string, f config.File) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}

type mcpAddFlags struct {
	url     string
	command string
	args    []string
	scope   string
	bearer  string
	oauth   bool
}

func newMCPAddCmd() *cobra.Command {
	flags := &mcpAddFlags{}
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add an upstream MCP server to a scoped config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCPAdd(flags, args[0])
		},
	}
	cmd.Flags().StringVar(&flags.url, "url", "", "Upstream URL (http/sse transport)")
	cmd.Flags().StringVar(&flags.command, "command", "", "Upstream launch command (stdio transport)")
	cmd.Flags().StringSliceVar(&flags.args, "arg", nil, "Argument to the launch command, repeatable")
	cmd.Flags().StringVar(&flags.scope, "scope", "local", "Config scope: local, project, or user")
	cmd.Flags().StringVar(&flags.bearer, "bearer-token", "", "Static bearer token for authorization")
	cmd.Flags().BoolVar(&flags.oauth, "oauth", false, "Require OAuth 2.1 authorization for this upstream")
	return cmd
}

func runMCPAdd(flags *mcpAddFlags, name string) error {
	if flags.url == "" && flags.command == "" {
		return fmt.Errorf("one of --url or --command is required")
	}

	cwd, err := currentDir()
	if err != nil {
		return err
	}
	scope, err := resolveScope(flags.scope, "local", "project", "user")
	if err != nil {
		return err
	}
	path := mcpConfigPath(scope, cwd)

	f, err := readScopedFile(path)
	if err != nil {
		return err
	}

	upstream := config.UpstreamServerConfig{
		URL:     flags.url,
		Command: flags.command,
		Args:    flags.args,
	}
	switch {
	case flags.oauth:
		upstream.Authorization = &config.Authorization{Type: config.AuthOAuth2}
	case flags.bearer != "":
		upstream.Authorization = &config.Authorization{Type: config.AuthBearer, Token: flags.bearer}
	}

	f.MCPServers[name] = upstream
	if err := writeScopedFile(path, f); err != nil {
		return err
	}
	fmt.Printf("added %q to %s\n", name, path)
	return nil
}

func newMCPRemoveCmd() *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove an upstream MCP server from a scoped config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cwd, err := currentDir()
			if err != nil {
				return err
			}
			sc, err := resolveScope(scope, "local", "project", "user")
			if err != nil {
				return err
			}
			path := mcpConfigPath(sc, cwd)
			f, err := readScopedFile(path)
			if err != nil {
				return err
			}
			if _, ok := f.MCPServers[args[0]]; !ok {
				return fmt.Errorf("no server named %q in %s", args[0], path)
			}
			delete(f.MCPServers, args[0])
			if err := writeScopedFile(path, f); err != nil {
				return err
			}
			fmt.Printf("removed %q from %s\n", args[0], path)
			return nil
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "local", "Config scope: local, project, or user")
	return cmd
}

func newMCPListCmd() *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List upstream MCP servers visible to a scope",
		RunE: func(_ *cobra.Command, _ []string) error {
			cwd, err := currentDir()
			if err != nil {
				return err
			}
			resolved, err := config.Load(cwd)
			if err != nil {
				return err
			}
			sc, err := resolveScope(scope, "project", "user")
			if err != nil {
				return err
			}
			merged := resolved.MergeForScope(sc)
			names := append([]string(nil), merged.Order...)
			sort.Strings(names)
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "project", "Index scope whose visible servers to list: project or user")
	return cmd
}

func newMCPGetCmd() *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Print one upstream server's resolved configuration as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cwd, err := currentDir()
			if err != nil {
				return err
			}
			resolved, err := config.Load(cwd)
			if err != nil {
				return err
			}
			sc, err := resolveScope(scope, "project", "user")
			if err != nil {
				return err
			}
			merged := resolved.MergeForScope(sc)
			cfg, ok := merged.Servers[args[0]]
			if !ok {
				return fmt.Errorf("no server named %q visible in scope %q", args[0], sc)
			}
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "project", "Index scope to resolve the server within: project or user")
	return cmd
}

func newMCPAuthCmd() *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "auth <name>",
		Short: "Run the OAuth 2.1 authorization flow for an upstream server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCPAuth(cmd.Context(), scope, args[0])
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "project", "Index scope to resolve the server within: project or user")
	return cmd
}

func runMCPAuth(ctx context.Context, scope, name string) error {
	cwd, err := currentDir()
	if err != nil {
		return err
	}
	resolved, err := config.Load(cwd)
	if err != nil {
		return err
	}
	sc, err := resolveScope(scope, "project", "user")
	if err != nil {
		return err
	}
	merged := resolved.MergeForScope(sc)
	cfg, ok := merged.Servers[name]
	if !ok {
		return fmt.Errorf("no server named %q visible in scope %q", name, sc)
	}
	if cfg.Authorization == nil || cfg.Authorization.Type != config.AuthOAuth2 {
		return fmt.Errorf("%q is not configured for oauth2 authorization", name)
	}

	oauthCfg := oauthmgr.Config{ServerName: name, ServerURL: cfg.URL}
	if cfg.Authorization.OAuth != nil {
		oauthCfg.Scopes = cfg.Authorization.OAuth.Scopes
		oauthCfg.Resource = cfg.Authorization.OAuth.Resource
		oauthCfg.AuthorizationServer = cfg.Authorization.OAuth.AuthorizationServer
	}

	store := tokenstore.New("")
	mgr := oauthmgr.New(oauthCfg, store)
	if _, err := mgr.Authorize(ctx); err != nil {
		return fmt.Errorf("authorize %q: %w", name, err)
	}
	fmt.Printf("%q authorized\n", name)
	return nil
}
