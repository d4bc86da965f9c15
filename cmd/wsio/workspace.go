package main

import (
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

func newWorkspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workspace",
		Aliases: []string{"ws"},
		Short:   "Manage workspaces",
	}
	cmd.AddCommand(newWorkspaceCreateCmd(), newWorkspaceListCmd(), newWorkspaceDeleteCmd())
	return cmd
}

func newWorkspaceCreateCmd() *cobra.Command {
	var (
		rootType string
		basePath string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ws map[string]any
			err := newAPIClient().do(cmd.Context(), http.MethodPost, "/api/v1/workspaces", map[string]string{
				"name":      args[0],
				"root_type": rootType,
				"base_path": basePath,
			}, &ws)
			if err != nil {
				return err
			}
			return printJSON(ws)
		},
	}

	cmd.Flags().StringVar(&rootType, "root-type", "private", "hosting root type")
	cmd.Flags().StringVar(&basePath, "base-path", "", "existing prefix to map (unmanaged roots only)")
	return cmd
}

func newWorkspaceListCmd() *cobra.Command {
	var like string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workspaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/workspaces"
			if like != "" {
				path += "?like=" + url.QueryEscape(like)
			}
			var list []map[string]any
			if err := newAPIClient().do(cmd.Context(), http.MethodGet, path, nil, &list); err != nil {
				return err
			}
			return printJSON(list)
		},
	}

	cmd.Flags().StringVar(&like, "like", "", "match workspaces by name substring")
	return cmd
}

func newWorkspaceDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newAPIClient().do(cmd.Context(), http.MethodDelete, "/api/v1/workspaces/"+args[0], nil, nil)
		},
	}
}
