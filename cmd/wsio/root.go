package main

import (
	"net/http"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "root",
		Short: "Manage workspace roots",
	}
	cmd.AddCommand(newRootCreateCmd(), newRootListCmd())
	return cmd
}

func newRootCreateCmd() *cobra.Command {
	var (
		rootType string
		basePath string
	)

	cmd := &cobra.Command{
		Use:   "create <bucket> <node-name>",
		Short: "Bind a bucket prefix on a node as a workspace root",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var root map[string]any
			err := newAPIClient().do(cmd.Context(), http.MethodPost,
				"/api/v1/nodes/"+args[1]+"/roots", map[string]string{
					"root_type": rootType,
					"bucket":    args[0],
					"base_path": basePath,
				}, &root)
			if err != nil {
				return err
			}
			return printJSON(root)
		},
	}

	cmd.Flags().StringVar(&rootType, "root-type", "private", "root type (public, private or unmanaged)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "prefix inside the bucket, empty for the whole bucket")
	return cmd
}

func newRootListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workspace roots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var roots []map[string]any
			if err := newAPIClient().do(cmd.Context(), http.MethodGet, "/api/v1/roots", nil, &roots); err != nil {
				return err
			}
			return printJSON(roots)
		},
	}
}
