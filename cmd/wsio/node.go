package main

import (
	"net/http"

	"github.com/spf13/cobra"
)

func newNodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Manage storage nodes",
	}
	cmd.AddCommand(newNodeCreateCmd(), newNodeListCmd(), newNodeDeleteCmd())
	return cmd
}

func newNodeCreateCmd() *cobra.Command {
	var (
		kind      string
		region    string
		stsAPIURL string
		roleARN   string
	)

	cmd := &cobra.Command{
		Use:   "create <name> <endpoint> <access-key> <secret-key>",
		Short: "Register a storage node after validating its endpoint",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient()
			var node map[string]any
			err := client.do(cmd.Context(), http.MethodPost, "/api/v1/nodes", map[string]string{
				"name":        args[0],
				"endpoint":    args[1],
				"access_key":  args[2],
				"secret_key":  args[3],
				"kind":        kind,
				"region":      region,
				"sts_api_url": stsAPIURL,
				"role_arn":    roleARN,
			}, &node)
			if err != nil {
				return err
			}
			return printJSON(node)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "minio", "backend kind (minio or s3)")
	cmd.Flags().StringVar(&region, "region-name", "", "backend region")
	cmd.Flags().StringVar(&stsAPIURL, "sts-api-url", "", "separate token-exchange endpoint")
	cmd.Flags().StringVar(&roleARN, "role-arn", "", "role assumed for temporary credentials")
	return cmd
}

func newNodeListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered storage nodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var nodes []map[string]any
			if err := newAPIClient().do(cmd.Context(), http.MethodGet, "/api/v1/nodes", nil, &nodes); err != nil {
				return err
			}
			return printJSON(nodes)
		},
	}
}

func newNodeDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a storage node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newAPIClient().do(cmd.Context(), http.MethodDelete, "/api/v1/nodes/"+args[0], nil, nil)
		},
	}
}
