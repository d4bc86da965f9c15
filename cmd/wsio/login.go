package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	var register bool

	cmd := &cobra.Command{
		Use:   "login <username> <password>",
		Short: "Obtain a session token and print an api key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := newAPIClient()

			if register {
				err := client.do(ctx, http.MethodPost, "/api/v1/auth/register", map[string]string{
					"username": args[0],
					"password": args[1],
				}, nil)
				if err != nil {
					return err
				}
			}

			var login struct {
				Token string `json:"token"`
			}
			err := client.do(ctx, http.MethodPost, "/api/v1/auth/login", map[string]string{
				"username": args[0],
				"password": args[1],
			}, &login)
			if err != nil {
				return err
			}
			client.token = login.Token

			var key struct {
				KeyID  string `json:"key_id"`
				Secret string `json:"secret"`
			}
			if err := client.do(ctx, http.MethodPost, "/api/v1/auth/apikeys", nil, &key); err != nil {
				return err
			}

			fmt.Printf("export WSIO_API_KEY=%s:%s\n", key.KeyID, key.Secret)
			return nil
		},
	}

	cmd.Flags().BoolVar(&register, "register", false, "create the account before logging in")
	return cmd
}
