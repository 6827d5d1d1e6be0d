package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/selivandex/sentiment-fusion/internal/api"
)

func tokenCMD() *cobra.Command {
	var ttl time.Duration

	var token = &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue an API bearer token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}

			signed, err := api.SignToken(args[0], []byte(cfg.Server.JWTSecret), ttl)
			if err != nil {
				return err
			}
			fmt.Println(signed)
			return nil
		},
	}
	token.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	return token
}
