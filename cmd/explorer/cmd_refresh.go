package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/persistorai/explorer/client"
)

const defaultServerURL = "http://localhost:8080"

func newRefreshCmd() *cobra.Command {
	var (
		serverURL string
		token     string
		opts      client.RefreshOptions
	)

	cmd := &cobra.Command{
		Use:   "refresh <product>",
		Short: "Ask a running server to refresh a product",
		Long: "Queue a background refresh on an explorer server. The admin token is\n" +
			"read from --token or EXPLORER_ADMIN_TOKEN.",
		Args: cobra.ExactArgs(1),
		// Talks to a server; needs no database configuration.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			serverURL, token = resolveServer(serverURL, token)
			if token == "" {
				return fmt.Errorf("an admin token is required (--token or EXPLORER_ADMIN_TOKEN)")
			}

			c := client.New(serverURL, client.WithAdminToken(token), client.WithTimeout(30*time.Second))

			resp, err := c.Products.Refresh(cmd.Context(), args[0], opts)
			switch {
			case client.IsQueueFull(err):
				return fmt.Errorf("a refresh of %s is already pending", args[0])
			case client.IsRateLimited(err):
				return fmt.Errorf("%s was refreshed too recently; try again later", args[0])
			case err != nil:
				return err
			}

			fmt.Printf("%s: %s\n", resp.Product, resp.Status)

			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "url", defaultServerURL, "Explorer server URL (env: EXPLORER_URL)")
	cmd.Flags().StringVar(&token, "token", "", "Admin token (env: EXPLORER_ADMIN_TOKEN)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Recompute every summary, not only changed periods")
	cmd.Flags().BoolVar(&opts.RecreateExtents, "recreate-extents", false,
		"Rescan every dataset of the product instead of only changed ones")
	cmd.Flags().BoolVar(&opts.ResetIncrementalPosition, "reset-incremental-position", false,
		"Scan from the newest dataset already summarised")
	cmd.Flags().DurationVar(&opts.MinimumScanWindow, "minimum-scan-window", 0,
		"Always rescan at least this far back, e.g. 72h")

	return cmd
}

// resolveServer fills the URL and token from the environment when the flags
// were left at their defaults.
func resolveServer(serverURL, token string) (string, string) {
	if serverURL == defaultServerURL {
		if v := os.Getenv("EXPLORER_URL"); v != "" {
			serverURL = v
		}
	}
	if token == "" {
		token = os.Getenv("EXPLORER_ADMIN_TOKEN")
	}
	return serverURL, token
}
