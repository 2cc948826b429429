package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	baseURL string
	timeout time.Duration
	userID  string
	token   string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bankrecon-cli",
		Short:         "Bank reconciliation CLI tool",
		Long:          `A command line interface for loading statements into the bankrecon API and working through the results.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&baseURL, "url", envOr("BANKRECON_URL", "http://localhost:8080"), "Base URL of the bankrecon API")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	root.PersistentFlags().StringVar(&userID, "user", os.Getenv("BANKRECON_USER"), "Caller id sent as X-User-ID")
	root.PersistentFlags().StringVar(&token, "token", os.Getenv("BANKRECON_TOKEN"), "Bearer token; takes precedence over --user")

	root.AddCommand(runsCmd(), pendingCmd(), sheetsCmd(), tokenCmd())
	return root
}

func newClient() *apiClient {
	return &apiClient{
		baseURL: baseURL,
		user:    userID,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, timeout)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode output: %v\n", err)
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
