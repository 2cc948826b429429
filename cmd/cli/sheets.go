package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/bankrecon/internal/adapter/spreadsheet"
	"github.com/iho/bankrecon/internal/domain"
	"github.com/iho/bankrecon/internal/infrastructure/auth"
)

func sheetsCmd() *cobra.Command {
	var (
		sheet     string
		headerRow int
		preview   int
	)

	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Inspect spreadsheet files locally",
	}

	inspect := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Show the sheets, detected columns and first rows of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := spreadsheet.Parse(f, args[0], spreadsheet.Options{Sheet: sheet, HeaderRow: headerRow})
			if err != nil {
				return err
			}

			if res.Sheet != "" {
				fmt.Printf("Sheets: %s\n", strings.Join(res.Sheets, ", "))
				fmt.Printf("Sheet: %s\n", res.Sheet)
			}
			fmt.Printf("Columns: %s\n", strings.Join(res.Columns, " | "))
			fmt.Printf("Rows: %d\n", len(res.Rows))

			rows := res.Rows
			if len(rows) > preview {
				rows = rows[:preview]
			}
			for i, row := range rows {
				cells := make([]string, len(res.Columns))
				for j, col := range res.Columns {
					cells[j] = truncate(fmt.Sprint(row[col]), 24)
				}
				fmt.Printf("%4d  %s\n", i+1, strings.Join(cells, " | "))
			}
			return nil
		},
	}

	inspect.Flags().StringVar(&sheet, "sheet", "", "Sheet name (default first sheet)")
	inspect.Flags().IntVar(&headerRow, "header-row", 1, "Header row (1-based)")
	inspect.Flags().IntVar(&preview, "preview", 5, "Rows to print")

	cmd.AddCommand(inspect)
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		secret string
		email  string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token USER_ID",
		Short: "Mint a bearer token for USER_ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("--secret or JWT_SECRET is required")
			}
			signed, err := auth.NewJWTManager(secret, ttl).Generate(&domain.User{ID: args[0], Email: email})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "Signing secret")
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
