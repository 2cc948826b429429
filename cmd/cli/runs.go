package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iho/bankrecon/internal/adapter/http/dto"
	"github.com/iho/bankrecon/internal/adapter/spreadsheet"
	"github.com/iho/bankrecon/internal/domain"
)

// mappingFile is the JSON document passed with --mapping.
type mappingFile struct {
	Extract dto.ExtractMappingRequest `json:"extract"`
	System  dto.SystemMappingRequest  `json:"system"`
}

func loadMapping(path string) (mappingFile, error) {
	var m mappingFile
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("invalid mapping file %s: %w", path, err)
	}
	return m, nil
}

// readSheet parses a local workbook or CSV into raw rows.
func readSheet(path, sheet string, headerRow int) ([]domain.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	res, err := spreadsheet.Parse(f, path, spreadsheet.Options{Sheet: sheet, HeaderRow: headerRow})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res.Rows, nil
}

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Reconciliation run operations",
	}

	cmd.AddCommand(
		createRunCmd(),
		listRunsCmd(),
		getRunCmd(),
		runActionCmd("close", "Close a run; it becomes read-only"),
		runActionCmd("reopen", "Reopen a closed run"),
		exportRunCmd(),
		excludeCmd(),
		matchCmd(),
		commentCmd(),
	)
	return cmd
}

func createRunCmd() *cobra.Command {
	var (
		req          dto.CreateRunRequest
		windowDays   int
		extractPath  string
		extractSheet string
		extractRow   int
		systemPath   string
		systemSheet  string
		systemRow    int
		mappingPath  string
		requestPath  string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a run from a bank statement and a ledger export",
		Example: `  bankrecon-cli runs create --title "Enero" --bank "Banco Norte" --cut-date 2024-01-31 \
    --extract extracto.xlsx --system mayor.csv --mapping mapping.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if requestPath != "" {
				data, err := os.ReadFile(requestPath)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(data, &req); err != nil {
					return fmt.Errorf("invalid request file %s: %w", requestPath, err)
				}
			} else {
				if extractPath == "" || systemPath == "" || mappingPath == "" {
					return fmt.Errorf("--extract, --system and --mapping are required without --request")
				}
				mapping, err := loadMapping(mappingPath)
				if err != nil {
					return err
				}
				if req.ExtractRows, err = readSheet(extractPath, extractSheet, extractRow); err != nil {
					return err
				}
				if req.SystemRows, err = readSheet(systemPath, systemSheet, systemRow); err != nil {
					return err
				}
				req.ExtractMapping = mapping.Extract
				req.SystemMapping = mapping.System
			}
			if cmd.Flags().Changed("window") {
				req.WindowDays = &windowDays
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			var result dto.RunResultResponse
			if err := newClient().do(ctx, http.MethodPost, "/runs", req, &result); err != nil {
				return err
			}

			s := result.Summary
			fmt.Printf("Run %s created\n", s.RunID)
			fmt.Printf("Matched: %d  Only in extract: %d  Overdue: %d  Deferred: %d\n",
				s.Matched, s.OnlyExtract, s.SystemOverdue, s.SystemDeferred)
			for _, w := range result.Warnings {
				fmt.Printf("warning: %s row %d %s: %s\n", w.Side, w.Row, w.Column, w.Reason)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Title, "title", "", "Run title")
	f.StringVar(&req.BankName, "bank", "", "Bank name")
	f.StringVar(&req.AccountRef, "account", "", "Account reference")
	f.StringVar(&req.CutDate, "cut-date", "", "Cut date (YYYY-MM-DD)")
	f.StringVar(&req.DateBasis, "date-basis", "", "System date used for matching: due or issue")
	f.IntVar(&windowDays, "window", 0, "Matching window in days")
	f.StringSliceVar(&req.ExcludeConcepts, "exclude", nil, "Concepts to exclude from the extract")
	f.StringSliceVar(&req.EnabledCategoryIDs, "category", nil, "Expense category ids to enable")
	f.StringVar(&extractPath, "extract", "", "Bank statement file (.xlsx or .csv)")
	f.StringVar(&extractSheet, "extract-sheet", "", "Sheet to read from the statement workbook")
	f.IntVar(&extractRow, "extract-header-row", 1, "Header row of the statement (1-based)")
	f.StringVar(&systemPath, "system", "", "Ledger export file (.xlsx or .csv)")
	f.StringVar(&systemSheet, "system-sheet", "", "Sheet to read from the ledger workbook")
	f.IntVar(&systemRow, "system-header-row", 1, "Header row of the ledger (1-based)")
	f.StringVar(&mappingPath, "mapping", "", `Column mapping JSON: {"extract": {...}, "system": {...}}`)
	f.StringVar(&requestPath, "request", "", "Full create request as JSON; file flags are ignored")

	return cmd
}

func listRunsCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs visible to the caller",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			q := url.Values{}
			q.Set("limit", fmt.Sprint(limit))
			q.Set("offset", fmt.Sprint(offset))

			var runs []dto.RunListItem
			if err := newClient().do(ctx, http.MethodGet, "/runs?"+q.Encode(), nil, &runs); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tBANK\tCUT DATE\tSTATUS\tMATCHED\tONLY EXTRACT\tOVERDUE")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
					r.ID, truncate(r.Title, 30), truncate(r.BankName, 20), r.CutDate, r.Status,
					r.Summary.Matched, r.Summary.OnlyExtract, r.Summary.SystemOverdue)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum runs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Runs to skip")
	return cmd
}

func getRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get RUN_ID",
		Short: "Show a run with its lines, matches and pending items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			var run dto.RunResponse
			if err := newClient().do(ctx, http.MethodGet, "/runs/"+url.PathEscape(args[0]), nil, &run); err != nil {
				return err
			}
			printJSON(run)
			return nil
		},
	}
}

func runActionCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " RUN_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			var run dto.RunResponse
			if err := newClient().do(ctx, http.MethodPost, "/runs/"+url.PathEscape(args[0])+"/"+action, nil, &run); err != nil {
				return err
			}
			fmt.Printf("Run %s is %s\n", run.ID, run.Status)
			return nil
		},
	}
}

func exportRunCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export RUN_ID",
		Short: "Download the run workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			data, _, err := newClient().send(ctx, http.MethodGet, "/runs/"+url.PathEscape(args[0])+"/export", nil)
			if err != nil {
				return err
			}
			if output == "" {
				output = args[0] + ".xlsx"
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s (%d bytes)\n", output, len(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default RUN_ID.xlsx)")
	return cmd
}

func excludeCmd() *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   "exclude RUN_ID CONCEPT...",
		Short: "Exclude extract lines by concept, or remove an exclusion with --remove",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			client := newClient()
			path := "/runs/" + url.PathEscape(args[0]) + "/exclusions"
			var run dto.RunResponse

			if remove {
				for _, concept := range args[1:] {
					if err := client.do(ctx, http.MethodDelete, path, dto.RemoveConceptRequest{Concept: concept}, &run); err != nil {
						return err
					}
				}
			} else if err := client.do(ctx, http.MethodPost, path, dto.ExcludeConceptsRequest{Concepts: args[1:]}, &run); err != nil {
				return err
			}

			fmt.Printf("Excluded concepts: %v\n", run.ExcludeConcepts)
			return nil
		},
	}

	cmd.Flags().BoolVar(&remove, "remove", false, "Remove the concepts from the exclusion list")
	return cmd
}

func commentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comment RUN_ID MESSAGE...",
		Short: "Post a message to the run's discussion thread",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			req := dto.AddMessageRequest{Body: strings.Join(args[1:], " ")}
			var msg dto.MessageResponse
			if err := newClient().do(ctx, http.MethodPost, "/runs/"+url.PathEscape(args[0])+"/messages", req, &msg); err != nil {
				return err
			}
			fmt.Printf("Message %s posted by %s\n", msg.ID, msg.AuthorID)
			return nil
		},
	}
}

func matchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "match RUN_ID SYSTEM_LINE_ID [EXTRACT_LINE_ID...]",
		Short: "Set the extract lines matched to a system line; none clears the match",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			req := dto.SetMatchRequest{SystemLineID: args[1], ExtractLineIDs: args[2:]}
			if req.ExtractLineIDs == nil {
				req.ExtractLineIDs = []string{}
			}

			var run dto.RunResponse
			if err := newClient().do(ctx, http.MethodPut, "/runs/"+url.PathEscape(args[0])+"/matches", req, &run); err != nil {
				return err
			}
			fmt.Printf("Run %s: %d matches, %d extract lines unmatched\n", run.ID, len(run.Matches), len(run.UnmatchedExtract))
			return nil
		},
	}
}
