package main

import (
	"bufio"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-sheets/internal/auth"
	"github.com/p-n-ai/pai-sheets/internal/importer"
	"github.com/p-n-ai/pai-sheets/internal/notice"
)

type options struct {
	server     string
	token      string
	userHeader string
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "sheetctl",
		Short:         "Administer a sheets server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", envOr("SHEETS_SERVER_URL", "http://localhost:8080"), "server base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("SHEETS_ADMIN_TOKEN"), "admin bearer token")
	root.PersistentFlags().StringVar(&opts.userHeader, "user-header", envOr("SHEETS_AUTH_USER_HEADER", auth.DefaultUserHeader), "header carrying the user ID")

	root.AddCommand(
		newValidateCmd(),
		newImportCmd(opts),
		newExportCmd(opts),
		newResyncCmd(opts),
		newPurgeCmd(opts),
		newHashTokenCmd(),
	)
	return root
}

func (o *options) client() *client {
	return newClient(o.server, o.token, o.userHeader)
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check sheet documents without importing them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				b, err := importer.LoadFile(path)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (sheet %s, %d problems)\n", path, b.Sheet.ID, len(b.Problems))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files invalid", failed, len(args))
			}
			return nil
		},
	}
}

func newImportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE...",
		Short: "Import sheet documents (JSON or YAML) into the server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			for _, path := range args {
				b, err := importer.LoadFile(path)
				if err != nil {
					return err
				}
				doc, err := importer.Encode(b)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				var res importer.Result
				if err := c.call(cmd.Context(), http.MethodPost, "/api/admin/import", doc, &res); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				verb := "replaced"
				if res.SheetCreated {
					verb = "created"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: sheet %s %s, %d problems (%d new)\n",
					path, res.SheetID, verb, res.Problems, res.ProblemsCreated)
			}
			return nil
		},
	}
}

func newExportCmd(opts *options) *cobra.Command {
	var user, out string
	cmd := &cobra.Command{
		Use:   "export SHEET_ID",
		Short: "Download a user's progress through a sheet as XLSX",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sheetID := args[0]
			if out == "" {
				out = sheetID + "-progress.xlsx"
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			path := "/api/progress/sheets/" + url.PathEscape(sheetID) + "/export"
			n, err := opts.client().download(cmd.Context(), path, user, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(out)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "user ID to export (required)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default SHEET_ID-progress.xlsx)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newResyncCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "resync",
		Short: "Rebuild the location contexts of every progress record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var res struct {
				Updated int `json:"updated"`
			}
			if err := opts.client().call(cmd.Context(), http.MethodPost, "/api/admin/resync", nil, &res); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %d progress records\n", res.Updated)
			return nil
		},
	}
}

func newPurgeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired announcements and jobs now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var res notice.PurgeResult
			if err := opts.client().call(cmd.Context(), http.MethodPost, "/api/admin/purge", nil, &res); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d announcements, %d jobs\n", res.Announcements, res.Jobs)
			return nil
		},
	}
}

func newHashTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-token [TOKEN]",
		Short: "Print the bcrypt hash to set as SHEETS_AUTH_ADMIN_TOKEN_HASH",
		Long:  "Hashes TOKEN, or the first line of stdin when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read token from stdin: %w", err)
				}
				token = strings.TrimSpace(line)
			}
			hash, err := auth.HashToken(token)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
