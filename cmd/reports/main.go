package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"interiorDesignAi/internal/config"
	"interiorDesignAi/internal/dataset"
	"interiorDesignAi/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:          "reports",
		Short:        "Inspect and export archived design reports",
		SilenceUsage: true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to a YAML config file (must include database_url)")
	rootCmd.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "Path to a .env file")

	rootCmd.AddCommand(
		newListCmd(flags),
		newDeleteCmd(flags),
		newExportCmd(flags),
	)
	return rootCmd
}

// openStore connects to the report database; the in-memory store would
// always be empty here, so a database URL is required.
func openStore(ctx context.Context, flags *globalFlags) (storage.Store, error) {
	cfg, err := config.Load(flags.configPath, flags.envFile)
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("database_url is required to read reports")
	}
	store, err := storage.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect store: %w", err)
	}
	return store, nil
}

func newListCmd(flags *globalFlags) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the newest reports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer store.Close()

			reports, err := store.ListReports(cmd.Context(), sessionID)
			if err != nil {
				return fmt.Errorf("list reports: %w", err)
			}
			return printReports(cmd.OutOrStdout(), reports)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Only list reports of this session")
	return cmd
}

func printReports(w io.Writer, reports []storage.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSTYLE\tLANG\tRENDERS\tTITLE")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID,
			r.CreatedAt.Format("2006-01-02 15:04"),
			r.Style,
			r.Language,
			len(r.Renders),
			r.Analysis.RedesignConcept.Title,
		)
	}
	return tw.Flush()
}

func newDeleteCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <report-id>...",
		Short: "Delete reports by ID",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer store.Close()

			for _, id := range args {
				if err := store.DeleteReport(cmd.Context(), id); err != nil {
					if errors.Is(err, storage.ErrNotFound) {
						fmt.Fprintf(cmd.ErrOrStderr(), "report %s not found, skipping\n", id)
						continue
					}
					return fmt.Errorf("delete report %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			}
			return nil
		},
	}
}

func newExportCmd(flags *globalFlags) *cobra.Command {
	var (
		outputPath   string
		opts         dataset.Options
		includeEmpty bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export reports as a JSONL prompt/completion dataset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer store.Close()

			reports, err := store.ListReports(cmd.Context(), "")
			if err != nil {
				return fmt.Errorf("fetch reports: %w", err)
			}
			examples, err := dataset.BuildExamples(reports, opts)
			if err != nil {
				return fmt.Errorf("build dataset: %w", err)
			}
			if len(examples) == 0 && !includeEmpty {
				return errors.New("no reports matched the provided filters")
			}
			if err := dataset.WriteJSONL(outputPath, examples); err != nil {
				return fmt.Errorf("write dataset: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d examples to %s\n", len(examples), outputPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&outputPath, "out", "dataset.jsonl", "Where to write the JSONL dataset")
	cmd.Flags().StringVar(&opts.Style, "style", "", "Only export reports requested with this style")
	cmd.Flags().StringVar(&opts.Language, "language", "", "Only export reports in this language (en or ar)")
	cmd.Flags().IntVar(&opts.MinRenders, "min-renders", 0, "Minimum number of archived views")
	cmd.Flags().BoolVar(&opts.SkipInvalid, "skip-invalid", true, "Drop reports whose analysis breaks the response contract")
	cmd.Flags().BoolVar(&includeEmpty, "include-empty", false, "Write an empty file when nothing matches")
	return cmd
}
