package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Majd-SaaS/prospection/internal/classify"
	"github.com/Majd-SaaS/prospection/internal/config"
	"github.com/Majd-SaaS/prospection/internal/db"
	"github.com/Majd-SaaS/prospection/internal/domain"
	"github.com/Majd-SaaS/prospection/internal/engine"
	"github.com/Majd-SaaS/prospection/internal/events"
	"github.com/Majd-SaaS/prospection/internal/ingest"
	"github.com/Majd-SaaS/prospection/internal/migrate"
	"github.com/Majd-SaaS/prospection/internal/queue"
	"github.com/Majd-SaaS/prospection/internal/quota"
	"github.com/Majd-SaaS/prospection/internal/render"
	"github.com/Majd-SaaS/prospection/internal/repo"
	"github.com/Majd-SaaS/prospection/internal/target"
)

var rootCmd = &cobra.Command{
	Use:   "prospect",
	Short: "Prospection CLI",
	Long: `Prospect drives a browser extension to follow LinkedIn company pages and
collects one outcome per page, even though the extension reports back
asynchronously on its own schedule.

A follow run opens each target through a local launcher page, waits for the
extension's report on a loopback callback server, and persists every outcome
incrementally: a CSV result log, a daily quota counter, and (for queue-backed
runs) the queue file rewritten after each completed item.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("PROSPECTION")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(followCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(companiesCmd())
	rootCmd.AddCommand(employeesCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(quotaCmd())
	rootCmd.AddCommand(classifyCmd())
}

func followCmd() *cobra.Command {
	var (
		queueFile       string
		fromDB          string
		dailyLimit      int
		callbackTimeout int
		delayBetween    float64
		displayDuration int
		resultsLog      string
		quotaFile       string
		outputFormat    string
		outputFile      string
	)
	cmd := &cobra.Command{
		Use:   "follow [urls...]",
		Short: "Follow target pages via the browser extension",
		Long: `Follow processes targets one at a time: each URL is normalized, opened
through the local launcher page in the default browser, and the run blocks
until the extension reports the outcome or the callback timeout elapses.
Targets come from arguments, a queue file, or the workspace database
(exactly one source per run).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("daily-limit") {
				dailyLimit = cfg.Run.DailyLimit
			}
			if !cmd.Flags().Changed("callback-timeout") {
				callbackTimeout = cfg.Run.CallbackTimeout
			}
			if !cmd.Flags().Changed("delay-between") {
				delayBetween = cfg.Run.DelayBetween
			}
			if !cmd.Flags().Changed("display-duration") {
				displayDuration = cfg.Run.DisplayDuration
			}
			if !cmd.Flags().Changed("results-log") {
				resultsLog = cfg.Paths.ResultsLog
			}
			if quotaFile == "" {
				quotaFile = cfg.QuotaPath()
			}

			sources := 0
			for _, set := range []bool{len(args) > 0, queueFile != "", fromDB != ""} {
				if set {
					sources++
				}
			}
			if sources != 1 {
				return fmt.Errorf("provide exactly one target source: URLs, --queue-file, or --from-db")
			}

			opts := engine.Options{
				DailyLimit:      dailyLimit,
				CallbackTimeout: time.Duration(callbackTimeout) * time.Second,
				DelayBetween:    time.Duration(delayBetween * float64(time.Second)),
				DisplayDuration: displayDuration,
				QueueFile:       queueFile,
			}
			eng := engine.New(quota.NewTracker(quotaFile, nil), events.ResultLog{Path: resultsLog})

			var targets []string
			switch {
			case queueFile != "":
				targets, err = queue.Read(queueFile)
				if err != nil {
					return err
				}
			case fromDB != "":
				var conn *sql.DB
				targets, conn, err = attachDB(cmd.Context(), workspace, fromDB, eng)
				if err != nil {
					return err
				}
				defer conn.Close()
				if len(targets) == 0 {
					fmt.Println("Nothing to process: all records are already marked processed.")
					return nil
				}
			default:
				targets, err = expandArgs(args)
				if err != nil {
					return err
				}
			}

			outcomes, err := eng.Run(cmd.Context(), targets, opts)
			if err == engine.ErrQuotaReached {
				fmt.Printf("Daily limit of %d reached; no targets processed. Try again tomorrow.\n", dailyLimit)
				return nil
			}
			if err != nil && len(outcomes) == 0 {
				return err
			}

			rendered, renderErr := render.Outcomes(outcomes, outputFormat)
			if renderErr != nil {
				return renderErr
			}
			if err := render.Emit(rendered, outputFile); err != nil {
				return err
			}
			if err != nil {
				return err
			}
			if render.ExitCode(outcomes) != 0 {
				return fmt.Errorf("%d of %d target(s) failed", countErrors(outcomes), len(outcomes))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&queueFile, "queue-file", "", "path to a queue file (one URL per line, rewritten as items complete)")
	cmd.Flags().StringVar(&fromDB, "from-db", "", "process unprocessed records from the workspace database (companies or employees)")
	cmd.Flags().IntVar(&dailyLimit, "daily-limit", 0, "maximum targets per calendar day (0 disables)")
	cmd.Flags().IntVar(&callbackTimeout, "callback-timeout", 120, "seconds to wait for the extension's report")
	cmd.Flags().Float64Var(&delayBetween, "delay-between", 1.5, "seconds to sleep between targets")
	cmd.Flags().IntVar(&displayDuration, "display-duration", 8, "seconds the extension keeps the page open")
	cmd.Flags().StringVar(&resultsLog, "results-log", "", "CSV file to append each outcome to as it completes")
	cmd.Flags().StringVar(&quotaFile, "quota-file", "", "quota state file (default: per-user location)")
	cmd.Flags().StringVar(&outputFormat, "output-format", "table", "final report format (table or json)")
	cmd.Flags().StringVar(&outputFile, "output-file", "", "also write the final report to this file")
	return cmd
}

// expandArgs resolves URL arguments; "-" reads one URL per line from stdin.
func expandArgs(args []string) ([]string, error) {
	var urls []string
	for _, a := range args {
		if a != "-" {
			urls = append(urls, a)
			continue
		}
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			urls = append(urls, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
	}
	urls = target.MergeUnique(urls)
	if len(urls) == 0 {
		return nil, fmt.Errorf("no target URLs provided")
	}
	return urls, nil
}

// attachDB loads unprocessed records of the requested kind and wires the
// engine to flip their processed flag on non-error outcomes. The returned
// connection stays open for the run; the caller closes it.
func attachDB(ctx context.Context, workspace, kind string, eng *engine.Engine) ([]string, *sql.DB, error) {
	conn, err := openDB(workspace)
	if err != nil {
		return nil, nil, err
	}
	r := repo.Repo{DB: conn}
	eng.Events = &events.Writer{DB: conn}

	// Keyed by normalized link: the engine reports outcomes against the
	// normalized URL, not the raw stored one.
	byLink := make(map[string]int64)
	key := func(link string) string {
		if n, err := target.Normalize(link); err == nil {
			return n
		}
		return link
	}
	var targets []string
	switch kind {
	case "companies":
		companies, err := r.FetchUnprocessedCompanies(ctx)
		if err != nil {
			conn.Close()
			return nil, nil, err
		}
		for _, c := range companies {
			targets = append(targets, c.Link)
			byLink[key(c.Link)] = c.ID
		}
		eng.MarkProcessed = func(ctx context.Context, url string) error {
			id, ok := byLink[url]
			if !ok {
				return nil
			}
			return r.MarkCompanyProcessed(ctx, id)
		}
	case "employees":
		employees, err := r.FetchUnprocessedEmployees(ctx)
		if err != nil {
			conn.Close()
			return nil, nil, err
		}
		for _, e := range employees {
			targets = append(targets, e.Link)
			byLink[key(e.Link)] = e.ID
		}
		eng.MarkProcessed = func(ctx context.Context, url string) error {
			id, ok := byLink[url]
			if !ok {
				return nil
			}
			return r.MarkEmployeeProcessed(ctx, id)
		}
	default:
		conn.Close()
		return nil, nil, fmt.Errorf("--from-db must be companies or employees")
	}
	return targets, conn, nil
}

func ingestCmd() *cobra.Command {
	var (
		source          string
		file            string
		companyNameCol  string
		companyLinkCol  string
		employeeLinkCol string
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a CSV export into the workspace database",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := ingest.ForName(source)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("company-name-col") {
				src.CompanyNameCol = companyNameCol
			}
			if cmd.Flags().Changed("company-link-col") {
				src.CompanyLinkCol = companyLinkCol
			}
			if cmd.Flags().Changed("employee-link-col") {
				src.EmployeeLinkCol = employeeLinkCol
			}

			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			records, err := ingest.Parse(f, src)
			if err != nil {
				return err
			}

			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				sum, err := ingest.Loader{Repo: r}.Load(ctx, records)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sum)
				}
				fmt.Printf("Ingested %s: %d companies, %d employees, %d skipped\n",
					file, sum.Companies, sum.Employees, sum.Skipped)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "export provider (builtwith or mantiks)")
	cmd.Flags().StringVar(&file, "file", "", "path to the CSV export")
	cmd.Flags().StringVar(&companyNameCol, "company-name-col", "", "override company name column")
	cmd.Flags().StringVar(&companyLinkCol, "company-link-col", "", "override company link column")
	cmd.Flags().StringVar(&employeeLinkCol, "employee-link-col", "", "override employee link column")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show processing progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				companies, err := r.CompanyStats(ctx)
				if err != nil {
					return err
				}
				employees, err := r.EmployeeStats(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]domain.Stats{
						"companies": companies,
						"employees": employees,
					})
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Kind", "Total", "Processed", "Remaining", "%"})
				tw.AppendRow(table.Row{"companies", companies.Total, companies.Processed, companies.Remaining, fmt.Sprintf("%.1f", companies.Percent)})
				tw.AppendRow(table.Row{"employees", employees.Total, employees.Processed, employees.Remaining, fmt.Sprintf("%.1f", employees.Percent)})
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func companiesCmd() *cobra.Command {
	c := &cobra.Command{Use: "companies", Short: "Inspect company records"}
	c.AddCommand(companiesListCmd())
	return c
}

func companiesListCmd() *cobra.Command {
	var processed bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List companies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				fetch := r.FetchUnprocessedCompanies
				if processed {
					fetch = r.FetchProcessedCompanies
				}
				items, err := fetch(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Link", "Processed"})
				for _, c := range items {
					tw.AppendRow(table.Row{c.ID, c.Name, c.Link, c.Processed})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&processed, "processed", false, "list processed instead of pending records")
	return cmd
}

func employeesCmd() *cobra.Command {
	c := &cobra.Command{Use: "employees", Short: "Inspect employee records"}
	c.AddCommand(employeesListCmd())
	return c
}

func employeesListCmd() *cobra.Command {
	var processed bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List employees",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				fetch := r.FetchUnprocessedEmployees
				if processed {
					fetch = r.FetchProcessedEmployees
				}
				items, err := fetch(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Link", "Company", "Processed"})
				for _, e := range items {
					company := ""
					if e.Company != nil {
						company = e.Company.Name
					}
					tw.AppendRow(table.Row{e.ID, e.Link, company, e.Processed})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&processed, "processed", false, "list processed instead of pending records")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Action log"}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show recent follow attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.LatestEvents(ctx, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Type", "URL", "Status", "Reason"})
				for _, e := range items {
					tw.AppendRow(table.Row{e.TS, e.Type, e.URL, e.Status, e.Reason})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of entries")
	return cmd
}

func classifyCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Evaluate a captured follow-button snapshot",
		Long: `Classify reads a button snapshot JSON (texts, aria_label, aria_pressed,
disabled) from --file or stdin and prints the resulting state. Useful to
check how the extension's capture of an unexpected page would be handled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := os.Stdin
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			var snap classify.ButtonSnapshot
			if err := json.NewDecoder(in).Decode(&snap); err != nil {
				return fmt.Errorf("parse snapshot: %w", err)
			}
			state := classify.Evaluate(snap)
			if viper.GetBool("json") {
				return printJSON(map[string]classify.State{"state": state})
			}
			fmt.Println(state)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "snapshot JSON file (default: stdin)")
	return cmd
}

func quotaCmd() *cobra.Command {
	q := &cobra.Command{Use: "quota", Short: "Daily quota state"}
	q.AddCommand(quotaShowCmd())
	return q
}

func quotaShowCmd() *cobra.Command {
	var dailyLimit int
	var quotaFile string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show today's usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("daily-limit") {
				dailyLimit = cfg.Run.DailyLimit
			}
			if quotaFile == "" {
				quotaFile = cfg.QuotaPath()
			}
			tr := quota.NewTracker(quotaFile, nil)
			remaining := tr.Remaining(dailyLimit)
			if viper.GetBool("json") {
				out := map[string]any{"used": tr.Used(), "limit": dailyLimit}
				if remaining == quota.Unbounded {
					out["remaining"] = "unbounded"
				} else {
					out["remaining"] = remaining
				}
				return printJSON(out)
			}
			if dailyLimit <= 0 {
				fmt.Printf("Used today: %d (no daily limit)\n", tr.Used())
				return nil
			}
			fmt.Printf("Used today: %d of %d (%d remaining)\n", tr.Used(), dailyLimit, remaining)
			return nil
		},
	}
	cmd.Flags().IntVar(&dailyLimit, "daily-limit", 0, "daily limit to compute remaining against")
	cmd.Flags().StringVar(&quotaFile, "quota-file", "", "quota state file (default: per-user location)")
	return cmd
}

// --- helpers ---

func openDB(workspace string) (*sql.DB, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	conn, err := openDB(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func countErrors(outcomes []domain.Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.IsError() {
			n++
		}
	}
	return n
}
