package app

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/agentstation/edimap"
	"github.com/agentstation/edimap/internal/cmd/output"
	"github.com/agentstation/edimap/internal/gridio"
	"github.com/agentstation/edimap/internal/loaders"
	"github.com/agentstation/edimap/pkg/edi"
	"github.com/agentstation/edimap/pkg/errors"
	"github.com/agentstation/edimap/pkg/logging"
)

// reconcileFlags holds the inputs of the reconcile command.
type reconcileFlags struct {
	spec          string
	erp           string
	erpSheet      string
	standard      string
	standardSheet string
	constraints   string
	output        string
}

// NewReconcileCommand creates the reconcile command.
func (a *App) NewReconcileCommand() *cobra.Command {
	flags := &reconcileFlags{}
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Build the mapping grid for an ERP field list",
		Long: `Reconcile resolves every ERP field against the standard mapping table,
confirms the mapping with the constraints extracted from the specification,
matches the remaining fields semantically and flags rules that leave allowed
values unhandled. The grid is written to --output as xlsx, json or yaml.`,
		Example: `  edimap reconcile --spec partner-850.pdf --erp orders05.xlsx --standard standard.xlsx -o grid.xlsx
  edimap reconcile --constraints partner.yaml --erp orders05.xlsx --standard standard.yaml -o grid.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runReconcile(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.spec, "spec", "", "vendor specification document (.pdf, .txt, .md)")
	cmd.Flags().StringVar(&flags.erp, "erp", "", "ERP field definitions (.xlsx, .yaml, .json); defaults to erp.path")
	cmd.Flags().StringVar(&flags.erpSheet, "erp-sheet", "", "worksheet holding the ERP fields; defaults to erp.sheet or the first sheet")
	cmd.Flags().StringVar(&flags.standard, "standard", "", "standard mapping table (.xlsx, .yaml, .json); defaults to standard.path")
	cmd.Flags().StringVar(&flags.standardSheet, "standard-sheet", "", "worksheet holding the standard mappings; defaults to standard.sheet")
	cmd.Flags().StringVar(&flags.constraints, "constraints", "", "previously extracted constraints (.yaml, .json); skips extraction")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output grid (.xlsx, .json, .yaml); defaults to output")
	cmd.MarkFlagsMutuallyExclusive("spec", "constraints")
	cmd.MarkFlagsOneRequired("spec", "constraints")

	return cmd
}

func (a *App) runReconcile(cmd *cobra.Command, flags *reconcileFlags) error {
	ctx := logging.WithLogger(cmd.Context(), a.logger)
	cfg := a.config

	outPath := firstNonEmpty(flags.output, cfg.Output)
	if outPath == "" {
		return errors.NewValidationError("output", "", "an output path is required (--output or output)")
	}
	if _, err := gridio.FormatOf(outPath); err != nil {
		return err
	}
	format, err := output.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	erpPath := firstNonEmpty(flags.erp, cfg.Erp.Path)
	if erpPath == "" {
		return errors.NewValidationError("erp", "", "an ERP field list is required (--erp or erp.path)")
	}
	fields, err := loaders.LoadErpFields(erpPath, loaders.WithSheet(firstNonEmpty(flags.erpSheet, cfg.Erp.Sheet)))
	if err != nil {
		return err
	}

	standard, err := loaders.LoadStandard(
		firstNonEmpty(flags.standard, cfg.Standard.Path),
		loaders.WithSheet(firstNonEmpty(flags.standardSheet, cfg.Standard.Sheet)))
	if err != nil {
		return err
	}

	in := edimap.Input{SpecPath: flags.spec, ErpFields: fields, Standard: standard}
	if flags.constraints != "" {
		records, err := loaders.LoadConstraints(flags.constraints)
		if err != nil {
			return err
		}
		in.Constraints = records
		if in.Constraints == nil {
			in.Constraints = []edi.ConstraintRecord{}
		}
	}

	a.logger.Info().
		Int("erp_fields", len(fields)).
		Int("standard_mappings", len(standard)).
		Str("output", outPath).
		Msg("Starting reconciliation")

	pipeline, err := a.Pipeline(ctx)
	if err != nil {
		return err
	}
	report, runErr := pipeline.Run(ctx, in)
	if report == nil || report.Result == nil {
		return runErr
	}

	if err := gridio.Write(outPath, report.Result); err != nil {
		return errors.Join(runErr, err)
	}
	a.logger.Info().Str("path", outPath).Msg(report.Summary())

	doc := gridio.NewDocument(report.Result)
	if err := a.print(format, output.ReportTables(doc, format == output.FormatWide), newRunSummary(doc)); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// extractFlags holds the inputs of the extract command.
type extractFlags struct {
	spec   string
	output string
}

// NewExtractCommand creates the extract command.
func (a *App) NewExtractCommand() *cobra.Command {
	flags := &extractFlags{}
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract segment constraints from a specification document",
		Long: `Extract reads a vendor implementation guide, asks the backend for the
segment and element rules of every chunk and merges them. The records are
written to --output as yaml or json, or printed when no output is given.
The file can be passed to reconcile --constraints.`,
		Example: `  edimap extract --spec partner-850.pdf -o partner.yaml`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runExtract(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.spec, "spec", "", "vendor specification document (.pdf, .txt, .md)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "constraint file (.yaml, .json)")
	_ = cmd.MarkFlagRequired("spec")

	return cmd
}

func (a *App) runExtract(cmd *cobra.Command, flags *extractFlags) error {
	ctx := logging.WithLogger(cmd.Context(), a.logger)

	format, err := output.ParseFormat(a.config.Format)
	if err != nil {
		return err
	}

	pipeline, err := a.Pipeline(ctx)
	if err != nil {
		return err
	}
	res, runErr := pipeline.ExtractConstraints(ctx, flags.spec)
	if res == nil {
		return runErr
	}

	if flags.output != "" {
		doc := loaders.ConstraintDocument{Source: flags.spec, Segments: res.Records}
		if err := gridio.WriteConstraints(flags.output, doc); err != nil {
			return errors.Join(runErr, err)
		}
		a.logger.Info().
			Str("path", flags.output).
			Int("segments", len(res.Records)).
			Int("failed_chunks", len(res.FailedChunks)).
			Msg("Wrote constraints")
		return runErr
	}

	if err := a.print(format, output.ConstraintsData(res.Records), res.Records); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// versionInfo is printed by the version command.
type versionInfo struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	Date      string `json:"date" yaml:"date"`
	BuiltBy   string `json:"built_by" yaml:"built_by"`
	GoVersion string `json:"go_version" yaml:"go_version"`
}

// NewVersionCommand creates the version command.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			format, err := output.ParseFormat(a.config.Format)
			if err != nil {
				return err
			}
			info := versionInfo{
				Version:   a.version,
				Commit:    a.commit,
				Date:      a.date,
				BuiltBy:   a.builtBy,
				GoVersion: runtime.Version(),
			}
			return a.print(format, info, info)
		},
	}
}

// runSummary is the structured form of the reconcile summary.
type runSummary struct {
	RunID      string   `json:"run_id" yaml:"run_id"`
	Strategy   string   `json:"strategy" yaml:"strategy"`
	Duration   string   `json:"duration" yaml:"duration"`
	Coverage   float64  `json:"coverage" yaml:"coverage"`
	Statistics any      `json:"statistics" yaml:"statistics"`
	Flags      any      `json:"flags" yaml:"flags"`
	Warnings   []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Errors     []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func newRunSummary(doc *gridio.Document) runSummary {
	return runSummary{
		RunID:      doc.RunID,
		Strategy:   doc.Strategy,
		Duration:   doc.Duration,
		Coverage:   doc.Coverage,
		Statistics: doc.Statistics,
		Flags:      doc.Flags,
		Warnings:   doc.Warnings,
		Errors:     doc.Errors,
	}
}

// print writes tables for table formats and structured for the others.
func (a *App) print(format output.Format, tables, structured any) error {
	format = output.DetectFormat(string(format))
	data := structured
	if format == output.FormatTable || format == output.FormatWide {
		data = tables
	}
	return output.NewFormatter(format).Format(a.stdout, data)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
