package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gdmt-engine/internal/api"
	"github.com/gdmt-engine/internal/bootstrap"
	"github.com/gdmt-engine/internal/catalog"
	"github.com/gdmt-engine/internal/config"
	"github.com/gdmt-engine/internal/domain"
	"github.com/gdmt-engine/internal/service"
	"github.com/gdmt-engine/pkg/egfr"
	"github.com/gdmt-engine/pkg/kccq"
)

type rootOptions struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "gdmt",
		Short:        "Guideline-directed medical therapy recommendations for HFrEF",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default: ./config.yaml, ./config/, /etc/gdmt-engine/)")

	root.AddCommand(
		newServeCmd(opts),
		newRecommendCmd(opts),
		newEGFRCmd(),
		newKCCQCmd(),
		newMedicationsCmd(),
		newMigrateCmd(opts),
	)
	return root
}

func (o *rootOptions) manager() (*config.Manager, error) {
	var managerOpts []config.Option
	if o.configFile != "" {
		managerOpts = append(managerOpts, config.WithConfigFile(o.configFile))
	}
	manager, err := config.NewManager(managerOpts...)
	if err != nil {
		return nil, err
	}
	if err := manager.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return manager, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager, err := opts.manager()
			if err != nil {
				return err
			}
			logger := bootstrap.NewLogger(manager.GetConfig().Logging)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			deps, cleanup, err := bootstrap.Dependencies(ctx, manager, logger)
			defer cleanup()
			if err != nil {
				return err
			}

			server, err := api.NewServer(manager, deps, logger)
			if err != nil {
				return err
			}
			return server.Start(ctx)
		},
	}
}

func newRecommendCmd(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Compute recommendations for one patient input (JSON)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var reader io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("failed to open input: %w", err)
				}
				defer f.Close()
				reader = f
			}

			var input domain.RecommendationInput
			if err := json.NewDecoder(reader).Decode(&input); err != nil {
				return fmt.Errorf("failed to decode input: %w", err)
			}

			thresholds := domain.DefaultThresholds()
			if opts.configFile != "" {
				manager, err := opts.manager()
				if err != nil {
					return err
				}
				thresholds = manager.GetConfig().Thresholds
			}

			logger := logrus.New()
			logger.SetOutput(cmd.ErrOrStderr())
			logger.SetLevel(logrus.WarnLevel)

			cat := catalog.Default()
			engine := service.NewRecommendationEngine(service.NewContraindicationChecker(cat), cat, logger,
				service.WithThresholds(thresholds))

			outputs, err := engine.ComputeRecommendations(cmd.Context(), input)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), outputs)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "input file, - for stdin")
	return cmd
}

func newEGFRCmd() *cobra.Command {
	var (
		sex        string
		age        float64
		creatinine float64
	)

	cmd := &cobra.Command{
		Use:   "egfr",
		Short: "Estimate GFR with the CKD-EPI 2021 equation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := domain.ParseSex(sex)
			if err != nil {
				return err
			}
			result, err := egfr.Calculate(egfr.Input{Sex: parsed, Age: age, Creatinine: creatinine})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&sex, "sex", "", "female or male")
	cmd.Flags().Float64Var(&age, "age", 0, "age in years")
	cmd.Flags().Float64Var(&creatinine, "creatinine", 0, "serum creatinine in mg/dL")
	_ = cmd.MarkFlagRequired("sex")
	_ = cmd.MarkFlagRequired("age")
	_ = cmd.MarkFlagRequired("creatinine")
	return cmd
}

func newKCCQCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kccq <13 answers>",
		Short: "Score a KCCQ-12 response",
		Args:  cobra.ExactArgs(kccq.AnswerCount),
		RunE: func(cmd *cobra.Command, args []string) error {
			answers := make([]int, len(args))
			for i, arg := range args {
				n, err := strconv.Atoi(arg)
				if err != nil {
					return domain.NewInvalidInputError(fmt.Sprintf("answers[%d]", i), "must be an integer", arg)
				}
				answers[i] = n
			}

			score, err := kccq.Calculate(kccq.Response{Answers: answers})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), score)
		},
	}
}

func newMedicationsCmd() *cobra.Command {
	var class string

	cmd := &cobra.Command{
		Use:   "medications",
		Short: "List catalog medications",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat := catalog.Default()
			if class == "" {
				return writeJSON(cmd.OutOrStdout(), cat.Medications())
			}
			c := domain.MedicationClass(class)
			if !c.IsValid() {
				return domain.NewInvalidInputError("class", "unknown medication class", class)
			}
			return writeJSON(cmd.OutOrStdout(), cat.MedicationsInClass(c))
		},
	}
	cmd.Flags().StringVar(&class, "class", "", "restrict to one medication class")
	return cmd
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	run := func(up bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			manager, err := opts.manager()
			if err != nil {
				return err
			}
			logger := bootstrap.NewLogger(manager.GetConfig().Logging)
			return bootstrap.Migrate(cmd.Context(), manager.GetDatabaseConnectionString(), logger, up)
		}
	}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres feedback schema",
	}
	cmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Apply all pending migrations", RunE: run(true)},
		&cobra.Command{Use: "down", Short: "Revert the last migration", RunE: run(false)},
	)
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
