package setup

import (
	"context"
	"fmt"
	"io"

	"github.com/cardioml-web/internal/database"
	"github.com/cardioml-web/internal/domain"
	"github.com/cardioml-web/internal/service"
	"github.com/sirupsen/logrus"
)

// Validator checks the loaded configuration.
type Validator interface {
	Validate() error
}

// CLI provides the operator check commands.
type CLI struct {
	cfg         *domain.Config
	validator   Validator
	backend     domain.PredictionService
	databaseURL string
	logger      *logrus.Logger
	out         io.Writer
}

// NewCLI creates a new check CLI instance.
func NewCLI(cfg *domain.Config, validator Validator, backend domain.PredictionService, databaseURL string, logger *logrus.Logger, out io.Writer) *CLI {
	return &CLI{
		cfg:         cfg,
		validator:   validator,
		backend:     backend,
		databaseURL: databaseURL,
		logger:      logger,
		out:         out,
	}
}

// Run executes the check command based on the provided arguments. A non-nil
// error means the check failed.
func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return c.showHelp()
	}

	switch args[0] {
	case "status":
		return c.showStatus(ctx)
	case "validate":
		return c.validate()
	case "model":
		return c.showModel(ctx)
	case "migrate":
		return c.migrate(ctx, args[1:])
	case "help", "--help", "-h":
		return c.showHelp()
	default:
		fmt.Fprintf(c.out, "Unknown command: %s\n\n", args[0])
		_ = c.showHelp()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func (c *CLI) showHelp() error {
	fmt.Fprint(c.out, `
CardioML Deployment Checks

Usage:
  cardioml check <command>

Commands:
  status            Probe the prediction backend and the result store
  validate          Validate the current configuration
  model             Show the model served by the prediction backend
  migrate <action>  Apply (up), roll back (down) or show (version) the Postgres schema
`)
	return nil
}

func (c *CLI) showStatus(ctx context.Context) error {
	status := GetStatus(ctx, c.cfg, c.backend, c.databaseURL, c.logger)

	fmt.Fprintln(c.out, "CardioML Status")
	fmt.Fprintln(c.out, "===============")
	fmt.Fprintln(c.out)

	fmt.Fprintln(c.out, "Prediction backend:")
	fmt.Fprintf(c.out, "  URL: %s\n", status.BackendURL)
	if status.BackendError != "" {
		fmt.Fprintf(c.out, "  Status: ✗ %s (%s)\n", status.BackendStatus, status.BackendError)
	} else {
		fmt.Fprintf(c.out, "  Status: ✓ %s\n", status.BackendStatus)
		fmt.Fprintf(c.out, "  Model loaded: %t\n", status.ModelLoaded)
	}
	fmt.Fprintln(c.out)

	fmt.Fprintln(c.out, "Result store:")
	fmt.Fprintf(c.out, "  Driver: %s\n", orDefault(status.StoreDriver, "memory"))
	if status.StoreReachable {
		fmt.Fprintf(c.out, "  Status: ✓ %s\n", status.StoreDetail)
	} else {
		fmt.Fprintf(c.out, "  Status: ✗ %s\n", status.StoreDetail)
	}
	fmt.Fprintln(c.out)

	if !status.Healthy() {
		fmt.Fprintln(c.out, "Issues:")
		for _, issue := range status.Issues {
			fmt.Fprintf(c.out, "  ⚠ %s\n", issue)
		}
		fmt.Fprintln(c.out)
		return fmt.Errorf("%d issue(s) found", len(status.Issues))
	}
	return nil
}

func (c *CLI) validate() error {
	fmt.Fprintln(c.out, "Validating configuration...")

	if err := c.validator.Validate(); err != nil {
		fmt.Fprintf(c.out, "✗ Configuration is invalid: %v\n", err)
		return err
	}

	fmt.Fprintln(c.out, "✓ Configuration is valid!")
	return nil
}

func (c *CLI) showModel(ctx context.Context) error {
	info, err := c.backend.ModelInfo(ctx)
	if err != nil {
		fmt.Fprintf(c.out, "✗ Could not fetch model info: %v\n", err)
		return err
	}

	s := service.SummarizeModel(info)
	fmt.Fprintf(c.out, "Model:     %s %s\n", s.ModelName, s.ModelVersion)
	fmt.Fprintf(c.out, "Dataset:   %s\n", s.TrainingDataset)
	fmt.Fprintf(c.out, "Accuracy:  %s%%\n", s.Accuracy)
	fmt.Fprintf(c.out, "AUC-ROC:   %s%%\n", s.AUCROC)
	fmt.Fprintf(c.out, "F1 score:  %s%%\n", s.F1Score)
	if s.Library != "" {
		fmt.Fprintf(c.out, "Library:   %s\n", s.Library)
	}
	if len(s.Features) > 0 {
		fmt.Fprintln(c.out, "Feature importance:")
		for _, f := range s.Features {
			fmt.Fprintf(c.out, "  %-20s %.3f\n", orDefault(f.Label, f.Name), f.Value)
		}
	}
	return nil
}

func (c *CLI) migrate(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("migrate needs one of: up, down, version")
	}

	runner, err := database.NewMigrationRunner(c.databaseURL, c.logger)
	if err != nil {
		return err
	}
	defer runner.Close()

	switch args[0] {
	case "up":
		err = runner.Up(ctx)
	case "down":
		err = runner.Down(ctx)
	case "version":
		fmt.Fprintf(c.out, "Schema %s\n", runner.Status())
		return nil
	default:
		return fmt.Errorf("unknown migrate action %q", args[0])
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "✓ Migrations %s applied\n", args[0])
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
