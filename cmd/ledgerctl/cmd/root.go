// Package cmd provides the ledgerctl commands.
package cmd

import (
	"fmt"
	"os"
	"time"

	"finance/internal/cli"
	"finance/internal/config"
	"finance/internal/core"
	"finance/internal/log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootOptions carries the global flags and the wired application shared by
// every subcommand.
type rootOptions struct {
	owner   string
	envFile string
	debug   bool
	asJSON  bool

	cfg     *config.Config
	logger  *log.Logger
	app     *cli.App
	started time.Time
}

// newRootCmd builds the ledgerctl command tree. The returned options hold
// the application opened by the first command run; close it afterwards.
func newRootCmd() (*cobra.Command, *rootOptions) {
	o := &rootOptions{}

	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Manage personal finance accounts, transactions and budgets",
		Long: `ledgerctl works on the local ledger database. Every command acts on
behalf of one owner, given with --owner or LEDGER_OWNER.

Account balances are kept consistent with their transactions: every
create, update and delete adjusts the affected balances atomically.

Example:
  ledgerctl --owner alice account create --name Main --balance 100
  ledgerctl --owner alice tx add --account <id> --type expense --amount 12.50 --category food
  ledgerctl --owner alice budget show`,
		SilenceUsage:      true,
		PersistentPreRunE: o.setup,
	}

	root.PersistentFlags().StringVar(&o.owner, "owner", os.Getenv("LEDGER_OWNER"), "owner the command acts for (default $LEDGER_OWNER)")
	root.PersistentFlags().StringVar(&o.envFile, "env-file", "", "env file to load (default is .env)")
	root.PersistentFlags().BoolVar(&o.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&o.asJSON, "json", false, "print results as JSON")

	root.AddCommand(
		newAccountCmd(o),
		newTxCmd(o),
		newDashboardCmd(o),
		newBudgetCmd(o),
		newReceiptCmd(o),
		newAuditCmd(o),
		newExportCmd(o),
	)
	return root, o
}

// Execute runs the root command and closes the ledger afterwards, also
// when the command failed.
func Execute() error {
	root, o := newRootCmd()
	err := root.Execute()
	if cerr := o.close(); err == nil {
		err = cerr
	}
	return err
}

func (o *rootOptions) setup(cmd *cobra.Command, args []string) error {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	} else {
		cli.LoadEnvFile()
	}

	o.cfg = config.Load()
	if o.debug {
		o.cfg.LogLevel = "debug"
	}
	o.logger = cli.SetupLogger(o.cfg.LogLevel, log.ComponentCLI)
	if err := o.cfg.Validate(); err != nil {
		return err
	}

	app, err := cli.Build(cmd.Context(), o.cfg, o.logger)
	if err != nil {
		return err
	}
	o.app = app

	ctx, _ := log.WithOperation(cmd.Context(), o.logger)
	cmd.SetContext(ctx)
	o.logger = log.FromContext(ctx)
	o.started = time.Now()
	o.logger.Debug("Command started", "command", cmd.CommandPath())
	return nil
}

func (o *rootOptions) close() error {
	if o.app == nil {
		return nil
	}
	m := o.app.Guard.Metrics()
	err := o.app.Close()
	o.app = nil
	o.logger.Debug("Command finished",
		log.FieldDuration, time.Since(o.started).Milliseconds(),
		"admitted", m.Admitted,
		"rate_limited", m.RateLimited,
		"blocked", m.Blocked)
	return err
}

func (o *rootOptions) ownerID() core.OwnerID {
	return core.OwnerID(o.owner)
}
