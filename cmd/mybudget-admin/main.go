// Command mybudget-admin runs one-off maintenance against the ledger:
// issuing API tokens, auditing balances, purging soft-deleted budgets and
// inspecting the event outbox.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"mybudget/internal/cli"
	apphttp "mybudget/internal/http"
	"mybudget/internal/log"
	"mybudget/internal/services"
)

const usage = `usage: mybudget-admin <command> [flags]

commands:
  token   -user N [-ttl 720h]   issue a bearer token for user N
  audit   [-repair]             compare cached balances with their lines
  purge   -budget N             remove a budget and everything it owns
  outbox                        show pending and published event counts
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	cmd, args := os.Args[1], os.Args[2:]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)

	switch cmd {
	case "token":
		userID := fs.Int64("user", 0, "user id to put in the token subject (required)")
		ttl := fs.Duration("ttl", 30*24*time.Hour, "token lifetime")
		_ = fs.Parse(args)
		if *userID <= 0 {
			fmt.Fprintln(os.Stderr, "Error: -user is required")
			os.Exit(2)
		}
		if !cfg.AuthEnabled() {
			fmt.Fprintln(os.Stderr, "Error: JWT_SECRET is not set")
			os.Exit(1)
		}
		token, err := apphttp.NewAuthenticator(cfg.JWTSecret).IssueToken(*userID, *ttl)
		if err != nil {
			cli.Exit(logger, "Failed to issue token", err)
		}
		fmt.Println(token)
		return
	case "audit", "purge", "outbox":
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	repair := fs.Bool("repair", false, "rewrite drifted balances (audit)")
	budgetID := fs.Int64("budget", 0, "budget id (purge)")
	_ = fs.Parse(args)

	be := cli.OpenBackend(ctx, logger, cfg)
	defer func() { _ = be.Cleanup() }()

	switch cmd {
	case "audit":
		report, err := services.NewBalanceAuditor(be.Store, *repair).Audit(ctx, services.AuditScope{})
		if err != nil {
			cli.Exit(logger, "Audit failed", err)
		}
		printJSON(report)
	case "purge":
		if *budgetID <= 0 {
			fmt.Fprintln(os.Stderr, "Error: -budget is required")
			os.Exit(2)
		}
		if err := be.Store.PurgeBudget(ctx, *budgetID); err != nil {
			cli.Exit(logger, "Purge failed", err)
		}
		logger.Info("Budget purged", log.FieldBudgetID, *budgetID)
	case "outbox":
		pending, published, err := be.Store.OutboxStats(ctx)
		if err != nil {
			cli.Exit(logger, "Failed to read outbox", err)
		}
		printJSON(map[string]int64{"pending": pending, "published": published})
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
