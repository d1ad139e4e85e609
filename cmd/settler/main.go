package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/settler/internal/events"
	"github.com/mmynk/settler/internal/events/kafka"
	"github.com/mmynk/settler/internal/models"
	"github.com/mmynk/settler/internal/rates"
	"github.com/mmynk/settler/internal/service"
	"github.com/mmynk/settler/internal/storage"
	"github.com/mmynk/settler/internal/storage/memory"
	"github.com/mmynk/settler/internal/storage/postgres"
	"github.com/mmynk/settler/internal/storage/sqlite"
	"github.com/mmynk/settler/pkg/logging"
)

const usage = `Usage: settler <command> [args]

Commands:
  balances <group-id>             per-currency net balances for the group
  balances <group-id> <currency>  balances converted to one currency
  plan <group-id> <currency>      minimal transfer plan to settle the group

Environment variables:
  DB_DRIVER:     sqlite, postgres, memory (default: sqlite)
  DB_PATH:       sqlite database path (default: ./data/ledger.db)
  DATABASE_URL:  postgres connection string
  RATES_PATH:    JSON file with conversion rates (default: built-in USD-only)
  KAFKA_BROKERS: comma-separated broker list; empty disables events
  METRICS_ADDR:  address for the Prometheus endpoint; empty disables it
  LOG_LEVEL:     debug, info, warn, error (default: info)
`

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func newStore() (storage.Store, error) {
	switch driver := getEnv("DB_DRIVER", "sqlite"); driver {
	case "sqlite":
		return sqlite.New(getEnv("DB_PATH", "./data/ledger.db"))
	case "postgres":
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			return nil, fmt.Errorf("DATABASE_URL required for postgres driver")
		}
		return postgres.New(dsn)
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", driver)
	}
}

func newRates() (rates.Provider, error) {
	if path := os.Getenv("RATES_PATH"); path != "" {
		return rates.FromFile(path)
	}
	return rates.NewStatic(rates.DefaultTable()), nil
}

func newPublisher() events.Publisher {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		return events.Noop{}
	}
	return kafka.NewPublisher(strings.Split(brokers, ","))
}

func main() {
	// Missing .env is fine, env vars may come from the shell.
	_ = godotenv.Load()
	logging.Setup()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	store, err := newStore()
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	provider, err := newRates()
	if err != nil {
		slog.Error("Failed to load rates", "error", err)
		os.Exit(1)
	}

	publisher := newPublisher()
	defer publisher.Close()

	if addr := os.Getenv("METRICS_ADDR"); addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("Metrics endpoint starting", "address", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				slog.Error("Metrics endpoint failed", "error", err)
			}
		}()
	}

	svc := service.NewLedgerService(store, provider, publisher)
	if err := run(context.Background(), svc, os.Args[1:]); err != nil {
		slog.Error("Command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, svc *service.LedgerService, args []string) error {
	switch cmd := args[0]; cmd {
	case "balances":
		switch len(args) {
		case 2:
			return printBalances(ctx, svc, args[1])
		case 3:
			return printBalancesIn(ctx, svc, args[1], models.Currency(args[2]))
		default:
			return fmt.Errorf("usage: settler balances <group-id> [currency]")
		}
	case "plan":
		if len(args) != 3 {
			return fmt.Errorf("usage: settler plan <group-id> <currency>")
		}
		return printPlan(ctx, svc, args[1], models.Currency(args[2]))
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printBalances(ctx context.Context, svc *service.LedgerService, groupID string) error {
	sheet, err := svc.GroupBalances(ctx, groupID)
	if err != nil {
		return err
	}
	if len(sheet) == 0 {
		fmt.Println("all settled")
		return nil
	}

	keys := make([]models.BalanceKey, 0, len(sheet))
	for k := range sheet {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Currency != keys[j].Currency {
			return keys[i].Currency < keys[j].Currency
		}
		return keys[i].Root.Less(keys[j].Root)
	})
	for _, k := range keys {
		fmt.Printf("%-24s %s %s\n", k.Root.String(), k.Currency, formatMinor(sheet[k]))
	}
	return nil
}

func printBalancesIn(ctx context.Context, svc *service.LedgerService, groupID string, target models.Currency) error {
	if !target.Supported() {
		return fmt.Errorf("unsupported currency %q", target)
	}
	balances, err := svc.GroupBalancesIn(ctx, groupID, target)
	if err != nil {
		return err
	}
	if len(balances) == 0 {
		fmt.Println("all settled")
		return nil
	}

	roots := make([]models.ParticipantID, 0, len(balances))
	for p := range balances {
		roots = append(roots, p)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].Less(roots[j]) })
	for _, p := range roots {
		fmt.Printf("%-24s %s %s\n", p.String(), target, formatMinor(balances[p]))
	}
	return nil
}

func printPlan(ctx context.Context, svc *service.LedgerService, groupID string, target models.Currency) error {
	if !target.Supported() {
		return fmt.Errorf("unsupported currency %q", target)
	}
	plan, err := svc.SettlementPlan(ctx, groupID, target)
	if err != nil {
		return err
	}
	if len(plan) == 0 {
		fmt.Println("all settled")
		return nil
	}
	for _, tx := range plan {
		fmt.Printf("%s pays %s %s %s\n", tx.From.String(), tx.To.String(), target, formatMinor(tx.Amount))
	}
	return nil
}

// formatMinor renders minor units as a decimal amount, e.g. -1234 -> "-12.34".
func formatMinor(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}
