package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/SubhajL/online-trading-sub002/pkg/config"
	"github.com/SubhajL/online-trading-sub002/pkg/db"
	"github.com/SubhajL/online-trading-sub002/pkg/filters"
)

// health_check probes a local gateway and the resources it depends on.
//
// Usage:
//
//	go run ./scripts/health_check [--json]
//
// Exit status is 1 when any check is UNHEALTHY.

type HealthStatus struct {
	Service   string    `json:"service"`
	Status    string    `json:"status"` // HEALTHY, DEGRADED, UNHEALTHY
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type HealthReport struct {
	Overall  string         `json:"overall"`
	Services []HealthStatus `json:"services"`
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	cfg, cfgStatus := checkConfig()
	report := HealthReport{Overall: "HEALTHY", Services: []HealthStatus{cfgStatus}}
	if cfg != nil {
		report.Services = append(report.Services,
			checkFilterSeed(cfg),
			checkJournal(ctx, cfg),
			checkEndpoint(ctx, cfg, "Liveness", "/healthz"),
			checkEndpoint(ctx, cfg, "Readiness", "/readyz"),
		)
	}

	for _, svc := range report.Services {
		switch svc.Status {
		case "UNHEALTHY":
			report.Overall = "UNHEALTHY"
		case "DEGRADED":
			if report.Overall == "HEALTHY" {
				report.Overall = "DEGRADED"
			}
		}
	}

	fmt.Println("=== Bracket Gateway Health Check ===")
	for _, svc := range report.Services {
		statusIcon := "✓"
		if svc.Status == "UNHEALTHY" {
			statusIcon = "✗"
		} else if svc.Status == "DEGRADED" {
			statusIcon = "⚠"
		}
		fmt.Printf("%s %-20s %s %s\n", statusIcon, svc.Service, svc.Status, svc.Message)
	}
	fmt.Println()
	fmt.Printf("Overall Status: %s\n", report.Overall)

	if len(os.Args) > 1 && os.Args[1] == "--json" {
		jsonData, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(jsonData))
	}

	if report.Overall == "UNHEALTHY" {
		os.Exit(1)
	}
}

func checkConfig() (*config.Config, HealthStatus) {
	status := HealthStatus{
		Service:   "Configuration",
		Status:    "HEALTHY",
		Timestamp: time.Now(),
	}

	cfg, err := config.Load()
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("Failed to load: %v", err)
		return nil, status
	}

	mode := "LIVE"
	if cfg.DryRun {
		mode = "DRY_RUN"
	} else if cfg.BinanceTestnet {
		mode = "TESTNET"
	}
	status.Message = fmt.Sprintf("Port=%s mode=%s spot=%v usdt_futures=%v", cfg.Port, mode, cfg.EnableSpot, cfg.EnableUSDTFutures)
	if cfg.JWTSecret == "" {
		status.Status = "DEGRADED"
		status.Message += " (JWT_SECRET unset, order routes are unauthenticated)"
	}
	return cfg, status
}

func checkFilterSeed(cfg *config.Config) HealthStatus {
	status := HealthStatus{
		Service:   "Filter seed",
		Status:    "HEALTHY",
		Timestamp: time.Now(),
	}
	if !cfg.DryRun {
		status.Message = "Not used outside dry-run"
		return status
	}

	symbols, err := filters.LoadSeedFile(cfg.FilterSeedFile)
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = err.Error()
		return status
	}
	if _, warnings := filters.Build(symbols); len(warnings) > 0 {
		status.Status = "DEGRADED"
		status.Message = fmt.Sprintf("%d symbols, %d inconsistent filters (first: %s)", len(symbols), len(warnings), warnings[0])
		return status
	}
	status.Message = fmt.Sprintf("%d symbols", len(symbols))
	return status
}

// checkJournal opens the journal, applies migrations and confirms the
// order_updates table has the columns the lookup endpoint reads.
func checkJournal(ctx context.Context, cfg *config.Config) HealthStatus {
	status := HealthStatus{
		Service:   "Journal",
		Status:    "HEALTHY",
		Timestamp: time.Now(),
	}
	enabled := false
	for _, s := range cfg.EventSinks {
		if s == "journal" {
			enabled = true
		}
	}
	if !enabled {
		status.Message = "Not in EVENT_SINK"
		return status
	}

	database, err := db.New(cfg.JournalDBPath)
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("Open failed: %v", err)
		return status
	}
	defer database.Close()

	if err := db.ApplyMigrations(database); err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("Migration failed: %v", err)
		return status
	}

	rows, err := database.DB.QueryContext(ctx, `PRAGMA table_info(order_updates)`)
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("Schema query failed: %v", err)
		return status
	}
	defer rows.Close()

	have := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue any
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			status.Status = "UNHEALTHY"
			status.Message = fmt.Sprintf("Schema scan failed: %v", err)
			return status
		}
		have[name] = true
	}
	for _, col := range []string{"bracket_order_id", "client_order_id", "status", "update_time"} {
		if !have[col] {
			status.Status = "UNHEALTHY"
			status.Message = fmt.Sprintf("order_updates is missing column %s", col)
			return status
		}
	}
	status.Message = fmt.Sprintf("%s (%d columns)", cfg.JournalDBPath, len(have))
	return status
}

func checkEndpoint(ctx context.Context, cfg *config.Config, name, path string) HealthStatus {
	status := HealthStatus{
		Service:   name,
		Status:    "HEALTHY",
		Timestamp: time.Now(),
	}

	url := fmt.Sprintf("http://localhost:%s%s", cfg.Port, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = err.Error()
		return status
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("Not reachable: %v", err)
		return status
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		status.Status = "DEGRADED"
		status.Message = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return status
	}
	status.Message = "OK"
	return status
}
