package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Maria-Liakata-NLP-Group/social-media-timeline-dashboard/internal/backend"
	"github.com/Maria-Liakata-NLP-Group/social-media-timeline-dashboard/internal/config"
	"github.com/Maria-Liakata-NLP-Group/social-media-timeline-dashboard/internal/fixtures"
)

func newDoctorCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, fixture data and backend reachability",
		Long:  "Runs diagnostic checks on the dashboard prerequisites: config file, data directory, fixture roster and the backend health endpoint.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "momentsd.yaml", "path to config file")
	return cmd
}

type checkResult struct {
	name   string
	status string // "PASS", "FAIL", "WARN"
	detail string
}

func runDoctor(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Dashboard Doctor")
	fmt.Fprintln(out, "================")

	var results []checkResult

	cfg, cfgResult := checkConfig(configPath)
	results = append(results, cfgResult)

	if cfg != nil {
		results = append(results, checkDataDir(cfg.DataDir))
		results = append(results, checkFixtureRoster(cfg.DataDir))
		results = append(results, checkBackend(cfg))
	} else {
		results = append(results, checkResult{"Data directory", "FAIL", "skipped (no config)"})
		results = append(results, checkResult{"Fixture roster", "FAIL", "skipped (no config)"})
		results = append(results, checkResult{"Backend", "FAIL", "skipped (no config)"})
	}

	passed, failed, warned := 0, 0, 0
	for _, r := range results {
		printCheckResult(out, r)
		switch r.status {
		case "PASS":
			passed++
		case "WARN":
			warned++
		default:
			failed++
		}
	}

	fmt.Fprintf(out, "\n%d passed, %d warnings, %d failed\n", passed, warned, failed)
	if failed > 0 {
		return fmt.Errorf("doctor: %d check(s) failed", failed)
	}
	return nil
}

func checkConfig(path string) (*config.Config, checkResult) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, checkResult{"Config", "FAIL", err.Error()}
	}
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		return cfg, checkResult{"Config", "WARN", fmt.Sprintf("%s not found, using defaults", path)}
	}
	return cfg, checkResult{"Config", "PASS", path}
}

func checkDataDir(dir string) checkResult {
	info, err := os.Stat(dir)
	if err != nil {
		return checkResult{"Data directory", "WARN", fmt.Sprintf("%s: %v (fixture fallback unavailable)", dir, err)}
	}
	if !info.IsDir() {
		return checkResult{"Data directory", "FAIL", dir + " is not a directory"}
	}
	return checkResult{"Data directory", "PASS", dir}
}

func checkFixtureRoster(dir string) checkResult {
	ids, err := fixtures.NewStore(dir).UserIDs()
	if err != nil {
		return checkResult{"Fixture roster", "WARN", err.Error()}
	}
	return checkResult{"Fixture roster", "PASS", fmt.Sprintf("%d dataset(s)", len(ids))}
}

func checkBackend(cfg *config.Config) checkResult {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client := backend.New(cfg.BackendURL, backend.Options{Timeout: 5 * time.Second})
	if client.Health(ctx) {
		return checkResult{"Backend", "PASS", cfg.BackendURL}
	}
	return checkResult{"Backend", "WARN", cfg.BackendURL + " unreachable, dashboard will serve fixtures"}
}

func printCheckResult(out io.Writer, r checkResult) {
	status := r.status
	if useColor() {
		switch r.status {
		case "PASS":
			status = "\033[32mPASS\033[0m"
		case "WARN":
			status = "\033[33mWARN\033[0m"
		case "FAIL":
			status = "\033[31mFAIL\033[0m"
		}
	}
	fmt.Fprintf(out, "[%s] %-16s %s\n", status, r.name, r.detail)
}

func useColor() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
