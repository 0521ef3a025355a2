package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-quota/component"
	"github.com/KOMKZ/go-yogan-quota/logger"
	"github.com/KOMKZ/go-yogan-quota/quota"
)

type simulateOptions struct {
	policy      string
	requests    int
	concurrency int
	principal   string
	tier        string
	delay       bool
	outcome     string
}

// simulateResult outcome counts of one run
type simulateResult struct {
	Admitted   int64
	Rejected   int64
	Failed     int64
	Violations int
	Elapsed    time.Duration
}

func newSimulateCmd(root *rootOptions) *cobra.Command {
	opts := &simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Fire requests through a policy against an in-memory store and print the outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := root.loadConfig(cmd.Flags(), nil)
			if err != nil {
				return fmt.Errorf("load config failed: %w", err)
			}
			initLogger(loader)

			res, err := runSimulation(cmd.Context(), loader, opts)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), opts, res)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.policy, "policy", "p", "api", "policy: auth, password_reset, api, analysis or ai")
	f.IntVarP(&opts.requests, "requests", "n", 100, "number of requests")
	f.IntVarP(&opts.concurrency, "concurrency", "c", 10, "concurrent workers")
	f.StringVar(&opts.principal, "principal", "sim-user", "principal every request is counted against")
	f.StringVar(&opts.tier, "tier", "", "tier of the principal, empty means the fallback tier")
	f.BoolVar(&opts.delay, "delay", false, "apply the progressive delay to rejections")
	f.StringVar(&opts.outcome, "outcome", "failure", "handler outcome settled for admitted requests: success or failure")
	return cmd
}

// initLogger the logger section, or defaults when absent
func initLogger(loader component.ConfigLoader) {
	cfg := logger.DefaultManagerConfig()
	if loader.IsSet("logger") {
		if err := loader.Unmarshal("logger", &cfg); err != nil {
			logger.Warn("quotad", "Invalid logger section, using defaults", zap.Error(err))
		}
	}
	logger.InitManager(cfg)
}

func runSimulation(ctx context.Context, loader component.ConfigLoader, opts *simulateOptions) (*simulateResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.requests < 1 {
		return nil, fmt.Errorf("requests must be positive, got %d", opts.requests)
	}
	if opts.concurrency < 1 {
		opts.concurrency = 1
	}
	if opts.outcome == "" {
		opts.outcome = "failure"
	}
	if opts.outcome != "success" && opts.outcome != "failure" {
		return nil, fmt.Errorf("outcome must be success or failure, got %q", opts.outcome)
	}
	succeeded := opts.outcome == "success"

	cfg := quota.DefaultConfig()
	if loader.IsSet("quota") {
		if err := loader.Unmarshal("quota", &cfg); err != nil {
			return nil, fmt.Errorf("read quota config failed: %w", err)
		}
	}
	cfg.StoreType = string(quota.StoreTypeMemory)
	if !opts.delay {
		cfg.Delay = quota.ProgressiveDelay{}
	}

	var compOpts []quota.ComponentOption
	if opts.tier != "" {
		compOpts = append(compOpts, quota.WithComponentTierLookup(quota.StaticTier(quota.Tier(opts.tier))))
	}
	qc, err := quota.NewComponentWithConfig(cfg, compOpts...)
	if err != nil {
		return nil, err
	}
	if err := qc.Start(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = qc.Stop(ctx) }()

	limiter, ok := qc.Policies().Lookup(opts.policy)
	if !ok {
		return nil, fmt.Errorf("unknown policy %q", opts.policy)
	}

	pool, err := ants.NewPool(opts.concurrency)
	if err != nil {
		return nil, fmt.Errorf("create worker pool failed: %w", err)
	}
	defer pool.Release()

	res := &simulateResult{}
	var admitted, rejected, failed atomic.Int64
	var wg sync.WaitGroup
	req := quota.Request{
		Principal:   opts.principal,
		PrincipalID: opts.principal,
		Path:        "/simulate/" + opts.policy,
		Method:      "POST",
		UserAgent:   "quotad-simulate",
	}

	start := time.Now()
	for i := 0; i < opts.requests; i++ {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			d, err := limiter.Check(ctx, req)
			switch {
			case err != nil:
				failed.Add(1)
			case d.Allowed:
				admitted.Add(1)
				// skip_successful / skip_failed un-count according to the outcome
				limiter.Settle(ctx, d, succeeded)
			default:
				rejected.Add(1)
			}
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			failed.Add(1)
		}
	}
	wg.Wait()

	res.Elapsed = time.Since(start)
	res.Admitted = admitted.Load()
	res.Rejected = rejected.Load()
	res.Failed = failed.Load()
	res.Violations = qc.Recorder().Len()
	return res, nil
}

func printResult(w io.Writer, opts *simulateOptions, res *simulateResult) {
	tier := opts.tier
	if tier == "" {
		tier = "fallback"
	}
	fmt.Fprintf(w, "policy=%s tier=%s principal=%s requests=%d concurrency=%d outcome=%s\n",
		opts.policy, tier, opts.principal, opts.requests, opts.concurrency, opts.outcome)
	fmt.Fprintf(w, "admitted:   %d\n", res.Admitted)
	fmt.Fprintf(w, "rejected:   %d\n", res.Rejected)
	fmt.Fprintf(w, "failed:     %d\n", res.Failed)
	fmt.Fprintf(w, "violations: %d\n", res.Violations)
	fmt.Fprintf(w, "elapsed:    %s\n", res.Elapsed.Round(time.Millisecond))
}
