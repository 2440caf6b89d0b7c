package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dctravel/api"
	"dctravel/backend"
	"dctravel/config"
	"dctravel/history"
	"dctravel/travel"
	"dctravel/www"
)

const version = "0.1.1"

func main() {
	configPath := flag.String("config", "dctravel.yaml", "path to config file")
	action := flag.String("action", "transfer", "action to run: transfer or return")
	debug := flag.Bool("debug", false, "enable debug logging")
	port := flag.Int("port", -1, "status server port (overrides config, 0 disables)")
	flag.Parse()

	if *debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *port >= 0 {
		cfg.Web.Port = *port
	}

	debugf := travel.LogFunc(func(string, ...interface{}) {})
	if *debug {
		debugf = log.Printf
	}

	// Ctrl+C cancels the run; the engine observes it at the next tick.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hist, err := history.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("open history database: %v", err)
	}
	defer hist.Close()

	proxy := cfg.Service.Proxy
	if proxy == "" {
		proxy = config.DetectProxy()
	}
	if proxy != "" {
		log.Printf("using http proxy %s", proxy)
	}

	client, err := api.NewClient(api.Options{
		BaseURL:   cfg.Service.BaseURL,
		AppID:     cfg.Service.AppID,
		UserAgent: cfg.Service.UserAgent,
		ProxyURL:  proxy,
		Timeout:   cfg.Service.Timeout,
		Debugf:    debugf,
	})
	if err != nil {
		log.Fatalf("create service client: %v", err)
	}
	if len(cfg.Cookies) == 0 {
		log.Fatalf("no session cookies configured; log in externally and add them under 'cookies' in %s", *configPath)
	}
	client.SetCookies(cfg.Cookies)

	var be *backend.Client
	if cfg.Backend.Enabled {
		be = backend.New(backend.Options{
			BaseURL: cfg.Backend.BaseURL,
			Version: version,
			Debugf:  debugf,
		})
		checkVersion(ctx, be)
		if err := be.RecordStat(ctx, backend.StatAppStart); err != nil {
			debugf("backend: %v", err)
		}
	}

	orch := travel.New(travel.Config{
		Logf:    log.Printf,
		Debugf:  debugf,
		Emitter: consoleEmitter{},
		Record: func(rec travel.Record) {
			if _, err := hist.Insert(history.Entry{
				RoleName:     rec.Role,
				SourceArea:   rec.SourceArea,
				SourceServer: rec.SourceServer,
				TargetArea:   rec.TargetArea,
				TargetServer: rec.TargetServer,
				Succeeded:    rec.Succeeded,
				OrderID:      rec.OrderID,
				Attempts:     rec.Attempts,
			}); err != nil {
				log.Printf("record outcome: %v", err)
			}
		},
		Backoff: travel.Waiter{
			MinSeconds: cfg.Backoff.MinSeconds,
			MaxSeconds: cfg.Backoff.MaxSeconds,
		},
		Poll: travel.Poller{
			MaxAttempts: cfg.Poll.TransferAttempts,
			Interval:    cfg.Poll.Interval,
		},
		ReturnPoll: travel.Poller{
			MaxAttempts: cfg.Poll.ReturnAttempts,
			Interval:    cfg.Poll.Interval,
		},
	})

	if cfg.Web.Port > 0 {
		addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
		server := &http.Server{Addr: addr, Handler: www.NewRouter(orch, hist)}
		go func() {
			log.Printf("status server listening on %s", addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("status server: %v", err)
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shutCtx)
		}()
	}

	var outcome travel.Outcome
	switch *action {
	case "transfer":
		outcome, err = runTransfer(ctx, orch, client, cfg)
	case "return":
		outcome, err = runReturn(ctx, orch, client, cfg)
	default:
		log.Fatalf("unknown action %q (want transfer or return)", *action)
	}
	if err != nil {
		log.Fatalf("%s: %v", *action, err)
	}

	if outcome.Result == travel.ResultSucceeded && be != nil {
		stat := backend.StatTransfer
		if *action == "return" {
			stat = backend.StatReturn
		}
		// The run context may already be cancelled; give the stat its own.
		statCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := be.RecordStat(statCtx, stat); err != nil {
			debugf("backend: %v", err)
		}
	}

	if outcome.Result != travel.ResultSucceeded {
		os.Exit(1)
	}
}

func checkVersion(ctx context.Context, be *backend.Client) {
	info, err := be.CheckVersion(ctx)
	if err != nil {
		// Version check failing never blocks the run.
		log.Printf("version check: %v", err)
		return
	}
	if !info.IsSupported {
		log.Fatalf("version %s is no longer supported, update to %s: %s",
			info.CurrentVersion, info.LatestVersion, info.UpdateURL)
	}
	if !info.IsLatest {
		log.Printf("version %s available (running %s): %s",
			info.LatestVersion, info.CurrentVersion, info.UpdateURL)
	} else {
		log.Printf("version %s is up to date", info.CurrentVersion)
	}
}

// consoleEmitter turns orchestrator events into log lines. The per-second
// backoff ticks are throttled so the countdown doesn't flood the log.
type consoleEmitter struct {
	travel.NopEmitter
}

func (consoleEmitter) EmitBackoffTick(remaining int) {
	if remaining%15 == 0 || remaining <= 5 {
		log.Printf("next attempt in %ds (Ctrl+C to cancel)", remaining)
	}
}

func (consoleEmitter) EmitFinished(out travel.Outcome) {
	switch out.Result {
	case travel.ResultSucceeded:
		log.Printf("==== action succeeded after %d attempt(s) ====", out.Attempts)
	case travel.ResultCancelled:
		log.Printf("==== action cancelled by user ====")
	default:
		log.Printf("==== action failed ====")
	}
}
