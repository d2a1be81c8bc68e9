package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shiver1514/feishu-sync/internal/trigger"
)

const (
	shutdownGrace       = 10 * time.Second
	maxWebhookBodyBytes = 1 << 20 // 1 MiB; Feishu event payloads are small JSON documents
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and webhook HTTP listener",
		Long: `Serve starts the cooperative Scheduler loop (§4.7) alongside an HTTP
listener for Feishu event callbacks, both bound by the same single-writer
run lock as the manual "run" command.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd.Context())
			defer a.store.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg := a.cfgHolder.Get()
			sched := trigger.NewScheduler(a.coordinator, runFunc(a.engine), cfg.Sync.PollIntervalSec, cfg.Sync.PollIntervalSec > 0)
			go sched.Loop(ctx)

			if cfg.Sync.LocalRoot != "" {
				if watcher, err := trigger.NewLocalWatcher(cfg.Sync.LocalRoot, sched.Nudge, a.logger); err != nil {
					a.logger.Warn("local change watcher unavailable", slog.String("error", err.Error()))
				} else {
					defer watcher.Close()
					go watcher.Run(ctx)
				}
			}

			var webhook *trigger.WebhookTrigger
			if cfg.Sync.EventCallbackEnabled {
				webhook = trigger.NewWebhookTrigger(cfg.Sync, a.coordinator, runFunc(a.engine))
			}

			mux := http.NewServeMux()
			mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, sched.State())
			})
			mux.HandleFunc("/webhook/event", func(w http.ResponseWriter, r *http.Request) {
				handleWebhook(w, r, webhook)
			})

			srv := &http.Server{Addr: addr, Handler: mux}
			go func() {
				<-ctx.Done()
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
				defer shutdownCancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			a.logger.Info("serving", slog.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8443", "address for the webhook/status HTTP listener")
	return cmd
}

func handleWebhook(w http.ResponseWriter, r *http.Request, webhook *trigger.WebhookTrigger) {
	if webhook == nil {
		http.Error(w, "event callback not enabled", http.StatusServiceUnavailable)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		http.Error(w, "error reading body", http.StatusBadRequest)
		return
	}

	result := webhook.Handle(r.Context(), body,
		r.Header.Get("X-Lark-Request-Timestamp"),
		r.Header.Get("X-Lark-Request-Nonce"),
		r.Header.Get("X-Lark-Signature"),
	)

	switch result.Outcome {
	case trigger.OutcomeChallenge:
		writeJSON(w, http.StatusOK, map[string]string{"challenge": result.Challenge})
	case trigger.OutcomeUnauthorized:
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case trigger.OutcomeMalformed:
		http.Error(w, "malformed event", http.StatusBadRequest)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"outcome": string(result.Outcome)})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
