package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/verifact/internal/facts"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin HTTP server",
	Long:  "Exposes pipeline triggers, settings, verified facts, and activity over HTTP for the admin UI.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := buildRouter(env)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// buildRouter wires the admin and read endpoints over the shared runtime env.
func buildRouter(env *env) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/reconcile", func(w http.ResponseWriter, req *http.Request) {
			result, err := facts.NewReconciler(env.facts, env.sources, env.registry, env.limiter).Run(req.Context())
			writeResult(w, result, err)
		})
		r.Post("/promote", func(w http.ResponseWriter, req *http.Request) {
			result, err := facts.NewPromoter(env.facts).Run(req.Context())
			writeResult(w, result, err)
		})
		r.Post("/recalc", func(w http.ResponseWriter, req *http.Request) {
			result, err := facts.NewRecalculator(env.facts, env.sources).Run(req.Context())
			writeResult(w, result, err)
		})
		r.Post("/backfill", func(w http.ResponseWriter, req *http.Request) {
			result, err := facts.NewBackfiller(env.facts, env.sources, env.registry, env.limiter).Run(req.Context())
			writeResult(w, result, err)
		})
		r.Post("/rescore-identity", func(w http.ResponseWriter, req *http.Request) {
			scorer, cleanup, err := buildIdentityScorer(req.Context(), env)
			if err != nil {
				writeResult(w, nil, err)
				return
			}
			defer cleanup()
			result, err := scorer.RescoreAll(req.Context())
			writeResult(w, result, err)
		})

		r.Get("/settings", func(w http.ResponseWriter, req *http.Request) {
			settings, err := facts.LoadSettings(req.Context(), env.facts)
			writeResult(w, settings, err)
		})
		r.Patch("/settings", func(w http.ResponseWriter, req *http.Request) {
			var patch facts.SettingsPatch
			if err := json.NewDecoder(req.Body).Decode(&patch); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
			updated, err := env.facts.UpdateSettings(req.Context(), patch)
			writeResult(w, updated, err)
		})

		r.Get("/activity", func(w http.ResponseWriter, req *http.Request) {
			limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
			entries, err := env.facts.RecentActivity(req.Context(), limit)
			writeResult(w, entries, err)
		})
	})

	r.Get("/facts", func(w http.ResponseWriter, req *http.Request) {
		entity := req.URL.Query().Get("entity")
		attribute := req.URL.Query().Get("attribute")
		if entity == "" || attribute == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "entity and attribute are required"})
			return
		}
		rows, err := env.facts.ListFacts(req.Context(), entity, attribute)
		writeResult(w, rows, err)
	})

	r.Post("/facts/request", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Entity       string  `json:"entity"`
			Attribute    string  `json:"attribute"`
			ClaimedValue *string `json:"claimed_value,omitempty"`
			ClaimedYear  *int    `json:"claimed_year,omitempty"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if body.Entity == "" || body.Attribute == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "entity and attribute are required"})
			return
		}
		if err := env.facts.RequestFact(req.Context(), body.Entity, body.Attribute, body.ClaimedValue, body.ClaimedYear); err != nil {
			writeResult(w, nil, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeResult(w http.ResponseWriter, v any, err error) {
	if err != nil {
		zap.L().Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
