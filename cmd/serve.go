package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tax-engine/internal/engine"
	"github.com/sells-group/tax-engine/internal/ledger"
	"github.com/sells-group/tax-engine/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the calculation HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		eng, err := initEngine()
		if err != nil {
			return err
		}
		l, st, err := initLedger(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		mux := newServeMux(eng, l)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// calculateRequest is the POST /calculate body. Money fields are decimal
// strings inside the model's JSON form.
type calculateRequest struct {
	TenantID string                 `json:"tenant_id"`
	Profile  *model.TaxpayerProfile `json:"profile"`
	Sources  []model.IncomeSource   `json:"sources"`
}

func newServeMux(eng *engine.Engine, l *ledger.Ledger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /taxyears", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(eng.Registry().Years())
	})

	mux.HandleFunc("POST /calculate", func(w http.ResponseWriter, r *http.Request) {
		var req calculateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.Profile == nil {
			http.Error(w, `{"error":"profile is required"}`, http.StatusBadRequest)
			return
		}

		result, err := eng.Calculate(req.Profile, req.Sources)
		if err != nil {
			zap.L().Warn("calculation rejected", zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}

		response := map[string]any{"result": result}

		if req.TenantID != "" {
			snap, err := l.Record(r.Context(), req.TenantID,
				recordInputs{Profile: req.Profile, Sources: req.Sources}, result)
			if err != nil {
				zap.L().Error("snapshot record failed",
					zap.String("tenant", req.TenantID),
					zap.Error(err),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]string{"error": "snapshot record failed"})
				return
			}
			response["snapshot_id"] = snap.ID
			response["sequence"] = snap.Sequence
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	})

	mux.HandleFunc("GET /ledger/{tenant}/verify", func(w http.ResponseWriter, r *http.Request) {
		tenant := r.PathValue("tenant")
		n, err := l.VerifyChain(r.Context(), tenant)
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]any{
				"tenant":   tenant,
				"verified": n,
				"error":    err.Error(),
			})
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"tenant": tenant, "verified": n})
	})

	return mux
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
