package health

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/fx"

	"github.com/nhsiciliano/bot-binance-nh/internal/exchange"
	"github.com/nhsiciliano/bot-binance-nh/internal/modules/config"
	"github.com/nhsiciliano/bot-binance-nh/internal/modules/health/service"
	timesync "github.com/nhsiciliano/bot-binance-nh/internal/modules/timesync/service"
)

// Trigger — ручной запуск тика (/run). Реализуется раннером.
type Trigger interface {
	TriggerTick() bool // false: тик уже в полёте
}

func NewMux(cfg *config.Config, state *service.State, clk *timesync.Clock, ex *exchange.Client, trig Trigger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		// liveness: процесс жив
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		// readiness: конфиг загружен, был хотя бы один успешный тик
		if !state.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		// последние цены из websocket-кеша; пустая мапа, пока стрим не прогрелся
		prices := map[string]float64{}
		for _, sym := range cfg.Symbols {
			if px := ex.GetPrice(sym); px > 0 {
				prices[sym] = px
			}
		}
		resp := map[string]any{
			"lastPrices": prices,
			"ready":      state.Ready(),
			"uptimeSec":  int64(state.Uptime().Seconds()),
			"lastTickUnix": func() int64 {
				t := state.LastTick()
				if t.IsZero() {
					return 0
				}
				return t.Unix()
			}(),
			"clockOffsetMs": clk.Offset().Milliseconds(),
			"clockState":    clk.State().String(),
			"lastSyncUnix": func() int64 {
				t := clk.LastSyncAt()
				if t.IsZero() {
					return 0
				}
				return t.Unix()
			}(),
			"lastError": state.LastError(),
			"testnet":   cfg.UseTestnet,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = sonic.ConfigDefault.NewEncoder(w).Encode(resp)
	})

	// ручной прогон тика; 409 если плановый тик ещё не закончился
	mux.HandleFunc("/run", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if trig == nil || !trig.TriggerTick() {
			http.Error(w, "tick already running", http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("tick scheduled"))
	})

	return mux
}

func RunHTTP(lc fx.Lifecycle, cfg *config.Config, mux *http.ServeMux) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.HTTPAddr)
			if err != nil {
				return err
			}
			go func() { _ = srv.Serve(ln) }()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("health",
		fx.Provide(
			service.NewState,
			NewMux,
		),
		fx.Invoke(RunHTTP),
	)
}
