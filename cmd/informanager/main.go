package main

import (
	"context"
	"encoding/json"
	"expvar"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ohjeongjoo/informanager/internal/config"
	"github.com/ohjeongjoo/informanager/internal/httpapi"
	"github.com/ohjeongjoo/informanager/internal/hub"
	"github.com/ohjeongjoo/informanager/internal/models"
	"github.com/ohjeongjoo/informanager/internal/store"
	"github.com/ohjeongjoo/informanager/internal/store/postgres"
	"github.com/ohjeongjoo/informanager/internal/telemetry"
	"github.com/ohjeongjoo/informanager/internal/worker"
)

type eventEnvelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

const realtimeOffset = "realtime"

func main() {
	cfg := config.Load()
	shutdownTelemetry := telemetry.Setup(telemetry.Config{
		ServiceName: "informanager",
		Environment: cfg.DeployEnv,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(context.Background(), pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	st := postgres.NewStore(pool)
	h := hub.New()

	handler := httpapi.NewHandler(st, httpapi.Options{
		SessionTTL:  cfg.SessionTTL,
		KioskLat:    cfg.KioskLat,
		KioskLng:    cfg.KioskLng,
		MaxDistance: cfg.ProximityMaxDistance,
	})
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		PerMinute: cfg.RateLimitPerMinute,
		Burst:     cfg.RateLimitBurst,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", expvar.Handler())
	mux.Handle("/realtime/", sockjsHandler(st, h))
	mux.Handle("/", httpapi.AuthMiddleware(st, handler.Routes()))

	otelHandler := otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(mux)), "informanager")
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	notifier := worker.New(st, worker.Config{
		BatchSize:   cfg.NotifyBatchSize,
		MaxAttempts: cfg.NotifyMaxAttempts,
		Provider:    cfg.PushProvider,
	})
	go worker.Start(workerCtx, cfg.NotifyPollInterval, notifier)

	go pollRealtime(workerCtx, st, h, cfg.RealtimePollInterval)

	go func() {
		log.Printf("informanager listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	cancelWorkers()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func sockjsHandler(st store.Store, h *hub.Hub) http.Handler {
	return sockjs.NewHandler("/realtime", sockjs.DefaultOptions, func(session sockjs.Session) {
		req := session.Request()
		sessionID := sessionIDFromRequest(req)
		if sessionID == "" {
			_ = session.Close(4001, "missing session")
			return
		}
		_, staff, err := st.GetSession(context.Background(), sessionID)
		if err != nil {
			_ = session.Close(4002, "invalid session")
			return
		}

		client := &hub.Client{
			ID:   uuid.NewString(),
			Send: make(chan []byte, 16),
			Subscription: hub.Subscription{
				StaffID: staff.StaffID,
				Role:    staff.Role,
			},
		}
		h.Register(client)
		defer h.Unregister(client)

		go func() {
			for msg := range client.Send {
				_ = session.Send(string(msg))
			}
		}()

		for {
			msg, err := session.Recv()
			if err != nil {
				return
			}
			parsed, ok := hub.ParseSubscribe([]byte(msg))
			if !ok {
				continue
			}
			if parsed.Action == "unsubscribe" {
				h.UpdateSubscription(client, hub.Subscription{StaffID: staff.StaffID, Role: staff.Role})
				continue
			}
			// Only admins and managers may widen their view beyond their
			// own assignments.
			if staff.Role == models.RoleStaff && parsed.StaffID != staff.StaffID {
				_ = session.Close(4003, "access denied")
				return
			}
			h.UpdateSubscription(client, hub.Subscription{
				StaffID: parsed.StaffID,
				Role:    parsed.Role,
			})
		}
	})
}

// pollRealtime reads the outbox and fans each event out to connected
// clients. It keeps its own offset so redeploys resume where the last
// process stopped.
func pollRealtime(ctx context.Context, st store.Store, h *hub.Hub, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}

	lastTime, lastID, err := st.GetWorkerOffset(ctx, realtimeOffset)
	if err != nil {
		log.Printf("load offset error: %v", err)
	}

	var running int32
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !atomic.CompareAndSwapInt32(&running, 0, 1) {
			continue
		}
		pollCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		events, err := st.ListOutboxEvents(pollCtx, lastTime, lastID, 100)
		cancel()
		if err == nil {
			for _, event := range events {
				lastTime = event.CreatedAt
				lastID = event.EventID
				env := eventEnvelope{Type: event.Type, Payload: event.Payload, CreatedAt: event.CreatedAt}
				payload, _ := json.Marshal(env)
				h.Broadcast(payload, metaFromPayload(event.Payload))
			}
			if len(events) > 0 {
				pollCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				if err := st.SetWorkerOffset(pollCtx, realtimeOffset, lastTime, lastID); err != nil {
					log.Printf("update offset error: %v", err)
				}
				cancel()
			}
		}
		atomic.StoreInt32(&running, 0)
	}
}

func metaFromPayload(payload []byte) hub.Meta {
	var data struct {
		AssignedStaffID *string `json:"assigned_staff_id"`
	}
	meta := hub.Meta{Roles: []string{models.RoleAdmin, models.RoleManager}}
	if err := json.Unmarshal(payload, &data); err != nil {
		return meta
	}
	if data.AssignedStaffID != nil {
		meta.StaffID = *data.AssignedStaffID
	}
	return meta
}

func sessionIDFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := splitBearer(auth)
		if parts != "" {
			return parts
		}
	}
	return r.URL.Query().Get("session_id")
}

func splitBearer(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}
