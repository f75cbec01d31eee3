package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"exam-arena-service/internal/app"
	"exam-arena-service/internal/assist"
	"exam-arena-service/internal/auth"
	"exam-arena-service/internal/ledger"
)

// RouterConfig wires the use cases into the HTTP surface.
type RouterConfig struct {
	Quiz           *app.QuizService
	Bank           app.QuestionBank
	Assist         *assist.Service
	Ledger         *ledger.Service
	Auth           *auth.Authenticator
	AllowedOrigins []string
	// Health reports dependency readiness for /healthz; nil means always healthy.
	Health func(ctx context.Context) error
}

// NewRouter builds the chi router serving REST, websocket and operational endpoints.
func NewRouter(cfg RouterConfig) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", auth.UserHeader},
		ExposedHeaders:   []string{FallbackLevelHeader, FallbackMessageHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", healthHandler(cfg.Health))
	r.Handle("/metrics", promhttp.Handler())

	questions := &QuestionHandler{bank: cfg.Bank}
	ai := &AIHandler{assist: cfg.Assist}
	gamification := &GamificationHandler{ledger: cfg.Ledger}
	sessions := &SessionHandler{service: cfg.Quiz}
	ws := NewWSHandler(cfg.Quiz)

	r.Group(func(pr chi.Router) {
		pr.Use(cfg.Auth.Middleware)
		pr.Use(middleware.Timeout(2 * time.Minute))

		pr.Get("/quiz", questions.List)

		pr.Route("/ai", func(ar chi.Router) {
			ar.Post("/chat", ai.Chat)
			ar.Post("/study", ai.Study)
			ar.Post("/hint", ai.Hint)
			ar.Post("/explain", ai.Explain)
		})

		pr.Route("/gamification", func(gr chi.Router) {
			gr.Get("/me", gamification.Me)
			gr.Post("/quiz-result", gamification.QuizResult)
			gr.Post("/use-powerup", gamification.UsePowerUp)
			gr.Post("/buy-island", gamification.BuyIsland)
			gr.Post("/buy-shield", gamification.BuyShield)
			gr.Post("/spin", gamification.Spin)
		})

		pr.Route("/sessions", func(sr chi.Router) {
			sr.Post("/", sessions.Create)
			sr.Get("/{id}", sessions.Get)
			sr.Delete("/{id}", sessions.Delete)
		})
	})

	// Websocket upgrades must not run under the request timeout.
	r.Group(func(wr chi.Router) {
		wr.Use(cfg.Auth.Middleware)
		wr.Get("/ws/sessions/{id}", ws.ServeWS)
	})

	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
