package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"cafeboss/internal/config"
	"cafeboss/internal/game"
	"cafeboss/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	cfg  config.APIConfig
	log  *slog.Logger
	game *game.Service
	mux  *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, gameSvc *game.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:  cfg,
		log:  logger,
		game: gameSvc,
		mux:  chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout()))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/catalog", s.handleCatalog)
		r.Post("/teams", s.handleJoin)
		r.Route("/teams/{name}", func(r chi.Router) {
			r.Get("/", s.handleTeam)
			r.Get("/history", s.handleHistory)
			r.Post("/recipe", s.handleRecipe)
			r.Post("/overheads", s.handleOverheads)
			r.Post("/strategy", s.handleStrategy)
			r.Post("/price", s.handlePrice)
			r.Get("/crisis", s.handleCrisisEvent)
			r.Post("/crisis", s.handleCrisis)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.instructorMiddleware)
			r.Get("/roster", s.handleRoster)
			r.Post("/stage", s.handleStage)
			r.Post("/reset", s.handleReset)
		})
	})
}

func (s *Server) timeout() time.Duration {
	if s.cfg.RequestTimeout > 0 {
		return s.cfg.RequestTimeout
	}
	return 30 * time.Second
}

// instructorMiddleware guards the dashboard routes. An empty configured token
// disables the instructor surface entirely.
func (s *Server) instructorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("X-Instructor-Token"))
		if s.cfg.InstructorToken == "" || token != s.cfg.InstructorToken {
			writeError(w, http.StatusForbidden, "instructor token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"styles": game.Styles(),
		"beans":  game.BeanOptions(),
		"milks":  game.MilkOptions(),
		"stage":  int(s.game.Stage()),
	})
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, created, err := s.game.JoinTeam(in.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
		metrics.TeamsJoined.Inc()
	}
	writeJSON(w, status, view)
}

func (s *Server) handleTeam(w http.ResponseWriter, r *http.Request) {
	view, err := s.game.Team(chi.URLParam(r, "name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.game.History(chi.URLParam(r, "name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (s *Server) handleRecipe(w http.ResponseWriter, r *http.Request) {
	var in struct {
		StyleID string `json:"style_id"`
		Bean    string `json:"bean"`
		Milk    string `json:"milk"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := s.game.SubmitRecipe(game.RecipeInput{
		Team:           chi.URLParam(r, "name"),
		StyleID:        in.StyleID,
		Bean:           in.Bean,
		Milk:           in.Milk,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		metrics.Submissions.WithLabelValues("recipe", metrics.OutcomeRejected).Inc()
		writeDomainError(w, err)
		return
	}
	metrics.Submissions.WithLabelValues("recipe", metrics.OutcomeOK).Inc()
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleOverheads(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Staff     int64 `json:"staff"`
		Operating int64 `json:"operating"`
		Marketing int64 `json:"marketing"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := s.game.SubmitOverheads(game.OverheadsInput{
		Team:           chi.URLParam(r, "name"),
		Staff:          in.Staff,
		Operating:      in.Operating,
		Marketing:      in.Marketing,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		metrics.Submissions.WithLabelValues("overheads", metrics.OutcomeRejected).Inc()
		writeDomainError(w, err)
		return
	}
	metrics.Submissions.WithLabelValues("overheads", metrics.OutcomeOK).Inc()
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleStrategy(w http.ResponseWriter, r *http.Request) {
	var in struct {
		SalesForecast int64 `json:"sales_forecast"`
		ProfitMargin  int64 `json:"profit_margin"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := s.game.SubmitStrategy(game.StrategyInput{
		Team:           chi.URLParam(r, "name"),
		SalesForecast:  in.SalesForecast,
		ProfitMargin:   in.ProfitMargin,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		metrics.Submissions.WithLabelValues("strategy", metrics.OutcomeRejected).Inc()
		writeDomainError(w, err)
		return
	}
	metrics.Submissions.WithLabelValues("strategy", metrics.OutcomeOK).Inc()
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	var in struct {
		FinalPrice int64 `json:"final_price"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := s.game.SubmitFinalPrice(game.PriceInput{
		Team:           chi.URLParam(r, "name"),
		FinalPrice:     in.FinalPrice,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		metrics.Submissions.WithLabelValues("price", metrics.OutcomeRejected).Inc()
		writeDomainError(w, err)
		return
	}
	metrics.Submissions.WithLabelValues("price", metrics.OutcomeOK).Inc()
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCrisisEvent(w http.ResponseWriter, r *http.Request) {
	view, err := s.game.Team(chi.URLParam(r, "name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	title, choices, err := game.MonthChoices(game.Month(view.MonthIndex))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"month_index": view.MonthIndex,
		"month_label": game.Month(view.MonthIndex).Label(),
		"title":       title,
		"choices":     choices,
	})
}

func (s *Server) handleCrisis(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Choice string `json:"choice"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := chi.URLParam(r, "name")
	out, err := s.game.ResolveCrisis(game.CrisisInput{
		Team:           name,
		Choice:         game.CrisisChoice(strings.ToUpper(strings.TrimSpace(in.Choice))),
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	metrics.CrisisDecisions.WithLabelValues(out.Entry.MonthLabel, strings.ToUpper(strings.TrimSpace(in.Choice))).Inc()
	if out.LoanAmount > 0 {
		metrics.LoanSharkLoans.Inc()
	}
	if out.Settlement != nil {
		result := "loss"
		if out.Settlement.Win {
			result = "win"
		}
		metrics.GamesFinished.WithLabelValues(result).Inc()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRoster(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"stage": int(s.game.Stage()),
		"teams": s.game.Roster(),
	})
}

func (s *Server) handleStage(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Stage int `json:"stage"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.game.SetStage(game.Stage(in.Stage)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stage": in.Stage})
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.game.Reset()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrInvalidSelection), errors.Is(err, game.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrInconsistentClaim):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, game.ErrOutOfSequence),
		errors.Is(err, game.ErrStageClosed),
		errors.Is(err, game.ErrDuplicateSubmission),
		errors.Is(err, game.ErrGameFinished):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, game.ErrTeamNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func idempotencyKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" {
		return key
	}
	return uuid.NewString()
}
