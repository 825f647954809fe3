package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bankgame/internal/auth"
	"bankgame/internal/config"
	"bankgame/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
)

type Server struct {
	cfg    config.APIConfig
	log    *slog.Logger
	engine game.Executor
	tokens *auth.Issuer
	mux    *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, engine game.Executor, tokens *auth.Issuer) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		log:    logger,
		engine: engine,
		tokens: tokens,
		mux:    chi.NewRouter(),
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
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler)
	r.Use(rateLimit(s.cfg.RateLimit, 4096))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Post("/auth/login", s.handleLogin)

	r.Get("/game/state", s.handleState)
	r.Get("/game/history", s.handleHistory)

	r.Get("/stocks/list", s.handleStocksList)
	r.Post("/stocks/buy", s.handleOrder("buy"))
	r.Post("/stocks/sell", s.handleOrder("sell"))
	r.Post("/stocks/drip", s.handleDRIP)

	r.Post("/bank/deposit", s.handleBank(game.BankDeposit))
	r.Post("/bank/withdraw", s.handleBank(game.BankWithdraw))
	r.Post("/bank/loan", s.handleBank(game.BankLoan))
	r.Post("/bank/repay", s.handleBank(game.BankRepay))

	r.Post("/expenses/add", s.handleExpenseAdd)
	r.Post("/expenses/remove", s.handleExpenseRemove)

	r.Post("/tick/advance", s.handleTickAdvance)

	r.Get("/leaderboard/top", s.handleLeaderboardTop)
	r.Post("/leaderboard/submit_web", s.handleLeaderboardSubmit)
	r.Get("/casino/top", s.handleCasinoTop)
	r.Post("/casino/submit", s.handleCasinoSubmit)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"took", time.Since(started).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// identify resolves the caller from a body token, the token query parameter
// or a bearer header, in that order.
func (s *Server) identify(r *http.Request, bodyToken string) (auth.Identity, error) {
	token := strings.TrimSpace(bodyToken)
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token == "" {
		token = bearerToken(r.Header.Get("Authorization"))
	}
	return s.tokens.Verify(token)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := game.Do[game.LoginResult](r.Context(), s.engine, game.Login{Username: in.Username})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	token, exp, err := s.tokens.Issue(res.AccountID, res.Username)
	if err != nil {
		s.log.Error("issue token failed", "username", res.Username, "err", err)
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"username":   res.Username,
		"created":    res.Created,
		"expires_at": exp.UTC(),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	id, err := s.identify(r, "")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	state, err := game.Do[game.StateView](r.Context(), s.engine, game.GetState{AccountID: id.AccountID})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStateJSON(state))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := s.identify(r, "")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	entries, err := game.Do[[]game.LedgerEntry](r.Context(), s.engine, game.GetHistory{AccountID: id.AccountID, Limit: limit})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]entryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, newEntryJSON(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (s *Server) handleStocksList(w http.ResponseWriter, r *http.Request) {
	instruments, err := game.Do[[]game.Instrument](r.Context(), s.engine, game.ListInstruments{})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	prices := make(map[string]float64, len(instruments))
	out := make([]instrumentJSON, 0, len(instruments))
	for _, inst := range instruments {
		prices[inst.Symbol] = inst.Price.InexactFloat64()
		out = append(out, newInstrumentJSON(inst))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"prices":      prices,
		"count":       len(instruments),
		"instruments": out,
	})
}

func (s *Server) handleOrder(side string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Token  string          `json:"token"`
			Symbol string          `json:"symbol"`
			Qty    decimal.Decimal `json:"qty"`
		}
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		id, err := s.identify(r, in.Token)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		res, err := game.Do[game.OrderResult](r.Context(), s.engine, game.PlaceOrder{OrderInput: game.OrderInput{
			AccountID: id.AccountID,
			Symbol:    in.Symbol,
			Side:      side,
			Quantity:  in.Qty,
		}})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newOrderJSON(res))
	}
}

func (s *Server) handleDRIP(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token   string `json:"token"`
		Symbol  string `json:"symbol"`
		Enabled bool   `json:"enabled"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.identify(r, in.Token)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	enabled, err := game.Do[bool](r.Context(), s.engine, game.SetDRIP{AccountID: id.AccountID, Symbol: in.Symbol, Enabled: in.Enabled})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbol": game.NormalizeSymbol(in.Symbol), "enabled": enabled})
}

func (s *Server) handleBank(op game.BankOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Token  string          `json:"token"`
			Amount decimal.Decimal `json:"amount"`
		}
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		id, err := s.identify(r, in.Token)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		bal, err := game.Do[game.BalanceView](r.Context(), s.engine, game.BankTransfer{AccountID: id.AccountID, Op: op, Amount: in.Amount})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, balanceJSON{
			Cash:    bal.Cash.InexactFloat64(),
			Deposit: bal.Deposit.InexactFloat64(),
			Loan:    bal.Loan.InexactFloat64(),
		})
	}
}

func (s *Server) handleExpenseAdd(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token     string          `json:"token"`
		Name      string          `json:"name"`
		Amount    decimal.Decimal `json:"amount"`
		Frequency string          `json:"frequency"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.identify(r, in.Token)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	exp, err := game.Do[game.RecurringExpense](r.Context(), s.engine, game.AddExpense{
		AccountID: id.AccountID,
		Name:      in.Name,
		Amount:    in.Amount,
		Frequency: in.Frequency,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newExpenseJSON(exp))
}

func (s *Server) handleExpenseRemove(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token string `json:"token"`
		Name  string `json:"name"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.identify(r, in.Token)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if _, err := game.Do[game.RecurringExpense](r.Context(), s.engine, game.RemoveExpense{AccountID: id.AccountID, Name: in.Name}); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleTickAdvance(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.identify(r, in.Token)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	state, err := game.Do[game.StateView](r.Context(), s.engine, game.AdvanceDay{AccountID: id.AccountID})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStateJSON(state))
}

func (s *Server) handleLeaderboardTop(w http.ResponseWriter, r *http.Request) {
	records, err := game.Do[[]game.LeaderboardRecord](r.Context(), s.engine, game.LeaderboardTop{Username: r.URL.Query().Get("username")})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]leaderboardJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, newLeaderboardJSON(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": out})
}

func (s *Server) handleLeaderboardSubmit(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.identify(r, in.Token)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	rec, err := game.Do[game.LeaderboardRecord](r.Context(), s.engine, game.SubmitLeaderboard{AccountID: id.AccountID})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"asset": rec.Asset.InexactFloat64(), "days": rec.Days})
}

func (s *Server) handleCasinoTop(w http.ResponseWriter, r *http.Request) {
	records, err := game.Do[[]game.CasinoRecord](r.Context(), s.engine, game.CasinoTop{Username: r.URL.Query().Get("username")})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]casinoJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, casinoJSON{Username: rec.Username, CasinoWin: rec.CasinoWin.InexactFloat64()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": out})
}

func (s *Server) handleCasinoSubmit(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token string          `json:"token"`
		Win   decimal.Decimal `json:"win"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.identify(r, in.Token)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	total, err := game.Do[decimal.Decimal](r.Context(), s.engine, game.RecordCasinoWin{AccountID: id.AccountID, Win: in.Win})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "total": total.InexactFloat64()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	var serr *game.SettlementError
	switch {
	case errors.Is(err, game.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, game.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrEngineStopped), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "game engine unavailable")
	case errors.As(err, &serr):
		writeError(w, http.StatusInternalServerError, "settlement failed for this account")
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

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
