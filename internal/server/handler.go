package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/VinMeld/complaint-portal/internal/captcha"
	"github.com/VinMeld/complaint-portal/internal/db"
	"github.com/VinMeld/complaint-portal/internal/logging"
	"github.com/VinMeld/complaint-portal/internal/models"
	"github.com/VinMeld/complaint-portal/internal/notify"
	"github.com/VinMeld/complaint-portal/internal/staging"
	"github.com/VinMeld/complaint-portal/internal/validate"
)

// CaptchaService issues and consumes captcha challenges.
type CaptchaService interface {
	Issue(ctx context.Context) (captcha.Challenge, error)
	ValidateAndConsume(ctx context.Context, sessionID, code string) (bool, error)
}

// Repository is the relational storage behind the auxiliary endpoints.
type Repository interface {
	Courts(ctx context.Context) ([]models.Court, error)
	SubmitSurvey(ctx context.Context, s models.Survey) error
	RecordReferral(ctx context.Context, department, submissionID string, at time.Time) error
	MonthlyReferralReport(ctx context.Context, month, year int) ([]models.MonthlyReferralReport, error)
}

const (
	defaultLogLines = 50
	maxLogLines     = 10000
)

type Handler struct {
	Captcha   CaptchaService
	Staging   *staging.Store
	Archiver  staging.Archiver
	DB        Repository
	Mailer    notify.Mailer
	EmailList []string
	LogPath   string
	MaxFiles  int
	UIOrigin  string
	Logger    *slog.Logger
	Now       func() time.Time

	once   sync.Once
	routes http.Handler
}

func NewHandler(cs CaptchaService, store *staging.Store, repo Repository) *Handler {
	return &Handler{
		Captcha:  cs,
		Staging:  store,
		Archiver: staging.NopArchiver{},
		DB:       repo,
		MaxFiles: 20,
		Logger:   slog.Default(),
		Now:      time.Now,
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.once.Do(func() { h.routes = h.Routes() })
	h.routes.ServeHTTP(w, r)
}

// Routes builds the mux wrapped in the middleware chain.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.Root)
	mux.HandleFunc("GET /courts", h.wrap(h.Courts))
	mux.HandleFunc("GET /captcha", h.wrap(h.IssueCaptcha))
	mux.HandleFunc("POST /submit-form", h.wrap(h.SubmitForm))
	mux.HandleFunc("POST /contact-details", h.ContactDetails)
	mux.HandleFunc("POST /survey", h.wrap(h.Survey))
	mux.HandleFunc("POST /send-email", h.SendEmail)
	mux.HandleFunc("GET /log", h.wrap(h.Log))
	mux.HandleFunc("GET /monthly-referral-report", h.MonthlyReferralReport)

	var next http.Handler = mux
	if h.UIOrigin != "" {
		next = CORS(h.UIOrigin)(next)
	}
	return RequestID(SecurityHeaders(h.accessLog(next)))
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, "API is running...")
}

func (h *Handler) Courts(w http.ResponseWriter, r *http.Request) error {
	courts, err := h.DB.Courts(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, models.CourtsResponse{CourtsList: courts})
	return nil
}

func (h *Handler) IssueCaptcha(w http.ResponseWriter, r *http.Request) error {
	ch, err := h.Captcha.Issue(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, models.CaptchaResponse{
		SessionID:    ch.SessionID,
		CaptchaImage: base64.StdEncoding.EncodeToString(ch.Image),
	})
	return nil
}

func (h *Handler) ContactDetails(w http.ResponseWriter, r *http.Request) {
	var req models.ContactDetails
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if err := validate.ContactDetails(req); err != nil {
		badRequest(w, err.Error())
		return
	}
	h.Logger.Info("contact details validated", "court_case_number", req.CourtCaseNumber, "courthouse", req.Courthouse)
	writeJSON(w, http.StatusOK, models.ContactDetailsResponse{
		Success: true,
		Message: "Validation successful",
		Data:    req,
	})
}

func (h *Handler) Survey(w http.ResponseWriter, r *http.Request) error {
	var req models.Survey
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return nil
	}
	if err := validate.Survey(req); err != nil {
		badRequest(w, err.Error())
		return nil
	}
	err := h.DB.SubmitSurvey(r.Context(), req)
	if errors.Is(err, db.ErrDuplicateSurvey) {
		reject(w, "This survey has already been submitted.")
		return nil
	}
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, req)
	return nil
}

func (h *Handler) SendEmail(w http.ResponseWriter, r *http.Request) {
	var req models.EmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	ip := req.IP
	if ip == "" {
		ip, _, _ = net.SplitHostPort(r.RemoteAddr)
	}

	msg, err := notify.BlockedRequest(h.EmailList, notify.DecodeIssue(req.Issue), ip)
	if err == nil {
		if h.Mailer == nil {
			err = errors.New("mailer not configured")
		} else {
			err = h.Mailer.Send(r.Context(), msg)
		}
	}
	if err != nil {
		h.Logger.Error("blocked request notification failed", "ip", ip, "error", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to send email: " + err.Error()})
		return
	}
	h.Logger.Info("blocked request notification sent", "ip", ip, "recipients", len(h.EmailList))
	writeJSON(w, http.StatusOK, models.EmailResponse{Success: true, Message: "Email sent."})
}

func (h *Handler) Log(w http.ResponseWriter, r *http.Request) error {
	n := defaultLogLines
	if v, err := strconv.Atoi(r.URL.Query().Get("lines")); err == nil && v > 0 {
		n = min(v, maxLogLines)
	}
	path := h.LogPath
	if path == "" {
		path = logging.FilePath("logs")
	}
	lines, err := logging.TailLines(path, n)
	if errors.Is(err, os.ErrNotExist) {
		writeJSON(w, http.StatusOK, "Log file not found.")
		return nil
	}
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(lines)
}

func (h *Handler) MonthlyReferralReport(w http.ResponseWriter, r *http.Request) {
	now := h.Now()
	month, ok := intParam(r, "month", int(now.Month()))
	if !ok {
		badRequest(w, "month must be an integer")
		return
	}
	year, ok := intParam(r, "year", now.Year())
	if !ok {
		badRequest(w, "year must be an integer")
		return
	}
	if err := validate.ReportPeriod(month, year, now); err != nil {
		h.Logger.Warn("invalid report period", "month", month, "year", year, "error", err)
		badRequest(w, err.Error())
		return
	}

	report, err := h.DB.MonthlyReferralReport(r.Context(), month, year)
	if err != nil {
		h.Logger.Error("monthly referral report failed", "month", month, "year", year, "error", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Error:     err.Error(),
			Title:     "Error retrieving monthly referral report",
			RequestID: requestID(r.Context()),
		})
		return
	}
	h.Logger.Info("monthly referral report", "month", month, "year", year, "departments", len(report))
	writeJSON(w, http.StatusOK, models.ReportResponse{
		Success:    true,
		Month:      month,
		Year:       year,
		ReportDate: time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format("2006-01"),
		Data:       report,
	})
}

func intParam(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	return v, err == nil
}
