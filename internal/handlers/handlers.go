package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"reflect"
	"strings"
	"time"

	"rfpmanager/internal/ai"
	"rfpmanager/internal/auth"
	"rfpmanager/internal/mail"
	"rfpmanager/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const maxBodySize = 1 << 20

// MailboxTrigger управление опросом почтового ящика
type MailboxTrigger interface {
	Trigger() bool
	State() mail.State
	LastPass() *mail.PassStats
}

// Deps внешние зависимости обработчиков. Mailer и Poller могут быть nil, если почта не настроена.
type Deps struct {
	Mailer     mail.Sender
	AI         *ai.Service
	Correlator mail.Processor
	Poller     MailboxTrigger
	Tokens     *auth.TokenManager
	Logger     *log.Logger
	Timeout    time.Duration
	AppURL     string
	AppEnv     string
}

// Handler оборачивает Storage и сервисы для обработки запросов
type Handler struct {
	Store StorageInterface
	Deps

	validate *validator.Validate
	now      func() time.Time
}

// NewHandler создает новый Handler
func NewHandler(store StorageInterface, deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard, "", 0)
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 15 * time.Second
	}
	if deps.AI == nil {
		deps.AI = ai.NewService(nil, deps.Logger)
	}
	if deps.AppEnv == "" {
		deps.AppEnv = "development"
	}

	v := validator.New()
	// в ошибках валидации используем имена полей из json
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{Store: store, Deps: deps, validate: v, now: time.Now}
}

// PingHandler отвечает "ok" для проверки сервера
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// StatusHandler GET /api/rfp/test, без авторизации
func (h *Handler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "API is working",
		"timestamp":   h.now().UTC().Format(time.RFC3339),
		"environment": h.AppEnv,
	})
}

// envelope единый формат ответа API
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// apiError ошибка с HTTP-статусом
type apiError struct {
	Status  int
	Message string
	Details interface{}
}

func (e *apiError) Error() string {
	return e.Message
}

func newAPIError(status int, message string) *apiError {
	return &apiError{Status: status, Message: message}
}

// FieldError ошибка валидации одного поля
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string, details interface{}) {
	writeJSON(w, status, envelope{Success: false, Error: message, Details: details})
}

// respondError пишет apiError как есть; прочие ошибки логируются и отдаются как 500.
func (h *Handler) respondError(w http.ResponseWriter, err error, message string) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		writeError(w, apiErr.Status, apiErr.Message, apiErr.Details)
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		h.Logger.Printf("%s: %v", message, err)
		writeError(w, http.StatusGatewayTimeout, "Request timed out", nil)
		return
	}

	h.Logger.Printf("%s: %v", message, err)
	var details interface{}
	if h.AppEnv != "production" {
		details = err.Error()
	}
	writeError(w, http.StatusInternalServerError, message, details)
}

// decodeBody читает JSON-тело запроса и проверяет его тегами validate.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	// Ограничение размера тела, чтобы избежать DoS
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return newAPIError(http.StatusBadRequest, "Failed to read request body")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return newAPIError(http.StatusBadRequest, "Invalid JSON format")
	}
	return h.validateStruct(dst)
}

func (h *Handler) validateStruct(v interface{}) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return newAPIError(http.StatusBadRequest, err.Error())
	}
	details := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, FieldError{Field: fieldPath(fe), Message: fieldMessage(fe)})
	}
	return &apiError{Status: http.StatusBadRequest, Message: "Validation Error", Details: details}
}

// fieldPath путь поля без имени корневой структуры
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email"
	case "min":
		return fe.Field() + " must be at least " + fe.Param()
	case "max":
		return fe.Field() + " must be at most " + fe.Param()
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	case "gte":
		return fe.Field() + " must be greater than or equal to " + fe.Param()
	case "lte":
		return fe.Field() + " must be less than or equal to " + fe.Param()
	}
	return fe.Field() + " is invalid"
}

// requestContext контекст запроса с таймаутом обработчика
func (h *Handler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.Timeout)
}

// identity текущий пользователь; маршруты с Authenticate всегда его содержат
func identity(r *http.Request) *auth.Identity {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		return &auth.Identity{}
	}
	return id
}

// idParam достает идентификатор документа из пути
func idParam(r *http.Request, name, what string) (string, error) {
	id := models.NormalizeID(chi.URLParam(r, name))
	if !models.IsValidID(id) {
		return "", newAPIError(http.StatusBadRequest, "Invalid "+what+" id")
	}
	return id, nil
}
