package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"interview-gate/internal/auth"
	"interview-gate/internal/domain"
	"interview-gate/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"

	minSessionIDLength        = 8
	minQuestionLength         = 4
	defaultMaxQuestionLength  = 1000
	defaultAppName            = "309 Interview Agent API"
	errorNotFound             = "NOT_FOUND"
	errorMethodNotAllowed     = "METHOD_NOT_ALLOWED"
	sessionNotFoundMessage    = "세션을 찾을 수 없습니다."
	corsAllowedMethods        = "GET,POST,OPTIONS"
	corsAllowedRequestHeaders = "Authorization,Content-Type,X-Correlation-Id"
)

type ChatUseCase interface {
	Ask(ctx context.Context, in usecase.AskInput) (usecase.AskOutput, error)
}

type VisitorUseCase interface {
	Register(ctx context.Context, in usecase.RegisterInput) (domain.Visitor, error)
}

type DashboardUseCase interface {
	Stats(ctx context.Context) (domain.DashboardStats, error)
	Logs(ctx context.Context, limit int) ([]domain.ConversationRecord, error)
}

type AdminVerifier interface {
	Verify(ctx context.Context, rawToken string) (auth.Admin, error)
}

type Config struct {
	AppName           string
	AllowedOrigins    []string
	MaxQuestionLength int
}

type Handler struct {
	chat      ChatUseCase
	visitors  VisitorUseCase
	dashboard DashboardUseCase
	admins    AdminVerifier

	appName        string
	maxQuestionLen int
	origins        map[string]struct{}
	anyOrigin      bool
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

type chatResponse struct {
	SessionID string  `json:"session_id"`
	Answer    string  `json:"answer"`
	Blocked   bool    `json:"blocked"`
	Reason    *string `json:"reason"`
	Category  *string `json:"category"`
}

type visitorRequest struct {
	VisitorName        string `json:"visitor_name"`
	VisitorAffiliation string `json:"visitor_affiliation"`
	VisitRef           string `json:"visit_ref"`
}

type visitorResponse struct {
	SessionID          string  `json:"session_id"`
	VisitorName        string  `json:"visitor_name"`
	VisitorAffiliation *string `json:"visitor_affiliation"`
	VisitRef           *string `json:"visit_ref"`
}

type healthResponse struct {
	Status string `json:"status"`
	App    string `json:"app"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func NewHandler(chat ChatUseCase, visitors VisitorUseCase, dashboard DashboardUseCase, admins AdminVerifier, cfg Config) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	if visitors == nil {
		return nil, errors.New("handler: visitor use case must not be nil")
	}
	if dashboard == nil {
		return nil, errors.New("handler: dashboard use case must not be nil")
	}
	if admins == nil {
		return nil, errors.New("handler: admin verifier must not be nil")
	}
	h := &Handler{
		chat:           chat,
		visitors:       visitors,
		dashboard:      dashboard,
		admins:         admins,
		appName:        strings.TrimSpace(cfg.AppName),
		maxQuestionLen: cfg.MaxQuestionLength,
		origins:        make(map[string]struct{}, len(cfg.AllowedOrigins)),
	}
	if h.appName == "" {
		h.appName = defaultAppName
	}
	if h.maxQuestionLen <= 0 {
		h.maxQuestionLen = defaultMaxQuestionLength
	}
	for _, origin := range cfg.AllowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch origin {
		case "":
		case "*":
			h.anyOrigin = true
		default:
			h.origins[origin] = struct{}{}
		}
	}
	return h, nil
}

// Handle routes one API Gateway proxy event. It never returns an error; every
// failure is rendered as a JSON error body.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	start := time.Now()
	correlationID := header(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	resp := h.route(ctx, req)
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers[correlationHeader] = correlationID
	h.applyCORS(req, resp.Headers)

	slog.InfoContext(ctx, "request handled",
		"correlation_id", correlationID,
		"method", req.HTTPMethod,
		"path", req.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

func (h *Handler) route(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	if req.HTTPMethod == http.MethodOptions {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}
	}

	path := routePath(req.Path)
	var (
		method string
		serve  func(context.Context, events.APIGatewayProxyRequest) events.APIGatewayProxyResponse
	)
	switch path {
	case "/health":
		method, serve = http.MethodGet, h.health
	case "/visitors":
		method, serve = http.MethodPost, h.registerVisitor
	case "/chat":
		method, serve = http.MethodPost, h.ask
	case "/dashboard/stats":
		method, serve = http.MethodGet, h.requireAdmin(h.stats)
	case "/dashboard/logs":
		method, serve = http.MethodGet, h.requireAdmin(h.logs)
	default:
		return jsonResponse(http.StatusNotFound, errorResponse{Error: errorNotFound})
	}
	if req.HTTPMethod != method {
		return jsonResponse(http.StatusMethodNotAllowed, errorResponse{Error: errorMethodNotAllowed})
	}
	return serve(ctx, req)
}

func (h *Handler) health(context.Context, events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	return jsonResponse(http.StatusOK, healthResponse{Status: "ok", App: h.appName})
}

func (h *Handler) registerVisitor(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	var body visitorRequest
	if err := decodeBody(req.Body, &body); err != nil {
		return invalidInput("invalid_body")
	}
	if strings.TrimSpace(body.VisitorName) == "" {
		return invalidInput("visitor_name is required")
	}

	v, err := h.visitors.Register(ctx, usecase.RegisterInput{
		VisitorName:        body.VisitorName,
		VisitorAffiliation: body.VisitorAffiliation,
		VisitRef:           body.VisitRef,
	})
	if err != nil {
		return h.errorResponse(ctx, err)
	}
	return jsonResponse(http.StatusOK, visitorResponse{
		SessionID:          v.ID,
		VisitorName:        v.VisitorName,
		VisitorAffiliation: optional(v.VisitorAffiliation),
		VisitRef:           optional(v.VisitRef),
	})
}

func (h *Handler) ask(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	var body chatRequest
	if err := decodeBody(req.Body, &body); err != nil {
		return invalidInput("invalid_body")
	}
	if utf8.RuneCountInString(body.SessionID) < minSessionIDLength {
		return invalidInput("session_id must be at least 8 characters")
	}
	questionLen := utf8.RuneCountInString(body.Question)
	if questionLen < minQuestionLength {
		return invalidInput("question must be at least 4 characters")
	}
	if questionLen > h.maxQuestionLen {
		return invalidInput("question is too long")
	}

	out, err := h.chat.Ask(ctx, usecase.AskInput{SessionID: body.SessionID, Question: body.Question})
	if err != nil {
		return h.errorResponse(ctx, err)
	}
	resp := chatResponse{
		SessionID: out.SessionID,
		Answer:    out.Answer,
		Blocked:   out.Blocked,
		Reason:    optional(out.Reason),
		Category:  optional(out.Category),
	}
	return jsonResponse(http.StatusOK, resp)
}

func (h *Handler) stats(ctx context.Context, _ events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	stats, err := h.dashboard.Stats(ctx)
	if err != nil {
		return h.errorResponse(ctx, err)
	}
	return jsonResponse(http.StatusOK, stats)
}

func (h *Handler) logs(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	limit := 0
	if raw, ok := req.QueryStringParameters["limit"]; ok {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n < 1 {
			return invalidInput("limit must be between 1 and 200")
		}
		limit = n
	}
	records, err := h.dashboard.Logs(ctx, limit)
	if err != nil {
		return h.errorResponse(ctx, err)
	}
	return jsonResponse(http.StatusOK, records)
}

type routeFunc func(context.Context, events.APIGatewayProxyRequest) events.APIGatewayProxyResponse

func (h *Handler) requireAdmin(next routeFunc) routeFunc {
	return func(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
		token := auth.BearerToken(header(req.Headers, "Authorization"))
		if token == "" {
			return jsonResponse(http.StatusUnauthorized, errorResponse{
				Error:   string(usecase.ErrorUnauthorized),
				Message: "Authorization header missing",
			})
		}
		if _, err := h.admins.Verify(ctx, token); err != nil {
			switch {
			case errors.Is(err, auth.ErrForbidden):
				return h.errorResponse(ctx, &usecase.Error{Code: usecase.ErrorForbidden, Reason: "admin_not_allowed", Err: err})
			case errors.Is(err, auth.ErrUnauthorized):
				return h.errorResponse(ctx, &usecase.Error{Code: usecase.ErrorUnauthorized, Reason: "invalid_token", Err: err})
			default:
				return h.errorResponse(ctx, &usecase.Error{Code: usecase.ErrorUpstream, Reason: "jwks_error", Err: err})
			}
		}
		return next(ctx, req)
	}
}

func (h *Handler) errorResponse(ctx context.Context, err error) events.APIGatewayProxyResponse {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		slog.ErrorContext(ctx, "unexpected error", "err", err)
		return jsonResponse(http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)})
	}

	status := statusFor(ucErr.Code)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "request failed", "code", string(ucErr.Code), "reason", ucErr.Reason, "err", ucErr.Err)
	}
	body := errorResponse{Error: string(ucErr.Code)}
	switch ucErr.Code {
	case usecase.ErrorSessionNotFound:
		body.Message = sessionNotFoundMessage
	case usecase.ErrorInvalidInput:
		body.Message = ucErr.Reason
	}
	if status == http.StatusInternalServerError {
		body.Error = string(usecase.ErrorInternal)
	}
	return jsonResponse(status, body)
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorSessionNotFound:
		return http.StatusNotFound
	case usecase.ErrorUnauthorized:
		return http.StatusUnauthorized
	case usecase.ErrorForbidden:
		return http.StatusForbidden
	case usecase.ErrorUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) applyCORS(req events.APIGatewayProxyRequest, headers map[string]string) {
	origin := strings.TrimRight(header(req.Headers, "Origin"), "/")
	if origin == "" {
		return
	}
	if _, ok := h.origins[origin]; !ok && !h.anyOrigin {
		return
	}
	headers["Access-Control-Allow-Origin"] = origin
	headers["Access-Control-Allow-Credentials"] = "true"
	headers["Vary"] = "Origin"
	if req.HTTPMethod == http.MethodOptions {
		headers["Access-Control-Allow-Methods"] = corsAllowedMethods
		headers["Access-Control-Allow-Headers"] = corsAllowedRequestHeaders
	}
}

func invalidInput(message string) events.APIGatewayProxyResponse {
	return jsonResponse(http.StatusBadRequest, errorResponse{
		Error:   string(usecase.ErrorInvalidInput),
		Message: message,
	})
}

func jsonResponse(status int, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

func decodeBody(raw string, v any) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("empty body")
	}
	return json.Unmarshal([]byte(raw), v)
}

// routePath strips the optional /api prefix and any trailing slash.
func routePath(p string) string {
	p = strings.TrimRight(p, "/")
	if p == "/api" {
		return "/"
	}
	p = strings.TrimPrefix(p, "/api/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// header looks a header up case-insensitively; API Gateway preserves the
// client's casing.
func header(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
