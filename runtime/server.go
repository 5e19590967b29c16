package runtime

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
)

// Server exposes the command protocol over HTTP. Every endpoint accepts the
// same envelope; the path-specific routes additionally pin the command type.
type Server struct {
	handler     *Handler
	queueReader QueueReader
	token       string
	secret      []byte
	logger      *slog.Logger
}

// NewServer wires the HTTP boundary. token is the static shared secret;
// secret, when non-empty, additionally accepts short-lived service tokens
// signed with it. Empty token and secret disable auth.
func NewServer(handler *Handler, token string, secret []byte, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{handler: handler, token: token, secret: secret, logger: logger}
}

// WithQueueReader enables the read-only queue view routes.
func (s *Server) WithQueueReader(reader QueueReader) *Server {
	s.queueReader = reader
	return s
}

// Routes builds the request mux. The generic /runtime/command route accepts
// any command type; the typed routes reject envelopes whose type does not
// match the path.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /runtime/health", s.handleHealth)
	mux.HandleFunc("POST /runtime/command", s.commandRoute(""))
	mux.HandleFunc("POST /runtime/ingest", s.commandRoute(CommandIngest))
	mux.HandleFunc("POST /runtime/approve", s.commandRoute(CommandApprove))
	mux.HandleFunc("POST /runtime/dismiss", s.commandRoute(CommandDismiss))
	mux.HandleFunc("POST /runtime/feedback", s.commandRoute(CommandFeedback))
	if s.queueReader != nil {
		mux.HandleFunc("GET /runtime/queue", s.handleQueueList)
		mux.HandleFunc("GET /runtime/queue/{id}", s.handleQueueGet)
	}
	return s.recoverMiddleware(s.authMiddleware(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) commandRoute(want CommandType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			s.writeErrorResult(w, r, "", CodeBadRequest, "reading request body failed")
			return
		}

		cmd, err := ParseCommand(body)
		if err != nil {
			s.writeErrorResult(w, r, requestID(body), CodeBadRequest, err.Error())
			return
		}
		if want != "" && cmd.Type != want {
			message := fmt.Sprintf("command type %q does not match route %s", cmd.Type, r.URL.Path)
			s.writeErrorResult(w, r, cmd.Context.RequestID, CodeBadRequest, message)
			return
		}

		result, err := s.handler.Handle(r.Context(), cmd)
		if err != nil {
			code := errorCodeFor(err)
			if code == CodeInternal {
				s.logger.Error("command handling failed",
					"type", string(cmd.Type),
					"requestId", cmd.Context.RequestID,
					"error", err)
			}
			s.writeErrorResult(w, r, cmd.Context.RequestID, code, err.Error())
			return
		}

		s.logger.Info("command accepted",
			"type", string(cmd.Type),
			"requestId", cmd.Context.RequestID,
			"userId", cmd.Context.UserID)
		w.Header().Set("X-Request-Id", cmd.Context.RequestID)
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) writeErrorResult(w http.ResponseWriter, r *http.Request, reqID string, code ErrorCode, message string) {
	if reqID != "" {
		w.Header().Set("X-Request-Id", reqID)
	}
	writeJSON(w, code.HTTPStatus(), ErrorResult{
		Status:    "error",
		RequestID: reqID,
		Code:      code,
		Message:   message,
	})
}

// authMiddleware accepts the static bearer secret or a signed service token.
// The health route is always exempt.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	if s.token == "" && len(s.secret) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/runtime/health" {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			s.writeErrorResult(w, r, "", CodeUnauthorized, "missing bearer token")
			return
		}
		provided := strings.TrimPrefix(auth, "Bearer ")

		if s.token != "" && subtle.ConstantTimeCompare([]byte(provided), []byte(s.token)) == 1 {
			next.ServeHTTP(w, r)
			return
		}
		if len(s.secret) > 0 {
			if _, err := VerifyServiceToken(s.secret, provided); err == nil {
				next.ServeHTTP(w, r)
				return
			}
		}
		s.writeErrorResult(w, r, "", CodeUnauthorized, "invalid token")
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered in HTTP handler",
					"path", r.URL.Path,
					"panic", fmt.Sprintf("%v", rec),
					"stack", string(debug.Stack()))
				s.writeErrorResult(w, r, "", CodeInternal, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requestID pulls the request id out of a body that failed full validation so
// the error envelope can still echo it.
func requestID(body []byte) string {
	var probe struct {
		Context struct {
			RequestID string `json:"requestId"`
		} `json:"context"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	return probe.Context.RequestID
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
