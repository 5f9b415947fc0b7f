package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"opspulse/internal/api"
	"opspulse/internal/auth"
	"opspulse/internal/dashboard"
	"opspulse/internal/lifecycle"
)

// ErrorResponse представляет структуру ответа с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeJSONResponse отправляет JSON ответ
func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// writeErrorResponse отправляет ответ с ошибкой
func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	}
	writeJSONResponse(w, statusCode, response)
}

// statusFor сопоставляет ошибку команды HTTP статусу и сообщению для клиента
func statusFor(err error) (int, string) {
	var apiErr *api.APIError
	switch {
	case errors.As(err, &apiErr):
		// Сообщение сервера передается без изменений
		return http.StatusBadGateway, apiErr.Message
	case errors.Is(err, api.ErrNetwork):
		return http.StatusBadGateway, "Backend is unreachable"
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, dashboard.ErrUserNotPending):
		return http.StatusConflict, err.Error()
	case errors.Is(err, lifecycle.ErrVehicleRequired),
		errors.Is(err, lifecycle.ErrAgentRequired),
		errors.Is(err, dashboard.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, dashboard.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, dashboard.ErrNotMounted):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Request timed out"
	}
	return http.StatusInternalServerError, "Internal error"
}

// writeCommandError отправляет ответ для ошибки команды
func writeCommandError(w http.ResponseWriter, err error) {
	status, message := statusFor(err)
	writeErrorResponse(w, status, message)
}

// pathID извлекает числовой ID из параметра пути
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return id, nil
}

// decodeBody читает JSON тело запроса
func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
