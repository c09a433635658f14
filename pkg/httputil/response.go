package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/larpkeep/characterhub/pkg/authz"
)

// ErrorBody is the machine-readable error envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// ErrorResponse wraps an error body for the wire.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// statusCoder is implemented by the domain error kinds (authz.AccessError,
// authz.RequestError, identity.Error) that carry their own code and status.
type statusCoder interface {
	error
	Code() string
	Status() int
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 response with JSON data.
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes a 201 response with JSON data.
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent writes a 204 response.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteErrorBody writes an error envelope with an explicit code and status.
func WriteErrorBody(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorBody{
		Code:    code,
		Message: message,
		Status:  status,
	}})
}

// WriteDomainError translates a domain error into its wire form. Errors
// carrying their own code and status (access denials, request errors,
// authentication failures) keep them; anything else is an internal error and
// its detail is not leaked to the caller.
func WriteDomainError(w http.ResponseWriter, err error) {
	var coded statusCoder
	if errors.As(err, &coded) {
		WriteErrorBody(w, coded.Status(), coded.Code(), coded.Error())
		return
	}
	WriteErrorBody(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

// WriteRequestError writes a 400 with the REQUEST_ERROR code.
func WriteRequestError(w http.ResponseWriter, message string) {
	WriteErrorBody(w, http.StatusBadRequest, authz.CodeRequestError, message)
}

// WriteAccessDenied writes a 403 with the ACCESS_DENIED code.
func WriteAccessDenied(w http.ResponseWriter, message string) {
	if message == "" {
		message = "access denied"
	}
	WriteErrorBody(w, http.StatusForbidden, authz.CodeAccessDenied, message)
}

// WriteNotFound writes a 404.
func WriteNotFound(w http.ResponseWriter, message string) {
	if message == "" {
		message = "not found"
	}
	WriteErrorBody(w, http.StatusNotFound, "NOT_FOUND", message)
}

// WriteInternalError writes a 500 without leaking the underlying error.
func WriteInternalError(w http.ResponseWriter) {
	WriteErrorBody(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}
