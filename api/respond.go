package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"dreamsun/generation"
	"dreamsun/imagehost"
	"dreamsun/providers"
	"dreamsun/uploads"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"statusCode"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// errorStatus maps an error onto the message and status shown to the caller.
func errorStatus(err error) ErrorResponse {
	var (
		bodyErr   *bodyError
		validErr  *generation.ValidationError
		uploadErr *imagehost.UploadError
		emptyErr  *providers.EmptyResultError
		apiErr    *providers.APIError
	)
	switch {
	case errors.As(err, &bodyErr):
		return ErrorResponse{Error: bodyErr.msg, StatusCode: http.StatusBadRequest}
	case errors.As(err, &validErr):
		return ErrorResponse{Error: validErr.Error(), StatusCode: http.StatusBadRequest}
	case errors.Is(err, uploads.ErrNotFound):
		return ErrorResponse{Error: err.Error(), StatusCode: http.StatusNotFound}
	case errors.As(err, &uploadErr):
		return ErrorResponse{Error: uploadErr.Message, StatusCode: uploadErr.StatusCode}
	case errors.As(err, &emptyErr):
		return ErrorResponse{Error: providers.NoImagesMessage, StatusCode: http.StatusInternalServerError}
	case errors.As(err, &apiErr):
		return ErrorResponse{Error: apiErr.Message, StatusCode: apiErr.StatusCode}
	}
	return ErrorResponse{Error: err.Error(), StatusCode: http.StatusInternalServerError}
}

func writeError(w http.ResponseWriter, err error) {
	resp := errorStatus(err)
	if resp.StatusCode >= http.StatusInternalServerError {
		log.Printf("Request failed: %v", err)
	}
	writeJSON(w, resp.StatusCode, resp)
}
