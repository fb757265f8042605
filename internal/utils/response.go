package utils

import (
	"encoding/json"
	"net/http"
)

// Body is a flat JSON object; every response carries "success".
type Body map[string]interface{}

func WriteJSON(w http.ResponseWriter, status int, payload interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(payload)
}

// Success writes {"success": true, ...fields}.
func Success(w http.ResponseWriter, status int, fields Body) error {
	body := Body{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	return WriteJSON(w, status, body)
}

// Failure writes {"success": false, "error": message, ...details}.
func Failure(w http.ResponseWriter, status int, message string, details Body) error {
	body := Body{"success": false, "error": message}
	for k, v := range details {
		body[k] = v
	}
	return WriteJSON(w, status, body)
}
