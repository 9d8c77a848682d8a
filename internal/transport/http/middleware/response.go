package middleware

import (
	"encoding/json"
	"net/http"
)

// writeJSONError writes a failed response envelope with the correct Content-Type.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Success bool   `json:"success"`
		Msg     string `json:"msg"`
	}{Msg: msg})
}
