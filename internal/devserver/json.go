package devserver

import (
	"encoding/json"
	"net/http"
)

var jsonCT = []string{"application/json"}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header()["Content-Type"] = jsonCT
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errMsg struct {
	Error string `json:"error"`
}

func errorResponse(msg string) errMsg { return errMsg{Error: msg} }
