package httpx

import (
	"encoding/json"
	"net/http"
)

type APIError struct {
	Error   string      `json:"error"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, code, msg string, details interface{}) {
	WriteJSON(w, status, APIError{
		Error:   msg,
		Code:    code,
		Details: details,
	})
}

// GatewayAck is the fixed-shape acknowledgement every gateway-facing
// callback returns, regardless of internal processing outcome.
type GatewayAck struct {
	ResponseCode string `json:"ResponseCode"`
	ResponseDesc string `json:"ResponseDesc"`
}

// Ack always replies 200 success to the gateway to stop its retry storm.
func Ack(w http.ResponseWriter) {
	WriteJSON(w, http.StatusOK, GatewayAck{ResponseCode: "0", ResponseDesc: "Success"})
}
