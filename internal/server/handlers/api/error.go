package api

import "fmt"

// APIError is the JSON body of every failed admin or push response.
// Code is one of the E_* constants; Message is shown to operators as-is.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
