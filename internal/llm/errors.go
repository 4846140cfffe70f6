package llm

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

var (
	// ErrCredentialInvalid means the provider rejected the API key. It is never retried.
	ErrCredentialInvalid = errors.New("model credential invalid")
	ErrAllModelsFailed   = errors.New("all models failed")
	ErrNoModels          = errors.New("no models configured")
	ErrDecisionParse     = errors.New("decision parse failed")
)

var credentialMarkers = []string{
	"401",
	"api_key_invalid",
	"api key not valid",
	"invalid api key",
	"unauthenticated",
}

// IsCredentialError reports whether err means the API key itself was rejected
func IsCredentialError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCredentialInvalid) {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusUnauthorized {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range credentialMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
