package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

var bearerAuths map[string]string

const (
	// AuthorizationHeader is the header key to get the authorization token
	AuthorizationHeader = "authorization"
	tokenPrefix         = "Bearer "
)

// BearerAuthenticate rejects the requests without a valid bearer token (if a token is configured)
func BearerAuthenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodOptions && r.URL.Path != "" && r.URL.Path != "/" {
			if err := authenticate("default", r.Header.Get(AuthorizationHeader)); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				json.NewEncoder(w).Encode(err.Error())
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func authenticate(tokenKey, token string) error {
	if bearerAuths == nil {
		return fmt.Errorf("fatal error: no auth info found")
	}
	if bearerAuths[tokenKey] == "" {
		return nil // No auth required
	}
	switch {
	case token == "":
		return fmt.Errorf("token not found")
	case !strings.HasPrefix(token, tokenPrefix):
		return fmt.Errorf(`missing "%s" prefix`, tokenPrefix)
	case strings.TrimPrefix(token, tokenPrefix) != bearerAuths[tokenKey]:
		return fmt.Errorf("invalid token")
	}
	return nil
}
