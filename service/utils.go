package service

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// NewHTTPClient returns a client with a global timeout
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// DoBody executes the request and returns the body if the status is 200
func DoBody(client *http.Client, req *http.Request) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, NewHTTPError(resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, MakeTemporary(fmt.Errorf("DoBody.ReadAll: %w", err))
	}
	return body, nil
}
