// Package session holds the confirmed identity for one chat session and the
// registrar client that reserves usernames against the login endpoint.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// ErrNameTaken is returned when the server rejects a username as already in
// use. The caller re-prompts and may retry with another name indefinitely.
var ErrNameTaken = errors.New("username already taken")

// ErrConfirmed is returned when Confirm is called on an identity that is
// already set. The confirmed username is immutable for the session.
var ErrConfirmed = errors.New("identity already confirmed")

// Identity holds the locally confirmed username once registration succeeds.
type Identity struct {
	mu       sync.RWMutex
	username string
}

// Confirm sets the username exactly once.
func (i *Identity) Confirm(username string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.username != "" {
		return ErrConfirmed
	}
	if username == "" {
		return errors.New("username must not be empty")
	}
	i.username = username
	return nil
}

// Username returns the confirmed username and whether one is set.
func (i *Identity) Username() (string, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.username, i.username != ""
}

// Registrar reserves usernames through the HTTP login collaborator.
type Registrar struct {
	baseURL string
	client  *http.Client
}

// NewRegistrar creates a Registrar for the login endpoint at baseURL.
func NewRegistrar(baseURL string) *Registrar {
	return &Registrar{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type registerRequest struct {
	Name string `json:"name"`
}

type registerResponse struct {
	Accepted bool `json:"accepted"`
}

// Register asks the server to reserve the candidate name. It returns
// ErrNameTaken when the name is rejected; any other error means the attempt
// itself failed and can simply be retried.
func (r *Registrar) Register(ctx context.Context, name string) error {
	body, err := json.Marshal(registerRequest{Name: name})
	if err != nil {
		return fmt.Errorf("failed to encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach login endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login endpoint returned status %d", resp.StatusCode)
	}

	var result registerResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}
	if !result.Accepted {
		return ErrNameTaken
	}
	return nil
}
