// Package auth is the credential collaborator: it owns the credential
// lifecycle and hands the engine a read-only authorization state.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
)

// State is the authorization view the engine reads; it never manages the
// credential itself.
type State struct {
	Authorized bool   `json:"authorized"`
	Email      string `json:"email,omitempty"`
}

// Authorizer is implemented by credential backends.
type Authorizer interface {
	// Authorize acquires (or re-reads) the credential and returns the
	// resulting state. It is safe to retry.
	Authorize(ctx context.Context) (State, error)
	// Revoke discards the credential.
	Revoke(ctx context.Context) error
	// Current returns the last known state without touching the backend.
	Current() State
}

var ErrNoCredential = errors.New("no credential found")

// credentialFile is the stored shape.
type credentialFile struct {
	Token string `json:"token"`
	Email string `json:"email,omitempty"`
}

// FileCredentials reads a JSON credential file maintained by an external
// sign-in flow. The engine never writes the token; Revoke removes the file.
type FileCredentials struct {
	path string

	mu    sync.Mutex
	state State
}

func NewFileCredentials(path string) *FileCredentials {
	return &FileCredentials{path: path}
}

func (f *FileCredentials) Authorize(ctx context.Context) (State, error) {
	_ = ctx
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return f.set(State{}), ErrNoCredential
	}
	if err != nil {
		return f.set(State{}), err
	}

	var cred credentialFile
	if err := json.Unmarshal(b, &cred); err != nil {
		return f.set(State{}), err
	}
	if strings.TrimSpace(cred.Token) == "" {
		return f.set(State{}), ErrNoCredential
	}
	return f.set(State{Authorized: true, Email: cred.Email}), nil
}

func (f *FileCredentials) Revoke(ctx context.Context) error {
	_ = ctx
	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	f.set(State{})
	return nil
}

func (f *FileCredentials) Current() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *FileCredentials) set(s State) State {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
	return s
}

// Static is a fixed-state authorizer used in tests and headless setups.
type Static struct {
	mu    sync.Mutex
	state State
	// AuthorizeErr, when set, makes Authorize fail without changing state.
	AuthorizeErr error
}

func NewStatic(authorized bool, email string) *Static {
	return &Static{state: State{Authorized: authorized, Email: email}}
}

func (s *Static) Authorize(ctx context.Context) (State, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AuthorizeErr != nil {
		return s.state, s.AuthorizeErr
	}
	s.state.Authorized = true
	return s.state, nil
}

func (s *Static) Revoke(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	s.state = State{}
	s.mu.Unlock()
	return nil
}

func (s *Static) Current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
