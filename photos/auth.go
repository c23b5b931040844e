package photos

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes required to mirror a photo library.
var authScopes = []string{
	"https://www.googleapis.com/auth/photoslibrary.readonly",
	"https://www.googleapis.com/auth/photoslibrary.sharing",
}

// ErrNotAuthenticated is returned when no token has been issued yet.
var ErrNotAuthenticated = errors.New("not authenticated, run the auth command first")

// TokenStore persists the OAuth2 token between runs. The catalog settings
// table implements it, so refreshed tokens survive the process.
type TokenStore interface {
	Token(ctx context.Context) (*oauth2.Token, error)
	Save(ctx context.Context, token *oauth2.Token) error
}

// Auth acquires and refreshes OAuth2 tokens for the remote library API.
type Auth struct {
	cfg       *oauth2.Config
	store     TokenStore
	log       *log.Logger
	webserver bool
	port      int
}

// AuthOption configures an Auth.
type AuthOption func(*Auth)

// WithWebserver enables the local callback webserver on the given port for
// the interactive flow.
func WithWebserver(port int) AuthOption {
	return func(a *Auth) {
		a.webserver = true
		a.port = port
	}
}

// NewAuth reads the OAuth2 client credentials file and returns an Auth bound
// to the given token store.
func NewAuth(credentialsFile string, store TokenStore, logger *log.Logger, opts ...AuthOption) (*Auth, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	cfg, err := google.ConfigFromJSON(data, authScopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}

	a := &Auth{
		cfg:   cfg,
		store: store,
		log:   logger.With("component", "auth"),
		port:  8080,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.webserver {
		a.cfg.RedirectURL = fmt.Sprintf("http://localhost:%d/", a.port)
	}
	return a, nil
}

// AccessToken returns a valid bearer token, refreshing the persisted one if
// it has expired.
func (a *Auth) AccessToken(ctx context.Context) (string, error) {
	token, err := a.store.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	if token == nil {
		return "", ErrNotAuthenticated
	}
	if token.Valid() {
		return token.AccessToken, nil
	}

	token, err = a.refresh(ctx, token)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

// Refresh forces a token refresh, e.g. after the API rejected the current
// token.
func (a *Auth) Refresh(ctx context.Context) error {
	token, err := a.store.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to load token: %w", err)
	}
	if token == nil {
		return ErrNotAuthenticated
	}
	_, err = a.refresh(ctx, token)
	return err
}

func (a *Auth) refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	if token.RefreshToken == "" {
		return nil, fmt.Errorf("%w: token has no refresh token", ErrNotAuthenticated)
	}

	// Drop the access token so the source is forced to hit the token endpoint.
	fresh, err := a.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: token.RefreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = token.RefreshToken
	}

	if err := a.store.Save(ctx, fresh); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed token: %w", err)
	}
	a.log.Debug("refreshed access token", "expiry", fresh.Expiry)
	return fresh, nil
}

// IssueNewToken runs the interactive authorization flow and persists the
// resulting token.
func (a *Auth) IssueNewToken(ctx context.Context) error {
	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		return fmt.Errorf("failed to generate state: %w", err)
	}
	state := hex.EncodeToString(stateBytes)

	authURL := a.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Printf("Open the following URL in your browser:\n\n%s\n\n", authURL)

	var (
		code string
		err  error
	)
	if a.webserver {
		code, err = a.codeFromWebserver(ctx, state)
	} else {
		code, err = a.codeFromPrompt()
	}
	if err != nil {
		return err
	}

	token, err := a.cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	if err := a.store.Save(ctx, token); err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}
	a.log.Info("authentication successful")
	return nil
}

func (a *Auth) codeFromPrompt() (string, error) {
	fmt.Print("Enter the authorization code: ")
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return "", errors.New("no authorization code provided")
	}
	code := scanner.Text()
	if code == "" {
		return "", errors.New("no authorization code provided")
	}
	return code, nil
}

func (a *Auth) codeFromWebserver(ctx context.Context, state string) (string, error) {
	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			results <- result{err: errors.New("authorization state mismatch")}
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			results <- result{err: errors.New("authorization response carries no code")}
			return
		}
		fmt.Fprintln(w, "Authentication successful. You can close this window.")
		results <- result{code: code}
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			results <- result{err: fmt.Errorf("callback webserver failed: %w", err)}
		}
	}()
	defer srv.Close() //nolint:errcheck

	a.log.Info("waiting for authorization callback", "port", a.port)

	select {
	case res := <-results:
		return res.code, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
