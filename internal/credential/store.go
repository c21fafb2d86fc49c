package credential

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/sessions"
)

const (
	// SessionName names the panel's cookie session.
	SessionName = "kairix_panel"

	sessionKeyToken       = "token"
	sessionKeyViewStateID = "view_state_id"
	sessionMaxAgeSeconds  = 30 * 24 * 60 * 60
	minimumSecretLength   = 32

	errorMessageShortSecret = "credential: session secret must be at least 32 bytes"
	errorMessageLoadSession = "credential: load session"
	errorMessageSaveSession = "credential: save session"
	errorMessageEmptyToken  = "credential: empty token"
)

var (
	// ErrShortSecret indicates the configured session secret is too weak to sign cookies.
	ErrShortSecret = errors.New(errorMessageShortSecret)
	// ErrEmptyToken indicates an attempt to store a blank bearer credential.
	ErrEmptyToken = errors.New(errorMessageEmptyToken)
)

// NewCookieStore builds the signed cookie store that carries the bearer credential.
func NewCookieStore(secret string, secure bool) (*sessions.CookieStore, error) {
	if len(secret) < minimumSecretLength {
		return nil, ErrShortSecret
	}
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAgeSeconds,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store, nil
}

// RequestCredentials exposes the session values of one panel request. It satisfies
// backend.CredentialStore and is safe for the concurrent fetches of one request.
type RequestCredentials struct {
	mutex          sync.Mutex
	request        *http.Request
	responseWriter http.ResponseWriter
	session        *sessions.Session
}

// Load opens the panel session of request. A tampered or expired cookie yields a fresh
// session together with the decode error so callers can log it.
func Load(store sessions.Store, responseWriter http.ResponseWriter, request *http.Request) (*RequestCredentials, error) {
	session, loadErr := store.Get(request, SessionName)
	credentials := &RequestCredentials{
		request:        request,
		responseWriter: responseWriter,
		session:        session,
	}
	if loadErr != nil {
		return credentials, fmt.Errorf("%s: %w", errorMessageLoadSession, loadErr)
	}
	return credentials, nil
}

// Token returns the held bearer credential or an empty string.
func (credentials *RequestCredentials) Token() string {
	credentials.mutex.Lock()
	defer credentials.mutex.Unlock()
	return stringValue(credentials.session.Values[sessionKeyToken])
}

// Set stores token as the bearer credential.
func (credentials *RequestCredentials) Set(token string) error {
	trimmedToken := strings.TrimSpace(token)
	if trimmedToken == "" {
		return ErrEmptyToken
	}
	credentials.mutex.Lock()
	defer credentials.mutex.Unlock()
	credentials.session.Values[sessionKeyToken] = trimmedToken
	return credentials.save()
}

// Clear drops the bearer credential and keeps the rest of the session. Clearing an absent
// credential writes nothing.
func (credentials *RequestCredentials) Clear() error {
	credentials.mutex.Lock()
	defer credentials.mutex.Unlock()
	if _, held := credentials.session.Values[sessionKeyToken]; !held {
		return nil
	}
	delete(credentials.session.Values, sessionKeyToken)
	return credentials.save()
}

// ViewStateID returns the id of the view state bound to this session.
func (credentials *RequestCredentials) ViewStateID() string {
	credentials.mutex.Lock()
	defer credentials.mutex.Unlock()
	return stringValue(credentials.session.Values[sessionKeyViewStateID])
}

// SetViewStateID binds a view state to this session.
func (credentials *RequestCredentials) SetViewStateID(viewStateID string) error {
	credentials.mutex.Lock()
	defer credentials.mutex.Unlock()
	credentials.session.Values[sessionKeyViewStateID] = viewStateID
	return credentials.save()
}

// Reset removes every session value and expires the cookie.
func (credentials *RequestCredentials) Reset() error {
	credentials.mutex.Lock()
	defer credentials.mutex.Unlock()
	for key := range credentials.session.Values {
		delete(credentials.session.Values, key)
	}
	credentials.session.Options.MaxAge = -1
	return credentials.save()
}

func (credentials *RequestCredentials) save() error {
	if saveErr := credentials.session.Save(credentials.request, credentials.responseWriter); saveErr != nil {
		return fmt.Errorf("%s: %w", errorMessageSaveSession, saveErr)
	}
	return nil
}

func stringValue(value interface{}) string {
	text, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(text)
}
