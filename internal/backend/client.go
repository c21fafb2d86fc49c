package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

const (
	headerAuthorization  = "Authorization"
	headerContentType    = "Content-Type"
	bearerPrefix         = "Bearer "
	contentTypeJSON      = "application/json"
	logEventUnauthorized = "backend_unauthorized"
	logEventClearToken   = "backend_clear_credential"
)

// DefaultForwardedCookieNames lists the backend cookies relayed on cookie-authenticated endpoints.
var DefaultForwardedCookieNames = []string{"client_id"}

// CredentialStore holds the bearer credential attached to outbound requests.
type CredentialStore interface {
	Token() string
	Clear() error
}

// Request describes one outbound backend call.
type Request struct {
	Method         string
	Path           string
	Query          url.Values
	Header         http.Header
	Body           any
	ForwardCookies bool
}

// Client issues requests against the Kairix backend API.
type Client struct {
	baseURL              *url.URL
	httpClient           *http.Client
	logger               *zap.Logger
	forwardedCookieNames map[string]struct{}
}

// NewClient builds a Client for the backend rooted at baseURL. The default http client
// carries no timeout: a hung request only stalls the panel request that issued it.
func NewClient(baseURL string, httpClient *http.Client, logger *zap.Logger, forwardedCookieNames []string) (*Client, error) {
	trimmedBaseURL := strings.TrimSpace(baseURL)
	if trimmedBaseURL == "" {
		return nil, ErrMissingBaseURL
	}
	parsedBaseURL, parseErr := url.Parse(strings.TrimRight(trimmedBaseURL, "/"))
	if parseErr != nil || parsedBaseURL.Scheme == "" || parsedBaseURL.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidBaseURL, trimmedBaseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cookieNames := make(map[string]struct{}, len(forwardedCookieNames))
	for _, cookieName := range forwardedCookieNames {
		trimmedName := strings.TrimSpace(cookieName)
		if trimmedName == "" {
			continue
		}
		cookieNames[trimmedName] = struct{}{}
	}
	return &Client{
		baseURL:              parsedBaseURL,
		httpClient:           httpClient,
		logger:               logger,
		forwardedCookieNames: cookieNames,
	}, nil
}

// Session binds the client to the credential and browser cookies of one panel request.
func (client *Client) Session(credentials CredentialStore, cookies []*http.Cookie) *Session {
	forwarded := make([]*http.Cookie, 0, len(cookies))
	for _, cookie := range cookies {
		if cookie == nil {
			continue
		}
		if _, allowed := client.forwardedCookieNames[cookie.Name]; allowed {
			forwarded = append(forwarded, cookie)
		}
	}
	return &Session{
		client:      client,
		credentials: credentials,
		cookies:     forwarded,
	}
}

// Session is the authenticated request helper for one panel request.
type Session struct {
	client      *Client
	credentials CredentialStore
	cookies     []*http.Cookie
}

// HasCredential reports whether a bearer credential is currently held.
func (session *Session) HasCredential() bool {
	return session.credentials != nil && strings.TrimSpace(session.credentials.Token()) != ""
}

// Do attaches the bearer credential and JSON content type (caller headers win), sends the
// request and returns the raw response. A 401 clears the held credential, discards the
// body and yields ErrUnauthorized.
func (session *Session) Do(ctx context.Context, request Request) (*http.Response, error) {
	httpRequest, buildErr := session.buildRequest(ctx, request)
	if buildErr != nil {
		return nil, buildErr
	}

	response, doErr := session.client.httpClient.Do(httpRequest)
	if doErr != nil {
		return nil, doErr
	}

	if response.StatusCode == http.StatusUnauthorized {
		_ = response.Body.Close()
		session.clearCredential(request.Path)
		return nil, ErrUnauthorized
	}

	return response, nil
}

func (session *Session) buildRequest(ctx context.Context, request Request) (*http.Request, error) {
	method := request.Method
	if method == "" {
		method = http.MethodGet
	}

	targetURL := *session.client.baseURL
	targetURL.Path = session.client.baseURL.Path + request.Path
	if len(request.Query) > 0 {
		targetURL.RawQuery = request.Query.Encode()
	}

	var body io.Reader
	if request.Body != nil {
		encoded, encodeErr := json.Marshal(request.Body)
		if encodeErr != nil {
			return nil, fmt.Errorf("%s: %w", errorMessageEncodeBody, encodeErr)
		}
		body = bytes.NewReader(encoded)
	}

	httpRequest, requestErr := http.NewRequestWithContext(ctx, method, targetURL.String(), body)
	if requestErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageBuildRequest, requestErr)
	}

	token := ""
	if session.credentials != nil {
		token = session.credentials.Token()
	}
	httpRequest.Header.Set(headerAuthorization, bearerPrefix+token)
	httpRequest.Header.Set(headerContentType, contentTypeJSON)
	for headerName, headerValues := range request.Header {
		httpRequest.Header.Del(headerName)
		for _, headerValue := range headerValues {
			httpRequest.Header.Add(headerName, headerValue)
		}
	}

	if request.ForwardCookies {
		for _, cookie := range session.cookies {
			httpRequest.AddCookie(cookie)
		}
	}

	return httpRequest, nil
}

func (session *Session) clearCredential(path string) {
	session.client.logger.Info(logEventUnauthorized, zap.String("path", path))
	if session.credentials != nil {
		if clearErr := session.credentials.Clear(); clearErr != nil {
			session.client.logger.Warn(logEventClearToken, zap.Error(clearErr))
		}
	}
}

func decodeJSON(response *http.Response, target any) error {
	defer func() {
		_ = response.Body.Close()
	}()
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return newStatusError(response)
	}
	if target == nil {
		return nil
	}
	if decodeErr := json.NewDecoder(response.Body).Decode(target); decodeErr != nil && !errors.Is(decodeErr, io.EOF) {
		return fmt.Errorf("%s: %w", errorMessageDecodeResponse, decodeErr)
	}
	return nil
}
