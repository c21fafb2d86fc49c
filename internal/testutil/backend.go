package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// RecordedRequest is one request received by a FakeBackend.
type RecordedRequest struct {
	Method        string
	Path          string
	RawQuery      string
	Authorization string
	Cookies       []*http.Cookie
	Body          []byte
}

// FakeBackend is an httptest server standing in for the Kairix backend API. Unregistered
// routes answer 404.
type FakeBackend struct {
	server   *httptest.Server
	mutex    sync.Mutex
	routes   map[string]http.HandlerFunc
	requests []RecordedRequest
}

// NewFakeBackend starts a FakeBackend that is closed when the test ends.
func NewFakeBackend(testingT *testing.T) *FakeBackend {
	testingT.Helper()
	fakeBackend := &FakeBackend{routes: make(map[string]http.HandlerFunc)}
	fakeBackend.server = httptest.NewServer(http.HandlerFunc(fakeBackend.serve))
	testingT.Cleanup(fakeBackend.server.Close)
	return fakeBackend
}

// URL returns the base URL of the server.
func (fakeBackend *FakeBackend) URL() string {
	return fakeBackend.server.URL
}

// Close stops the server; later requests fail at the transport level.
func (fakeBackend *FakeBackend) Close() {
	fakeBackend.server.Close()
}

// Handle registers handler for method and path.
func (fakeBackend *FakeBackend) Handle(method string, path string, handler http.HandlerFunc) {
	fakeBackend.mutex.Lock()
	defer fakeBackend.mutex.Unlock()
	fakeBackend.routes[method+" "+path] = handler
}

// HandleJSON registers a fixed JSON answer for method and path.
func (fakeBackend *FakeBackend) HandleJSON(method string, path string, status int, payload any) {
	fakeBackend.Handle(method, path, func(responseWriter http.ResponseWriter, _ *http.Request) {
		WriteJSON(responseWriter, status, payload)
	})
}

// Count returns how many requests hit method and path.
func (fakeBackend *FakeBackend) Count(method string, path string) int {
	count := 0
	for _, request := range fakeBackend.Requests() {
		if request.Method == method && request.Path == path {
			count++
		}
	}
	return count
}

// Requests returns every recorded request in arrival order.
func (fakeBackend *FakeBackend) Requests() []RecordedRequest {
	fakeBackend.mutex.Lock()
	defer fakeBackend.mutex.Unlock()
	return append([]RecordedRequest(nil), fakeBackend.requests...)
}

func (fakeBackend *FakeBackend) serve(responseWriter http.ResponseWriter, request *http.Request) {
	body, _ := io.ReadAll(request.Body)
	fakeBackend.mutex.Lock()
	fakeBackend.requests = append(fakeBackend.requests, RecordedRequest{
		Method:        request.Method,
		Path:          request.URL.Path,
		RawQuery:      request.URL.RawQuery,
		Authorization: request.Header.Get("Authorization"),
		Cookies:       request.Cookies(),
		Body:          body,
	})
	handler, registered := fakeBackend.routes[request.Method+" "+request.URL.Path]
	fakeBackend.mutex.Unlock()
	if !registered {
		WriteJSON(responseWriter, http.StatusNotFound, map[string]string{"detail": "Not Found"})
		return
	}
	handler(responseWriter, request)
}

// WriteJSON writes payload as a JSON response with status.
func WriteJSON(responseWriter http.ResponseWriter, status int, payload any) {
	responseWriter.Header().Set("Content-Type", "application/json")
	responseWriter.WriteHeader(status)
	_ = json.NewEncoder(responseWriter).Encode(payload)
}

// StaticCredentials is an in-memory bearer credential that counts its clears.
type StaticCredentials struct {
	mutex      sync.Mutex
	token      string
	clearCalls int
}

// NewStaticCredentials holds token.
func NewStaticCredentials(token string) *StaticCredentials {
	return &StaticCredentials{token: token}
}

// Token returns the held credential.
func (credentials *StaticCredentials) Token() string {
	credentials.mutex.Lock()
	defer credentials.mutex.Unlock()
	return credentials.token
}

// Clear drops the credential.
func (credentials *StaticCredentials) Clear() error {
	credentials.mutex.Lock()
	defer credentials.mutex.Unlock()
	credentials.token = ""
	credentials.clearCalls++
	return nil
}

// ClearCalls returns how many times Clear ran.
func (credentials *StaticCredentials) ClearCalls() int {
	credentials.mutex.Lock()
	defer credentials.mutex.Unlock()
	return credentials.clearCalls
}
