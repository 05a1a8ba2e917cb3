package acceptance

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kendall-kelly/home-services-api/tests/testapp"
	"github.com/stretchr/testify/require"
)

// startServer runs the application on a real listener for the test
func startServer(t *testing.T) (*testapp.App, *httptest.Server) {
	t.Helper()
	app := testapp.New(t)
	srv := httptest.NewServer(app.Router)
	t.Cleanup(srv.Close)
	return app, srv
}

// client calls the running server as one caller
type client struct {
	t       *testing.T
	baseURL string
	caller  testapp.Caller
}

func newClient(t *testing.T, srv *httptest.Server, caller testapp.Caller) *client {
	return &client{t: t, baseURL: srv.URL, caller: caller}
}

// do sends body as JSON and decodes the envelope, and data into out when given
func (c *client) do(method, path string, body, out interface{}) (int, testapp.Envelope) {
	c.t.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		buf := &bytes.Buffer{}
		require.NoError(c.t, json.NewEncoder(buf).Encode(body))
		reader = buf
	}
	return c.send(method, path, "application/json", reader, out)
}

func (c *client) send(method, path, contentType string, body io.Reader, out interface{}) (int, testapp.Envelope) {
	c.t.Helper()

	req, err := http.NewRequestWithContext(c.t.Context(), method, c.baseURL+path, body)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", contentType)
	for k, v := range c.caller.Headers() {
		req.Header[k] = v
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, testapp.Decode(c.t, raw, out)
}

func errorCode(env testapp.Envelope) string {
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}
