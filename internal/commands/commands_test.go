package commands

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/sdkcore/identity"
	"github.com/gaborage/sdkcore/testing/fixtures"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clients.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path
}

func TestValidateCommand(t *testing.T) {
	path := writeConfig(t, `
clients:
  delivery:
    environmentid: env-1
    baseurl: "https://deliver.example.com/env-1"
    apikey: k
  management:
    environmentid: env-1
    baseurl: "https://manage.example.com/env-1"
    resilience:
      enabled: false
  broken:
    environmentid: env-1
    baseurl: not-a-url
`)

	var out bytes.Buffer
	cmd := NewValidateCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"-c", path, "--env-prefix", ""})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 clients invalid")
	assert.Contains(t, out.String(), "✅ delivery → https://deliver.example.com/env-1 [")
	assert.Contains(t, out.String(), "retry")
	assert.Contains(t, out.String(), "✅ management → https://manage.example.com/env-1 (resilience disabled)")
	assert.Contains(t, out.String(), "❌ broken:")
}

func TestValidateCommandWithoutClients(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n")

	cmd := NewValidateCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"-c", path, "--env-prefix", ""})

	assert.ErrorIs(t, cmd.Execute(), errNoClients)
}

func TestGetCommand(t *testing.T) {
	up := fixtures.NewUpstream(t)
	up.Reply(http.MethodGet, "/env-1/items", fixtures.Reply{
		Status:  http.StatusOK,
		Body:    `{"items":[{"id":1}]}`,
		Headers: map[string]string{"X-Continuation": "next-page"},
	})
	path := writeConfig(t, fmt.Sprintf(`
clients:
  delivery:
    environmentid: env-1
    baseurl: "%s/env-1"
    apikey: k
    resilience:
      enabled: false
`, up.URL()))

	var out bytes.Buffer
	cmd := NewGetCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"items", "-c", path, "--env-prefix", "", "--client", "delivery", "-q", "limit=2", "-H", "X-Trace=1", "--metrics"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "HTTP 200 (1 attempts")
	assert.Contains(t, out.String(), "Continuation: next-page")
	assert.Contains(t, out.String(), `"id": 1`)
	assert.Contains(t, out.String(), `sdkcore_requests_total{client="delivery",method="GET",status_code="200"} 1`)

	reqs := up.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "2", reqs[0].Query.Get("limit"))
	assert.Equal(t, "1", reqs[0].Header.Get("X-Trace"))
	assert.Equal(t, "Bearer k", reqs[0].Header.Get("Authorization"))
}

func TestGetCommandReportsStatusErrors(t *testing.T) {
	up := fixtures.NewUpstream(t)
	up.Reply(http.MethodGet, "/env-1/items/9", fixtures.Reply{Status: http.StatusNotFound, Body: "missing"})
	path := writeConfig(t, fmt.Sprintf(`
clients:
  delivery:
    environmentid: env-1
    baseurl: "%s/env-1"
`, up.URL()))

	var out bytes.Buffer
	cmd := NewGetCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"items/9", "-c", path, "--env-prefix", "", "--client", "delivery"})

	require.Error(t, cmd.Execute())
	assert.Contains(t, out.String(), "HTTP 404")
	assert.Contains(t, out.String(), "missing")
	assert.Equal(t, 1, up.Count(http.MethodGet, "/env-1/items/9"), "404 is not retried")
}

func TestGetCommandRejectsMalformedFlags(t *testing.T) {
	_, err := callOptions(&GetOptions{Headers: []string{"no-separator"}})
	require.Error(t, err)

	_, err = callOptions(&GetOptions{Query: []string{"=value"}})
	require.Error(t, err)

	opts, err := callOptions(&GetOptions{Headers: []string{"A=b=c"}, Query: []string{"q="}})
	require.NoError(t, err)
	assert.Len(t, opts, 2)
}

func TestGetCommandUnknownClient(t *testing.T) {
	path := writeConfig(t, "clients: {}\n")

	cmd := NewGetCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"items", "-c", path, "--env-prefix", "", "--client", "nope"})

	require.Error(t, cmd.Execute())
}

func TestPrintVersion(t *testing.T) {
	var out bytes.Buffer
	tracking := identity.NewTracking(identity.MustNew("github.com/gaborage/sdkcore", "1.4.0"), "", identity.Source{}, false)
	printVersion(&out, "1.4.0", tracking)

	assert.Contains(t, out.String(), "sdkcore version 1.4.0")
	assert.Contains(t, out.String(), "X-KC-SDKID: pkg.go.dev;github.com/gaborage/sdkcore;1.4.0")
	assert.NotContains(t, out.String(), "X-KC-SOURCE")
}
