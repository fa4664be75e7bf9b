package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neomorfeo/marketflow/internal/config"
	"github.com/neomorfeo/marketflow/internal/domain"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)

	assert.Contains(t, out, "marketflow dev")
	assert.Contains(t, out, "go: go")
}

func TestGraph_DOT(t *testing.T) {
	out, err := execute(t, "graph", "sell-purchase", "--format", "dot")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, `digraph "sell-purchase/release-1" {`), out)
	assert.Contains(t, out, `"initial" -> "inquiry" [label="inquire"];`)
	assert.Contains(t, out, `"reviewed" [shape=doublecircle];`)
}

func TestGraph_JSON(t *testing.T) {
	out, err := execute(t, "graph", "default-negotiation", "--format", "json")
	require.NoError(t, err)

	var g domain.Graph
	require.NoError(t, json.Unmarshal([]byte(out), &g))
	assert.Equal(t, "default-negotiation/release-1", g.ID)
	assert.Equal(t, domain.State("initial"), g.Initial)
	assert.Equal(t, domain.State("offer-pending"), g.States["initial"].On["transition/make-offer"])
}

func TestGraph_Errors(t *testing.T) {
	_, err := execute(t, "graph", "default-booking", "--format", "dot")
	require.ErrorIs(t, err, domain.ErrUnknownProcess)

	_, err = execute(t, "graph", "sell-purchase", "--format", "svg")
	require.ErrorContains(t, err, "unsupported format")

	_, err = execute(t, "graph", "--format", "dot")
	require.Error(t, err)
}

func testConfig(t *testing.T, port string) *config.Config {
	t.Helper()
	return &config.Config{
		HTTP:     config.HTTPConfig{Port: port},
		Database: config.DatabaseConfig{Path: t.TempDir() + "/test.db"},
		OTel:     config.OTelConfig{Exporter: "none", Environment: "test"},
		River:    config.RiverConfig{Workers: 1},
	}
}

// TestServe exercises serve() end-to-end: OTel, River, HTTP server, and
// graceful shutdown.
func TestServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- serve(ctx, testConfig(t, "19876")) }()

	// Wait for the HTTP server to become ready.
	serverURL := "http://localhost:19876"
	ready := false
	for range 50 {
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, serverURL+"/api/v1/processes", nil)
		resp, reqErr := http.DefaultClient.Do(req)
		if reqErr == nil {
			resp.Body.Close()
			ready = true
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	require.True(t, ready, "server did not start within 5 seconds")

	body := `{"processName":"default-negotiation","transition":"transition/make-offer","actor":"provider","offerInSubunits":1000}`
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, serverURL+"/api/v1/transactions", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve() did not exit within 10 seconds")
	}
}

func TestServe_InvalidDB(t *testing.T) {
	cfg := testConfig(t, "19877")
	cfg.Database.Path = "/nonexistent/path/db.sqlite"

	require.Error(t, serve(context.Background(), cfg))
}
