package integration

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/VeeLume/streamdeck-counter/internal/config"
	"github.com/VeeLume/streamdeck-counter/internal/domain/button"
	"github.com/VeeLume/streamdeck-counter/internal/service/plugin"
)

const (
	pluginUUID    = "0123456789ABCDEF"
	registerEvent = "registerPlugin"
	readTimeout   = 5 * time.Second
)

// hostMessage is an outbound plugin message as the host sees it.
type hostMessage struct {
	Event   string          `json:"event"`
	Context string          `json:"context"`
	UUID    string          `json:"uuid"`
	Payload json.RawMessage `json:"payload"`
}

// startHost runs a websocket endpoint standing in for the Stream Deck application.
func startHost(t *testing.T) (port int, conns <-chan *websocket.Conn) {
	t.Helper()

	ch := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		ch <- conn
	}))
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	require.NoError(t, err)

	port, err = strconv.Atoi(u.Port())
	require.NoError(t, err)

	return port, ch
}

// freeAddress reserves a local port and releases it for the plugin to bind.
func freeAddress(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	require.NoError(t, l.Close())

	return addr
}

// readUntil reads host-bound messages until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(hostMessage) bool) hostMessage {
	t.Helper()

	deadline := time.Now().Add(readTimeout)
	require.NoError(t, conn.SetReadDeadline(deadline))

	for {
		var msg hostMessage
		require.NoError(t, conn.ReadJSON(&msg))

		if match(msg) {
			return msg
		}
	}
}

// imageText extracts the text drawn into a setImage payload.
func imageText(t *testing.T, msg hostMessage) string {
	t.Helper()

	var payload struct {
		Image string `json:"image"`
	}
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))

	svg, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(payload.Image, "data:image/svg+xml;base64,"))
	require.NoError(t, err)

	text := string(svg)
	start := strings.LastIndex(text, `">`)
	end := strings.LastIndex(text, "</text>")
	require.Positive(t, end)

	return text[start+2 : end]
}

func renderedAs(t *testing.T, id, text string) func(hostMessage) bool {
	return func(msg hostMessage) bool {
		return msg.Event == "setImage" && msg.Context == id && imageText(t, msg) == text
	}
}

func savedCounter(key string, value int64) func(hostMessage) bool {
	return func(msg hostMessage) bool {
		if msg.Event != "setGlobalSettings" {
			return false
		}

		var doc map[string]map[string]json.RawMessage
		if err := json.Unmarshal(msg.Payload, &doc); err != nil {
			return false
		}

		return string(doc["counters"][key]) == strconv.FormatInt(value, 10)
	}
}

func send(t *testing.T, conn *websocket.Conn, event, id, action string, settings any) {
	t.Helper()

	msg := map[string]any{"event": event, "context": id}
	if action != "" {
		msg["action"] = action
	}

	if settings != nil {
		msg["payload"] = map[string]any{"settings": settings}
	}

	require.NoError(t, conn.WriteJSON(msg))
}

// TestPlugin_EndToEnd drives a counter through a fake host and checks every surface.
func TestPlugin_EndToEnd(t *testing.T) {
	t.Parallel()

	port, conns := startHost(t)

	var (
		dir            = t.TempDir()
		cfgPath        = filepath.Join(dir, config.DefaultConfigFilename)
		metricsAddress = freeAddress(t)
		healthAddress  = freeAddress(t)
	)

	require.NoError(t, config.Save(cfgPath, &config.Config{
		LogLevel:       "debug",
		LongPress:      300 * time.Millisecond,
		TickInterval:   50 * time.Millisecond,
		ConnectTimeout: 5 * time.Second,
		MetricsAddress: metricsAddress,
		HealthAddress:  healthAddress,
	}))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	done := make(chan error, 1)

	go func() {
		done <- plugin.Run(ctx, &plugin.Options{
			ConfigPath:    cfgPath,
			Port:          port,
			PluginUUID:    pluginUUID,
			RegisterEvent: registerEvent,
			Info:          `{"application":{"platform":"mac","version":"6.6"},"devices":[]}`,
		})
	}()

	var conn *websocket.Conn
	select {
	case conn = <-conns:
	case <-time.After(readTimeout):
		t.Fatal("plugin did not connect")
	}

	defer conn.Close()

	// Registration, then the request for stored global settings.
	registration := readUntil(t, conn, func(hostMessage) bool { return true })
	require.Equal(t, registerEvent, registration.Event)
	require.Equal(t, pluginUUID, registration.UUID)

	request := readUntil(t, conn, func(hostMessage) bool { return true })
	require.Equal(t, "getGlobalSettings", request.Event)
	require.Equal(t, pluginUUID, request.Context)

	send(t, conn, "didReceiveGlobalSettings", pluginUUID, "", map[string]any{
		"counters": map[string]any{"shared": 41},
	})
	send(t, conn, "willAppear", "key-1", button.ActionCounter, map[string]any{"counterId": "shared"})

	readUntil(t, conn, renderedAs(t, "key-1", "41"))

	send(t, conn, "keyDown", "key-1", button.ActionCounter, map[string]any{"counterId": "shared"})
	send(t, conn, "keyUp", "key-1", button.ActionCounter, map[string]any{"counterId": "shared"})

	readUntil(t, conn, renderedAs(t, "key-1", "42"))
	readUntil(t, conn, savedCounter("shared", 42))

	// Metrics reflect the press.
	require.Eventually(t, func() bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+metricsAddress+"/metrics", nil)
		if err != nil {
			return false
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return false
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return false
		}

		return strings.Contains(string(body), `streamdeck_counter_presses_total{action="counter",outcome="short"} 1`)
	}, readTimeout, 50*time.Millisecond)

	// Health reports the connection.
	grpcConn, err := grpc.NewClient(healthAddress, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	defer grpcConn.Close()

	require.Eventually(t, func() bool {
		resp, err := healthpb.NewHealthClient(grpcConn).Check(ctx, &healthpb.HealthCheckRequest{})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, readTimeout, 50*time.Millisecond)

	// Shutting down saves the store one last time and closes the connection.
	cancel()

	readUntil(t, conn, savedCounter("shared", 42))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(readTimeout):
		t.Fatal("plugin did not stop")
	}
}

// TestPlugin_FailsWithoutHost checks the dial gives up after the configured timeout.
func TestPlugin_FailsWithoutHost(t *testing.T) {
	t.Parallel()

	cfgPath := filepath.Join(t.TempDir(), config.DefaultConfigFilename)
	require.NoError(t, config.Save(cfgPath, &config.Config{ConnectTimeout: 200 * time.Millisecond}))

	_, portText, err := net.SplitHostPort(freeAddress(t))
	require.NoError(t, err)

	port, err := strconv.Atoi(portText)
	require.NoError(t, err)

	err = plugin.Run(t.Context(), &plugin.Options{
		ConfigPath:    cfgPath,
		Port:          port,
		PluginUUID:    pluginUUID,
		RegisterEvent: registerEvent,
	})
	require.ErrorContains(t, err, "connect to host")
}

// TestPlugin_RejectsBadLogLevel checks the override is validated before connecting.
func TestPlugin_RejectsBadLogLevel(t *testing.T) {
	t.Parallel()

	err := plugin.Run(t.Context(), &plugin.Options{
		ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"),
		LogLevel:   "loud",
		Port:       1,
		PluginUUID: pluginUUID,
	})
	require.ErrorIs(t, err, plugin.ErrUnknownLogLevel)
}
