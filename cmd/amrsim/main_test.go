package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"amrfluid/compute"
	"amrfluid/config"
	"amrfluid/physics"
	"amrfluid/simulation"
)

func TestDriverOptionsFromSettings(t *testing.T) {
	s := config.Default()
	s.Physics.NPassive = 2
	s.Hydro.NormPassive = true
	s.Hydro.NormIdx = []int{1}
	s.Compute.Launcher = "parallel"
	s.Compute.Workers = 3
	s.Fixup.Electric = false

	opts, err := driverOptions(s, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, opts.Caps.NPassive)
	assert.Equal(t, physics.IdealGas{Gamma: s.Hydro.Gamma}, opts.EoS)
	assert.Equal(t, compute.Parallel{Workers: 3}, opts.Launcher)
	assert.Equal(t, []int{1}, opts.Params.NormIdx)
	assert.False(t, opts.Fixup.Electric)
	assert.True(t, opts.Fixup.Flux)
	assert.Equal(t, s.Mesh.BoxLo, opts.Box.Lo)

	s.Physics.Barotropic = true
	s.Physics.SoundSpeed = 2
	opts, err = driverOptions(s, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, physics.Isothermal{Cs2: 4}, opts.EoS)
}

func TestConfigCommandPrintsEffectiveSettings(t *testing.T) {
	t.Setenv("AMRSIM_LAUNCHER", "auto")
	t.Setenv("AMRSIM_WORKERS", "")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"config", "--config", filepath.Join(t.TempDir(), "none.yaml")})
	require.NoError(t, rootCmd.Execute())

	var s config.Settings
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &s))
	assert.Equal(t, "auto", s.Compute.Launcher)
	assert.Equal(t, config.Default().Mesh, s.Mesh)
}

func TestHubBroadcastAndPause(t *testing.T) {
	h := newHub(zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(h.handleWebSocket))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return h.count() == 1 }, time.Second, 5*time.Millisecond)

	h.broadcast(simulation.Diagnostics{RunID: "run", Step: 3, Mass: 1.5})
	var msg diagnosticsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "diagnostics", msg.Type)
	assert.Equal(t, 3, msg.Step)
	assert.Equal(t, 1.5, msg.Mass)

	require.NoError(t, conn.WriteJSON(map[string]bool{"paused": true}))
	assert.Eventually(t, h.paused.Load, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return h.count() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHubSendsLatestOnConnect(t *testing.T) {
	h := newHub(nil)
	h.broadcast(simulation.Diagnostics{Step: 7})
	srv := httptest.NewServer(http.HandlerFunc(h.handleWebSocket))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg diagnosticsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, 7, msg.Step)
}
