package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"floodsim/internal/sims/flood"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestServer(t *testing.T, initialise bool) (*httptest.Server, *flood.Engine) {
	t.Helper()
	opts := flood.DefaultOptions()
	opts.GridSize = 16
	opts.CellSize = 10
	opts.Interval = 5 * time.Millisecond
	logger := log.New(io.Discard, "", 0)
	engine, err := flood.NewEngine(flood.Config{Options: opts, Logger: logger})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if initialise {
		if err := engine.InitBase(context.Background(), nil); err != nil {
			t.Fatalf("init base: %v", err)
		}
	}
	t.Cleanup(func() { engine.Stop() })
	srv := httptest.NewServer(New(engine, Config{Logger: logger}).Handler())
	t.Cleanup(srv.Close)
	return srv, engine
}

func do(t *testing.T, method, url, body string) (*http.Response, envelope) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode %s %s: %v", method, url, err)
	}
	return resp, env
}

func TestInfoAndLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, false)

	resp, env := do(t, http.MethodGet, srv.URL+"/api/info", "")
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("info: %d %+v", resp.StatusCode, env)
	}
	var info flood.Info
	if err := json.Unmarshal(env.Data, &info); err != nil {
		t.Fatalf("info payload: %v", err)
	}
	if info.Status != flood.StatusIdle {
		t.Fatalf("expected idle, got %s", info.Status)
	}

	resp, env = do(t, http.MethodPost, srv.URL+"/api/start", "")
	if resp.StatusCode != http.StatusConflict || env.Success {
		t.Fatalf("start while idle: %d %+v", resp.StatusCode, env)
	}
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/sources", `{"lon":0,"lat":0}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("add while idle: %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodGet, srv.URL+"/api/frame/water", "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("frame while idle: %d", resp.StatusCode)
	}
}

func TestRegistryRoutes(t *testing.T) {
	srv, engine := newTestServer(t, true)

	resp, env := do(t, http.MethodPost, srv.URL+"/api/sources", `{"lon":0,"lat":0}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add source: %d %s", resp.StatusCode, env.Error)
	}
	var entry flood.Entry
	if err := json.Unmarshal(env.Data, &entry); err != nil {
		t.Fatalf("entry payload: %v", err)
	}
	if entry.Kind != flood.KindSource {
		t.Fatalf("unexpected kind %s", entry.Kind)
	}

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/sinks", `{"lon":10,"lat":10}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("out of extent sink: %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/seawalls", `{"lon":0}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing lat: %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/seawalls", `{"lon":0,"lat":0}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add sea wall: %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/sources/random", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("random source: %d", resp.StatusCode)
	}

	_, env = do(t, http.MethodGet, srv.URL+"/api/sources", "")
	var sources []flood.Entry
	if err := json.Unmarshal(env.Data, &sources); err != nil {
		t.Fatalf("list payload: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}

	resp, _ = do(t, http.MethodDelete, srv.URL+"/api/entries/"+entry.ID.String(), "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete entry: %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodDelete, srv.URL+"/api/entries/"+entry.ID.String(), "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete: %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodDelete, srv.URL+"/api/entries/not-a-uuid", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad id: %d", resp.StatusCode)
	}

	resp, env = do(t, http.MethodDelete, srv.URL+"/api/seawalls", "")
	if resp.StatusCode != http.StatusOK || !bytes.Contains(env.Data, []byte(`"removed":1`)) {
		t.Fatalf("clear sea walls: %d %s", resp.StatusCode, env.Data)
	}
	walls, err := engine.Entries(flood.KindSeaWall)
	if err != nil || len(walls) != 0 {
		t.Fatalf("sea walls left after clear: %v %v", walls, err)
	}
}

func TestFrameRoute(t *testing.T) {
	srv, _ := newTestServer(t, true)

	resp, err := http.Get(srv.URL + "/api/frame/flux")
	if err != nil {
		t.Fatalf("get frame: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("frame status %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Grid-Size"); got != "16" {
		t.Fatalf("grid size header %q", got)
	}
	if got := resp.Header.Get("X-Channels"); got != "4" {
		t.Fatalf("channels header %q", got)
	}
	if len(body) != 16*16*4 {
		t.Fatalf("flux frame has %d bytes", len(body))
	}

	resp2, err := http.Get(srv.URL + "/api/frame/pressure")
	if err != nil {
		t.Fatalf("get unknown frame: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown field status %d", resp2.StatusCode)
	}
}

func dialFrames(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/frames" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	})
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) (byte, uint64, []byte) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if kind != websocket.BinaryMessage {
		t.Fatalf("expected binary message, got %d", kind)
	}
	if len(msg) < 9 {
		t.Fatalf("short message of %d bytes", len(msg))
	}
	return msg[0], binary.BigEndian.Uint64(msg[1:9]), msg[9:]
}

func TestFrameStream(t *testing.T) {
	srv, _ := newTestServer(t, true)
	conn := dialFrames(t, srv, "?fields=terrain,water")

	tag, tick, payload := readMessage(t, conn)
	if tag != TagTerrain || tick != 0 || len(payload) != 16*16 {
		t.Fatalf("first message tag=%d tick=%d len=%d", tag, tick, len(payload))
	}
	tag, tick, payload = readMessage(t, conn)
	if tag != TagWater || tick != 0 || len(payload) != 16*16 {
		t.Fatalf("second message tag=%d tick=%d len=%d", tag, tick, len(payload))
	}

	resp, _ := do(t, http.MethodPost, srv.URL+"/api/start", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start: %d", resp.StatusCode)
	}
	var last uint64
	for i := 0; i < 3; i++ {
		tag, tick, _ = readMessage(t, conn)
		if tag != TagWater {
			t.Fatalf("terrain should only be resent for a new grid, got tag %d", tag)
		}
		if tick <= last {
			t.Fatalf("ticks should increase: %d after %d", tick, last)
		}
		last = tick
	}
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/stop", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop: %d", resp.StatusCode)
	}
}

func TestFrameStreamSendsTerrainForEachGrid(t *testing.T) {
	srv, engine := newTestServer(t, false)
	conn := dialFrames(t, srv, "?fields=terrain,water")

	if err := engine.InitBase(context.Background(), nil); err != nil {
		t.Fatalf("init base: %v", err)
	}
	if err := engine.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	tag, tick, payload := readMessage(t, conn)
	if tag != TagTerrain || len(payload) != 16*16 {
		t.Fatalf("connecting while idle: first message tag=%d len=%d", tag, len(payload))
	}
	tag, next, _ := readMessage(t, conn)
	if tag != TagWater || next != tick {
		t.Fatalf("terrain should be followed by water of the same tick, got tag=%d tick=%d", tag, next)
	}
	for i := 0; i < 3; i++ {
		if tag, _, _ = readMessage(t, conn); tag != TagWater {
			t.Fatalf("terrain resent for an unchanged grid, got tag %d", tag)
		}
	}

	if err := engine.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := engine.InitBase(context.Background(), nil); err != nil {
		t.Fatalf("second init base: %v", err)
	}
	if err := engine.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	for i := 0; ; i++ {
		if i == 50 {
			t.Fatal("terrain of the rebuilt grid was never sent")
		}
		if tag, _, _ = readMessage(t, conn); tag == TagTerrain {
			break
		}
	}
}

func TestSameTerrain(t *testing.T) {
	layer := []uint8{1, 2, 3, 4}
	a := &flood.Frame{Terrain: layer, TerrainBase: 1, TerrainSpan: 2}
	if !sameTerrain(a, &flood.Frame{Terrain: layer, TerrainBase: 1, TerrainSpan: 2}) {
		t.Fatal("frames sharing a terrain buffer should match")
	}
	if sameTerrain(a, &flood.Frame{Terrain: []uint8{1, 2, 3, 4}, TerrainBase: 1, TerrainSpan: 2}) {
		t.Fatal("a new terrain buffer should not match")
	}
	if sameTerrain(a, &flood.Frame{Terrain: layer, TerrainBase: 0, TerrainSpan: 2}) {
		t.Fatal("a moved terrain base should not match")
	}
	if sameTerrain(nil, a) {
		t.Fatal("nothing sent yet should not match")
	}
}

func TestFrameStreamRejectsUnknownField(t *testing.T) {
	srv, _ := newTestServer(t, true)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/frames?fields=depth"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", resp)
	}
}

func TestEncodeMessage(t *testing.T) {
	f := &flood.Frame{Tick: 258, GridSize: 2, Water: []uint8{1, 2, 3, 4}}
	msg := EncodeMessage(f, flood.FieldWater)
	want := []byte{TagWater, 0, 0, 0, 0, 0, 0, 1, 2, 1, 2, 3, 4}
	if !bytes.Equal(msg, want) {
		t.Fatalf("message %v, want %v", msg, want)
	}
}
