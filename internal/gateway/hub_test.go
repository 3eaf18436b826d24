package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/playcrack/trivia/internal/game"
	"github.com/playcrack/trivia/internal/gateway"
	"github.com/playcrack/trivia/internal/models"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type dispatcherCall struct {
	method     string
	connID     string
	name       string
	questionID int64
	answerID   int64
	question   models.Question
}

// fakeDispatcher records coordinator calls made by the hub.
type fakeDispatcher struct {
	mu    sync.Mutex
	calls []dispatcherCall
}

func (d *fakeDispatcher) record(c dispatcherCall) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, c)
}

func (d *fakeDispatcher) Start(connID string) {
	d.record(dispatcherCall{method: "start", connID: connID})
}

func (d *fakeDispatcher) End() {
	d.record(dispatcherCall{method: "end"})
}

func (d *fakeDispatcher) NextQuestion(q models.Question) {
	d.record(dispatcherCall{method: "next_question", question: q})
}

func (d *fakeDispatcher) ResetScores(connID string) {
	d.record(dispatcherCall{method: "reset_scores", connID: connID})
}

func (d *fakeDispatcher) Join(connID, name string) {
	d.record(dispatcherCall{method: "join", connID: connID, name: name})
}

func (d *fakeDispatcher) Answer(connID string, questionID, answerID int64) {
	d.record(dispatcherCall{method: "answer", connID: connID, questionID: questionID, answerID: answerID})
}

func (d *fakeDispatcher) Disconnect(connID string) {
	d.record(dispatcherCall{method: "disconnect", connID: connID})
}

func (d *fakeDispatcher) RankingGet(connID string) {
	d.record(dispatcherCall{method: "ranking_get", connID: connID})
}

func (d *fakeDispatcher) snapshot() []dispatcherCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]dispatcherCall, len(d.calls))
	copy(out, d.calls)
	return out
}

func (d *fakeDispatcher) byMethod(method string) []dispatcherCall {
	var out []dispatcherCall
	for _, c := range d.snapshot() {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func newTestServer(t *testing.T) (*httptest.Server, *gateway.Hub, *fakeDispatcher) {
	t.Helper()

	fd := &fakeDispatcher{}
	hub := gateway.NewHub(gateway.DefaultConnectionConfig(), fd)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Start(ctx)

	mux := http.NewServeMux()
	hub.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, hub, fd
}

func dial(t *testing.T, srv *httptest.Server, role string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?role=" + role
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForConnections(t *testing.T, hub *gateway.Hub, channel string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.ConnectionCounts()[channel] == n
	}, waitFor, tick)
}

func readEvent(t *testing.T, conn *websocket.Conn) game.Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev game.Event
	require.NoError(t, json.Unmarshal(raw, &ev))
	return ev
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

func sendMessage(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	msg, err := json.Marshal(map[string]json.RawMessage{
		"type":    json.RawMessage(`"` + msgType + `"`),
		"payload": data,
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, msg))
}

func TestHandleWSRejectsUnknownRole(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/ws?role=referee")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBroadcastReachesOnlySubscribedChannels(t *testing.T) {
	srv, hub, _ := newTestServer(t)

	playerConn := dial(t, srv, "player")
	projectionConn := dial(t, srv, "projection")
	adminConn := dial(t, srv, "admin")
	waitForConnections(t, hub, "player", 1)
	waitForConnections(t, hub, "projection", 1)
	waitForConnections(t, hub, "admin", 1)

	ev, err := game.NewEvent(game.EventTimeUp, game.TimeUpPayload{QuestionID: 4})
	require.NoError(t, err)
	hub.Broadcast(ev, game.ChannelPlayer, game.ChannelProjection)

	got := readEvent(t, playerConn)
	require.Equal(t, game.EventTimeUp, got.Type)

	got = readEvent(t, projectionConn)
	require.Equal(t, game.EventTimeUp, got.Type)

	expectSilence(t, adminConn)
}

func TestSendIsPointToPoint(t *testing.T) {
	srv, hub, fd := newTestServer(t)

	first := dial(t, srv, "player")
	second := dial(t, srv, "player")
	waitForConnections(t, hub, "player", 2)

	// Learn the first connection's ID through its join dispatch.
	sendMessage(t, first, "join", map[string]string{"name": "Ana"})
	require.Eventually(t, func() bool {
		return len(fd.byMethod("join")) == 1
	}, waitFor, tick)
	connID := fd.byMethod("join")[0].connID

	ev, err := game.NewEvent(game.EventAdminFeedback, game.AdminFeedbackPayload{Message: "hi"})
	require.NoError(t, err)
	hub.Send(connID, ev)

	got := readEvent(t, first)
	require.Equal(t, game.EventAdminFeedback, got.Type)

	expectSilence(t, second)
}

func TestInboundPlayerMessagesDispatched(t *testing.T) {
	srv, hub, fd := newTestServer(t)

	conn := dial(t, srv, "player")
	waitForConnections(t, hub, "player", 1)

	sendMessage(t, conn, "join", map[string]string{"name": "Ana"})
	// Option indexes may travel as strings; both decode to the same value.
	sendMessage(t, conn, "submit_answer", map[string]string{"questionId": "3", "answerId": "2"})
	sendMessage(t, conn, "ranking_get", struct{}{})

	require.Eventually(t, func() bool {
		return len(fd.snapshot()) == 3
	}, waitFor, tick)

	joins := fd.byMethod("join")
	require.Len(t, joins, 1)
	require.Equal(t, "Ana", joins[0].name)

	answers := fd.byMethod("answer")
	require.Len(t, answers, 1)
	require.Equal(t, int64(3), answers[0].questionID)
	require.Equal(t, int64(2), answers[0].answerID)
	require.Equal(t, joins[0].connID, answers[0].connID)

	require.Len(t, fd.byMethod("ranking_get"), 1)
}

func TestInboundAdminMessagesDispatched(t *testing.T) {
	srv, hub, fd := newTestServer(t)

	conn := dial(t, srv, "admin")
	waitForConnections(t, hub, "admin", 1)

	sendMessage(t, conn, "start_game", struct{}{})
	sendMessage(t, conn, "next_question", models.Question{
		ID:            9,
		Text:          "capital of peru?",
		Points:        20,
		TimeLimitSec:  15,
		CorrectOption: 1,
	})
	sendMessage(t, conn, "reset_scores", struct{}{})
	sendMessage(t, conn, "end_game", struct{}{})

	require.Eventually(t, func() bool {
		return len(fd.snapshot()) == 4
	}, waitFor, tick)

	next := fd.byMethod("next_question")
	require.Len(t, next, 1)
	require.Equal(t, int64(9), next[0].question.ID)
	require.Equal(t, 20, next[0].question.Points)
	require.Equal(t, models.FlexInt(1), next[0].question.CorrectOption)

	require.Len(t, fd.byMethod("start"), 1)
	require.Len(t, fd.byMethod("reset_scores"), 1)
	require.Len(t, fd.byMethod("end"), 1)
}

func TestChannelPermissionsFilterMessages(t *testing.T) {
	srv, hub, fd := newTestServer(t)

	playerConn := dial(t, srv, "player")
	projectionConn := dial(t, srv, "projection")
	waitForConnections(t, hub, "player", 1)
	waitForConnections(t, hub, "projection", 1)

	// Players may not drive the game; the projection may not send at all.
	sendMessage(t, playerConn, "start_game", struct{}{})
	sendMessage(t, playerConn, "end_game", struct{}{})
	sendMessage(t, projectionConn, "join", map[string]string{"name": "screen"})

	// A valid message afterwards proves the earlier ones were dropped, not
	// still in flight.
	sendMessage(t, playerConn, "join", map[string]string{"name": "Ana"})
	require.Eventually(t, func() bool {
		return len(fd.byMethod("join")) == 1
	}, waitFor, tick)

	require.Empty(t, fd.byMethod("start"))
	require.Empty(t, fd.byMethod("end"))
	require.Equal(t, "Ana", fd.byMethod("join")[0].name)
}

func TestMalformedMessagesDropped(t *testing.T) {
	srv, hub, fd := newTestServer(t)

	conn := dial(t, srv, "player")
	waitForConnections(t, hub, "player", 1)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"join","payload":{"name":""}}`)))

	sendMessage(t, conn, "join", map[string]string{"name": "Ana"})
	require.Eventually(t, func() bool {
		return len(fd.byMethod("join")) == 1
	}, waitFor, tick)

	require.Len(t, fd.snapshot(), 1)
}

func TestDisconnectNotifiesDispatcher(t *testing.T) {
	srv, hub, fd := newTestServer(t)

	conn := dial(t, srv, "player")
	waitForConnections(t, hub, "player", 1)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return len(fd.byMethod("disconnect")) == 1
	}, waitFor, tick)
	waitForConnections(t, hub, "player", 0)
}

func TestBroadcastWhileClientsDisconnect(t *testing.T) {
	srv, hub, _ := newTestServer(t)

	conns := make([]*websocket.Conn, 8)
	for i := range conns {
		conns[i] = dial(t, srv, "player")
	}
	survivor := dial(t, srv, "player")
	waitForConnections(t, hub, "player", len(conns)+1)

	// Tear connections down mid-delivery; a send racing a teardown must not
	// take down the hub goroutine.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, conn := range conns {
			conn.Close()
		}
	}()
	for i := 0; i < 200; i++ {
		ev, err := game.NewEvent(game.EventUpdateRanking, []models.RankingEntry{})
		require.NoError(t, err)
		hub.Broadcast(ev, game.ChannelPlayer)
	}
	<-done

	waitForConnections(t, hub, "player", 1)

	ev, err := game.NewEvent(game.EventGameStarted, struct{}{})
	require.NoError(t, err)
	hub.Broadcast(ev, game.ChannelPlayer)

	// Find the game_started event; earlier ranking broadcasts may still be
	// queued for the survivor.
	require.Eventually(t, func() bool {
		if err := survivor.SetReadDeadline(time.Now().Add(waitFor)); err != nil {
			return false
		}
		_, raw, err := survivor.ReadMessage()
		if err != nil {
			return false
		}
		var got game.Event
		if err := json.Unmarshal(raw, &got); err != nil {
			return false
		}
		return got.Type == game.EventGameStarted
	}, waitFor, tick)
}

func TestStatsReportsCounts(t *testing.T) {
	srv, hub, _ := newTestServer(t)

	dial(t, srv, "player")
	dial(t, srv, "player")
	dial(t, srv, "projection")
	waitForConnections(t, hub, "player", 2)
	waitForConnections(t, hub, "projection", 1)

	resp, err := http.Get(srv.URL + "/ws/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var counts map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&counts))
	require.Equal(t, 2, counts["player"])
	require.Equal(t, 1, counts["projection"])
	require.Equal(t, 0, counts["admin"])
}
