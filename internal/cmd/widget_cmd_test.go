package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoplane/schat/internal/api"
)

func historyHandler(listCalls *atomic.Int32) *routeHandler {
	return newRouteHandler().
		On("GET", "/api/chats/my", jsonResponse(200, `{"id":"c-1","user":"u-1"}`)).
		On("GET", "/api/chats/c-1/messages", func(w http.ResponseWriter, r *http.Request) {
			if listCalls != nil {
				listCalls.Add(1)
			}
			jsonResponse(200, `[
				{"id":"m-1","chat":"c-1","senderRole":"customer","content":"Where is my refund?","createdAt":1700000000},
				{"id":"m-2","chat":"c-1","senderRole":"admin","content":"Checking on that now","createdAt":1700000060}
			]`)(w, r)
		})
}

func TestWidgetHistoryText(t *testing.T) {
	setupTestEnv(t, historyHandler(nil))

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{"widget", "history"})
		require.NoError(t, err)
	})

	assert.Contains(t, output, "you")
	assert.Contains(t, output, "support")
	assert.Contains(t, output, "Where is my refund?")
	assert.Contains(t, output, "Checking on that now")
}

func TestWidgetHistoryJSON(t *testing.T) {
	setupTestEnv(t, historyHandler(nil))

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{"widget", "history", "--json"})
		require.NoError(t, err)
	})

	var messages []api.Message
	require.NoError(t, json.Unmarshal([]byte(output), &messages))
	require.Len(t, messages, 2)
	assert.Equal(t, "m-1", messages[0].ID)
	assert.Equal(t, "m-2", messages[1].ID)
}

func TestWidgetHistoryLimit(t *testing.T) {
	setupTestEnv(t, historyHandler(nil))

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{"widget", "history", "-n", "1"})
		require.NoError(t, err)
	})

	assert.NotContains(t, output, "Where is my refund?")
	assert.Contains(t, output, "Checking on that now")
}

func TestWidgetHistoryFuzzyFind(t *testing.T) {
	setupTestEnv(t, historyHandler(nil))

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{"widget", "history", "--find", "refund"})
		require.NoError(t, err)
	})

	assert.Contains(t, output, "Where is my refund?")
	assert.NotContains(t, output, "Checking on that now")
}

func TestWidgetHistoryNoConversation(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/api/chats/my", jsonResponse(404, `{"error":"no chat"}`))
	setupTestEnv(t, handler)

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{"widget", "history"})
		require.NoError(t, err)
	})

	assert.Contains(t, output, "No conversation yet.")
}

func TestWidgetHistoryUsesCache(t *testing.T) {
	var listCalls atomic.Int32
	setupTestEnv(t, historyHandler(&listCalls))

	run := func(args ...string) {
		captureStdout(t, func() {
			err := Execute(context.Background(), append([]string{"widget", "history"}, args...))
			require.NoError(t, err)
		})
	}

	run()
	assert.Equal(t, int32(1), listCalls.Load())

	run()
	assert.Equal(t, int32(1), listCalls.Load(), "second fetch should come from cache")

	run("--refresh")
	assert.Equal(t, int32(2), listCalls.Load(), "--refresh must bypass the cache")
}

func TestWidgetSend(t *testing.T) {
	var sentBody map[string]string
	handler := newRouteHandler().
		On("GET", "/api/chats/my", jsonResponse(200, `{"id":"c-1","user":"u-1"}`)).
		On("POST", "/api/messages", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&sentBody)
			jsonResponse(200, `{"id":"srv-1","chat":"c-1","senderRole":"customer","content":"hello there","createdAt":1700000100}`)(w, r)
		})
	setupTestEnv(t, handler)

	output := captureStdout(t, func() {
		err := Execute(context.Background(), []string{"widget", "send", "hello", "there"})
		require.NoError(t, err)
	})

	assert.Contains(t, output, "Sent.")
	assert.Equal(t, "c-1", sentBody["chatId"])
	assert.Equal(t, "hello there", sentBody["content"])
}

func TestWidgetSendCreatesChatOnFirstContact(t *testing.T) {
	created := false
	handler := newRouteHandler().
		On("GET", "/api/chats/my", jsonResponse(404, `{"error":"no chat"}`)).
		On("POST", "/api/chats", func(w http.ResponseWriter, r *http.Request) {
			created = true
			jsonResponse(200, `{"id":"c-new","user":"u-1"}`)(w, r)
		}).
		On("POST", "/api/messages", jsonResponse(200, `{"id":"srv-1","chat":"c-new","senderRole":"customer","content":"hi","createdAt":1700000100}`))
	setupTestEnv(t, handler)

	captureStdout(t, func() {
		err := Execute(context.Background(), []string{"widget", "send", "hi"})
		require.NoError(t, err)
	})

	assert.True(t, created, "first contact should create the conversation")
}

func TestWidgetSendRequiresContent(t *testing.T) {
	setupTestEnv(t, newRouteHandler())

	captureStderr(t, func() {
		err := Execute(context.Background(), []string{"widget", "send", "   "})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "message cannot be empty")
	})
}

func TestWidgetOpenInteractiveRESTFallback(t *testing.T) {
	// No websocket endpoint on the mock server, so the push channel
	// never comes up and every send takes the REST fallback.
	var sentBody map[string]string
	handler := newRouteHandler().
		On("GET", "/api/users/me", jsonResponse(200, `{"id":"u-1","name":"Dana","role":"customer"}`)).
		On("GET", "/api/chats/my", jsonResponse(200, `{"id":"c-1","user":"u-1"}`)).
		On("GET", "/api/chats/c-1/messages", jsonResponse(200, `[
			{"id":"m-1","chat":"c-1","senderRole":"admin","content":"Welcome to Shoplane","createdAt":1700000000}
		]`)).
		On("POST", "/api/messages", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&sentBody)
			jsonResponse(200, `{"id":"srv-1","chat":"c-1","senderRole":"customer","content":"need help","createdAt":1700000200}`)(w, r)
		})
	setupTestEnv(t, handler)

	// Executing the subcommand directly skips the root flag reset.
	flags = rootFlags{Timeout: api.DefaultTimeout}

	cmd := newWidgetOpenCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(bytes.NewBufferString("need help\n/quit\n"))

	require.NoError(t, cmd.Execute())

	text := out.String()
	assert.Contains(t, text, "Connected as Dana")
	assert.Contains(t, text, "Welcome to Shoplane")
	assert.Contains(t, text, "need help")
	assert.Equal(t, "need help", sentBody["content"])
}

func TestWidgetOpenRejectsAdmin(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/api/users/me", jsonResponse(200, `{"id":"u-9","name":"Agent","role":"admin"}`)).
		On("GET", "/api/chats/my", jsonResponse(200, `{"id":"c-9","user":"u-9"}`))
	setupTestEnv(t, handler)

	errOutput := captureStderr(t, func() {
		err := Execute(context.Background(), []string{"widget", "open"})
		require.Error(t, err)
	})

	assert.Contains(t, errOutput, "support agent")
}
