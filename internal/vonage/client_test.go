package vonage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) AdminToken() (string, error) { return string(s), nil }

type failingToken struct{}

func (failingToken) AdminToken() (string, error) { return "", errors.New("no key") }

type recorded struct {
	method string
	path   string
	query  string
	auth   string
	body   map[string]interface{}
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.EscapedPath(), query: r.URL.RawQuery, auth: r.Header.Get("Authorization")}
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			require.NoError(t, json.Unmarshal(raw, &rec.body))
		}
		calls = append(calls, rec)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := New(srv.URL+"/v0.3/", staticToken("admin-jwt"), 5*time.Second)
	require.NoError(t, err)
	return client, &calls
}

func TestNew_validation(t *testing.T) {
	_, err := New("", staticToken("x"), time.Second)
	assert.Error(t, err)
	_, err = New("api.nexmo.com", staticToken("x"), time.Second)
	assert.Error(t, err)

	c, err := New("https://api.nexmo.com/v0.3/", staticToken("x"), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "https://api.nexmo.com/v0.3", c.BaseURL())
}

func TestClient_getConversation(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"CON-1","name":"whatsapp:conversation:447700900000"}`))
	})

	conv, err := client.GetConversation(context.Background(), "CON-1")
	require.NoError(t, err)
	assert.Equal(t, "whatsapp:conversation:447700900000", conv.Name)

	require.Len(t, *calls, 1)
	assert.Equal(t, "/v0.3/conversations/CON-1", (*calls)[0].path)
	assert.Equal(t, "Bearer admin-jwt", (*calls)[0].auth)
}

func TestClient_membersAndEvents(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"_embedded":{"members":[
				{"id":"MEM-1","state":"JOINED","_embedded":{"user":{"id":"USR-1","name":"agent@example.com"}}},
				{"id":"MEM-2","state":"LEFT","_embedded":{"user":{"id":"USR-2","name":"bot:vonage"}}}]}}`))
		case http.MethodPost:
			if r.URL.Path == "/v0.3/conversations/CON-1/members" {
				_, _ = w.Write([]byte(`{"id":"MEM-3"}`))
				return
			}
			w.WriteHeader(http.StatusCreated)
		}
	})
	ctx := context.Background()

	members, err := client.ListMembers(ctx, "CON-1")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "agent@example.com", members[0].Username())
	assert.Equal(t, MemberJoined, members[0].State)

	preanswer := false
	id, err := client.CreateMember(ctx, "CON-1", MemberRequest{
		User:    MemberUser{Name: "bot:vonage"},
		State:   MemberJoined,
		Channel: MemberChannel{Type: "app", Preanswer: &preanswer},
	})
	require.NoError(t, err)
	assert.Equal(t, "MEM-3", id)

	require.NoError(t, client.SendEvent(ctx, "CON-1", NewTextMessage("MEM-3", "hello")))

	require.Len(t, *calls, 3)
	memberBody := (*calls)[1].body
	assert.Equal(t, map[string]interface{}{"name": "bot:vonage"}, memberBody["user"])
	assert.Equal(t, map[string]interface{}{"type": "app", "preanswer": false}, memberBody["channel"])

	event := (*calls)[2]
	assert.Equal(t, "/v0.3/conversations/CON-1/events", event.path)
	assert.Equal(t, "message", event.body["type"])
	assert.Equal(t, "MEM-3", event.body["from"])
	assert.Equal(t, map[string]interface{}{"message_type": "text", "text": "hello"}, event.body["body"])
}

func TestClient_users(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.RawQuery != "":
			_, _ = w.Write([]byte(`{"_embedded":{"users":[{"id":"USR-9","name":"sms:customer:15550001"}]}}`))
		case r.Method == http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPost:
			_, _ = w.Write([]byte(`{"id":"USR-10","name":"agent@example.com"}`))
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	ctx := context.Background()

	_, err := client.GetUser(ctx, "messenger:customer:123")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "Error GET /users/messenger:customer:123 404")

	users, err := client.FindUserByName(ctx, "sms:customer:15550001")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "USR-9", users[0].ID)
	assert.Equal(t, "name=sms%3Acustomer%3A15550001", (*calls)[1].query)

	created, err := client.CreateUser(ctx, User{Name: "agent@example.com", DisplayName: "Agent"})
	require.NoError(t, err)
	assert.Equal(t, "USR-10", created.ID)

	require.NoError(t, client.UpdateUser(ctx, "USR-9", User{Name: "+15550001", DisplayName: "+15550001"}))
	require.NoError(t, client.DeleteUser(ctx, "USR-9"))
	require.NoError(t, client.DeleteConversation(ctx, "CON-1"))

	assert.Equal(t, http.MethodPatch, (*calls)[3].method)
	assert.Equal(t, "/v0.3/users/USR-9", (*calls)[4].path)
	assert.Equal(t, "/v0.3/conversations/CON-1", (*calls)[5].path)
}

func TestClient_tokenFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not be sent")
	}))
	defer srv.Close()

	client, err := New(srv.URL, failingToken{}, time.Second)
	require.NoError(t, err)
	_, err = client.GetConversation(context.Background(), "CON-1")
	assert.ErrorContains(t, err, "admin token")
}

func TestClient_listPages(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v0.3/conversations" {
			_, _ = w.Write([]byte(`{"page_size":10,"_embedded":{"conversations":[{"id":"CON-1"}]},"_links":{"next":{"href":"x"}}}`))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	ctx := context.Background()

	page, err := client.ListConversations(ctx, url.Values{"page_size": {"10"}, "order": {"desc"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"page_size":10,"_embedded":{"conversations":[{"id":"CON-1"}]},"_links":{"next":{"href":"x"}}}`, string(page))
	assert.Equal(t, "order=desc&page_size=10", (*calls)[0].query)

	_, err = client.ListUsers(ctx, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Error GET /users 503")
	assert.Equal(t, "", (*calls)[1].query)
}
