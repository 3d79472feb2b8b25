package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/inmobilia-pe/inmobilia-ai/internal/analytics"
	"github.com/inmobilia-pe/inmobilia-ai/internal/flow"
	"github.com/inmobilia-pe/inmobilia-ai/internal/models"
	"github.com/inmobilia-pe/inmobilia-ai/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *Server) {
	t.Helper()
	st := store.NewInMemoryStore()
	tracker := analytics.NewTracker(st)
	conv := flow.NewConversationFlow(nil, st, tracker, nil, flow.NewRecommender(st))
	srv := NewServer(conv, st, tracker)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, srv
}

func postChat(t *testing.T, ts *httptest.Server, req models.ChatRequest) (int, models.APIResponse, models.ChatResponse) {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(ts.URL+"/api/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var envelope models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	var chat models.ChatResponse
	if envelope.Result != nil {
		raw, _ := json.Marshal(envelope.Result)
		if err := json.Unmarshal(raw, &chat); err != nil {
			t.Fatalf("failed to decode chat response: %v", err)
		}
	}
	return resp.StatusCode, envelope, chat
}

func getJSON(t *testing.T, url string) (int, models.APIResponse) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var envelope models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	return resp.StatusCode, envelope
}

func TestChatStartsNewSession(t *testing.T) {
	ts, _ := newTestServer(t)

	status, envelope, chat := postChat(t, ts, models.ChatRequest{Message: "Hola"})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if envelope.Message != flow.WelcomeMessage {
		t.Errorf("welcome = %q", envelope.Message)
	}
	if chat.SessionID == "" {
		t.Fatal("session ID not assigned")
	}
	if chat.Agent != models.TargetLegal {
		t.Errorf("first turn agent = %s, want legal", chat.Agent)
	}
	if chat.Reply != flow.ConsentMessage {
		t.Errorf("first turn reply = %q", chat.Reply)
	}

	// A follow-up turn on the same session carries no welcome.
	status, envelope, chat2 := postChat(t, ts, models.ChatRequest{Message: "acepto", SessionID: chat.SessionID})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if envelope.Message != "" {
		t.Errorf("follow-up turn carried a welcome: %q", envelope.Message)
	}
	if chat2.SessionID != chat.SessionID {
		t.Errorf("session changed between turns: %s vs %s", chat2.SessionID, chat.SessionID)
	}
}

func TestChatRejectsInvalidRequests(t *testing.T) {
	ts, _ := newTestServer(t)

	status, envelope, _ := postChat(t, ts, models.ChatRequest{Message: ""})
	if status != http.StatusBadRequest {
		t.Errorf("empty message status = %d, want 400", status)
	}
	if envelope.Status != "error" {
		t.Errorf("envelope status = %q", envelope.Status)
	}

	resp, err := http.Post(ts.URL+"/api/chat", "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed JSON status = %d, want 400", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/chat")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", resp.StatusCode)
	}
}

func TestChatEndedSessionIsGone(t *testing.T) {
	ts, _ := newTestServer(t)

	_, _, chat := postChat(t, ts, models.ChatRequest{Message: "Hola"})
	postChat(t, ts, models.ChatRequest{Message: "acepto", SessionID: chat.SessionID})
	status, _, chat2 := postChat(t, ts, models.ChatRequest{Message: "gracias, chau", SessionID: chat.SessionID})
	if status != http.StatusOK || !chat2.Ended {
		t.Fatalf("farewell turn: status=%d ended=%v", status, chat2.Ended)
	}

	status, envelope, _ := postChat(t, ts, models.ChatRequest{Message: "hola otra vez", SessionID: chat.SessionID})
	if status != http.StatusGone {
		t.Errorf("turn on ended session status = %d, want 410", status)
	}
	if envelope.Status != "error" {
		t.Errorf("envelope status = %q", envelope.Status)
	}
}

func TestLeadsEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	_, _, chat := postChat(t, ts, models.ChatRequest{Message: "Hola, me llamo Ana Torres"})

	status, envelope := getJSON(t, ts.URL+"/api/leads")
	if status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	result := envelope.Result.(map[string]interface{})
	if int(result["count"].(float64)) != 1 {
		t.Errorf("lead count = %v, want 1", result["count"])
	}

	status, envelope = getJSON(t, ts.URL+"/api/leads/"+chat.SessionID)
	if status != http.StatusOK {
		t.Fatalf("get status = %d", status)
	}
	var rec store.LeadRecord
	raw, _ := json.Marshal(envelope.Result)
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatal(err)
	}
	if rec.Fields["nombre"] != "Ana Torres" {
		t.Errorf("persisted nombre = %v", rec.Fields["nombre"])
	}

	status, _ = getJSON(t, ts.URL+"/api/leads/s_missing")
	if status != http.StatusNotFound {
		t.Errorf("missing lead status = %d, want 404", status)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/leads/"+chat.SessionID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	status, _ = getJSON(t, ts.URL+"/api/leads/"+chat.SessionID)
	if status != http.StatusNotFound {
		t.Errorf("deleted lead status = %d, want 404", status)
	}
}

func TestSessionsEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	_, _, chat := postChat(t, ts, models.ChatRequest{Message: "Hola", UserID: "u_42"})

	status, envelope := getJSON(t, ts.URL+"/api/sessions")
	if status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	result := envelope.Result.(map[string]interface{})
	if int(result["count"].(float64)) != 1 {
		t.Errorf("session count = %v, want 1", result["count"])
	}

	status, envelope = getJSON(t, ts.URL+"/api/sessions/"+chat.SessionID)
	if status != http.StatusOK {
		t.Fatalf("get status = %d", status)
	}
	var info models.SessionInfo
	raw, _ := json.Marshal(envelope.Result)
	if err := json.Unmarshal(raw, &info); err != nil {
		t.Fatal(err)
	}
	if info.UserID != "u_42" {
		t.Errorf("user ID = %q", info.UserID)
	}
	// welcome + user + assistant
	if info.MessageCount != 3 {
		t.Errorf("message count = %d, want 3", info.MessageCount)
	}

	status, envelope = getJSON(t, ts.URL+"/api/sessions/"+chat.SessionID+"/events")
	if status != http.StatusOK {
		t.Fatalf("events status = %d", status)
	}
	result = envelope.Result.(map[string]interface{})
	if int(result["count"].(float64)) < 2 {
		t.Errorf("event count = %v, want at least started + assignment", result["count"])
	}

	status, envelope = getJSON(t, ts.URL+"/api/sessions/"+chat.SessionID+"/summary")
	if status != http.StatusOK {
		t.Fatalf("summary status = %d", status)
	}
	var summary analytics.ConversationSummary
	raw, _ = json.Marshal(envelope.Result)
	if err := json.Unmarshal(raw, &summary); err != nil {
		t.Fatal(err)
	}
	if !summary.Started {
		t.Error("summary missing started marker")
	}
	if summary.AgentAssignments["legal"] != 1 {
		t.Errorf("agent assignments = %v", summary.AgentAssignments)
	}

	status, _ = getJSON(t, ts.URL+"/api/sessions/s_missing")
	if status != http.StatusNotFound {
		t.Errorf("missing session status = %d, want 404", status)
	}
}

func TestPropertiesEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	status, envelope := getJSON(t, ts.URL+"/api/properties")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	result := envelope.Result.(map[string]interface{})
	if int(result["count"].(float64)) != len(store.SampleProperties) {
		t.Errorf("property count = %v, want %d", result["count"], len(store.SampleProperties))
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var health map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health["status"] != "healthy" {
		t.Errorf("health status = %v", health["status"])
	}
}
