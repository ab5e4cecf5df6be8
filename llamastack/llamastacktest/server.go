// Package llamastacktest provides an in-memory stand-in for the Llama Stack
// endpoints used by the harness.
package llamastacktest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"laptop-refresh/llamastack"
	"laptop-refresh/shared"
)

// ToolHandler serves one tool of the fake tool runtime.
type ToolHandler func(kwargs map[string]any) (llamastack.Content, error)

// Responder produces the events streamed back for a turn.
type Responder func(turn TurnRequest) ([]shared.TurnEvent, error)

type TurnRequest struct {
	AgentID   string
	SessionID string
	Messages  []llamastack.Message
}

type ToolInvocation struct {
	Name   string
	Kwargs map[string]any
}

type ToolGroupRegistration struct {
	ToolGroupID string
	ProviderID  string
	URI         string
}

type VectorDB struct {
	ID             string
	ProviderID     string
	EmbeddingModel string
}

type Server struct {
	*httptest.Server

	mu           sync.Mutex
	Providers    []llamastack.Provider
	Tools        []llamastack.Tool
	ToolHandlers map[string]ToolHandler
	Responder    Responder

	VectorDBs   map[string]VectorDB
	Documents   map[string][]llamastack.Document
	ChunkSizes  map[string]int
	ToolGroups  []ToolGroupRegistration
	Agents      map[string]llamastack.AgentConfig
	Sessions    map[string]string
	Turns       []TurnRequest
	Invocations []ToolInvocation

	nextID int
}

// New starts a fake platform with one vector_io provider and the built-in
// knowledge_search tool. It is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		Providers: []llamastack.Provider{
			{API: "inference", ProviderID: "vllm-inference"},
			{API: "vector_io", ProviderID: "faiss"},
			{API: "vector_io", ProviderID: "chromadb"},
		},
		Tools: []llamastack.Tool{
			{
				Identifier:  "knowledge_search",
				Description: "Search for information in a database.",
				ToolGroupID: "builtin::rag",
				Parameters: []llamastack.ToolParameter{
					{Name: "query", ParameterType: "string", Description: "The query to search for. Can be a natural language sentence or keywords."},
				},
			},
		},
		ToolHandlers: map[string]ToolHandler{},
		VectorDBs:    map[string]VectorDB{},
		Documents:    map[string][]llamastack.Document{},
		ChunkSizes:   map[string]int{},
		Agents:       map[string]llamastack.AgentConfig{},
		Sessions:     map[string]string{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/providers", s.handleProviders)
	mux.HandleFunc("POST /v1/vector-dbs", s.handleRegisterVectorDB)
	mux.HandleFunc("POST /v1/tool-runtime/rag-tool/insert", s.handleInsert)
	mux.HandleFunc("GET /v1/tools", s.handleListTools)
	mux.HandleFunc("POST /v1/tool-runtime/invoke", s.handleInvoke)
	mux.HandleFunc("POST /v1/toolgroups", s.handleRegisterToolGroup)
	mux.HandleFunc("POST /v1/agents", s.handleCreateAgent)
	mux.HandleFunc("POST /v1/agents/{agent_id}/session", s.handleCreateSession)
	mux.HandleFunc("POST /v1/agents/{agent_id}/session/{session_id}/turn", s.handleTurn)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Client returns a platform client pointed at the fake.
func (s *Server) Client(t testing.TB) *llamastack.Client {
	t.Helper()
	client, err := llamastack.New(s.URL, 0, s.Server.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

// AddTool registers a tool and its handler with the fake tool runtime.
func (s *Server) AddTool(tool llamastack.Tool, handler ToolHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Tools = append(s.Tools, tool)
	s.ToolHandlers[tool.Identifier] = handler
}

func (s *Server) SetResponder(responder Responder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Responder = responder
}

// Registrations returns a copy of the registered tool groups.
func (s *Server) Registrations() []ToolGroupRegistration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ToolGroupRegistration(nil), s.ToolGroups...)
}

func (s *Server) id(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": s.Providers})
}

func (s *Server) handleRegisterVectorDB(w http.ResponseWriter, r *http.Request) {
	var request struct {
		VectorDBID     string `json:"vector_db_id"`
		ProviderID     string `json:"provider_id"`
		EmbeddingModel string `json:"embedding_model"`
	}
	if !readJSON(w, r, &request) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.VectorDBs[request.VectorDBID] = VectorDB{
		ID:             request.VectorDBID,
		ProviderID:     request.ProviderID,
		EmbeddingModel: request.EmbeddingModel,
	}
	writeJSON(w, http.StatusOK, map[string]any{"identifier": request.VectorDBID})
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Documents         []llamastack.Document `json:"documents"`
		VectorDBID        string                `json:"vector_db_id"`
		ChunkSizeInTokens int                   `json:"chunk_size_in_tokens"`
	}
	if !readJSON(w, r, &request) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.VectorDBs[request.VectorDBID]; !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("vector db %s not found", request.VectorDBID))
		return
	}
	s.Documents[request.VectorDBID] = append(s.Documents[request.VectorDBID], request.Documents...)
	s.ChunkSizes[request.VectorDBID] = request.ChunkSizeInTokens
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": s.Tools})
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ToolName string         `json:"tool_name"`
		Kwargs   map[string]any `json:"kwargs"`
	}
	if !readJSON(w, r, &request) {
		return
	}

	s.mu.Lock()
	s.Invocations = append(s.Invocations, ToolInvocation{Name: request.ToolName, Kwargs: request.Kwargs})
	handler, ok := s.ToolHandlers[request.ToolName]
	var content llamastack.Content
	var err error
	switch {
	case ok:
		s.mu.Unlock()
		content, err = handler(request.Kwargs)
	case request.ToolName == "knowledge_search":
		content = s.knowledgeSearch(request.Kwargs)
		s.mu.Unlock()
	default:
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, fmt.Sprintf("tool %s not found", request.ToolName))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"content": content, "metadata": map[string]any{}})
}

// knowledgeSearch ranks whole documents by how many query words they contain.
// Caller holds s.mu.
func (s *Server) knowledgeSearch(kwargs map[string]any) llamastack.Content {
	query, _ := kwargs["query"].(string)
	var dbs []string
	if ids, ok := kwargs["vector_db_ids"].([]any); ok {
		for _, id := range ids {
			if name, ok := id.(string); ok {
				dbs = append(dbs, name)
			}
		}
	}

	type hit struct {
		doc   llamastack.Document
		score int
	}
	var hits []hit
	words := strings.Fields(strings.ToLower(query))
	for _, db := range dbs {
		for _, doc := range s.Documents[db] {
			content := strings.ToLower(doc.Content)
			score := 0
			for _, word := range words {
				word = strings.Trim(word, "?.,!")
				if len(word) > 3 && strings.Contains(content, word) {
					score++
				}
			}
			if score > 0 {
				hits = append(hits, hit{doc, score})
			}
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > 5 {
		hits = hits[:5]
	}
	if len(hits) == 0 {
		return llamastack.Content{{Type: "text", Text: "No chunks found."}}
	}

	content := llamastack.Content{{
		Type: "text",
		Text: fmt.Sprintf("knowledge_search tool found %d chunks:\nBEGIN of knowledge_search tool results.\n", len(hits)),
	}}
	for i, h := range hits {
		content = append(content, shared.ContentItem{
			Type: "text",
			Text: fmt.Sprintf("Result %d\nContent: %s\nMetadata: {'document_id': '%s'}\n", i+1, h.doc.Content, h.doc.DocumentID),
		})
	}
	content = append(content, shared.ContentItem{Type: "text", Text: "END of knowledge_search tool results.\n"})
	return content
}

func (s *Server) handleRegisterToolGroup(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ToolGroupID string `json:"toolgroup_id"`
		ProviderID  string `json:"provider_id"`
		MCPEndpoint struct {
			URI string `json:"uri"`
		} `json:"mcp_endpoint"`
	}
	if !readJSON(w, r, &request) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ToolGroups = append(s.ToolGroups, ToolGroupRegistration{
		ToolGroupID: request.ToolGroupID,
		ProviderID:  request.ProviderID,
		URI:         request.MCPEndpoint.URI,
	})
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var request struct {
		AgentConfig llamastack.AgentConfig `json:"agent_config"`
	}
	if !readJSON(w, r, &request) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	agentID := s.id("agent")
	s.Agents[agentID] = request.AgentConfig
	writeJSON(w, http.StatusOK, map[string]any{"agent_id": agentID})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agent_id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Agents[agentID]; !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("agent %s not found", agentID))
		return
	}
	sessionID := s.id("session")
	s.Sessions[sessionID] = agentID
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID})
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Messages []llamastack.Message `json:"messages"`
		Stream   bool                 `json:"stream"`
	}
	if !readJSON(w, r, &request) {
		return
	}
	turn := TurnRequest{
		AgentID:   r.PathValue("agent_id"),
		SessionID: r.PathValue("session_id"),
		Messages:  request.Messages,
	}

	s.mu.Lock()
	if s.Sessions[turn.SessionID] != turn.AgentID {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, fmt.Sprintf("session %s not found", turn.SessionID))
		return
	}
	s.Turns = append(s.Turns, turn)
	responder := s.Responder
	s.mu.Unlock()

	if responder == nil {
		responder = func(TurnRequest) ([]shared.TurnEvent, error) { return Reply(""), nil }
	}
	events, err := responder(turn)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	for _, event := range events {
		data, err := json.Marshal(EncodeEvent(turn.SessionID, event))
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
	}
}

// Reply is the event sequence of a turn that answers text without tools.
func Reply(text string) []shared.TurnEvent {
	return []shared.TurnEvent{
		{Type: shared.EventTurnStart},
		{Type: shared.EventStepStart, StepType: shared.StepInference, StepID: "step-1"},
		{Type: shared.EventStepProgress, StepType: shared.StepInference, StepID: "step-1", Delta: text},
		{Type: shared.EventStepComplete, StepType: shared.StepInference, StepID: "step-1"},
		{Type: shared.EventTurnComplete, Text: text},
	}
}

// EncodeEvent renders an event the way the platform streams it.
func EncodeEvent(sessionID string, e shared.TurnEvent) map[string]any {
	payload := map[string]any{"event_type": e.Type}
	if e.StepType != "" {
		payload["step_type"] = e.StepType
	}
	if e.StepID != "" {
		payload["step_id"] = e.StepID
	}
	if e.Delta != "" {
		payload["delta"] = map[string]any{"type": "text", "text": e.Delta}
	}
	if len(e.ToolCalls) != 0 || len(e.ToolResponses) != 0 {
		calls := []map[string]any{}
		for _, call := range e.ToolCalls {
			var args any = call.Arguments
			if json.Valid([]byte(call.Arguments)) {
				args = json.RawMessage(call.Arguments)
			}
			calls = append(calls, map[string]any{
				"call_id":   call.CallID,
				"tool_name": call.ToolName,
				"arguments": args,
			})
		}
		responses := []map[string]any{}
		for _, response := range e.ToolResponses {
			responses = append(responses, map[string]any{
				"call_id":   response.CallID,
				"tool_name": response.ToolName,
				"content":   response.Content,
			})
		}
		payload["step_details"] = map[string]any{
			"step_type":      e.StepType,
			"tool_calls":     calls,
			"tool_responses": responses,
		}
	}
	if e.Type == shared.EventTurnComplete {
		payload["turn"] = map[string]any{
			"session_id": sessionID,
			"output_message": map[string]any{
				"role":        "assistant",
				"content":     e.Text,
				"stop_reason": "end_of_turn",
			},
		}
	}
	return map[string]any{"event": map[string]any{"payload": payload}}
}

func readJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{"detail": detail})
}
