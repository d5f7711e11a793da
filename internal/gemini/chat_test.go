package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thedeathtitan/mcpbridge/internal/bridge"
)

type fakeSession struct {
	sent      [][]genai.Part
	responses []*genai.GenerateContentResponse
	err       error
}

func (f *fakeSession) SendMessage(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.sent = append(f.sent, parts)
	if f.err != nil {
		return nil, f.err
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func response(parts ...genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: "model", Parts: parts}}},
	}
}

func TestChat_TextTurn(t *testing.T) {
	session := &fakeSession{responses: []*genai.GenerateContentResponse{
		response(genai.Text("There are "), genai.Text("3 nodes.")),
	}}
	chat := newChat(session, nil, nil)

	turn, err := chat.Send(context.Background(), bridge.Input{Text: "How many?"})

	require.NoError(t, err)
	assert.True(t, turn.IsText())
	assert.Equal(t, "There are 3 nodes.", turn.Text)
	assert.Equal(t, []genai.Part{genai.Text("How many?")}, session.sent[0])
}

func TestChat_FunctionCallsMapNames(t *testing.T) {
	session := &fakeSession{responses: []*genai.GenerateContentResponse{
		response(
			genai.FunctionCall{Name: "graph_create_node", Args: map[string]any{"label": "Person"}},
			genai.FunctionCall{Name: "find_nodes"},
		),
	}}
	chat := newChat(session, map[string]string{
		"graph_create_node": "graph.create_node",
		"find_nodes":        "find_nodes",
	}, nil)

	turn, err := chat.Send(context.Background(), bridge.Input{Text: "add a person"})

	require.NoError(t, err)
	require.Len(t, turn.Calls, 2)
	assert.Equal(t, "graph.create_node", turn.Calls[0].Name)
	assert.Equal(t, map[string]any{"label": "Person"}, turn.Calls[0].Arguments)
	assert.Equal(t, map[string]any{}, turn.Calls[1].Arguments)
}

func TestChat_ResultsSentTogether(t *testing.T) {
	session := &fakeSession{responses: []*genai.GenerateContentResponse{
		response(genai.Text("done")),
	}}
	chat := newChat(session, map[string]string{"graph_create_node": "graph.create_node"}, nil)

	_, err := chat.Send(context.Background(), bridge.Input{Results: []bridge.FunctionResult{
		{Name: "graph.create_node", Response: map[string]any{"result": "created n1"}},
		{Name: "other", Response: map[string]any{"error": map[string]any{"message": "boom"}}, Failed: true},
	}})

	require.NoError(t, err)
	require.Len(t, session.sent, 1)
	assert.Equal(t, []genai.Part{
		genai.FunctionResponse{Name: "graph_create_node", Response: map[string]any{"result": "created n1"}},
		genai.FunctionResponse{Name: "other", Response: map[string]any{"error": map[string]any{"message": "boom"}}},
	}, session.sent[0])
}

func TestChat_EmptyInput(t *testing.T) {
	chat := newChat(&fakeSession{}, nil, nil)
	_, err := chat.Send(context.Background(), bridge.Input{Text: "  "})
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestChat_NoContent(t *testing.T) {
	session := &fakeSession{responses: []*genai.GenerateContentResponse{
		{Candidates: []*genai.Candidate{{Content: nil}}},
	}}
	chat := newChat(session, nil, nil)
	_, err := chat.Send(context.Background(), bridge.Input{Text: "hi"})
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestChat_APIError(t *testing.T) {
	boom := errors.New("429 quota")
	chat := newChat(&fakeSession{err: boom}, nil, nil)
	_, err := chat.Send(context.Background(), bridge.Input{Text: "hi"})
	assert.ErrorIs(t, err, boom)
}

func TestChat_DrivesBridge(t *testing.T) {
	session := &fakeSession{responses: []*genai.GenerateContentResponse{
		response(genai.FunctionCall{Name: "find_nodes", Args: map[string]any{"label": "Person"}}),
		response(genai.Text("Found them.")),
	}}
	chat := newChat(session, map[string]string{"find_nodes": "find_nodes"}, nil)

	b := bridge.New(stubTools{}, bridge.Options{})
	answer, err := b.Run(context.Background(), chat, "find people")

	require.NoError(t, err)
	assert.Equal(t, "Found them.", answer)
	require.Len(t, session.sent, 2)
	fr, ok := session.sent[1][0].(genai.FunctionResponse)
	require.True(t, ok)
	assert.Equal(t, "Found 3 nodes", fr.Response["result"])
}
