package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/locodev/loco/internal/tools"
)

func serverRegistry() *tools.Registry {
	r := tools.NewRegistry()
	r.Register(&tools.Tool{
		Name:        "echo",
		Description: "Echo the input text.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			s, _ := args["text"].(string)
			return s, nil
		},
	})
	r.Register(&tools.Tool{
		Name:        "fail",
		Description: "Always fails.",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "", fmt.Errorf("boom")
		},
	})
	return r
}

// serve runs the server over the given input lines and returns one
// decoded output envelope per response line.
func serve(t *testing.T, input string) []map[string]any {
	t.Helper()
	s := NewServer(serverRegistry(), testLogger())

	var out bytes.Buffer
	if err := s.Serve(context.Background(), strings.NewReader(input), &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	var responses []map[string]any
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var m map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("bad response line %q: %v", scanner.Text(), err)
		}
		responses = append(responses, m)
	}
	return responses
}

func TestServerInitialize(t *testing.T) {
	responses := serve(t, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`+"\n")

	if len(responses) != 1 {
		t.Fatalf("responses = %d, want 1", len(responses))
	}
	result, ok := responses[0]["result"].(map[string]any)
	if !ok {
		t.Fatalf("no result in %v", responses[0])
	}
	if result["protocolVersion"] != protocolVersion {
		t.Errorf("protocolVersion = %v", result["protocolVersion"])
	}
	caps, ok := result["capabilities"].(map[string]any)
	if !ok {
		t.Fatalf("capabilities missing: %v", result)
	}
	if _, ok := caps["tools"]; !ok {
		t.Error("tools capability not declared")
	}
	info := result["serverInfo"].(map[string]any)
	if info["name"] != "loco" {
		t.Errorf("serverInfo name = %v", info["name"])
	}
}

func TestServerListTools(t *testing.T) {
	responses := serve(t, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`+"\n")

	result := responses[0]["result"].(map[string]any)
	toolList, ok := result["tools"].([]any)
	if !ok {
		t.Fatalf("tools missing: %v", result)
	}
	if len(toolList) != 2 {
		t.Fatalf("tools = %d, want 2", len(toolList))
	}
	first := toolList[0].(map[string]any)
	if first["name"] != "echo" {
		t.Errorf("first tool = %v, want echo (sorted)", first["name"])
	}
	if _, ok := first["inputSchema"]; !ok {
		t.Error("inputSchema missing from tool definition")
	}
}

func TestServerCallTool(t *testing.T) {
	responses := serve(t, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"echo","arguments":{"text":"hello"}}}`+"\n")

	result := responses[0]["result"].(map[string]any)
	content := result["content"].([]any)
	block := content[0].(map[string]any)
	if block["type"] != "text" || block["text"] != "hello" {
		t.Errorf("content = %v", content)
	}
	if _, ok := result["isError"]; ok {
		t.Error("isError set on successful call")
	}
}

func TestServerCallToolFailure(t *testing.T) {
	responses := serve(t, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"fail","arguments":{}}}`+"\n")

	result := responses[0]["result"].(map[string]any)
	if result["isError"] != true {
		t.Fatalf("isError not set: %v", result)
	}
	block := result["content"].([]any)[0].(map[string]any)
	if !strings.Contains(block["text"].(string), "Error executing fail: boom") {
		t.Errorf("text = %v", block["text"])
	}
}

func TestServerCallUnknownTool(t *testing.T) {
	responses := serve(t, `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"nope","arguments":{}}}`+"\n")

	result := responses[0]["result"].(map[string]any)
	if result["isError"] != true {
		t.Fatalf("isError not set: %v", result)
	}
	block := result["content"].([]any)[0].(map[string]any)
	if block["text"] != "Error: Unknown tool 'nope'" {
		t.Errorf("text = %v", block["text"])
	}
}

func TestServerMethodNotFound(t *testing.T) {
	responses := serve(t, `{"jsonrpc":"2.0","id":6,"method":"resources/list"}`+"\n")

	errObj, ok := responses[0]["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error in %v", responses[0])
	}
	if errObj["code"] != float64(CodeMethodNotFound) {
		t.Errorf("code = %v, want %d", errObj["code"], CodeMethodNotFound)
	}
}

func TestServerInvalidParams(t *testing.T) {
	responses := serve(t, `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"arguments":{}}}`+"\n")

	errObj, ok := responses[0]["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error in %v", responses[0])
	}
	if errObj["code"] != float64(CodeInvalidParams) {
		t.Errorf("code = %v, want %d", errObj["code"], CodeInvalidParams)
	}
}

func TestServerEchoesStringID(t *testing.T) {
	responses := serve(t, `{"jsonrpc":"2.0","id":"req-abc","method":"ping"}`+"\n")

	if responses[0]["id"] != "req-abc" {
		t.Errorf("id = %v, want %q echoed verbatim", responses[0]["id"], "req-abc")
	}
}

func TestServerSkipsNotifications(t *testing.T) {
	input := `{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n" +
		`{"jsonrpc":"2.0","id":8,"method":"ping"}` + "\n"
	responses := serve(t, input)

	if len(responses) != 1 {
		t.Fatalf("responses = %d, want 1 (notification must not be answered)", len(responses))
	}
	if responses[0]["id"] != float64(8) {
		t.Errorf("id = %v, want 8", responses[0]["id"])
	}
}

func TestServerContinuesAfterFailure(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":9,"method":"no/such/method"}` + "\n" +
		`not even json` + "\n" +
		`{"jsonrpc":"2.0","id":10,"method":"tools/call","params":{"name":"echo","arguments":{"text":"still here"}}}` + "\n"
	responses := serve(t, input)

	if len(responses) != 2 {
		t.Fatalf("responses = %d, want 2", len(responses))
	}
	result := responses[1]["result"].(map[string]any)
	block := result["content"].([]any)[0].(map[string]any)
	if block["text"] != "still here" {
		t.Errorf("second call text = %v", block["text"])
	}
}
