package automation

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestWrapScriptShape(t *testing.T) {
	script, err := WrapScript("return args.selectors.length;", clickArgs{Selectors: []string{".play"}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(script, "(function(args){") {
		t.Errorf("unexpected prefix: %s", script)
	}
	if !strings.HasSuffix(script, ")") {
		t.Errorf("unexpected suffix: %s", script)
	}
}

// arguments travel JSON-encoded, hostile selector strings stay data
func TestWrapScriptEscapes(t *testing.T) {
	hostile := `a"b\c'); alert(1); //`
	script, err := WrapScript(clickBody, clickArgs{Selectors: []string{hostile}})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(script, hostile) {
		t.Error("raw argument interpolated into script")
	}
	if !strings.Contains(script, `a\"b\\c`) {
		t.Errorf("argument not JSON escaped: %s", script)
	}
}

func TestWrapScriptArgsRoundtrip(t *testing.T) {
	args := toggleArgs{
		Selectors: []string{`button[aria-label="Play"]`, ".player-bar .btn-play"},
		Labels:    []string{"play"},
	}
	body := "return true;"
	script, err := WrapScript(body, args)
	if err != nil {
		t.Fatal(err)
	}
	prefix := "(function(args){" + body + "})("
	if !strings.HasPrefix(script, prefix) || !strings.HasSuffix(script, ")") {
		t.Fatalf("unexpected script shape: %s", script)
	}
	encoded := script[len(prefix) : len(script)-1]
	var decoded toggleArgs
	if err := json.Unmarshal([]byte(encoded), &decoded); err != nil {
		t.Fatalf("embedded arguments are not valid JSON: %v", err)
	}
	if len(decoded.Selectors) != 2 || decoded.Selectors[0] != args.Selectors[0] {
		t.Errorf("selectors lost: %+v", decoded)
	}
	if len(decoded.Labels) != 1 || decoded.Labels[0] != "play" {
		t.Errorf("labels lost: %+v", decoded)
	}
}

func TestWrapScriptRejectsUnmarshalable(t *testing.T) {
	if _, err := WrapScript("return;", func() {}); err == nil {
		t.Error("expected marshal error")
	}
}
