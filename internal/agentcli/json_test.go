package agentcli

import (
	"encoding/json"
	"testing"
)

func TestExtractJSONCleanOutput(t *testing.T) {
	t.Parallel()

	raw, ok := ExtractJSON(`{"status": "cli_dispatched"}`)
	if !ok {
		t.Fatal("clean JSON rejected")
	}
	var out map[string]string
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out["status"] != "cli_dispatched" {
		t.Fatalf("payload: %#v", out)
	}
}

func TestExtractJSONSkipsBanner(t *testing.T) {
	t.Parallel()

	stdout := `Doctor: config drift detected (run doctor --fix)
Warning: gateway heartbeat stale

{
  "jobs": [{"id": "heartbeat", "schedule": "*/5 * * * *"}]
}`

	raw, ok := ExtractJSON(stdout)
	if !ok {
		t.Fatal("banner-prefixed JSON rejected")
	}
	var out struct {
		Jobs []struct {
			ID string `json:"id"`
		} `json:"jobs"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(out.Jobs) != 1 || out.Jobs[0].ID != "heartbeat" {
		t.Fatalf("payload: %#v", out)
	}
}

func TestExtractJSONArrayPayload(t *testing.T) {
	t.Parallel()

	raw, ok := ExtractJSON("note: listing runs\n[1, 2, 3]")
	if !ok {
		t.Fatal("array payload rejected")
	}
	var out []int
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("payload: %v", out)
	}
}

func TestExtractJSONIndentedOpener(t *testing.T) {
	t.Parallel()

	if _, ok := ExtractJSON("banner\n  {\"a\": 1}"); !ok {
		t.Fatal("indented opener rejected")
	}
}

func TestExtractJSONNoPayload(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "plain text only", "almost { but not json"} {
		if _, ok := ExtractJSON(s); ok {
			t.Fatalf("accepted non-JSON input %q", s)
		}
	}
}
