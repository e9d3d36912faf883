package uploader

import "testing"

func TestObjectKey(t *testing.T) {
	key, err := objectKey("twitch_20251230_1030.jsonl")
	if err != nil {
		t.Fatalf("objectKey: %v", err)
	}
	if key != "2025/12/30/twitch/twitch_20251230_1030.jsonl" {
		t.Errorf("unexpected key: %q", key)
	}
}

func TestObjectKey_RejectsMalformedNames(t *testing.T) {
	for _, name := range []string{"notafile.jsonl", "twitch_badtime_oops.jsonl"} {
		if _, err := objectKey(name); err == nil {
			t.Errorf("expected error for %q", name)
		}
	}
}
