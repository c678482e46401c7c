package agent

import "testing"

func TestVersionTag(t *testing.T) {
	tag := versionTag()
	if tag == "dev" {
		t.Skip("running binary not readable")
	}

	if len(tag) != 16 {
		t.Fatalf("len(tag) = %d, want 16", len(tag))
	}
	for _, r := range tag {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			t.Fatalf("tag %q contains non-hex character %q", tag, r)
		}
	}

	if again := versionTag(); again != tag {
		t.Errorf("versionTag() not stable: %q then %q", tag, again)
	}
}
