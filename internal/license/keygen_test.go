package license

import (
	"strings"
	"testing"
)

func TestGenerateKeyDefaultFormat(t *testing.T) {
	t.Parallel()

	key, errGen := GenerateKey(KeyFormat{})
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}

	groups := strings.Split(key, "-")
	if len(groups) != 4 {
		t.Fatalf("expected 4 groups, got %d (%s)", len(groups), key)
	}
	for _, group := range groups {
		if len(group) != 4 {
			t.Fatalf("expected group length 4, got %q in %s", group, key)
		}
		for _, ch := range group {
			if !strings.ContainsRune(keyAlphabet, ch) {
				t.Fatalf("character %q outside alphabet in %s", ch, key)
			}
		}
	}
}

func TestGenerateKeyExcludesAmbiguousCharacters(t *testing.T) {
	t.Parallel()

	for i := 0; i < 200; i++ {
		key, errGen := GenerateKey(DefaultKeyFormat)
		if errGen != nil {
			t.Fatalf("generate: %v", errGen)
		}
		if strings.ContainsAny(key, "IO01") {
			t.Fatalf("key %s contains ambiguous characters", key)
		}
	}
}

func TestGenerateKeyCustomFormat(t *testing.T) {
	t.Parallel()

	key, errGen := GenerateKey(KeyFormat{Groups: 5, GroupLength: 6, Separator: "."})
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}
	groups := strings.Split(key, ".")
	if len(groups) != 5 {
		t.Fatalf("expected 5 groups, got %d (%s)", len(groups), key)
	}
	for _, group := range groups {
		if len(group) != 6 {
			t.Fatalf("expected group length 6, got %q", group)
		}
	}
}

func TestGenerateKeyNoImmediateDuplicates(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		key, errGen := GenerateKey(DefaultKeyFormat)
		if errGen != nil {
			t.Fatalf("generate: %v", errGen)
		}
		if _, dup := seen[key]; dup {
			t.Fatalf("duplicate key generated: %s", key)
		}
		seen[key] = struct{}{}
	}
}
