package policy

import (
	"strings"
	"testing"
)

func TestRedactPII(t *testing.T) {
	input := "Email me at sam@example.com or +1 (555) 123-9876 and use 4242 4242 4242 4242."
	out, changed := RedactPII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_CARD]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
}

func TestRedactPIIThaiIDAndSecrets(t *testing.T) {
	input := "เลขบัตร 1-2345-67890-12-3 key AIzaSyA1234567890abcdefghijkl"
	out, changed := RedactPII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	if !strings.Contains(out, "[REDACTED_ID]") || !strings.Contains(out, "[REDACTED_SECRET]") {
		t.Fatalf("RedactPII() = %q, want ID and secret markers", out)
	}
	if strings.Contains(out, "AIza") {
		t.Fatalf("secret leaked: %q", out)
	}
}

func TestRedactPIILeavesSymptomsAlone(t *testing.T) {
	input := "ปวดหัวมา 2 วัน มีไข้ 38.5 องศา"
	out, changed := RedactPII(input)
	if changed || out != input {
		t.Fatalf("RedactPII() = %q, %v, want unchanged", out, changed)
	}
}

func TestExcerpt(t *testing.T) {
	if got := Excerpt("  ปวดหัวมาก  ", 3); got != "ปวด…" {
		t.Fatalf("Excerpt() = %q, want %q", got, "ปวด…")
	}
	if got := Excerpt("ไอ", 10); got != "ไอ" {
		t.Fatalf("Excerpt() = %q, want %q", got, "ไอ")
	}
}

func TestMaskSecret(t *testing.T) {
	cases := map[string]string{
		"":                 "",
		"short":            "****",
		"AIzaSyA123456789": "****6789",
	}
	for in, want := range cases {
		if got := MaskSecret(in); got != want {
			t.Fatalf("MaskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}
