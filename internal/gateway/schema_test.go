package gateway

import "testing"

func TestDecodeParsedResumeNullsBecomeEmpty(t *testing.T) {
	parsed, err := DecodeParsedResume([]byte(`{"summary":null,"workExperience":null,"education":[],"skills":["go"],"projects":[{"name":"x","year":null,"description":"d","technologies":null}]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if parsed.Summary != "" || parsed.WorkExperience == nil {
		t.Fatalf("expected normalized empty values, got %+v", parsed)
	}
	if parsed.Projects[0].Technologies == nil {
		t.Fatalf("expected technologies normalized")
	}
}

func TestDecodeParsedResumeRejects(t *testing.T) {
	for _, raw := range []string{
		"",
		"[]",
		`{"summary":"x","workExperience":[],"education":[],"skills":[1],"projects":[]}`,
		`{"summary":"x","workExperience":[{"position":5}],"education":[],"skills":[],"projects":[]}`,
	} {
		if _, err := DecodeParsedResume([]byte(raw)); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}
