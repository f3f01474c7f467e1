package classifier

import (
	"strings"
	"testing"
)

func TestParseAndValidateResult(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		content   string
		wantLabel string
		wantErr   bool
		wantSoft  bool
	}{
		{
			name:      "clean JSON",
			content:   `{"primaryLabel":"Finance","reasoning":"it is an invoice"}`,
			wantLabel: "Finance",
		},
		{
			name:      "JSON wrapped in code fence",
			content:   "```json\n{\"primaryLabel\":\"Promotions\",\"reasoning\":\"marketing blast\"}\n```",
			wantLabel: "Promotions",
		},
		{
			name:      "JSON with surrounding prose",
			content:   `Here is my analysis: {"primaryLabel":"Social","reasoning":"a friend wrote"} Hope that helps!`,
			wantLabel: "Social",
		},
		{
			name:      "whitespace trimmed from labels",
			content:   `{"primaryLabel":" Finance ","reasoning":"ok"}`,
			wantLabel: "Finance",
		},
		{
			name:     "not JSON at all",
			content:  "I cannot classify this email.",
			wantErr:  true,
			wantSoft: true,
		},
		{
			name:     "missing primaryLabel",
			content:  `{"reasoning":"no label though"}`,
			wantErr:  true,
			wantSoft: true,
		},
		{
			name:     "missing reasoning",
			content:  `{"primaryLabel":"Finance"}`,
			wantErr:  true,
			wantSoft: true,
		},
		{
			name:     "empty content",
			content:  "",
			wantErr:  true,
			wantSoft: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := parseAndValidateResult(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				if tt.wantSoft && !IsSoftFailure(err) {
					t.Errorf("error %v is not a soft failure", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseAndValidateResult: %v", err)
			}
			if result.PrimaryLabel != tt.wantLabel {
				t.Errorf("PrimaryLabel = %q, want %q", result.PrimaryLabel, tt.wantLabel)
			}
		})
	}
}

func TestParseAndValidateResultOptionalFields(t *testing.T) {
	t.Parallel()

	content := `{
		"primaryLabel": "Subscriptions",
		"suggestedLabel": "Newsletters",
		"reasoning": "weekly digest",
		"hasImportantAttachment": true,
		"canUnsubscribe": true
	}`
	result, err := parseAndValidateResult(content)
	if err != nil {
		t.Fatalf("parseAndValidateResult: %v", err)
	}
	if result.SuggestedLabel != "Newsletters" {
		t.Errorf("SuggestedLabel = %q", result.SuggestedLabel)
	}
	if !result.HasImportantAttachment || !result.CanUnsubscribe {
		t.Error("boolean fields not carried through")
	}
}

func TestBuildClassificationPrompt(t *testing.T) {
	t.Parallel()

	prompt := buildClassificationPrompt(Request{
		AllowedLabels: []string{"Finance", "Promotions", "Needs Review"},
		Sender:        "billing@acme.com",
		Subject:       "Your invoice",
		BodyPreview:   "Amount due: $42",
	})

	for _, want := range []string{
		"[Finance, Promotions, Needs Review]",
		`"billing@acme.com"`,
		`"Your invoice"`,
		`"Amount due: $42"`,
		"primaryLabel",
		"suggestedLabel",
		"reasoning",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
