package hydrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type profile struct {
	Name  name     `json:"name"`
	Age   int      `json:"age"`
	Tags  []string `json:"tags"`
	Score any      `json:"score,omitempty"`
}

type name struct {
	First string `json:"first"`
	Last  string `json:"last"`
}

var source = Source{SnapshotID: "snap", Revision: 3, Path: "users.alice"}

func TestDecoderCases(t *testing.T) {
	cases := []struct {
		name      string
		input     any
		options   []DecoderOption[profile]
		expect    profile
		expectErr string
	}{
		{
			name: "plain decode",
			input: map[string]any{
				"name": map[string]any{"first": "john", "last": "doe"},
				"age":  42,
			},
			expect: profile{Name: name{First: "john", Last: "doe"}, Age: 42},
		},
		{
			name:    "pre hook splits full name",
			input:   map[string]any{"name": "jane roe"},
			options: []DecoderOption[profile]{WithPreHook[profile](splitNamePreHook)},
			expect:  profile{Name: name{First: "jane", Last: "roe"}},
		},
		{
			name:    "post hook tags source",
			input:   map[string]any{"age": 7},
			options: []DecoderOption[profile]{WithPostHook[profile](tagSourcePostHook)},
			expect:  profile{Age: 7, Tags: []string{"users.alice@3"}},
		},
		{
			name:      "strict rejects unknown fields",
			input:     map[string]any{"nickname": "jj"},
			options:   []DecoderOption[profile]{WithStrict[profile]()},
			expectErr: "unknown field",
		},
		{
			name:      "pre hook failure",
			input:     map[string]any{"name": "single"},
			options:   []DecoderOption[profile]{WithPreHook[profile](splitNamePreHook)},
			expectErr: "pre-hook at users.alice@3 failed",
		},
		{
			name:    "use number",
			input:   map[string]any{"score": 1.5},
			options: []DecoderOption[profile]{WithUseNumber[profile]()},
			expect:  profile{Score: json.Number("1.5")},
		},
		{
			name:  "custom decoder",
			input: map[string]any{"anything": true},
			options: []DecoderOption[profile]{WithCustomDecoder[profile](func(Source, any) (profile, error) {
				return profile{Age: 99}, nil
			})},
			expect: profile{Age: 99},
		},
		{
			name:      "scalar into struct",
			input:     "not an object",
			expectErr: "hydrate: decode users.alice@3",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := NewDecoder(tc.options...).Decode(source, tc.input)
			if tc.expectErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.expectErr) {
					t.Fatalf("expected error containing %q, got %v", tc.expectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			if diff := cmp.Diff(tc.expect, result); diff != "" {
				t.Fatalf("decoded value mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecoderLeafValues(t *testing.T) {
	tags, err := NewDecoder[[]string]().Decode(source, []any{"a", "b"})
	if err != nil {
		t.Fatalf("decode slice: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, tags); diff != "" {
		t.Fatalf("unexpected tags (-want +got):\n%s", diff)
	}

	theme, err := NewDecoder[string]().Decode(source, "dark")
	if err != nil || theme != "dark" {
		t.Fatalf("expected dark, got %q err=%v", theme, err)
	}
}

func TestDecoderDirectValueIsCopied(t *testing.T) {
	input := map[string]any{"nested": map[string]any{"on": true}}
	out, err := NewDecoder[map[string]any]().Decode(source, input)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	out["nested"].(map[string]any)["on"] = false
	if input["nested"].(map[string]any)["on"] != true {
		t.Fatalf("expected decoded map to be detached from the payload")
	}
}

func TestDecoderDoesNotMutatePayload(t *testing.T) {
	input := map[string]any{"name": "jane roe"}
	decoder := NewDecoder(WithPreHook[profile](splitNamePreHook))
	if _, err := decoder.Decode(Source{}, input); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if input["name"] != "jane roe" {
		t.Fatalf("expected payload untouched, got %#v", input)
	}
}

func TestDecoderNilPayload(t *testing.T) {
	_, err := NewDecoder[profile]().Decode(Source{Revision: 1}, nil)
	if !errors.Is(err, ErrNilPayload) || !strings.Contains(err.Error(), "<root>@1") {
		t.Fatalf("expected nil payload error at <root>@1, got %v", err)
	}
}

func splitNamePreHook(_ Source, payload any) (any, error) {
	tree, ok := payload.(map[string]any)
	if !ok {
		return nil, nil
	}
	value, ok := tree["name"].(string)
	if !ok || value == "" {
		return tree, nil
	}
	parts := strings.Fields(value)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid name %q", value)
	}
	tree["name"] = map[string]any{"first": parts[0], "last": parts[1]}
	return tree, nil
}

func tagSourcePostHook(src Source, value *profile) error {
	if value == nil {
		return errors.New("value is nil")
	}
	value.Tags = append(value.Tags, src.String())
	return nil
}
