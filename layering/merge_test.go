package layering

import (
	"reflect"
	"testing"
)

func TestMergeLayersTrees(t *testing.T) {
	cases := []struct {
		name   string
		layers []map[string]any
		expect map[string]any
	}{
		{
			name: "stronger scalar wins",
			layers: []map[string]any{
				{"theme": "dark"},
				{"theme": "light", "lang": "en"},
			},
			expect: map[string]any{"theme": "dark", "lang": "en"},
		},
		{
			name: "nested objects merge key by key",
			layers: []map[string]any{
				{"name": map[string]any{"first": "jane"}},
				{"name": map[string]any{"first": "john", "last": "doe"}},
			},
			expect: map[string]any{"name": map[string]any{"first": "jane", "last": "doe"}},
		},
		{
			name: "object replaces scalar",
			layers: []map[string]any{
				{"limits": map[string]any{"daily": 10}},
				{"limits": "none"},
			},
			expect: map[string]any{"limits": map[string]any{"daily": 10}},
		},
		{
			name: "weak only",
			layers: []map[string]any{
				nil,
				{"a": []any{"x", "y"}},
			},
			expect: map[string]any{"a": []any{"x", "y"}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MergeLayers(tc.layers...)
			if !reflect.DeepEqual(tc.expect, got) {
				t.Fatalf("merged tree mismatch:\nwant: %#v\n got: %#v", tc.expect, got)
			}
		})
	}
}

func TestMergeLayersDoesNotAliasInputs(t *testing.T) {
	weak := map[string]any{"name": map[string]any{"first": "john"}}
	strong := map[string]any{"a": "hello"}

	merged := MergeLayers(strong, weak)
	merged["name"].(map[string]any)["first"] = "changed"

	if weak["name"].(map[string]any)["first"] != "john" {
		t.Fatalf("expected weak layer untouched, got %v", weak)
	}
}

func TestMergeLayersZeroInput(t *testing.T) {
	type sample struct {
		Value int
	}
	var zero sample
	if got := MergeLayers[sample](); got != zero {
		t.Fatalf("expected MergeLayers() to return zero value, got %+v", got)
	}
}

func TestCloneDetachesNestedValues(t *testing.T) {
	src := map[string]any{
		"name": map[string]any{"first": "john"},
		"tags": []any{"a", map[string]any{"k": "v"}},
	}

	out := Clone(src)
	out["name"].(map[string]any)["first"] = "changed"
	out["tags"].([]any)[1].(map[string]any)["k"] = "changed"

	if src["name"].(map[string]any)["first"] != "john" {
		t.Fatalf("expected nested map untouched, got %v", src["name"])
	}
	if src["tags"].([]any)[1].(map[string]any)["k"] != "v" {
		t.Fatalf("expected nested slice element untouched, got %v", src["tags"])
	}
}

func TestCloneTypedValues(t *testing.T) {
	type settings struct {
		Labels map[string]string
		Hosts  []string
	}
	src := settings{Labels: map[string]string{"env": "prod"}, Hosts: []string{"a"}}

	out := Clone(src)
	out.Labels["env"] = "dev"
	out.Hosts[0] = "b"

	if src.Labels["env"] != "prod" || src.Hosts[0] != "a" {
		t.Fatalf("expected source untouched, got %+v", src)
	}

	var nilTree map[string]any
	if got := Clone(nilTree); got != nil {
		t.Fatalf("expected nil clone, got %#v", got)
	}
}
