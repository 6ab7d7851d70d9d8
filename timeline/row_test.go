package timeline

import (
	"encoding/json"
	"testing"

	"github.com/youssefsiam38/taskpg/types"
)

func TestRowKey_String(t *testing.T) {
	tests := []struct {
		key  RowKey
		want string
	}{
		{AssigneeKey("Ann"), "user:Ann"},
		{CategoryKey("Ann", types.CategoryRoutine), "cat:Ann:routine"},
		{TaskKey("42"), "42"},
	}
	for _, tt := range tests {
		if got := tt.key.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestRowKey_NoCollision(t *testing.T) {
	// A task whose id looks like a header id is still a different row.
	task := TaskKey("user:Ann")
	header := AssigneeKey("Ann")

	if task == header {
		t.Fatal("task key equals header key")
	}

	set := NewCollapseSet(header)
	if set.Has(task) {
		t.Error("collapsing the header collapsed the look-alike task")
	}
}

func TestParseRowKey_RoundTrip(t *testing.T) {
	keys := []RowKey{
		AssigneeKey("Ann"),
		AssigneeKey(Unassigned),
		CategoryKey("Ann", types.CategoryStrategic),
		CategoryKey("team:ops", types.CategoryOther),
		TaskKey("5f1c"),
		TaskKey("user:Ann"),
	}
	for _, key := range keys {
		got, err := ParseRowKey(key.Encode())
		if err != nil {
			t.Fatalf("ParseRowKey(%q) error = %v", key.Encode(), err)
		}
		if got != key {
			t.Errorf("ParseRowKey(%q) = %+v, want %+v", key.Encode(), got, key)
		}
	}
}

func TestParseRowKey_Errors(t *testing.T) {
	for _, s := range []string{"", "nocolon", "cat:missing", "task:", "row:1"} {
		if _, err := ParseRowKey(s); err == nil {
			t.Errorf("ParseRowKey(%q) expected error", s)
		}
	}
}

func TestRowKey_JSON(t *testing.T) {
	data, err := json.Marshal(map[string]RowKey{"k": CategoryKey("Ann", types.CategoryProject)})
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	if string(data) != `{"k":"cat:Ann:project"}` {
		t.Errorf("Marshal = %s", data)
	}

	var decoded map[string]RowKey
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if decoded["k"] != CategoryKey("Ann", types.CategoryProject) {
		t.Errorf("Unmarshal = %+v", decoded["k"])
	}
}

func TestCollapseSet(t *testing.T) {
	set := NewCollapseSet()
	key := TaskKey("1")

	if !set.Toggle(key) || !set.Has(key) {
		t.Error("first Toggle should collapse")
	}
	clone := set.Clone()
	if set.Toggle(key) || set.Has(key) {
		t.Error("second Toggle should expand")
	}
	if !clone.Has(key) {
		t.Error("clone should be independent")
	}

	var nilSet CollapseSet
	if nilSet.Has(key) {
		t.Error("nil set should have nothing collapsed")
	}
}
