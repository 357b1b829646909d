package artifact

import (
	"errors"
	"testing"
)

func TestFSStoreRoundTrip(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	key := TranscriptKey(1, 2)
	if s.Exists(key) {
		t.Fatalf("Exists(%s) = true before write", key)
	}
	if _, err := s.Get(key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on missing key: err = %v, want ErrNotFound", err)
	}

	if err := s.Put(key, []byte(`[{"text":"hello"}]`)); err != nil {
		t.Fatal(err)
	}
	if !s.Exists(key) {
		t.Fatalf("Exists(%s) = false after write", key)
	}
	got, err := s.Get(key)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `[{"text":"hello"}]` {
		t.Errorf("Get = %s", got)
	}
}

func TestFSStoreOverwrite(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	key := EpisodeKey(3, 4)
	if err := s.Put(key, []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(key, []byte("second")); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(key)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Errorf("Get after overwrite = %s, want second", got)
	}
}

func TestFSStoreRejectsEscapingKeys(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"../outside.json", "/abs.json", "."} {
		if err := s.Put(key, []byte("x")); err == nil {
			t.Errorf("Put(%q) accepted an escaping key", key)
		}
	}
}

func TestJSONHelpers(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	type doc struct {
		Name string `json:"name"`
	}
	key := ScenesKey(1, 1)
	if err := PutJSON(s, key, doc{Name: "opening"}); err != nil {
		t.Fatal(err)
	}
	var out doc
	if err := GetJSON(s, key, &out); err != nil {
		t.Fatal(err)
	}
	if out.Name != "opening" {
		t.Errorf("round trip = %+v", out)
	}
}
