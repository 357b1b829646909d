package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"session-scribe-go/internal/logger"
	"session-scribe-go/internal/types"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{"Here you go:\n```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{`no json here`, "", false},
		{`}{`, "", false},
	}
	for _, tt := range tests {
		got, ok := extractJSON([]byte(tt.in))
		if ok != tt.ok {
			t.Errorf("extractJSON(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && string(got) != tt.want {
			t.Errorf("extractJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateUtterances(t *testing.T) {
	if err := validateUtterances(nil); !errors.Is(err, ErrOutputInvalid) {
		t.Errorf("empty transcript: err = %v, want ErrOutputInvalid", err)
	}
	bad := []types.Utterance{{Speaker: "SPEAKER_1", Start: 10, End: 5, Text: "hi"}}
	if err := validateUtterances(bad); !errors.Is(err, ErrOutputInvalid) {
		t.Errorf("inverted timestamps: err = %v, want ErrOutputInvalid", err)
	}
	good := []types.Utterance{{Speaker: "SPEAKER_1", Start: 0, End: 2, Text: "hi"}}
	if err := validateUtterances(good); err != nil {
		t.Errorf("valid utterances: err = %v", err)
	}
}

type narrative struct {
	Overview string `json:"overview"`
}

func (n *narrative) Validate() error {
	if n.Overview == "" {
		return fmt.Errorf("overview is required")
	}
	return nil
}

func TestCloudCompleter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token")
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"Sure! {\"overview\":\"the party met the mayor\"}"}}]}`)
	}))
	defer srv.Close()

	c := newCloudCompleter(srv.URL, "test-key", "test-model", logger.New())
	var out narrative
	if err := c.Complete(context.Background(), "summarize", &out); err != nil {
		t.Fatal(err)
	}
	if out.Overview != "the party met the mayor" {
		t.Errorf("Overview = %q", out.Overview)
	}
}

func TestCloudCompleterRejectsNonJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"I cannot help with that."}}]}`)
	}))
	defer srv.Close()

	c := newCloudCompleter(srv.URL, "k", "m", logger.New())
	var out narrative
	if err := c.Complete(context.Background(), "summarize", &out); !errors.Is(err, ErrOutputInvalid) {
		t.Errorf("err = %v, want ErrOutputInvalid", err)
	}
}

func TestCloudCompleterRejectsFailedValidation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"{\"overview\":\"\"}"}}]}`)
	}))
	defer srv.Close()

	c := newCloudCompleter(srv.URL, "k", "m", logger.New())
	var out narrative
	if err := c.Complete(context.Background(), "summarize", &out); !errors.Is(err, ErrOutputInvalid) {
		t.Errorf("err = %v, want ErrOutputInvalid", err)
	}
}

func TestCloudCompleterSurfacesRejectedRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newCloudCompleter(srv.URL, "k", "m", logger.New())
	var out narrative
	if err := c.Complete(context.Background(), "summarize", &out); !errors.Is(err, ErrCompletionFailed) {
		t.Errorf("err = %v, want ErrCompletionFailed", err)
	}
}

func TestLocalCompleter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"response":"{\"overview\":\"a quiet session\"}","done":true}`)
	}))
	defer srv.Close()

	c := newLocalCompleter(srv.URL, "llama3.1", logger.New())
	var out narrative
	if err := c.Complete(context.Background(), "summarize", &out); err != nil {
		t.Fatal(err)
	}
	if out.Overview != "a quiet session" {
		t.Errorf("Overview = %q", out.Overview)
	}
}

func TestLocalTranscriber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatal(err)
		}
		if lang := r.FormValue("language"); lang != "en" {
			t.Errorf("language = %q", lang)
		}
		fmt.Fprint(w, `{"utterances":[{"speaker":"SPEAKER_1","start":0,"end":2.5,"text":"roll for initiative"}]}`)
	}))
	defer srv.Close()

	tr := newLocalTranscriber(srv.URL, logger.New())
	got, err := tr.Transcribe(context.Background(), []byte("ogg-bytes"), "en")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Text != "roll for initiative" {
		t.Errorf("utterances = %+v", got)
	}
}

func TestLocalTranscriberRejectsEmptyTranscript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"utterances":[]}`)
	}))
	defer srv.Close()

	tr := newLocalTranscriber(srv.URL, logger.New())
	if _, err := tr.Transcribe(context.Background(), []byte("ogg"), "en"); !errors.Is(err, ErrOutputInvalid) {
		t.Errorf("err = %v, want ErrOutputInvalid", err)
	}
}

func TestCloudTranscriberRejectsMissingMediaID(t *testing.T) {
	var statusCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/transcribe", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":200,"data":{"status":"Queued"}}`)
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		statusCalls++
		fmt.Fprint(w, `{"code":200,"data":{"status":"Queued"}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tr := newCloudTranscriber(srv.URL, logger.New())
	if _, err := tr.Transcribe(context.Background(), []byte("ogg"), "en"); !errors.Is(err, ErrTranscriptionFailed) {
		t.Fatalf("err = %v, want ErrTranscriptionFailed", err)
	}
	if statusCalls != 0 {
		t.Errorf("polled %d times despite having no job id", statusCalls)
	}
}

func TestCloudTranscriberShortCircuit(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/transcribe", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"code":200,"data":{"status":"Success","transcript_url":"%s/download"}}`, srv.URL)
	})
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"speaker":"SPEAKER_2","start":1,"end":4,"text":"the gate creaks open"}]`)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	tr := newCloudTranscriber(srv.URL, logger.New())
	got, err := tr.Transcribe(context.Background(), []byte("ogg"), "en")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Speaker != "SPEAKER_2" {
		t.Errorf("utterances = %+v", got)
	}
}
