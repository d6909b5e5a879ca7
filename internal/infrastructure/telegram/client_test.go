package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"velestra/internal/domain"
)

func TestSend(t *testing.T) {
	t.Parallel()

	var gotPath, gotChat, gotText, gotMode string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotChat = r.PostFormValue("chat_id")
		gotText = r.PostFormValue("text")
		gotMode = r.PostFormValue("parse_mode")
		fmt.Fprint(w, `{"ok":true}`)
	}))
	t.Cleanup(server.Close)

	c := NewClient("test-token").WithAPIBase(server.URL)
	if err := c.Send(context.Background(), "@channel", "*hello*"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if gotPath != "/bottest-token/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if gotChat != "@channel" {
		t.Errorf("chat_id = %q", gotChat)
	}
	if gotText != "*hello*" {
		t.Errorf("text = %q", gotText)
	}
	if gotMode != "Markdown" {
		t.Errorf("parse_mode = %q", gotMode)
	}
}

func TestSendAPIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	t.Cleanup(server.Close)

	c := NewClient("test-token").WithAPIBase(server.URL)
	if err := c.Send(context.Background(), "@channel", "hello"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestSendMisconfigured(t *testing.T) {
	t.Parallel()

	c := NewClient("")
	if err := c.Send(context.Background(), "@channel", "hello"); !errors.Is(err, domain.ErrUnconfigured) {
		t.Fatalf("empty token: err = %v, want ErrUnconfigured", err)
	}

	c = NewClient("token")
	if err := c.Send(context.Background(), "", "hello"); !errors.Is(err, domain.ErrUnconfigured) {
		t.Fatalf("empty destination: err = %v, want ErrUnconfigured", err)
	}
}

func TestUpdateSourceFiltersAndAdvances(t *testing.T) {
	t.Parallel()

	var offsets []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offsets = append(offsets, r.URL.Query().Get("offset"))
		if len(offsets) == 1 {
			fmt.Fprint(w, `{"ok":true,"result":[
				{"update_id":100,"message":{"text":"/pending","from":{"id":424242}}},
				{"update_id":101,"message":{"text":"/approve abc","from":{"id":99}}},
				{"update_id":102,"message":{"text":"/stats","from":{"id":424242}}},
				{"update_id":103}
			]}`)
			return
		}
		fmt.Fprint(w, `{"ok":true,"result":[]}`)
	}))
	t.Cleanup(server.Close)

	client := NewClient("test-token").WithAPIBase(server.URL)
	source, err := NewUpdateSource(client, "424242")
	if err != nil {
		t.Fatalf("new update source: %v", err)
	}

	commands, err := source.PollCommands(context.Background())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(commands) != 2 {
		t.Fatalf("got %d commands, want 2 (non-admin and empty updates dropped)", len(commands))
	}
	if commands[0].Text != "/pending" || commands[1].Text != "/stats" {
		t.Errorf("commands = %+v", commands)
	}

	// The second poll must ask past the last seen update.
	if _, err := source.PollCommands(context.Background()); err != nil {
		t.Fatalf("second poll: %v", err)
	}
	if len(offsets) != 2 || offsets[1] != "104" {
		t.Errorf("offsets = %v, want second request at 104", offsets)
	}
}

func TestNewUpdateSourceInvalidAdminID(t *testing.T) {
	t.Parallel()

	if _, err := NewUpdateSource(NewClient("t"), "@not-numeric"); err == nil {
		t.Fatal("expected error for non-numeric admin id")
	}
}
