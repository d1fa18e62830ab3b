package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var testPNG = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, []byte("img")...)

func TestSendPhoto(t *testing.T) {
	var gotPath string
	var gotChatID, gotCaption string
	var gotPhoto []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("failed to parse multipart form: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		gotChatID = r.FormValue("chat_id")
		gotCaption = r.FormValue("caption")
		file, _, err := r.FormFile("photo")
		if err != nil {
			t.Errorf("missing photo part: %v", err)
			http.Error(w, "missing photo", http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotPhoto, _ = io.ReadAll(file)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := NewTelegramNotifier("test-token")
	n.APIBase = server.URL

	err := n.SendPhoto(context.Background(), "12345", testPNG, "BTCUSD 4h")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/bottest-token/sendPhoto" {
		t.Errorf("unexpected request path %q", gotPath)
	}
	if gotChatID != "12345" {
		t.Errorf("chat_id = %q, expected 12345", gotChatID)
	}
	if gotCaption != "BTCUSD 4h" {
		t.Errorf("caption = %q, expected BTCUSD 4h", gotCaption)
	}
	if !bytes.Equal(gotPhoto, testPNG) {
		t.Error("uploaded photo does not match the payload")
	}
}

func TestSendMessage(t *testing.T) {
	var gotPayload map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Errorf("unexpected request path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := NewTelegramNotifier("test-token")
	n.APIBase = server.URL

	if err := n.SendMessage(context.Background(), "12345", "chart unavailable"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPayload["chat_id"] != "12345" || gotPayload["text"] != "chart unavailable" {
		t.Errorf("unexpected payload %v", gotPayload)
	}
}

func TestSendPhoto_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false,"description":"chat not found"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	n := NewTelegramNotifier("test-token")
	n.APIBase = server.URL

	err := n.SendPhoto(context.Background(), "0", testPNG, "")
	if err == nil {
		t.Fatal("expected error for non-200 response, got nil")
	}
	if !strings.Contains(err.Error(), "status 400") {
		t.Errorf("expected status 400 in error, got %q", err.Error())
	}
}
