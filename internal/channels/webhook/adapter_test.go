package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atlasforge/agentmesh/pkg/models"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestNewAdapterRequiresSecret(t *testing.T) {
	if _, err := NewAdapter(Config{}); err == nil {
		t.Fatal("expected error for missing secret")
	}
}

func TestServeHTTPRejectsInvalidSignature(t *testing.T) {
	a, err := NewAdapter(Config{Secret: "s3cret"})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	body := []byte(`{"thread_id":"t1","content":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set(signatureHeader, "wrong")
	rec := httptest.NewRecorder()

	a.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestServeHTTPAcceptsValidSignature(t *testing.T) {
	a, err := NewAdapter(Config{Secret: "s3cret"})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	body := []byte(`{"thread_id":"t1","sender_id":"u1","content":"hello"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set(signatureHeader, sign("s3cret", body))
	rec := httptest.NewRecorder()

	a.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	select {
	case env := <-a.messages:
		if env.ThreadID != "t1" || env.Content != "hello" {
			t.Fatalf("unexpected envelope: %+v", env)
		}
		if env.ThreadType != models.ThreadDirect {
			t.Fatalf("ThreadType = %v, want default direct", env.ThreadType)
		}
	default:
		t.Fatal("expected envelope to be enqueued")
	}
}

func TestServeHTTPRejectsMissingFields(t *testing.T) {
	a, err := NewAdapter(Config{Secret: "s3cret"})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	body := []byte(`{"thread_id":"","content":""}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set(signatureHeader, sign("s3cret", body))
	rec := httptest.NewRecorder()

	a.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSendPostsSignedPayload(t *testing.T) {
	var gotBody []byte
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = readAll(r)
		gotSig = r.Header.Get(signatureHeader)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a, err := NewAdapter(Config{Secret: "s3cret", OutboundURL: srv.URL})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	if err := a.Send(context.Background(), &models.OutgoingEnvelope{ThreadID: "t1", Content: "reply"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	want := sign("s3cret", gotBody)
	if gotSig != want {
		t.Fatalf("signature mismatch: got %q want %q", gotSig, want)
	}
	var decoded models.OutgoingEnvelope
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if decoded.Content != "reply" {
		t.Fatalf("decoded content = %q", decoded.Content)
	}
}

func readAll(r *http.Request) ([]byte, error) {
	buf := &bytes.Buffer{}
	_, err := buf.ReadFrom(r.Body)
	return buf.Bytes(), err
}
