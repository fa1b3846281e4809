package email

import "testing"

func TestNewAdapterRequiresHostsAndEmail(t *testing.T) {
	if _, err := NewAdapter(Config{}); err == nil {
		t.Fatal("expected error for empty config")
	}
	_, err := NewAdapter(Config{IMAPHost: "imap.example.com", SMTPHost: "smtp.example.com", Email: "bot@example.com"})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
}

func TestParseFromHeaderWithDisplayName(t *testing.T) {
	addr, name := parseFromHeader(`"Jane Doe" <jane@example.com>`)
	if addr != "jane@example.com" {
		t.Errorf("addr = %q, want jane@example.com", addr)
	}
	if name != "Jane Doe" {
		t.Errorf("name = %q, want Jane Doe", name)
	}
}

func TestParseFromHeaderBareAddress(t *testing.T) {
	addr, name := parseFromHeader("jane@example.com")
	if addr != "jane@example.com" {
		t.Errorf("addr = %q", addr)
	}
	if name != "" {
		t.Errorf("name = %q, want empty", name)
	}
}

func TestParseRawMessageExtractsHeadersAndBody(t *testing.T) {
	raw := "Subject: Hello there\r\n" +
		"From: \"Jane Doe\" <jane@example.com>\r\n" +
		"Message-Id: <abc123@example.com>\r\n" +
		"\r\n" +
		"This is the body.\r\n"

	em := parseRawMessage(42, raw)
	if em.uid != 42 {
		t.Errorf("uid = %d, want 42", em.uid)
	}
	if em.subject != "Hello there" {
		t.Errorf("subject = %q", em.subject)
	}
	if em.from != "jane@example.com" || em.fromName != "Jane Doe" {
		t.Errorf("from = %q/%q", em.from, em.fromName)
	}
	if em.messageID != "<abc123@example.com>" {
		t.Errorf("messageID = %q", em.messageID)
	}
	if em.body != "This is the body." {
		t.Errorf("body = %q", em.body)
	}
}

func TestParseSearchUIDs(t *testing.T) {
	uids := parseSearchUIDs("* SEARCH 3 4 7")
	if len(uids) != 3 || uids[0] != 3 || uids[1] != 4 || uids[2] != 7 {
		t.Fatalf("uids = %v", uids)
	}
}

func TestQuoteIMAPEscapesSpecialChars(t *testing.T) {
	got := quoteIMAP(`pass"word\`)
	want := `"pass\"word\\"`
	if got != want {
		t.Fatalf("quoteIMAP = %q, want %q", got, want)
	}
}

func TestReplySubjectWithAndWithoutReplyTo(t *testing.T) {
	if replySubject("") != "Message from AgentMesh" {
		t.Errorf("unexpected subject for empty reply-to")
	}
	if replySubject("<abc@example.com>") != "Re: your message" {
		t.Errorf("unexpected subject for reply")
	}
}
