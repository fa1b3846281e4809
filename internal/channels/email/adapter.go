// Package email bridges an IMAP mailbox and SMTP relay to the normalized
// envelope contract the agent turn engine consumes. Unlike the other
// channel adapters this one is poll-driven rather than push-driven: no
// vendored library in the retrieval pack offers an IMAP client, so the
// mailbox is read with the standard library's net/textproto IMAP
// primitives directly (see DESIGN.md).
package email

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/atlasforge/agentmesh/internal/apperror"
	"github.com/atlasforge/agentmesh/internal/channels"
	"github.com/atlasforge/agentmesh/pkg/models"
)

// Config holds the IMAP/SMTP adapter's tunables.
type Config struct {
	IMAPHost     string
	IMAPPort     int
	SMTPHost     string
	SMTPPort     int
	Email        string
	Password     string
	DisplayName  string
	Mailbox      string
	PollInterval time.Duration
	Logger       *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.IMAPPort == 0 {
		c.IMAPPort = 993
	}
	if c.SMTPPort == 0 {
		c.SMTPPort = 587
	}
	if c.Mailbox == "" {
		c.Mailbox = "INBOX"
	}
	if c.PollInterval == 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.DisplayName == "" {
		c.DisplayName = "AgentMesh"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// parsedEmail is one unread message fetched from the mailbox.
type parsedEmail struct {
	uid       uint32
	from      string
	fromName  string
	subject   string
	body      string
	messageID string
}

// Adapter implements channels.Adapter for email, polling IMAP for new mail
// and sending replies over SMTP.
type Adapter struct {
	cfg      Config
	messages chan *models.IncomingEnvelope
	logger   *slog.Logger
	health   *channels.BaseHealthAdapter

	lastUIDMu sync.Mutex
	lastUID   uint32

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAdapter validates cfg and returns an unstarted email adapter.
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.IMAPHost == "" || cfg.SMTPHost == "" || cfg.Email == "" {
		return nil, apperror.New(apperror.Config, "email: imap host, smtp host and email are required", nil)
	}
	cfg.applyDefaults()
	return &Adapter{
		cfg:      cfg,
		messages: make(chan *models.IncomingEnvelope, 50),
		logger:   cfg.Logger.With("adapter", "email"),
		health:   channels.NewBaseHealthAdapter(),
	}, nil
}

func (a *Adapter) Type() models.ChannelType { return models.ChannelEmail }

// Start begins the IMAP poll loop in a background goroutine.
func (a *Adapter) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer close(a.messages)
		ticker := time.NewTicker(a.cfg.PollInterval)
		defer ticker.Stop()
		a.poll(runCtx)
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				a.poll(runCtx)
			}
		}
	}()
	a.health.SetStatus(true, "")
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	done := make(chan struct{})
	go func() { a.wg.Wait(); close(done) }()
	select {
	case <-done:
		a.health.SetStatus(false, "")
		return nil
	case <-ctx.Done():
		return apperror.New(apperror.Timeout, "email: stop timed out", ctx.Err())
	}
}

func (a *Adapter) poll(ctx context.Context) {
	emails, err := a.fetchUnread(ctx)
	if err != nil {
		a.health.SetStatus(false, err.Error())
		a.logger.Error("imap poll failed", "error", err)
		return
	}
	a.health.SetStatus(true, "")
	a.health.UpdateLastPing()
	for _, em := range emails {
		env := &models.IncomingEnvelope{
			Channel:    models.ChannelEmail,
			ThreadID:   em.from,
			SenderID:   em.from,
			SenderName: em.fromName,
			Content:    fmt.Sprintf("Subject: %s\n\n%s", em.subject, em.body),
			ThreadType: models.ThreadDirect,
			Timestamp:  time.Now().UTC(),
			ReplyTo:    em.messageID,
		}
		select {
		case a.messages <- env:
		case <-ctx.Done():
			return
		default:
			a.logger.Warn("messages channel full, dropping email", "from", em.from)
		}
	}
}

// fetchUnread connects to the mailbox over IMAP4rev1 via TLS, selects the
// configured mailbox, searches for unseen messages newer than the last
// seen UID, and fetches their envelope and body text.
func (a *Adapter) fetchUnread(ctx context.Context) ([]parsedEmail, error) {
	addr := fmt.Sprintf("%s:%d", a.cfg.IMAPHost, a.cfg.IMAPPort)
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: a.cfg.IMAPHost})
	if err != nil {
		return nil, apperror.New(apperror.ChannelError, "email: imap dial failed", err)
	}
	defer conn.Close()

	c := textproto.NewConn(conn)
	defer c.Close()

	if _, _, err := c.ReadResponse(0); err != nil {
		return nil, apperror.New(apperror.ChannelError, "email: imap greeting failed", err)
	}

	if err := a.imapCommand(c, fmt.Sprintf(`LOGIN %s %s`, quoteIMAP(a.cfg.Email), quoteIMAP(a.cfg.Password))); err != nil {
		return nil, apperror.New(apperror.ChannelError, "email: imap login failed", err)
	}
	if err := a.imapCommand(c, fmt.Sprintf("SELECT %s", quoteIMAP(a.cfg.Mailbox))); err != nil {
		return nil, apperror.New(apperror.ChannelError, "email: imap select failed", err)
	}

	a.lastUIDMu.Lock()
	since := a.lastUID
	a.lastUIDMu.Unlock()

	searchCmd := "UID SEARCH UNSEEN"
	if since > 0 {
		searchCmd = fmt.Sprintf("UID SEARCH UNSEEN UID %d:*", since+1)
	}
	tag, err := c.Cmd(searchCmd)
	if err != nil {
		return nil, apperror.New(apperror.ChannelError, "email: imap search failed", err)
	}
	c.StartResponse(tag)
	line, err := c.ReadLine()
	c.EndResponse(tag)
	if err != nil {
		return nil, apperror.New(apperror.ChannelError, "email: imap search response failed", err)
	}
	uids := parseSearchUIDs(line)
	if len(uids) == 0 {
		a.imapLogout(c)
		return nil, nil
	}

	var result []parsedEmail
	maxUID := since
	for _, uid := range uids {
		em, err := a.fetchMessage(c, uid)
		if err != nil {
			a.logger.Warn("fetch message failed", "uid", uid, "error", err)
			continue
		}
		result = append(result, em)
		if uid > maxUID {
			maxUID = uid
		}
	}
	a.lastUIDMu.Lock()
	a.lastUID = maxUID
	a.lastUIDMu.Unlock()

	a.imapLogout(c)
	return result, nil
}

func (a *Adapter) imapCommand(c *textproto.Conn, cmd string) error {
	tag, err := c.Cmd(cmd)
	if err != nil {
		return err
	}
	c.StartResponse(tag)
	defer c.EndResponse(tag)
	_, _, err = c.ReadResponse(tag)
	return err
}

func (a *Adapter) imapLogout(c *textproto.Conn) {
	tag, err := c.Cmd("LOGOUT")
	if err != nil {
		return
	}
	c.StartResponse(tag)
	c.ReadResponse(tag)
	c.EndResponse(tag)
}

func (a *Adapter) fetchMessage(c *textproto.Conn, uid uint32) (parsedEmail, error) {
	tag, err := c.Cmd(fmt.Sprintf("UID FETCH %d (BODY[])", uid))
	if err != nil {
		return parsedEmail{}, err
	}
	c.StartResponse(tag)
	defer c.EndResponse(tag)

	raw := &strings.Builder{}
	r := bufio.NewReader(c.R)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			break
		}
		if strings.HasPrefix(strings.TrimSpace(line), "tag OK") {
			break
		}
		raw.WriteString(line)
	}
	return parseRawMessage(uid, raw.String()), nil
}

func parseSearchUIDs(line string) []uint32 {
	fields := strings.Fields(line)
	var uids []uint32
	for _, f := range fields {
		if n, err := strconv.ParseUint(f, 10, 32); err == nil {
			uids = append(uids, uint32(n))
		}
	}
	return uids
}

// parseRawMessage extracts Subject/From/Message-Id headers and the body
// text from a raw RFC 5322 message fetched over IMAP.
func parseRawMessage(uid uint32, raw string) parsedEmail {
	em := parsedEmail{uid: uid}
	headerEnd := strings.Index(raw, "\r\n\r\n")
	if headerEnd == -1 {
		headerEnd = strings.Index(raw, "\n\n")
	}
	header := raw
	body := ""
	if headerEnd != -1 {
		header = raw[:headerEnd]
		body = strings.TrimSpace(raw[headerEnd:])
	}
	for _, line := range strings.Split(header, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(strings.ToLower(line), "subject:"):
			em.subject = strings.TrimSpace(line[len("subject:"):])
		case strings.HasPrefix(strings.ToLower(line), "from:"):
			em.from, em.fromName = parseFromHeader(strings.TrimSpace(line[len("from:"):]))
		case strings.HasPrefix(strings.ToLower(line), "message-id:"):
			em.messageID = strings.TrimSpace(line[len("message-id:"):])
		}
	}
	em.body = body
	return em
}

func parseFromHeader(v string) (addr, name string) {
	if i := strings.Index(v, "<"); i != -1 {
		name = strings.Trim(strings.TrimSpace(v[:i]), `"`)
		addr = strings.TrimSuffix(v[i+1:], ">")
		return addr, name
	}
	return v, ""
}

func quoteIMAP(s string) string {
	return `"` + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`) + `"`
}

// Send delivers a reply over SMTP to the address in msg.ThreadID.
func (a *Adapter) Send(ctx context.Context, msg *models.OutgoingEnvelope) error {
	auth := smtp.PlainAuth("", a.cfg.Email, a.cfg.Password, a.cfg.SMTPHost)
	from := fmt.Sprintf("%s <%s>", a.cfg.DisplayName, a.cfg.Email)

	var headers strings.Builder
	fmt.Fprintf(&headers, "From: %s\r\n", from)
	fmt.Fprintf(&headers, "To: %s\r\n", msg.ThreadID)
	fmt.Fprintf(&headers, "Subject: %s\r\n", replySubject(msg.ReplyTo))
	if msg.ReplyTo != "" {
		fmt.Fprintf(&headers, "In-Reply-To: %s\r\n", msg.ReplyTo)
	}
	headers.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	body := headers.String() + msg.Content

	addr := fmt.Sprintf("%s:%d", a.cfg.SMTPHost, a.cfg.SMTPPort)
	if err := smtp.SendMail(addr, auth, a.cfg.Email, []string{msg.ThreadID}, []byte(body)); err != nil {
		return apperror.New(apperror.ChannelError, "email: smtp send failed", err)
	}
	return nil
}

func replySubject(replyTo string) string {
	if replyTo == "" {
		return "Message from AgentMesh"
	}
	return "Re: your message"
}

func (a *Adapter) Messages() <-chan *models.IncomingEnvelope { return a.messages }

func (a *Adapter) Status() channels.Status { return a.health.Status() }

func (a *Adapter) HealthCheck(ctx context.Context) channels.HealthStatus {
	start := time.Now()
	addr := fmt.Sprintf("%s:%d", a.cfg.IMAPHost, a.cfg.IMAPPort)
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: a.cfg.IMAPHost})
	if err != nil {
		return channels.HealthStatus{LastCheck: start, Latency: time.Since(start), Message: err.Error()}
	}
	conn.Close()
	return channels.HealthStatus{Healthy: true, LastCheck: start, Latency: time.Since(start), Message: "healthy"}
}
