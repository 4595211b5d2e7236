package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/corey/webinar-sync/internal/webex"
)

// Attachment is the full log file sent along with the body.
type Attachment struct {
	Name    string
	Content []byte
}

// Sink delivers a finished report.
type Sink interface {
	Name() string
	Send(ctx context.Context, body string, file Attachment) error
}

// truncatedNote ends a body cut to fit a size limit.
const truncatedNote = "\n[truncated, see attached log]"

// Truncate cuts s to at most limit bytes on a rune boundary, marking the cut.
func Truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit - len(truncatedNote)
	if cut < 0 {
		cut = 0
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncatedNote
}

// MessageSender posts bot messages. Implemented by *webex.Client.
type MessageSender interface {
	CreateMessage(ctx context.Context, roomID, text string, file *webex.Attachment) (*webex.Message, error)
}

// WebexSink posts the report to a Webex room as the bot.
type WebexSink struct {
	sender MessageSender
	roomID string
}

// NewWebexSink creates a sink posting to roomID.
func NewWebexSink(sender MessageSender, roomID string) *WebexSink {
	return &WebexSink{sender: sender, roomID: roomID}
}

func (s *WebexSink) Name() string { return "webex" }

func (s *WebexSink) Send(ctx context.Context, body string, file Attachment) error {
	text := Truncate(body, webex.MaxMessageBytes)
	if _, err := s.sender.CreateMessage(ctx, s.roomID, text, &webex.Attachment{Name: file.Name, Content: file.Content}); err != nil {
		return fmt.Errorf("failed to post report to room %s: %w", s.roomID, err)
	}
	return nil
}

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailSink mails the report through Amazon SES as a raw MIME message with
// the full log attached.
type EmailSink struct {
	client  sesAPI
	from    string
	to      []string
	subject string
}

// NewEmailSink creates a sink mailing from one address to many.
func NewEmailSink(client sesAPI, from string, to []string) *EmailSink {
	return &EmailSink{client: client, from: from, to: to, subject: "Webinar sync report"}
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Send(ctx context.Context, body string, file Attachment) error {
	raw, err := buildMIME(s.from, s.to, s.subject, body, file)
	if err != nil {
		return fmt.Errorf("failed to build report email: %w", err)
	}
	_, err = s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: s.to},
		Content:          &types.EmailContent{Raw: &types.RawMessage{Data: raw}},
	})
	if err != nil {
		return fmt.Errorf("failed to send report email: %w", err)
	}
	return nil
}

// buildMIME renders a multipart/mixed message: a text part and one
// base64 attachment wrapped at 76 columns.
func buildMIME(from string, to []string, subject, body string, file Attachment) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mw.Boundary())

	text, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=UTF-8"},
		"Content-Transfer-Encoding": {"8bit"},
	})
	if err != nil {
		return nil, err
	}
	io.WriteString(text, body)

	att, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=UTF-8"},
		"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": file.Name})},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(file.Content)
	for len(encoded) > 76 {
		io.WriteString(att, encoded[:76]+"\r\n")
		encoded = encoded[76:]
	}
	io.WriteString(att, encoded+"\r\n")

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// StdoutSink prints the report, used for local runs.
type StdoutSink struct {
	w io.Writer
}

// NewStdoutSink creates a sink writing to w.
func NewStdoutSink(w io.Writer) *StdoutSink {
	return &StdoutSink{w: w}
}

func (s *StdoutSink) Name() string { return "stdout" }

func (s *StdoutSink) Send(_ context.Context, body string, file Attachment) error {
	_, err := fmt.Fprintf(s.w, "%s\n----- %s -----\n%s", body, file.Name, file.Content)
	return err
}
