package webex

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
)

// Person is a Webex user or bot profile.
type Person struct {
	ID          string   `json:"id"`
	Emails      []string `json:"emails"`
	DisplayName string   `json:"displayName"`
	NickName    string   `json:"nickName"`
	Type        string   `json:"type"`
}

// PrimaryEmail returns the first listed email, if any.
func (p *Person) PrimaryEmail() string {
	if len(p.Emails) == 0 {
		return ""
	}
	return p.Emails[0]
}

// GetMe retrieves the profile the client's token belongs to.
func (c *Client) GetMe(ctx context.Context) (*Person, error) {
	var p Person
	if _, err := c.do(ctx, "GET", "/people/me", nil, nil, &p); err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return &p, nil
}

// Room is a Webex space.
type Room struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// GetRoom fetches a room the token can see.
func (c *Client) GetRoom(ctx context.Context, id string) (*Room, error) {
	var r Room
	if _, err := c.do(ctx, "GET", "/rooms/"+url.PathEscape(id), nil, nil, &r); err != nil {
		return nil, fmt.Errorf("failed to get room %s: %w", id, err)
	}
	return &r, nil
}

// MaxMessageBytes is the API limit on a message's text body.
const MaxMessageBytes = 7439

// Attachment is a file posted alongside a message.
type Attachment struct {
	Name    string
	Content []byte
}

// Message is a posted message.
type Message struct {
	ID     string `json:"id"`
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}

// CreateMessage posts text to a room, optionally with one file attachment.
func (c *Client) CreateMessage(ctx context.Context, roomID, text string, file *Attachment) (*Message, error) {
	if file == nil {
		var m Message
		body := map[string]string{"roomId": roomID, "text": text}
		if _, err := c.do(ctx, "POST", "/messages", nil, body, &m); err != nil {
			return nil, fmt.Errorf("failed to create message: %w", err)
		}
		return &m, nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("roomId", roomID); err != nil {
		return nil, fmt.Errorf("failed to build message: %w", err)
	}
	if err := mw.WriteField("text", text); err != nil {
		return nil, fmt.Errorf("failed to build message: %w", err)
	}
	part, err := mw.CreateFormFile("files", file.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to build message: %w", err)
	}
	if _, err := part.Write(file.Content); err != nil {
		return nil, fmt.Errorf("failed to build message: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/messages", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var m Message
	if _, err := c.send(req, &m); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	return &m, nil
}
