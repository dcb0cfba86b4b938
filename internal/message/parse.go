package message

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"docket/internal/mailbox"
)

// Parsed is the decoded view of one raw external message.
type Parsed struct {
	ExternalID  string
	ThreadID    string
	Subject     string
	From        string
	FromName    string
	To          []string
	Date        time.Time
	BodyText    string
	Attachments []AttachmentRef
}

// HasAttachments reports whether any attachment reference was found.
func (p *Parsed) HasAttachments() bool {
	return len(p.Attachments) > 0
}

// Parse decodes one raw message into header, body, and attachment fields.
// It is pure: no network, no storage.
func Parse(msg *mailbox.Message) (*Parsed, error) {
	if msg == nil {
		return nil, errors.New("message is nil")
	}
	if msg.ID == "" {
		return nil, errors.New("message has no id")
	}

	parsed := &Parsed{
		ExternalID:  msg.ID,
		ThreadID:    msg.ThreadID,
		BodyText:    ExtractBody(msg.Payload),
		Attachments: ExtractAttachments(msg.Payload),
	}

	if msg.InternalDate > 0 {
		parsed.Date = time.UnixMilli(msg.InternalDate).UTC()
	}

	for _, header := range headersOf(msg.Payload) {
		switch strings.ToLower(header.Name) {
		case "subject":
			parsed.Subject = strings.TrimSpace(header.Value)
		case "from":
			address, name := parseAddress(header.Value)
			parsed.From = address
			parsed.FromName = name
		case "to", "cc":
			parsed.To = append(parsed.To, parseAddressList(header.Value)...)
		case "date":
			if parsed.Date.IsZero() {
				if t, err := mail.ParseDate(header.Value); err == nil {
					parsed.Date = t.UTC()
				}
			}
		}
	}

	return parsed, nil
}

func headersOf(part *mailbox.Part) []mailbox.Header {
	if part == nil {
		return nil
	}
	return part.Headers
}

func parseAddress(value string) (address, name string) {
	parsed, err := mail.ParseAddress(value)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(value)), ""
	}
	return strings.ToLower(parsed.Address), strings.TrimSpace(parsed.Name)
}

func parseAddressList(value string) []string {
	parsed, err := mail.ParseAddressList(value)
	if err != nil {
		trimmed := strings.ToLower(strings.TrimSpace(value))
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}
	addresses := make([]string, 0, len(parsed))
	for _, entry := range parsed {
		addresses = append(addresses, strings.ToLower(entry.Address))
	}
	return addresses
}
