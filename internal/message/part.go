package message

import (
	"encoding/base64"
	"strings"

	"docket/internal/mailbox"
)

// AttachmentRef describes one attachment found in a message's part tree.
// Bytes are fetched separately; this only carries metadata.
type AttachmentRef struct {
	AttachmentID string
	Filename     string
	MimeType     string
	ByteSize     int64
}

// ExtractBody walks the part tree and returns the message's text body.
// Leaves win over containers; text/plain wins over text/html; within a
// container, children are visited in source order and the first usable
// body is kept.
func ExtractBody(part *mailbox.Part) string {
	plain, html := reduceBody(part)
	if plain != "" {
		return plain
	}
	return html
}

func reduceBody(part *mailbox.Part) (plain, html string) {
	if part == nil {
		return "", ""
	}
	if len(part.Parts) == 0 {
		if part.Filename != "" || part.Body == nil || part.Body.Data == "" {
			return "", ""
		}
		decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(part.Body.Data, "="))
		if err != nil {
			return "", ""
		}
		switch {
		case strings.HasPrefix(part.MimeType, "text/plain"):
			return string(decoded), ""
		case strings.HasPrefix(part.MimeType, "text/html"):
			return "", string(decoded)
		}
		return "", ""
	}
	for _, child := range part.Parts {
		childPlain, childHTML := reduceBody(child)
		if plain == "" {
			plain = childPlain
		}
		if html == "" {
			html = childHTML
		}
		if plain != "" {
			return plain, html
		}
	}
	return plain, html
}

// ExtractAttachments walks the part tree and collects every attachment
// reference, in source order.
func ExtractAttachments(part *mailbox.Part) []AttachmentRef {
	if part == nil {
		return nil
	}
	var refs []AttachmentRef
	if len(part.Parts) == 0 {
		if part.Filename != "" && part.Body != nil && part.Body.AttachmentID != "" {
			refs = append(refs, AttachmentRef{
				AttachmentID: part.Body.AttachmentID,
				Filename:     part.Filename,
				MimeType:     part.MimeType,
				ByteSize:     part.Body.Size,
			})
		}
		return refs
	}
	for _, child := range part.Parts {
		refs = append(refs, ExtractAttachments(child)...)
	}
	return refs
}
