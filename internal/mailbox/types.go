package mailbox

// ThreadSummary is one entry in a paginated thread listing.
type ThreadSummary struct {
	ID      string `json:"id"`
	Snippet string `json:"snippet"`
	Cursor  string `json:"historyId"`
}

// ThreadPage is one page of the thread listing.
type ThreadPage struct {
	Threads       []ThreadSummary `json:"threads"`
	NextPageToken string          `json:"nextPageToken"`
	ResultSize    int             `json:"resultSizeEstimate"`
}

// Thread is a full container fetch: every message, source order preserved
// (oldest first).
type Thread struct {
	ID       string     `json:"id"`
	Cursor   string     `json:"historyId"`
	Messages []*Message `json:"messages"`
}

// Message is one raw external message.
type Message struct {
	ID           string `json:"id"`
	ThreadID     string `json:"threadId"`
	InternalDate int64  `json:"internalDate,string"`
	Snippet      string `json:"snippet"`
	Payload      *Part  `json:"payload"`
}

// Header is one name/value message header.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Body carries part content. Inline content arrives base64url-encoded in
// Data; larger content is referenced by AttachmentID and fetched separately.
type Body struct {
	AttachmentID string `json:"attachmentId,omitempty"`
	Size         int64  `json:"size"`
	Data         string `json:"data,omitempty"`
}

// Part is one node in a message's MIME tree. A part is either a leaf
// (Body set) or a container (Parts set).
type Part struct {
	PartID   string   `json:"partId"`
	MimeType string   `json:"mimeType"`
	Filename string   `json:"filename"`
	Headers  []Header `json:"headers"`
	Body     *Body    `json:"body,omitempty"`
	Parts    []*Part  `json:"parts,omitempty"`
}

// attachmentPayload is the wire shape of a standalone attachment fetch.
type attachmentPayload struct {
	Size int64  `json:"size"`
	Data string `json:"data"`
}
