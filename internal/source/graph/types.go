package graph

// Attachment @odata.type discriminators.
const (
	odataFileAttachment      = "#microsoft.graph.fileAttachment"
	odataItemAttachment      = "#microsoft.graph.itemAttachment"
	odataReferenceAttachment = "#microsoft.graph.referenceAttachment"
)

// MessageList is the response from GET /me/mailFolders/{id}/messages.
type MessageList struct {
	Value []Message `json:"value"`

	// NextLink is present when more pages exist. It is not followed.
	NextLink string `json:"@odata.nextLink,omitempty"`
}

// Message is the subset of a Graph message selected by the poller.
type Message struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	IsRead  bool   `json:"isRead"`
}

// AttachmentList is the response from GET /me/messages/{id}/attachments.
type AttachmentList struct {
	Value []Attachment `json:"value"`
}

// Attachment is a Graph attachment of any kind. ContentBytes is only
// set for file attachments.
type Attachment struct {
	ODataType    string `json:"@odata.type"`
	ID           string `json:"id"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	Size         int64  `json:"size"`
	IsInline     bool   `json:"isInline"`
	ContentBytes string `json:"contentBytes,omitempty"`
}

// messageUpdate is the PATCH body for a message.
type messageUpdate struct {
	IsRead bool `json:"isRead"`
}

// ErrorResponse is the error envelope returned by Graph.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a Graph error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
