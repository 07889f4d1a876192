package types

import "time"

// Wire shapes exchanged with the backend. Field names follow the
// server's JSON schema, which is camelCase.

// CreateCommentRequest is the body of a comment creation call.
type CreateCommentRequest struct {
	Text            string `json:"text"`
	ParentCommentID string `json:"parentCommentId,omitempty"`
}

// CreatedComment is the server-confirmed comment returned on creation.
// Its ID replaces the locally generated one during canonical merge.
type CreatedComment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateCommentResponse wraps a creation result.
type CreateCommentResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Comment CreatedComment `json:"comment"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// CommentListResponse wraps a comment list fetch.
type CommentListResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Comments []Comment `json:"comments"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// StatusResponse is the generic success/error envelope used by delete,
// like-toggle and save endpoints.
type StatusResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// AnnotationRequest is sent to the external annotation capability.
type AnnotationRequest struct {
	Content  string `json:"content"`
	Comment  string `json:"comment"`
	PostType string `json:"postType"`
}

// AnnotationData carries the usable payload of an annotation response.
type AnnotationData struct {
	Response string `json:"response"`
}

// AnnotationResponse is the annotation capability's envelope. A success
// without data is treated as a terminal failure, not retried.
type AnnotationResponse struct {
	Success bool            `json:"success"`
	Data    *AnnotationData `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}
