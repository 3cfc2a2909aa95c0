package model

// Response is the envelope every API endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type ScanAccepted struct {
	ID     string     `json:"id"`
	Status ScanStatus `json:"status"`
}

type DeleteResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

type DeleteManyRequest struct {
	IDs []string `json:"ids"`
}

type DeleteManyResult struct {
	DeletedCount int      `json:"deletedCount"`
	IDs          []string `json:"ids"`
}

type CreateUserRequest struct {
	Name string `json:"name"`
}

type CreateChatRequest struct {
	Title string `json:"title"`
}

type SendMessageRequest struct {
	UserID string `json:"userId"`
	Text   string `json:"text"`
}
