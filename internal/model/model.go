package model

type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Chat struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type ChatMessage struct {
	ID     string `json:"id"`
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
	Text   string `json:"text"`
	TS     int64  `json:"ts"`
}

type ScanStatus string

const (
	ScanStatusProcessing ScanStatus = "processing"
	ScanStatusCompleted  ScanStatus = "completed"
	ScanStatusFlagged    ScanStatus = "flagged"
	ScanStatusError      ScanStatus = "error"
)

// Terminal reports whether no further automatic transition happens from s
// absent an explicit retry.
func (s ScanStatus) Terminal() bool {
	return s == ScanStatusCompleted || s == ScanStatusFlagged || s == ScanStatusError
}

type ScanVerdict string

const (
	VerdictClean      ScanVerdict = "clean"
	VerdictSuspicious ScanVerdict = "suspicious"
	VerdictMalicious  ScanVerdict = "malicious"
)

type ScanSummary struct {
	Verdict ScanVerdict `json:"verdict"`
	Score   int         `json:"score"`
	Reasons []string    `json:"reasons"`
}

// ScanRecord is the persisted state of one uploaded file. Everything except
// Status and Summary is an immutable snapshot taken at creation time; TS is
// epoch milliseconds.
type ScanRecord struct {
	ID       string            `json:"id"`
	Filename string            `json:"filename"`
	Size     int64             `json:"size"`
	Mime     string            `json:"mime,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
	Status   ScanStatus        `json:"status"`
	Summary  *ScanSummary      `json:"summary,omitempty"`
	TS       int64             `json:"ts"`
}
