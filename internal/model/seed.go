package model

import "time"

// Seed fixtures give a fresh deployment demonstrable data. They are only
// written by EnsureSeed into an empty collection, never on top of real
// records.

func SeedUsers() []User {
	return []User{
		{ID: "u1", Name: "User A"},
		{ID: "u2", Name: "User B"},
	}
}

func SeedChats() []Chat {
	return []Chat{
		{ID: "c1", Title: "General"},
	}
}

func SeedChatMessages() []ChatMessage {
	return []ChatMessage{
		{ID: "m1", ChatID: "c1", UserID: "u1", Text: "Hello", TS: time.Now().UnixMilli()},
	}
}

func SeedScans() []ScanRecord {
	return []ScanRecord{
		{
			ID:       "s1",
			Filename: "demo-report.pdf",
			Size:     123456,
			Mime:     "application/pdf",
			Status:   ScanStatusCompleted,
			Summary: &ScanSummary{
				Verdict: VerdictClean,
				Score:   98,
				Reasons: []string{},
			},
			TS: time.Now().Add(-24 * time.Hour).UnixMilli(),
		},
	}
}
