package chatroom

import (
	"sync"
	"time"
)

const (
	chatRateWindow       = 10 * time.Second
	chatRateMaxPerWindow = 40
)

var (
	chatRateMu     sync.Mutex
	chatRateByUser = make(map[int][]time.Time)
)

// allowChatMessage applies a sliding-window cap per user id so one account
// cannot flood a channel from several connections.
func allowChatMessage(userID int, now time.Time) bool {
	chatRateMu.Lock()
	defer chatRateMu.Unlock()

	windowStart := now.Add(-chatRateWindow)
	events := chatRateByUser[userID]
	trimmed := events[:0]
	for _, ts := range events {
		if ts.After(windowStart) {
			trimmed = append(trimmed, ts)
		}
	}
	if len(trimmed) >= chatRateMaxPerWindow {
		chatRateByUser[userID] = append([]time.Time(nil), trimmed...)
		return false
	}
	trimmed = append(trimmed, now)
	chatRateByUser[userID] = append([]time.Time(nil), trimmed...)
	return true
}

func clearChatMessageLimiter(userID int) {
	chatRateMu.Lock()
	delete(chatRateByUser, userID)
	chatRateMu.Unlock()
}
