package telegram

import (
	"fmt"
	"time"
)

// MaxMessageLength is the Bot API limit for message text.
const MaxMessageLength = 4096

// The watched store runs on Japan time; every timestamp shown to users
// is rendered in JST no matter where the bot is deployed.
var jst = time.FixedZone("JST", 9*60*60)

// FormatJST renders t as a JST wall-clock timestamp.
func FormatJST(t time.Time) string {
	return t.In(jst).Format("2006-01-02 15:04:05")
}

// ChangeMessage is the notification sent to subscribers when the
// availability status changes.
func ChangeMessage(label, status string, at time.Time, url string) string {
	return fmt.Sprintf("【更新】%s: %s（%s）\n%s", label, status, FormatJST(at), url)
}

// StatusMessage is the reply to /status when the page yielded a status.
func StatusMessage(status string, at time.Time, url string) string {
	return fmt.Sprintf("現在: %s（%s）\n%s", status, FormatJST(at), url)
}

// statusFailedMessage is the reply to /status when the page could not
// be read.
const statusFailedMessage = "取得に失敗しました。"

// StartMessage is the reply to /start.
func StartMessage(label string) string {
	return fmt.Sprintf("『%s』空席ウォッチ\n/on で通知ON、/off で通知OFF、/status 現在の状況、/debug 解析用", label)
}

const (
	subscribedMessage   = "通知を ON にしました。"
	unsubscribedMessage = "通知を OFF にしました。"
)

// DebugMessage is the reply to /debug: the extracted status (or "none"),
// the watched URL, a probe ID to correlate with the logs, and the page
// excerpt the extractor kept.
func DebugMessage(status, url, probe, snippet string) string {
	if status == "" {
		status = "none"
	}
	msg := fmt.Sprintf("status=%s\nURL=%s\nprobe=%s", status, url, probe)
	if snippet != "" {
		msg += "\n--- debug ---\n" + snippet
	}
	return msg
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
