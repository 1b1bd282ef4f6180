package bot

import (
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jasonptoups/truckee-calendar/internal/domain"
)

// maxErrorLen keeps a run summary well under Telegram's message size limit
const maxErrorLen = 200

// streakLookback bounds how many past runs are read per failed feed
const streakLookback = 10

// FeedHistory provides the recorded outcomes of a feed, newest first
type FeedHistory interface {
	FeedHealth(url string, limit int) ([]*domain.FeedOutcome, error)
}

// Bot posts run summaries to one Telegram chat
type Bot struct {
	api     *tgbotapi.BotAPI
	chatID  int64
	history FeedHistory
}

func New(token string, chatID int64) (*Bot, error) {
	return NewWithEndpoint(token, chatID, tgbotapi.APIEndpoint)
}

// NewWithEndpoint creates a bot that talks to a Bot API server other than
// api.telegram.org. endpoint has the form "https://host/bot%s/%s".
func NewWithEndpoint(token string, chatID int64, endpoint string) (*Bot, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("Authorized as @%s", api.Self.UserName)

	return &Bot{api: api, chatID: chatID}, nil
}

// SetHistory enables failure streaks in run summaries
func (b *Bot) SetHistory(h FeedHistory) {
	b.history = h
}

func (b *Bot) sendMessage(text string) error {
	msg := tgbotapi.NewMessage(b.chatID, text)
	msg.ParseMode = "HTML"
	msg.DisableWebPagePreview = true
	_, err := b.api.Send(msg)
	return err
}

// NotifyRun sends the summary of a finished run
func (b *Bot) NotifyRun(report *domain.RunReport) error {
	if err := b.sendMessage(FormatRun(report, b.failureStreaks(report))); err != nil {
		return fmt.Errorf("send run summary: %w", err)
	}
	return nil
}

// failureStreaks counts, for each failed feed, how many of its most recent
// recorded runs failed in a row. The report itself is expected to be
// recorded already.
func (b *Bot) failureStreaks(report *domain.RunReport) map[string]int {
	if b.history == nil {
		return nil
	}

	streaks := make(map[string]int)
	for _, f := range report.Failed() {
		outcomes, err := b.history.FeedHealth(f.URL, streakLookback)
		if err != nil {
			log.Printf("Feed health for %s: %v", f.URL, err)
			continue
		}
		n := 0
		for _, o := range outcomes {
			if o.OK {
				break
			}
			n++
		}
		streaks[f.URL] = n
	}
	return streaks
}

// FormatRun renders a run summary as Telegram HTML. streaks maps failed feed
// URLs to their consecutive failure count and may be nil.
func FormatRun(report *domain.RunReport, streaks map[string]int) string {
	var sb strings.Builder

	failed := report.Failed()
	if len(failed) == 0 {
		sb.WriteString("📅 <b>Calendar updated</b>\n\n")
	} else {
		sb.WriteString("⚠️ <b>Calendar updated with errors</b>\n\n")
	}

	sb.WriteString(html.EscapeString(report.Summary()) + "\n")
	sb.WriteString(fmt.Sprintf("File size: %s bytes\n", report.FormatSize()))
	sb.WriteString(fmt.Sprintf("Took %s\n", report.Duration().Round(time.Second)))

	if len(failed) > 0 {
		sb.WriteString(fmt.Sprintf("\n<b>Failed feeds (%d):</b>\n", len(failed)))
		for _, f := range failed {
			msg := f.ErrorText()
			if r := []rune(msg); len(r) > maxErrorLen {
				msg = string(r[:maxErrorLen]) + "…"
			}
			sb.WriteString(fmt.Sprintf("• <code>%s</code>\n  %s\n", html.EscapeString(f.URL), html.EscapeString(msg)))
			if n := streaks[f.URL]; n >= streakLookback {
				sb.WriteString(fmt.Sprintf("  failing for %d+ runs\n", streakLookback))
			} else if n > 1 {
				sb.WriteString(fmt.Sprintf("  failing for %d runs\n", n))
			}
		}
	}

	return sb.String()
}
