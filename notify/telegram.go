// Package notify delivers articles and pipeline notices to a Telegram chat.
package notify

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"newsbuzz/types"
)

// Telegram message size limits, in runes.
const (
	captionLimit = 1024
	textLimit    = 4096
)

// messenger is the slice of the bot API the notifier uses.
type messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier sends messages to one Telegram chat. A 429 from the API suspends
// every sender sharing the notifier until the server-advised deadline.
type Notifier struct {
	api       messenger
	chatID    int64
	channel   string
	watermark string

	mu        sync.Mutex
	notBefore time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// New authorizes against the Bot API and targets the given chat. chat is a
// numeric chat ID or a public @channel username.
func New(token, chat, watermark string) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	log.Printf("Telegram bot authorized as @%s", api.Self.UserName)
	return newNotifier(api, chat, watermark), nil
}

func newNotifier(api messenger, chat, watermark string) *Notifier {
	n := &Notifier{
		api:       api,
		watermark: watermark,
		now:       time.Now,
		sleep:     time.Sleep,
	}
	if id, err := strconv.ParseInt(chat, 10, 64); err == nil {
		n.chatID = id
	} else {
		n.channel = chat
	}
	return n
}

// SendArticle delivers one article. With an image it goes out as a photo with
// caption; a failed photo send degrades to a plain text message so the
// article is not lost to a bad image URL.
func (n *Notifier) SendArticle(a types.Article, body string) error {
	if a.ImageURL != "" {
		photo := n.photoConfig(a.ImageURL, n.stamp(body, captionLimit))
		err := n.send(photo)
		if err == nil {
			return nil
		}
		log.Printf("Warning: photo send failed for %q: %v (falling back to text)", a.Title, err)
	}
	return n.send(n.messageConfig(n.stamp(body, textLimit)))
}

// SendText delivers a standalone message (digest, run notice).
func (n *Notifier) SendText(text string) error {
	return n.send(n.messageConfig(n.stamp(text, textLimit)))
}

func (n *Notifier) send(c tgbotapi.Chattable) error {
	n.waitIfSuspended()

	_, err := n.api.Send(c)
	if err == nil {
		return nil
	}

	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && tgErr.RetryAfter > 0 {
		n.suspend(time.Duration(tgErr.RetryAfter) * time.Second)
		n.waitIfSuspended()
		_, err = n.api.Send(c)
	}
	return err
}

func (n *Notifier) waitIfSuspended() {
	n.mu.Lock()
	d := n.notBefore.Sub(n.now())
	n.mu.Unlock()

	if d > 0 {
		log.Printf("Telegram rate limited, pausing sends for %s", d.Round(time.Second))
		n.sleep(d)
	}
}

func (n *Notifier) suspend(d time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	until := n.now().Add(d)
	if until.After(n.notBefore) {
		n.notBefore = until
	}
}

// stamp appends the watermark and trims the result to limit runes. The
// watermark always survives truncation.
func (n *Notifier) stamp(body string, limit int) string {
	suffix := ""
	if n.watermark != "" {
		suffix = "\n\n" + n.watermark
	}

	budget := limit - utf8.RuneCountInString(suffix)
	if budget < 1 {
		// Oversized watermarks are rejected at config load; if one slips
		// through, keep at least one body rune rather than panic.
		budget = 1
	}
	if utf8.RuneCountInString(body) > budget {
		runes := []rune(body)
		body = strings.TrimSpace(string(runes[:budget-1])) + "…"
	}
	return body + suffix
}

func (n *Notifier) messageConfig(text string) tgbotapi.MessageConfig {
	var msg tgbotapi.MessageConfig
	if n.channel != "" {
		msg = tgbotapi.NewMessageToChannel(n.channel, text)
	} else {
		msg = tgbotapi.NewMessage(n.chatID, text)
	}
	msg.ParseMode = tgbotapi.ModeMarkdown
	return msg
}

func (n *Notifier) photoConfig(imageURL, caption string) tgbotapi.PhotoConfig {
	var photo tgbotapi.PhotoConfig
	if n.channel != "" {
		photo = tgbotapi.NewPhotoToChannel(n.channel, tgbotapi.FileURL(imageURL))
	} else {
		photo = tgbotapi.NewPhoto(n.chatID, tgbotapi.FileURL(imageURL))
	}
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeMarkdown
	return photo
}
