package notify

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"newsbuzz/types"
)

// fakeAPI records every Chattable and replays a scripted error per call.
type fakeAPI struct {
	sent []tgbotapi.Chattable
	errs []error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return tgbotapi.Message{}, err
	}
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

const watermark = "@Stock_Market_News_Buzz"

func testNotifier(api *fakeAPI) *Notifier {
	n := newNotifier(api, "12345", watermark)
	n.sleep = func(time.Duration) {}
	return n
}

func TestStampAppendsWatermark(t *testing.T) {
	n := testNotifier(&fakeAPI{})

	got := n.stamp("*Headline*\n\nBody", textLimit)
	if !strings.HasSuffix(got, "\n\n"+watermark) {
		t.Fatalf("watermark missing: %q", got)
	}
	if !strings.HasPrefix(got, "*Headline*") {
		t.Fatalf("body mangled: %q", got)
	}
}

func TestStampTruncatesWithinLimit(t *testing.T) {
	n := testNotifier(&fakeAPI{})

	long := strings.Repeat("markets rallied today ", 100)
	got := n.stamp(long, captionLimit)

	if count := utf8.RuneCountInString(got); count > captionLimit {
		t.Fatalf("stamped caption is %d runes; limit %d", count, captionLimit)
	}
	if !strings.HasSuffix(got, "\n\n"+watermark) {
		t.Fatal("watermark lost to truncation")
	}
	if !strings.Contains(got, "…") {
		t.Fatal("truncated body has no ellipsis")
	}
}

func TestStampOversizedWatermarkDoesNotPanic(t *testing.T) {
	api := &fakeAPI{}
	n := newTestNotifierWithWatermark(api, strings.Repeat("@", captionLimit))

	got := n.stamp("body", captionLimit)
	if !strings.HasSuffix(got, "@") {
		t.Fatalf("watermark suffix lost: %q", got[:20])
	}
}

func newTestNotifierWithWatermark(api *fakeAPI, wm string) *Notifier {
	n := newNotifier(api, "12345", wm)
	n.sleep = func(time.Duration) {}
	return n
}

func TestStampShortBodyUntouched(t *testing.T) {
	n := testNotifier(&fakeAPI{})

	got := n.stamp("short", captionLimit)
	if got != "short\n\n"+watermark {
		t.Fatalf("got %q", got)
	}
}

func TestSendArticleWithImageSendsPhoto(t *testing.T) {
	api := &fakeAPI{}
	n := testNotifier(api)

	a := types.Article{Title: "RBI holds rates", ImageURL: "https://cdn.example.com/rbi.jpg"}
	if err := n.SendArticle(a, "*RBI holds rates*"); err != nil {
		t.Fatalf("SendArticle: %v", err)
	}

	if len(api.sent) != 1 {
		t.Fatalf("sent %d messages; want 1", len(api.sent))
	}
	photo, ok := api.sent[0].(tgbotapi.PhotoConfig)
	if !ok {
		t.Fatalf("sent %T; want PhotoConfig", api.sent[0])
	}
	if utf8.RuneCountInString(photo.Caption) > captionLimit {
		t.Fatal("caption over limit")
	}
	if !strings.HasSuffix(photo.Caption, watermark) {
		t.Fatal("caption missing watermark")
	}
}

func TestSendArticlePhotoFallsBackToText(t *testing.T) {
	api := &fakeAPI{errs: []error{&tgbotapi.Error{Code: 400, Message: "wrong file identifier"}}}
	n := testNotifier(api)

	a := types.Article{Title: "IPO opens", ImageURL: "https://cdn.example.com/broken.jpg"}
	if err := n.SendArticle(a, "*IPO opens*"); err != nil {
		t.Fatalf("SendArticle after fallback: %v", err)
	}

	if len(api.sent) != 2 {
		t.Fatalf("sent %d messages; want photo then text", len(api.sent))
	}
	if _, ok := api.sent[0].(tgbotapi.PhotoConfig); !ok {
		t.Fatalf("first send %T; want PhotoConfig", api.sent[0])
	}
	msg, ok := api.sent[1].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("fallback send %T; want MessageConfig", api.sent[1])
	}
	if !strings.HasSuffix(msg.Text, watermark) {
		t.Fatal("fallback text missing watermark")
	}
}

func TestSendArticleWithoutImageSendsText(t *testing.T) {
	api := &fakeAPI{}
	n := testNotifier(api)

	if err := n.SendArticle(types.Article{Title: "No image"}, "*No image*"); err != nil {
		t.Fatalf("SendArticle: %v", err)
	}
	if len(api.sent) != 1 {
		t.Fatalf("sent %d messages; want 1", len(api.sent))
	}
	if _, ok := api.sent[0].(tgbotapi.MessageConfig); !ok {
		t.Fatalf("sent %T; want MessageConfig", api.sent[0])
	}
}

func TestRateLimitSuspendsAndRetries(t *testing.T) {
	api := &fakeAPI{errs: []error{
		&tgbotapi.Error{
			Code:               429,
			Message:            "Too Many Requests",
			ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 7},
		},
	}}
	n := newNotifier(api, "12345", watermark)

	base := time.Date(2024, time.January, 5, 10, 0, 0, 0, time.UTC)
	clock := base
	var slept time.Duration
	n.now = func() time.Time { return clock }
	n.sleep = func(d time.Duration) {
		slept += d
		clock = clock.Add(d)
	}

	if err := n.SendText("hello"); err != nil {
		t.Fatalf("SendText after retry: %v", err)
	}
	if len(api.sent) != 2 {
		t.Fatalf("sent %d times; want retry after 429", len(api.sent))
	}
	if slept != 7*time.Second {
		t.Fatalf("slept %s; want 7s from Retry-After", slept)
	}

	// A later send inside the window waits out the remainder.
	clock = base.Add(3 * time.Second)
	slept = 0
	if err := n.SendText("second"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if slept != 4*time.Second {
		t.Fatalf("second send slept %s; want 4s remaining", slept)
	}
}

func TestChannelUsernameTarget(t *testing.T) {
	api := &fakeAPI{}
	n := newNotifier(api, "@market_news", watermark)
	n.sleep = func(time.Duration) {}

	if err := n.SendText("hi"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	msg := api.sent[0].(tgbotapi.MessageConfig)
	if msg.ChannelUsername != "@market_news" {
		t.Fatalf("channel target %q", msg.ChannelUsername)
	}
}
