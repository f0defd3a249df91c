package tgui

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// MaxMessageRunes is Telegram's limit for one text message.
const MaxMessageRunes = 4096

const modeHTML = string(tele.ModeHTML)

// Message is a rendered payload: text plus the options to send it with.
type Message struct {
	Text           string
	ParseMode      string
	DisablePreview bool
}

// SendOptions returns the telebot options for m.
func (m Message) SendOptions() *tele.SendOptions {
	return &tele.SendOptions{
		ParseMode:             tele.ParseMode(m.ParseMode),
		DisableWebPagePreview: m.DisablePreview,
	}
}

// Builder assembles a message line by line.
// Default: ParseMode=HTML, DisablePreview=true.
type Builder struct {
	parseMode      string
	disablePreview bool
	lines          []string
}

func New() *Builder {
	return &Builder{parseMode: modeHTML, disablePreview: true}
}

// ParseMode overrides Telegram parse mode ("HTML" or empty for plain text).
func (b *Builder) ParseMode(mode string) *Builder {
	b.parseMode = strings.TrimSpace(mode)
	return b
}

func (b *Builder) html() bool { return strings.EqualFold(b.parseMode, modeHTML) }

// Title adds a bold title line. Emoji is optional.
func (b *Builder) Title(emoji, title string) *Builder {
	e, t := strings.TrimSpace(emoji), strings.TrimSpace(title)
	if t == "" {
		return b
	}
	if b.html() {
		b.lines = append(b.lines, JoinH(" ", Esc(e), B(t)).String())
		return b
	}
	b.lines = append(b.lines, strings.TrimSpace(e+" "+t))
	return b
}

// Line adds a single line, escaping when ParseMode is HTML.
func (b *Builder) Line(s string) *Builder {
	if b.html() {
		s = Esc(s).String()
	}
	b.lines = append(b.lines, s)
	return b
}

// KV adds a "• key: value" row; in HTML the value is set as code.
func (b *Builder) KV(key, value string) *Builder {
	key, value = strings.TrimSpace(key), strings.TrimSpace(value)
	if key == "" {
		return b
	}
	if b.html() {
		b.lines = append(b.lines, "• "+B(key).String()+": "+Code(value).String())
		return b
	}
	b.lines = append(b.lines, "• "+key+": "+value)
	return b
}

// Build joins the lines. Plain text beyond MaxMessageRunes is truncated;
// HTML is not, since a cut could leave unbalanced tags.
func (b *Builder) Build() Message {
	text := strings.Trim(strings.Join(b.lines, "\n"), "\n")
	if !b.html() {
		text = TruncRunes(text, MaxMessageRunes)
	}
	return Message{Text: text, ParseMode: b.parseMode, DisablePreview: b.disablePreview}
}
