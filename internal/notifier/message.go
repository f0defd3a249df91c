package notifier

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"gamewatch/internal/riot"
	"gamewatch/pkg/tgui"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// Activation is one observed transition into a game.
type Activation struct {
	PlayerID   string
	PUUID      string
	ObservedAt time.Time
	Game       *riot.ActiveGame
}

// Message is a rendered notification. Chat is the Telegram rendering.
type Message struct {
	Subject string
	HTML    string
	Text    string
	Chat    tgui.Message
}

const timeLayout = "2006-01-02 15:04:05"

var htmlBody = template.Must(template.New("activation").Parse(`<html>
<head></head>
<body>
<h1>{{.Name}} is in game!</h1>
<ul>
<li><strong>Player:</strong> {{.Name}}</li>
<li><strong>Game Mode:</strong> {{.GameMode}}</li>
<li><strong>Game Type:</strong> {{.GameType}}</li>
<li><strong>Time:</strong> {{.Time}} UTC</li>
</ul>
</body>
</html>`))

type messageData struct {
	Name     string
	GameMode string
	GameType string
	Time     string
}

// Render builds the subject and both bodies for an activation.
func Render(displayName string, act Activation) (Message, error) {
	d := messageData{
		Name:     displayName,
		GameMode: "unknown",
		GameType: "unknown",
		Time:     act.ObservedAt.UTC().Format(timeLayout),
	}
	if act.Game != nil {
		if act.Game.GameMode != "" {
			d.GameMode = act.Game.GameMode
		}
		if act.Game.GameType != "" {
			d.GameType = act.Game.GameType
		}
	}

	var buf bytes.Buffer
	if err := htmlBody.Execute(&buf, d); err != nil {
		return Message{}, fmt.Errorf("render html: %w", err)
	}
	text, err := htmltomarkdown.ConvertString(buf.String())
	if err != nil {
		return Message{}, fmt.Errorf("render text: %w", err)
	}
	subject := displayName + " is in game!"
	chat := tgui.New().
		Title("🎮", subject).
		KV("Player", d.Name).
		KV("Game Mode", d.GameMode).
		KV("Game Type", d.GameType).
		KV("Time", d.Time+" UTC").
		Build()
	return Message{
		Subject: subject,
		HTML:    buf.String(),
		Text:    strings.TrimSpace(text),
		Chat:    chat,
	}, nil
}
