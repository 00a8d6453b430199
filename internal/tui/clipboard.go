package tui

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const noticeFadeDelay = 3 * time.Second

// clipboardWriter opens the terminal for OSC 52 output. Replaced in tests.
var clipboardWriter = func() (io.WriteCloser, error) {
	return os.OpenFile("/dev/tty", os.O_WRONLY, 0)
}

// osc52 encodes text as an OSC 52 clipboard sequence terminated by BEL.
// Inside tmux or screen the sequence is also wrapped for DCS passthrough.
func osc52(text string, inTmux bool) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(text))
	seq := fmt.Sprintf("\x1b]52;c;%s\x07", encoded)
	if inTmux {
		return fmt.Sprintf("\x1bPtmux;\x1b%s\x1b\\", seq) + seq
	}
	return seq
}

func inTmux() bool {
	term := os.Getenv("TERM")
	return os.Getenv("TMUX") != "" ||
		strings.HasPrefix(term, "tmux") ||
		strings.HasPrefix(term, "screen")
}

// copyToClipboard writes text to the system clipboard through the terminal
// and schedules the notice to fade.
func copyToClipboard(text string) tea.Cmd {
	return tea.Batch(
		func() tea.Msg {
			tty, err := clipboardWriter()
			if err != nil {
				return noticeMsg{text: "Clipboard unavailable", err: true}
			}
			defer tty.Close()
			_, _ = io.WriteString(tty, osc52(text, inTmux()))
			return nil
		},
		fadeNotice(),
	)
}

func fadeNotice() tea.Cmd {
	return tea.Tick(noticeFadeDelay, func(time.Time) tea.Msg { return noticeFadeMsg{} })
}
