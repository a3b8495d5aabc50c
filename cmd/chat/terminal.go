package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/term"
)

const (
	saveCursor    = "\0337"
	restoreCursor = "\0338"
	clearToEnd    = "\033[J"
)

// terminalTarget redraws the reply in place on every frame. Markup is
// flattened to text, anchors keep their href in brackets. When the output is
// not a terminal only the last frame is written, on Finish.
type terminalTarget struct {
	w   io.Writer
	tty bool

	mu      sync.Mutex
	started bool
	last    string
}

func newTerminalTarget(w io.Writer, tty bool) *terminalTarget {
	return &terminalTarget{w: w, tty: tty}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (t *terminalTarget) Render(markup string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = plainText(markup)
	if !t.tty {
		return
	}
	if !t.started {
		_, _ = io.WriteString(t.w, saveCursor)
		t.started = true
	}
	_, _ = fmt.Fprint(t.w, restoreCursor+clearToEnd+t.last)
}

// Finish ends the reply with a newline.
func (t *terminalTarget) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.tty {
		_, _ = io.WriteString(t.w, t.last)
	}
	_, _ = io.WriteString(t.w, "\n")
}

func plainText(markup string) string {
	z := html.NewTokenizer(strings.NewReader(markup))
	var sb strings.Builder
	var hrefs []string
	for {
		switch z.Next() {
		case html.ErrorToken:
			return sb.String()
		case html.TextToken:
			sb.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "br", "p":
				if sb.Len() > 0 {
					sb.WriteString("\n")
				}
			case "li":
				sb.WriteString("\n- ")
			case "a":
				href := ""
				for hasAttr {
					var key, val []byte
					key, val, hasAttr = z.TagAttr()
					if string(key) == "href" {
						href = string(val)
					}
				}
				hrefs = append(hrefs, href)
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "a" && len(hrefs) > 0 {
				href := hrefs[len(hrefs)-1]
				hrefs = hrefs[:len(hrefs)-1]
				if href != "" {
					sb.WriteString(" [" + href + "]")
				}
			}
		}
	}
}
