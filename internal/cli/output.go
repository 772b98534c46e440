// SPDX-License-Identifier: AGPL-3.0-only
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/fluffyriot/crossfeed/internal/helpers"
	"github.com/fluffyriot/crossfeed/internal/models"
)

const defaultWidth = 100

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// TerminalWidth returns the width of f, or a default when f is not a terminal.
func TerminalWidth(f *os.File) int {
	if !IsTerminal(f) {
		return defaultWidth
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintPosts writes one row per post, cutting content to fit width.
func PrintPosts(w io.Writer, posts []*models.Post, width int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tNETWORK\tAUTHOR\tPOST")

	for _, p := range posts {
		src := p.Source()
		author := src.Author.Username
		if p.IsBoost() {
			author = p.Author.Username + " ↻ " + author
		}

		text := strings.Join(strings.Fields(src.Content), " ")
		if p.Parent != nil || src.Parent != nil {
			text = "↳ " + text
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			p.CreatedAt.Local().Format(time.DateTime),
			helpers.NetworkName(p.Platform),
			author,
			truncate(text, width-60),
		)
	}

	return tw.Flush()
}

func truncate(s string, n int) string {
	if n < 20 {
		n = 20
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
