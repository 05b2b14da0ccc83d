package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the Waypoint banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{` _    _                          _       _   `, "#818cf8"},
		{`| |  | |                        (_)     | |  `, "#a78bfa"},
		{`| |  | | __ _ _   _ _ __   ___   _ _ __ | |_ `, "#c084fc"},
		{`| |/\| |/ _' | | | | '_ \ / _ \ | | '_ \| __|`, "#e879f9"},
		{`\  /\  / (_| | |_| | |_) | (_) || | | | | |_ `, "#f472b6"},
		{` \/  \/ \__,_|\__, | .__/ \___/ |_|_| |_|\__|`, "#fb7185"},
		{`               __/ | |                       `, "#fb7185"},
		{`              |___/|_|                       `, "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
