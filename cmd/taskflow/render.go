package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
)

var (
	Bold   = color.New(color.Bold)
	Green  = color.New(color.FgGreen)
	Red    = color.New(color.FgRed)
	Yellow = color.New(color.FgYellow)
)

func colorPrintLn(c *color.Color, a ...any) {
	_, _ = c.Println(a...)
}

func colorPrintf(c *color.Color, format string, a ...any) {
	_, _ = c.Printf(format, a...)
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// renderPages prints one row per URL and a colored summary line.
func renderPages(w io.Writer, urls []string, pages []Page, elapsed time.Duration) {
	table := tablewriter.NewWriter(w)
	table.Header("URL", "Status", "Size", "Title", "Time")

	ok := 0
	for i, p := range pages {
		if p.URL == "" {
			_ = table.Append(urls[i], "failed", "-", "-", "-")
			continue
		}
		if p.Status < 400 {
			ok++
		}
		_ = table.Append(
			p.URL,
			strconv.Itoa(p.Status),
			formatBytes(p.Bytes),
			truncate(p.Title, 40),
			time.Duration(p.ElapsedMS*int64(time.Millisecond)).String(),
		)
	}
	_ = table.Render()

	fmt.Fprintln(w)
	c := Green
	if ok < len(pages) {
		c = Yellow
	}
	_, _ = c.Fprintf(w, "✅ fetched %d/%d URLs in %s\n", ok, len(pages), elapsed.Round(time.Millisecond))
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
