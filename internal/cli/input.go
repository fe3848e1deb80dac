// Package cli handles interactive search input for debugging suggestions, resolution and ranking
package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/mariohealth/marioserve/internal/logger"
	"github.com/mariohealth/marioserve/internal/utils"
	"github.com/mariohealth/marioserve/pkg/engine"
	"github.com/mariohealth/marioserve/pkg/rank"
	"github.com/mariohealth/marioserve/pkg/resolve"
)

// searchPrefix marks a line as a full search instead of a suggestion lookup
const searchPrefix = "?"

var (
	textStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#286983", Dark: "#9ccfd8"})
	hintStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.AdaptiveColor{Light: "#907aa9", Dark: "#c4a7e7"})
	priceStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#56949f", Dark: "#31748f"})
)

// Options controls the interactive session
type Options struct {
	MinLen   int
	MaxLen   int
	Limit    int
	NoFilter bool
	Filter   rank.FilterSpec
}

// InputHandler reads queries line by line and prints suggestions.
// Lines starting with "?" run a full search: resolution plus a ranked page.
type InputHandler struct {
	engine *engine.Engine
	opts   Options
	in     io.Reader
	out    *log.Logger
}

// NewInputHandler creates a handler reading from in and printing to out
func NewInputHandler(eng *engine.Engine, opts Options, in io.Reader, out io.Writer) *InputHandler {
	if opts.Filter == (rank.FilterSpec{}) {
		opts.Filter = rank.DefaultFilterSpec()
	}
	l := logger.NewWithWriter(out, "")
	l.SetReportTimestamp(false)
	return &InputHandler{engine: eng, opts: opts, in: in, out: l}
}

// Start runs the prompt loop until the input ends. EOF is not an error.
func (h *InputHandler) Start() error {
	h.out.Print("MarioServe CLI")
	h.out.Print("type a query and press Enter, prefix with ? for a full search (Ctrl+C to exit):")

	scanner := bufio.NewScanner(h.in)
	for {
		h.out.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		h.handleInput(line)
	}
}

func (h *InputHandler) handleInput(line string) {
	if q, ok := strings.CutPrefix(line, searchPrefix); ok {
		h.search(strings.TrimSpace(q))
		return
	}

	if utils.NormalizedLen(line) < h.opts.MinLen {
		h.out.Errorf("Query too short: %s", line)
		return
	}
	if utf8.RuneCountInString(line) > h.opts.MaxLen {
		h.out.Errorf("Query too long: %s", line)
		return
	}
	if !h.opts.NoFilter && !utils.IsValidInput(line) {
		h.out.Infof("No results found for '%s'", line)
		return
	}

	start := time.Now()
	suggestions := h.engine.Suggest(line, h.opts.Limit)
	log.Debugf("Took [ %v ] for '%s'", time.Since(start), line)

	if len(suggestions) == 0 {
		h.out.Warnf("No suggestions found for '%s'", line)
		h.didYouMean(line)
		return
	}

	h.out.Printf("Found %d suggestions for '%s':", len(suggestions), line)
	for i, s := range suggestions {
		h.out.Printf("%2d. %s %s  (%s)", i+1, s.Icon, textStyle.Render(s.Text), s.Category)
	}
}

func (h *InputHandler) didYouMean(query string) {
	if correction, changed := h.engine.Spell(query); changed {
		h.out.Print(hintStyle.Render(fmt.Sprintf("Did you mean: %s?", correction)))
	}
}

func (h *InputHandler) search(query string) {
	if query == "" {
		h.out.Error("Search needs a query")
		return
	}
	res, page := h.engine.Search(query, h.opts.Filter, rank.PageRequest{Limit: h.opts.Limit})
	h.printResolved(res)

	if page.TotalCount == 0 {
		h.out.Warn("No matching results")
		if res.Kind == resolve.KindNone {
			h.didYouMean(query)
		}
		return
	}
	h.out.Printf("Showing %d of %d results sorted by %s:", len(page.Items), page.TotalCount, page.SortBy)
	for i, c := range page.Items {
		h.out.Printf("%2d. %-32s %s  %.1f mi  ★ %.1f (%d)",
			page.Offset+i+1, textStyle.Render(c.Name), priceStyle.Render(fmt.Sprintf("$%.0f", c.Price)),
			c.Distance, c.Rating, c.ReviewCount)
	}
}

func (h *InputHandler) printResolved(res resolve.Resolved) {
	switch res.Kind {
	case resolve.KindEntity:
		h.out.Print("Resolved to entity", "name", res.Entity.Text, "category", res.Category)
	case resolve.KindCollection:
		h.out.Print("Resolved to collection", "specialty", res.Specialty, "items", len(res.Items))
	default:
		h.out.Print("No exact match, searching candidates")
	}
}
