package reporting

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/smabot/internal/domain"
)

var (
	buyStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"})
	sellStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#E05D5D", Dark: "#FF7A7A"})
	reportStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"})
)

// Console prints human-readable trade and report lines.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	styled bool
}

// NewConsole writes to w. Styling is applied only when styled is set.
func NewConsole(w io.Writer, styled bool) *Console {
	return &Console{w: w, styled: styled}
}

func (c *Console) RecordTrade(event domain.TradeEvent) error {
	var line string
	switch event.Kind {
	case domain.TradeBuy:
		line = c.render(buyStyle, fmt.Sprintf("SMA bot %d bought at %s. SMA: %s.",
			event.Window, event.Price.String(), event.Reference.String()))
	case domain.TradeSell:
		profit := "0"
		if event.ProfitDelta != nil {
			profit = event.ProfitDelta.String()
		}
		line = c.render(sellStyle, fmt.Sprintf("SMA bot %d sold at %s for a profit of %s. SMA: %s.",
			event.Window, event.Price.String(), profit, event.Reference.String()))
	default:
		return errors.Errorf("unknown trade kind %d", event.Kind)
	}

	return c.println(line)
}

func (c *Console) RecordReport(report domain.ProfitReport) error {
	return c.println(c.render(reportStyle, fmt.Sprintf("SMA %d finished today with %s in profit.",
		report.Window, report.Profit.String())))
}

func (c *Console) render(style lipgloss.Style, s string) string {
	if !c.styled {
		return s
	}
	return style.Render(s)
}

func (c *Console) println(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := fmt.Fprintln(c.w, line)
	return errors.Wrap(err, "write console line")
}
