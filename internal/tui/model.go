// ABOUTME: Bubble Tea model that renders a streaming interaction block by block
// ABOUTME: Pulls events with Recv in a chained command; q or ctrl+c closes the stream

package tui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mauromedda/genai-go/internal/render"
	"github.com/mauromedda/genai-go/internal/telemetry"
	"github.com/mauromedda/genai-go/pkg/interactions"
)

const defaultWidth = 80

// Source is the stream surface the view consumes. *interactions.Stream
// satisfies it.
type Source interface {
	Recv() (interactions.Event, error)
	Close() error
	Block(index int) (interactions.Content, bool)
	State() interactions.State
	Cursor() interactions.Position
	Interaction() *interactions.Interaction
}

// eventMsg carries one event received from the stream.
type eventMsg struct{ ev interactions.Event }

// doneMsg carries the error that ended the stream; io.EOF on clean finish.
type doneMsg struct{ err error }

type block struct {
	content interactions.Content
	sealed  bool
}

// Model is the live view of one interaction stream.
type Model struct {
	src      Source
	styles   Styles
	md       *MarkdownRenderer
	thoughts bool

	width     int
	order     []int
	blocks    map[int]*block
	status    interactions.Status
	errors    []string
	done      bool
	cancelled bool
	err       error
}

// NewModel creates a view over src.
func NewModel(src Source, opts Options) Model {
	return Model{
		src:      src,
		styles:   DefaultStyles(),
		md:       NewMarkdownRenderer(opts.MarkdownStyle),
		thoughts: opts.Thoughts,
		width:    defaultWidth,
		blocks:   make(map[int]*block),
	}
}

// recv waits for the next event on a Bubble Tea worker goroutine.
func recv(src Source) tea.Cmd {
	return func() tea.Msg {
		ev, err := src.Recv()
		if err != nil {
			return doneMsg{err: err}
		}
		return eventMsg{ev: ev}
	}
}

// Init starts pulling events.
func (m Model) Init() tea.Cmd {
	return recv(m.src)
}

// Update applies stream events, resizes, and key presses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
		}
		return m, nil

	case eventMsg:
		m.apply(msg.ev)
		return m, recv(m.src)

	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.cancelled = true
			m.done = true
			_ = m.src.Close()
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *Model) apply(ev interactions.Event) {
	switch e := ev.(type) {
	case *interactions.InteractionStartEvent:
		if e.Interaction != nil {
			m.status = e.Interaction.Status
		}
	case *interactions.StatusUpdateEvent:
		m.status = e.Status
	case *interactions.InteractionCompleteEvent:
		if e.Interaction != nil {
			m.status = e.Interaction.Status
		}
	case *interactions.ContentStartEvent:
		m.refresh(e.Index)
	case *interactions.ContentDeltaEvent:
		m.refresh(e.Index)
	case *interactions.ContentStopEvent:
		b := m.track(e.Index)
		if e.Content != nil {
			b.content = *e.Content
		}
		b.sealed = true
	case *interactions.ErrorEvent:
		m.errors = append(m.errors, e.Error())
	}
}

func (m *Model) track(index int) *block {
	b, ok := m.blocks[index]
	if !ok {
		b = &block{}
		m.blocks[index] = b
		m.order = append(m.order, index)
	}
	return b
}

func (m *Model) refresh(index int) {
	b := m.track(index)
	if c, ok := m.src.Block(index); ok {
		b.content = c
	}
}

// View renders the blocks seen so far followed by a status line.
func (m Model) View() string {
	var sections []string
	for _, idx := range m.order {
		if s := m.viewBlock(m.blocks[idx]); s != "" {
			sections = append(sections, s)
		}
	}
	for _, e := range m.errors {
		sections = append(sections, m.styles.Error.Render(render.Truncate("error: "+e, m.width)))
	}
	if m.done && m.err != nil && !errors.Is(m.err, io.EOF) && !m.cancelled {
		sections = append(sections, m.styles.Error.Render(render.Truncate(m.err.Error(), m.width)))
	}
	sections = append(sections, m.statusLine())
	return strings.Join(sections, "\n") + "\n"
}

func (m Model) viewBlock(b *block) string {
	c := &b.content
	switch {
	case c.Kind == interactions.KindText:
		if b.sealed && m.done {
			return m.md.Render(c.Text, m.width)
		}
		return lipgloss.NewStyle().Width(m.width).Render(c.Text)
	case c.Kind == interactions.KindThought:
		if !m.thoughts {
			return ""
		}
		return m.styles.Thought.Render(render.Preview(c.SummaryText(), m.width))
	case c.Kind.IsCall() && !b.sealed:
		name := c.Name
		if name == "" {
			name = string(c.Kind)
		}
		return m.styles.Call.Render(render.Truncate(fmt.Sprintf("… %s %s", name, render.Preview(string(c.Arguments), m.width)), m.width))
	case b.sealed:
		return m.styles.Call.Render(render.Truncate(render.Describe(c), m.width))
	}
	return m.styles.Muted.Render(render.Truncate(fmt.Sprintf("… %s #%d", c.Kind, c.Index), m.width))
}

func (m Model) statusLine() string {
	st := m.src.State()
	pos := m.src.Cursor()

	label := st.String()
	if m.status != "" {
		label = string(m.status)
	}
	if m.cancelled {
		label = "closed"
	}

	parts := []string{label}
	if pos.InteractionID != "" {
		parts = append(parts, pos.InteractionID)
	}
	if pos.LastEventID != "" {
		parts = append(parts, "@"+pos.LastEventID)
	}
	parts = append(parts, fmt.Sprintf("%d blocks", len(m.order)))
	if m.done {
		if final := m.src.Interaction(); final != nil && final.Usage != nil && final.Usage.TotalTokens > 0 {
			parts = append(parts, fmt.Sprintf("%d tokens", final.Usage.TotalTokens))
			if cost, ok := telemetry.EstimateCost(final.Model, final.Usage); ok {
				parts = append(parts, fmt.Sprintf("~$%.4f", cost))
			}
		}
	} else {
		parts = append(parts, "q to stop")
	}

	line := render.Truncate("● "+strings.Join(parts, "  "), m.width)
	return m.styles.status(st).Render(line)
}

// Err returns the error that ended the stream, or nil for a clean finish or
// a user stop.
func (m Model) Err() error {
	if m.cancelled || m.err == nil || errors.Is(m.err, io.EOF) {
		return nil
	}
	return m.err
}

// Cancelled reports whether the user stopped the stream.
func (m Model) Cancelled() bool { return m.cancelled }
