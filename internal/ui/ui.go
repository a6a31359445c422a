package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ConfirmView ViewState = iota
	DownloadView
	ResultView
)

// maxLogLines bounds the per-track log kept on screen.
const maxLogLines = 12

// RunFunc starts the download and reports through progress. It must not close progress.
type RunFunc func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*models.DownloadRun, error)

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	cancel    context.CancelFunc
	view      ViewState
	playlist  *models.Playlist
	census    tasks.Census
	status    string
	run       RunFunc
	width     int
	spinner   spinner.Model
	bar       progress.Model
	progress  tasks.ProgressUpdate
	lines     []string
	updates   chan tasks.ProgressUpdate
	result    *models.DownloadRun
	err       error
	carAudio  bool
	autoStart bool
	help      help.Model
	keys      keyMap
}

// NewModel creates a download monitor. status is the assistant status line shown before starting.
func NewModel(ctx context.Context, playlist *models.Playlist, census tasks.Census, status string, run RunFunc) *Model {
	ctx, cancel := context.WithCancel(ctx)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.title.UnsetMarginBottom()

	return &Model{
		ctx:      ctx,
		cancel:   cancel,
		view:     ConfirmView,
		playlist: playlist,
		census:   census,
		status:   status,
		run:      run,
		spinner:  s,
		bar:      progress.New(progress.WithDefaultGradient()),
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// AutoStart skips the confirmation view.
func (m *Model) AutoStart() *Model {
	m.autoStart = true
	return m
}

// Result returns the finished run, if any, and its error.
func (m *Model) Result() (*models.DownloadRun, error) {
	return m.result, m.err
}

// WantsCarAudio reports whether the user asked for car-audio repackaging from the result view.
func (m *Model) WantsCarAudio() bool {
	return m.carAudio
}

// Init starts the spinner, and the download when auto-start is set or nothing is pending.
func (m *Model) Init() tea.Cmd {
	if m.autoStart && m.census.New() > 0 {
		return m.start()
	}
	return m.spinner.Tick
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(msg.Width-8, 10)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		model, cmd := m.bar.Update(msg)
		m.bar = model.(progress.Model)
		return m, cmd

	case progressUpdateMsg:
		update := tasks.ProgressUpdate(msg)
		m.progress = update
		m.appendLine(update.Message)

		var cmd tea.Cmd
		if update.Total > 0 {
			cmd = m.bar.SetPercent(float64(update.Step) / float64(update.Total))
		}
		return m, tea.Batch(cmd, m.waitForProgress())

	case downloadCompleteMsg:
		m.result = msg.run
		m.err = msg.err
		m.view = ResultView
		m.updates = nil
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.quit) {
		if m.view == DownloadView {
			m.cancel()
			m.appendLine(styles.Warn("Stopping after the current track..."))
			return m, nil
		}
		m.cancel()
		return m, tea.Quit
	}

	switch m.view {
	case ConfirmView:
		if key.Matches(msg, m.keys.start) && m.census.New() > 0 {
			return m, m.start()
		}
		if key.Matches(msg, m.keys.carAudio) {
			m.carAudio = true
			return m, tea.Quit
		}
	case ResultView:
		if key.Matches(msg, m.keys.carAudio) {
			m.carAudio = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case ConfirmView:
		return m.renderConfirm()
	case DownloadView:
		return m.renderDownload()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) start() tea.Cmd {
	m.view = DownloadView
	m.updates = make(chan tasks.ProgressUpdate, tasks.ProgressCapacity(m.census.Total))
	updates := m.updates

	go func() {
		run, err := m.run(m.ctx, updates)
		m.result = run
		m.err = err
		close(updates)
	}()

	return tea.Batch(m.spinner.Tick, m.waitForProgress())
}

func (m *Model) waitForProgress() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		if updates == nil {
			return downloadCompleteMsg{run: m.result, err: m.err}
		}
		update, ok := <-updates
		if !ok {
			return downloadCompleteMsg{run: m.result, err: m.err}
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) appendLine(line string) {
	if line == "" {
		return
	}
	m.lines = append(m.lines, strings.Split(line, "\n")...)
	if over := len(m.lines) - maxLogLines; over > 0 {
		m.lines = m.lines[over:]
	}
}

func (m *Model) renderConfirm() string {
	var b strings.Builder
	b.WriteString(styles.Title(fmt.Sprintf("🎵 %s", m.playlist.Name)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Found %d tracks in playlist.\n", m.census.Total)
	fmt.Fprintf(&b, "Already downloaded: %d tracks\n", m.census.Downloaded)
	fmt.Fprintf(&b, "New tracks to download: %d tracks\n", m.census.New())
	fmt.Fprintf(&b, "Download directory: %s\n", m.census.Dir)
	if m.status != "" {
		fmt.Fprintf(&b, "%s\n", m.status)
	}
	b.WriteString("\n")

	if m.census.New() == 0 {
		b.WriteString(styles.OK("✅ All tracks already downloaded! No new downloads needed."))
		b.WriteString("\n\n")
		b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.carAudio, m.keys.quit}))
		return b.String()
	}

	for i, t := range m.census.Pending {
		if i == 5 {
			fmt.Fprintf(&b, "  ... and %d more\n", len(m.census.Pending)-5)
			break
		}
		fmt.Fprintf(&b, "  • %s\n", t)
	}
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.start, m.keys.quit}))
	return b.String()
}

func (m *Model) renderDownload() string {
	var b strings.Builder
	b.WriteString(styles.Title(fmt.Sprintf("Downloading %s", m.playlist.Name)))
	b.WriteString("\n")

	phase := "Starting..."
	if m.progress.Total > 0 {
		phase = fmt.Sprintf("%s track %d/%d", m.progress.Phase, m.progress.Step, m.progress.Total)
	}
	fmt.Fprintf(&b, "%s %s\n\n", m.spinner.View(), phase)
	b.WriteString(m.bar.View())
	b.WriteString("\n\n")

	for _, line := range m.lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	return b.String()
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.carAudio, m.keys.quit})

	if m.err != nil && m.result == nil {
		return styles.Error(fmt.Sprintf("Download failed: %v", m.err)) + "\n\n" + helpView
	}
	if m.result == nil {
		return styles.Error("No result available") + "\n\n" + helpView
	}

	s := m.result.Summary()
	var b strings.Builder
	if s.Interrupted {
		b.WriteString(styles.Warn("Download interrupted by user."))
	} else {
		b.WriteString(styles.OK(fmt.Sprintf("Downloads complete! Successfully downloaded %d new tracks.", s.Downloaded)))
	}
	fmt.Fprintf(&b, "\n\nSkipped: %d\nDownloaded: %d\nFailed: %d\nTotal: %d\n", s.Skipped, s.Downloaded, s.Failed, s.Total)

	var failed []string
	for _, o := range m.result.Outcomes() {
		if o.State == models.StateFailed {
			failed = append(failed, fmt.Sprintf("  • %s - %s", o.Artist, o.Title))
		}
	}
	if len(failed) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.Warn(fmt.Sprintf("Failed to download %d tracks:", len(failed))))
		b.WriteString("\n")
		b.WriteString(strings.Join(failed, "\n"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpView)
	return b.String()
}
