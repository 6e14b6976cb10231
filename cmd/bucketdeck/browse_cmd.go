package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"bucketdeck/internal/browser"
	"bucketdeck/internal/events"
	"bucketdeck/internal/flags"
	"bucketdeck/internal/logger"
	"bucketdeck/internal/service"
	"bucketdeck/internal/transfer"
	"bucketdeck/pkg/storage"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/cobra"
)

const (
	pollInterval     = 50 * time.Millisecond
	previewLines     = 8
	reservedRows     = 16
	minListRows      = 5
	jobBarWidth      = 24
	nameWidth        = 40
	defaultTermWidth = 80
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	pathStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	cursorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	folderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	paneStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")).Padding(0, 1)
)

const browseHelp = "↑/↓ move  enter open  ← up  [/] back/fwd  space select  / filter  n mkdir  d delete  " +
	"c copy  m move  u upload  s save  p presign  i info  r refresh  x clear jobs  esc dismiss  q quit"

func newBrowseCmd() *cobra.Command {
	var (
		logFile  string
		pageSize int
	)

	browseCmd := &cobra.Command{
		Use:   "browse [path]",
		Short: "Browse the bucket interactively",
		Long: `Opens a terminal browser on the bucket of the selected profile. Logs are discarded
unless --log-file is given, since the terminal is taken over by the browser.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFromContext(cmd.Context())
			if err != nil {
				return err
			}

			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
				if err != nil {
					return fmt.Errorf("error opening log file: %w", err)
				}
				app.RedirectLogs(logger.NewLogger(f, app.opts.debug), f)
			} else {
				app.RedirectLogs(logger.Discard(), nil)
			}

			client, err := app.OpenClient(cmd.Context())
			if err != nil {
				return err
			}

			start := ""
			if len(args) == 1 {
				start = args[0]
			}
			model := newBrowseModel(client, pageSize, app)
			model.state.Open(start)
			model.state.LoadBucketInfo()

			program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			if _, err := program.Run(); err != nil && cmd.Context().Err() == nil {
				return fmt.Errorf("browser failed: %w", err)
			}
			return nil
		},
	}
	browseCmd.Flags().StringVar(&logFile, flags.LogFile, "", "Append logs to this file")
	browseCmd.Flags().IntVar(&pageSize, flags.PageSize, storage.DefaultPageSize, "Number of entries requested per page")
	return browseCmd
}

type inputMode int

const (
	modeNone inputMode = iota
	modeFilter
	modeMkdir
	modeUpload
	modeDownload
	modeCopy
	modeMove
	modeConfirmDelete
)

func (m inputMode) label() string {
	switch m {
	case modeFilter:
		return "Filter: "
	case modeMkdir:
		return "New folder: "
	case modeUpload:
		return "Upload file: "
	case modeDownload:
		return "Save to: "
	case modeCopy:
		return "Copy to: "
	case modeMove:
		return "Move to: "
	default:
		return ""
	}
}

type pollMsg time.Time

func poll() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return pollMsg(t) })
}

// browseModel renders browser.State. All state changes go through State; the model only keeps
// what is purely visual
type browseModel struct {
	state   *browser.State
	app     *appContainer
	bucket  string
	spinner spinner.Model
	bar     progress.Model
	input   textinput.Model

	mode     inputMode
	target   string
	pending  int
	showInfo bool
	width    int
	height   int
}

func newBrowseModel(client *service.Client, pageSize int, app *appContainer) browseModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	ti := textinput.New()
	ti.CharLimit = 1024

	return browseModel{
		state:   browser.NewState(client, pageSize, app.Logger),
		app:     app,
		bucket:  client.Config().Bucket,
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(jobBarWidth), progress.WithoutPercentage()),
		input:   ti,
		width:   defaultTermWidth,
	}
}

func (m browseModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, poll())
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case pollMsg:
		m.state.Poll()
		return m, poll()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		if m.mode != modeNone {
			return m.updateInput(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m browseModel) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cur, hasCur := m.state.Current()

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		m.state.MoveCursor(-1)
	case "down", "j":
		m.state.MoveCursor(1)
	case "pgup":
		m.state.MoveCursor(-m.listRows())
	case "pgdown":
		m.state.MoveCursor(m.listRows())
	case "enter", "right", "l":
		if hasCur {
			m.state.OpenEntry(cur)
		}
	case "backspace", "left", "h":
		m.state.Up()
	case "[":
		m.state.Navigate(events.NavBack, "")
	case "]":
		m.state.Navigate(events.NavForward, "")
	case "r":
		m.state.Refresh()
	case " ", "space":
		if hasCur {
			m.state.ToggleSelected(cur.Key)
		}
	case "d":
		m.pending = len(m.state.Selected())
		if m.pending == 0 && hasCur {
			m.pending = 1
		}
		if m.pending > 0 {
			m.mode = modeConfirmDelete
		}
	case "/":
		return m.prompt(modeFilter, "", m.state.Listing().Filter())
	case "n":
		return m.prompt(modeMkdir, "", "")
	case "u":
		return m.prompt(modeUpload, "", "")
	case "s":
		if hasCur && !cur.IsFolder() {
			return m.prompt(modeDownload, cur.Key, ".")
		}
	case "c":
		if hasCur && !cur.IsFolder() {
			return m.prompt(modeCopy, cur.Key, cur.Key)
		}
	case "m":
		if hasCur && !cur.IsFolder() {
			return m.prompt(modeMove, cur.Key, cur.Key)
		}
	case "p":
		if hasCur && !cur.IsFolder() {
			m.state.Presign(cur.Key, defaultPresignTTL)
		}
	case "i":
		m.showInfo = !m.showInfo
		if m.showInfo {
			m.state.LoadBucketInfo()
		}
	case "x":
		m.state.Jobs().DismissFinished()
	case "esc":
		m.state.DismissToast()
	}
	return m, nil
}

func (m browseModel) prompt(mode inputMode, target, initial string) (tea.Model, tea.Cmd) {
	m.mode = mode
	m.target = target
	m.input.Prompt = mode.label()
	m.input.SetValue(initial)
	m.input.CursorEnd()
	return m, m.input.Focus()
}

func (m browseModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode == modeConfirmDelete {
		if s := strings.ToLower(msg.String()); s == "y" {
			m.state.DeleteSelected()
		}
		m.mode = modeNone
		return m, nil
	}

	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeNone
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		m.submit(strings.TrimSpace(m.input.Value()))
		m.mode = modeNone
		m.input.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m browseModel) submit(value string) {
	switch m.mode {
	case modeFilter:
		m.state.SetFilter(value)
	case modeMkdir:
		if value != "" {
			m.state.CreateFolder(value)
		}
	case modeUpload:
		if value != "" {
			m.state.Upload(value)
		}
	case modeDownload:
		if value == "" {
			value = "."
		}
		m.state.Download(m.target, value)
	case modeCopy, modeMove:
		if value != "" && value != m.target {
			m.state.Copy(m.target, value, m.mode == modeMove)
		}
	}
}

func (m browseModel) listRows() int {
	if m.height == 0 {
		return minListRows * 3
	}
	return max(m.height-reservedRows, minListRows)
}

func (m browseModel) View() string {
	var sb strings.Builder

	lst := m.state.Listing()
	header := titleStyle.Render("bucketdeck") + " " + pathStyle.Render(m.bucket+":/"+lst.Path())
	if f := lst.Filter(); f != "" {
		header += dimStyle.Render(" filter:" + f)
	}
	if lst.Loading() {
		header += " " + m.spinner.View()
	}
	sb.WriteString(header + "\n\n")

	m.writeEntries(&sb)
	m.writeDetails(&sb)
	m.writeJobs(&sb)

	if toast, ok := m.state.Toast(); ok {
		if toast.IsError() {
			sb.WriteString(errorStyle.Render("✗ "+toast.Message) + "\n")
		} else {
			sb.WriteString(okStyle.Render("✓ "+toast.Message) + "\n")
		}
	}

	switch m.mode {
	case modeNone:
		sb.WriteString(dimStyle.Width(max(m.width, defaultTermWidth)).Render(browseHelp))
	case modeConfirmDelete:
		sb.WriteString(errorStyle.Render(fmt.Sprintf("Delete %d object(s)? [y/N]", m.pending)))
	default:
		sb.WriteString(m.input.View())
	}
	return sb.String()
}

func (m browseModel) writeEntries(sb *strings.Builder) {
	entries := m.state.Entries()
	lst := m.state.Listing()
	if len(entries) == 0 {
		switch {
		case lst.Err() != nil:
			sb.WriteString(errorStyle.Render("  listing failed, press r to retry") + "\n")
		case !lst.Loading():
			sb.WriteString(dimStyle.Render("  (empty)") + "\n")
		}
		return
	}

	rows := m.listRows()
	cursor := m.state.Cursor()
	start := max(0, min(cursor-rows/2, len(entries)-rows))
	end := min(len(entries), start+rows)

	for i := start; i < end; i++ {
		e := entries[i]
		marker := "  "
		if i == cursor {
			marker = cursorStyle.Render("> ")
		}
		sel := " "
		if e.Selected {
			sel = selectedStyle.Render("*")
		}

		name := fmt.Sprintf("%-*s", nameWidth, ansi.Truncate(e.Name(), nameWidth, "…"))
		size := storage.FormatBytes(int64(e.Size))
		modified := ""
		if e.LastModified != nil {
			modified = e.LastModified.Local().Format("2006-01-02 15:04")
		}
		if e.IsFolder() {
			name = folderStyle.Render(name)
			size = "-"
		}
		fmt.Fprintf(sb, "%s%s %s %10s  %s\n", marker, sel, name, size, dimStyle.Render(modified))
	}

	if !lst.Complete() {
		if lst.Loading() {
			sb.WriteString(dimStyle.Render("  loading more...") + "\n")
		} else {
			sb.WriteString(dimStyle.Render("  more entries below") + "\n")
		}
	}
}

func (m browseModel) writeDetails(sb *strings.Builder) {
	var lines []string

	if meta, ok := m.state.Metadata(); ok {
		lines = append(lines, fmt.Sprintf("%s  %s  %s", meta.Key, storage.FormatBytes(int64(meta.Size)), meta.ContentType))
		if meta.ETag != "" {
			lines = append(lines, dimStyle.Render("etag "+meta.ETag))
		}
	}

	if p, ok := m.state.PreviewData(); ok && p.Err == nil {
		lines = append(lines, previewText(p)...)
	}

	if cur, ok := m.state.Current(); ok && cur.URL != "" {
		lines = append(lines, okStyle.Render(cur.URL))
	}

	if m.showInfo {
		if info, ok := m.state.BucketInfo(); ok {
			lines = append(lines, strings.TrimRight(m.app.StorageFormatter.FormatBucketDetails(info), "\n"))
		}
	}

	if len(lines) > 0 {
		sb.WriteString("\n" + paneStyle.Width(max(m.width-4, 20)).Render(strings.Join(lines, "\n")) + "\n")
	}
}

func previewText(p browser.Preview) []string {
	if !strings.HasPrefix(p.ContentType, "text/") && !strings.Contains(p.ContentType, "json") {
		note := fmt.Sprintf("%s, %s", p.ContentType, storage.FormatBytes(int64(len(p.Data))))
		if p.Partial {
			note += " (head only)"
		}
		return []string{dimStyle.Render(note)}
	}

	lines := strings.Split(strings.ReplaceAll(string(p.Data), "\r\n", "\n"), "\n")
	if len(lines) > previewLines {
		lines = append(lines[:previewLines], dimStyle.Render("..."))
	}
	return lines
}

func (m browseModel) writeJobs(sb *strings.Builder) {
	jobs := m.state.Jobs().Jobs()
	if len(jobs) == 0 {
		return
	}

	sb.WriteString("\n")
	for _, job := range jobs {
		status := job.Status.String()
		switch job.Status {
		case transfer.Failed:
			status = errorStyle.Render(status)
		case transfer.Completed:
			status = okStyle.Render(status)
		}
		fmt.Fprintf(sb, "%-8s %s %s %s\n", job.Ref.Direction, m.bar.ViewAs(job.Rate()), status, job.Ref.Key)
	}
}
