package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/icusim/icu-sim/pkg/chat"
	"github.com/icusim/icu-sim/pkg/debrief"
	"github.com/icusim/icu-sim/pkg/handoff"
	"github.com/icusim/icu-sim/pkg/scenario"
	"github.com/icusim/icu-sim/pkg/session"
)

const (
	NurseName       = "Nurse"
	PlaceHolderText = "Talk to the nurse, or /help for orders..."
)

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	client       *http.Client
	session      *session.Session
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	err          error
	loading      bool

	// Scenario selection state
	showScenarioModal bool
	scenarios         []scenario.Summary
	selectedScenario  int
	loadingScenarios  bool

	// Quit confirmation state
	showQuitModal bool

	// Extra transcript lines (debrief, feedback, notices)
	notices []string

	progressTick int
}

type chatResponseMsg struct {
	response *chat.Response
	err      error
}

type sessionMsg struct {
	session *session.Session
	err     error
}

type scenariosLoadedMsg struct {
	scenarios []scenario.Summary
	err       error
}

type noticeMsg struct {
	text string
	err  error
}

type debriefMsg struct {
	resp *diagnosisResponse
	err  error
}

type feedbackMsg struct {
	feedback *handoff.Feedback
	err      error
}

type progressTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	nurseStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)
)

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 1000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true
	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		config:            cfg,
		client:            client,
		textarea:          ta,
		chatViewport:      chatVp,
		metaViewport:      metaVp,
		showScenarioModal: true,
		loadingScenarios:  true,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return m.loadScenarios()
}

func (m ConsoleUI) loadScenarios() tea.Cmd {
	return func() tea.Msg {
		summaries, err := listScenarios(m.client, m.config.APIBaseURL)
		return scenariosLoadedMsg{scenarios: summaries, err: err}
	}
}

func (m ConsoleUI) beginSession(scenarioID string) tea.Cmd {
	return func() tea.Msg {
		s, err := createSession(m.client, m.config.APIBaseURL, scenarioID)
		if err != nil {
			return sessionMsg{err: err}
		}
		started, err := startSession(m.client, m.config.APIBaseURL, s.ID)
		return sessionMsg{session: started, err: err}
	}
}

func (m ConsoleUI) sendChatMessage(input string) tea.Cmd {
	return func() tea.Msg {
		resp, err := sendChat(m.client, m.config.APIBaseURL, m.session.ID, input)
		return chatResponseMsg{response: resp, err: err}
	}
}

func (m ConsoleUI) refreshSession() tea.Cmd {
	return func() tea.Msg {
		s, err := getSession(m.client, m.config.APIBaseURL, m.session.ID)
		return sessionMsg{session: s, err: err}
	}
}

func progressTicker() tea.Cmd {
	return tea.Tick(300*time.Millisecond, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showScenarioModal {
		return m.updateScenarioModal(msg)
	}
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		return m, vpCmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()

			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}

			m.loading = true
			m.progressTick = 0
			m.err = nil
			_ = m.session.AppendUserMessage(input)
			m.writeChatContent()
			return m, tea.Batch(m.sendChatMessage(input), progressTicker())
		}

	case chatResponseMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			_ = m.session.AppendNurseMessage(msg.response.Reply)
		}
		m.writeChatContent()
		m.chatViewport.GotoBottom()
		return m, m.refreshSession()

	case sessionMsg:
		if msg.err != nil {
			m.err = msg.err
			m.writeChatContent()
			return m, nil
		}
		m.session = msg.session
		m.writeChatContent()
		m.metaViewport.SetContent(m.writeMetadata())
		m.chatViewport.GotoBottom()

	case noticeMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.notices = append(m.notices, msg.text)
		}
		m.writeChatContent()
		m.chatViewport.GotoBottom()
		return m, m.refreshSession()

	case debriefMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.session = &msg.resp.Session
			m.notices = append(m.notices, renderDebrief(&msg.resp.Debrief))
		}
		m.writeChatContent()
		m.metaViewport.SetContent(m.writeMetadata())
		m.chatViewport.GotoBottom()

	case feedbackMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.notices = append(m.notices, renderFeedback(msg.feedback))
		}
		m.writeChatContent()
		m.chatViewport.GotoBottom()
		return m, m.refreshSession()

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeChatContent()
			return m, progressTicker()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

func (m *ConsoleUI) resize() {
	chatWidth := int(float64(m.width)*0.72) - 4
	metaWidth := m.width - chatWidth - 6

	m.chatViewport.Width = chatWidth - 2
	m.chatViewport.Height = m.height - 7
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
	m.textarea.SetWidth(chatWidth - 4)

	m.writeChatContent()
	if m.session != nil {
		m.metaViewport.SetContent(m.writeMetadata())
	}
}

// handleCommand dispatches slash commands to the API.
func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/help":
		m.notices = append(m.notices, helpText)
		m.writeChatContent()
		m.chatViewport.GotoBottom()
		return m, nil

	case "/exam", "/pocus":
		if len(args) < 1 {
			m.err = fmt.Errorf("usage: %s <item>", cmd)
			m.writeChatContent()
			return m, nil
		}
		kind := session.ExamKindPhysical
		if cmd == "/pocus" {
			kind = session.ExamKindImaging
		}
		item := args[0]
		m.loading = true
		return m, tea.Batch(func() tea.Msg {
			finding, err := examine(m.client, m.config.APIBaseURL, m.session.ID, kind, item)
			if err != nil {
				return noticeMsg{err: err}
			}
			return noticeMsg{text: systemStyle.Render(fmt.Sprintf("[%s] %s", finding.Item, finding.Result))}
		}, progressTicker())

	case "/labs":
		if len(args) < 2 {
			m.err = fmt.Errorf("usage: /labs <category> <item,item,...>")
			m.writeChatContent()
			return m, nil
		}
		category := args[0]
		items := strings.Split(args[1], ",")
		m.loading = true
		return m, tea.Batch(func() tea.Msg {
			resp, err := orderInvestigations(m.client, m.config.APIBaseURL, m.session.ID, category, items)
			if err != nil {
				return noticeMsg{err: err}
			}
			return noticeMsg{text: systemStyle.Render(
				fmt.Sprintf("Ordered %s, results in %s", resp.Order.Label, resp.ReadyIn))}
		}, progressTicker())

	case "/results":
		m.loading = true
		return m, tea.Batch(func() tea.Msg {
			groups, err := getResults(m.client, m.config.APIBaseURL, m.session.ID)
			if err != nil {
				return noticeMsg{err: err}
			}
			return noticeMsg{text: renderResults(groups)}
		}, progressTicker())

	case "/med":
		if len(args) < 3 {
			m.err = fmt.Errorf("usage: /med <name> <dose> <unit>")
			m.writeChatContent()
			return m, nil
		}
		dose, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			m.err = fmt.Errorf("invalid dose: %s", args[1])
			m.writeChatContent()
			return m, nil
		}
		name, unit := args[0], args[2]
		m.loading = true
		return m, tea.Batch(func() tea.Msg {
			resp, err := orderMedication(m.client, m.config.APIBaseURL, m.session.ID, name, dose, unit)
			if err != nil {
				return noticeMsg{err: err}
			}
			text := fmt.Sprintf("Ordered %s %g%s", resp.Order.Name, resp.Order.Dose, resp.Order.Unit)
			if resp.Order.Warning != "" {
				text += "\n" + errorStyle.Render("Warning: "+resp.Order.Warning)
			}
			if resp.Contraindication != "" {
				text += "\n" + errorStyle.Render(resp.Contraindication)
			}
			return noticeMsg{text: systemStyle.Render(text)}
		}, progressTicker())

	case "/diagnose":
		if len(args) < 1 {
			m.err = fmt.Errorf("usage: /diagnose <diagnosis>")
			m.writeChatContent()
			return m, nil
		}
		diagnosis := strings.Join(args, " ")
		m.loading = true
		return m, tea.Batch(func() tea.Msg {
			resp, err := submitDiagnosis(m.client, m.config.APIBaseURL, m.session.ID, diagnosis)
			return debriefMsg{resp: resp, err: err}
		}, progressTicker())

	case "/handoff":
		if len(args) < 1 {
			m.err = fmt.Errorf("usage: /handoff <report text>")
			m.writeChatContent()
			return m, nil
		}
		content := strings.Join(args, " ")
		m.loading = true
		return m, tea.Batch(func() tea.Msg {
			fb, err := submitHandoff(m.client, m.config.APIBaseURL, m.session.ID, content)
			return feedbackMsg{feedback: fb, err: err}
		}, progressTicker())

	default:
		m.err = fmt.Errorf("unknown command %s, try /help", cmd)
		m.writeChatContent()
		return m, nil
	}
}

const helpText = `Commands:
  /exam <item>               physical exam (e.g. /exam cardiac-jvp)
  /pocus <view>              bedside ultrasound (e.g. /pocus plax)
  /labs <category> <items>   order labs (e.g. /labs biochemistry lactate,creatinine)
  /results                   show ordered investigation results
  /med <name> <dose> <unit>  order medication (e.g. /med norepinephrine 0.1 mcg/kg/min)
  /handoff <text>            present your handoff for grading
  /diagnose <diagnosis>      commit a diagnosis and end the case
Anything else is said to the nurse.`

func (m *ConsoleUI) writeChatContent() {
	chatWidth := m.chatViewport.Width - 6
	if chatWidth < 20 {
		chatWidth = 20
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("ICU SIMULATOR") + "\n\n")
	content.WriteString("You are the doctor on call. Work the case, then commit a diagnosis.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", chatWidth-6)) + "\n\n")

	if m.session != nil {
		for _, msg := range m.session.Messages {
			switch msg.Role {
			case chat.RoleNurse:
				content.WriteString(nurseStyle.Render(NurseName+": ") +
					wordwrap.String(msg.Content, chatWidth-len(NurseName)-2) + "\n\n")
			case chat.RoleUser:
				content.WriteString(userStyle.Render("You: ") +
					wordwrap.String(msg.Content, chatWidth-6) + "\n\n")
			case chat.RoleSystem:
				content.WriteString(systemStyle.Render(wordwrap.String(msg.Content, chatWidth)) + "\n\n")
			}
		}
	}

	for _, n := range m.notices {
		content.WriteString(wordwrap.String(n, chatWidth) + "\n\n")
	}

	if m.err != nil {
		content.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n\n")
	}
	if m.loading {
		dots := strings.Repeat(".", m.progressTick%4)
		content.WriteString(promptStyle.Render("working"+dots) + "\n")
	}

	m.chatViewport.SetContent(content.String())
}

func (m *ConsoleUI) writeMetadata() string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("PATIENT") + "\n\n")

	s := m.session
	content.WriteString(fmt.Sprintf("Phase: %s\n\n", s.Phase))
	content.WriteString("Vitals:\n")
	content.WriteString(fmt.Sprintf("  HR   %d\n", s.Vitals.HR))
	content.WriteString(fmt.Sprintf("  BP   %d/%d\n", s.Vitals.BPSystolic, s.Vitals.BPDiastolic))
	content.WriteString(fmt.Sprintf("  RR   %d\n", s.Vitals.RR))
	content.WriteString(fmt.Sprintf("  SpO2 %d%%\n", s.Vitals.SpO2))
	content.WriteString(fmt.Sprintf("  Temp %.1f\n\n", s.Vitals.Temperature))

	if len(s.Investigations) > 0 {
		content.WriteString("Investigations:\n")
		for _, order := range s.Investigations {
			status := "pending"
			if order.ResultsAvailable {
				status = "ready"
			}
			content.WriteString(fmt.Sprintf("  %s (%s)\n", order.Label, status))
		}
		content.WriteString("\n")
	}

	if len(s.Medications) > 0 {
		content.WriteString("Medications:\n")
		for _, med := range s.Medications {
			content.WriteString(fmt.Sprintf("  %s %g%s\n", med.Name, med.Dose, med.Unit))
		}
		content.WriteString("\n")
	}

	content.WriteString("Keys:\n")
	content.WriteString("  Ctrl+C quit\n")
	content.WriteString("  Enter  send\n")
	content.WriteString("  /help  orders\n")
	return content.String()
}

func renderDebrief(d *debrief.Debrief) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("DEBRIEF") + "\n")
	if d.Correct {
		b.WriteString(nurseStyle.Render(fmt.Sprintf("Correct: %s", d.SubmittedLabel)) + "\n")
	} else {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Incorrect: %s (was %s)",
			d.SubmittedLabel, debrief.DiagnosisLabel(d.CorrectDiagnosis))) + "\n")
	}
	if len(d.DiscoveredFindings) > 0 {
		b.WriteString("Found: " + strings.Join(d.DiscoveredFindings, "; ") + "\n")
	}
	if len(d.MissedFindings) > 0 {
		b.WriteString("Missed: " + strings.Join(d.MissedFindings, "; ") + "\n")
	}
	if len(d.ContraindicatedTreatments) > 0 {
		b.WriteString(errorStyle.Render("Contraindicated: "+strings.Join(d.ContraindicatedTreatments, "; ")) + "\n")
	}
	for _, lp := range d.LearningPoints {
		b.WriteString("• " + lp + "\n")
	}
	return b.String()
}

func renderResults(groups []investigationResultsGroup) string {
	if len(groups) == 0 {
		return systemStyle.Render("No investigations ordered.")
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("RESULTS") + "\n")
	for _, g := range groups {
		if g.Pending {
			b.WriteString(systemStyle.Render(g.Label+": pending") + "\n")
			continue
		}
		b.WriteString(g.Label + ":\n")
		for _, res := range g.Results {
			line := fmt.Sprintf("  %-18s %s", res.Item, res.Value)
			if res.Flag != "" {
				line += " " + errorStyle.Render("["+strings.ToUpper(res.Flag)+"]")
			}
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}

func renderFeedback(f *handoff.Feedback) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("HANDOFF FEEDBACK") + "\n")
	b.WriteString(fmt.Sprintf("%s (%d/100)\n", f.Overall, f.Score))
	for _, s := range f.Strengths {
		b.WriteString(nurseStyle.Render("+ "+s) + "\n")
	}
	for _, p := range f.MissedPoints {
		b.WriteString(errorStyle.Render("- "+p) + "\n")
	}
	b.WriteString(f.SeniorComment + "\n")
	return b.String()
}

func (m ConsoleUI) updateScenarioModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case scenariosLoadedMsg:
		m.loadingScenarios = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.scenarios = msg.scenarios

	case sessionMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.session = msg.session
		m.showScenarioModal = false
		m.resize()
		m.metaViewport.SetContent(m.writeMetadata())
		return m, textarea.Blink

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyUp:
			if m.selectedScenario > 0 {
				m.selectedScenario--
			}
		case tea.KeyDown:
			if m.selectedScenario < len(m.scenarios)-1 {
				m.selectedScenario++
			}
		case tea.KeyEnter:
			if len(m.scenarios) == 0 {
				return m, nil
			}
			return m, m.beginSession(m.scenarios[m.selectedScenario].ID)
		}
	}
	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch strings.ToLower(key.String()) {
		case "y", "enter":
			return m, tea.Quit
		case "n", "esc":
			m.showQuitModal = false
		}
	}
	return m, nil
}

func (m ConsoleUI) View() string {
	if m.showScenarioModal {
		return m.viewScenarioModal()
	}
	if m.showQuitModal {
		return m.viewQuitModal()
	}
	if !m.ready {
		return "Loading..."
	}

	chatPane := chatPanelStyle.Render(
		m.chatViewport.View() + "\n\n" + m.textarea.View())
	metaPane := metaPanelStyle.Render(m.metaViewport.View())

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPane, metaPane)
}

func (m ConsoleUI) viewScenarioModal() string {
	var b strings.Builder
	b.WriteString(modalTitleStyle.Render("Select a Case") + "\n\n")

	switch {
	case m.loadingScenarios:
		b.WriteString("Loading scenarios...")
	case m.err != nil:
		b.WriteString(errorStyle.Render(m.err.Error()))
	case len(m.scenarios) == 0:
		b.WriteString("No scenarios available.")
	default:
		for i, sc := range m.scenarios {
			line := fmt.Sprintf("%s (%s)", sc.Title, sc.Difficulty)
			if i == m.selectedScenario {
				b.WriteString(modalSelectedItemStyle.Render("> "+line) + "\n")
			} else {
				b.WriteString(modalItemStyle.Render("  "+line) + "\n")
			}
		}
		b.WriteString("\n" + promptStyle.Render("↑/↓ select, Enter start, Esc quit"))
	}

	modal := modalStyle.Render(b.String())
	if m.width > 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal)
	}
	return modal
}

func (m ConsoleUI) viewQuitModal() string {
	modal := modalStyle.Render(
		modalTitleStyle.Render("Leave the simulation?") + "\n\n" +
			modalItemStyle.Render("y - quit    n - stay"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal)
}
