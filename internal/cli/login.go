package cli

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/quasar/mcfleet/internal/app"
	"github.com/quasar/mcfleet/internal/auth"
)

var loginKey string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with a Microsoft account via device code",
	Long: `Runs the interactive device-code login: a short code is shown (and
copied to the clipboard) for you to enter at microsoft.com/link. On success
the account is registered and its credential cached for silent reuse.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		model := newLoginModel(a, loginKey)
		final, err := tea.NewProgram(model).Run()
		if err != nil {
			return fmt.Errorf("running login view: %w", err)
		}
		m := final.(*loginModel)
		switch m.phase {
		case phaseSuccess:
			fmt.Printf("Logged in as %s (%s)\n", m.profile.Username, m.profile.UUID)
			return nil
		case phaseError:
			return m.err
		default:
			return fmt.Errorf("login aborted")
		}
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginKey, "key", "default", "Credential cache key for this login")
}

type loginPhase int

const (
	phaseRequestingCode loginPhase = iota
	phaseWaitingForUser
	phaseExchanging
	phaseSuccess
	phaseError
)

type loginModel struct {
	app *app.App
	key string

	phase        loginPhase
	verification *auth.VerificationInfo
	status       string
	profile      auth.Profile
	err          error
	copied       bool

	states  chan auth.State
	spinner spinner.Model
}

func newLoginModel(a *app.App, key string) *loginModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &loginModel{
		app:     a,
		key:     key,
		phase:   phaseRequestingCode,
		states:  make(chan auth.State, 16),
		spinner: s,
	}
}

// report feeds state transitions from the auth goroutines into the view.
// Never blocks the flow; a stalled view just misses intermediate states.
func (m *loginModel) report(state auth.State) {
	select {
	case m.states <- state:
	default:
	}
}

func (m *loginModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startLogin, m.waitForState)
}

func (m *loginModel) startLogin() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	v, err := m.app.AuthInit(ctx, m.key, m.report)
	if err != nil {
		return loginErrMsg{err: err}
	}
	return verificationMsg{info: v}
}

func (m *loginModel) finishLogin() tea.Cmd {
	return func() tea.Msg {
		_, profile, err := m.app.AuthFinish(context.Background(), m.key,
			auth.DefaultAuthTimeout, true, m.report)
		if err != nil {
			return loginErrMsg{err: err}
		}
		return loginDoneMsg{profile: profile}
	}
}

func (m *loginModel) waitForState() tea.Msg {
	return authStateMsg{state: <-m.states}
}

func (m *loginModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			if m.phase != phaseSuccess {
				m.err = fmt.Errorf("login cancelled")
				m.phase = phaseError
			}
			return m, tea.Quit
		case "o":
			if m.phase == phaseWaitingForUser && m.verification != nil {
				openBrowser(m.verification.URI)
			}
		case "c":
			if m.phase == phaseWaitingForUser && m.verification != nil {
				copyToClipboard(m.verification.Code)
				m.copied = true
				return m, tea.Tick(2*time.Second, func(time.Time) tea.Msg { return clearCopiedMsg{} })
			}
		case "enter":
			if m.phase == phaseSuccess {
				return m, tea.Quit
			}
		}

	case verificationMsg:
		m.verification = msg.info
		m.phase = phaseWaitingForUser
		copyToClipboard(msg.info.Code)
		m.copied = true
		return m, tea.Batch(
			m.finishLogin(),
			tea.Tick(time.Second, func(time.Time) tea.Msg { return openBrowserMsg{} }),
			tea.Tick(3*time.Second, func(time.Time) tea.Msg { return clearCopiedMsg{} }),
		)

	case authStateMsg:
		m.status = msg.state.Message
		// The device-code poll ends once an MS access token arrives; from
		// there the view shows the token exchange chain.
		if m.phase == phaseWaitingForUser && msg.state.Kind == auth.StateWorking &&
			strings.HasPrefix(msg.state.Message, "Got Microsoft access token") {
			m.phase = phaseExchanging
		}
		return m, m.waitForState

	case loginDoneMsg:
		m.phase = phaseSuccess
		m.profile = msg.profile
		return m, tea.Tick(2*time.Second, func(time.Time) tea.Msg { return tea.Quit() })

	case loginErrMsg:
		m.phase = phaseError
		m.err = msg.err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case openBrowserMsg:
		if m.verification != nil {
			openBrowser(m.verification.URI)
		}
		return m, nil

	case clearCopiedMsg:
		m.copied = false
		return m, nil
	}

	return m, nil
}

func (m *loginModel) View() string {
	doc := lipgloss.NewStyle().Padding(1, 2)

	var content string
	switch m.phase {
	case phaseRequestingCode:
		content = fmt.Sprintf("%s Contacting Microsoft...", m.spinner.View())

	case phaseWaitingForUser:
		codeText := m.verification.Code
		if m.copied {
			codeText += "  ✓ Copied!"
		}
		box := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 2).
			Render(codeText)

		content = fmt.Sprintf(`Microsoft Authentication

To sign in, use a web browser to open the page:
%s

And enter the code:
%s

%s Waiting for you to sign in...
[c] Copy code • [o] Open browser • [esc] Cancel
`,
			lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Render(m.verification.URI),
			box,
			m.spinner.View())

	case phaseExchanging:
		content = fmt.Sprintf("%s %s", m.spinner.View(), m.status)

	case phaseSuccess:
		content = fmt.Sprintf("✅ Successfully logged in as %s!", m.profile.Username)

	case phaseError:
		content = fmt.Sprintf("❌ Error: %v", m.err)
	}

	return doc.Render(content)
}

type verificationMsg struct{ info *auth.VerificationInfo }
type authStateMsg struct{ state auth.State }
type loginDoneMsg struct{ profile auth.Profile }
type loginErrMsg struct{ err error }
type clearCopiedMsg struct{}
type openBrowserMsg struct{}

func openBrowser(url string) {
	switch runtime.GOOS {
	case "linux":
		_ = exec.Command("xdg-open", url).Start()
	case "windows":
		_ = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		_ = exec.Command("open", url).Start()
	}
}

func copyToClipboard(text string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("pbcopy")
	case "linux":
		if _, err := exec.LookPath("wl-copy"); err == nil {
			cmd = exec.Command("wl-copy")
		} else {
			cmd = exec.Command("xclip", "-selection", "clipboard")
		}
	default:
		return fmt.Errorf("unsupported platform")
	}

	in, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	if _, err := in.Write([]byte(text)); err != nil {
		return err
	}
	if err := in.Close(); err != nil {
		return err
	}
	return cmd.Wait()
}
