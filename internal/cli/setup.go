package cli

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mgomes/nestfind/internal/config"
	"github.com/mgomes/nestfind/internal/logger"
	"github.com/mgomes/nestfind/internal/navigate"
	"github.com/mgomes/nestfind/internal/remote"
	"github.com/mgomes/nestfind/internal/tui"
	"github.com/spf13/cobra"
)

const pingTimeout = 10 * time.Second

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure the search service and site URLs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runSetupWizard(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetupWizard(ctx context.Context, cfg *config.Config) error {
	program := tea.NewProgram(newSetupRunner(ctx, cfg))

	finalModel, err := program.Run()
	if err != nil {
		return err
	}

	if runner, ok := finalModel.(setupRunner); ok && runner.done {
		cfg.Search.Backend = config.BackendRemote
		cfg.Remote.BaseURL = runner.submitted.BaseURL
		cfg.Remote.APIKey = runner.submitted.APIKey
		cfg.Site.BaseURL = runner.submitted.SiteURL
		return saveConfig(cfg)
	}

	return fmt.Errorf("setup cancelled")
}

type setupRunner struct {
	ctx        context.Context
	setupModel tui.SetupModel
	cfg        *config.Config
	submitted  tui.SetupSubmitMsg
	done       bool
}

func newSetupRunner(ctx context.Context, cfg *config.Config) setupRunner {
	return setupRunner{
		ctx:        ctx,
		setupModel: tui.NewSetupModel(cfg.Remote.BaseURL, cfg.Remote.APIKey, cfg.Site.BaseURL),
		cfg:        cfg,
	}
}

func (m setupRunner) Init() tea.Cmd {
	return tea.Batch(m.setupModel.Init(), tea.EnableBracketedPaste)
}

func (m setupRunner) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tui.SetupSubmitMsg:
		if err := m.validate(msg); err != nil {
			return m.fail(err.Error()), nil
		}
		m.submitted = msg
		m.done = true
		return m, tea.Quit

	default:
		newModel, cmd := m.setupModel.Update(msg)
		if sm, ok := newModel.(tui.SetupModel); ok {
			m.setupModel = sm
		}
		return m, cmd
	}
}

func (m setupRunner) validate(msg tui.SetupSubmitMsg) error {
	if _, err := navigate.New(msg.SiteURL); err != nil {
		return fmt.Errorf("invalid site URL: %w", err)
	}

	rc := remoteConfig(m.cfg)
	rc.BaseURL = msg.BaseURL
	rc.APIKey = msg.APIKey
	client, err := remote.NewClient(rc, logger.ForComponent("remote"))
	if err != nil {
		return fmt.Errorf("invalid search service URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(m.ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(ctx, m.cfg.Search.IndexNames[0]); err != nil {
		return fmt.Errorf("search service check failed: %w", err)
	}
	return nil
}

func (m setupRunner) fail(reason string) setupRunner {
	newModel, _ := m.setupModel.Update(tui.SetupErrorMsg{Error: reason})
	if sm, ok := newModel.(tui.SetupModel); ok {
		m.setupModel = sm
	}
	return m
}

func (m setupRunner) View() string {
	return m.setupModel.View()
}
