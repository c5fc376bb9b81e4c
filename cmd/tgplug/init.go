package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/tgplug/internal/config"
)

var tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// initAnswers holds what the setup wizard asks for.
type initAnswers struct {
	Token   string
	Users   string
	Plugins []string
	Gateway bool
	Bind    string
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("output")
			force, _ := cmd.Flags().GetBool("force")
			if path == "" {
				path = config.SearchPaths()[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			answers := initAnswers{
				Plugins: []string{"plugin.start"},
				Bind:    "127.0.0.1:8080",
			}
			if err := askInit(&answers); err != nil {
				return err
			}

			data, err := renderConfig(answers)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\nRun: tgplug start -c %s\n", path, path)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Where to write the configuration")
	cmd.Flags().Bool("force", false, "Overwrite an existing file")
	return cmd
}

func askInit(a *initAnswers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Bot token").
				Description("From @BotFather, e.g. 123456:ABC-DEF...").
				EchoMode(huh.EchoModePassword).
				Validate(validateToken).
				Value(&a.Token),
			huh.NewInput().
				Title("Allowed users").
				Description("Comma-separated ids or @usernames; empty leaves the bot open").
				Value(&a.Users),
		),
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Plugins").
				Options(huh.NewOptions(
					"plugin.start",
					"plugin.notes",
					"plugin.announce",
					"plugin.tap",
				)...).
				Value(&a.Plugins),
			huh.NewConfirm().
				Title("Enable the HTTP gateway (health, metrics, status)?").
				Value(&a.Gateway),
		),
	)
	return form.Run()
}

func validateToken(s string) error {
	if !tokenPattern.MatchString(strings.TrimSpace(s)) {
		return errors.New("expected <bot id>:<secret>")
	}
	return nil
}

// renderConfig turns the wizard answers into a configuration file.
func renderConfig(a initAnswers) ([]byte, error) {
	if err := validateToken(a.Token); err != nil {
		return nil, err
	}

	modules := map[string]any{
		"bot.telegram": map[string]any{"token": strings.TrimSpace(a.Token)},
	}

	var users []string
	for _, u := range strings.Split(a.Users, ",") {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		users = append(users, u)
	}
	if len(users) > 0 {
		modules["plugin.guard"] = map[string]any{"users": users}
	}

	for _, p := range a.Plugins {
		switch p {
		case "plugin.announce":
			modules[p] = map[string]any{"timezone": "UTC", "jobs": []any{}}
		case "plugin.tap":
			modules[p] = map[string]any{}
			a.Gateway = true
		default:
			modules[p] = map[string]any{}
		}
	}
	if a.Gateway {
		modules["gateway.http"] = map[string]any{"bind": a.Bind}
	}

	doc := map[string]any{
		"version": "1",
		"log":     map[string]any{"level": "info", "format": config.LogFormatText},
		"modules": modules,
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("init: encoding config: %w", err)
	}
	return out, nil
}
