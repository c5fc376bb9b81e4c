package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/flemzord/tgplug/pkg/app"
)

const serviceStopTimeout = 30 * time.Second

// program adapts app.Run to the service manager's Start/Stop contract.
type program struct {
	params app.RunParams
	logger service.Logger

	cancel context.CancelFunc
	done   chan error
}

func (p *program) Start(service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() {
		err := app.Run(ctx, p.params)
		if err != nil && p.logger != nil {
			_ = p.logger.Error(err)
		}
		p.done <- err
	}()
	return nil
}

func (p *program) Stop(service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	select {
	case err := <-p.done:
		return err
	case <-time.After(serviceStopTimeout):
		return fmt.Errorf("service: not stopped after %s", serviceStopTimeout)
	}
}

// serviceConfig describes the system service started with cfgPath.
func serviceConfig(cfgPath string) *service.Config {
	args := []string{"service", "run"}
	if cfgPath != "" {
		args = append(args, "--config", cfgPath)
	}
	return &service.Config{
		Name:        "tgplug",
		DisplayName: "tgplug Telegram bot",
		Description: "Long-polling Telegram bot with plugin dispatch.",
		Arguments:   args,
	}
}

func newService(cmd *cobra.Command) (service.Service, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath != "" {
		// Services do not run from the caller's directory.
		abs, err := filepath.Abs(cfgPath)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(abs); err != nil {
			return nil, fmt.Errorf("service: %w", err)
		}
		cfgPath = abs
	}

	prg := &program{params: runParams(cfgPath, "")}
	s, err := service.New(prg, serviceConfig(cfgPath))
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	prg.logger, _ = s.Logger(nil)
	return s, nil
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage tgplug as a system service",
	}
	cmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file")

	for _, action := range []string{"install", "uninstall", "start", "stop", "restart"} {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the system service", action),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := newService(cmd)
				if err != nil {
					return err
				}
				if err := service.Control(s, action); err != nil {
					return fmt.Errorf("service %s: %w", action, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run under the service manager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newService(cmd)
			if err != nil {
				return err
			}
			return s.Run()
		},
	})
	return cmd
}
