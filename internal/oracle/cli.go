package oracle

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/engage-agent/pkg/logger"
)

// CLIConfig holds settings for the local agent binary fallback
type CLIConfig struct {
	Command string
	Args    []string
	Timeout time.Duration
}

// CLITransport shells out to a locally installed agent binary, feeding
// the prompt on stdin. Used as the fallback when the HTTP transport is
// down or unconfigured.
type CLITransport struct {
	command string
	args    []string
	timeout time.Duration
	log     *logger.Logger
}

// NewCLITransport creates the CLI transport
func NewCLITransport(cfg CLIConfig, log *logger.Logger) *CLITransport {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &CLITransport{
		command: cfg.Command,
		args:    cfg.Args,
		timeout: timeout,
		log:     log.WithComponent("oracle-cli"),
	}
}

// Name identifies the transport
func (t *CLITransport) Name() string { return "cli" }

// TryRun pipes the prompt through the agent binary and returns stdout
func (t *CLITransport) TryRun(ctx context.Context, prompt string) (string, error) {
	if t.command == "" {
		return "", fmt.Errorf("no CLI command configured")
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.command, t.args...)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	t.log.Debug().Str("command", t.command).Msg("Invoking agent binary")

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("agent binary failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	response := strings.TrimSpace(stdout.String())
	if response == "" {
		return "", fmt.Errorf("agent binary returned no output")
	}
	return response, nil
}

// Ensure CLITransport implements Transport
var _ Transport = (*CLITransport)(nil)
