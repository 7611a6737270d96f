package publish

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"syscall"
	"time"

	"github.com/ReemX/pnpm-airgap/internal/log"
)

//go:generate mockgen -destination=mocks/mock_publisher.go -package=mocks github.com/ReemX/pnpm-airgap/internal/publish Publisher

// Publisher is the external publish primitive: it uploads one staged
// tarball to a registry under an explicit tag. Implementations must
// honor the timeout and return an error whose message carries whatever
// diagnostic text the underlying tool produced; the executor's
// classification depends on that text.
type Publisher interface {
	Publish(ctx context.Context, tarballPath, registryURL, tag string, timeout time.Duration) error
}

const (
	// maxOutputBytes caps the amount of combined output captured from
	// the publish subprocess.
	maxOutputBytes = 64 * 1024

	// terminationGracePeriod is the time we wait after SIGTERM before
	// sending SIGKILL.
	terminationGracePeriod = 5 * time.Second
)

// CLIPublisher shells out to the npm CLI to perform uploads. The npm
// client owns the upload wire protocol; this engine only decides what
// to publish, with which tag, and for how long to wait.
type CLIPublisher struct {
	// Command is the publish executable, "npm" by default.
	Command string
	logger  *slog.Logger
}

// NewCLIPublisher creates a CLIPublisher using the npm CLI.
func NewCLIPublisher() *CLIPublisher {
	return &CLIPublisher{
		Command: "npm",
		logger:  log.WithComponent("publisher"),
	}
}

// Publish runs `npm publish <tarball> --registry <url> --tag <tag>`.
// The subprocess gets SIGTERM at the timeout and SIGKILL after a grace
// period; a timeout is reported as an error mentioning the timeout so
// the executor classifies it transient.
func (p *CLIPublisher) Publish(ctx context.Context, tarballPath, registryURL, tag string, timeout time.Duration) error {
	timeoutTimer := time.NewTimer(timeout)
	defer timeoutTimer.Stop()

	cmd := exec.Command(p.Command, "publish", tarballPath,
		"--registry", registryURL,
		"--tag", tag,
	)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	p.logger.Debug("spawning publish", "tarball", tarballPath, "tag", tag, "timeout", timeout)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start publish process: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	select {
	case <-timeoutTimer.C:
		p.logger.Warn("publish timed out, sending SIGTERM", "tarball", tarballPath)
		if cmd.Process != nil {
			if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
				p.logger.Error("failed to send SIGTERM", "error", err)
			}
		}

		grace := time.NewTimer(terminationGracePeriod)
		defer grace.Stop()
		select {
		case <-waitErr:
		case <-grace.C:
			p.logger.Warn("publish did not exit after SIGTERM, sending SIGKILL")
			if cmd.Process != nil {
				if err := cmd.Process.Kill(); err != nil {
					p.logger.Error("failed to send SIGKILL", "error", err)
				}
			}
			<-waitErr
		}
		return fmt.Errorf("publish timed out after %v: %s", timeout, truncateOutput(output.String()))

	case err := <-waitErr:
		if err != nil {
			return fmt.Errorf("publish failed: %s", truncateOutput(output.String()))
		}
		return nil
	}
}

// truncateOutput caps subprocess output to maxOutputBytes.
func truncateOutput(s string) string {
	if len(s) > maxOutputBytes {
		return s[:maxOutputBytes]
	}
	return s
}
