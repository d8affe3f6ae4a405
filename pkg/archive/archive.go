package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Unpack extracts the tar archive at src into dst, creating dst if needed.
// Extraction is delegated to the tar binary; compressed archives
// (.tar.gz and friends) are handled by tar's autodetection.
func Unpack(ctx context.Context, src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}

	cmd := exec.CommandContext(ctx, "tar", "xf", src, "-C", dst)
	if _, err := cmd.Output(); err != nil {
		return fmt.Errorf("unpacking %s: %w", src, execError(err))
	}
	return nil
}

func execError(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
	}
	return err
}
