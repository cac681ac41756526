package adb

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/huanfeng/apk-extractor/internal/errors"
)

// ProgressFunc receives the bytes written so far and the expected total.
type ProgressFunc func(current, total int64)

// Push copies a local file to the device.
func (c *Client) Push(ctx context.Context, serial, localPath, remotePath string) error {
	if _, err := os.Stat(localPath); err != nil {
		return errors.WrapError(err, errors.ErrorTypeFileSystem, errors.CodeArtifactMissing,
			fmt.Sprintf("local file %s not accessible", localPath))
	}
	result := c.runLong(ctx, serial, "push", localPath, remotePath)
	if err := result.AsError(fmt.Sprintf("failed to push %s", localPath)); err != nil {
		return err.WithContext("remote", remotePath)
	}
	return nil
}

// FileSize returns the size in bytes of a file on the device.
func (c *Client) FileSize(ctx context.Context, serial, remotePath string) (int64, error) {
	result, err := c.Shell(ctx, serial, "stat -c %s "+ShellQuote(remotePath))
	if err != nil {
		return 0, err
	}
	if h := result.Hint(); h == HintNoSuchFile {
		return 0, errors.NewNotFoundError(errors.CodeRemoteFileMissing,
			fmt.Sprintf("%s does not exist on the device", remotePath))
	}
	size, perr := strconv.ParseInt(result.Output(), 10, 64)
	if perr != nil {
		return 0, errors.WrapError(perr, errors.ErrorTypeParsing, errors.CodeCommandFailed,
			"unexpected stat output").
			WithContext("output", result.Output())
	}
	return size, nil
}

// Pull copies a device file to localPath. When progress is set, the size of
// localPath is polled every interval while the transfer runs.
func (c *Client) Pull(ctx context.Context, serial, remotePath, localPath string, total int64, interval time.Duration, progress ProgressFunc) error {
	var stop func()
	if progress != nil {
		stop = WatchFile(ctx, localPath, total, interval, progress)
	}

	result := c.runLong(ctx, serial, "pull", remotePath, localPath)

	if stop != nil {
		stop()
	}

	if err := result.AsError(fmt.Sprintf("failed to pull %s", remotePath)); err != nil {
		return err.WithContext("local", localPath)
	}
	// Some adb builds report missing files on stdout with a zero exit.
	if strings.Contains(strings.ToLower(result.Combined()), "error:") {
		return errors.NewDeviceError(errors.CodeCommandFailed, fmt.Sprintf("failed to pull %s", remotePath)).
			WithContext("output", result.Combined())
	}

	if _, err := os.Stat(localPath); err != nil {
		return errors.WrapError(err, errors.ErrorTypeNotFound, errors.CodeArtifactMissing,
			fmt.Sprintf("pull finished but %s is missing", localPath))
	}
	if progress != nil {
		if info, err := os.Stat(localPath); err == nil {
			progress(info.Size(), total)
		}
	}
	return nil
}

// WatchFile reports the size of path every interval until the returned stop
// function is called or ctx is done.
func WatchFile(ctx context.Context, path string, total int64, interval time.Duration, fn ProgressFunc) (stop func()) {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		var last int64 = -1
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil {
					continue
				}
				if size := info.Size(); size != last {
					last = size
					fn(size, total)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
