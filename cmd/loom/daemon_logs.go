package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"loom/internal/ipc"
)

func newDaemonLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs [lines]",
		Short: "Show recent daemon log output",
		Long: "Show recent daemon log output. Reads through the daemon when it is\n" +
			"running and falls back to the log file on disk otherwise.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit := 10
			if len(args) == 1 {
				parsed, err := strconv.Atoi(strings.TrimSpace(args[0]))
				if err != nil || parsed < 0 {
					return fmt.Errorf("invalid line count %q", args[0])
				}
				limit = parsed
			}

			client, err := ipc.Dial(ctx.socketPath())
			if err == nil {
				defer client.Close()
				return tailDaemonLogs(cmd, client, limit, follow)
			}

			cfg, cfgErr := ctx.ensureConfig()
			if cfgErr != nil {
				return cfgErr
			}
			return tailLogFile(cmd, cfg.LogFilePath(), limit, follow)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new log lines")
	return cmd
}

func tailDaemonLogs(cmd *cobra.Command, client *ipc.Client, limit int, follow bool) error {
	stdout := cmd.OutOrStdout()

	// A negative offset asks the daemon for the last `limit` lines; zero
	// starts from the top of the file.
	offset := int64(0)
	if limit > 0 {
		offset = -1
	}

	printed := false
	for {
		resp, err := client.LogTail(ipc.LogTailRequest{
			Offset:     offset,
			Limit:      limit,
			Follow:     follow,
			WaitMillis: 1000,
		})
		if err != nil {
			return fmt.Errorf("read daemon logs: %w", err)
		}
		for _, line := range resp.Lines {
			fmt.Fprintln(stdout, line)
			printed = true
		}
		offset = resp.Offset
		limit = 0

		if !follow {
			if !printed {
				fmt.Fprintln(stdout, "No log entries available")
			}
			return nil
		}

		select {
		case <-cmd.Context().Done():
			return nil
		default:
		}
	}
}

func tailLogFile(cmd *cobra.Command, path string, limit int, follow bool) error {
	stdout := cmd.OutOrStdout()

	lines, offset, err := readLastLines(path, limit)
	switch {
	case err == nil:
	case os.IsNotExist(err):
		if !follow {
			fmt.Fprintln(stdout, "No log entries available")
			return nil
		}
		offset = 0
	default:
		return fmt.Errorf("read log file: %w", err)
	}

	for _, line := range lines {
		fmt.Fprintln(stdout, line)
	}
	if !follow {
		if len(lines) == 0 {
			fmt.Fprintln(stdout, "No log entries available")
		}
		return nil
	}

	// The daemon is down on this path, but another process may still be
	// appending to the file, so poll for new bytes.
	var pending string
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case <-ticker.C:
		}

		chunk, next, err := readFileFrom(path, offset)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("read log file: %w", err)
		}
		offset = next
		pending += chunk
		for {
			idx := strings.IndexByte(pending, '\n')
			if idx < 0 {
				break
			}
			fmt.Fprintln(stdout, pending[:idx])
			pending = pending[idx+1:]
		}
	}
}

func readLastLines(path string, n int) ([]string, int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	offset := int64(len(data))
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return nil, offset, nil
	}
	lines := strings.Split(text, "\n")
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, offset, nil
}

func readFileFrom(path string, offset int64) (string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", offset, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", offset, err
	}
	size := info.Size()
	if size < offset {
		// Rotated or truncated; start over from the top of the new file.
		offset = 0
	}
	if size == offset {
		return "", offset, nil
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return "", offset, err
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return "", offset, err
	}
	return string(data), offset + int64(len(data)), nil
}
