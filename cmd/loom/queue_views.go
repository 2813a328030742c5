package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"loom/internal/queue"
)

// statusDisplayOrder fixes the row order for count tables so the lifecycle
// reads top to bottom.
var statusDisplayOrder = []string{
	string(queue.StatusPending),
	string(queue.StatusRunning),
	string(queue.StatusDone),
	string(queue.StatusFailed),
	string(queue.StatusCancelled),
}

func buildQueueStatusRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(stats))
	rows := make([][]string, 0, len(stats))
	for _, key := range statusDisplayOrder {
		if count, ok := stats[key]; ok {
			rows = append(rows, []string{formatStatusLabel(key), fmt.Sprintf("%d", count)})
			seen[key] = true
		}
	}
	extras := make([]string, 0)
	for key := range stats {
		if !seen[key] {
			extras = append(extras, key)
		}
	}
	sort.Strings(extras)
	for _, key := range extras {
		rows = append(rows, []string{formatStatusLabel(key), fmt.Sprintf("%d", stats[key])})
	}
	return rows
}

func buildTaskListRows(tasks []queue.Task) [][]string {
	if len(tasks) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(tasks))
	for _, task := range tasks {
		rows = append(rows, []string{
			fmt.Sprintf("%d", task.ID),
			truncateText(task.Prompt, 48),
			formatAgentLabel(task.Agent),
			formatStatusLabel(string(task.Status)),
			fmt.Sprintf("%d", task.Priority),
			formatAfterLabel(task.AfterID),
			fmt.Sprintf("%d/%d", task.Retries, task.MaxRetries),
			formatDisplayTime(task.CreatedAt),
		})
	}
	return rows
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(strings.ToLower(status))
	if status == "" {
		return ""
	}
	return strings.ToUpper(status[:1]) + status[1:]
}

func formatAgentLabel(agent string) string {
	agent = strings.TrimSpace(agent)
	if agent == "" {
		return "-"
	}
	return agent
}

func formatAfterLabel(afterID *int64) string {
	if afterID == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *afterID)
}

func formatDisplayTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format("2006-01-02 15:04")
}

func formatOptionalTime(value *time.Time) string {
	if value == nil {
		return "-"
	}
	return formatDisplayTime(*value)
}

func truncateText(value string, max int) string {
	value = strings.Join(strings.Fields(value), " ")
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
