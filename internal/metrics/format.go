package metrics

import (
	"fmt"
	"strings"
	"time"
)

// FormatMarkdown renders the stats as a Discord message.
func FormatMarkdown(stats Stats) string {
	var buf strings.Builder
	buf.WriteString("**Server stats**\n")

	if stats.CPU.Cores > 0 {
		fmt.Fprintf(&buf, "CPU: %.1f%% | Load %.2f / %.2f / %.2f (%.0f%% of %d cores)\n",
			stats.CPU.Usage, stats.CPU.Load1, stats.CPU.Load5, stats.CPU.Load15, stats.CPU.LoadRatio, stats.CPU.Cores)
	}

	if stats.Memory.Total > 0 {
		fmt.Fprintf(&buf, "Mem: %s/%s (%.1f%%) | Swap: %s/%s (%.1f%%)\n",
			human(stats.Memory.Used), human(stats.Memory.Total), stats.Memory.UsedPercent,
			human(stats.Memory.SwapUsed), human(stats.Memory.SwapTotal), stats.Memory.SwapPercent)
	}

	if stats.Network.SentPerSec > 0 || stats.Network.ReceivedPerSec > 0 {
		fmt.Fprintf(&buf, "Net: up %s/s, down %s/s\n",
			human(stats.Network.SentPerSec), human(stats.Network.ReceivedPerSec))
	}

	for _, disk := range stats.Disks {
		fmt.Fprintf(&buf, "Disk `%s` %s/%s (%.1f%%)\n",
			disk.Mount, human(disk.Used), human(disk.Total), disk.UsedPercent)
	}

	if stats.Process.RSS > 0 {
		fmt.Fprintf(&buf, "Bot: %s RSS, %d goroutines\n", human(stats.Process.RSS), stats.Process.Goroutines)
	}

	if stats.Host.Uptime > 0 {
		fmt.Fprintf(&buf, "Uptime: %s\n", stats.Host.Uptime.Truncate(time.Second))
	}

	if len(stats.Warnings) > 0 {
		buf.WriteString("\n**Warnings**\n")
		for _, warning := range stats.Warnings {
			buf.WriteString("- ")
			buf.WriteString(escapeMarkdown(warning))
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "~", `\~`, "|", `\|`, ">", `\>`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

func human(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%dB", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
		if exp >= len("KMGTPE")-1 {
			break
		}
	}
	return fmt.Sprintf("%.1f%cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
