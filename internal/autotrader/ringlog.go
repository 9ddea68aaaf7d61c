package autotrader

import (
	"fmt"
	"strings"
	"time"
)

// ringCapacity 内存日志上限，超出后最旧的先被淘汰。
const ringCapacity = 100

// LogEntry 一条自动交易日志。
type LogEntry struct {
	Timestamp int64  `json:"timestamp"`
	Line      string `json:"line"`
}

// RingLog 固定容量的日志环。非并发安全，由持有者加锁。
type RingLog struct {
	entries []LogEntry
}

func NewRingLog() *RingLog {
	return &RingLog{}
}

// Append 追加一条日志，满了淘汰最旧的。
func (r *RingLog) Append(ts int64, line string) {
	r.entries = append(r.entries, LogEntry{Timestamp: ts, Line: line})
	if len(r.entries) > ringCapacity {
		r.entries = r.entries[len(r.entries)-ringCapacity:]
	}
}

// Entries 返回从旧到新的日志拷贝。
func (r *RingLog) Entries() []LogEntry {
	out := make([]LogEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Restore 覆盖日志内容，超长部分只保留最新的。
func (r *RingLog) Restore(entries []LogEntry) {
	if len(entries) > ringCapacity {
		entries = entries[len(entries)-ringCapacity:]
	}
	r.entries = append([]LogEntry(nil), entries...)
}

func (r *RingLog) Len() int { return len(r.entries) }

// Joined 把日志拼成换行分隔的导出文本，每行带时间前缀。
func (r *RingLog) Joined() string {
	lines := make([]string, len(r.entries))
	for i, e := range r.entries {
		ts := time.UnixMilli(e.Timestamp).UTC().Format("2006-01-02 15:04:05")
		lines[i] = fmt.Sprintf("[%s] %s", ts, e.Line)
	}
	return strings.Join(lines, "\n")
}

// ExportName 导出文件名，由符号和日期决定。
func ExportName(symbol string, at time.Time) string {
	safe := strings.ToLower(strings.NewReplacer("/", "-", " ", "-").Replace(symbol))
	return fmt.Sprintf("autotrade-log-%s-%s.txt", safe, at.UTC().Format("2006-01-02"))
}
