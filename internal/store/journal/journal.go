// Package journal 将自动交易日志落盘到 SQLite，供历史查询与导出。
// 内存里的环形缓冲只保留最近 100 条，这里保留全量。
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Entry 一条落盘的日志。
type Entry struct {
	ID        int64  `json:"id"`
	Symbol    string `json:"symbol"`
	Timestamp int64  `json:"timestamp"`
	Line      string `json:"line"`
}

// Store 管理日志库连接。
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open 打开（必要时创建）日志库。
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("journal: 路径不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS autotrade_journal (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			ts INTEGER NOT NULL,
			line TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_autotrade_journal_symbol_ts ON autotrade_journal(symbol, ts DESC, id DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("journal schema: %w", err)
		}
	}
	return nil
}

// Close 关闭底层连接。
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Append 追加一条日志。ts 为零时取当前时间。
func (s *Store) Append(ctx context.Context, symbol string, ts int64, line string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("journal 未初始化")
	}
	symbol = strings.TrimSpace(symbol)
	if symbol == "" || strings.TrimSpace(line) == "" {
		return fmt.Errorf("journal: symbol 和 line 必填")
	}
	if ts <= 0 {
		ts = time.Now().UnixMilli()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO autotrade_journal(symbol, ts, line) VALUES(?, ?, ?)`,
		symbol, ts, line)
	return err
}

// List 按时间倒序返回 symbol 的最近日志。
func (s *Store) List(ctx context.Context, symbol string, limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("journal 未初始化")
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, symbol, ts, line FROM autotrade_journal
		 WHERE symbol = ? ORDER BY ts DESC, id DESC LIMIT ?`,
		strings.TrimSpace(symbol), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Symbol, &e.Timestamp, &e.Line); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Export 把 symbol 的全部日志按时间正序拼成换行分隔的文本。
func (s *Store) Export(ctx context.Context, symbol string) (string, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("journal 未初始化")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT line FROM autotrade_journal WHERE symbol = ? ORDER BY ts ASC, id ASC`,
		strings.TrimSpace(symbol))
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return "", err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}
