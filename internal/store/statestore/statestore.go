// Package statestore 提供 key→JSON 的持久化，承载账本与自动交易状态。
// 底层是 Gorm + SQLite；缺失或损坏的条目一律按"没有保存过"处理，
// 调用方退回默认值，下一次写入会覆盖坏数据。
package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tradeview/internal/logger"
)

type stateBlobModel struct {
	Key           string         `gorm:"column:key;primaryKey"`
	Value         datatypes.JSON `gorm:"column:value"`
	UpdatedAtUnix int64          `gorm:"column:updated_at"`
}

func (stateBlobModel) TableName() string { return "state_blobs" }

// StateStore 封装状态库连接。
type StateStore struct {
	db *gorm.DB
}

// New 打开（必要时创建）状态库。
func New(path string) (*StateStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("state store: 路径不能为空")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&stateBlobModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: keep lock contention low while HTTP reads run alongside ticks.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &StateStore{db: db}, nil
}

// Close 关闭底层连接。
func (s *StateStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save 序列化 v 并写入 key，已存在则覆盖。
func (s *StateStore) Save(ctx context.Context, key string, v any) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("state store 未初始化")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("state store: key 不能为空")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("state store: encode %s: %w", key, err)
	}
	model := stateBlobModel{
		Key:           key,
		Value:         datatypes.JSON(raw),
		UpdatedAtUnix: time.Now().UnixMilli(),
	}
	return s.db.WithContext(ctx).Save(&model).Error
}

// Load 读取 key 并反序列化到 out。返回 false 表示"没有可用状态"：
// key 缺失或内容无法解析都算这一类，绝不向上抛解析错误。
func (s *StateStore) Load(ctx context.Context, key string, out any) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("state store 未初始化")
	}
	var model stateBlobModel
	err := s.db.WithContext(ctx).Where("key = ?", strings.TrimSpace(key)).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(model.Value, out); err != nil {
		logger.Warnf("State blob %s corrupt, falling back to defaults: %v", key, err)
		return false, nil
	}
	return true, nil
}

// Delete 删除 key，不存在时不报错。
func (s *StateStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("state store 未初始化")
	}
	return s.db.WithContext(ctx).Where("key = ?", strings.TrimSpace(key)).Delete(&stateBlobModel{}).Error
}

// Keys 列出全部 key，按字典序。
func (s *StateStore) Keys(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("state store 未初始化")
	}
	var keys []string
	if err := s.db.WithContext(ctx).Model(&stateBlobModel{}).Order("key ASC").Pluck("key", &keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}
