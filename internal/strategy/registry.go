// Package strategy 管理用户可扩展的自动交易策略注册表。策略定义持久化在
// YAML 文件中，进程内通过 Registry 读写；外部编辑文件会触发热重载。
package strategy

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"tradeview/internal/logger"
	"tradeview/internal/pkg/slug"
)

var (
	ErrNotFound  = errors.New("strategy: not found")
	ErrDuplicate = errors.New("strategy: id already exists")
)

// Strategy 单条策略定义。Logic 持久化为字符串，加载时解析为 LogicKind。
type Strategy struct {
	ID          string    `yaml:"id" json:"id"`
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description" json:"description"`
	Enabled     bool      `yaml:"enabled" json:"enabled"`
	Logic       LogicKind `yaml:"logic" json:"logic"`
}

type fileConfig struct {
	Strategies []Strategy `yaml:"strategies" json:"strategies"`
}

// Snapshot 注册表的只读快照。
type Snapshot struct {
	Version    int64
	LoadedAt   time.Time
	Strategies []Strategy
}

// ChangeListener 在注册表重载或变更时触发。
type ChangeListener func(Snapshot)

// Registry 持有策略集合并负责文件持久化。文件缺失或损坏时退回内置默认
// 策略，下一次变更会重写出一份有效文件。
type Registry struct {
	path string
	v    *viper.Viper

	mu         sync.RWMutex
	strategies map[string]Strategy
	version    int64
	loadedAt   time.Time
	listeners  []ChangeListener
	saving     bool
}

// fileSchema 编译一次，校验策略文件的结构。
var fileSchema = mustCompileFileSchema()

func mustCompileFileSchema() *jsonschema.Schema {
	const raw = `{
		"type": "object",
		"properties": {
			"strategies": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["name", "logic"],
					"properties": {
						"id": {"type": "string"},
						"name": {"type": "string", "minLength": 1},
						"description": {"type": "string"},
						"enabled": {"type": "boolean"},
						"logic": {"type": "string", "minLength": 1}
					}
				}
			}
		}
	}`
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("strategies.json", strings.NewReader(raw)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("strategies.json")
}

// Defaults 返回内置默认策略集。
func Defaults() []Strategy {
	return []Strategy{
		{
			ID:          string(KindBBLowerRedTwoGreen),
			Name:        "BB Lower Red Two Green",
			Description: "布林下轨触碰后一根红 K 两根绿 K 确认反转",
			Enabled:     true,
			Logic:       KindBBLowerRedTwoGreen,
		},
	}
}

// NewRegistry 加载策略文件并监听外部修改。文件不存在时写出默认集。
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("strategy registry requires path")
	}
	r := &Registry{path: path, strategies: make(map[string]Strategy)}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		r.setLocked(Defaults())
		if err := r.writeFile(); err != nil {
			return nil, fmt.Errorf("seed strategy file failed: %w", err)
		}
	} else if err := r.reload(); err != nil {
		// 损坏的文件按缺失处理，退回默认集
		logger.Errorf("Strategy file corrupt, using defaults: %v", err)
		r.setLocked(Defaults())
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err == nil {
		v.OnConfigChange(func(evt fsnotify.Event) {
			r.mu.RLock()
			skip := r.saving
			r.mu.RUnlock()
			if skip {
				return
			}
			if err := r.reload(); err != nil {
				logger.Errorf("Strategy reload failed: %v", err)
				return
			}
			r.notifyListeners()
		})
		v.WatchConfig()
		r.v = v
	}
	return r, nil
}

// OnChange 注册变更监听器。
func (r *Registry) OnChange(fn ChangeListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Snapshot 返回当前策略集快照，按 ID 排序。
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Registry) snapshotLocked() Snapshot {
	out := Snapshot{Version: r.version, LoadedAt: r.loadedAt}
	for _, s := range r.strategies {
		out.Strategies = append(out.Strategies, s)
	}
	sort.Slice(out.Strategies, func(i, j int) bool { return out.Strategies[i].ID < out.Strategies[j].ID })
	return out
}

// Get 按 ID 查找策略。
func (r *Registry) Get(id string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[strings.TrimSpace(id)]
	return s, ok
}

// Add 新增策略。ID 为空时由名称生成 slug。
func (r *Registry) Add(s Strategy) (Strategy, error) {
	norm, err := normalize(s)
	if err != nil {
		return Strategy{}, err
	}
	r.mu.Lock()
	if _, exists := r.strategies[norm.ID]; exists {
		r.mu.Unlock()
		return Strategy{}, fmt.Errorf("%w: %s", ErrDuplicate, norm.ID)
	}
	r.strategies[norm.ID] = norm
	r.bumpLocked()
	r.mu.Unlock()

	if err := r.persist(); err != nil {
		return Strategy{}, err
	}
	r.notifyListeners()
	return norm, nil
}

// Update 覆盖已有策略（按 ID）。
func (r *Registry) Update(s Strategy) (Strategy, error) {
	norm, err := normalize(s)
	if err != nil {
		return Strategy{}, err
	}
	r.mu.Lock()
	if _, exists := r.strategies[norm.ID]; !exists {
		r.mu.Unlock()
		return Strategy{}, fmt.Errorf("%w: %s", ErrNotFound, norm.ID)
	}
	r.strategies[norm.ID] = norm
	r.bumpLocked()
	r.mu.Unlock()

	if err := r.persist(); err != nil {
		return Strategy{}, err
	}
	r.notifyListeners()
	return norm, nil
}

// Delete 删除策略。
func (r *Registry) Delete(id string) error {
	id = strings.TrimSpace(id)
	r.mu.Lock()
	if _, exists := r.strategies[id]; !exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(r.strategies, id)
	r.bumpLocked()
	r.mu.Unlock()

	if err := r.persist(); err != nil {
		return err
	}
	r.notifyListeners()
	return nil
}

// SetEnabled 切换启用状态。
func (r *Registry) SetEnabled(id string, enabled bool) error {
	id = strings.TrimSpace(id)
	r.mu.Lock()
	s, exists := r.strategies[id]
	if !exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.Enabled = enabled
	r.strategies[id] = s
	r.bumpLocked()
	r.mu.Unlock()

	if err := r.persist(); err != nil {
		return err
	}
	r.notifyListeners()
	return nil
}

func (r *Registry) reload() error {
	cfg, err := readStrategyFile(r.path)
	if err != nil {
		return err
	}
	list := make([]Strategy, 0, len(cfg.Strategies))
	for _, s := range cfg.Strategies {
		norm, err := normalize(s)
		if err != nil {
			logger.Warnf("Skipping invalid strategy %q: %v", s.Name, err)
			continue
		}
		list = append(list, norm)
	}
	r.mu.Lock()
	r.setLocked(list)
	r.mu.Unlock()
	logger.Infof("Strategy registry loaded %d strategies from %s", len(list), filepath.Base(r.path))
	return nil
}

// setLocked 替换整个集合。调用方负责加锁（构造期除外）。
func (r *Registry) setLocked(list []Strategy) {
	m := make(map[string]Strategy, len(list))
	for _, s := range list {
		m[s.ID] = s
	}
	r.strategies = m
	r.bumpLocked()
}

func (r *Registry) bumpLocked() {
	r.version++
	r.loadedAt = time.Now()
}

func (r *Registry) persist() error {
	r.mu.Lock()
	r.saving = true
	r.mu.Unlock()
	err := r.writeFile()
	r.mu.Lock()
	r.saving = false
	r.mu.Unlock()
	return err
}

func (r *Registry) writeFile() error {
	snap := r.Snapshot()
	raw, err := yaml.Marshal(fileConfig{Strategies: snap.Strategies})
	if err != nil {
		return err
	}
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(r.path, raw, 0o644)
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := r.snapshotLocked()
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		if fn == nil {
			continue
		}
		go func(cb ChangeListener) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Errorf("strategy listener panic: %v", rec)
				}
			}()
			cb(snap)
		}(fn)
	}
}

func normalize(s Strategy) (Strategy, error) {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return Strategy{}, fmt.Errorf("strategy name required")
	}
	kind, err := ParseLogicKind(string(s.Logic))
	if err != nil {
		return Strategy{}, err
	}
	s.Logic = kind
	s.ID = strings.TrimSpace(s.ID)
	if s.ID == "" {
		s.ID = slug.Make(s.Name)
	}
	if s.ID == "" {
		return Strategy{}, fmt.Errorf("strategy id could not be derived from name %q", s.Name)
	}
	s.Description = strings.TrimSpace(s.Description)
	return s, nil
}

func readStrategyFile(path string) (fileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("read strategy file failed: %w", err)
	}
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return fileConfig{}, fmt.Errorf("parse strategy file failed: %w", err)
	}
	if err := fileSchema.Validate(toJSONValue(generic)); err != nil {
		return fileConfig{}, fmt.Errorf("strategy file schema violation: %w", err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("parse strategy file failed: %w", err)
	}
	return cfg, nil
}

// toJSONValue 将 yaml 解码结果规整为 jsonschema 接受的 JSON 值形态。
func toJSONValue(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}
