package relq

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/relq/compiler/planner"
)

// Config is the compiler's process-wide configuration (the
// EXPANDED ambient-stack note), loaded from a YAML document. Field tags
// follow GraphJin's config struct style (core/config.go's Config/
// DatabaseConfig), trimmed to mapstructure/json/yaml since this module has
// no admin-UI JSON-schema surface to generate.
type Config struct {
	Compiler CompilerConfig `mapstructure:"compiler" json:"compiler" yaml:"compiler"`
}

// CompilerConfig holds the knobs the planner and root Compile façade read.
type CompilerConfig struct {
	DefaultDialect  string `mapstructure:"default_dialect" json:"default_dialect" yaml:"default_dialect"`
	EnableCamelcase bool   `mapstructure:"enable_camelcase" json:"enable_camelcase" yaml:"enable_camelcase"`
	PlanCacheSize   int    `mapstructure:"plan_cache_size" json:"plan_cache_size" yaml:"plan_cache_size"`
	HardFanoutCap   int    `mapstructure:"hard_fanout_cap" json:"hard_fanout_cap" yaml:"hard_fanout_cap"`
	MaxQueryDepth   int    `mapstructure:"max_query_depth" json:"max_query_depth" yaml:"max_query_depth"`
	MaxIncludes     int    `mapstructure:"max_includes" json:"max_includes" yaml:"max_includes"`
	MaxSubqueries   int    `mapstructure:"max_subqueries" json:"max_subqueries" yaml:"max_subqueries"`
}

// defaultCompilerConfig mirrors GraphJin's own default-limit/default-block
// posture: caps that match the constants the planner (plan-cache size,
// fanout cap), internal/qcode (query depth) and internal/psql (include and
// subquery budgets) use.
func defaultCompilerConfig() CompilerConfig {
	return CompilerConfig{
		DefaultDialect: "postgres",
		PlanCacheSize:  planner.DefaultPlanCacheSize,
		HardFanoutCap:  planner.HardFanoutCap,
		MaxQueryDepth:  50,
		MaxIncludes:    50,
		MaxSubqueries:  100,
	}
}

// LoadConfig reads and parses a relq.config.yml document (the
// EXPANDED configuration note) via gopkg.in/yaml.v3, applying
// defaultCompilerConfig for any zero-valued field left unset.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("relq: reading config %q: %w", path, err)
	}
	cfg := Config{Compiler: defaultCompilerConfig()}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("relq: parsing config %q: %w", path, err)
	}
	applyDefaults(&cfg.Compiler)
	return &cfg, nil
}

func applyDefaults(c *CompilerConfig) {
	d := defaultCompilerConfig()
	if c.DefaultDialect == "" {
		c.DefaultDialect = d.DefaultDialect
	}
	if c.PlanCacheSize == 0 {
		c.PlanCacheSize = d.PlanCacheSize
	}
	if c.HardFanoutCap == 0 {
		c.HardFanoutCap = d.HardFanoutCap
	}
	if c.MaxQueryDepth == 0 {
		c.MaxQueryDepth = d.MaxQueryDepth
	}
	if c.MaxIncludes == 0 {
		c.MaxIncludes = d.MaxIncludes
	}
	if c.MaxSubqueries == 0 {
		c.MaxSubqueries = d.MaxSubqueries
	}
}

// Apply installs this Config's compiler settings as the package's active
// state: the default dialect and the plan-shape cache size.
// The depth/includes/subqueries caps are read directly from the returned
// Config by callers constructing their own recursion guards, mirroring the
// teacher's pattern of one Config struct threaded through at startup rather
// than scattered package-level setters.
func (c *Config) Apply() error {
	switch c.Compiler.DefaultDialect {
	case "sqlite":
		SetDefaultDialect(SQLite)
	case "postgres", "":
		SetDefaultDialect(Postgres)
	default:
		return fmt.Errorf("relq: unknown default_dialect %q", c.Compiler.DefaultDialect)
	}

	cache, err := planner.NewCache(c.Compiler.PlanCacheSize)
	if err != nil {
		return err
	}
	registryMu.Lock()
	planCache = cache
	registryMu.Unlock()
	return nil
}
