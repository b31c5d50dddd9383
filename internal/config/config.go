package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/insightloom/internal/analysis"
)

// Global configuration structure.
type Global struct {
	// Pipeline thresholds
	TypeMatchRatio              float64 `mapstructure:"type_match_ratio" yaml:"type_match_ratio"`
	CategoricalMaxDistinctRatio float64 `mapstructure:"categorical_max_distinct_ratio" yaml:"categorical_max_distinct_ratio"`
	CategoricalMaxDistinctCount int     `mapstructure:"categorical_max_distinct_count" yaml:"categorical_max_distinct_count"`
	TopCategories               int     `mapstructure:"top_categories" yaml:"top_categories"`
	MinRows                     int     `mapstructure:"min_rows" yaml:"min_rows"`
	MaxNullRatioMetric          float64 `mapstructure:"max_null_ratio_metric" yaml:"max_null_ratio_metric"`
	RankBy                      string  `mapstructure:"rank_by" yaml:"rank_by"`
	TopK                        int     `mapstructure:"top_k" yaml:"top_k"`
	BottomK                     int     `mapstructure:"bottom_k" yaml:"bottom_k"`
	AnomalyZThreshold           float64 `mapstructure:"anomaly_z_threshold" yaml:"anomaly_z_threshold"`
	AnomalyMinGroups            int     `mapstructure:"anomaly_min_groups" yaml:"anomaly_min_groups"`
	IssueZThreshold             float64 `mapstructure:"issue_z_threshold" yaml:"issue_z_threshold"`
	KPIIssueChangePct           float64 `mapstructure:"kpi_issue_change_pct" yaml:"kpi_issue_change_pct"`
	KPIImprovementChangePct     float64 `mapstructure:"kpi_improvement_change_pct" yaml:"kpi_improvement_change_pct"`
	KPIGoodChangePct            float64 `mapstructure:"kpi_good_change_pct" yaml:"kpi_good_change_pct"`
	MarketingKPIs               bool    `mapstructure:"marketing_kpis" yaml:"marketing_kpis"`

	// Depth overrides top_k and bottom_k when set: basic, moderate or detailed.
	Depth string `mapstructure:"depth" yaml:"depth"`

	// Loading
	MaxRows int `mapstructure:"max_rows" yaml:"max_rows"`

	// Narration: template (default), model, or none
	Narrator        string  `mapstructure:"narrator" yaml:"narrator"`
	APIKey          string  `mapstructure:"api_key" yaml:"api_key"`
	DefaultModel    string  `mapstructure:"default_model" yaml:"default_model"`
	DefaultProvider string  `mapstructure:"default_provider" yaml:"default_provider"`
	MaxTokens       int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost       string `mapstructure:"ollama_host" yaml:"ollama_host"`
	OllamaTimeoutSec int    `mapstructure:"ollama_timeout_sec" yaml:"ollama_timeout_sec"`

	ProjectsDir string `mapstructure:"projects_dir" yaml:"projects_dir"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat   string `mapstructure:"log_format" yaml:"log_format"`
	ServerAddr  string `mapstructure:"server_addr" yaml:"server_addr"`
}

// AnalysisOptions converts the pipeline keys into analysis options.
func (c *Global) AnalysisOptions() analysis.Options {
	return analysis.Options{
		TypeMatchRatio:              c.TypeMatchRatio,
		CategoricalMaxDistinctRatio: c.CategoricalMaxDistinctRatio,
		CategoricalMaxDistinctCount: c.CategoricalMaxDistinctCount,
		TopCategories:               c.TopCategories,
		MinRows:                     c.MinRows,
		MaxNullRatioMetric:          c.MaxNullRatioMetric,
		RankBy:                      analysis.AggregateFunc(strings.ToLower(c.RankBy)),
		TopK:                        c.TopK,
		BottomK:                     c.BottomK,
		AnomalyZThreshold:           c.AnomalyZThreshold,
		AnomalyMinGroups:            c.AnomalyMinGroups,
		IssueZThreshold:             c.IssueZThreshold,
		KPIChange: analysis.ChangeThresholds{
			Issue:       c.KPIIssueChangePct,
			Improvement: c.KPIImprovementChangePct,
			Good:        c.KPIGoodChangePct,
		},
		MarketingKPIs: c.MarketingKPIs,
	}.WithDepth(analysis.Depth(strings.ToLower(c.Depth)))
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".insightloom"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.insightloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := configDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := analysis.DefaultOptions()
	v.SetDefault("type_match_ratio", d.TypeMatchRatio)
	v.SetDefault("categorical_max_distinct_ratio", d.CategoricalMaxDistinctRatio)
	v.SetDefault("categorical_max_distinct_count", d.CategoricalMaxDistinctCount)
	v.SetDefault("top_categories", d.TopCategories)
	v.SetDefault("min_rows", d.MinRows)
	v.SetDefault("max_null_ratio_metric", d.MaxNullRatioMetric)
	v.SetDefault("rank_by", string(d.RankBy))
	v.SetDefault("top_k", d.TopK)
	v.SetDefault("bottom_k", d.BottomK)
	v.SetDefault("anomaly_z_threshold", d.AnomalyZThreshold)
	v.SetDefault("anomaly_min_groups", d.AnomalyMinGroups)
	v.SetDefault("issue_z_threshold", d.IssueZThreshold)
	v.SetDefault("kpi_issue_change_pct", d.KPIChange.Issue)
	v.SetDefault("kpi_improvement_change_pct", d.KPIChange.Improvement)
	v.SetDefault("kpi_good_change_pct", d.KPIChange.Good)
	v.SetDefault("marketing_kpis", d.MarketingKPIs)
	v.SetDefault("depth", "")
	v.SetDefault("max_rows", 100000)

	v.SetDefault("narrator", "template")
	v.SetDefault("default_model", "openai/gpt-4o-mini")
	v.SetDefault("default_provider", "openrouter")
	v.SetDefault("max_tokens", 1024)
	v.SetDefault("temperature", 0.2)
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	// Ollama defaults
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("ollama_timeout_sec", 60)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("server_addr", "127.0.0.1:8080")
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("INSIGHTLOOM")
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// Resolve projects_dir default: ~/.insightloom/projects
	if c.ProjectsDir == "" {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		c.ProjectsDir = filepath.Join(dir, "projects")
	}
	return &c, nil
}

// Keys lists every configuration key in declaration order.
func Keys() []string {
	t := reflect.TypeOf(Global{})
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		keys = append(keys, t.Field(i).Tag.Get("yaml"))
	}
	return keys
}

// Get returns the value of key formatted for display.
func (c *Global) Get(key string) (string, error) {
	f, ok := c.field(key)
	if !ok {
		return "", fmt.Errorf("unknown key: %s", key)
	}
	switch f.Kind() {
	case reflect.Float64:
		return strconv.FormatFloat(f.Float(), 'g', -1, 64), nil
	default:
		return fmt.Sprint(f.Interface()), nil
	}
}

// Set parses value into key. Pipeline keys are range checked against the
// resulting options, so a rejected value leaves c unchanged.
func (c *Global) Set(key, value string) error {
	next := *c
	f, ok := next.field(key)
	if !ok {
		return fmt.Errorf("unknown key: %s", key)
	}
	switch f.Kind() {
	case reflect.String:
		f.SetString(value)
	case reflect.Int:
		i, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid int for %s: %v", key, value)
		}
		f.SetInt(int64(i))
	case reflect.Float64:
		x, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float for %s: %v", key, value)
		}
		f.SetFloat(x)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool for %s: %v", key, value)
		}
		f.SetBool(b)
	}
	if err := next.normalize(key); err != nil {
		return err
	}
	if err := next.AnalysisOptions().Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

func (c *Global) normalize(key string) error {
	switch key {
	case "default_provider":
		switch strings.ToLower(c.DefaultProvider) {
		case "openrouter", "openai":
			c.DefaultProvider = "openrouter"
		case "ollama", "local":
			c.DefaultProvider = "ollama"
		default:
			return fmt.Errorf("invalid default_provider: %s (use openrouter or ollama)", c.DefaultProvider)
		}
	case "narrator":
		switch strings.ToLower(c.Narrator) {
		case "template", "model", "none":
			c.Narrator = strings.ToLower(c.Narrator)
		default:
			return fmt.Errorf("invalid narrator: %s (use template, model or none)", c.Narrator)
		}
	case "depth":
		if c.Depth == "" {
			return nil
		}
		d, err := analysis.ParseDepth(c.Depth)
		if err != nil {
			return err
		}
		c.Depth = string(d)
	case "log_format":
		if c.LogFormat != "text" && c.LogFormat != "json" {
			return fmt.Errorf("invalid log_format: %s (use text or json)", c.LogFormat)
		}
	}
	return nil
}

func (c *Global) field(key string) (reflect.Value, bool) {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("yaml") == key {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}
