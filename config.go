package guess

import (
	"errors"
	"fmt"
	"os"

	"github.com/gobeaver/beaver-kit/config"
	"github.com/pchchv/guess/droid"
	"gopkg.in/yaml.v3"
)

// Config holds the settings of detection streams.
type Config struct {
	// MaxRecursion is the number of levels inspected, see Options.
	MaxRecursion int `env:"GUESS_MAX_RECURSION,default:0" yaml:"max_recursion"`

	// Buffering of inspected levels
	SpillThreshold int64  `env:"GUESS_SPILL_THRESHOLD,default:1048576" yaml:"spill_threshold"`
	TempDir        string `env:"GUESS_TEMP_DIR" yaml:"temp_dir"`

	// Formats is a comma separated list of enabled formats, empty means all.
	Formats string `env:"GUESS_FORMATS" yaml:"formats"`

	// Detection data, the built-in rules and catalog are used when empty
	RulesFile          string `env:"GUESS_RULES_FILE" yaml:"rules_file"`
	HeuristicRulesFile string `env:"GUESS_HEURISTIC_RULES_FILE" yaml:"heuristic_rules_file"`
	CatalogFile        string `env:"GUESS_CATALOG_FILE" yaml:"catalog_file"`
	MappingFile        string `env:"GUESS_MAPPING_FILE" yaml:"mapping_file"`
	MaxScan            int64  `env:"GUESS_MAX_SCAN,default:65536" yaml:"max_scan"`

	// ArchivePassword opens 7z archives with encrypted headers.
	ArchivePassword string `env:"GUESS_ARCHIVE_PASSWORD" yaml:"archive_password"`

	// Decoder tuning
	MultithreadedGzip bool  `env:"GUESS_MULTITHREADED_GZIP,default:false" yaml:"multithreaded_gzip"`
	XzDictMax         int64 `env:"GUESS_XZ_DICT_MAX,default:0" yaml:"xz_dict_max"`
}

// GetConfig returns config loaded from environment.
func GetConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig returns config loaded from environment variables with the given prefix.
func LoadConfig(prefix string) (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg, config.LoadOptions{Prefix: prefix}); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigFile returns the environment config overridden by the settings of a YAML file.
func LoadConfigFile(name string) (*Config, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(name)
	if err != nil {
		return nil, &ConfigError{File: name, Err: err}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ConfigError{File: name, Err: err}
	}

	return cfg, nil
}

// EnabledFormats parses the Formats list.
func (c *Config) EnabledFormats() ([]Format, error) {
	formats, err := ParseFormats(c.Formats)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	return formats, nil
}

// Decoders returns the built-in decoders tuned by the config.
func (c *Config) Decoders() []Decoder {
	decoders := DefaultDecoders()
	for i, d := range decoders {
		switch d.(type) {
		case Gz:
			decoders[i] = Gz{Multithreaded: c.MultithreadedGzip}
		case Xz:
			decoders[i] = Xz{DictMax: uint32(c.XzDictMax)}
		}
	}
	return decoders
}

// Registry builds the registry described by the config.
func (c *Config) Registry() (*Registry, error) {
	if c.MaxScan < 0 || c.XzDictMax < 0 || c.XzDictMax > 1<<32-1 {
		return nil, &ConfigError{Err: fmt.Errorf("invalid limits: max scan %d, xz dictionary %d", c.MaxScan, c.XzDictMax)}
	}

	rules, err := c.ruleDetector(c.RulesFile, DefaultRuleDetector)
	if err != nil {
		return nil, err
	}

	sigs, err := c.signatureDetector()
	if err != nil {
		return nil, err
	}

	heuristics, err := c.ruleDetector(c.HeuristicRulesFile, DefaultHeuristicDetector)
	if err != nil {
		return nil, err
	}

	archives := ArchiveDetector{SevenZip: SevenZip{Password: c.ArchivePassword}}

	return NewRegistry([]Detector{archives, rules, sigs, heuristics}, c.Decoders())
}

func (c *Config) ruleDetector(name string, builtin func() (*RuleDetector, error)) (*RuleDetector, error) {
	if name == "" {
		return builtin()
	}
	return LoadRulesFile(name, DefaultClasses())
}

func (c *Config) signatureDetector() (*SignatureDetector, error) {
	if c.CatalogFile == "" {
		if c.MappingFile != "" {
			return nil, &ConfigError{File: c.MappingFile, Err: errors.New("mapping without a catalog file")}
		}
		return DefaultSignatureDetector(c.MaxScan)
	}

	catalog, err := droid.LoadCatalogFile(c.CatalogFile)
	if err != nil {
		return nil, &ConfigError{File: c.CatalogFile, Err: err}
	}

	// without a mapping every catalog format is unlisted
	mapping := droid.Mapping{}
	if c.MappingFile != "" {
		if mapping, err = droid.LoadMappingFile(c.MappingFile); err != nil {
			return nil, &ConfigError{File: c.MappingFile, Err: err}
		}
	}

	return NewSignatureDetector(catalog, mapping, c.MaxScan)
}

// Options builds stream options from the config.
func (c *Config) Options() (Options, error) {
	reg, err := c.Registry()
	if err != nil {
		return Options{}, err
	}

	return Options{
		Registry:       reg,
		MaxRecursion:   c.MaxRecursion,
		SpillThreshold: c.SpillThreshold,
		TempDir:        c.TempDir,
	}, nil
}
