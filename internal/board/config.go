package board

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/obscura-fw/obscura/internal/memlayout"
)

// Default fixed script names on the flash volume.
const (
	DefaultBootScript = "boot.js"
	DefaultMainScript = "main.js"
)

// Config is a decoded board definition.
type Config struct {
	Board       string          `yaml:"board"`
	Banks       []BankDecl      `yaml:"banks"`
	Regions     []RegionDecl    `yaml:"regions"`
	Allocations []AllocDecl     `yaml:"allocations"`
	I2C         []I2CBus        `yaml:"i2c"`
	Codec       CodecConfig     `yaml:"codec"`
	Scripts     ScriptNames     `yaml:"scripts"`
	Firmware    []FirmwareImage `yaml:"firmware_images"`
}

// BankDecl declares one physical memory bank.
type BankDecl struct {
	Name   string `yaml:"name"`
	Origin uint64 `yaml:"origin"`
	Length Size   `yaml:"length"`
}

// RegionDecl declares one purpose-tagged region inside a bank.
type RegionDecl struct {
	Name    string `yaml:"name"`
	Bank    string `yaml:"bank"`
	Base    uint64 `yaml:"base"`
	Length  Size   `yaml:"length"`
	Purpose string `yaml:"purpose"`
}

// AllocDecl declares a named allocation carved from a region.
type AllocDecl struct {
	Name        string `yaml:"name"`
	Region      string `yaml:"region"`
	Offset      Size   `yaml:"offset"`
	Size        Size   `yaml:"size"`
	Overlay     bool   `yaml:"overlay"`
	Reclaimable bool   `yaml:"reclaimable"`
	Priority    int    `yaml:"priority"`
	Domain      string `yaml:"domain"`
}

// I2CBus assigns one physical I2C bus.
type I2CBus struct {
	ID    int    `yaml:"id"`
	SCL   string `yaml:"scl"`
	SDA   string `yaml:"sda"`
	Speed string `yaml:"speed"`
}

// CodecConfig holds the image codec quality thresholds.
type CodecConfig struct {
	QualityLow       int  `yaml:"quality_low"`
	QualityHigh      int  `yaml:"quality_high"`
	QualityThreshold Size `yaml:"quality_threshold"`
}

// ScriptNames holds the fixed-name scripts looked up on the flash volume.
type ScriptNames struct {
	Boot string `yaml:"boot"`
	Main string `yaml:"main"`
}

// FirmwareImage names an Intel HEX image to load into a
// peripheral-firmware-image region.
type FirmwareImage struct {
	Name   string `yaml:"name"`
	Region string `yaml:"region"`
	File   string `yaml:"file"`
}

// Load reads, schema-checks, and decodes a board definition file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read board file: %w", err)
	}
	return Parse(data)
}

// Parse schema-checks and decodes a board definition document.
func Parse(data []byte) (*Config, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode board file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Scripts.Boot == "" {
		c.Scripts.Boot = DefaultBootScript
	}
	if c.Scripts.Main == "" {
		c.Scripts.Main = DefaultMainScript
	}
}

// Partitioning converts the declarations into the memlayout model. The
// result still has to pass memlayout.Validate; this is a pure shape
// conversion.
func (c *Config) Partitioning() ([]memlayout.Bank, []memlayout.Region, []memlayout.Allocation) {
	banks := make([]memlayout.Bank, len(c.Banks))
	for i, b := range c.Banks {
		banks[i] = memlayout.Bank{Name: b.Name, Origin: b.Origin, Length: b.Length.Bytes()}
	}
	regions := make([]memlayout.Region, len(c.Regions))
	for i, r := range c.Regions {
		regions[i] = memlayout.Region{
			Name:    r.Name,
			Bank:    r.Bank,
			Base:    r.Base,
			Length:  r.Length.Bytes(),
			Purpose: memlayout.Purpose(r.Purpose),
		}
	}
	allocs := make([]memlayout.Allocation, len(c.Allocations))
	for i, a := range c.Allocations {
		allocs[i] = memlayout.Allocation{
			Name:        a.Name,
			Region:      a.Region,
			Offset:      a.Offset.Bytes(),
			Size:        a.Size.Bytes(),
			Overlay:     a.Overlay,
			Reclaimable: a.Reclaimable,
			Priority:    a.Priority,
			Domain:      a.Domain,
		}
	}
	return banks, regions, allocs
}
