package receipt

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimestampLayout = "2006-01-02 15:04"
	defaultRemark          = "Thank you for shopping with us!"
)

// Settings controls receipt presentation. They are loaded from YAML.
type Settings struct {
	StoreName       string `yaml:"store_name"`
	Header          string `yaml:"header"`
	Remark          string `yaml:"remark"`
	Currency        string `yaml:"currency"`
	Locale          string `yaml:"locale"`
	Timezone        string `yaml:"timezone"`
	TimestampLayout string `yaml:"timestamp_layout"`
	PaperWidth      string `yaml:"paper_width"`
}

// DefaultSettings returns the settings used when no file is configured.
func DefaultSettings() Settings {
	return Settings{
		Remark:          defaultRemark,
		Currency:        "USD",
		Locale:          "en",
		Timezone:        "UTC",
		TimestampLayout: defaultTimestampLayout,
		PaperWidth:      "80mm",
	}
}

// LoadSettings reads settings from path. An empty path yields the defaults.
func LoadSettings(path string) (Settings, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultSettings(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("receipt: read settings: %w", err)
	}
	return ParseSettings(data)
}

// ParseSettings decodes YAML settings over the defaults.
func ParseSettings(data []byte) (Settings, error) {
	settings := DefaultSettings()
	if len(bytes.TrimSpace(data)) == 0 {
		return settings, nil
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("receipt: parse settings: %w", err)
	}
	if strings.TrimSpace(settings.TimestampLayout) == "" {
		settings.TimestampLayout = defaultTimestampLayout
	}
	if _, err := settings.location(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

func (s Settings) location() (*time.Location, error) {
	name := strings.TrimSpace(s.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("receipt: unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

var remarkPolicy = bluemonday.UGCPolicy()

// renderMarkdown converts a Markdown remark into sanitised HTML.
func renderMarkdown(src string) (string, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("receipt: render remark: %w", err)
	}
	return strings.TrimSpace(remarkPolicy.Sanitize(buf.String())), nil
}
