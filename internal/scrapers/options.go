package scrapers

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/4liaghaie/scraper-dashboard/internal/params"
)

// URLOptions configure a URL collection run.
type URLOptions struct {
	Limit int    `mapstructure:"limit"`
	Pages int    `mapstructure:"pages"`
	Proxy string `mapstructure:"proxy"`

	// presetTotal is set by the full refresh run, which manages the job
	// total across its phases itself.
	presetTotal bool
}

// DetailOptions configure a detail enrichment run.
type DetailOptions struct {
	Limit       int    `mapstructure:"limit"`
	Workers     int    `mapstructure:"workers"`
	MissingOnly bool   `mapstructure:"missing_only"`
	Proxy       string `mapstructure:"proxy"`

	presetTotal bool
}

// FullRunOptions configure the composite full refresh run.
type FullRunOptions struct {
	Limit   int `mapstructure:"limit"`
	Workers int `mapstructure:"workers"`
}

func urlParams() []params.Definition {
	return []params.Definition{
		params.Number{
			Name: "limit", Label: "Max products",
			Help: "Stop after collecting this many product URLs.",
			Min:  floatPtr(1), Max: floatPtr(5000), Default: 200,
		},
		params.Number{
			Name: "pages", Label: "Max pages",
			Help: "Stop after this many listing pages.",
			Min:  floatPtr(1), Max: floatPtr(200), Default: 20,
		},
		params.Text{Name: "proxy", Label: "Proxy URL"},
	}
}

func detailParams() []params.Definition {
	return []params.Definition{
		params.Number{
			Name: "limit", Label: "Max products",
			Min: floatPtr(1), Max: floatPtr(5000), Default: 200,
		},
		params.Number{
			Name: "workers", Label: "Workers",
			Min: floatPtr(1), Max: floatPtr(32), Default: 6,
		},
		params.Boolean{
			Name: "missing_only", Label: "Only missing details",
			Help:    "Skip products that already have detail data.",
			Default: true,
		},
		params.Text{Name: "proxy", Label: "Proxy URL"},
	}
}

func amazonParams() []params.Definition {
	return []params.Definition{
		params.Number{
			Name: "limit", Label: "Max products",
			Min: floatPtr(1), Max: floatPtr(5000), Default: 200,
		},
		params.Number{
			Name: "workers", Label: "Workers",
			Min: floatPtr(1), Max: floatPtr(32), Default: 4,
		},
		params.Text{Name: "proxy", Label: "Proxy URL"},
	}
}

func fullRunParams() []params.Definition {
	return []params.Definition{
		params.Number{
			Name: "limit", Label: "Max products per site",
			Min: floatPtr(1), Max: floatPtr(5000), Default: 200,
		},
		params.Number{
			Name: "workers", Label: "Workers",
			Min: floatPtr(1), Max: floatPtr(32), Default: 6,
		},
	}
}

// decodeOptions maps validated parameter values onto a typed options
// struct. Numbers arrive as float64 and are weakly coerced to ints.
func decodeOptions(values params.Values, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("build options decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(values)); err != nil {
		return fmt.Errorf("decode options: %w", err)
	}
	return nil
}

func floatPtr(v float64) *float64 { return &v }
