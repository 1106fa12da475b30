package collector

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"DCAScanner/internal/model"
)

// ErrNoBars is returned when a symbol has no stored bars.
var ErrNoBars = errors.New("no bars available")

// barFile is the on-disk layout of <dir>/<SYMBOL>.yaml.
type barFile struct {
	Symbol string        `yaml:"symbol"`
	Market string        `yaml:"market"`
	Bars   []model.OHLCV `yaml:"bars"`
}

// FileFetcher serves daily bars from YAML files, one per symbol.
type FileFetcher struct {
	Dir string
}

// NewFileFetcher creates a fetcher reading from dir.
func NewFileFetcher(dir string) *FileFetcher {
	return &FileFetcher{Dir: dir}
}

func (f *FileFetcher) Name() string { return "file" }

func (f *FileFetcher) load(symbol string) ([]model.OHLCV, error) {
	name := strings.ToUpper(strings.TrimSpace(symbol)) + ".yaml"
	data, err := os.ReadFile(filepath.Join(f.Dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", symbol, ErrNoBars)
		}
		return nil, fmt.Errorf("read bars: %w", err)
	}

	var bf barFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return nil, fmt.Errorf("parse bars %s: %w", name, err)
	}
	if len(bf.Bars) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoBars)
	}
	sort.SliceStable(bf.Bars, func(i, j int) bool { return bf.Bars[i].Time.Before(bf.Bars[j].Time) })
	return bf.Bars, nil
}

func (f *FileFetcher) FetchDailyBars(symbol string, _ model.Market, days int) ([]model.OHLCV, error) {
	bars, err := f.load(symbol)
	if err != nil {
		return nil, err
	}
	if days > 0 && len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	return bars, nil
}

func (f *FileFetcher) FetchCurrentPrice(symbol string, _ model.Market) (float64, error) {
	bars, err := f.load(symbol)
	if err != nil {
		return 0, err
	}
	return bars[len(bars)-1].Close, nil
}
