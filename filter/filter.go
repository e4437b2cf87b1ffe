package filter

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/scipunch/technews/config"
	"github.com/scipunch/technews/fetcher/types"
)

// Pipeline applies a series of named filters to news items
type Pipeline struct {
	filters []*compiledFilter
}

type compiledFilter struct {
	name            string
	config          config.Filter
	excludePatterns []*regexp.Regexp
	includePatterns []*regexp.Regexp
}

// NewPipeline compiles the filters listed in names, in that order.
// Unknown names are skipped with a warning; invalid patterns are an error.
func NewPipeline(filtersConfig map[string]config.Filter, names []string) (*Pipeline, error) {
	p := &Pipeline{}
	for _, name := range names {
		filterCfg, ok := filtersConfig[name]
		if !ok {
			slog.Warn("filter not found, skipping", "filter_name", name)
			continue
		}

		cf := &compiledFilter{name: name, config: filterCfg}
		for _, pattern := range filterCfg.ExcludePatterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("%w: filter %s has invalid exclude pattern %q: %w", config.ErrConfiguration, name, pattern, err)
			}
			cf.excludePatterns = append(cf.excludePatterns, re)
		}
		for _, pattern := range filterCfg.IncludePatterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("%w: filter %s has invalid include pattern %q: %w", config.ErrConfiguration, name, pattern, err)
			}
			cf.includePatterns = append(cf.includePatterns, re)
		}
		p.filters = append(p.filters, cf)
	}
	return p, nil
}

// Include reports whether the item passes every filter, and the rejecting rule otherwise
func (p *Pipeline) Include(item types.NewsItem) (bool, string) {
	if p == nil {
		return true, ""
	}
	for _, f := range p.filters {
		if ok, reason := f.apply(item); !ok {
			return false, reason
		}
	}
	return true, ""
}

// Apply returns the items that pass the pipeline, preserving order
func (p *Pipeline) Apply(items []types.NewsItem) []types.NewsItem {
	if p == nil || len(p.filters) == 0 {
		return items
	}
	kept := items[:0:0]
	for _, item := range items {
		if ok, reason := p.Include(item); !ok {
			slog.Debug("item filtered out", "title", item.Title, "reason", reason)
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

func (f *compiledFilter) apply(item types.NewsItem) (bool, string) {
	text := item.Title

	if f.config.MinLength > 0 && utf8.RuneCountInString(text) < f.config.MinLength {
		return false, f.name + ":min_length"
	}

	if f.config.MinWords > 0 && countWords(text) < f.config.MinWords {
		return false, f.name + ":min_words"
	}

	for i, pattern := range f.excludePatterns {
		if pattern.MatchString(text) {
			return false, f.name + ":exclude_pattern[" + f.config.ExcludePatterns[i] + "]"
		}
	}

	if len(f.includePatterns) > 0 {
		matched := false
		for _, pattern := range f.includePatterns {
			if pattern.MatchString(text) {
				matched = true
				break
			}
		}
		if !matched {
			return false, f.name + ":include_patterns"
		}
	}

	for _, source := range f.config.ExcludeSources {
		if strings.EqualFold(strings.TrimSpace(source), item.Source) {
			return false, f.name + ":exclude_sources[" + source + "]"
		}
	}

	return true, ""
}

// countWords counts the number of words in text
func countWords(text string) int {
	words := 0
	inWord := false

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			if !inWord {
				words++
				inWord = true
			}
		} else {
			inWord = false
		}
	}

	return words
}
