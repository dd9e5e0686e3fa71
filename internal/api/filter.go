// Copyright 2026 The modeldeck Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/traylinx/modeldeck/internal/registry"
)

// filterCache compiles model filter expressions once and reuses them.
type filterCache struct {
	mu       sync.Mutex
	programs map[string]*vm.Program
	limit    int
}

func newFilterCache(limit int) *filterCache {
	return &filterCache{programs: make(map[string]*vm.Program), limit: limit}
}

// filterEnv is the variable set a filter expression sees for one model.
func filterEnv(m registry.Model, p registry.Provider) map[string]any {
	return map[string]any{
		"id":            m.ID,
		"displayName":   m.DisplayName,
		"maxTokens":     m.MaxTokens,
		"supportVision": m.SupportVision,
		"supportTool":   m.SupportTool,
		"selected":      m.Selected,
		"type":          m.Type,
		"provider": map[string]any{
			"id":           p.ID,
			"providerName": p.ProviderName,
			"providerLogo": p.ProviderLogo,
			"status":       p.Status,
		},
	}
}

func (f *filterCache) compile(condition string) (*vm.Program, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if program, ok := f.programs[condition]; ok {
		return program, nil
	}
	program, err := expr.Compile(condition,
		expr.Env(filterEnv(registry.Model{}, registry.Provider{})),
		expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", condition, err)
	}
	if len(f.programs) >= f.limit {
		f.programs = make(map[string]*vm.Program)
	}
	f.programs[condition] = program
	return program, nil
}

// Filter returns the models of st for which condition holds, in list order.
// An empty condition matches every model.
func (f *filterCache) Filter(condition string, st registry.State) ([]registry.Model, error) {
	models := st.ModelList()
	if condition == "" {
		return models, nil
	}
	program, err := f.compile(condition)
	if err != nil {
		return nil, err
	}
	out := make([]registry.Model, 0, len(models))
	for _, m := range models {
		output, err := expr.Run(program, filterEnv(m, st.ProviderFor(m.Provider.ID)))
		if err != nil {
			return nil, fmt.Errorf("filter %q on model %s: %w", condition, m.ID, err)
		}
		if matched, _ := output.(bool); matched {
			out = append(out, m)
		}
	}
	return out, nil
}
