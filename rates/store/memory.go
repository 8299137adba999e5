// Package store provides in-memory implementations of the rates persistence ports.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/rate-engine/rates"
)

// =============================================================================
// MEMORY STORE - In-memory ConfigStore + OverrideLog (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	profiles    map[rates.PropertyID]rates.CalculatorProfile
	committed   map[rates.PropertyID]map[rates.Date]decimal.Decimal
	submissions map[rates.PropertyID][]rates.SubmissionRecord
}

func NewMemory() *Memory {
	return &Memory{
		profiles:    make(map[rates.PropertyID]rates.CalculatorProfile),
		committed:   make(map[rates.PropertyID]map[rates.Date]decimal.Decimal),
		submissions: make(map[rates.PropertyID][]rates.SubmissionRecord),
	}
}

func (m *Memory) GetConfig(_ context.Context, propertyID rates.PropertyID) (rates.CalculatorProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[propertyID]
	if !ok {
		return rates.CalculatorProfile{}, rates.ErrProfileNotFound
	}
	return p.Clone(), nil
}

func (m *Memory) SaveConfig(_ context.Context, propertyID rates.PropertyID, profile rates.CalculatorProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[propertyID] = profile.Clone()
	return nil
}

// SaveCommitted upserts committed overrides per date.
func (m *Memory) SaveCommitted(_ context.Context, propertyID rates.PropertyID, overrides []rates.Override) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byDate, ok := m.committed[propertyID]
	if !ok {
		byDate = make(map[rates.Date]decimal.Decimal)
		m.committed[propertyID] = byDate
	}
	for _, o := range overrides {
		byDate[o.Date] = o.Rate
	}
	return nil
}

func (m *Memory) LoadCommitted(_ context.Context, propertyID rates.PropertyID) ([]rates.Override, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]rates.Override, 0, len(m.committed[propertyID]))
	for d, r := range m.committed[propertyID] {
		result = append(result, rates.Override{Date: d, Rate: r})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

// RecordSubmission appends to the audit log. Append-only.
func (m *Memory) RecordSubmission(_ context.Context, record rates.SubmissionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record.Overrides = append([]rates.Override(nil), record.Overrides...)
	m.submissions[record.PropertyID] = append(m.submissions[record.PropertyID], record)
	return nil
}

// ListSubmissions returns the newest records first. limit <= 0 means all.
func (m *Memory) ListSubmissions(_ context.Context, propertyID rates.PropertyID, limit int) ([]rates.SubmissionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.submissions[propertyID]
	result := make([]rates.SubmissionRecord, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		result = append(result, all[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

var (
	_ rates.ConfigStore = (*Memory)(nil)
	_ rates.OverrideLog = (*Memory)(nil)
)
