package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memAuditRepo struct {
	entries []Entry

	gotFilters Filters
	gotLimit   int
	gotOffset  int
}

func (m *memAuditRepo) List(_ context.Context, f Filters, limit, offset int) ([]Entry, int, error) {
	m.gotFilters = f
	m.gotLimit = limit
	m.gotOffset = offset

	matched := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if f.Module != "" && e.Module != f.Module {
			continue
		}
		if f.ActorID != nil && (e.ActorID == nil || *e.ActorID != *f.ActorID) {
			continue
		}
		matched = append(matched, e)
	}

	total := len(matched)
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func TestAuditListAppliesDefaults(t *testing.T) {
	repo := &memAuditRepo{}
	svc := NewService(repo, nil)

	page, err := svc.List(context.Background(), Filters{})
	require.NoError(t, err)

	assert.Equal(t, 20, repo.gotLimit)
	assert.Equal(t, 0, repo.gotOffset)
	assert.Equal(t, 1, page.Meta.Page)
	assert.NotNil(t, page.Data)
}

func TestAuditListFiltersByModule(t *testing.T) {
	actor := int64(3)
	repo := &memAuditRepo{entries: []Entry{
		{ID: 1, Action: ActionAccountCreate, Module: "accounts", ActorID: &actor, CreatedAt: time.Now()},
		{ID: 2, Action: ActionInvoiceIssue, Module: "finance", CreatedAt: time.Now()},
	}}
	svc := NewService(repo, nil)

	page, err := svc.List(context.Background(), Filters{Module: "accounts"})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, ActionAccountCreate, page.Data[0].Action)
	assert.Equal(t, 1, page.Meta.Total)
}

func TestAuditListPaginates(t *testing.T) {
	repo := &memAuditRepo{}
	for i := int64(1); i <= 25; i++ {
		repo.entries = append(repo.entries, Entry{ID: i, Action: ActionAccountUpdate, Module: "accounts"})
	}
	svc := NewService(repo, nil)

	page, err := svc.List(context.Background(), Filters{Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, repo.gotOffset)
	assert.Len(t, page.Data, 10)
	assert.Equal(t, 25, page.Meta.Total)
	assert.Equal(t, 3, page.Meta.TotalPages)
}
