package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reputationai/reputation-audit/internal/model"
	"github.com/reputationai/reputation-audit/internal/store"
)

func newRunsStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestLookupRunsByID(t *testing.T) {
	ctx := context.Background()
	st := newRunsStore(t)

	created, err := st.CreateRun(ctx, "owner-1", model.BusinessIdentity{Name: "Acme Plumbing"}, model.RequestMeta{})
	require.NoError(t, err)

	out, err := lookupRuns(ctx, st, created.ID, store.RunFilter{})
	require.NoError(t, err)
	run, ok := out.(*model.AuditRun)
	require.True(t, ok)
	assert.Equal(t, created.ID, run.ID)
	assert.Equal(t, model.StatusPending, run.Status)

	_, err = lookupRuns(ctx, st, "no-such-run", store.RunFilter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLookupRunsFiltered(t *testing.T) {
	ctx := context.Background()
	st := newRunsStore(t)

	first, err := st.CreateRun(ctx, "owner-1", model.BusinessIdentity{Name: "Acme"}, model.RequestMeta{})
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, "owner-1", model.BusinessIdentity{Name: "Beta"}, model.RequestMeta{})
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, "owner-2", model.BusinessIdentity{Name: "Gamma"}, model.RequestMeta{})
	require.NoError(t, err)

	claimed, err := st.BeginRun(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	out, err := lookupRuns(ctx, st, "", store.RunFilter{OwnerID: "owner-1"})
	require.NoError(t, err)
	runs, ok := out.([]model.AuditRun)
	require.True(t, ok)
	assert.Len(t, runs, 2)

	out, err = lookupRuns(ctx, st, "", store.RunFilter{OwnerID: "owner-1", Status: model.StatusProcessing})
	require.NoError(t, err)
	runs = out.([]model.AuditRun)
	require.Len(t, runs, 1)
	assert.Equal(t, first.ID, runs[0].ID)

	out, err = lookupRuns(ctx, st, "", store.RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, out.([]model.AuditRun), 1)
}
