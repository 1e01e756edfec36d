package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aengwo/rfid-project/internal/campus/service"
	"github.com/aengwo/rfid-project/internal/campus/store"
	"github.com/aengwo/rfid-project/internal/campus/store/memory"
	"github.com/aengwo/rfid-project/internal/campus/types"
)

func TestDirectory_CreateNormalizesAndDefaults(t *testing.T) {
	dir := service.NewDirectory(memory.New())

	u, err := dir.Create(context.Background(), types.UserInput{
		CardID: " a1b2c3d4 ", Name: " Jane Doe ", Email: "Jane@Example.TEST",
	})
	require.NoError(t, err)
	assert.Equal(t, "A1B2C3D4", u.CardID)
	assert.Equal(t, "Jane Doe", u.Name)
	assert.Equal(t, "jane@example.test", u.Email)
	assert.Equal(t, types.UserActive, u.Status)
	assert.Equal(t, 1, u.AccessLevel)
}

func TestDirectory_CreateValidates(t *testing.T) {
	dir := service.NewDirectory(memory.New())
	ctx := context.Background()

	cases := []types.UserInput{
		{CardID: "nope", Name: "X", Email: "x@example.test"},
		{CardID: "A1B2C3D4", Email: "x@example.test"},
		{CardID: "A1B2C3D4", Name: "X", Email: "not-an-email"},
		{CardID: "A1B2C3D4", Name: "X", Email: "x@example.test", Status: "suspended"},
		{CardID: "A1B2C3D4", Name: "X", Email: "x@example.test", AccessLevel: 4},
	}
	for _, in := range cases {
		_, err := dir.Create(ctx, in)
		assert.ErrorIs(t, err, service.ErrInvalidInput, "%+v", in)
	}
}

func TestDirectory_LookupUnregisteredIsNotAnError(t *testing.T) {
	dir := service.NewDirectory(memory.New())

	_, ok, err := dir.Lookup(context.Background(), "DEADBEEF")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = dir.Lookup(context.Background(), "??")
	assert.ErrorIs(t, err, service.ErrInvalidCardID)
}

func TestDirectory_CardUniqueness(t *testing.T) {
	dir := service.NewDirectory(memory.New())
	ctx := context.Background()

	_, err := dir.Create(ctx, types.UserInput{CardID: "A1B2C3D4", Name: "Jane", Email: "jane@example.test"})
	require.NoError(t, err)
	other, err := dir.Create(ctx, types.UserInput{CardID: "0BADCAFE", Name: "John", Email: "john@example.test"})
	require.NoError(t, err)

	_, err = dir.Create(ctx, types.UserInput{CardID: "a1b2c3d4", Name: "Dup", Email: "dup@example.test"})
	assert.ErrorIs(t, err, service.ErrConflict)

	_, err = dir.Update(ctx, other.ID, types.UserInput{CardID: "A1B2C3D4"})
	assert.ErrorIs(t, err, service.ErrConflict)
}

func TestDirectory_UpdateKeepsUnsetFields(t *testing.T) {
	dir := service.NewDirectory(memory.New())
	ctx := context.Background()

	u, err := dir.Create(ctx, types.UserInput{CardID: "A1B2C3D4", Name: "Jane", Email: "jane@example.test", Phone: "+254700000000"})
	require.NoError(t, err)

	got, err := dir.Update(ctx, u.ID, types.UserInput{Status: "inactive", AccessLevel: 2})
	require.NoError(t, err)
	assert.Equal(t, "A1B2C3D4", got.CardID)
	assert.Equal(t, "Jane", got.Name)
	assert.Equal(t, "+254700000000", got.Phone)
	assert.Equal(t, types.UserInactive, got.Status)
	assert.Equal(t, 2, got.AccessLevel)

	_, err = dir.Update(ctx, 999, types.UserInput{Name: "Ghost"})
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestDirectory_DeleteReferencedUserConflicts(t *testing.T) {
	ms := memory.New()
	dir := service.NewDirectory(ms)
	ctx := context.Background()

	u, err := dir.Create(ctx, types.UserInput{CardID: "A1B2C3D4", Name: "Jane", Email: "jane@example.test"})
	require.NoError(t, err)
	appendEvent(t, ms, store.AccessEventRecord{
		CardID: "A1B2C3D4", UserID: ptr(u.ID), Location: "Lab",
		Direction: types.DirectionEntry, OccurredAt: time.Now().UTC(),
	})

	err = dir.Delete(ctx, u.ID)
	assert.True(t, errors.Is(err, service.ErrConflict), "got %v", err)

	unused, err := dir.Create(ctx, types.UserInput{CardID: "0BADCAFE", Name: "John", Email: "john@example.test"})
	require.NoError(t, err)
	require.NoError(t, dir.Delete(ctx, unused.ID))
	assert.ErrorIs(t, dir.Delete(ctx, unused.ID), service.ErrNotFound)
}

func TestDirectory_ListPaginates(t *testing.T) {
	dir := service.NewDirectory(memory.New())
	ctx := context.Background()

	for i := 0; i < 23; i++ {
		_, err := dir.Create(ctx, types.UserInput{
			CardID: fmt.Sprintf("%08X", i+1),
			Name:   fmt.Sprintf("Student %02d", i),
			Email:  fmt.Sprintf("s%02d@example.test", i),
		})
		require.NoError(t, err)
	}

	page, err := dir.List(ctx, "", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(23), page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 3, page.Page)
	assert.Len(t, page.Users, 3)

	found, err := dir.List(ctx, "student 07", 0)
	require.NoError(t, err)
	require.Len(t, found.Users, 1)
	assert.Equal(t, "Student 07", found.Users[0].Name)
	assert.Equal(t, 1, found.Page)

	n, err := dir.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(23), n)
}
