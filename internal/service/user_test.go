package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/testhelpers"
	"github.com/pageza/foodgram/backend/internal/types"
)

func registerRequest(username string) *types.RegisterRequest {
	return &types.RegisterRequest{
		Email:     username + "@mail.test",
		Username:  username,
		FirstName: "Ivan",
		LastName:  "Petrov",
		Password:  "correct-horse",
	}
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.users.Register(ctx, registerRequest("ivan"))
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.False(t, user.IsAdmin)
	assert.NotEqual(t, "correct-horse", user.PasswordHash)
	assert.True(t, service.CheckPassword(user.PasswordHash, "correct-horse"))

	dup := registerRequest("other")
	dup.Email = "IVAN@mail.test"
	_, err = f.users.Register(ctx, dup)
	fields := validationFields(t, err)
	assert.Contains(t, fields, "email")

	_, err = f.users.Register(ctx, registerRequest("ivan"))
	fields = validationFields(t, err)
	assert.Contains(t, fields, "username")
}

func TestRegisterRejectsReservedUsername(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"me", "ME", "bad name", "semi;colon"} {
		_, err := f.users.Register(context.Background(), registerRequest(name))
		fields := validationFields(t, err)
		assert.Contains(t, fields, "username", name)
	}
}

func TestRegisterRejectsPasswordOverBcryptLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for name, password := range map[string]string{
		"ascii":     strings.Repeat("a", 100),
		"multibyte": strings.Repeat("日", 30),
	} {
		req := registerRequest("long" + name)
		req.Password = password
		_, err := f.users.Register(ctx, req)
		fields := validationFields(t, err)
		assert.Contains(t, fields, "password", name)
	}

	var count int64
	require.NoError(t, f.db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)

	req := registerRequest("exact")
	req.Password = strings.Repeat("a", service.MaxPasswordBytes)
	_, err := f.users.Register(ctx, req)
	assert.NoError(t, err)
}

func TestValidUsername(t *testing.T) {
	assert.True(t, service.ValidUsername("user.name+tag@host-1"))
	assert.False(t, service.ValidUsername("Me"))
	assert.False(t, service.ValidUsername(""))
}

func TestCreateAdmin(t *testing.T) {
	f := newFixture(t)
	user, err := f.users.CreateAdmin(context.Background(), registerRequest("root"))
	require.NoError(t, err)
	assert.True(t, user.IsAdmin)
}

func TestSetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testhelpers.CreateUser(t, f.db, "ivan")

	err := f.users.SetPassword(ctx, user.ID, "wrong", "new-password")
	fields := validationFields(t, err)
	assert.Equal(t, []string{"Invalid password."}, fields["current_password"])

	err = f.users.SetPassword(ctx, user.ID, testhelpers.DefaultPassword, strings.Repeat("a", 100))
	fields = validationFields(t, err)
	assert.Contains(t, fields, "new_password")

	require.NoError(t, f.users.SetPassword(ctx, user.ID, testhelpers.DefaultPassword, "new-password"))
	_, err = f.auth.Login(ctx, user.Email, "new-password")
	assert.NoError(t, err)
	_, err = f.auth.Login(ctx, user.Email, testhelpers.DefaultPassword)
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestAvatar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testhelpers.CreateUser(t, f.db, "ivan")

	err := f.users.DeleteAvatar(ctx, user.ID)
	assert.ErrorIs(t, err, service.ErrNotPresent)

	_, err = f.users.SetAvatar(ctx, user.ID, "")
	assert.Contains(t, validationFields(t, err), "avatar")

	url, err := f.users.SetAvatar(ctx, user.ID, testhelpers.PNGDataURI)
	require.NoError(t, err)
	assert.Contains(t, url, "users/avatars/")

	_, err = f.users.SetAvatar(ctx, user.ID, testhelpers.PNGDataURI)
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.Len(), "previous avatar is removed")

	resp, err := f.users.GetUser(ctx, 0, user.ID)
	require.NoError(t, err)
	require.NotNil(t, resp.Avatar)

	require.NoError(t, f.users.DeleteAvatar(ctx, user.ID))
	assert.Zero(t, f.store.Len())
	resp, err = f.users.GetUser(ctx, 0, user.ID)
	require.NoError(t, err)
	assert.Nil(t, resp.Avatar)
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reader := testhelpers.CreateUser(t, f.db, "reader")
	author := testhelpers.CreateUser(t, f.db, "author")
	for _, name := range []string{"a", "b", "c"} {
		testhelpers.CreateRecipe(t, f.db, author, name, nil)
	}

	sub, err := f.users.Subscribe(ctx, reader.ID, author.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, author.ID, sub.ID)
	assert.True(t, sub.IsSubscribed)
	assert.EqualValues(t, 3, sub.RecipesCount)
	assert.Len(t, sub.Recipes, 2)

	_, err = f.users.Subscribe(ctx, reader.ID, author.ID, 0)
	assert.ErrorIs(t, err, service.ErrAlreadyExists)

	resp, err := f.users.GetUser(ctx, reader.ID, author.ID)
	require.NoError(t, err)
	assert.True(t, resp.IsSubscribed)

	subs, total, err := f.users.Subscriptions(ctx, reader.ID, 1, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, subs, 1)
	assert.Len(t, subs[0].Recipes, 3)

	require.NoError(t, f.users.Unsubscribe(ctx, reader.ID, author.ID))
	assert.ErrorIs(t, f.users.Unsubscribe(ctx, reader.ID, author.ID), service.ErrNotPresent)

	var edges int64
	require.NoError(t, f.db.Model(&models.Follower{}).Count(&edges).Error)
	assert.Zero(t, edges)
}

func TestSubscribeSelfAndUnknown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testhelpers.CreateUser(t, f.db, "solo")

	_, err := f.users.Subscribe(ctx, user.ID, user.ID, 0)
	assert.ErrorIs(t, err, service.ErrSelfFollow)
	assert.ErrorIs(t, err, service.ErrAlreadyExists)

	_, err = f.users.Subscribe(ctx, user.ID, 999, 0)
	assert.ErrorIs(t, err, service.ErrNotFound)
	assert.ErrorIs(t, f.users.Unsubscribe(ctx, user.ID, 999), service.ErrNotFound)
}

func TestListUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	viewer := testhelpers.CreateUser(t, f.db, "viewer")
	followed := testhelpers.CreateUser(t, f.db, "followed")
	testhelpers.CreateUser(t, f.db, "other")
	testhelpers.Follow(t, f.db, viewer, followed)

	users, total, err := f.users.ListUsers(ctx, viewer.ID, 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, users, 2)
	assert.False(t, users[0].IsSubscribed)
	assert.True(t, users[1].IsSubscribed)

	_, err = f.users.GetUser(ctx, viewer.ID, 999)
	assert.ErrorIs(t, err, service.ErrNotFound)
}
