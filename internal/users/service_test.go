package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signhub/signhub/internal/rbac"
	"github.com/signhub/signhub/internal/shared"
	"github.com/signhub/signhub/internal/twofactor"
)

const knownSecret = "JBSWY3DPEHPK3PXP"

type memRepo struct {
	users   map[int64]*User
	saves   int
	created []string
	nextID  int64
}

func newMemRepo(users ...User) *memRepo {
	repo := &memRepo{users: map[int64]*User{}, nextID: 100}
	for i := range users {
		u := users[i]
		repo.users[u.ID] = &u
	}
	return repo
}

func (m *memRepo) Get(ctx context.Context, id int64) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *u
	copied.TwoFactor.RecoveryCodes = append([]string(nil), u.TwoFactor.RecoveryCodes...)
	return &copied, nil
}

func (m *memRepo) List(ctx context.Context) ([]User, error) {
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, nil
}

func (m *memRepo) Save(ctx context.Context, user *User) error {
	if _, ok := m.users[user.ID]; !ok {
		return shared.ErrNotFound
	}
	copied := *user
	m.users[user.ID] = &copied
	m.saves++
	return nil
}

func (m *memRepo) Create(ctx context.Context, user *User, defaultGroup string) error {
	for _, u := range m.users {
		if u.UserName == user.UserName {
			return shared.InvalidInput("userName", "User name is already in use")
		}
	}
	m.nextID++
	user.ID = m.nextID
	user.GroupID = m.nextID + 1000
	copied := *user
	m.users[user.ID] = &copied
	m.created = append(m.created, defaultGroup)
	return nil
}

type passwordCall struct {
	userID  int64
	newPass string
	oldPass string
}

type stubCredentials struct {
	calls []passwordCall
	err   error
}

func (s *stubCredentials) SetPassword(ctx context.Context, userID int64, newPassword, oldPassword string) error {
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, passwordCall{userID: userID, newPass: newPassword, oldPass: oldPassword})
	return nil
}

type fixture struct {
	repo  *memRepo
	creds *stubCredentials
	svc   *Service
}

func newFixture(mailFrom string, users ...User) *fixture {
	repo := newMemRepo(users...)
	creds := &stubCredentials{}
	tfa := twofactor.NewService(twofactor.Config{Issuer: "Signhub", MailFrom: mailFrom}, nil)
	return &fixture{repo: repo, creds: creds, svc: NewService(repo, creds, tfa, Defaults{GroupName: "Users"}, nil)}
}

var (
	admin = rbac.Actor{UserID: 1, UserTypeID: rbac.UserTypeSuperAdmin}
	plain = rbac.Actor{UserID: 2, UserTypeID: rbac.UserTypeUser}
)

func alice() User {
	return User{ID: 2, UserName: "alice", Email: "alice@example.com", UserTypeID: rbac.UserTypeUser, IsPasswordChangeRequired: true}
}

func currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	return code
}

func requireField(t *testing.T, err error, field, message string) {
	t.Helper()
	var invalid *shared.InvalidInputError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, field, invalid.Field)
	if message != "" {
		assert.Equal(t, message, invalid.Message)
	}
}

func TestChangePasswordRequiresMatchingRetype(t *testing.T) {
	f := newFixture("", alice())
	err := f.svc.ChangePassword(context.Background(), 2, "old", "new-one", "new-two")
	requireField(t, err, "password", "Passwords do not match")
	assert.Empty(t, f.creds.calls)
	assert.Zero(t, f.repo.saves)
}

func TestChangePasswordDelegatesAndClearsFlag(t *testing.T) {
	f := newFixture("", alice())
	require.NoError(t, f.svc.ChangePassword(context.Background(), 2, "old", "s3cret", "s3cret"))

	require.Len(t, f.creds.calls, 1)
	assert.Equal(t, passwordCall{userID: 2, newPass: "s3cret", oldPass: "old"}, f.creds.calls[0])
	assert.False(t, f.repo.users[2].IsPasswordChangeRequired)
}

func TestChangePasswordKeepsFlagWhenStoreRejects(t *testing.T) {
	f := newFixture("", alice())
	f.creds.err = shared.InvalidInput("password", "Current password is incorrect")

	err := f.svc.ChangePassword(context.Background(), 2, "wrong", "s3cret", "s3cret")
	requireField(t, err, "password", "Current password is incorrect")
	assert.True(t, f.repo.users[2].IsPasswordChangeRequired)
}

func TestForceChangePassword(t *testing.T) {
	f := newFixture("", alice())
	ctx := context.Background()

	requireField(t, f.svc.ForceChangePassword(ctx, 2, "", ""), "password", "Please enter the password")
	requireField(t, f.svc.ForceChangePassword(ctx, 2, "a", "b"), "password", "Passwords do not match")

	require.NoError(t, f.svc.ForceChangePassword(ctx, 2, "fresh", "fresh"))
	assert.Equal(t, "", f.creds.calls[0].oldPass)
	assert.False(t, f.repo.users[2].IsPasswordChangeRequired)
}

func TestForceChangePasswordNeedsChangeRequiredFlag(t *testing.T) {
	u := alice()
	u.IsPasswordChangeRequired = false
	f := newFixture("", u)

	err := f.svc.ForceChangePassword(context.Background(), 2, "fresh", "fresh")
	assert.ErrorIs(t, err, shared.ErrAccessDenied)
	assert.Empty(t, f.creds.calls)
}

func TestEditProfileEnrollsAppWithVerifiedCode(t *testing.T) {
	f := newFixture("", alice())
	ctx := context.Background()

	enrollment, err := f.svc.TwoFactorSetup(ctx, 2)
	require.NoError(t, err)
	require.True(t, enrollment.Pending())
	assert.Empty(t, f.repo.users[2].TwoFactor.Secret, "setup must not persist the secret")

	pending := enrollment.PendingSecret
	user, err := f.svc.EditProfile(ctx, 2, ProfileInput{
		Email:         "alice@example.com",
		TwoFactorType: twofactor.FactorApp,
		Code:          currentCode(t, pending),
	}, &enrollment)
	require.NoError(t, err)

	assert.Equal(t, twofactor.FactorApp, user.TwoFactor.Type)
	assert.Equal(t, pending, f.repo.users[2].TwoFactor.Secret)
	assert.False(t, enrollment.Pending())
}

func TestEditProfileRejectsWrongCode(t *testing.T) {
	f := newFixture("", alice())
	ctx := context.Background()
	enrollment, err := f.svc.TwoFactorSetup(ctx, 2)
	require.NoError(t, err)

	_, err = f.svc.EditProfile(ctx, 2, ProfileInput{TwoFactorType: twofactor.FactorApp, Code: "000000"}, &enrollment)
	requireField(t, err, "code", "")
	assert.False(t, enrollment.Pending(), "a rejected code discards the pending secret")
	assert.Equal(t, twofactor.FactorOff, f.repo.users[2].TwoFactor.Type)
	assert.Empty(t, f.repo.users[2].TwoFactor.Secret)
	assert.Zero(t, f.repo.saves)

	_, err = f.svc.EditProfile(ctx, 2, ProfileInput{TwoFactorType: twofactor.FactorApp}, nil)
	requireField(t, err, "code", "Access Code is empty")
}

func TestEditProfileWrongCodeKeepsPassword(t *testing.T) {
	f := newFixture("", alice())
	ctx := context.Background()
	enrollment, err := f.svc.TwoFactorSetup(ctx, 2)
	require.NoError(t, err)

	_, err = f.svc.EditProfile(ctx, 2, ProfileInput{
		TwoFactorType:  twofactor.FactorApp,
		OldPassword:    "old",
		NewPassword:    "fresh",
		RetypePassword: "fresh",
		Code:           "000000",
	}, &enrollment)
	requireField(t, err, "code", "")
	assert.Empty(t, f.creds.calls, "password must not change when the code is rejected")
	assert.True(t, f.repo.users[2].IsPasswordChangeRequired)
}

func TestEditProfileEmailPrerequisites(t *testing.T) {
	ctx := context.Background()

	f := newFixture("cms@example.com", alice())
	_, err := f.svc.EditProfile(ctx, 2, ProfileInput{Email: "", TwoFactorType: twofactor.FactorEmail}, nil)
	requireField(t, err, "email", "Please provide valid email address")

	noSender := newFixture("", alice())
	_, err = noSender.svc.EditProfile(ctx, 2, ProfileInput{Email: "alice@example.com", TwoFactorType: twofactor.FactorEmail}, nil)
	requireField(t, err, "mail_from", "")

	user, err := f.svc.EditProfile(ctx, 2, ProfileInput{Email: "alice@example.com", TwoFactorType: twofactor.FactorEmail}, nil)
	require.NoError(t, err)
	assert.Equal(t, twofactor.FactorEmail, user.TwoFactor.Type)
	assert.NotEmpty(t, f.repo.users[2].TwoFactor.Secret, "email codes need a secret")
}

func TestEditProfileFromEmailToAppNeedsCode(t *testing.T) {
	u := alice()
	u.TwoFactor = twofactor.State{Type: twofactor.FactorEmail, Secret: knownSecret}
	f := newFixture("cms@example.com", u)
	ctx := context.Background()

	_, err := f.svc.EditProfile(ctx, 2, ProfileInput{Email: u.Email, TwoFactorType: twofactor.FactorApp}, nil)
	requireField(t, err, "code", "Access Code is empty")

	user, err := f.svc.EditProfile(ctx, 2, ProfileInput{Email: u.Email, TwoFactorType: twofactor.FactorApp, Code: currentCode(t, knownSecret)}, nil)
	require.NoError(t, err)
	assert.Equal(t, twofactor.FactorApp, user.TwoFactor.Type)
	assert.Equal(t, knownSecret, user.TwoFactor.Secret)
}

func TestEditProfileOffDisablesTwoFactor(t *testing.T) {
	u := alice()
	u.TwoFactor = twofactor.State{Type: twofactor.FactorApp, Secret: "S", RecoveryCodes: []string{"a", "b", "c", "d"}}
	f := newFixture("", u)

	user, err := f.svc.EditProfile(context.Background(), 2, ProfileInput{Email: u.Email, TwoFactorType: twofactor.FactorOff}, nil)
	require.NoError(t, err)
	assert.Equal(t, twofactor.State{Type: twofactor.FactorOff}, user.TwoFactor)
	assert.Equal(t, twofactor.State{Type: twofactor.FactorOff}, f.repo.users[2].TwoFactor)
}

func TestEditProfileChangesPassword(t *testing.T) {
	f := newFixture("", alice())
	_, err := f.svc.EditProfile(context.Background(), 2, ProfileInput{
		Email:          "alice@example.com",
		OldPassword:    "old",
		NewPassword:    "new",
		RetypePassword: "nope",
	}, nil)
	requireField(t, err, "password", "Passwords do not match")

	user, err := f.svc.EditProfile(context.Background(), 2, ProfileInput{
		Email:          "alice@example.com",
		OldPassword:    "old",
		NewPassword:    "new",
		RetypePassword: "new",
	}, nil)
	require.NoError(t, err)
	assert.False(t, user.IsPasswordChangeRequired)
	assert.Equal(t, []passwordCall{{userID: 2, newPass: "new", oldPass: "old"}}, f.creds.calls)
}

func TestRecoveryCodesRegenerate(t *testing.T) {
	u := alice()
	u.TwoFactor = twofactor.State{Type: twofactor.FactorApp, Secret: knownSecret}
	f := newFixture("", u)
	ctx := context.Background()

	first, err := f.svc.GenerateRecoveryCodes(ctx, 2)
	require.NoError(t, err)
	require.Len(t, first, 4)

	shown, err := f.svc.RecoveryCodes(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, first, shown)

	second, err := f.svc.GenerateRecoveryCodes(ctx, 2)
	require.NoError(t, err)
	for _, code := range first {
		assert.NotContains(t, second, code)
	}
	shown, err = f.svc.RecoveryCodes(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, second, shown)
}

func TestAdminEdit(t *testing.T) {
	u := alice()
	u.TwoFactor = twofactor.State{Type: twofactor.FactorApp, Secret: "S", RecoveryCodes: []string{"a"}}
	f := newFixture("", u)
	ctx := context.Background()

	_, err := f.svc.AdminEdit(ctx, plain, 2, AdminEditInput{DisableTwoFactor: true})
	assert.ErrorIs(t, err, shared.ErrAccessDenied)

	_, err = f.svc.AdminEdit(ctx, admin, 2, AdminEditInput{NewPassword: "x", RetypePassword: "y"})
	requireField(t, err, "password", "Passwords do not match")

	user, err := f.svc.AdminEdit(ctx, admin, 2, AdminEditInput{NewPassword: "reset", RetypePassword: "reset", DisableTwoFactor: true})
	require.NoError(t, err)
	assert.Equal(t, twofactor.State{Type: twofactor.FactorOff}, user.TwoFactor)
	assert.Equal(t, []passwordCall{{userID: 2, newPass: "reset"}}, f.creds.calls)

	retire := true
	_, err = f.svc.AdminEdit(ctx, admin, 1, AdminEditInput{Retired: &retire})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateAppliesDefaults(t *testing.T) {
	f := newFixture("", alice())
	ctx := context.Background()

	_, err := f.svc.Create(ctx, plain, CreateInput{UserName: "bob", Password: "pw"})
	assert.ErrorIs(t, err, shared.ErrAccessDenied)

	user, err := f.svc.Create(ctx, admin, CreateInput{UserName: " bob ", Email: "bob@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "bob", user.UserName)
	assert.Equal(t, rbac.UserTypeUser, user.UserTypeID)
	assert.True(t, user.IsPasswordChangeRequired)
	assert.Equal(t, []string{"Users"}, f.repo.created)
	assert.Equal(t, "pw", f.creds.calls[0].newPass)

	_, err = f.svc.Create(ctx, admin, CreateInput{UserName: "bob", Password: "pw"})
	requireField(t, err, "userName", "")
}

func TestListRequiresSuperAdmin(t *testing.T) {
	f := newFixture("", alice())
	_, err := f.svc.List(context.Background(), plain)
	assert.True(t, errors.Is(err, shared.ErrAccessDenied))

	users, err := f.svc.List(context.Background(), admin)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
