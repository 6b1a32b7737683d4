package oauth

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/aerogate/internal/domain/repository"
	jwtx "github.com/dropDatabas3/aerogate/internal/jwt"
)

// ---- fakes ----

type fakeClientRepo struct {
	mu      sync.Mutex
	clients map[string]repository.Client
}

func newFakeClientRepo() *fakeClientRepo {
	return &fakeClientRepo{clients: make(map[string]repository.Client)}
}

func (f *fakeClientRepo) Upsert(_ context.Context, c repository.Client) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clients[c.ClientID] = c
	return nil
}

func (f *fakeClientRepo) Get(_ context.Context, clientID string) (*repository.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clients[clientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

type fakeCodeRepo struct {
	mu    sync.Mutex
	codes map[string]repository.AuthCode
}

func newFakeCodeRepo() *fakeCodeRepo {
	return &fakeCodeRepo{codes: make(map[string]repository.AuthCode)}
}

func (f *fakeCodeRepo) Create(_ context.Context, c repository.AuthCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[c.Code] = c
	return nil
}

// Consume replica la semántica DELETE ... RETURNING: bajo el lock, de dos
// llamadas concurrentes con el mismo código solo una recibe la fila.
func (f *fakeCodeRepo) Consume(_ context.Context, code string) (*repository.AuthCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.codes[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(f.codes, code)
	return &c, nil
}

func (f *fakeCodeRepo) DeleteExpired(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for k, c := range f.codes {
		if time.Now().After(c.ExpiresAt) {
			delete(f.codes, k)
			n++
		}
	}
	return n, nil
}

type fakeUserRepo struct {
	users map[int64]*repository.User
}

func (f *fakeUserRepo) Create(_ context.Context, in repository.CreateUserInput) (*repository.User, error) {
	return nil, repository.ErrConflict
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, _ string) (*repository.User, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (*repository.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) UpdatePasswordHash(_ context.Context, _ int64, _ string) error {
	return nil
}

// ---- helpers ----

type fixture struct {
	svc     Service
	clients *fakeClientRepo
	codes   *fakeCodeRepo
	issuer  *jwtx.Issuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clients := newFakeClientRepo()
	codes := newFakeCodeRepo()
	users := &fakeUserRepo{users: map[int64]*repository.User{
		1: {ID: 1, Username: "admin", Email: "admin@example.com", Name: "Admin"},
	}}
	issuer := jwtx.NewIssuer("http://idp.test", "secret", 30*time.Minute)

	require.NoError(t, clients.Upsert(context.Background(), repository.Client{
		ClientID:     "app1",
		ClientSecret: "s1",
		RedirectURI:  "https://app/cb",
	}))

	svc := New(Deps{
		Clients: clients,
		Codes:   codes,
		Users:   users,
		Issuer:  issuer,
		CodeTTL: 5 * time.Minute,
	})
	return &fixture{svc: svc, clients: clients, codes: codes, issuer: issuer}
}

func (f *fixture) authorize(t *testing.T, state string) *AuthorizeResult {
	t.Helper()
	res, err := f.svc.Authorize(context.Background(), AuthorizeInput{
		UserID:       1,
		ClientID:     "app1",
		RedirectURI:  "https://app/cb",
		ResponseType: "code",
		State:        state,
	})
	require.NoError(t, err)
	return res
}

// ---- authorize ----

func TestAuthorizeIssuesCode(t *testing.T) {
	f := newFixture(t)

	res := f.authorize(t, "xyz")
	require.NotEmpty(t, res.Code)

	u, err := url.Parse(res.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, "app", u.Host)
	assert.Equal(t, "/cb", u.Path)
	assert.Equal(t, res.Code, u.Query().Get("code"))
	assert.Equal(t, "xyz", u.Query().Get("state"))
}

func TestAuthorizeOmitsEmptyState(t *testing.T) {
	f := newFixture(t)

	res := f.authorize(t, "")
	assert.NotContains(t, res.RedirectURL, "state=")
}

func TestAuthorizePreservesRedirectQuery(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.clients.Upsert(context.Background(), repository.Client{
		ClientID:     "app2",
		ClientSecret: "s2",
		RedirectURI:  "https://app/cb?env=prod",
	}))

	res, err := f.svc.Authorize(context.Background(), AuthorizeInput{
		UserID:       1,
		ClientID:     "app2",
		RedirectURI:  "https://app/cb?env=prod",
		ResponseType: "code",
	})
	require.NoError(t, err)

	u, err := url.Parse(res.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, "prod", u.Query().Get("env"))
	assert.Equal(t, res.Code, u.Query().Get("code"))
}

func TestAuthorizeRejectsUnknownClient(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Authorize(context.Background(), AuthorizeInput{
		UserID:       1,
		ClientID:     "ghost",
		RedirectURI:  "https://app/cb",
		ResponseType: "code",
	})
	assert.ErrorIs(t, err, ErrUnknownClient)
}

func TestAuthorizeRejectsRedirectMismatch(t *testing.T) {
	f := newFixture(t)

	// Match exacto: ni prefijos ni sufijos del URI registrado pasan.
	for _, uri := range []string{
		"https://app/cb/extra",
		"https://app/cbX",
		"https://evil/cb",
		"https://app/",
		"",
	} {
		_, err := f.svc.Authorize(context.Background(), AuthorizeInput{
			UserID:       1,
			ClientID:     "app1",
			RedirectURI:  uri,
			ResponseType: "code",
		})
		assert.ErrorIs(t, err, ErrRedirectMismatch, "uri=%q", uri)
	}
}

func TestAuthorizeRejectsNonCodeResponseType(t *testing.T) {
	f := newFixture(t)

	for _, rt := range []string{"token", "id_token", ""} {
		_, err := f.svc.Authorize(context.Background(), AuthorizeInput{
			UserID:       1,
			ClientID:     "app1",
			RedirectURI:  "https://app/cb",
			ResponseType: rt,
		})
		assert.ErrorIs(t, err, ErrUnsupportedResponseType, "response_type=%q", rt)
	}
}

// ---- exchange ----

func exchangeInput(code string) ExchangeInput {
	return ExchangeInput{
		GrantType:    "authorization_code",
		Code:         code,
		ClientID:     "app1",
		ClientSecret: "s1",
		RedirectURI:  "https://app/cb",
	}
}

func TestExchangeIssuesToken(t *testing.T) {
	f := newFixture(t)
	code := f.authorize(t, "").Code

	res, err := f.svc.Exchange(context.Background(), exchangeInput(code))
	require.NoError(t, err)

	assert.Equal(t, "Bearer", res.TokenType)
	assert.InDelta(t, int64(1800), res.ExpiresIn, 5)
	assert.Equal(t, 3, len(strings.Split(res.AccessToken, ".")))

	claims, err := f.issuer.Verify(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "1", claims["sub"])
	assert.Equal(t, "admin@example.com", claims["email"])
	assert.Equal(t, "Admin", claims["name"])
	assert.Equal(t, "app1", claims["aud"])
	assert.Equal(t, "http://idp.test", claims["iss"])
}

func TestExchangeCodeSingleUse(t *testing.T) {
	f := newFixture(t)
	code := f.authorize(t, "").Code

	_, err := f.svc.Exchange(context.Background(), exchangeInput(code))
	require.NoError(t, err)

	_, err = f.svc.Exchange(context.Background(), exchangeInput(code))
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestExchangeConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	code := f.authorize(t, "").Code

	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Exchange(context.Background(), exchangeInput(code))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, ErrInvalidCode)
		}
	}
	assert.Equal(t, 1, ok, "exactly one concurrent exchange must win")
}

func TestExchangeRejectsWrongGrantType(t *testing.T) {
	f := newFixture(t)
	code := f.authorize(t, "").Code

	in := exchangeInput(code)
	in.GrantType = "client_credentials"
	_, err := f.svc.Exchange(context.Background(), in)
	assert.ErrorIs(t, err, ErrUnsupportedGrantType)
}

func TestExchangeRejectsBadSecretWithoutBurningCode(t *testing.T) {
	f := newFixture(t)
	code := f.authorize(t, "").Code

	in := exchangeInput(code)
	in.ClientSecret = "wrong"
	_, err := f.svc.Exchange(context.Background(), in)
	assert.ErrorIs(t, err, ErrClientAuthFailed)

	// El intento fallido de autenticación no consumió el código.
	_, err = f.svc.Exchange(context.Background(), exchangeInput(code))
	assert.NoError(t, err)
}

func TestExchangeRejectsUnknownClient(t *testing.T) {
	f := newFixture(t)
	code := f.authorize(t, "").Code

	in := exchangeInput(code)
	in.ClientID = "ghost"
	_, err := f.svc.Exchange(context.Background(), in)
	assert.ErrorIs(t, err, ErrClientAuthFailed)
}

func TestExchangeRejectsRedirectMismatch(t *testing.T) {
	f := newFixture(t)
	code := f.authorize(t, "").Code

	in := exchangeInput(code)
	in.RedirectURI = "https://app/cb/extra"
	_, err := f.svc.Exchange(context.Background(), in)
	assert.ErrorIs(t, err, ErrClientAuthFailed)
}

func TestExchangeRejectsCodeBoundToOtherClient(t *testing.T) {
	f := newFixture(t)

	// app3 comparte redirect_uri con app1; el código emitido para app1
	// no puede canjearlo aunque su client auth sea válida.
	require.NoError(t, f.clients.Upsert(context.Background(), repository.Client{
		ClientID:     "app3",
		ClientSecret: "s3",
		RedirectURI:  "https://app/cb",
	}))
	code := f.authorize(t, "").Code

	_, err := f.svc.Exchange(context.Background(), ExchangeInput{
		GrantType:    "authorization_code",
		Code:         code,
		ClientID:     "app3",
		ClientSecret: "s3",
		RedirectURI:  "https://app/cb",
	})
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestExchangeRejectsExpiredCode(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.codes.Create(context.Background(), repository.AuthCode{
		Code:        "stale",
		UserID:      1,
		ClientID:    "app1",
		RedirectURI: "https://app/cb",
		ExpiresAt:   time.Now().Add(-time.Second),
	}))

	_, err := f.svc.Exchange(context.Background(), exchangeInput("stale"))
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestExchangeRejectsMissingCode(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Exchange(context.Background(), exchangeInput("never-issued"))
	assert.ErrorIs(t, err, ErrInvalidCode)
}

// ---- userinfo ----

func TestUserinfoReturnsClaims(t *testing.T) {
	f := newFixture(t)
	code := f.authorize(t, "").Code

	res, err := f.svc.Exchange(context.Background(), exchangeInput(code))
	require.NoError(t, err)

	info, err := f.svc.Userinfo(context.Background(), res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "1", info.Sub)
	assert.Equal(t, "admin@example.com", info.Email)
	assert.Equal(t, "Admin", info.Name)
}

func TestUserinfoRejectsGarbage(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Userinfo(context.Background(), "not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestUserinfoRejectsForeignSignature(t *testing.T) {
	f := newFixture(t)

	other := jwtx.NewIssuer("http://idp.test", "other-secret", 30*time.Minute)
	token, _, err := other.IssueAccess("1", "app1", "admin@example.com", "Admin")
	require.NoError(t, err)

	_, err = f.svc.Userinfo(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
