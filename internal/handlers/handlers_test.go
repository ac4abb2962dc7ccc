package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cidco-records/apiserver/internal/store"
	"github.com/cidco-records/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test-secret"

type fakeRegistryRepo struct {
	distinctValues []string
	searchRows     []types.SearchRow
	groupRows      []types.GroupRow
	record         types.PlotRecord
	err            error

	lastDim    store.Dimension
	lastFilter types.SearchFilter

	updatedID     string
	updatedFields map[string]any
}

func (f *fakeRegistryRepo) DistinctValues(ctx context.Context, dim store.Dimension, filter types.SearchFilter) ([]string, error) {
	f.lastDim = dim
	f.lastFilter = filter
	return f.distinctValues, f.err
}

func (f *fakeRegistryRepo) Search(ctx context.Context, filter types.SearchFilter) ([]types.SearchRow, error) {
	f.lastFilter = filter
	return f.searchRows, f.err
}

func (f *fakeRegistryRepo) GroupRows(ctx context.Context, groupBy store.GroupColumn, filter types.SearchFilter) ([]types.GroupRow, error) {
	f.lastFilter = filter
	return f.groupRows, f.err
}

func (f *fakeRegistryRepo) GetRecord(ctx context.Context, id string) (types.PlotRecord, error) {
	if f.record == nil {
		return nil, store.ErrNotFound
	}
	copied := make(types.PlotRecord, len(f.record))
	for key, value := range f.record {
		copied[key] = value
	}
	return copied, f.err
}

func (f *fakeRegistryRepo) UpdateRecord(ctx context.Context, id string, fields map[string]any) error {
	f.updatedID = id
	f.updatedFields = fields
	return f.err
}

type fakeUserRepo struct {
	users map[int]types.User
}

func newFakeUserRepo(users ...types.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: map[int]types.User{}}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (types.User, error) {
	for _, user := range f.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) GetByIdentifier(ctx context.Context, identifier string) (types.User, error) {
	for _, user := range f.users {
		if user.Username == identifier || user.Email == identifier {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	user.ID = len(f.users) + 1
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) SyncIDSequence(ctx context.Context) error { return nil }

func (f *fakeUserRepo) UpdatePassword(ctx context.Context, userID int, passwordHash string) error {
	user, ok := f.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	f.users[userID] = user
	return nil
}

func (f *fakeUserRepo) SetResetToken(ctx context.Context, userID int, token string, expires time.Time) error {
	return nil
}

func (f *fakeUserRepo) GetByValidResetToken(ctx context.Context, token string) (types.User, error) {
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) ResetPassword(ctx context.Context, userID int, passwordHash string) error {
	return f.UpdatePassword(ctx, userID, passwordHash)
}

type fakeEvidenceStorage struct {
	objects map[string][]string
	signErr map[string]error
}

func (f *fakeEvidenceStorage) List(ctx context.Context, prefix string) ([]string, error) {
	return f.objects[prefix], nil
}

func (f *fakeEvidenceStorage) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if err, ok := f.signErr[key]; ok {
		return "", err
	}
	return "https://signed.example.com/" + key, nil
}

func mustBcrypt(t *testing.T, password string) string {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hashed)
}

func bearerFor(t *testing.T, userID int) string {
	t.Helper()
	token, err := issueToken(userID, []byte(testJWTSecret), time.Hour)
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}
	return "Bearer " + token
}

func doJSON(t *testing.T, handler http.Handler, method, target, body, authorization string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}
