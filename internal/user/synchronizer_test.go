package user

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/protext/internal/model"
	"github.com/hitoshi/protext/internal/repository"
	"github.com/hitoshi/protext/internal/security"
)

// --- モック ---

// memStore はUserRepositoryのインメモリ実装。
// InTxは全体をロックし、fnがエラーを返した場合は開始時点の状態に戻す。
type memStore struct {
	mu        sync.Mutex
	users     map[string]model.User
	profiles  map[string]model.Profile
	analytics map[string]model.Analytics

	updateUserCalls    int
	updateProfileCalls int
	failOn             string
}

func newMemStore() *memStore {
	return &memStore{
		users:     map[string]model.User{},
		profiles:  map[string]model.Profile{},
		analytics: map[string]model.Analytics{},
	}
}

func (m *memStore) FindWithProfile(ctx context.Context, id string) (*model.UserWithProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.find(id), nil
}

func (m *memStore) InTx(ctx context.Context, fn func(tx repository.UserTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := cloneMap(m.users)
	profiles := cloneMap(m.profiles)
	analytics := cloneMap(m.analytics)

	if err := fn(memTx{m}); err != nil {
		m.users, m.profiles, m.analytics = users, profiles, analytics
		return err
	}
	return nil
}

func (m *memStore) find(id string) *model.UserWithProfile {
	u, ok := m.users[id]
	if !ok {
		return nil
	}
	out := &model.UserWithProfile{User: u}
	if p, ok := m.profiles[id]; ok {
		out.Profile = &p
	}
	if a, ok := m.analytics[id]; ok {
		out.Analytics = &a
	}
	return out
}

func cloneMap[V any](src map[string]V) map[string]V {
	dst := make(map[string]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

type memTx struct{ m *memStore }

func (t memTx) fail(op string) error {
	if t.m.failOn == op {
		return errors.New(op + " failed")
	}
	return nil
}

func (t memTx) InsertUserIfAbsent(ctx context.Context, u *model.User) (bool, error) {
	if err := t.fail("InsertUserIfAbsent"); err != nil {
		return false, err
	}
	if _, ok := t.m.users[u.ID]; ok {
		return false, nil
	}
	t.m.users[u.ID] = *u
	return true, nil
}

func (t memTx) LockUser(ctx context.Context, id string) (*model.User, error) {
	u, ok := t.m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (t memTx) UpdateUser(ctx context.Context, u *model.User) error {
	t.m.updateUserCalls++
	t.m.users[u.ID] = *u
	return nil
}

func (t memTx) FindProfile(ctx context.Context, userID string) (*model.Profile, error) {
	p, ok := t.m.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t memTx) InsertProfile(ctx context.Context, p *model.Profile) error {
	t.m.profiles[p.UserID] = *p
	return nil
}

func (t memTx) UpdateProfile(ctx context.Context, p *model.Profile) error {
	t.m.updateProfileCalls++
	t.m.profiles[p.UserID] = *p
	return nil
}

func (t memTx) EnsureAnalytics(ctx context.Context, a *model.Analytics) error {
	if err := t.fail("EnsureAnalytics"); err != nil {
		return err
	}
	if _, ok := t.m.analytics[a.UserID]; !ok {
		t.m.analytics[a.UserID] = *a
	}
	return nil
}

func (t memTx) FindWithProfile(ctx context.Context, id string) (*model.UserWithProfile, error) {
	return t.m.find(id), nil
}

func newTestSynchronizer(store *memStore) *Synchronizer {
	s := NewSynchronizer(store, security.NewTextSanitizer(), security.NewURLGuard())
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s
}

func adaIdentity() model.Identity {
	return model.Identity{
		UID:         "uid-ada",
		Email:       "ada@example.com",
		DisplayName: "Ada",
		AvatarURL:   "https://example.com/ada.png",
	}
}

// --- テスト ---

func TestSynchronizer_Sync_CreatesAllRecords(t *testing.T) {
	store := newMemStore()
	s := newTestSynchronizer(store)

	got, err := s.Sync(context.Background(), adaIdentity())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got.ID != "uid-ada" || got.Email != "ada@example.com" {
		t.Errorf("user = %+v", got.User)
	}
	if got.DisplayName == nil || *got.DisplayName != "Ada" {
		t.Errorf("DisplayName = %v, want Ada", got.DisplayName)
	}
	if got.Profile == nil {
		t.Fatal("profile was not created")
	}
	if got.Profile.AvatarURL == nil || *got.Profile.AvatarURL != "https://example.com/ada.png" {
		t.Errorf("AvatarURL = %v", got.Profile.AvatarURL)
	}
	if !reflect.DeepEqual(got.Profile.Preferences, DefaultPreferences()) {
		t.Errorf("Preferences = %v, want defaults", got.Profile.Preferences)
	}
	if got.Analytics == nil {
		t.Fatal("analytics baseline was not created")
	}
	if got.Analytics.TotalConversations != 0 || got.Analytics.StreakDays != 0 {
		t.Errorf("analytics = %+v, want zero baseline", got.Analytics)
	}
}

func TestSynchronizer_Sync_IsIdempotent(t *testing.T) {
	store := newMemStore()
	s := newTestSynchronizer(store)
	ctx := context.Background()

	first, err := s.Sync(ctx, adaIdentity())
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}
	second, err := s.Sync(ctx, adaIdentity())
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("records changed on second sync:\nfirst  %+v\nsecond %+v", first, second)
	}
	if len(store.users) != 1 || len(store.profiles) != 1 || len(store.analytics) != 1 {
		t.Errorf("row counts = %d/%d/%d, want 1/1/1", len(store.users), len(store.profiles), len(store.analytics))
	}
	if store.updateUserCalls != 0 || store.updateProfileCalls != 0 {
		t.Errorf("unexpected updates: user=%d profile=%d", store.updateUserCalls, store.updateProfileCalls)
	}
}

func TestSynchronizer_Sync_PreservesExistingValues(t *testing.T) {
	store := newMemStore()
	s := newTestSynchronizer(store)
	ctx := context.Background()

	if _, err := s.Sync(ctx, adaIdentity()); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	// ユーザーが設定を変更した状態を作る
	custom := "Countess"
	u := store.users["uid-ada"]
	u.DisplayName = &custom
	store.users["uid-ada"] = u
	p := store.profiles["uid-ada"]
	p.DisplayName = &custom
	p.Preferences = map[string]any{"theme": "dark"}
	store.profiles["uid-ada"] = p
	a := store.analytics["uid-ada"]
	a.TotalConversations = 12
	store.analytics["uid-ada"] = a

	incoming := adaIdentity()
	incoming.Email = "ada@new.example.com"
	incoming.DisplayName = "Ada from Google"
	incoming.AvatarURL = "https://example.com/other.png"

	got, err := s.Sync(ctx, incoming)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}

	if got.Email != "ada@new.example.com" {
		t.Errorf("Email = %q, want provider value", got.Email)
	}
	if *got.DisplayName != "Countess" {
		t.Errorf("user DisplayName = %q, want Countess", *got.DisplayName)
	}
	if *got.Profile.DisplayName != "Countess" {
		t.Errorf("profile DisplayName = %q, want Countess", *got.Profile.DisplayName)
	}
	if *got.Profile.AvatarURL != "https://example.com/ada.png" {
		t.Errorf("AvatarURL = %q, want original", *got.Profile.AvatarURL)
	}
	if got.Profile.Preferences["theme"] != "dark" {
		t.Errorf("Preferences = %v, want stored override kept", got.Profile.Preferences)
	}
	if got.Analytics.TotalConversations != 12 {
		t.Errorf("TotalConversations = %d, want 12", got.Analytics.TotalConversations)
	}
}

func TestSynchronizer_Sync_PlaceholderEmailKeepsStoredEmail(t *testing.T) {
	store := newMemStore()
	s := newTestSynchronizer(store)
	ctx := context.Background()

	if _, err := s.Sync(ctx, adaIdentity()); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	// 2回目のIDトークンにはemailクレームが無い
	noEmail := adaIdentity()
	noEmail.Email = "uid-ada@users.firebaseapp.local"
	noEmail.EmailIsPlaceholder = true

	got, err := s.Sync(ctx, noEmail)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if got.Email != "ada@example.com" {
		t.Errorf("Email = %q, want stored ada@example.com", got.Email)
	}
	if store.updateUserCalls != 0 {
		t.Errorf("updateUserCalls = %d, want 0", store.updateUserCalls)
	}
}

func TestSynchronizer_Sync_PlaceholderEmailOnFirstSignIn(t *testing.T) {
	store := newMemStore()
	s := newTestSynchronizer(store)

	id := adaIdentity()
	id.Email = "uid-ada@users.firebaseapp.local"
	id.EmailIsPlaceholder = true

	got, err := s.Sync(context.Background(), id)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.Email != "uid-ada@users.firebaseapp.local" {
		t.Errorf("Email = %q, want placeholder for a new user", got.Email)
	}
}

func TestSynchronizer_Sync_FillsNullFields(t *testing.T) {
	store := newMemStore()
	s := newTestSynchronizer(store)
	ctx := context.Background()

	noName := adaIdentity()
	noName.DisplayName = ""
	noName.AvatarURL = ""
	if _, err := s.Sync(ctx, noName); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if store.users["uid-ada"].DisplayName != nil {
		t.Fatal("expected null display name after first sync")
	}

	got, err := s.Sync(ctx, adaIdentity())
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if got.DisplayName == nil || *got.DisplayName != "Ada" {
		t.Errorf("user DisplayName = %v, want Ada", got.DisplayName)
	}
	if got.Profile.AvatarURL == nil {
		t.Error("expected avatar to be filled in")
	}
}

func TestSynchronizer_Sync_SanitizesProviderValues(t *testing.T) {
	store := newMemStore()
	s := newTestSynchronizer(store)

	identity := adaIdentity()
	identity.DisplayName = `<script>alert(1)</script><b>Ada</b>`
	identity.AvatarURL = "http://169.254.169.254/latest/meta-data/"

	got, err := s.Sync(context.Background(), identity)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if *got.DisplayName != "Ada" {
		t.Errorf("DisplayName = %q, want Ada", *got.DisplayName)
	}
	if got.Profile.AvatarURL != nil {
		t.Errorf("AvatarURL = %q, want nil for blocked URL", *got.Profile.AvatarURL)
	}
}

func TestSynchronizer_Sync_RollsBackOnFailure(t *testing.T) {
	store := newMemStore()
	store.failOn = "EnsureAnalytics"
	s := newTestSynchronizer(store)

	_, err := s.Sync(context.Background(), adaIdentity())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if len(store.users) != 0 || len(store.profiles) != 0 {
		t.Errorf("partial records left behind: users=%d profiles=%d", len(store.users), len(store.profiles))
	}
}

func TestSynchronizer_Sync_EmptySubject(t *testing.T) {
	s := newTestSynchronizer(newMemStore())

	_, err := s.Sync(context.Background(), model.Identity{Email: "x@example.com"})
	if !errors.Is(err, ErrEmptySubject) {
		t.Errorf("error = %v, want ErrEmptySubject", err)
	}
}

func TestSynchronizer_Sync_ConcurrentSameSubject(t *testing.T) {
	store := newMemStore()
	s := newTestSynchronizer(store)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Sync(context.Background(), adaIdentity()); err != nil {
				t.Errorf("sync failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(store.users) != 1 || len(store.profiles) != 1 || len(store.analytics) != 1 {
		t.Errorf("row counts = %d/%d/%d, want 1/1/1", len(store.users), len(store.profiles), len(store.analytics))
	}
}

func TestSynchronizer_Find(t *testing.T) {
	store := newMemStore()
	s := newTestSynchronizer(store)
	ctx := context.Background()

	got, err := s.Find(ctx, "uid-ada")
	if err != nil || got != nil {
		t.Fatalf("Find before sync = %v, %v; want nil, nil", got, err)
	}

	if _, err := s.Sync(ctx, adaIdentity()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	got, err = s.Find(ctx, "uid-ada")
	if err != nil || got == nil {
		t.Fatalf("Find after sync = %v, %v", got, err)
	}
}
