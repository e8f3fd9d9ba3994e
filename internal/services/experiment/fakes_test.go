package experiment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"crosplit/internal/apperr"
	"crosplit/internal/config"
	"crosplit/internal/database"
	"crosplit/internal/logger"
	"crosplit/internal/models"
	"crosplit/internal/services/convert"
	"crosplit/internal/services/notify"
	"crosplit/internal/services/shopify"
)

const testShop = "demo.myshopify.com"

func newTestStore(t *testing.T) *database.Database {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	store := database.Wrap(db)
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { store.Close() })
	return store
}

func testSettings() models.Setting {
	return models.Setting{
		ConvertAccountID: "10",
		ConvertProjectID: "20",
		ConvertAPIKey:    "key",
		ConvertSecretKey: "secret",
		StorefrontURL:    "https://shop.test",
		NotifyEmail:      "merchant@shop.test",
	}
}

type harness struct {
	store   *database.Database
	pages   *fakePages
	convert *fakeConvert
	sender  *fakeSender
	coord   *Coordinator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:   newTestStore(t),
		pages:   newFakePages(),
		convert: newFakeConvert(),
		sender:  &fakeSender{},
	}
	cfg := &config.Config{AppURL: "https://app.test/"}
	h.coord = New(cfg, h.store, h.sender, func(models.Setting) (ExperienceAPI, error) { return h.convert, nil }, logger.Nop())
	return h
}

// fakePages is an in-memory storefront.
type fakePages struct {
	mu         sync.Mutex
	nextID     int64
	handles    map[string]int64
	createErr  map[string]error
	deleteErr  error
	metaErr    error
	deleted    []int64
	metafields []shopify.Metafield
	created    []shopify.PageInput
}

func newFakePages() *fakePages {
	return &fakePages{nextID: 1000, handles: map[string]int64{}, createErr: map[string]error{}}
}

func (f *fakePages) ShopDomain() string { return testShop }

func (f *fakePages) HandleTaken(ctx context.Context, handle string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handles[handle]
	return ok, nil
}

func (f *fakePages) CreatePage(ctx context.Context, input shopify.PageInput) (*shopify.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.createErr[input.Handle]; ok {
		return nil, err
	}
	f.nextID++
	f.handles[input.Handle] = f.nextID
	f.created = append(f.created, input)
	return &shopify.Page{ID: f.nextID, Title: input.Title, Handle: input.Handle, BodyHTML: input.BodyHTML}, nil
}

func (f *fakePages) CreateMetafield(ctx context.Context, m shopify.Metafield) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metafields = append(f.metafields, m)
	return f.metaErr
}

func (f *fakePages) DeletePage(ctx context.Context, pageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, pageID)
	return nil
}

// fakeConvert records calls and serves canned responses.
type fakeConvert struct {
	mu          sync.Mutex
	calls       []string
	failOn      map[string]error
	noLocation  bool
	experiences map[string]*convert.Experience
	reports     map[string][]convert.GoalReport
	nextID      int
}

func newFakeConvert() *fakeConvert {
	return &fakeConvert{
		failOn:      map[string]error{},
		experiences: map[string]*convert.Experience{},
		reports:     map[string][]convert.GoalReport{},
		nextID:      900,
	}
}

func (f *fakeConvert) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	for prefix, err := range f.failOn {
		if strings.HasPrefix(call, prefix) {
			return err
		}
	}
	return nil
}

func (f *fakeConvert) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeConvert) AddLocation(ctx context.Context, location convert.Location) (convert.ID, error) {
	if err := f.record("AddLocation"); err != nil {
		return "", err
	}
	if f.noLocation {
		return "", apperr.Upstream("convert", 0, `{}`, errors.New("failed to create location: response has no id"))
	}
	return "555", nil
}

func (f *fakeConvert) AddExperience(ctx context.Context, input convert.ExperienceInput) (*convert.Experience, error) {
	if err := f.record("AddExperience"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	exp := &convert.Experience{ID: convert.ID(fmt.Sprint(f.nextID)), Name: input.Name, Status: input.Status}
	for i, v := range input.Variations {
		exp.Variations = append(exp.Variations, convert.Variation{ID: convert.ID(fmt.Sprint(f.nextID*10 + i)), Name: v.Name})
	}
	f.experiences[exp.ID.String()] = exp
	return exp, nil
}

func (f *fakeConvert) GetExperience(ctx context.Context, id string) (*convert.Experience, error) {
	if err := f.record("GetExperience " + id); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	exp, ok := f.experiences[id]
	if !ok {
		return nil, apperr.Upstream("convert", 404, "", nil)
	}
	cp := *exp
	return &cp, nil
}

func (f *fakeConvert) UpdateExperienceStatus(ctx context.Context, id, status string) error {
	return f.record("UpdateExperienceStatus " + id + " " + status)
}

func (f *fakeConvert) DeleteExperience(ctx context.Context, id string) error {
	return f.record("DeleteExperience " + id)
}

func (f *fakeConvert) DeleteVariation(ctx context.Context, id, variationID string) error {
	return f.record("DeleteVariation " + id + " " + variationID)
}

func (f *fakeConvert) AggregatedReport(ctx context.Context, id string) ([]convert.GoalReport, error) {
	if err := f.record("AggregatedReport " + id); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reports[id], nil
}

func (f *fakeConvert) ConvertVariation(ctx context.Context, id, variationID string) error {
	return f.record("ConvertVariation " + id + " " + variationID)
}

type fakeSender struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (f *fakeSender) Send(ctx context.Context, msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeSender) Messages() []notify.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Message(nil), f.msgs...)
}
