package order

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/itsmewidii/fitriacookry/internal/cache"
	"github.com/itsmewidii/fitriacookry/internal/config"
	"github.com/itsmewidii/fitriacookry/internal/entity"
	"github.com/itsmewidii/fitriacookry/internal/messaging"
	repo "github.com/itsmewidii/fitriacookry/internal/repository/order"
	"github.com/itsmewidii/fitriacookry/internal/storage"
	"github.com/itsmewidii/fitriacookry/pkg/errorbank"
)

type fakeRepo struct {
	orders     map[int64]*entity.Order
	nextID     int64
	createErr  error
	updateErr  error
	deleteErr  error
	lastUpdate *entity.Order
	months     []repo.MonthCount
	dates      []repo.DateCount
	lastStart  time.Time
	lastEnd    time.Time
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{orders: map[int64]*entity.Order{}}
}

func (f *fakeRepo) Create(_ context.Context, o *entity.Order) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	o.ID = f.nextID
	clone := *o
	f.orders[o.ID] = &clone
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id int64, _ bool) (*entity.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	clone := *o
	return &clone, nil
}

func (f *fakeRepo) Exists(_ context.Context, id int64) (bool, error) {
	_, ok := f.orders[id]
	return ok, nil
}

func (f *fakeRepo) Update(_ context.Context, o *entity.Order) (int64, error) {
	f.lastUpdate = o
	if f.updateErr != nil {
		return 0, f.updateErr
	}
	stored, ok := f.orders[o.ID]
	if !ok {
		return 0, nil
	}
	stored.Name = o.Name
	stored.ShippingPrice = o.ShippingPrice
	stored.ShippingCode = o.ShippingCode
	stored.Shipping = o.Shipping
	stored.NoWhatsapp = o.NoWhatsapp
	stored.Email = o.Email
	stored.TotalQty = o.TotalQty
	stored.TotalPrice = o.TotalPrice
	stored.Address = o.Address
	stored.Status = o.Status
	stored.UpdatedAt = o.UpdatedAt
	return 1, nil
}

func (f *fakeRepo) ForceDelete(_ context.Context, id int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.orders[id]; !ok {
		return repo.ErrNotFound
	}
	delete(f.orders, id)
	return nil
}

func (f *fakeRepo) List(_ context.Context, p repo.ListParams) ([]entity.Order, int, int, error) {
	var out []entity.Order
	for _, o := range f.orders {
		if p.Search == "" || strings.Contains(o.Name, p.Search) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(f.orders), len(out), nil
}

func (f *fakeRepo) All(context.Context) ([]entity.Order, error) {
	out := make([]entity.Order, 0, len(f.orders))
	for _, o := range f.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) CountByMonth(_ context.Context, start, end time.Time) ([]repo.MonthCount, error) {
	f.lastStart, f.lastEnd = start, end
	return f.months, nil
}

func (f *fakeRepo) CountByDate(_ context.Context, start, end time.Time) ([]repo.DateCount, error) {
	f.lastStart, f.lastEnd = start, end
	return f.dates, nil
}

type fakeLookups struct {
	uniques []entity.Unique
}

func (f fakeLookups) Uniques(context.Context) ([]entity.Unique, error) { return f.uniques, nil }
func (f fakeLookups) Users(context.Context) ([]entity.User, error)     { return nil, nil }
func (f fakeLookups) UniqueExists(_ context.Context, id int64) (bool, error) {
	for _, u := range f.uniques {
		if u.ID == id {
			return true, nil
		}
	}
	return false, nil
}

type memoryCache struct {
	items   map[string][]byte
	deleted []string
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.items[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return v, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.items[key] = value
	return nil
}

func (m *memoryCache) Delete(_ context.Context, key string) error {
	delete(m.items, key)
	m.deleted = append(m.deleted, key)
	return nil
}

type published struct {
	topic string
	key   string
	value []byte
}

type recordingClient struct {
	messaging.NoopClient
	sent []published
}

func (r *recordingClient) Publish(_ context.Context, topic string, key, value []byte) error {
	r.sent = append(r.sent, published{topic: topic, key: string(key), value: value})
	return nil
}

type fixture struct {
	svc    *Service
	repo   *fakeRepo
	fs     afero.Fs
	cache  *memoryCache
	client *recordingClient
}

func newFixture(t *testing.T, now time.Time) fixture {
	t.Helper()

	cfg := config.Config{
		App:     config.App{Location: now.Location()},
		Storage: config.Storage{ProofFolder: "proofs"},
		Cache:   config.Cache{DefaultTTL: time.Minute},
		Messaging: config.Messaging{
			Enabled: true,
			Kafka:   config.Kafka{OrdersTopic: "orders.events", ChatTopic: "chat.messages"},
		},
	}
	fs := afero.NewMemMapFs()
	r := newFakeRepo()
	c := &memoryCache{items: map[string][]byte{}}
	client := &recordingClient{}

	svc, err := newService(r, fakeLookups{uniques: []entity.Unique{{ID: 1, Name: "FC-001"}}},
		storage.NewDiskFromFs(fs, "/storage"), c, client, cfg, zap.NewNop())
	require.NoError(t, err)
	svc.now = func() time.Time { return now }

	return fixture{svc: svc, repo: r, fs: fs, cache: c, client: client}
}

func validInput(content []byte) CreateInput {
	return CreateInput{
		UniqueID:      1,
		Name:          "Ani",
		NoWhatsapp:    "081234567890",
		Email:         "ani@example.com",
		TotalQty:      3,
		TotalPrice:    decimal.RequireFromString("90000"),
		ShippingPrice: decimal.RequireFromString("12000"),
		Address:       "Jl. Melati 1",
		Proof:         &Upload{Name: "bukti transfer.png", Content: bytes.NewReader(content)},
	}
}

func TestCreateStoresFieldsAndFile(t *testing.T) {
	now := time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)
	env := newFixture(t, now)
	content := []byte("\x89PNG\r\n\x1a\nfake image bytes")

	order, err := env.svc.Create(context.Background(), validInput(content))
	require.NoError(t, err)

	stored := env.repo.orders[order.ID]
	require.NotNil(t, stored)
	assert.Equal(t, "Ani", stored.Name)
	assert.Equal(t, int64(1), stored.UniqueID)
	assert.Equal(t, "ani@example.com", stored.Email)
	assert.Equal(t, int64(3), stored.TotalQty)
	assert.True(t, stored.TotalPrice.Equal(decimal.RequireFromString("90000")))
	assert.Equal(t, entity.StatusPending, stored.Status)
	assert.Equal(t, now, stored.CreatedAt)

	require.True(t, stored.HasProof())
	assert.True(t, strings.HasPrefix(*stored.ProofTransfer, "proofs/"))
	assert.True(t, strings.HasSuffix(*stored.ProofTransfer, "_bukti_transfer.png"))

	onDisk, err := afero.ReadFile(env.fs, "/"+*stored.ProofTransfer)
	require.NoError(t, err)
	assert.Equal(t, content, onDisk)

	require.Len(t, env.client.sent, 1)
	assert.Equal(t, "orders.events", env.client.sent[0].topic)
	assert.Equal(t, "order-1", env.client.sent[0].key)
	var event OrderCreatedEvent
	require.NoError(t, json.Unmarshal(env.client.sent[0].value, &event))
	assert.Equal(t, EventOrderCreated, event.Event)
	assert.Equal(t, order.ID, event.ID)
}

func TestCreateKeepsExplicitStatus(t *testing.T) {
	env := newFixture(t, time.Now().UTC())
	in := validInput([]byte("%PDF-1.4"))
	in.Status = "paid"

	order, err := env.svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "paid", env.repo.orders[order.ID].Status)
}

func TestCreateRejectsUnknownUnique(t *testing.T) {
	env := newFixture(t, time.Now().UTC())
	in := validInput([]byte("x"))
	in.UniqueID = 42

	_, err := env.svc.Create(context.Background(), in)
	require.Error(t, err)
	assert.True(t, errorbank.Is(err, errorbank.KindUnprocessableEntity))
	assert.Contains(t, errorbank.Fields(err), "unique_id")
	assert.Empty(t, env.repo.orders)

	files, _ := afero.Glob(env.fs, "/proofs/*")
	assert.Empty(t, files)
}

func TestCreatePersistenceFailureKeepsFile(t *testing.T) {
	env := newFixture(t, time.Now().UTC())
	env.repo.createErr = errors.New("db down")

	_, err := env.svc.Create(context.Background(), validInput([]byte("x")))
	require.Error(t, err)
	assert.True(t, errorbank.Is(err, errorbank.KindInternal))
	assert.Empty(t, env.client.sent)

	files, err := afero.Glob(env.fs, "/proofs/*")
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestStatsYearUsesMonthNames(t *testing.T) {
	env := newFixture(t, time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC))
	env.repo.months = []repo.MonthCount{{Month: 1, Total: 4}, {Month: 3, Total: 2}, {Month: 8, Total: 1}}

	stats, err := env.svc.Stats(context.Background(), RangeYear)
	require.NoError(t, err)
	assert.Equal(t, []string{"January", "March", "August"}, stats.Labels)
	assert.Equal(t, []int64{4, 2, 1}, stats.Data)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), env.repo.lastStart)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond), env.repo.lastEnd)
}

func TestStatsWeekAndMonthUseDayLabels(t *testing.T) {
	for _, r := range []Range{RangeWeek, RangeMonth} {
		t.Run(string(r), func(t *testing.T) {
			env := newFixture(t, time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC))
			env.repo.dates = []repo.DateCount{{Date: "2025-06-02", Total: 2}, {Date: "2025-06-04", Total: 5}}

			stats, err := env.svc.Stats(context.Background(), r)
			require.NoError(t, err)
			assert.Equal(t, []string{"02 Jun", "04 Jun"}, stats.Labels)
			assert.Equal(t, []int64{2, 5}, stats.Data)
		})
	}
}

func TestStatsEmptyWindow(t *testing.T) {
	env := newFixture(t, time.Now().UTC())

	stats, err := env.svc.Stats(context.Background(), RangeMonth)
	require.NoError(t, err)
	assert.Empty(t, stats.Labels)
	assert.Empty(t, stats.Data)
	assert.NotNil(t, stats.Labels)
}

func TestWindow(t *testing.T) {
	wib := time.FixedZone("WIB", 7*3600)
	// Wednesday.
	now := time.Date(2025, 6, 4, 15, 30, 0, 0, wib)

	start, end := Window(RangeWeek, now)
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, wib), start)
	assert.Equal(t, time.Date(2025, 6, 8, 23, 59, 59, 999999999, wib), end)

	start, end = Window(RangeMonth, now)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, wib), start)
	assert.Equal(t, time.Date(2025, 6, 30, 23, 59, 59, 999999999, wib), end)

	start, end = Window(RangeYear, now)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, wib), start)
	assert.Equal(t, time.Date(2025, 12, 31, 23, 59, 59, 999999999, wib), end)

	sunday := time.Date(2025, 6, 8, 22, 0, 0, 0, wib)
	start, _ = Window(RangeWeek, sunday)
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, wib), start)
}

func TestParseRange(t *testing.T) {
	assert.Equal(t, RangeWeek, ParseRange("week"))
	assert.Equal(t, RangeMonth, ParseRange(" Month "))
	assert.Equal(t, RangeYear, ParseRange("year"))
	assert.Equal(t, RangeYear, ParseRange(""))
	assert.Equal(t, RangeYear, ParseRange("decade"))
}

func seed(t *testing.T, env fixture, proof string) *entity.Order {
	t.Helper()
	o := &entity.Order{
		UniqueID:      1,
		Name:          "Seeded",
		Email:         "seed@example.com",
		NoWhatsapp:    "0811",
		Address:       "Jl. Mawar",
		Status:        entity.StatusPending,
		TotalQty:      1,
		TotalPrice:    decimal.RequireFromString("10000"),
		ShippingPrice: decimal.Zero,
	}
	if proof != "" {
		o.ProofTransfer = &proof
		require.NoError(t, afero.WriteFile(env.fs, "/"+proof, []byte("data"), 0o644))
	}
	require.NoError(t, env.repo.Create(context.Background(), o))
	return o
}

func TestDestroyMissingOrder(t *testing.T) {
	env := newFixture(t, time.Now().UTC())
	seed(t, env, "")

	err := env.svc.Destroy(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, errorbank.Is(err, errorbank.KindNotFound))
	assert.Len(t, env.repo.orders, 1)
}

func TestDestroyRemovesRowAndProof(t *testing.T) {
	env := newFixture(t, time.Now().UTC())
	o := seed(t, env, "proofs/abc_receipt.pdf")
	other := seed(t, env, "proofs/def_other.pdf")

	require.NoError(t, env.svc.Destroy(context.Background(), o.ID))

	assert.NotContains(t, env.repo.orders, o.ID)
	exists, err := afero.Exists(env.fs, "/proofs/abc_receipt.pdf")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = afero.Exists(env.fs, "/"+*other.ProofTransfer)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Contains(t, env.cache.deleted, "orders:1")
}

func TestDestroyWithoutProofRemovesOnlyRow(t *testing.T) {
	env := newFixture(t, time.Now().UTC())
	require.NoError(t, afero.WriteFile(env.fs, "/proofs/unrelated.png", []byte("x"), 0o644))
	o := seed(t, env, "")

	require.NoError(t, env.svc.Destroy(context.Background(), o.ID))
	assert.Empty(t, env.repo.orders)

	exists, err := afero.Exists(env.fs, "/proofs/unrelated.png")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDestroyToleratesMissingProofFile(t *testing.T) {
	env := newFixture(t, time.Now().UTC())
	o := seed(t, env, "proofs/gone.png")
	require.NoError(t, env.fs.Remove("/proofs/gone.png"))

	require.NoError(t, env.svc.Destroy(context.Background(), o.ID))
	assert.Empty(t, env.repo.orders)
}

func TestDestroyPersistenceFailure(t *testing.T) {
	env := newFixture(t, time.Now().UTC())
	o := seed(t, env, "")
	env.repo.deleteErr = errors.New("locked")

	err := env.svc.Destroy(context.Background(), o.ID)
	require.Error(t, err)
	assert.True(t, errorbank.Is(err, errorbank.KindInternal))
}

func TestUpdateWritesEditableFieldsOnly(t *testing.T) {
	now := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	env := newFixture(t, now)
	o := seed(t, env, "proofs/keep.png")
	env.cache.items["orders:1"] = []byte(`{"id":1}`)

	err := env.svc.Update(context.Background(), o.ID, UpdateInput{
		Name:          "Renamed",
		ShippingPrice: decimal.RequireFromString("8000"),
		ShippingCode:  "YES",
		Shipping:      "JNE",
		NoWhatsapp:    "0899",
		Email:         "new@example.com",
		TotalQty:      7,
		TotalPrice:    decimal.RequireFromString("70000"),
		Address:       "Jl. Baru",
		Status:        "shipped",
	})
	require.NoError(t, err)

	require.NotNil(t, env.repo.lastUpdate)
	assert.Nil(t, env.repo.lastUpdate.ProofTransfer)
	assert.Zero(t, env.repo.lastUpdate.UniqueID)
	assert.Equal(t, now, env.repo.lastUpdate.UpdatedAt)

	stored := env.repo.orders[o.ID]
	assert.Equal(t, "Renamed", stored.Name)
	assert.Equal(t, "shipped", stored.Status)
	assert.Equal(t, int64(7), stored.TotalQty)
	assert.Equal(t, "proofs/keep.png", *stored.ProofTransfer)
	assert.NotContains(t, env.cache.items, "orders:1")
}

func TestUpdateMissingOrder(t *testing.T) {
	env := newFixture(t, time.Now().UTC())

	err := env.svc.Update(context.Background(), 5, UpdateInput{Name: "x"})
	assert.True(t, errorbank.Is(err, errorbank.KindNotFound))
}

func TestGetUsesCache(t *testing.T) {
	env := newFixture(t, time.Now().UTC())
	o := seed(t, env, "")

	first, err := env.svc.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Contains(t, env.cache.items, "orders:1")

	delete(env.repo.orders, o.ID)
	second, err := env.svc.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Name, second.Name)

	_, err = env.svc.Get(context.Background(), 77)
	assert.True(t, errorbank.Is(err, errorbank.KindNotFound))
}

func TestExportWritesWorkbook(t *testing.T) {
	env := newFixture(t, time.Now().UTC())
	seed(t, env, "")
	seed(t, env, "")

	var buf bytes.Buffer
	require.NoError(t, env.svc.Export(context.Background(), &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Orders")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestListReturnsTotals(t *testing.T) {
	env := newFixture(t, time.Now().UTC())
	seed(t, env, "")
	seed(t, env, "")

	page, err := env.svc.List(context.Background(), repo.ListParams{Search: "Seed", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 2, page.Filtered)
	assert.Len(t, page.Orders, 2)
}
