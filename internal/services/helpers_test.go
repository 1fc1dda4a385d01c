package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-pickup-backend/internal/domain"
	"github.com/tbourn/go-pickup-backend/internal/notify"
	"github.com/tbourn/go-pickup-backend/internal/repo"
)

// newSvcDB opens an isolated in-memory database. With no models the full
// schema is migrated.
func newSvcDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc: repo.Now,
		Logger:  logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	if len(migrate) == 0 {
		require.NoError(t, repo.AutoMigrate(db))
	} else {
		require.NoError(t, db.AutoMigrate(migrate...))
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// fixedClock is a settable clock shared by the services under test.
type fixedClock struct{ t time.Time }

func newClock() *fixedClock { return &fixedClock{t: repo.Now()} }

func (c *fixedClock) Now() time.Time { return c.t }

func (c *fixedClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

const (
	buyerID       = "user-buyer"
	vendorOwnerID = "user-vendor"
	strangerID    = "user-stranger"
	guestID       = "guest_abcdefgh12"
)

// orderFixture is a seeded catalog plus an OrderService wired with inline
// effects and the inbox sender.
type orderFixture struct {
	db     *gorm.DB
	clock  *fixedClock
	svc    *OrderService
	vendor *domain.Vendor
	dishes []domain.Dish
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	db := newSvcDB(t)
	clock := newClock()

	idem := NewIdempotencyCache(db, time.Hour, 5*time.Minute)
	idem.now = clock.Now

	svc := NewOrderService(db, idem, notify.Inline{}, notify.InboxSender{DB: db}, Pricing{Currency: "USD"})
	svc.now = clock.Now

	f := &orderFixture{db: db, clock: clock, svc: svc}
	seedUser(t, db, buyerID, "Bea Buyer")
	seedUser(t, db, vendorOwnerID, "Vic Vendor")
	seedUser(t, db, strangerID, "Sam Stranger")
	f.vendor = seedVendor(t, db, vendorOwnerID, true)
	f.dishes = []domain.Dish{
		seedDish(t, db, f.vendor.ID, "Noodles", 1250, true),
		seedDish(t, db, f.vendor.ID, "Dumplings", 800, true),
		seedDish(t, db, f.vendor.ID, "Sold out soup", 500, false),
	}
	return f
}

func seedUser(t *testing.T, db *gorm.DB, id, name string) {
	t.Helper()
	require.NoError(t, db.Create(&domain.User{ID: id, DisplayName: name, CreatedAt: repo.Now()}).Error)
}

func seedVendor(t *testing.T, db *gorm.DB, owner string, active bool) *domain.Vendor {
	t.Helper()
	v := &domain.Vendor{ID: uuid.NewString(), OwnerID: owner, BusinessName: "Noodle Bar", IsActive: true}
	require.NoError(t, db.Create(v).Error)
	if !active {
		// default:true on the column means false must be written explicitly.
		require.NoError(t, db.Model(v).Update("is_active", false).Error)
		v.IsActive = false
	}
	return v
}

func seedDish(t *testing.T, db *gorm.DB, vendorID, name string, price int64, available bool) domain.Dish {
	t.Helper()
	d := domain.Dish{ID: uuid.NewString(), VendorID: vendorID, Name: name, PriceCents: price, Available: true}
	require.NoError(t, db.Create(&d).Error)
	if !available {
		require.NoError(t, db.Model(&d).Update("available", false).Error)
		d.Available = false
	}
	return d
}

func buyer() domain.Identity        { return domain.UserIdentity(buyerID) }
func vendorCaller() domain.Identity { return domain.UserIdentity(vendorOwnerID) }
func stranger() domain.Identity     { return domain.UserIdentity(strangerID) }
func guest() domain.Identity        { return domain.GuestIdentity(guestID) }

// orderInput is a valid two-line order for the fixture vendor.
func (f *orderFixture) orderInput(key string) CreateOrderInput {
	return CreateOrderInput{
		VendorID: f.vendor.ID,
		Items: []OrderItemInput{
			{DishID: f.dishes[0].ID, Quantity: 2},
			{DishID: f.dishes[1].ID, Quantity: 1, SpecialInstructions: "extra chili"},
		},
		PickupTime:     f.clock.Now().Add(time.Hour),
		IdempotencyKey: key,
	}
}

// placeOrder creates an order for id and fails the test on error.
func (f *orderFixture) placeOrder(t *testing.T, id domain.Identity) *domain.Order {
	t.Helper()
	out, err := f.svc.CreateOrder(context.Background(), id, f.orderInput(uuid.NewString()))
	require.NoError(t, err)
	return out.Order
}

// moveTo drives an order through the vendor-owned steps up to status.
func (f *orderFixture) moveTo(t *testing.T, orderID string, statuses ...domain.OrderStatus) *domain.Order {
	t.Helper()
	var out *OrderDetails
	for _, st := range statuses {
		var err error
		out, err = f.svc.ChangeStatus(context.Background(), vendorCaller(), orderID, ChangeStatusInput{Status: st})
		require.NoError(t, err, "move to %s", st)
	}
	return out.Order
}

func (f *orderFixture) reload(t *testing.T, orderID string) *domain.Order {
	t.Helper()
	o, err := repo.GetOrder(context.Background(), f.db, orderID)
	require.NoError(t, err)
	return o
}

func countRows(t *testing.T, db *gorm.DB, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if where != "" {
		q = q.Where(where, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}
