package repo

import (
	"context"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/tbourn/go-pickup-backend/internal/domain"
)

func TestCreateMessage_FillsDefaults(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	o := seedOrder(t, db, strp("u1"), nil)

	m := &domain.Message{OrderID: o.ID, SenderID: "u1", SenderRole: domain.RoleBuyer, Content: "on my way"}
	if err := CreateMessage(ctx, db, m); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if m.ID == "" || m.Kind != domain.MessageText || m.CreatedAt.IsZero() || !m.UpdatedAt.Equal(m.CreatedAt) {
		t.Fatalf("defaults not filled: %+v", m)
	}
}

func TestCreateMessage_SystemMetadataRoundTrip(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	o := seedOrder(t, db, strp("u1"), nil)

	meta := datatypes.JSON(`{"status_change":{"from":"pending","to":"confirmed"}}`)
	m := &domain.Message{OrderID: o.ID, SenderID: "v-owner", SenderRole: domain.RoleSystem, Kind: domain.MessageSystem, Content: "Order accepted!", Metadata: meta}
	if err := CreateMessage(ctx, db, m); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	page, err := ListMessagesPage(ctx, db, o.ID, 0, 10)
	if err != nil || len(page) != 1 {
		t.Fatalf("list: %v %d", err, len(page))
	}
	if page[0].Kind != domain.MessageSystem || string(page[0].Metadata) != string(meta) {
		t.Fatalf("metadata lost: %+v", page[0])
	}
}

func TestCreateMessage_UnknownOrderRejected(t *testing.T) {
	db := newRepoDB(t)
	err := CreateMessage(context.Background(), db, &domain.Message{OrderID: "missing", SenderID: "u1", SenderRole: domain.RoleBuyer, Content: "x"})
	if err == nil {
		t.Fatalf("expected foreign key failure")
	}
}

func TestListMessagesPage_OrderingAndPaging(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	o := seedOrder(t, db, strp("u1"), nil)

	t0 := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	seed := []domain.Message{
		{ID: "b", CreatedAt: t0},
		{ID: "a", CreatedAt: t0},
		{ID: "c", CreatedAt: t0.Add(time.Second)},
	}
	for i := range seed {
		seed[i].OrderID = o.ID
		seed[i].SenderID = "u1"
		seed[i].SenderRole = domain.RoleBuyer
		seed[i].Content = seed[i].ID
		if err := CreateMessage(ctx, db, &seed[i]); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	total, err := CountMessages(ctx, db, o.ID)
	if err != nil || total != 3 {
		t.Fatalf("CountMessages = %d, %v", total, err)
	}

	first, _ := ListMessagesPage(ctx, db, o.ID, 0, 2)
	if len(first) != 2 || first[0].ID != "a" || first[1].ID != "b" {
		t.Fatalf("unexpected first page: %+v", first)
	}
	second, _ := ListMessagesPage(ctx, db, o.ID, 2, 2)
	if len(second) != 1 || second[0].ID != "c" {
		t.Fatalf("unexpected second page: %+v", second)
	}
}

func TestCountMessages_NoTable(t *testing.T) {
	db := newRepoDB(t)
	if err := db.Migrator().DropTable(&domain.Message{}); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if _, err := CountMessages(context.Background(), db, "o1"); err == nil {
		t.Fatalf("expected error for missing table")
	}
}
