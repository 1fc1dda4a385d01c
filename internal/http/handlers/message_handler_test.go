package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/tbourn/go-pickup-backend/internal/domain"
	"github.com/tbourn/go-pickup-backend/internal/services"
)

func TestListMessages_OK(t *testing.T) {
	var gotPage, gotSize int
	h := New(nil, stubMessages{
		etag: func(domain.Identity, string) (string, error) { return `W/"o1-2-1700000000"`, nil },
		list: func(id domain.Identity, orderID string, page, size int) ([]domain.Message, int64, error) {
			gotPage, gotSize = page, size
			return []domain.Message{
				{ID: "m1", OrderID: orderID, SenderID: "system", SenderRole: "system", Kind: "system", Content: "Order placed", CreatedAt: time.Unix(1700000000, 0).UTC()},
				{ID: "m2", OrderID: orderID, SenderID: id.ID(), SenderRole: "buyer", Kind: "text", Content: "hi", CreatedAt: time.Unix(1700000001, 0).UTC()},
			}, 12, nil
		},
	}, nil, nil)
	r := newTestRouter(h)

	w := do(t, r, http.MethodGet, "/orders/o1/messages?page=2&page_size=5", nil, asUser("u1"))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("ETag"); got != `W/"o1-2-1700000000"` {
		t.Fatalf("ETag = %q", got)
	}
	if gotPage != 2 || gotSize != 5 {
		t.Fatalf("page=%d size=%d", gotPage, gotSize)
	}

	var out ListMessagesResponse
	decodeData(t, w, &out)
	if len(out.Messages) != 2 || out.Messages[1].SenderID != "u1" {
		t.Fatalf("messages = %+v", out.Messages)
	}
	want := Pagination{Page: 2, PageSize: 5, Total: 12, TotalPages: 3, HasNext: true}
	if out.Pagination != want {
		t.Fatalf("pagination = %+v, want %+v", out.Pagination, want)
	}
}

func TestListMessages_NotModified(t *testing.T) {
	listed := false
	h := New(nil, stubMessages{
		etag: func(domain.Identity, string) (string, error) { return `W/"o1-2-1"`, nil },
		list: func(domain.Identity, string, int, int) ([]domain.Message, int64, error) {
			listed = true
			return nil, 0, nil
		},
	}, nil, nil)

	w := do(t, newTestRouter(h), http.MethodGet, "/orders/o1/messages", nil, asUser("u1"), withHeader("If-None-Match", `W/"o1-2-1"`))
	if w.Code != http.StatusNotModified {
		t.Fatalf("status=%d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Fatalf("304 must have no body, got %q", w.Body.String())
	}
	if listed {
		t.Fatalf("ListPage must not run on a cache hit")
	}
}

func TestListMessages_EmptyThreadIsArray(t *testing.T) {
	h := New(nil, stubMessages{
		etag: func(domain.Identity, string) (string, error) { return "", nil },
		list: func(domain.Identity, string, int, int) ([]domain.Message, int64, error) { return nil, 0, nil },
	}, nil, nil)

	w := do(t, newTestRouter(h), http.MethodGet, "/orders/o1/messages", nil, asGuest("guest_1_x"))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if w.Header().Get("ETag") != "" {
		t.Fatalf("empty etag must not be sent")
	}
	var out ListMessagesResponse
	decodeData(t, w, &out)
	if out.Messages == nil || len(out.Messages) != 0 {
		t.Fatalf("messages = %#v", out.Messages)
	}
	if out.Pagination.PageSize != services.DefaultMessagePageSize || out.Pagination.HasNext {
		t.Fatalf("pagination = %+v", out.Pagination)
	}
}

func TestListMessages_ErrorDropsETag(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{services.ErrForbidden, http.StatusForbidden},
		{services.ErrOrderNotFound, http.StatusNotFound},
		{services.ErrUnauthorized, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		h := New(nil, stubMessages{
			etag: func(domain.Identity, string) (string, error) { return `W/"x"`, nil },
			list: func(domain.Identity, string, int, int) ([]domain.Message, int64, error) { return nil, 0, tc.err },
		}, nil, nil)
		w := do(t, newTestRouter(h), http.MethodGet, "/orders/o1/messages", nil, asUser("stranger"))
		if w.Code != tc.status {
			t.Fatalf("status=%d want %d", w.Code, tc.status)
		}
		if w.Header().Get("ETag") != "" {
			t.Fatalf("ETag leaked on %d", tc.status)
		}
	}
}
