package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/storekit/cartcache"
	"github.com/storekit/cartcache/codec"
	"github.com/storekit/cartcache/provider/memory"
)

func newTestStore(t *testing.T) (*Store, *memory.Memory) {
	t.Helper()
	mp := memory.New()
	cc, err := cartcache.New[Cart](cartcache.Options[Cart]{
		Namespace: "cart",
		Provider:  mp,
	})
	if err != nil {
		t.Fatalf("cartcache.New: %v", err)
	}
	s, err := NewStore(Options{Cache: cc})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s, mp
}

// ==============================
// Lazy creation and identity
// ==============================

func TestLazyEmptyCart(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	c, err := s.GetCart(ctx, "", "sess-1")
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if c.SessionID != "sess-1" || c.UserID != "" {
		t.Fatalf("identity: user=%q session=%q", c.UserID, c.SessionID)
	}
	if len(c.Items) != 0 || c.Totals.Total != 0 {
		t.Fatalf("not empty: items=%d total=%v", len(c.Items), c.Totals.Total)
	}
	if c.ID == "" {
		t.Fatalf("cart id not generated")
	}

	// The lazily-created cart was persisted: a second read returns the
	// same cart, not another fresh one.
	again, err := s.GetCart(ctx, "", "sess-1")
	if err != nil {
		t.Fatalf("GetCart again: %v", err)
	}
	if again.ID != c.ID {
		t.Fatalf("cart not persisted on first access: %q vs %q", again.ID, c.ID)
	}
}

func TestGetCartRequiresIdentity(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.GetCart(context.Background(), "", ""); !errors.Is(err, ErrNoIdentity) {
		t.Fatalf("err=%v, want ErrNoIdentity", err)
	}
}

// ==============================
// Line mutation
// ==============================

func TestAddItemDedup(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	base := NewItem{ProductID: "p1", Name: "Shoe", Price: 20, Quantity: 2,
		Variant: Variant{"size": "42", "color": "black"}}

	if _, err := s.AddItem(ctx, "", "sess-1", base); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	// Same product, same variant with keys in another order: merges.
	dup := base
	dup.Quantity = 3
	dup.Variant = Variant{"color": "black", "size": "42"}
	c, err := s.AddItem(ctx, "", "sess-1", dup)
	if err != nil {
		t.Fatalf("AddItem dup: %v", err)
	}
	if len(c.Items) != 1 {
		t.Fatalf("items=%d, want 1 merged line", len(c.Items))
	}
	if c.Items[0].Quantity != 5 {
		t.Fatalf("quantity=%d, want 5", c.Items[0].Quantity)
	}

	// Different variant of the same product: separate line.
	other := base
	other.Variant = Variant{"size": "43", "color": "black"}
	c, err = s.AddItem(ctx, "", "sess-1", other)
	if err != nil {
		t.Fatalf("AddItem other variant: %v", err)
	}
	if len(c.Items) != 2 {
		t.Fatalf("items=%d, want 2 lines", len(c.Items))
	}
}

func TestAddItemRejectsBadQuantity(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.AddItem(context.Background(), "", "sess-1", NewItem{ProductID: "p1", Price: 5, Quantity: 0})
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("err=%v, want ErrInvalidQuantity", err)
	}
}

func TestUpdateItemQuantityFloor(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	c, err := s.AddItem(ctx, "", "sess-1", NewItem{ProductID: "p1", Price: 10, Quantity: 2})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	itemID := c.Items[0].ID

	qty := 4
	c, err = s.UpdateItem(ctx, "", "sess-1", itemID, Update{Quantity: &qty})
	if err != nil || c.Items[0].Quantity != 4 {
		t.Fatalf("update: err=%v items=%+v", err, c.Items)
	}

	// Quantity 0 removes the line entirely.
	zero := 0
	c, err = s.UpdateItem(ctx, "", "sess-1", itemID, Update{Quantity: &zero})
	if err != nil {
		t.Fatalf("update to 0: %v", err)
	}
	if len(c.Items) != 0 {
		t.Fatalf("line survived quantity 0: %+v", c.Items)
	}
	if c.Totals.Total != 0 {
		t.Fatalf("totals not recomputed: %+v", c.Totals)
	}
}

func TestUpdateItemNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	qty := 1
	_, err := s.UpdateItem(context.Background(), "", "sess-1", "nope", Update{Quantity: &qty})
	if !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("err=%v, want ErrItemNotFound", err)
	}
}

func TestRemoveItemIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	c, err := s.AddItem(ctx, "", "sess-1", NewItem{ProductID: "p1", Price: 10, Quantity: 1})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	itemID := c.Items[0].ID

	c, err = s.RemoveItem(ctx, "", "sess-1", itemID)
	if err != nil || len(c.Items) != 0 {
		t.Fatalf("remove: err=%v items=%d", err, len(c.Items))
	}

	// Removing the same id again is a no-op, not an error.
	c, err = s.RemoveItem(ctx, "", "sess-1", itemID)
	if err != nil || len(c.Items) != 0 {
		t.Fatalf("second remove: err=%v items=%d", err, len(c.Items))
	}
}

func TestClearCartPreservesIdentity(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	if _, err := s.AddItem(ctx, "user-1", "", NewItem{ProductID: "p1", Price: 10, Quantity: 2}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	c, err := s.ClearCart(ctx, "user-1", "")
	if err != nil {
		t.Fatalf("ClearCart: %v", err)
	}
	if c.UserID != "user-1" || c.SessionID != "" {
		t.Fatalf("ownership changed by clear: user=%q session=%q", c.UserID, c.SessionID)
	}
	if len(c.Items) != 0 || c.Totals.Total != 0 {
		t.Fatalf("not cleared: %+v", c)
	}
}

func TestDeleteCart(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	first, err := s.AddItem(ctx, "user-1", "", NewItem{ProductID: "p1", Price: 10, Quantity: 1})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := s.DeleteCart(ctx, "user-1", ""); err != nil {
		t.Fatalf("DeleteCart: %v", err)
	}
	// Next access lazily recreates a fresh cart.
	c, err := s.GetCart(ctx, "user-1", "")
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if c.ID == first.ID || len(c.Items) != 0 {
		t.Fatalf("cart not recreated fresh: %+v", c)
	}
}

// ==============================
// Merge
// ==============================

func TestMergeRenamesSessionCart(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	// Session cart with one $20 line; no user cart for user-9.
	if _, err := s.AddItem(ctx, "", "sess-2", NewItem{ProductID: "p1", Price: 20, Quantity: 1}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	merged, err := s.MergeCart(ctx, "user-9", "sess-2")
	if err != nil {
		t.Fatalf("MergeCart: %v", err)
	}
	if merged.UserID != "user-9" || merged.SessionID != "" {
		t.Fatalf("identity after merge: user=%q session=%q", merged.UserID, merged.SessionID)
	}
	if len(merged.Items) != 1 || merged.Items[0].Price != 20 {
		t.Fatalf("items lost in rename: %+v", merged.Items)
	}
	// subtotal 20 < 50 => flat shipping; tax 1.60; total 31.60
	if merged.Totals.Total != 31.60 {
		t.Fatalf("total=%v, want 31.60", merged.Totals.Total)
	}

	// Old session key is gone: a session read yields a fresh empty cart.
	sess, err := s.GetCart(ctx, "", "sess-2")
	if err != nil {
		t.Fatalf("GetCart session: %v", err)
	}
	if len(sess.Items) != 0 || sess.ID == merged.ID {
		t.Fatalf("session key still holds the merged cart: %+v", sess)
	}

	// And the user cart is stable.
	u, err := s.GetCart(ctx, "user-9", "")
	if err != nil || len(u.Items) != 1 {
		t.Fatalf("user cart: err=%v items=%d", err, len(u.Items))
	}
}

func TestMergeSumsQuantities(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	v := Variant{"size": "M"}
	if _, err := s.AddItem(ctx, "user-1", "", NewItem{ProductID: "p1", Price: 10, Quantity: 2, Variant: v}); err != nil {
		t.Fatalf("seed user cart: %v", err)
	}
	if _, err := s.AddItem(ctx, "", "sess-1", NewItem{ProductID: "p1", Price: 10, Quantity: 3, Variant: v}); err != nil {
		t.Fatalf("seed session cart: %v", err)
	}
	if _, err := s.AddItem(ctx, "", "sess-1", NewItem{ProductID: "p2", Price: 5, Quantity: 1}); err != nil {
		t.Fatalf("seed session cart p2: %v", err)
	}

	merged, err := s.MergeCart(ctx, "user-1", "sess-1")
	if err != nil {
		t.Fatalf("MergeCart: %v", err)
	}
	if len(merged.Items) != 2 {
		t.Fatalf("items=%d, want 2", len(merged.Items))
	}
	if i := findLine(merged.Items, "p1", v); i < 0 || merged.Items[i].Quantity != 5 {
		t.Fatalf("matching line not summed: %+v", merged.Items)
	}
}

func TestMergeIdempotentOnRetry(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	if _, err := s.AddItem(ctx, "", "sess-1", NewItem{ProductID: "p1", Price: 10, Quantity: 2}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	first, err := s.MergeCart(ctx, "user-1", "sess-1")
	if err != nil {
		t.Fatalf("first merge: %v", err)
	}

	// Client retry of the post-login merge: finds no session cart, no-ops.
	second, err := s.MergeCart(ctx, "user-1", "sess-1")
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if second.ID != first.ID || len(second.Items) != len(first.Items) {
		t.Fatalf("retry changed the cart: %+v vs %+v", second, first)
	}
	if second.Items[0].Quantity != 2 {
		t.Fatalf("retry double-counted: qty=%d", second.Items[0].Quantity)
	}
}

func TestMergeWithoutSessionReturnsUserCart(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	c, err := s.MergeCart(ctx, "user-1", "")
	if err != nil {
		t.Fatalf("MergeCart: %v", err)
	}
	if c.UserID != "user-1" || len(c.Items) != 0 {
		t.Fatalf("unexpected cart: %+v", c)
	}
}

// ==============================
// Failure semantics
// ==============================

type downProvider struct{ *memory.Memory }

func (downProvider) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

// TestStoreFailurePropagates: a broken read must surface as an error, never
// as an empty cart.
func TestStoreFailurePropagates(t *testing.T) {
	ctx := context.Background()
	cc, err := cartcache.New[Cart](cartcache.Options[Cart]{
		Namespace: "cart",
		Provider:  downProvider{memory.New()},
	})
	if err != nil {
		t.Fatalf("cartcache.New: %v", err)
	}
	s, err := NewStore(Options{Cache: cc})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if _, err := s.GetCart(ctx, "user-1", ""); err == nil {
		t.Fatalf("store outage surfaced as an empty cart")
	}
	if _, err := s.AddItem(ctx, "user-1", "", NewItem{ProductID: "p1", Price: 1, Quantity: 1}); err == nil {
		t.Fatalf("AddItem swallowed store outage")
	}
	if _, err := s.MergeCart(ctx, "user-1", "sess-1"); err == nil {
		t.Fatalf("MergeCart swallowed store outage")
	}
}

// TestTotalsRecomputedOnEveryMutation guards against totals being trusted
// from stored state.
func TestTotalsRecomputedOnEveryMutation(t *testing.T) {
	ctx := context.Background()
	s, mp := newTestStore(t)

	c, err := s.AddItem(ctx, "", "sess-1", NewItem{ProductID: "p1", Price: 19.99, Quantity: 3})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if c.Totals.Subtotal != 59.97 || c.Totals.Tax != 4.80 || c.Totals.Shipping != 0 || c.Totals.Total != 64.77 {
		t.Fatalf("totals: %+v", c.Totals)
	}

	// Tamper with the stored totals; the next mutation recomputes them.
	tampered := c
	tampered.Totals.Total = 1
	raw, _ := codec.JSON[Cart]{}.Encode(tampered)
	mp.Set(ctx, "cart:sess-1", raw, 0)

	c, err = s.AddItem(ctx, "", "sess-1", NewItem{ProductID: "p2", Price: 0.03, Quantity: 1})
	if err != nil {
		t.Fatalf("AddItem after tamper: %v", err)
	}
	if want := round2(c.Totals.Subtotal + c.Totals.Tax + c.Totals.Shipping); c.Totals.Total != want {
		t.Fatalf("total=%v, want %v", c.Totals.Total, want)
	}
}
