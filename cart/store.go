package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/storekit/cartcache"
)

var (
	// ErrNoIdentity means neither a user ID nor a session ID was supplied.
	ErrNoIdentity = errors.New("cart: user id or session id required")

	// ErrItemNotFound is the typed failure for update/remove of an absent line.
	ErrItemNotFound = errors.New("cart: item not found")

	// ErrInvalidQuantity rejects AddItem with quantity < 1.
	ErrInvalidQuantity = errors.New("cart: quantity must be at least 1")
)

// Store keeps carts in the cache core. Every method propagates backing-store
// failures: a broken cart read must never look like an empty cart to the
// caller, or checkout would proceed against phantom state.
type Store struct {
	cache   cartcache.Cache[Cart]
	log     cartcache.Logger
	expiry  time.Duration
	pricing Pricing
}

// Options tune the cart store. Only Cache is required.
type Options struct {
	Cache   cartcache.Cache[Cart]
	Logger  cartcache.Logger      // nil => NopLogger
	Expiry  time.Duration         // cart TTL; 0 => 24h
	Pricing *Pricing              // nil => DefaultPricing
}

func NewStore(opts Options) (*Store, error) {
	if opts.Cache == nil {
		return nil, fmt.Errorf("cart: cache is required")
	}
	s := &Store{
		cache:   opts.Cache,
		expiry:  opts.Expiry,
		pricing: DefaultPricing(),
	}
	if opts.Logger != nil {
		s.log = opts.Logger
	} else {
		s.log = cartcache.NopLogger{}
	}
	if s.expiry == 0 {
		s.expiry = 24 * time.Hour
	}
	if opts.Pricing != nil {
		s.pricing = *opts.Pricing
	}
	return s, nil
}

// Pricing exposes the configured rates, for callers that validate totals.
func (s *Store) Pricing() Pricing { return s.pricing }

// CalculateTotals recomputes totals for items under the store's pricing.
// Pure; exposed for validation callers.
func (s *Store) CalculateTotals(items []Item) Totals { return s.pricing.Totals(items) }

func cartKey(userID, sessionID string) (string, error) {
	if userID != "" {
		return userID, nil
	}
	if sessionID != "" {
		return sessionID, nil
	}
	return "", ErrNoIdentity
}

func newCart(userID, sessionID string) Cart {
	now := time.Now().UTC()
	return Cart{
		ID:        uuid.NewString(),
		UserID:    userID,
		SessionID: sessionID,
		Items:     []Item{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// load reads a cart and slides its TTL forward. Strict: provider and decode
// errors propagate.
func (s *Store) load(ctx context.Context, key string) (Cart, bool, error) {
	c, ok, err := s.cache.Get(ctx, key, cartcache.WithTTLExtend(s.expiry))
	if err != nil {
		return Cart{}, false, fmt.Errorf("cart: load %q: %w", key, err)
	}
	return c, ok, nil
}

// save recomputes totals, stamps UpdatedAt, and persists under the cart's
// identity key with a fresh TTL.
func (s *Store) save(ctx context.Context, c *Cart) error {
	c.Totals = s.pricing.Totals(c.Items)
	c.UpdatedAt = time.Now().UTC()
	if _, err := s.cache.Set(ctx, c.key(), *c, s.expiry); err != nil {
		return fmt.Errorf("cart: save %q: %w", c.key(), err)
	}
	return nil
}

// GetCart resolves to the user cart when userID is given, the session cart
// otherwise. On a total miss it lazily creates and persists an empty cart
// keyed by whichever identifier is available.
func (s *Store) GetCart(ctx context.Context, userID, sessionID string) (Cart, error) {
	key, err := cartKey(userID, sessionID)
	if err != nil {
		return Cart{}, err
	}
	c, ok, err := s.load(ctx, key)
	if err != nil {
		return Cart{}, err
	}
	if ok {
		return c, nil
	}

	c = newCart(userID, sessionID)
	if userID != "" {
		c.SessionID = "" // user carts are addressed by user id alone
	}
	if err := s.save(ctx, &c); err != nil {
		return Cart{}, err
	}
	return c, nil
}

// NewItem describes a line to add. Product details come from the caller's
// product lookup at request time.
type NewItem struct {
	ProductID string
	Name      string
	Price     float64
	Quantity  int
	Variant   Variant
	Image     string
}

// AddItem merges the new line into an existing one with the same
// (ProductID, Variant), otherwise appends it with a fresh ID.
func (s *Store) AddItem(ctx context.Context, userID, sessionID string, item NewItem) (Cart, error) {
	if item.Quantity < 1 {
		return Cart{}, ErrInvalidQuantity
	}

	c, err := s.GetCart(ctx, userID, sessionID)
	if err != nil {
		return Cart{}, err
	}

	now := time.Now().UTC()
	if i := findLine(c.Items, item.ProductID, item.Variant); i >= 0 {
		c.Items[i].Quantity += item.Quantity
		c.Items[i].UpdatedAt = now
	} else {
		c.Items = append(c.Items, Item{
			ID:        uuid.NewString(),
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Variant:   item.Variant,
			Image:     item.Image,
			AddedAt:   now,
			UpdatedAt: now,
		})
	}

	if err := s.save(ctx, &c); err != nil {
		return Cart{}, err
	}
	return c, nil
}

// Update carries the mutable fields of a line. Nil fields are left as-is.
type Update struct {
	Quantity *int
	Variant  Variant
}

// UpdateItem applies updates to the line with itemID. Quantity <= 0 removes
// the line entirely. Returns ErrItemNotFound when itemID is absent.
func (s *Store) UpdateItem(ctx context.Context, userID, sessionID, itemID string, u Update) (Cart, error) {
	c, err := s.GetCart(ctx, userID, sessionID)
	if err != nil {
		return Cart{}, err
	}

	idx := -1
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Cart{}, ErrItemNotFound
	}

	if u.Quantity != nil && *u.Quantity <= 0 {
		c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	} else {
		if u.Quantity != nil {
			c.Items[idx].Quantity = *u.Quantity
		}
		if u.Variant != nil {
			c.Items[idx].Variant = u.Variant
		}
		c.Items[idx].UpdatedAt = time.Now().UTC()
	}

	if err := s.save(ctx, &c); err != nil {
		return Cart{}, err
	}
	return c, nil
}

// RemoveItem filters out the line with itemID. Idempotent: removing an
// absent id is a no-op, not an error.
func (s *Store) RemoveItem(ctx context.Context, userID, sessionID, itemID string) (Cart, error) {
	c, err := s.GetCart(ctx, userID, sessionID)
	if err != nil {
		return Cart{}, err
	}

	kept := c.Items[:0]
	for _, it := range c.Items {
		if it.ID != itemID {
			kept = append(kept, it)
		}
	}
	c.Items = kept

	if err := s.save(ctx, &c); err != nil {
		return Cart{}, err
	}
	return c, nil
}

// ClearCart replaces the stored cart with a fresh empty one under the same
// identity. Ownership state is preserved, never reverted.
func (s *Store) ClearCart(ctx context.Context, userID, sessionID string) (Cart, error) {
	if _, err := cartKey(userID, sessionID); err != nil {
		return Cart{}, err
	}
	c := newCart(userID, sessionID)
	if userID != "" {
		c.SessionID = ""
	}
	if err := s.save(ctx, &c); err != nil {
		return Cart{}, err
	}
	return c, nil
}

// DeleteCart drops the stored cart outright (abandoned-cart reaping, account
// deletion). The next GetCart lazily recreates an empty one.
func (s *Store) DeleteCart(ctx context.Context, userID, sessionID string) error {
	key, err := cartKey(userID, sessionID)
	if err != nil {
		return err
	}
	if _, err := s.cache.Delete(ctx, key); err != nil {
		return fmt.Errorf("cart: delete %q: %w", key, err)
	}
	return nil
}

// MergeCart folds the anonymous session cart into the authenticated user's
// cart at login.
//
// No session cart: the user cart (created empty if absent) is returned
// unchanged. Session cart only: the cart is re-keyed under userID and the
// session key deleted, a rename rather than a copy, so both keys are never
// live with the same cart. Both: session lines merge into the user cart by
// (ProductID, Variant), summing quantities.
//
// Safe to invoke again for the same session: the second call finds no
// session cart and no-ops, which is what makes client retry of the
// post-login merge harmless. Two truly concurrent merges can still
// double-count; callers merging from multiple request handlers should wrap
// the call in AcquireLock("cart-merge:"+sessionID).
func (s *Store) MergeCart(ctx context.Context, userID, sessionID string) (Cart, error) {
	if userID == "" {
		return Cart{}, ErrNoIdentity
	}
	if sessionID == "" {
		return s.GetCart(ctx, userID, "")
	}

	sessionCart, sessionOK, err := s.load(ctx, sessionID)
	if err != nil {
		return Cart{}, err
	}
	if !sessionOK {
		return s.GetCart(ctx, userID, "")
	}

	userCart, userOK, err := s.load(ctx, userID)
	if err != nil {
		return Cart{}, err
	}

	if !userOK {
		// rename: drop the session key before writing the user key, so both
		// keys are never live with the same logical cart
		sessionCart.UserID = userID
		sessionCart.SessionID = ""
		if _, err := s.cache.Delete(ctx, sessionID); err != nil {
			return Cart{}, fmt.Errorf("cart: drop session %q during merge: %w", sessionID, err)
		}
		if err := s.save(ctx, &sessionCart); err != nil {
			return Cart{}, err
		}
		return sessionCart, nil
	}

	now := time.Now().UTC()
	for _, line := range sessionCart.Items {
		if i := findLine(userCart.Items, line.ProductID, line.Variant); i >= 0 {
			userCart.Items[i].Quantity += line.Quantity
			userCart.Items[i].UpdatedAt = now
		} else {
			userCart.Items = append(userCart.Items, line)
		}
	}

	if _, err := s.cache.Delete(ctx, sessionID); err != nil {
		return Cart{}, fmt.Errorf("cart: drop session %q during merge: %w", sessionID, err)
	}
	if err := s.save(ctx, &userCart); err != nil {
		return Cart{}, err
	}
	s.log.Info("carts merged", cartcache.Fields{"user": userID, "session": sessionID, "items": len(userCart.Items)})
	return userCart, nil
}
