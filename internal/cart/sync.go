package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/roach88/caffinity/internal/api"
	"github.com/roach88/caffinity/internal/identity"
	"github.com/roach88/caffinity/internal/money"
	"github.com/roach88/caffinity/internal/store"
)

var (
	// ErrBusy is returned when a mutation arrives while another is
	// still in flight. Mirrors the disable-while-pending rule of the
	// original UI; callers retry after the current operation settles.
	ErrBusy = errors.New("cart operation already in flight")

	// ErrConfirmRemoval is returned by UpdateQuantity when the
	// requested quantity would drop below 1. Quantity zero is never
	// persisted; the caller must confirm and call Remove explicitly.
	ErrConfirmRemoval = errors.New("quantity below 1 removes the item; confirm removal instead")

	// ErrNotInCart is returned when the referenced cart item does not
	// exist in the current in-memory cart.
	ErrNotInCart = errors.New("item not in cart")
)

// Synchronizer reconciles the in-memory cart with the server-held
// cart, using the local store as a fallback mirror.
//
// Mutations are optimistic: memory changes first, the network call
// follows, and the outcome decides whether the change sticks, rolls
// back, or degrades to the local mirror. Reads stay available while a
// mutation's network call is in flight; a second mutation in that
// window gets ErrBusy.
type Synchronizer struct {
	client *api.Client
	ids    *identity.Resolver
	st     *store.Store
	logger *zap.Logger

	mu    sync.Mutex
	busy  bool
	items []api.CartItem
}

// NewSynchronizer creates a Synchronizer. The in-memory cart is empty
// until the first Fetch.
func NewSynchronizer(client *api.Client, ids *identity.Resolver, st *store.Store, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{
		client: client,
		ids:    ids,
		st:     st,
		logger: logger,
	}
}

// Items returns a copy of the in-memory cart.
func (s *Synchronizer) Items() []api.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.CartItem(nil), s.items...)
}

// Contains reports whether a product is in the in-memory cart.
func (s *Synchronizer) Contains(productID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return indexByProduct(s.items, productID) >= 0
}

// Fetch refreshes the in-memory cart from the server.
//
// On success memory is replaced wholesale (no incremental merge) and
// the mirror rewritten. On any failure the mirror is read instead; if
// that also fails the cart resolves to empty. Fetch never returns an
// error: the read path always leaves the caller with a usable cart.
func (s *Synchronizer) Fetch(ctx context.Context) []api.CartItem {
	fresh := s.fetchRemote(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = fresh
	return append([]api.CartItem(nil), s.items...)
}

// fetchRemote resolves the authoritative cart without touching
// s.items: the server's view, or the mirror, or empty.
func (s *Synchronizer) fetchRemote(ctx context.Context) []api.CartItem {
	headers, err := s.ids.Headers(ctx)
	if err != nil {
		s.logger.Error("resolve identity for cart fetch", zap.Error(err))
		return s.readMirror(ctx)
	}

	items, err := s.client.GetCart(ctx, headers)
	if err != nil {
		s.logger.Warn("cart fetch failed, falling back to mirror", zap.Error(err))
		return s.readMirror(ctx)
	}

	s.writeMirror(ctx, items)
	return items
}

// acquire marks a mutation in flight; ErrBusy if one already is.
func (s *Synchronizer) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrBusy
	}
	s.busy = true
	return nil
}

func (s *Synchronizer) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// AddOrRemove toggles cart membership for a product: present means
// remove, absent means add with quantity 1. Returns whether the
// product is in the cart after the toggle settles.
//
// On server rejection the cart is re-fetched so memory reflects what
// the server last confirmed, and the error is returned. On network
// failure the toggle is applied to the mirror so the cart stays
// responsive offline.
func (s *Synchronizer) AddOrRemove(ctx context.Context, product api.Product) (bool, error) {
	if err := s.acquire(); err != nil {
		return s.Contains(product.ID), err
	}
	defer s.release()

	headers, err := s.ids.Headers(ctx)
	if err != nil {
		return s.Contains(product.ID), err
	}

	s.mu.Lock()
	idx := indexByProduct(s.items, product.ID)
	var removed api.CartItem
	if idx >= 0 {
		removed = s.items[idx]
	}
	s.mu.Unlock()

	if idx >= 0 {
		// Present: toggle off.
		err := s.client.RemoveCartItem(ctx, headers, product.ID)
		switch {
		case err == nil:
			s.refresh(ctx)
			return false, nil
		case api.IsNetworkError(err):
			s.applyOfflineRemove(ctx, removed)
			return false, nil
		default:
			s.refresh(ctx)
			return s.Contains(product.ID), fmt.Errorf("toggle off product %d: %w", product.ID, err)
		}
	}

	// Absent: toggle on with quantity 1.
	err = s.client.AddCartItem(ctx, headers, product.ID, 1)
	switch {
	case err == nil:
		s.refresh(ctx)
		return true, nil
	case api.IsNetworkError(err):
		s.applyOfflineAdd(ctx, product)
		return true, nil
	default:
		return false, fmt.Errorf("toggle on product %d: %w", product.ID, err)
	}
}

// UpdateQuantity sets a new quantity for an existing cart item,
// applying it to memory immediately and reverting if the server
// rejects the update. Quantities below 1 are refused with
// ErrConfirmRemoval before anything is touched.
func (s *Synchronizer) UpdateQuantity(ctx context.Context, cartItemID int64, quantity int) error {
	if quantity < 1 {
		return ErrConfirmRemoval
	}

	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()

	// Optimistic apply.
	s.mu.Lock()
	idx := indexByID(s.items, cartItemID)
	if idx < 0 {
		s.mu.Unlock()
		return ErrNotInCart
	}
	previous := s.items[idx].Quantity
	productID := s.items[idx].ProductID
	s.items[idx].Quantity = quantity
	updated := s.items[idx]
	s.mu.Unlock()

	revert := func() {
		s.mu.Lock()
		if i := indexByID(s.items, cartItemID); i >= 0 {
			s.items[i].Quantity = previous
		}
		s.mu.Unlock()
	}

	headers, err := s.ids.Headers(ctx)
	if err != nil {
		revert()
		return err
	}

	err = s.client.UpdateCartItem(ctx, headers, productID, quantity)
	switch {
	case err == nil:
		s.mu.Lock()
		snapshot := append([]api.CartItem(nil), s.items...)
		s.mu.Unlock()
		s.writeMirror(ctx, snapshot)
		return nil
	case api.IsNetworkError(err):
		// Keep the optimistic value; persist it locally until the
		// next successful fetch reconciles.
		s.mirrorUpsert(ctx, updated)
		return nil
	default:
		revert()
		s.refresh(ctx)
		return fmt.Errorf("update quantity for item %d: %w", cartItemID, err)
	}
}

// Remove deletes a cart item, optimistically dropping it from memory
// and restoring it (then re-fetching) if the server rejects the
// delete.
func (s *Synchronizer) Remove(ctx context.Context, cartItemID int64) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()

	if err := s.removeOne(ctx, cartItemID); err != nil {
		s.refresh(ctx)
		return err
	}
	return nil
}

// RemoveMany deletes several cart items, optimistically dropping all
// of them and issuing the deletes sequentially. Items the server
// rejected are restored; the combined error is returned after one
// reconciling re-fetch.
func (s *Synchronizer) RemoveMany(ctx context.Context, cartItemIDs []int64) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()

	var errs []error
	for _, id := range cartItemIDs {
		if err := s.removeOne(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		s.refresh(ctx)
		return errors.Join(errs...)
	}
	return nil
}

// removeOne performs one optimistic delete. Callers own the busy gate
// and decide when to re-fetch.
func (s *Synchronizer) removeOne(ctx context.Context, cartItemID int64) error {
	s.mu.Lock()
	idx := indexByID(s.items, cartItemID)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("remove item %d: %w", cartItemID, ErrNotInCart)
	}
	removed := s.items[idx]
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.mu.Unlock()

	restore := func() {
		s.mu.Lock()
		if indexByID(s.items, removed.ID) < 0 {
			s.items = append(s.items, removed)
		}
		s.mu.Unlock()
	}

	headers, err := s.ids.Headers(ctx)
	if err != nil {
		restore()
		return err
	}

	err = s.client.RemoveCartItem(ctx, headers, removed.ProductID)
	switch {
	case err == nil:
		s.mirrorDelete(ctx, removed.ProductID)
		return nil
	case api.IsNetworkError(err):
		s.mirrorDelete(ctx, removed.ProductID)
		return nil
	default:
		restore()
		return fmt.Errorf("remove item %d: %w", cartItemID, err)
	}
}

// Clear empties the cart server-side, in memory and in the mirror.
// A network failure clears the local copies anyway; a server
// rejection re-fetches and surfaces the error.
//
// Callers that must not lose the items on a connectivity failure use
// ClearConfirmed instead.
func (s *Synchronizer) Clear(ctx context.Context) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()

	headers, err := s.ids.Headers(ctx)
	if err != nil {
		return err
	}

	err = s.client.ClearCart(ctx, headers)
	switch {
	case err == nil, api.IsNetworkError(err):
		s.clearLocal(ctx)
		return nil
	default:
		s.refresh(ctx)
		return fmt.Errorf("clear cart: %w", err)
	}
}

// ClearConfirmed empties the cart only once the server acknowledges
// the clear. Every failure surfaces, network ones included, and local
// state stays untouched until the server confirms, so the items the
// caller is accounting for cannot silently survive server-side.
func (s *Synchronizer) ClearConfirmed(ctx context.Context) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()

	headers, err := s.ids.Headers(ctx)
	if err != nil {
		return err
	}

	if err := s.client.ClearCart(ctx, headers); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	s.clearLocal(ctx)
	return nil
}

func (s *Synchronizer) clearLocal(ctx context.Context) {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
	if err := s.st.ClearMirror(ctx); err != nil {
		s.logger.Warn("clear cart mirror", zap.Error(err))
	}
}

// SelectedTotal returns Σ unitPrice × quantity over the cart items
// whose ids are in the selection. Order of ids is irrelevant.
func (s *Synchronizer) SelectedTotal(cartItemIDs []int64) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	selected := make(map[int64]bool, len(cartItemIDs))
	for _, id := range cartItemIDs {
		selected[id] = true
	}

	total := decimal.Zero
	for _, item := range s.items {
		if selected[item.ID] {
			total = total.Add(item.LineTotal())
		}
	}
	return total
}

// Subtotal returns Σ unitPrice × quantity over the whole cart.
func (s *Synchronizer) Subtotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, item := range s.items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// --- internals ---

// refresh re-fetches after a settled mutation so memory reflects the
// server's view (the mutating call already holds the busy gate).
func (s *Synchronizer) refresh(ctx context.Context) {
	fresh := s.fetchRemote(ctx)
	s.mu.Lock()
	s.items = fresh
	s.mu.Unlock()
}

// applyOfflineAdd applies an add to memory and mirror while the
// backend is unreachable. The item has no server id yet; the next
// successful fetch replaces it with the server's view.
func (s *Synchronizer) applyOfflineAdd(ctx context.Context, product api.Product) {
	item := api.CartItem{
		ProductID: product.ID,
		Name:      product.Name,
		Category:  product.Category,
		ImageURL:  product.ImageURL,
		UnitPrice: product.Price,
		Quantity:  1,
	}
	s.mu.Lock()
	s.items = append(s.items, item)
	s.mu.Unlock()
	s.mirrorUpsert(ctx, item)
}

func (s *Synchronizer) applyOfflineRemove(ctx context.Context, item api.CartItem) {
	s.mu.Lock()
	if idx := indexByProduct(s.items, item.ProductID); idx >= 0 {
		s.items = append(s.items[:idx], s.items[idx+1:]...)
	}
	s.mu.Unlock()
	s.mirrorDelete(ctx, item.ProductID)
}

func indexByProduct(items []api.CartItem, productID int64) int {
	for i, item := range items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

func indexByID(items []api.CartItem, cartItemID int64) int {
	for i, item := range items {
		if item.ID == cartItemID {
			return i
		}
	}
	return -1
}

// Mirror writes are best-effort; failures are logged, never surfaced.

func (s *Synchronizer) writeMirror(ctx context.Context, items []api.CartItem) {
	mirror := make([]store.MirrorItem, 0, len(items))
	for _, item := range items {
		mirror = append(mirror, toMirror(item))
	}
	if err := s.st.ReplaceMirror(ctx, mirror); err != nil {
		s.logger.Warn("write cart mirror", zap.Error(err))
	}
}

func (s *Synchronizer) mirrorUpsert(ctx context.Context, item api.CartItem) {
	if err := s.st.UpsertMirrorItem(ctx, toMirror(item)); err != nil {
		s.logger.Warn("upsert cart mirror item", zap.Int64("product_id", item.ProductID), zap.Error(err))
	}
}

func (s *Synchronizer) mirrorDelete(ctx context.Context, productID int64) {
	if err := s.st.DeleteMirrorItem(ctx, productID); err != nil {
		s.logger.Warn("delete cart mirror item", zap.Int64("product_id", productID), zap.Error(err))
	}
}

func (s *Synchronizer) readMirror(ctx context.Context) []api.CartItem {
	rows, err := s.st.ReadMirror(ctx)
	if err != nil {
		s.logger.Error("read cart mirror", zap.Error(err))
		return []api.CartItem{}
	}

	items := make([]api.CartItem, 0, len(rows))
	for _, row := range rows {
		price, err := money.Parse(row.UnitPrice)
		if err != nil {
			s.logger.Warn("bad mirrored price, using zero",
				zap.Int64("product_id", row.ProductID),
				zap.String("unit_price", row.UnitPrice))
			price = decimal.Zero
		}
		items = append(items, api.CartItem{
			ID:        row.CartItemID,
			ProductID: row.ProductID,
			Name:      row.Name,
			Category:  row.Category,
			ImageURL:  row.ImageURL,
			UnitPrice: price,
			Quantity:  row.Quantity,
		})
	}
	return items
}

func toMirror(item api.CartItem) store.MirrorItem {
	return store.MirrorItem{
		ProductID:  item.ProductID,
		CartItemID: item.ID,
		Name:       item.Name,
		Category:   item.Category,
		ImageURL:   item.ImageURL,
		UnitPrice:  item.UnitPrice.String(),
		Quantity:   item.Quantity,
	}
}
