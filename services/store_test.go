package services

import (
	"context"
	"maps"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yashrajoria/storefront-api/models"
	"github.com/yashrajoria/storefront-api/repository"
	"gorm.io/gorm"
)

// memStore is a map-backed repository.Store. WithTx snapshots every table
// and restores it when fn fails. Repositories embed their interface so an
// unexpected call panics instead of silently passing.
type memStore struct {
	clock time.Time

	accounts    map[uuid.UUID]models.Account
	tokens      map[string]models.RefreshToken
	roles       map[uuid.UUID]models.Role
	otps        map[uuid.UUID]models.Otp
	products    map[uuid.UUID]models.Product
	images      map[uuid.UUID]models.Image
	carts       map[uuid.UUID]models.Cart
	cartItems   map[uuid.UUID]models.CartItem
	orders      map[uuid.UUID]models.Order
	payments    map[uuid.UUID]models.Payment
	campaigns   map[uuid.UUID]models.Campaign
	subscribers map[string]bool
}

func newMemStore() *memStore {
	s := &memStore{
		clock:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		accounts:    map[uuid.UUID]models.Account{},
		tokens:      map[string]models.RefreshToken{},
		roles:       map[uuid.UUID]models.Role{},
		otps:        map[uuid.UUID]models.Otp{},
		products:    map[uuid.UUID]models.Product{},
		images:      map[uuid.UUID]models.Image{},
		carts:       map[uuid.UUID]models.Cart{},
		cartItems:   map[uuid.UUID]models.CartItem{},
		orders:      map[uuid.UUID]models.Order{},
		payments:    map[uuid.UUID]models.Payment{},
		campaigns:   map[uuid.UUID]models.Campaign{},
		subscribers: map[string]bool{},
	}
	for _, r := range models.DefaultRoles() {
		r.ID = uuid.New()
		s.roles[r.ID] = r
	}
	return s
}

// tick returns strictly increasing timestamps so ordering by created_at is stable.
func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

func (s *memStore) Accounts() repository.AccountRepository   { return &memAccounts{s: s} }
func (s *memStore) Roles() repository.RoleRepository         { return &memRoles{s: s} }
func (s *memStore) Otps() repository.OtpRepository           { return &memOtps{s: s} }
func (s *memStore) Products() repository.ProductRepository   { return &memProducts{s: s} }
func (s *memStore) Images() repository.ImageRepository       { return &memImages{s: s} }
func (s *memStore) Carts() repository.CartRepository         { return &memCarts{s: s} }
func (s *memStore) Orders() repository.OrderRepository       { return &memOrders{s: s} }
func (s *memStore) Payments() repository.PaymentRepository   { return &memPayments{s: s} }
func (s *memStore) Campaigns() repository.CampaignRepository { return &memCampaigns{s: s} }

func (s *memStore) WithTx(_ context.Context, fn func(tx repository.Store) error) error {
	snap := *s
	snap.accounts = maps.Clone(s.accounts)
	snap.tokens = maps.Clone(s.tokens)
	snap.roles = maps.Clone(s.roles)
	snap.otps = maps.Clone(s.otps)
	snap.products = maps.Clone(s.products)
	snap.images = maps.Clone(s.images)
	snap.carts = maps.Clone(s.carts)
	snap.cartItems = maps.Clone(s.cartItems)
	snap.orders = maps.Clone(s.orders)
	snap.payments = maps.Clone(s.payments)
	snap.campaigns = maps.Clone(s.campaigns)
	snap.subscribers = maps.Clone(s.subscribers)
	if err := fn(s); err != nil {
		clock := s.clock
		*s = snap
		s.clock = clock
		return err
	}
	return nil
}

// seedProduct stores an active product and returns it.
func (s *memStore) seedProduct(name string, price int64, stock int) models.Product {
	p := models.Product{
		ID:            uuid.New(),
		Name:          name,
		Slug:          Slugify(name),
		SKU:           strings.ToUpper(Slugify(name)),
		Price:         price,
		Stock:         stock,
		ComponentType: models.ComponentCPU,
		IsActive:      true,
		CreatedAt:     s.tick(),
	}
	s.products[p.ID] = p
	return p
}

func (s *memStore) seedAccount(email, phone string, verified bool) models.Account {
	a := models.Account{ID: uuid.New(), Name: "Test User", IsActive: true, CreatedAt: s.tick()}
	if email != "" {
		a.Email = &email
	}
	if phone != "" {
		a.Phone = &phone
	}
	if verified {
		now := s.clock
		a.EmailVerifiedAt = &now
	}
	role, _ := (&memRoles{s: s}).FindByName(context.Background(), models.RoleCustomer)
	a.RoleID = role.ID
	s.accounts[a.ID] = a
	return a
}

// --- accounts ---

type memAccounts struct {
	repository.AccountRepository
	s *memStore
}

func (r *memAccounts) withRole(a models.Account) *models.Account {
	a.Role = r.s.roles[a.RoleID]
	return &a
}

func (r *memAccounts) Create(_ context.Context, a *models.Account) error {
	for _, other := range r.s.accounts {
		if (a.Email != nil && sameString(a.Email, other.Email)) || (a.Phone != nil && sameString(a.Phone, other.Phone)) {
			return gorm.ErrDuplicatedKey
		}
	}
	a.ID = uuid.New()
	a.CreatedAt = r.s.tick()
	stored := *a
	stored.Role = models.Role{}
	r.s.accounts[a.ID] = stored
	return nil
}

func (r *memAccounts) FindByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r.withRole(a), nil
}

func (r *memAccounts) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	for _, a := range r.s.accounts {
		if a.EmailAddress() == email {
			return r.withRole(a), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memAccounts) FindByPhone(_ context.Context, phone string) (*models.Account, error) {
	for _, a := range r.s.accounts {
		if a.PhoneNumber() == phone {
			return r.withRole(a), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memAccounts) UpdateFields(_ context.Context, id uuid.UUID, fields map[string]any) error {
	a, ok := r.s.accounts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range fields {
		switch k {
		case "name":
			a.Name = v.(string)
		case "phone":
			a.Phone = v.(*string)
		case "password_hash":
			a.PasswordHash = v.(string)
		case "role_id":
			a.RoleID = v.(uuid.UUID)
		case "is_active":
			a.IsActive = v.(bool)
		case "email_verified_at":
			a.EmailVerifiedAt = timePtr(v)
		case "phone_verified_at":
			a.PhoneVerifiedAt = timePtr(v)
		default:
			panic("memAccounts: unknown field " + k)
		}
	}
	r.s.accounts[id] = a
	return nil
}

func (r *memAccounts) CountByRole(_ context.Context, roleID uuid.UUID) (int64, error) {
	var n int64
	for _, a := range r.s.accounts {
		if a.RoleID == roleID {
			n++
		}
	}
	return n, nil
}

func (r *memAccounts) CreateRefreshToken(_ context.Context, t *models.RefreshToken) error {
	t.CreatedAt = r.s.tick()
	r.s.tokens[t.TokenID] = *t
	return nil
}

func (r *memAccounts) RevokeRefreshToken(_ context.Context, tokenID string) (bool, error) {
	t, ok := r.s.tokens[tokenID]
	if !ok || t.Revoked {
		return false, nil
	}
	t.Revoked = true
	r.s.tokens[tokenID] = t
	return true, nil
}

func (r *memAccounts) RevokeAllRefreshTokens(_ context.Context, accountID uuid.UUID) error {
	for id, t := range r.s.tokens {
		if t.AccountID == accountID {
			t.Revoked = true
			r.s.tokens[id] = t
		}
	}
	return nil
}

func timePtr(v any) *time.Time {
	switch t := v.(type) {
	case time.Time:
		return &t
	case *time.Time:
		return t
	}
	return nil
}

// --- roles ---

type memRoles struct {
	repository.RoleRepository
	s *memStore
}

func (r *memRoles) FindByName(_ context.Context, name string) (*models.Role, error) {
	for _, role := range r.s.roles {
		if role.Name == name {
			return &role, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memRoles) FindByID(_ context.Context, id uuid.UUID) (*models.Role, error) {
	role, ok := r.s.roles[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &role, nil
}

func (r *memRoles) List(_ context.Context) ([]models.Role, error) {
	out := make([]models.Role, 0, len(r.s.roles))
	for _, role := range r.s.roles {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memRoles) Create(ctx context.Context, role *models.Role) error {
	if _, err := r.FindByName(ctx, role.Name); err == nil {
		return gorm.ErrDuplicatedKey
	}
	role.ID = uuid.New()
	r.s.roles[role.ID] = *role
	return nil
}

func (r *memRoles) Update(_ context.Context, role *models.Role) error {
	r.s.roles[role.ID] = *role
	return nil
}

func (r *memRoles) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.s.roles, id)
	return nil
}

// --- otps ---

type memOtps struct {
	repository.OtpRepository
	s *memStore
}

func (r *memOtps) Create(_ context.Context, o *models.Otp) error {
	o.ID = uuid.New()
	o.CreatedAt = r.s.tick()
	r.s.otps[o.ID] = *o
	return nil
}

func (r *memOtps) FindActive(_ context.Context, accountID uuid.UUID, purpose models.OtpPurpose) (*models.Otp, error) {
	var latest *models.Otp
	for _, o := range r.s.otps {
		if o.AccountID != accountID || o.Purpose != purpose || o.UsedAt != nil {
			continue
		}
		if latest == nil || o.CreatedAt.After(latest.CreatedAt) {
			o := o
			latest = &o
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return latest, nil
}

func (r *memOtps) InvalidateActive(_ context.Context, accountID uuid.UUID, purpose models.OtpPurpose) error {
	now := r.s.tick()
	for id, o := range r.s.otps {
		if o.AccountID == accountID && o.Purpose == purpose && o.UsedAt == nil {
			o.UsedAt = &now
			r.s.otps[id] = o
		}
	}
	return nil
}

func (r *memOtps) ConsumeAttempt(_ context.Context, id uuid.UUID, maxAttempts int) (bool, error) {
	o, ok := r.s.otps[id]
	if !ok || o.UsedAt != nil || o.Attempts >= maxAttempts {
		return false, nil
	}
	o.Attempts++
	r.s.otps[id] = o
	return true, nil
}

func (r *memOtps) MarkUsed(_ context.Context, id uuid.UUID) (bool, error) {
	o, ok := r.s.otps[id]
	if !ok || o.UsedAt != nil {
		return false, nil
	}
	now := r.s.tick()
	o.UsedAt = &now
	r.s.otps[id] = o
	return true, nil
}

func (r *memOtps) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	var n int64
	for id, o := range r.s.otps {
		if o.ExpiresAt.Before(before) {
			delete(r.s.otps, id)
			n++
		}
	}
	return n, nil
}

func (r *memOtps) UpdateChannel(_ context.Context, id uuid.UUID, ch models.OtpChannel, target string) error {
	o := r.s.otps[id]
	o.Channel, o.Target = ch, target
	r.s.otps[id] = o
	return nil
}

// --- products ---

type memProducts struct {
	repository.ProductRepository
	s *memStore
}

func (r *memProducts) Create(_ context.Context, p *models.Product) error {
	p.ID = uuid.New()
	p.CreatedAt = r.s.tick()
	stored := *p
	stored.Spec = nil
	r.s.products[p.ID] = stored
	return nil
}

func (r *memProducts) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := r.s.products[id]
	if !ok || p.DeletedAt.Valid {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r *memProducts) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return r.FindByID(ctx, id)
}

func (r *memProducts) FindBySlug(_ context.Context, slug string) (*models.Product, error) {
	for _, p := range r.s.products {
		if p.Slug == slug && !p.DeletedAt.Valid {
			return &p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memProducts) FindAll(_ context.Context, filter models.ProductFilter) ([]models.Product, int64, error) {
	var out []models.Product
	for _, p := range r.s.products {
		if p.DeletedAt.Valid || (filter.Category != "" && p.Category != filter.Category) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r *memProducts) Update(_ context.Context, p *models.Product) error {
	stored := *p
	stored.Spec = nil
	r.s.products[p.ID] = stored
	return nil
}

func (r *memProducts) Delete(_ context.Context, id uuid.UUID) error {
	p, ok := r.s.products[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.DeletedAt = gorm.DeletedAt{Time: r.s.tick(), Valid: true}
	r.s.products[id] = p
	return nil
}

func (r *memProducts) SlugExists(_ context.Context, slug string, excludeID uuid.UUID) (bool, error) {
	for _, p := range r.s.products {
		if p.Slug == slug && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memProducts) AdjustStock(_ context.Context, id uuid.UUID, delta int) (bool, error) {
	p, ok := r.s.products[id]
	if !ok || p.DeletedAt.Valid || p.Stock+delta < 0 {
		return false, nil
	}
	p.Stock += delta
	r.s.products[id] = p
	return true, nil
}

func (r *memProducts) LoadSpec(context.Context, *models.Product) error                   { return nil }
func (r *memProducts) SaveSpec(context.Context, models.ComponentSpec) error              { return nil }
func (r *memProducts) DeleteSpec(context.Context, uuid.UUID, models.ComponentType) error { return nil }

// --- images ---

type memImages struct {
	repository.ImageRepository
	s *memStore
}

func (r *memImages) Create(_ context.Context, img *models.Image) error {
	if img.ID == uuid.Nil {
		img.ID = uuid.New()
	}
	img.CreatedAt = r.s.tick()
	r.s.images[img.ID] = *img
	return nil
}

func (r *memImages) FindByID(_ context.Context, id uuid.UUID) (*models.Image, error) {
	img, ok := r.s.images[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &img, nil
}

func (r *memImages) ListByProduct(_ context.Context, productID uuid.UUID) ([]models.Image, error) {
	var out []models.Image
	for _, img := range r.s.images {
		if img.ProductID == productID {
			out = append(out, img)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *memImages) CountByProduct(ctx context.Context, productID uuid.UUID) (int64, error) {
	imgs, _ := r.ListByProduct(ctx, productID)
	return int64(len(imgs)), nil
}

func (r *memImages) NextPosition(ctx context.Context, productID uuid.UUID) (int, error) {
	imgs, _ := r.ListByProduct(ctx, productID)
	if len(imgs) == 0 {
		return 0, nil
	}
	return imgs[len(imgs)-1].Position + 1, nil
}

func (r *memImages) SetPrimary(_ context.Context, productID, imageID uuid.UUID) error {
	for id, img := range r.s.images {
		if img.ProductID == productID {
			img.IsPrimary = id == imageID
			r.s.images[id] = img
		}
	}
	return nil
}

func (r *memImages) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.s.images, id)
	return nil
}

// --- carts ---

type memCarts struct {
	repository.CartRepository
	s *memStore
}

func (r *memCarts) GetOrCreateForUpdate(_ context.Context, accountID uuid.UUID) (*models.Cart, error) {
	c, ok := r.s.carts[accountID]
	if !ok {
		now := r.s.tick()
		c = models.Cart{ID: uuid.New(), AccountID: accountID, CreatedAt: now, UpdatedAt: now}
		r.s.carts[accountID] = c
	}
	return &c, nil
}

func (r *memCarts) FindByAccount(_ context.Context, accountID uuid.UUID) (*models.Cart, error) {
	c, ok := r.s.carts[accountID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c.Items = nil
	for _, item := range r.s.cartItems {
		if item.CartID != c.ID {
			continue
		}
		if p, ok := r.s.products[item.ProductID]; ok {
			item.Product = &p
		}
		c.Items = append(c.Items, item)
	}
	sort.Slice(c.Items, func(i, j int) bool { return c.Items[i].CreatedAt.Before(c.Items[j].CreatedAt) })
	return &c, nil
}

func (r *memCarts) FindItem(_ context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	for _, item := range r.s.cartItems {
		if item.CartID == cartID && item.ProductID == productID {
			return &item, nil
		}
	}
	return nil, nil
}

func (r *memCarts) CreateItem(ctx context.Context, item *models.CartItem) error {
	if existing, _ := r.FindItem(ctx, item.CartID, item.ProductID); existing != nil {
		return gorm.ErrDuplicatedKey
	}
	item.ID = uuid.New()
	item.CreatedAt = r.s.tick()
	stored := *item
	stored.Product = nil
	r.s.cartItems[item.ID] = stored
	return nil
}

func (r *memCarts) UpdateItemQuantity(_ context.Context, itemID uuid.UUID, quantity int) error {
	item := r.s.cartItems[itemID]
	item.Quantity = quantity
	r.s.cartItems[itemID] = item
	return nil
}

func (r *memCarts) DeleteItem(_ context.Context, itemID uuid.UUID) error {
	delete(r.s.cartItems, itemID)
	return nil
}

func (r *memCarts) ClearItems(_ context.Context, cartID uuid.UUID) error {
	for id, item := range r.s.cartItems {
		if item.CartID == cartID {
			delete(r.s.cartItems, id)
		}
	}
	return nil
}

func (r *memCarts) Touch(_ context.Context, cartID uuid.UUID) error {
	for accountID, c := range r.s.carts {
		if c.ID == cartID {
			c.UpdatedAt = r.s.tick()
			r.s.carts[accountID] = c
		}
	}
	return nil
}

// --- orders ---

type memOrders struct {
	repository.OrderRepository
	s *memStore
}

func (r *memOrders) Create(_ context.Context, o *models.Order) error {
	o.ID = uuid.New()
	o.CreatedAt = r.s.tick()
	for i := range o.Items {
		o.Items[i].ID = uuid.New()
		o.Items[i].OrderID = o.ID
	}
	stored := *o
	stored.Items = append([]models.OrderItem(nil), o.Items...)
	r.s.orders[o.ID] = stored
	return nil
}

func (r *memOrders) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	o, ok := r.s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &o, nil
}

func (r *memOrders) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.FindByID(ctx, id)
}

func (r *memOrders) FindByIDAndAccount(_ context.Context, id, accountID uuid.UUID) (*models.Order, error) {
	o, ok := r.s.orders[id]
	if !ok || o.AccountID != accountID {
		return nil, gorm.ErrRecordNotFound
	}
	return &o, nil
}

func (r *memOrders) FindAll(_ context.Context, filter models.OrderFilter) ([]models.Order, int64, error) {
	var out []models.Order
	for _, o := range r.s.orders {
		if filter.AccountID != nil && o.AccountID != *filter.AccountID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r *memOrders) UpdateFields(_ context.Context, id uuid.UUID, fields map[string]any) error {
	o, ok := r.s.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range fields {
		switch k {
		case "status":
			o.Status = v.(models.OrderStatus)
		case "paid_at":
			o.PaidAt = timePtr(v)
		case "canceled_at":
			o.CanceledAt = timePtr(v)
		default:
			panic("memOrders: unknown field " + k)
		}
	}
	r.s.orders[id] = o
	return nil
}

// --- payments ---

type memPayments struct {
	repository.PaymentRepository
	s *memStore
}

func (r *memPayments) Create(_ context.Context, p *models.Payment) error {
	for _, other := range r.s.payments {
		if other.OrderID == p.OrderID {
			return gorm.ErrDuplicatedKey
		}
	}
	p.ID = uuid.New()
	p.CreatedAt = r.s.tick()
	r.s.payments[p.ID] = *p
	return nil
}

func (r *memPayments) FindByOrderID(_ context.Context, orderID uuid.UUID) (*models.Payment, error) {
	for _, p := range r.s.payments {
		if p.OrderID == orderID {
			return &p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memPayments) FindByIntentIDForUpdate(_ context.Context, intentID string) (*models.Payment, error) {
	for _, p := range r.s.payments {
		if p.StripePaymentIntentID != nil && *p.StripePaymentIntentID == intentID {
			return &p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memPayments) Update(_ context.Context, p *models.Payment) error {
	r.s.payments[p.ID] = *p
	return nil
}

// --- campaigns ---

type memCampaigns struct {
	repository.CampaignRepository
	s *memStore
}

func (r *memCampaigns) Create(_ context.Context, c *models.Campaign) error {
	if c.DiscountCode != nil {
		for _, other := range r.s.campaigns {
			if sameString(other.DiscountCode, c.DiscountCode) {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	c.ID = uuid.New()
	c.CreatedAt = r.s.tick()
	r.s.campaigns[c.ID] = *c
	return nil
}

func (r *memCampaigns) FindByID(_ context.Context, id uuid.UUID) (*models.Campaign, error) {
	c, ok := r.s.campaigns[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r *memCampaigns) FindByCode(_ context.Context, code string) (*models.Campaign, error) {
	for _, c := range r.s.campaigns {
		if c.DiscountCode != nil && *c.DiscountCode == code {
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memCampaigns) ListLive(_ context.Context, kind models.CampaignKind, at time.Time) ([]models.Campaign, error) {
	var out []models.Campaign
	for _, c := range r.s.campaigns {
		if (kind == "" || c.Kind == kind) && c.LiveAt(at) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *memCampaigns) Redeem(_ context.Context, id uuid.UUID) (bool, error) {
	c, ok := r.s.campaigns[id]
	if !ok || (c.MaxRedemptions > 0 && c.Redemptions >= c.MaxRedemptions) {
		return false, nil
	}
	c.Redemptions++
	r.s.campaigns[id] = c
	return true, nil
}

func (r *memCampaigns) ReleaseRedemption(_ context.Context, code string) error {
	for id, c := range r.s.campaigns {
		if c.DiscountCode != nil && *c.DiscountCode == code && c.Redemptions > 0 {
			c.Redemptions--
			r.s.campaigns[id] = c
		}
	}
	return nil
}

func (r *memCampaigns) UpsertSubscriber(_ context.Context, email string) error {
	r.s.subscribers[email] = true
	return nil
}

func (r *memCampaigns) Unsubscribe(_ context.Context, email string) error {
	if _, ok := r.s.subscribers[email]; ok {
		r.s.subscribers[email] = false
	}
	return nil
}
