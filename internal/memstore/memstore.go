// Package memstore keeps every repository in memory behind one mutex. Each
// method is atomic the way the Postgres repositories are: a failing callback
// leaves no partial writes.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/ledger"
	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/eksporyuk/affiliate-ledger/internal/payout"
	"github.com/eksporyuk/affiliate-ledger/internal/reminder"
	"github.com/google/uuid"
)

type Store struct {
	mu sync.Mutex

	// Now stamps created_at and updated_at columns.
	Now func() time.Time

	coupons      map[uuid.UUID]*model.Coupon
	transactions map[uuid.UUID]*model.Transaction
	profiles     map[uuid.UUID]*model.AffiliateProfile
	links        map[uuid.UUID]*model.AffiliateLink
	wallets      map[uuid.UUID]*model.Wallet
	revenues     map[uuid.UUID]*model.PendingRevenue
	payouts      map[uuid.UUID]*model.Payout
	entries      []model.WalletEntry
	events       []model.OutboxEvent
	webhooks     map[string]*model.PspWebhook
	reminders    map[string]*model.ReminderLog
}

func New() *Store {
	return &Store{
		Now:          time.Now,
		coupons:      make(map[uuid.UUID]*model.Coupon),
		transactions: make(map[uuid.UUID]*model.Transaction),
		profiles:     make(map[uuid.UUID]*model.AffiliateProfile),
		links:        make(map[uuid.UUID]*model.AffiliateLink),
		wallets:      make(map[uuid.UUID]*model.Wallet),
		revenues:     make(map[uuid.UUID]*model.PendingRevenue),
		payouts:      make(map[uuid.UUID]*model.Payout),
		webhooks:     make(map[string]*model.PspWebhook),
		reminders:    make(map[string]*model.ReminderLog),
	}
}

func ptr[T any](v T) *T { return &v }

func page[T any](items []T, f model.ListFilter) ([]T, int64) {
	total := int64(len(items))
	start := min(f.Offset(), len(items))
	end := len(items)
	if f.Limit > 0 {
		end = min(start+f.Limit, len(items))
	}
	return items[start:end], total
}

func newestFirst[T any](items []T, created func(T) time.Time) {
	slices.SortStableFunc(items, func(a, b T) int { return created(b).Compare(created(a)) })
}

// Events returns a copy of every outbox event written so far.
func (s *Store) Events() []model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

// EventsOfType filters Events by event type.
func (s *Store) EventsOfType(eventType string) []model.OutboxEvent {
	var out []model.OutboxEvent
	for _, e := range s.Events() {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// SeedWallet replaces a user's wallet buckets.
func (s *Store) SeedWallet(w model.Wallet) *model.Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing := s.walletByUser(w.UserID); existing != nil {
		w.ID = existing.ID
	}
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	now := s.Now()
	w.CreatedAt, w.UpdatedAt = now, now
	s.wallets[w.ID] = &w
	return ptr(w)
}

// SetTransactionCreatedAt backdates a transaction.
func (s *Store) SetTransactionCreatedAt(id uuid.UUID, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.transactions[id]; ok {
		t.CreatedAt = at
	}
}

func (s *Store) WebhookStatus(eventID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.webhooks[eventID]; ok {
		return w.Status
	}
	return ""
}

// Coupons

func (s *Store) GetByCode(_ context.Context, code string) (*model.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.coupons {
		if strings.EqualFold(c.Code, code) {
			return ptr(*c), nil
		}
	}
	return nil, apperror.ErrCouponNotFound
}

func (s *Store) CreateCoupon(_ context.Context, c *model.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.coupons {
		if strings.EqualFold(existing.Code, c.Code) {
			return apperror.ErrCouponCodeTaken
		}
	}
	c.ID = uuid.New()
	c.IsActive = true
	c.UsageCount = 0
	c.CreatedAt, c.UpdatedAt = s.Now(), s.Now()
	s.coupons[c.ID] = ptr(*c)
	return nil
}

func (s *Store) ListCoupons(_ context.Context, f model.ListFilter) ([]model.Coupon, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Coupon
	for _, c := range s.coupons {
		if f.Search != "" && !strings.Contains(strings.ToLower(c.Code), strings.ToLower(f.Search)) {
			continue
		}
		switch strings.ToUpper(f.Status) {
		case "ACTIVE":
			if !c.IsActive {
				continue
			}
		case "INACTIVE":
			if c.IsActive {
				continue
			}
		}
		out = append(out, *c)
	}
	newestFirst(out, func(c model.Coupon) time.Time { return c.CreatedAt })
	items, total := page(out, f)
	return items, total, nil
}

func (s *Store) DeactivateCoupon(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coupons[id]
	if !ok {
		return apperror.ErrCouponNotFound
	}
	c.IsActive = false
	c.UpdatedAt = s.Now()
	return nil
}

func (s *Store) holdCoupon(id uuid.UUID) error {
	c, ok := s.coupons[id]
	if !ok || !c.IsActive {
		return apperror.ErrCouponNotFound
	}
	if c.UsageLimit == nil {
		return nil
	}
	var holds int64
	for _, t := range s.transactions {
		if t.CouponID != nil && *t.CouponID == id && t.Status == model.TransactionPending {
			holds++
		}
	}
	if c.UsageCount+holds >= *c.UsageLimit {
		return apperror.ErrCouponExhausted
	}
	return nil
}

// Transactions

func (s *Store) CreateTransaction(_ context.Context, txn *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if txn.CouponID != nil {
		if err := s.holdCoupon(*txn.CouponID); err != nil {
			return err
		}
	}
	txn.CreatedAt, txn.UpdatedAt = s.Now(), s.Now()
	s.transactions[txn.ID] = ptr(*txn)
	return nil
}

func (s *Store) SetPaymentDetails(_ context.Context, id uuid.UUID, providerRef, paymentURL, method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.transactions[id]; ok {
		t.ProviderRef, t.PaymentURL, t.PaymentMethod = providerRef, paymentURL, method
		t.UpdatedAt = s.Now()
	}
	return nil
}

func (s *Store) GetTransaction(_ context.Context, id uuid.UUID) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok {
		return nil, apperror.ErrTransactionNotFound
	}
	return ptr(*t), nil
}

func (s *Store) GetTransactionByInvoice(_ context.Context, invoiceNumber string) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.transactions {
		if t.InvoiceNumber == invoiceNumber {
			return ptr(*t), nil
		}
	}
	return nil, apperror.ErrTransactionNotFound
}

func (s *Store) CompleteTransaction(_ context.Context, st model.Settlement) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[st.TransactionID]
	if !ok || t.Status != model.TransactionPending {
		return false, nil
	}

	if st.CouponID != nil {
		c, ok := s.coupons[*st.CouponID]
		if !ok || (c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit) {
			return false, apperror.ErrCouponExhausted
		}
	}
	// validate drafts before any write so a failure leaves nothing behind
	for _, d := range st.Revenues {
		if d.Amount <= 0 {
			return false, apperror.Validation("revenue amount must be positive")
		}
	}

	if st.CouponID != nil {
		c := s.coupons[*st.CouponID]
		c.UsageCount++
		c.UpdatedAt = s.Now()
	}
	for _, d := range st.Revenues {
		_, created := s.appendRevenue(d)
		if created && d.Type == model.RevenueAffiliateCommission {
			if p := s.profileByUser(d.UserID); p != nil {
				p.TotalConversions++
			}
		}
	}
	s.enqueue(st.Events...)

	t.Status = model.TransactionSuccess
	t.PaidAt = ptr(st.PaidAt)
	if st.PaymentMethod != "" {
		t.PaymentMethod = st.PaymentMethod
	}
	if st.ProviderRef != "" {
		t.ProviderRef = st.ProviderRef
	}
	t.UpdatedAt = s.Now()
	return true, nil
}

func (s *Store) FailTransaction(_ context.Context, id uuid.UUID, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok || t.Status != model.TransactionPending {
		return false, nil
	}
	t.Status = model.TransactionFailed
	t.FailureReason = reason
	t.UpdatedAt = s.Now()
	return true, nil
}

func (s *Store) ListTransactions(_ context.Context, f model.ListFilter) ([]model.Transaction, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Transaction
	for _, t := range s.transactions {
		if f.Status != "" && string(t.Status) != f.Status {
			continue
		}
		if f.UserID != nil && t.UserID != *f.UserID {
			continue
		}
		if f.Search != "" && !strings.Contains(t.InvoiceNumber, f.Search) && !strings.Contains(t.PayerEmail, f.Search) {
			continue
		}
		out = append(out, *t)
	}
	newestFirst(out, func(t model.Transaction) time.Time { return t.CreatedAt })
	items, total := page(out, f)
	return items, total, nil
}

func (s *Store) ListStalePending(_ context.Context, createdBefore time.Time, limit int) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stale []*model.Transaction
	for _, t := range s.transactions {
		if t.Status == model.TransactionPending && t.CreatedAt.Before(createdBefore) {
			stale = append(stale, t)
		}
	}
	slices.SortFunc(stale, func(a, b *model.Transaction) int { return a.CreatedAt.Compare(b.CreatedAt) })
	var ids []uuid.UUID
	for _, t := range stale[:min(limit, len(stale))] {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

// Wallets

func (s *Store) walletByUser(userID uuid.UUID) *model.Wallet {
	for _, w := range s.wallets {
		if w.UserID == userID {
			return w
		}
	}
	return nil
}

func (s *Store) ensureWallet(userID uuid.UUID) *model.Wallet {
	if w := s.walletByUser(userID); w != nil {
		return w
	}
	now := s.Now()
	w := &model.Wallet{ID: uuid.New(), UserID: userID, Model: model.Model{CreatedAt: now, UpdatedAt: now}}
	s.wallets[w.ID] = w
	return w
}

func (s *Store) GetWalletByUser(_ context.Context, userID uuid.UUID) (*model.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.walletByUser(userID)
	if w == nil {
		return nil, apperror.ErrWalletNotFound
	}
	return ptr(*w), nil
}

func (s *Store) EnsureWallet(_ context.Context, userID uuid.UUID) (*model.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ptr(*s.ensureWallet(userID)), nil
}

func (s *Store) RevenueTotals(_ context.Context, walletID uuid.UUID) (model.RevenueTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var t model.RevenueTotals
	for _, r := range s.revenues {
		if r.WalletID != walletID {
			continue
		}
		switch {
		case r.Status == model.RevenuePending:
			t.Pending += r.Amount
		case r.Settled():
			t.Credited += r.Credited()
		case r.Status == model.RevenueRejected:
			t.Rejected += r.Amount
		}
	}
	return t, nil
}

func (s *Store) PayoutTotals(_ context.Context, walletID uuid.UUID) (model.PayoutTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var t model.PayoutTotals
	for _, p := range s.payouts {
		if p.WalletID != walletID {
			continue
		}
		switch p.Status {
		case model.PayoutPending:
			t.Pending += p.Amount
		case model.PayoutApproved:
			t.Approved += p.Amount
		case model.PayoutPaid:
			t.Paid += p.Amount
		}
	}
	return t, nil
}

func (s *Store) ListWalletEntries(_ context.Context, walletID uuid.UUID, f model.ListFilter) ([]model.WalletEntry, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.WalletEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].WalletID == walletID {
			out = append(out, s.entries[i])
		}
	}
	items, total := page(out, f)
	return items, total, nil
}

func (s *Store) enqueue(events ...model.OutboxEvent) {
	for _, e := range events {
		e.ID = int64(len(s.events) + 1)
		if e.Status == "" {
			e.Status = "pending"
		}
		e.CreatedAt, e.UpdatedAt = s.Now(), s.Now()
		s.events = append(s.events, e)
	}
}

func (s *Store) applyEffect(w *model.Wallet, effect *model.LedgerEffect) {
	if effect == nil {
		return
	}
	if e := effect.Entry; e != nil {
		dup := slices.ContainsFunc(s.entries, func(x model.WalletEntry) bool {
			return x.WalletID == w.ID && x.Type == e.Type && x.Reference == e.Reference
		})
		if !dup {
			entry := *e
			entry.ID = int64(len(s.entries) + 1)
			entry.WalletID = w.ID
			entry.CreatedAt = s.Now()
			s.entries = append(s.entries, entry)
		}
	}
	if effect.Event != nil {
		s.enqueue(*effect.Event)
	}
	if effect.Earnings != 0 {
		if p := s.profileByUser(w.UserID); p != nil {
			p.TotalEarnings += effect.Earnings
		}
	}
}

// Ledger

func (s *Store) appendRevenue(d model.RevenueDraft) (*model.PendingRevenue, bool) {
	for _, r := range s.revenues {
		if r.TransactionID == d.TransactionID && r.Type == d.Type {
			return ptr(*r), false
		}
	}
	w := s.ensureWallet(d.UserID)
	now := s.Now()
	r := &model.PendingRevenue{
		ID:            uuid.New(),
		WalletID:      w.ID,
		TransactionID: d.TransactionID,
		Amount:        d.Amount,
		Type:          d.Type,
		Percentage:    d.Percentage,
		Status:        model.RevenuePending,
		MatureAfter:   d.MatureAfter,
		Model:         model.Model{CreatedAt: now, UpdatedAt: now},
	}
	s.revenues[r.ID] = r
	w.PendingBalance += r.Amount
	w.UpdatedAt = now
	return ptr(*r), true
}

func (s *Store) AppendPendingRevenue(_ context.Context, d model.RevenueDraft, event *model.OutboxEvent) (*model.PendingRevenue, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, created := s.appendRevenue(d)
	if created && event != nil {
		s.enqueue(*event)
	}
	return r, created, nil
}

func (s *Store) ReviewPendingRevenue(_ context.Context, id uuid.UUID, fn ledger.ReviewFunc) (*model.PendingRevenue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.revenues[id]
	if !ok {
		return nil, apperror.ErrRevenueNotFound
	}
	storedWallet, ok := s.wallets[stored.WalletID]
	if !ok {
		return nil, apperror.ErrWalletNotFound
	}

	r, w := ptr(*stored), ptr(*storedWallet)
	effect, err := fn(r, w)
	if err != nil {
		return nil, err
	}
	r.UpdatedAt, w.UpdatedAt = s.Now(), s.Now()
	*stored, *storedWallet = *r, *w
	s.applyEffect(storedWallet, effect)
	return ptr(*r), nil
}

func (s *Store) GetPendingRevenue(_ context.Context, id uuid.UUID) (*model.PendingRevenue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.revenues[id]
	if !ok {
		return nil, apperror.ErrRevenueNotFound
	}
	return ptr(*r), nil
}

func (s *Store) ListPendingRevenues(_ context.Context, f model.ListFilter) ([]model.PendingRevenue, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.PendingRevenue
	for _, r := range s.revenues {
		if f.Status != "" && string(r.Status) != f.Status {
			continue
		}
		if f.UserID != nil {
			if w, ok := s.wallets[r.WalletID]; !ok || w.UserID != *f.UserID {
				continue
			}
		}
		out = append(out, *r)
	}
	newestFirst(out, func(r model.PendingRevenue) time.Time { return r.CreatedAt })
	items, total := page(out, f)
	return items, total, nil
}

func (s *Store) ListDueRevenueIDs(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*model.PendingRevenue
	for _, r := range s.revenues {
		if r.Status == model.RevenuePending && !r.MatureAfter.After(now) {
			due = append(due, r)
		}
	}
	slices.SortFunc(due, func(a, b *model.PendingRevenue) int { return a.MatureAfter.Compare(b.MatureAfter) })
	var ids []uuid.UUID
	for _, r := range due[:min(limit, len(due))] {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// Payouts

func (s *Store) CreatePayout(_ context.Context, userID uuid.UUID, fn payout.CreateFunc) (*model.Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.walletByUser(userID)
	if stored == nil {
		return nil, apperror.ErrWalletNotFound
	}
	var earmarked int64
	for _, p := range s.payouts {
		if p.WalletID == stored.ID && p.Status == model.PayoutPending {
			earmarked += p.Amount
		}
	}

	p, event, err := fn(ptr(*stored), earmarked)
	if err != nil {
		return nil, err
	}
	p.WalletID = stored.ID
	p.CreatedAt, p.UpdatedAt = s.Now(), s.Now()
	s.payouts[p.ID] = ptr(*p)
	if event != nil {
		s.enqueue(*event)
	}
	return ptr(*p), nil
}

func (s *Store) TransitionPayout(_ context.Context, id uuid.UUID, fn payout.TransitionFunc) (*model.Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.payouts[id]
	if !ok {
		return nil, apperror.ErrPayoutNotFound
	}
	storedWallet, ok := s.wallets[stored.WalletID]
	if !ok {
		return nil, apperror.ErrWalletNotFound
	}

	p, w := ptr(*stored), ptr(*storedWallet)
	effect, err := fn(p, w)
	if err != nil {
		return nil, err
	}
	p.UpdatedAt, w.UpdatedAt = s.Now(), s.Now()
	*stored, *storedWallet = *p, *w
	s.applyEffect(storedWallet, effect)
	return ptr(*p), nil
}

func (s *Store) GetPayout(_ context.Context, id uuid.UUID) (*model.Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payouts[id]
	if !ok {
		return nil, apperror.ErrPayoutNotFound
	}
	return ptr(*p), nil
}

func (s *Store) ListPayouts(_ context.Context, f model.ListFilter) ([]model.Payout, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Payout
	for _, p := range s.payouts {
		if f.Status != "" && string(p.Status) != f.Status {
			continue
		}
		if f.UserID != nil && p.UserID != *f.UserID {
			continue
		}
		out = append(out, *p)
	}
	newestFirst(out, func(p model.Payout) time.Time { return p.CreatedAt })
	items, total := page(out, f)
	return items, total, nil
}

// Affiliates

func (s *Store) profileByUser(userID uuid.UUID) *model.AffiliateProfile {
	for _, p := range s.profiles {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

func (s *Store) CreateProfile(_ context.Context, p *model.AffiliateProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.profiles {
		if existing.UserID == p.UserID {
			return apperror.ErrApplicationExists
		}
		if strings.EqualFold(existing.AffiliateCode, p.AffiliateCode) {
			return apperror.ErrAffiliateCodeTaken
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt, p.UpdatedAt = s.Now(), s.Now()
	s.profiles[p.ID] = ptr(*p)
	return nil
}

func (s *Store) GetProfile(_ context.Context, id uuid.UUID) (*model.AffiliateProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, apperror.ErrAffiliateNotFound
	}
	return ptr(*p), nil
}

func (s *Store) GetProfileByUser(_ context.Context, userID uuid.UUID) (*model.AffiliateProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.profileByUser(userID)
	if p == nil {
		return nil, apperror.ErrAffiliateNotFound
	}
	return ptr(*p), nil
}

func (s *Store) GetProfileByCode(_ context.Context, code string) (*model.AffiliateProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if strings.EqualFold(p.AffiliateCode, code) {
			return ptr(*p), nil
		}
	}
	return nil, apperror.ErrAffiliateNotFound
}

func (s *Store) UpdateProfile(_ context.Context, id uuid.UUID, fn func(p *model.AffiliateProfile) error) (*model.AffiliateProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.profiles[id]
	if !ok {
		return nil, apperror.ErrAffiliateNotFound
	}
	p := ptr(*stored)
	if err := fn(p); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.Now()
	*stored = *p
	return ptr(*p), nil
}

func (s *Store) ListProfiles(_ context.Context, f model.ListFilter) ([]model.AffiliateProfile, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.AffiliateProfile
	for _, p := range s.profiles {
		if f.Status != "" && string(p.Status) != f.Status {
			continue
		}
		if f.Search != "" && !strings.Contains(p.AffiliateCode, strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, *p)
	}
	slices.SortStableFunc(out, func(a, b model.AffiliateProfile) int { return cmp.Compare(b.AppliedAt.UnixNano(), a.AppliedAt.UnixNano()) })
	items, total := page(out, f)
	return items, total, nil
}

func (s *Store) CreateLink(_ context.Context, l *model.AffiliateLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.links {
		if existing.Code == l.Code {
			return apperror.ErrAffiliateCodeTaken
		}
	}
	l.Clicks = 0
	l.CreatedAt, l.UpdatedAt = s.Now(), s.Now()
	s.links[l.ID] = ptr(*l)
	return nil
}

func (s *Store) ListLinks(_ context.Context, affiliateUserID uuid.UUID) ([]model.AffiliateLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.AffiliateLink
	for _, l := range s.links {
		if l.AffiliateID == affiliateUserID {
			out = append(out, *l)
		}
	}
	newestFirst(out, func(l model.AffiliateLink) time.Time { return l.CreatedAt })
	return out, nil
}

func (s *Store) GetLinkByCode(_ context.Context, code string) (*model.AffiliateLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.links {
		if l.Code == strings.ToLower(code) {
			return ptr(*l), nil
		}
	}
	return nil, apperror.ErrLinkNotFound
}

func (s *Store) RecordClick(_ context.Context, linkID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.links[linkID]; ok {
		l.Clicks++
	}
	return nil
}

// Webhooks

func (s *Store) StoreWebhook(_ context.Context, eventID string, payload []byte, event model.OutboxEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.webhooks[eventID]; ok {
		return false, nil
	}
	now := s.Now()
	s.webhooks[eventID] = &model.PspWebhook{
		ID:      uuid.New(),
		EventID: eventID,
		Payload: slices.Clone(payload),
		Status:  "received",
		Model:   model.Model{CreatedAt: now, UpdatedAt: now},
	}
	s.enqueue(event)
	return true, nil
}

func (s *Store) MarkWebhook(_ context.Context, eventID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.webhooks[eventID]; ok {
		w.Status = status
		w.UpdatedAt = s.Now()
	}
	return nil
}

// Reminders

func (s *Store) ListUnpaid(_ context.Context, createdAfter, createdBefore time.Time, intervalKey string, limit int) ([]reminder.Due, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []reminder.Due
	for _, t := range s.transactions {
		if t.Status != model.TransactionPending || !t.CreatedAt.After(createdAfter) || t.CreatedAt.After(createdBefore) {
			continue
		}
		key := reminder.PaymentKey(t.ID) + "|" + t.UserID.String() + "|" + intervalKey
		if l, ok := s.reminders[key]; ok && l.Status != model.ReminderFailed {
			continue
		}
		out = append(out, reminder.Due{
			TransactionID: t.ID,
			UserID:        t.UserID,
			InvoiceNumber: t.InvoiceNumber,
			Amount:        t.Amount,
			PaymentURL:    t.PaymentURL,
			CreatedAt:     t.CreatedAt,
		})
	}
	slices.SortFunc(out, func(a, b reminder.Due) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out[:min(limit, len(out))], nil
}

func reminderKey(l *model.ReminderLog) string {
	return l.ReminderKey + "|" + l.UserID.String() + "|" + l.IntervalKey
}

func (s *Store) ClaimReminder(_ context.Context, l *model.ReminderLog) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := reminderKey(l)
	if existing, ok := s.reminders[key]; ok {
		if existing.Status != model.ReminderFailed {
			return false, nil
		}
		existing.Status = l.Status
		existing.Channels = l.Channels
		existing.SentAt = nil
		l.ID = existing.ID
		return true, nil
	}
	stored := ptr(*l)
	stored.CreatedAt = s.Now()
	s.reminders[key] = stored
	return true, nil
}

func (s *Store) FinishReminder(_ context.Context, id uuid.UUID, status model.ReminderStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.reminders {
		if l.ID == id {
			l.Status = status
			l.SentAt = ptr(at)
		}
	}
	return nil
}

// Reminders returns every reminder log row.
func (s *Store) Reminders() []model.ReminderLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ReminderLog
	for _, l := range s.reminders {
		out = append(out, *l)
	}
	return out
}
