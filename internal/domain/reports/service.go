package reports

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"pettrace/internal/platform/logger"
	"pettrace/internal/platform/metrics"
	"pettrace/internal/ports/funds"

	"github.com/ethereum/go-ethereum/common"
)

// Nombres de operación para logs y métricas.
const (
	OpPostLostPet  = "post_lost_pet"
	OpMarkAsFound  = "mark_as_found"
	OpConfirmFound = "confirm_found_by_owner"
	OpClaimBounty  = "claim_bounty"
	OpCancelReport = "cancel_report"
)

type Options struct {
	// Custody es la dirección que retiene el escrow (spender del token).
	Custody common.Address

	Native funds.NativeLedger
	Token  funds.TokenLedger

	Publisher Publisher
	Logger    logger.Logger
	Metrics   *metrics.Registry
}

// Service es el registro de reportes y el escrow de recompensas.
// Toda mutación corre bajo mu: una llamada = una transición atómica, en orden total.
type Service struct {
	repo    Repository
	custody common.Address
	native  funds.NativeLedger
	token   funds.TokenLedger
	pub     Publisher
	log     logger.Logger
	metrics *metrics.Registry
	now     func() time.Time

	mu sync.RWMutex
}

func NewService(repo Repository, opts Options) *Service {
	s := &Service{
		repo:    repo,
		custody: opts.Custody,
		native:  opts.Native,
		token:   opts.Token,
		pub:     opts.Publisher,
		log:     opts.Logger,
		metrics: opts.Metrics,
		now:     time.Now,
	}
	if s.pub == nil {
		s.pub = nopPublisher{}
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	return s
}

func (s *Service) Custody() common.Address { return s.custody }

type PostInput struct {
	Pet     PetDetails
	Contact Contact

	// NativeValue es el valor adjunto; TokenAmount es 0 si se paga en moneda nativa.
	NativeValue *big.Int
	TokenAmount *big.Int
}

// PostLostPet crea el reporte y mueve la recompensa a custodia.
// Si falla cualquier transferencia no queda reporte ni se consume id. Si la
// pata token queda pendiente el reporte se crea igual y se devuelve junto con
// ErrTransferInPending.
func (s *Service) PostLostPet(ctx context.Context, caller common.Address, in PostInput) (rep PetReport, err error) {
	defer func() { s.record(OpPostLostPet, caller, rep.ID, err) }()

	if isZero(caller) {
		return PetReport{}, ErrInvalidCaller
	}
	bounty := NewBounty(in.NativeValue, in.TokenAmount)
	if bounty.Native.Sign() < 0 || bounty.Token.Sign() < 0 {
		return PetReport{}, ErrInvalidInput.with(errors.New("negative bounty"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// desde acá hay fondos en juego: cortar el request no corta la operación
	ctx = context.WithoutCancel(ctx)

	pullErr := s.pullIn(ctx, caller, bounty)
	if pullErr != nil && !errors.Is(pullErr, ErrTransferInPending) {
		return PetReport{}, pullErr
	}

	now := s.now().UTC()
	r := PetReport{
		Owner:     caller,
		Pet:       trimDetails(in.Pet),
		Contact:   trimContact(in.Contact),
		Bounty:    bounty,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	stored, err := s.repo.Append(ctx, r)
	if err != nil {
		s.refundFailedPost(ctx, caller, bounty, pullErr)
		return PetReport{}, fmt.Errorf("append report: %w", err)
	}

	s.publish(ctx, Event{
		Type:       EventPetPosted,
		ReportID:   stored.ID,
		Actor:      caller,
		Bounty:     bounty.Clone(),
		OccurredAt: now,
	})
	if pullErr != nil {
		return stored.Clone(), pullErr
	}
	return stored.Clone(), nil
}

// refundFailedPost devuelve lo que entró a custodia cuando no se pudo guardar el reporte.
// Una pata token pendiente no se devuelve: puede no haber llegado nunca.
func (s *Service) refundFailedPost(ctx context.Context, owner common.Address, b Bounty, pullErr error) {
	refund := b
	if pullErr != nil {
		refund = NewBounty(b.Native, nil)
		s.log.Error("pending token pull left without report", map[string]any{
			"owner":  owner.Hex(),
			"amount": b.Token.String(),
			"error":  pullErr.Error(),
		})
	}
	if refund.IsZero() {
		return
	}
	if err := s.move(ctx, s.custody, owner, refund); err != nil {
		s.log.Error("refund after failed append", map[string]any{
			"owner": owner.Hex(),
			"error": err.Error(),
		})
	}
}

// MarkAsFound: el primero que reclama queda como finder. No mueve fondos.
func (s *Service) MarkAsFound(ctx context.Context, caller common.Address, id uint64) (rep PetReport, err error) {
	defer func() { s.record(OpMarkAsFound, caller, id, err) }()

	if isZero(caller) {
		return PetReport{}, ErrInvalidCaller
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return PetReport{}, err
	}

	switch {
	case cur.Cancelled:
		return PetReport{}, ErrCancelled
	case cur.IsFound:
		return PetReport{}, ErrAlreadyFound
	case cur.Owner == caller:
		return PetReport{}, ErrSelfClaim
	case cur.HasFinder():
		return PetReport{}, ErrFinderAssigned
	}

	next := s.bump(cur)
	next.Finder = caller
	if err := s.repo.Update(ctx, next, cur.Version); err != nil {
		return PetReport{}, err
	}

	s.publish(ctx, Event{
		Type:       EventFoundClaimed,
		ReportID:   id,
		Actor:      caller,
		Bounty:     NewBounty(nil, nil),
		OccurredAt: next.UpdatedAt,
	})
	return next.Clone(), nil
}

// ConfirmFoundByOwner: la confirmación del dueño es la única que finaliza isFound.
func (s *Service) ConfirmFoundByOwner(ctx context.Context, caller common.Address, id uint64) (rep PetReport, err error) {
	defer func() { s.record(OpConfirmFound, caller, id, err) }()

	if isZero(caller) {
		return PetReport{}, ErrInvalidCaller
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return PetReport{}, err
	}

	switch {
	case cur.Owner != caller:
		return PetReport{}, ErrNotOwner
	case cur.Cancelled:
		return PetReport{}, ErrCancelled
	case !cur.HasFinder():
		return PetReport{}, ErrNoFinder
	case cur.OwnerConfirmed:
		return PetReport{}, ErrAlreadyConfirmed
	}

	next := s.bump(cur)
	next.OwnerConfirmed = true
	next.IsFound = true
	if err := s.repo.Update(ctx, next, cur.Version); err != nil {
		return PetReport{}, err
	}

	s.publish(ctx, Event{
		Type:       EventOwnerConfirmed,
		ReportID:   id,
		Actor:      caller,
		Bounty:     NewBounty(nil, nil),
		OccurredAt: next.UpdatedAt,
	})
	return next.Clone(), nil
}

// ClaimBounty paga la recompensa al finder una sola vez.
// Se marca como cobrada y se persiste antes de transferir. Si el pago falla
// sin mover fondos se restaura el reporte; si quedó pendiente se deja cobrado.
func (s *Service) ClaimBounty(ctx context.Context, caller common.Address, id uint64) (rep PetReport, err error) {
	defer func() { s.record(OpClaimBounty, caller, id, err) }()

	if isZero(caller) {
		return PetReport{}, ErrInvalidCaller
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return PetReport{}, err
	}

	switch {
	case !cur.HasFinder() || cur.Finder != caller:
		return PetReport{}, ErrNotFinder
	case !cur.IsFound:
		return PetReport{}, ErrNotYetFound
	case cur.BountyClaimed:
		return PetReport{}, ErrBountyClaimed
	case cur.Bounty.IsZero():
		return PetReport{}, ErrNoBounty
	}

	claimed := s.bump(cur)
	claimed.BountyClaimed = true
	if err := s.repo.Update(ctx, claimed, cur.Version); err != nil {
		return PetReport{}, err
	}

	ctx = context.WithoutCancel(ctx)
	ev := Event{
		Type:       EventBountyClaimed,
		ReportID:   id,
		Actor:      caller,
		Bounty:     cur.Bounty.Clone(),
		OccurredAt: claimed.UpdatedAt,
	}

	if err := s.move(ctx, s.custody, caller, cur.Bounty); err != nil {
		if funds.IsPending(err) {
			s.publish(ctx, ev)
			return claimed.Clone(), ErrPayoutPending.with(err)
		}
		if rerr := s.restore(ctx, cur, claimed); rerr != nil {
			return PetReport{}, ErrPayout.with(errors.Join(err, rerr))
		}
		return PetReport{}, ErrPayout.with(err)
	}

	s.publish(ctx, ev)
	return claimed.Clone(), nil
}

// CancelReport devuelve el escrow al dueño. Solo desde CREATED (sin finder).
func (s *Service) CancelReport(ctx context.Context, caller common.Address, id uint64) (rep PetReport, err error) {
	defer func() { s.record(OpCancelReport, caller, id, err) }()

	if isZero(caller) {
		return PetReport{}, ErrInvalidCaller
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return PetReport{}, err
	}

	switch {
	case cur.Owner != caller:
		return PetReport{}, ErrNotOwner
	case cur.Cancelled:
		return PetReport{}, ErrCancelled
	case cur.HasFinder():
		return PetReport{}, ErrFinderAssigned
	}

	cancelled := s.bump(cur)
	cancelled.Cancelled = true
	if err := s.repo.Update(ctx, cancelled, cur.Version); err != nil {
		return PetReport{}, err
	}

	ctx = context.WithoutCancel(ctx)
	ev := Event{
		Type:       EventReportCancelled,
		ReportID:   id,
		Actor:      caller,
		Bounty:     cur.Bounty.Clone(),
		OccurredAt: cancelled.UpdatedAt,
	}

	if !cur.Bounty.IsZero() {
		if err := s.move(ctx, s.custody, caller, cur.Bounty); err != nil {
			if funds.IsPending(err) {
				s.publish(ctx, ev)
				return cancelled.Clone(), ErrRefundPending.with(err)
			}
			if rerr := s.restore(ctx, cur, cancelled); rerr != nil {
				return PetReport{}, ErrRefund.with(errors.Join(err, rerr))
			}
			return PetReport{}, ErrRefund.with(err)
		}
	}

	s.publish(ctx, ev)
	return cancelled.Clone(), nil
}

func (s *Service) GetPetDetails(ctx context.Context, id uint64) (PetReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return PetReport{}, err
	}
	return r.Clone(), nil
}

// GetAllLostPets devuelve (ids, reportes) en orden de id. Registro vacío => slices vacíos.
func (s *Service) GetAllLostPets(ctx context.Context) ([]uint64, []PetReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items, err := s.repo.List(ctx, Page{})
	if err != nil {
		return nil, nil, err
	}
	return split(items)
}

func (s *Service) ListLostPets(ctx context.Context, page Page) ([]uint64, []PetReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items, err := s.repo.List(ctx, page.Clamp())
	if err != nil {
		return nil, nil, err
	}
	return split(items)
}

func split(items []PetReport) ([]uint64, []PetReport, error) {
	ids := make([]uint64, 0, len(items))
	out := make([]PetReport, 0, len(items))
	for _, r := range items {
		ids = append(ids, r.ID)
		out = append(out, r.Clone())
	}
	return ids, out, nil
}

// pullIn: primero la moneda nativa, al final el token (la única pata que
// puede quedar pendiente). Si el token falla se devuelve la nativa.
func (s *Service) pullIn(ctx context.Context, from common.Address, b Bounty) error {
	if b.Native.Sign() > 0 {
		err := funds.ErrUnsupported
		if s.native != nil {
			err = s.native.Transfer(ctx, from, s.custody, b.Native)
		}
		if err != nil {
			return ErrTransferIn.with(err)
		}
	}

	if b.Token.Sign() > 0 {
		err := funds.ErrUnsupported
		if s.token != nil {
			err = s.token.TransferFrom(ctx, s.custody, from, s.custody, b.Token)
		}
		if funds.IsPending(err) {
			return ErrTransferInPending.with(err)
		}
		if err != nil {
			if b.Native.Sign() > 0 {
				if rerr := s.native.Transfer(ctx, s.custody, from, b.Native); rerr != nil {
					s.log.Error("native refund after failed token pull", map[string]any{
						"owner": from.Hex(),
						"error": rerr.Error(),
					})
				}
			}
			return ErrTransferIn.with(err)
		}
	}
	return nil
}

// move transfiere ambos montos from -> to, la nativa primero. Si el token falla
// se compensa la nativa; si quedó pendiente la nativa queda pagada.
func (s *Service) move(ctx context.Context, from, to common.Address, b Bounty) error {
	nativeSent := false
	if b.Native.Sign() > 0 {
		err := funds.ErrUnsupported
		if s.native != nil {
			err = s.native.Transfer(ctx, from, to, b.Native)
		}
		if err != nil {
			return fmt.Errorf("native leg: %w", err)
		}
		nativeSent = true
	}

	if b.Token.Sign() > 0 {
		err := funds.ErrUnsupported
		if s.token != nil {
			err = s.token.Transfer(ctx, from, to, b.Token)
		}
		if err != nil {
			if nativeSent && !funds.IsPending(err) {
				if cerr := s.native.Transfer(ctx, to, from, b.Native); cerr != nil {
					s.log.Error("native compensation failed", map[string]any{
						"from":  from.Hex(),
						"to":    to.Hex(),
						"error": cerr.Error(),
					})
				}
			}
			return fmt.Errorf("token leg: %w", err)
		}
	}
	return nil
}

const restoreAttempts = 3

// restore vuelve el reporte al estado previo (con versión nueva) tras un pago
// que no movió fondos. Si no se puede escribir el reporte queda en el estado
// nuevo con los fondos todavía en custodia.
func (s *Service) restore(ctx context.Context, prev, written PetReport) error {
	back := prev.Clone()
	back.Version = written.Version + 1
	back.UpdatedAt = s.now().UTC()

	var err error
	for i := 0; i < restoreAttempts; i++ {
		if err = s.repo.Update(ctx, back, written.Version); err == nil {
			return nil
		}
	}
	s.log.Error("restore report after failed transfer", map[string]any{
		"report_id": prev.ID,
		"error":     err.Error(),
	})
	return fmt.Errorf("restore report: %w", err)
}

func (s *Service) bump(cur PetReport) PetReport {
	next := cur.Clone()
	next.Version = cur.Version + 1
	next.UpdatedAt = s.now().UTC()
	return next
}

func (s *Service) publish(ctx context.Context, e Event) {
	if err := s.pub.Publish(context.WithoutCancel(ctx), e); err != nil {
		s.log.Warn("publish registry event", map[string]any{
			"type":      string(e.Type),
			"report_id": e.ReportID,
			"error":     err.Error(),
		})
	}
}

func (s *Service) record(op string, caller common.Address, id uint64, err error) {
	kind := KindOf(err)
	s.metrics.ObserveOperation(op, string(kind))

	fields := map[string]any{
		"operation": op,
		"caller":    caller.Hex(),
		"report_id": id,
	}
	switch kind {
	case "":
		s.log.Info("registry transition", fields)
	case KindInternal, KindConflict, KindPending:
		fields["error"] = err.Error()
		s.log.Error("registry operation failed", fields)
	default:
		fields["error"] = err.Error()
		fields["kind"] = string(kind)
		s.log.Debug("registry call rejected", fields)
	}
}

func isZero(a common.Address) bool {
	return a == (common.Address{})
}

func trimDetails(p PetDetails) PetDetails {
	p.Name = strings.TrimSpace(p.Name)
	p.Breed = strings.TrimSpace(p.Breed)
	p.Gender = strings.TrimSpace(p.Gender)
	p.DateTimeLost = strings.TrimSpace(p.DateTimeLost)
	p.Description = strings.TrimSpace(p.Description)
	p.ImageURL = strings.TrimSpace(p.ImageURL)
	p.LastSeenLocation = strings.TrimSpace(p.LastSeenLocation)
	return p
}

func trimContact(c Contact) Contact {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Email = strings.TrimSpace(c.Email)
	return c
}
